// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package post implements email message building and SMTP delivery.
package post

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/zeebo/errs"
)

// Error is the default post errs class.
var Error = errs.Class("post")

// Address is an alias of net/mail.Address.
type Address = mail.Address

// Message defines an email message with optional attachments.
type Message struct {
	From      Address
	To        []Address
	Subject   string
	Date      time.Time

	PlainText string
	Parts     []Part
}

// Part defines a single part of a multipart message. A part with a
// non-empty FileName is rendered as an attachment.
type Part struct {
	Type        string
	Encoding    string
	Disposition string
	FileName    string
	Content     string
}

// Bytes builds the RFC 5322 wire form of the message.
func (msg *Message) Bytes() (data []byte, err error) {
	// always returns nil error on writing into the buffer
	var body bytes.Buffer

	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	tos := make([]string, 0, len(msg.To))
	for i := range msg.To {
		tos = append(tos, msg.To[i].String())
	}

	fmt.Fprintf(&body, "From: %s\r\n", msg.From.String())
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(tos, ","))
	fmt.Fprintf(&body, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&body, "Date: %s\r\n", date.Format(time.RFC1123Z))
	fmt.Fprintf(&body, "MIME-Version: 1.0\r\n")

	switch {
	case len(msg.Parts) == 0:
		fmt.Fprintf(&body, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
		fmt.Fprintf(&body, "%s\r\n", msg.PlainText)
	default:
		wr := multipart.NewWriter(&body)
		fmt.Fprintf(&body, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", wr.Boundary())

		if msg.PlainText != "" {
			part, err := wr.CreatePart(textproto.MIMEHeader{
				"Content-Type": {"text/plain; charset=utf-8"},
			})
			if err != nil {
				return nil, Error.Wrap(err)
			}
			if _, err := fmt.Fprintf(part, "%s\r\n", msg.PlainText); err != nil {
				return nil, Error.Wrap(err)
			}
		}

		for _, inner := range msg.Parts {
			header := textproto.MIMEHeader{}
			contentType := inner.Type
			if contentType == "" {
				contentType = "text/html; charset=utf-8"
			}
			header.Set("Content-Type", contentType)

			if inner.FileName != "" {
				disposition := inner.Disposition
				if disposition == "" {
					disposition = "attachment"
				}
				header.Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, inner.FileName))
				header.Set("Content-Transfer-Encoding", "base64")

				part, err := wr.CreatePart(header)
				if err != nil {
					return nil, Error.Wrap(err)
				}
				if err := writeBase64(part, []byte(inner.Content)); err != nil {
					return nil, Error.Wrap(err)
				}
				continue
			}

			part, err := wr.CreatePart(header)
			if err != nil {
				return nil, Error.Wrap(err)
			}
			if _, err := fmt.Fprintf(part, "%s\r\n", inner.Content); err != nil {
				return nil, Error.Wrap(err)
			}
		}

		if err := wr.Close(); err != nil {
			return nil, Error.Wrap(err)
		}
	}

	return body.Bytes(), nil
}

// writeBase64 writes data base64 encoded with 76 column line wrapping.
func writeBase64(w interface{ Write([]byte) (int, error) }, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := len(encoded)
		if n > 76 {
			n = 76
		}
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:n]); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
