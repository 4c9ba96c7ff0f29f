// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package mailservice sends rendered emails through a pluggable sender.
package mailservice

import (
	"bytes"
	"context"
	"html/template"
	"path/filepath"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/internal/post"
)

var (
	mon = monkit.Package()

	// Error is the default mailservice errs class.
	Error = errs.Class("mailservice")
)

// Config defines values needed by the mail service.
type Config struct {
	SMTPServerAddress string `help:"smtp server address" default:""`
	TemplatePath      string `help:"path to email templates source" default:"web/templates"`
	From              string `help:"sender email address" default:""`
	AuthType          string `help:"smtp authentication type: login, plain or nomail" default:"login"`
	Login             string `help:"smtp username" default:""`
	Password          string `help:"smtp password" default:""`
}

// Sender sends single email messages.
//
// architecture: Service
type Sender interface {
	SendEmail(msg *post.Message) error
	FromAddress() post.Address
}

// Message defines the strings a renderable mail message must expose.
type Message interface {
	Template() string
	Subject() string
}

// PlainMessage is implemented by messages that carry a plain text body next
// to the rendered html part.
type PlainMessage interface {
	PlainText() string
}

// Attachment is a binary file shipped with a message.
type Attachment struct {
	FileName string
	Type     string
	Content  []byte
}

// Service sends template backed emails.
//
// architecture: Service
type Service struct {
	log       *zap.Logger
	sender    Sender
	templates *template.Template
}

// New creates a new service, parsing the html templates from the given
// directory.
func New(log *zap.Logger, sender Sender, templatePath string) (*Service, error) {
	templates, err := template.ParseGlob(filepath.Join(templatePath, "*.html"))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &Service{log: log, sender: sender, templates: templates}, nil
}

// Send is generalized method for sending custom email messages.
func (service *Service) Send(ctx context.Context, msg *post.Message) (err error) {
	defer mon.Task()(&ctx)(&err)
	return service.sender.SendEmail(msg)
}

// SendRendered renders the message template and sends it to the given
// recipients with the optional attachments.
func (service *Service) SendRendered(ctx context.Context, to []post.Address, msg Message, attachments ...Attachment) (err error) {
	defer mon.Task()(&ctx)(&err)

	var html bytes.Buffer
	if err := service.templates.ExecuteTemplate(&html, msg.Template()+".html", msg); err != nil {
		return Error.Wrap(err)
	}

	message := &post.Message{
		From:    service.sender.FromAddress(),
		To:      to,
		Subject: msg.Subject(),
		Parts: []post.Part{
			{Type: "text/html; charset=utf-8", Content: html.String()},
		},
	}
	if plain, ok := msg.(PlainMessage); ok {
		message.PlainText = plain.PlainText()
	}
	for _, attachment := range attachments {
		message.Parts = append(message.Parts, post.Part{
			Type:     attachment.Type,
			FileName: attachment.FileName,
			Content:  string(attachment.Content),
		})
	}

	err = service.sender.SendEmail(message)

	// log error, but don't return to the caller
	var recipients []string
	for _, recipient := range to {
		recipients = append(recipients, recipient.Address)
	}
	if err != nil {
		service.log.Error("fail sending email",
			zap.Strings("recipients", recipients),
			zap.Error(err))
	} else {
		service.log.Info("email sent successfully",
			zap.Strings("recipients", recipients),
			zap.String("subject", msg.Subject()))
	}
	return nil
}

// SendRenderedAsync sends the rendered message in its own goroutine, fully
// detached from the caller's request.
func (service *Service) SendRenderedAsync(ctx context.Context, to []post.Address, msg Message, attachments ...Attachment) {
	go func() {
		_ = service.SendRendered(context.Background(), to, msg, attachments...)
	}()
}
