// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package post

import (
	"crypto/tls"
	"net"
	"net/smtp"

	"github.com/zeebo/errs"
)

// SMTPSender is an SMTP sender.
type SMTPSender struct {
	ServerAddress string

	From Address
	Auth smtp.Auth
}

// FromAddress implements mailservice Sender interface.
func (sender *SMTPSender) FromAddress() Address {
	return sender.From
}

// SendEmail sends email message to the given recipient through an SMTP
// session. The connection is upgraded with STARTTLS when the server
// supports it.
func (sender *SMTPSender) SendEmail(msg *Message) (err error) {
	host, _, err := net.SplitHostPort(sender.ServerAddress)
	if err != nil {
		return Error.Wrap(err)
	}

	client, err := smtp.Dial(sender.ServerAddress)
	if err != nil {
		return Error.Wrap(err)
	}
	// close underlying connection and send QUIT regardless of the outcome
	defer func() {
		err = errs.Combine(err, Error.Wrap(client.Quit()))
	}()

	if ok, _ := client.Extension("STARTTLS"); ok {
		err = client.StartTLS(&tls.Config{ServerName: host})
		if err != nil {
			return Error.Wrap(err)
		}
	}

	if sender.Auth != nil {
		err = client.Auth(sender.Auth)
		if err != nil {
			return Error.Wrap(err)
		}
	}

	return sender.communicate(client, msg)
}

func (sender *SMTPSender) communicate(client *smtp.Client, msg *Message) error {
	if err := client.Mail(sender.From.Address); err != nil {
		return Error.Wrap(err)
	}

	for _, to := range msg.To {
		if err := client.Rcpt(to.Address); err != nil {
			return Error.Wrap(err)
		}
	}

	data, err := client.Data()
	if err != nil {
		return Error.Wrap(err)
	}

	body, err := msg.Bytes()
	if err != nil {
		return Error.Wrap(err)
	}

	if _, err = data.Write(body); err != nil {
		return Error.Wrap(err)
	}

	return Error.Wrap(data.Close())
}

// LoginAuth implements the LOGIN smtp authentication mechanism used by
// providers that do not offer PLAIN.
type LoginAuth struct {
	Username string
	Password string
}

// Start implements smtp.Auth interface.
func (auth LoginAuth) Start(server *smtp.ServerInfo) (proto string, toServer []byte, err error) {
	if !server.TLS {
		return "", nil, Error.New("unencrypted connection")
	}
	return "LOGIN", []byte{}, nil
}

// Next implements smtp.Auth interface.
func (auth LoginAuth) Next(fromServer []byte, more bool) (toServer []byte, err error) {
	if !more {
		return nil, nil
	}

	switch string(fromServer) {
	case "Username:":
		return []byte(auth.Username), nil
	case "Password:":
		return []byte(auth.Password), nil
	default:
		return nil, Error.New("unexpected server challenge")
	}
}
