// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package mailservice

import (
	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/internal/post"
)

// SimulateSender logs messages instead of delivering them. Used when no
// SMTP server is configured.
type SimulateSender struct {
	Log  *zap.Logger
	From post.Address
}

// FromAddress implements Sender.
func (sender *SimulateSender) FromAddress() post.Address {
	return sender.From
}

// SendEmail implements Sender.
func (sender *SimulateSender) SendEmail(msg *post.Message) error {
	var recipients []string
	for _, to := range msg.To {
		recipients = append(recipients, to.Address)
	}
	sender.Log.Info("email send simulated",
		zap.Strings("recipients", recipients),
		zap.String("subject", msg.Subject),
		zap.Int("parts", len(msg.Parts)))
	return nil
}
