// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package mailservice_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/scaleinspect/inspectd/internal/post"
	"github.com/scaleinspect/inspectd/mailservice"
)

type captureSender struct {
	sent []*post.Message
}

func (sender *captureSender) SendEmail(msg *post.Message) error {
	sender.sent = append(sender.sent, msg)
	return nil
}

func (sender *captureSender) FromAddress() post.Address {
	return post.Address{Name: "ScaleInspect", Address: "no-reply@example.test"}
}

type completedNotice struct {
	InspectionID string
	CompletedAt  string
}

func (*completedNotice) Template() string { return "completed" }

func (msg *completedNotice) Subject() string { return "Үзлэг дууссан" }

func (msg *completedNotice) PlainText() string {
	return "Үзлэг " + msg.InspectionID + " дууссан: " + msg.CompletedAt
}

func newService(t *testing.T) (*mailservice.Service, *captureSender) {
	dir := t.TempDir()
	template := `<html><body>Үзлэг {{.InspectionID}} дууссан: {{.CompletedAt}}</body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "completed.html"), []byte(template), 0o644))

	sender := &captureSender{}
	service, err := mailservice.New(zaptest.NewLogger(t), sender, dir)
	require.NoError(t, err)
	return service, sender
}

func TestSendRenderedBothBodies(t *testing.T) {
	service, sender := newService(t)

	msg := &completedNotice{InspectionID: "b5c9d305", CompletedAt: "2024-05-01 10:30"}
	err := service.SendRendered(context.Background(), []post.Address{{Address: "contact@example.test"}}, msg,
		mailservice.Attachment{
			FileName: "inspection.docx",
			Type:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			Content:  []byte{0x50, 0x4b, 0x03, 0x04},
		})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	sent := sender.sent[0]

	// both bodies carry the inspection id and the completion time
	assert.Contains(t, sent.PlainText, "b5c9d305")
	assert.Contains(t, sent.PlainText, "2024-05-01 10:30")

	require.Len(t, sent.Parts, 2)
	assert.Equal(t, "text/html; charset=utf-8", sent.Parts[0].Type)
	assert.Contains(t, sent.Parts[0].Content, "b5c9d305")
	assert.Contains(t, sent.Parts[0].Content, "2024-05-01 10:30")
	assert.Equal(t, "inspection.docx", sent.Parts[1].FileName)

	wire, err := sent.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(wire), "Content-Type: text/plain; charset=utf-8")
	assert.Contains(t, string(wire), "Content-Type: text/html; charset=utf-8")
}

func TestSendRenderedSwallowsSenderErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "completed.html"),
		[]byte(`<html>{{.InspectionID}}</html>`), 0o644))

	service, err := mailservice.New(zaptest.NewLogger(t), failingSender{}, dir)
	require.NoError(t, err)

	// delivery failures are logged, not returned
	msg := &completedNotice{InspectionID: "x", CompletedAt: "y"}
	require.NoError(t, service.SendRendered(context.Background(),
		[]post.Address{{Address: "contact@example.test"}}, msg))
}

type failingSender struct{}

func (failingSender) SendEmail(msg *post.Message) error { return assert.AnError }
func (failingSender) FromAddress() post.Address         { return post.Address{} }
