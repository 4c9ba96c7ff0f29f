// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package notify delivers completion and assignment emails in the
// background, detached from the requests that trigger them.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/internal/post"
	"github.com/scaleinspect/inspectd/mailservice"
	"github.com/scaleinspect/inspectd/report"
)

var (
	mon = monkit.Package()

	// Error is the default notify errs class.
	Error = errs.Class("notify")
)

const docxMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Config holds the notifier settings.
type Config struct {
	QueueSize int `help:"size of the in process notification queue" default:"64"`
}

// job is one queued notification.
type job func(ctx context.Context)

// Notifier queues notification work and runs it on a single background
// worker. Enqueueing never blocks the caller: when the queue is full the
// notification is dropped with a log line.
//
// architecture: Service
type Notifier struct {
	log      *zap.Logger
	db       inspection.DB
	composer *report.Composer
	mail     *mailservice.Service

	queue chan job
}

// New creates a notifier.
func New(log *zap.Logger, db inspection.DB, composer *report.Composer, mail *mailservice.Service, config Config) *Notifier {
	size := config.QueueSize
	if size <= 0 {
		size = 64
	}
	return &Notifier{
		log:      log,
		db:       db,
		composer: composer,
		mail:     mail,
		queue:    make(chan job, size),
	}
}

// Run processes queued notifications until the context is canceled.
func (notifier *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case work := <-notifier.queue:
			work(ctx)
		}
	}
}

// Close stops accepting new notifications.
func (notifier *Notifier) Close() error { return nil }

// enqueue schedules work, dropping it when the queue is saturated.
func (notifier *Notifier) enqueue(kind string, work job) {
	select {
	case notifier.queue <- work:
	default:
		notifier.log.Warn("notification queue full, dropping", zap.String("kind", kind))
	}
}

// InspectionCompleted schedules the completion email: the rendered report
// goes to the organization's contact address as a .docx attachment. Nothing
// is reported back to the caller.
func (notifier *Notifier) InspectionCompleted(inspectionID, answerID uuid.UUID) {
	notifier.enqueue("completion", func(ctx context.Context) {
		if err := notifier.sendCompletion(ctx, inspectionID, answerID); err != nil {
			notifier.log.Error("completion notification failed",
				zap.String("inspection", inspectionID.String()),
				zap.Error(err))
		}
	})
}

func (notifier *Notifier) sendCompletion(ctx context.Context, inspectionID, answerID uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	record, err := notifier.db.Inspections().Get(ctx, inspectionID)
	if err != nil {
		return err
	}
	org, err := notifier.db.Organizations().Get(ctx, record.OrganizationID)
	if err != nil {
		return err
	}
	if org.ContactEmail == "" {
		notifier.log.Debug("organization has no contact email, skipping",
			zap.String("organization", org.Name))
		return nil
	}

	document, err := notifier.composer.Compose(ctx, answerID)
	if err != nil {
		return err
	}

	completedAt := time.Now().UTC()
	if record.CompletedAt != nil {
		completedAt = *record.CompletedAt
	}

	return Error.Wrap(notifier.mail.SendRendered(ctx,
		[]post.Address{{Address: org.ContactEmail, Name: org.ContactName}},
		&completedMessage{
			InspectionID:    record.ID.String(),
			InspectionTitle: record.Title,
			CompletedAt:     completedAt.Format("2006-01-02 15:04"),
		},
		mailservice.Attachment{
			FileName: fmt.Sprintf("inspection_%s.docx", record.ID),
			Type:     docxMime,
			Content:  document,
		},
	))
}

// InspectionAssigned schedules the assignment notice for the assignee.
func (notifier *Notifier) InspectionAssigned(record *inspection.Inspection, assignee *inspection.User) {
	id := record.ID
	title := record.Title
	scheduleType := string(record.ScheduleType)
	var scheduledFor string
	if record.ScheduledFor != nil {
		scheduledFor = record.ScheduledFor.Format("2006-01-02")
	}
	email := assignee.Email
	name := assignee.FullName

	notifier.enqueue("assignment", func(ctx context.Context) {
		err := notifier.mail.SendRendered(ctx,
			[]post.Address{{Address: email, Name: name}},
			&assignedMessage{
				InspectionID:    id.String(),
				InspectionTitle: title,
				ScheduleType:    scheduleType,
				ScheduledFor:    scheduledFor,
				AssigneeName:    name,
			})
		if err != nil {
			notifier.log.Error("assignment notification failed",
				zap.String("inspection", id.String()),
				zap.Error(err))
		}
	})
}

// completedMessage is the completion email model.
type completedMessage struct {
	InspectionID    string
	InspectionTitle string
	CompletedAt     string
}

// Template implements mailservice.Message.
func (*completedMessage) Template() string { return "inspectionCompleted" }

// Subject implements mailservice.Message.
func (msg *completedMessage) Subject() string {
	return "Үзлэг дууссан: " + msg.InspectionTitle
}

// PlainText implements mailservice.PlainMessage.
func (msg *completedMessage) PlainText() string {
	return fmt.Sprintf("Үзлэг дууссан.\r\n\r\nҮзлэг: %s\r\nДугаар: %s\r\nДууссан огноо: %s\r\n",
		msg.InspectionTitle, msg.InspectionID, msg.CompletedAt)
}

// assignedMessage is the assignment email model.
type assignedMessage struct {
	InspectionID    string
	InspectionTitle string
	ScheduleType    string
	ScheduledFor    string
	AssigneeName    string
}

// Template implements mailservice.Message.
func (*assignedMessage) Template() string { return "inspectionAssigned" }

// Subject implements mailservice.Message.
func (msg *assignedMessage) Subject() string {
	return "Шинэ үзлэг оноогдлоо: " + msg.InspectionTitle
}

// PlainText implements mailservice.PlainMessage.
func (msg *assignedMessage) PlainText() string {
	text := fmt.Sprintf("Сайн байна уу, %s.\r\n\r\nТанд шинэ үзлэг оноогдлоо.\r\n\r\nҮзлэг: %s\r\nДугаар: %s\r\nТөрөл: %s\r\n",
		msg.AssigneeName, msg.InspectionTitle, msg.InspectionID, msg.ScheduleType)
	if msg.ScheduledFor != "" {
		text += fmt.Sprintf("Товлосон огноо: %s\r\n", msg.ScheduledFor)
	}
	return text
}
