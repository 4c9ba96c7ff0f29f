// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package inspection implements the field inspection domain: templates,
// inspections, the answer aggregate and the section aggregation engine.
package inspection

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
)

var (
	// Error is the default inspection errs class.
	Error = errs.Class("inspection")
	// ErrValidation is returned for malformed requests.
	ErrValidation = errs.Class("inspection validation")
	// ErrUnauthorized is returned when no valid authorization is present.
	ErrUnauthorized = errs.Class("inspection unauthorized")
	// ErrForbidden is returned when the caller may not touch the inspection.
	ErrForbidden = errs.Class("inspection forbidden")
	// ErrNoRecord is returned when a referenced record does not exist.
	ErrNoRecord = errs.Class("no inspection record")
	// ErrImageExists is returned when an image slot is already occupied.
	ErrImageExists = errs.Class("image already exists")
)

// Type is the kind of work an inspection covers.
type Type string

// Inspection types.
const (
	TypeInspection   Type = "INSPECTION"
	TypeInstallation Type = "INSTALLATION"
	TypeMaintenance  Type = "MAINTENANCE"
	TypeVerification Type = "VERIFICATION"
)

// ScheduleType separates daily checks from scheduled service visits.
type ScheduleType string

// Schedule types.
const (
	ScheduleDaily     ScheduleType = "DAILY"
	ScheduleScheduled ScheduleType = "SCHEDULED"
)

// ParseScheduleType normalizes and validates a schedule type value.
func ParseScheduleType(s string) (ScheduleType, error) {
	switch ScheduleType(strings.ToUpper(s)) {
	case ScheduleDaily:
		return ScheduleDaily, nil
	case ScheduleScheduled:
		return ScheduleScheduled, nil
	default:
		return "", ErrValidation.New("unknown schedule type %q", s)
	}
}

// Status is the lifecycle state of an inspection.
type Status string

// Inspection statuses.
const (
	StatusDraft      Status = "DRAFT"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusCanceled   Status = "CANCELED"
)

// ParseStatus normalizes and validates a status value.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(s)) {
	case StatusDraft:
		return StatusDraft, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusSubmitted:
		return StatusSubmitted, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusCanceled:
		return StatusCanceled, nil
	default:
		return "", ErrValidation.New("unknown status %q", s)
	}
}

// SectionStatus is the writer supplied state of a single section.
type SectionStatus string

// Section statuses.
const (
	SectionInProgress SectionStatus = "IN_PROGRESS"
	SectionCompleted  SectionStatus = "COMPLETED"
	SectionSkipped    SectionStatus = "SKIPPED"
)

// ParseSectionStatus normalizes and validates a section status value.
func ParseSectionStatus(s string) (SectionStatus, error) {
	switch SectionStatus(strings.ToUpper(s)) {
	case SectionInProgress:
		return SectionInProgress, nil
	case SectionCompleted:
		return SectionCompleted, nil
	case SectionSkipped:
		return SectionSkipped, nil
	default:
		return "", ErrValidation.New("unknown section status %q", s)
	}
}

// Inspection is a single execution instance of a template.
type Inspection struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	DeviceID       uuid.UUID
	SiteID         *uuid.UUID
	ContractID     *uuid.UUID
	TemplateID     *uuid.UUID

	Title        string
	Type         Type
	ScheduleType ScheduleType
	Status       Status
	Progress     int

	AssignedTo *uuid.UUID
	CreatedBy  uuid.UUID
	UpdatedBy  *uuid.UUID

	ScheduledFor *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}
