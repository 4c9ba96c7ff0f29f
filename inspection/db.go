// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspection

import (
	"context"

	"github.com/google/uuid"
)

// DB exposes the inspection domain tables.
//
// architecture: Database
type DB interface {
	// Organizations returns the organizations table.
	Organizations() Organizations
	// Users returns the users table.
	Users() Users
	// Devices returns the devices table.
	Devices() Devices
	// Sites returns the sites table.
	Sites() Sites
	// Contracts returns the contracts table.
	Contracts() Contracts
	// Templates returns the inspection templates table.
	Templates() Templates
	// Inspections returns the inspections table.
	Inspections() Inspections
	// Answers returns the inspection answers table.
	Answers() Answers
	// Images returns the question images table.
	Images() Images

	// BeginTx starts a transaction scoped view of the tables.
	BeginTx(ctx context.Context) (DBTx, error)
}

// DBTx extends DB with transaction control.
type DBTx interface {
	Inspections() Inspections
	Answers() Answers
	Images() Images

	Commit() error
	Rollback() error
}

// Organizations exposes methods to manage the organizations table.
type Organizations interface {
	Get(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetByCode(ctx context.Context, code string) (*Organization, error)
	Insert(ctx context.Context, org *Organization) (*Organization, error)
}

// Users exposes methods to manage the users table.
type Users interface {
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Insert(ctx context.Context, user *User) (*User, error)
}

// Devices exposes methods to manage the devices table.
type Devices interface {
	Get(ctx context.Context, id uuid.UUID) (*Device, error)
	Insert(ctx context.Context, device *Device) (*Device, error)
}

// Sites exposes methods to manage the sites table.
type Sites interface {
	Get(ctx context.Context, id uuid.UUID) (*Site, error)
	Insert(ctx context.Context, site *Site) (*Site, error)
}

// Contracts exposes methods to manage the contracts table.
type Contracts interface {
	Get(ctx context.Context, id uuid.UUID) (*Contract, error)
	Insert(ctx context.Context, contract *Contract) (*Contract, error)
}

// Templates exposes methods to manage the inspection templates table.
type Templates interface {
	Get(ctx context.Context, id uuid.UUID) (*Template, error)
	Insert(ctx context.Context, template *Template) (*Template, error)
}

// Inspections exposes methods to manage the inspections table.
type Inspections interface {
	Get(ctx context.Context, id uuid.UUID) (*Inspection, error)
	Insert(ctx context.Context, inspection *Inspection) (*Inspection, error)
	// Update stores the mutable inspection fields: status, progress,
	// assignee, updater, schedule and completion timestamps.
	Update(ctx context.Context, inspection *Inspection) error
	// ListAssigned returns inspections of the schedule type assigned to the
	// user with status in {DRAFT, IN_PROGRESS, SUBMITTED}, newest first.
	// The filter deliberately ignores the caller's organization so that
	// cross organization assignments remain visible to the inspector.
	ListAssigned(ctx context.Context, userID uuid.UUID, scheduleType ScheduleType) ([]Inspection, error)
	// Delete tombstones the inspection.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Answers exposes methods to manage the inspection answers table.
type Answers interface {
	Get(ctx context.Context, id uuid.UUID) (*Answer, error)
	// ListByInspection returns every answer row of the inspection ordered
	// by answeredAt ascending.
	ListByInspection(ctx context.Context, inspectionID uuid.UUID) ([]Answer, error)
	Insert(ctx context.Context, answer *Answer) (*Answer, error)
	Update(ctx context.Context, answer *Answer) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByInspection(ctx context.Context, inspectionID uuid.UUID) error
}

// Images exposes methods to manage the question images table. The
// (answer, field, order) triple is unique; Insert fails with ErrImageExists
// when the slot is already taken.
type Images interface {
	Get(ctx context.Context, id uuid.UUID) (*QuestionImage, error)
	// GetBySlot returns the image occupying the slot, when any.
	GetBySlot(ctx context.Context, answerID uuid.UUID, fieldID string, order int) (*QuestionImage, error)
	Insert(ctx context.Context, image *QuestionImage) (*QuestionImage, error)
	// ListByAnswer returns images ordered by (section, field, order).
	ListByAnswer(ctx context.Context, answerID uuid.UUID) ([]QuestionImage, error)
	// ListByInspection resolves via the owning answer rows, ordered by
	// (section, field, order).
	ListByInspection(ctx context.Context, inspectionID uuid.UUID) ([]QuestionImage, error)
	// ReparentByInspection moves every image row of the inspection onto
	// the given answer row, so the rows survive an answer collapse.
	ReparentByInspection(ctx context.Context, inspectionID, answerID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByInspection(ctx context.Context, inspectionID uuid.UUID) error
}
