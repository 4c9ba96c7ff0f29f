// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspection

import (
	"time"

	"github.com/google/uuid"

	"github.com/scaleinspect/inspectd/inspection/ordered"
)

// Reserved aggregate keys that are not content sections.
const (
	KeyMetadata   = "metadata"
	KeyRemarks    = "remarks"
	KeySignatures = "signatures"
	KeyData       = "data"
)

// Metadata fields scraped from first-section writes.
var metadataFields = []string{"date", "inspector", "location", "scale_id_serial_no", "model"}

// Answer is a persisted row of the inspection answer aggregate. During
// intermediate writes several rows may exist for one inspection; completion
// collapses them to exactly one.
type Answer struct {
	ID           uuid.UUID
	InspectionID uuid.UUID
	Answers      *ordered.Doc
	AnsweredBy   uuid.UUID
	AnsweredAt   time.Time
	CreatedAt    time.Time
}

// QuestionImage is a single uploaded illustration for a question field.
type QuestionImage struct {
	ID         uuid.UUID
	AnswerID   uuid.UUID
	FieldID    string
	Section    string
	ImageOrder int
	ImageURL   string
	FileName   string
	UploadedBy uuid.UUID
	CreatedAt  time.Time
}
