// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspection

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/inspection/ordered"
)

var mon = monkit.Package()

// Service coordinates the inspection answer aggregate: it merges partial
// section writes, drives status and progress, and owns the cascade between
// inspections, answers and images.
//
// architecture: Service
type Service struct {
	log *zap.Logger
	db  DB
}

// NewService creates a new inspection service.
func NewService(log *zap.Logger, db DB) (*Service, error) {
	if log == nil {
		return nil, errs.New("log can't be nil")
	}
	if db == nil {
		return nil, errs.New("db can't be nil")
	}
	return &Service{log: log, db: db}, nil
}

// SectionWrite is a single partial write against the aggregate.
type SectionWrite struct {
	InspectionID   uuid.UUID
	Section        string
	Payload        *ordered.Doc
	AnswerID       *uuid.UUID
	SectionIndex   int
	IsFirstSection bool
	Status         string
	SectionStatus  SectionStatus
	Progress       int
}

// SectionResult carries the navigation signals of a section write.
type SectionResult struct {
	AnswerID     uuid.UUID
	Section      string
	NextSection  string
	IsLast       bool
	IsCompletion bool
	SectionOrder []string
	Progress     int
	Status       Status
}

// SubmitSection merges one partial section write into the aggregate inside
// a single transaction and returns the navigation signals.
func (service *Service) SubmitSection(ctx context.Context, write SectionWrite) (_ SectionResult, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return SectionResult{}, err
	}

	if write.Section == "" {
		return SectionResult{}, ErrValidation.New("section is required")
	}
	if write.Payload == nil {
		return SectionResult{}, ErrValidation.New("answers are required")
	}

	var status Status
	if write.Status != "" {
		status, err = ParseStatus(write.Status)
		if err != nil {
			return SectionResult{}, err
		}
	}
	if write.SectionStatus != "" {
		write.SectionStatus, err = ParseSectionStatus(string(write.SectionStatus))
		if err != nil {
			return SectionResult{}, err
		}
	}

	inspection, err := service.loadAccessible(ctx, auth, write.InspectionID)
	if err != nil {
		return SectionResult{}, err
	}

	catalogue, err := service.catalogueFor(ctx, inspection)
	if err != nil {
		return SectionResult{}, err
	}

	// unwrap the optional data envelope
	payload := write.Payload
	if inner, ok := payload.GetDoc(KeyData); ok && payload.Len() == 1 {
		payload = inner
	}
	payload = payload.Clone()

	isContent := IsContentSection(write.Section)
	isCompletion := isContent &&
		(status == StatusSubmitted ||
			(write.SectionStatus == SectionCompleted && catalogue.IsLast(write.Section)))

	tx, err := service.db.BeginTx(ctx)
	if err != nil {
		return SectionResult{}, Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, tx.Rollback())
			return
		}
		err = Error.Wrap(tx.Commit())
	}()

	rows, err := tx.Answers().ListByInspection(ctx, write.InspectionID)
	if err != nil {
		return SectionResult{}, Error.Wrap(err)
	}

	now := time.Now().UTC()
	writeDoc := service.buildWriteDoc(write.Section, payload, write.IsFirstSection, catalogue)

	var answerID uuid.UUID
	if isCompletion {
		answerID, err = service.completeInspection(ctx, tx, inspection, rows, writeDoc, catalogue, auth, now)
		if err != nil {
			return SectionResult{}, err
		}
	} else {
		answerID, err = service.applyWrite(ctx, tx, inspection, rows, write, writeDoc, catalogue, auth, now)
		if err != nil {
			return SectionResult{}, err
		}
	}

	result := SectionResult{
		AnswerID:     answerID,
		Section:      write.Section,
		IsCompletion: isCompletion,
		SectionOrder: catalogue.SectionKeys(),
		Status:       inspection.Status,
		Progress:     inspection.Progress,
	}
	if isContent {
		result.IsLast = catalogue.IsLast(write.Section)
		if next, ok := catalogue.Next(write.Section); ok {
			result.NextSection = next
		}
	}

	// a signatures write with a terminal status counts as completion once
	// every content section has been answered; it collapses the rows the
	// same way a final content write does
	if !isCompletion && write.Section == KeySignatures && status == StatusSubmitted {
		current, err := tx.Answers().ListByInspection(ctx, write.InspectionID)
		if err != nil {
			return SectionResult{}, Error.Wrap(err)
		}
		if allSectionsAnswered(current, catalogue) {
			answerID, err = service.completeInspection(ctx, tx, inspection, current, ordered.NewDoc(), catalogue, auth, now)
			if err != nil {
				return SectionResult{}, err
			}
			result.AnswerID = answerID
			result.IsCompletion = true
			result.Status = inspection.Status
			result.Progress = inspection.Progress
		}
	}

	return result, nil
}

// buildWriteDoc turns a classified section payload into an aggregate shaped
// document: content sections nest under their key, remarks and signatures
// land on their reserved keys, and first-section writes surface metadata.
func (service *Service) buildWriteDoc(section string, payload *ordered.Doc, isFirst bool, catalogue *Catalogue) *ordered.Doc {
	doc := ordered.NewDoc()

	switch section {
	case KeyRemarks:
		doc.Set(KeyRemarks, extractRemarksPayload(payload))
		return doc
	case KeySignatures:
		doc.Set(KeySignatures, extractSignaturesPayload(payload))
		return doc
	}

	if isFirst {
		metadata, remarks, signatures := extractMetadata(payload)
		if metadata.Len() > 0 {
			doc.Set(KeyMetadata, metadata)
		}
		if remarks != nil {
			doc.Set(KeyRemarks, remarks)
		}
		if signatures != nil {
			doc.Set(KeySignatures, signatures)
		}
	}

	if wrapped, ok := payload.GetDoc(section); ok && payload.Len() == 1 {
		// payload already wrapped with the section key
		doc.Set(section, wrapped)
	} else {
		doc.Set(section, payload)
	}
	return doc
}

// applyWrite merges a non-completion write into the target row, creating a
// new row for content sections when none exists.
func (service *Service) applyWrite(ctx context.Context, tx DBTx, inspection *Inspection, rows []Answer, write SectionWrite, writeDoc *ordered.Doc, catalogue *Catalogue, auth Authorization, now time.Time) (uuid.UUID, error) {
	var target *Answer

	if write.AnswerID != nil {
		for i := range rows {
			if rows[i].ID == *write.AnswerID {
				target = &rows[i]
				break
			}
		}
		if target == nil {
			return uuid.Nil, ErrValidation.New("answer %s does not belong to inspection %s", write.AnswerID, write.InspectionID)
		}
	} else {
		target = probeMainRow(rows, catalogue)
	}

	if target == nil {
		if !IsContentSection(write.Section) {
			return uuid.Nil, ErrNoRecord.New("no answer row for %s write", write.Section)
		}
		created, err := tx.Answers().Insert(ctx, &Answer{
			ID:           uuid.New(),
			InspectionID: write.InspectionID,
			Answers:      mergeIntoAggregate(ordered.NewDoc(), writeDoc, catalogue),
			AnsweredBy:   auth.User.ID,
			AnsweredAt:   now,
		})
		if err != nil {
			return uuid.Nil, Error.Wrap(err)
		}
		return created.ID, service.advance(ctx, tx, inspection, write, auth, now, catalogue)
	}

	target.Answers = mergeIntoAggregate(target.Answers, writeDoc, catalogue)
	target.AnsweredBy = auth.User.ID
	target.AnsweredAt = now
	if err := tx.Answers().Update(ctx, target); err != nil {
		return uuid.Nil, Error.Wrap(err)
	}
	return target.ID, service.advance(ctx, tx, inspection, write, auth, now, catalogue)
}

// mergeIntoAggregate merges a write document into an aggregate, honoring
// the metadata, remarks and signatures rules.
func mergeIntoAggregate(aggregate *ordered.Doc, writeDoc *ordered.Doc, catalogue *Catalogue) *ordered.Doc {
	if aggregate == nil {
		aggregate = ordered.NewDoc()
	}
	for _, key := range writeDoc.Keys() {
		value, _ := writeDoc.Get(key)
		switch key {
		case KeyMetadata:
			if doc, ok := value.(*ordered.Doc); ok {
				mergeMetadata(aggregate, doc)
			}
		case KeyRemarks:
			mergeRemarks(aggregate, value)
		case KeySignatures:
			if doc, ok := value.(*ordered.Doc); ok {
				mergeSignatures(aggregate, doc)
			}
		default:
			if doc, ok := value.(*ordered.Doc); ok {
				mergeSection(aggregate, key, doc, catalogue)
			} else {
				aggregate.Set(key, value)
			}
		}
	}
	return aggregate
}

// completeInspection collapses every transient row plus the final write
// into a single aggregate row and marks the inspection submitted. The
// collapsed row is inserted and the image rows re-parented onto it before
// the transient rows go away, so the cascade on answer deletion never
// touches an uploaded image.
func (service *Service) completeInspection(ctx context.Context, tx DBTx, inspection *Inspection, rows []Answer, writeDoc *ordered.Doc, catalogue *Catalogue, auth Authorization, now time.Time) (uuid.UUID, error) {
	all := make([]Answer, 0, len(rows)+1)
	all = append(all, rows...)
	all = append(all, Answer{Answers: writeDoc, AnsweredBy: auth.User.ID, AnsweredAt: now})

	aggregate := collapse(all, catalogue)

	created, err := tx.Answers().Insert(ctx, &Answer{
		ID:           uuid.New(),
		InspectionID: inspection.ID,
		Answers:      aggregate,
		AnsweredBy:   auth.User.ID,
		AnsweredAt:   now,
	})
	if err != nil {
		return uuid.Nil, Error.Wrap(err)
	}

	if err := tx.Images().ReparentByInspection(ctx, inspection.ID, created.ID); err != nil {
		return uuid.Nil, Error.Wrap(err)
	}
	for i := range rows {
		if err := tx.Answers().Delete(ctx, rows[i].ID); err != nil {
			return uuid.Nil, Error.Wrap(err)
		}
	}

	inspection.Status = StatusSubmitted
	inspection.Progress = 100
	inspection.CompletedAt = &now
	inspection.UpdatedBy = &auth.User.ID
	if err := tx.Inspections().Update(ctx, inspection); err != nil {
		return uuid.Nil, Error.Wrap(err)
	}

	return created.ID, nil
}

// advance updates inspection status and progress for a non-completion
// write. Progress never decreases and stays below 100 until submission.
func (service *Service) advance(ctx context.Context, tx DBTx, inspection *Inspection, write SectionWrite, auth Authorization, now time.Time, catalogue *Catalogue) error {
	changed := false

	if inspection.Status == StatusDraft {
		inspection.Status = StatusInProgress
		changed = true
	}

	progress := write.Progress
	if progress <= 0 {
		if index, ok := catalogue.IndexOf(write.Section); ok {
			progress = int(math.Round(float64(index+1) / float64(catalogue.Len()) * 100))
		}
	}
	if progress > 99 {
		progress = 99
	}
	if progress > inspection.Progress {
		inspection.Progress = progress
		changed = true
	}

	if changed {
		inspection.UpdatedBy = &auth.User.ID
		inspection.UpdatedAt = now
		return Error.Wrap(tx.Inspections().Update(ctx, inspection))
	}
	return nil
}

// allSectionsAnswered reports whether every content section of the
// catalogue appears in the collapsed view of the given answer rows.
func allSectionsAnswered(rows []Answer, catalogue *Catalogue) bool {
	answered := map[string]bool{}
	for _, row := range rows {
		for _, key := range row.Answers.Keys() {
			answered[key] = true
		}
	}

	for _, key := range catalogue.SectionKeys() {
		if !answered[key] {
			return false
		}
	}
	return true
}

// loadAccessible loads a live inspection and checks the caller may act on it.
func (service *Service) loadAccessible(ctx context.Context, auth Authorization, id uuid.UUID) (*Inspection, error) {
	inspection, err := service.db.Inspections().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inspection.DeletedAt != nil {
		return nil, ErrNoRecord.New("inspection %s is deleted", id)
	}
	if !auth.CanAccess(inspection) {
		return nil, ErrForbidden.New("no access to inspection %s", id)
	}
	return inspection, nil
}

// catalogueFor loads the inspection's template catalogue, falling back to
// the built-in six section questionnaire when no template is referenced.
func (service *Service) catalogueFor(ctx context.Context, inspection *Inspection) (*Catalogue, error) {
	if inspection.TemplateID == nil {
		return DefaultCatalogue(), nil
	}
	template, err := service.db.Templates().Get(ctx, *inspection.TemplateID)
	if err != nil {
		return nil, err
	}
	return template.Catalogue()
}
