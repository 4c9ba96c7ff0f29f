// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspection

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/scaleinspect/inspectd/inspection/ordered"
)

// ImageSlot returns the image currently occupying the (answer, field,
// order) slot, or nil when the slot is free.
func (service *Service) ImageSlot(ctx context.Context, answerID uuid.UUID, fieldID string, order int) (_ *QuestionImage, err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = GetAuth(ctx)
	if err != nil {
		return nil, err
	}

	return service.db.Images().GetBySlot(ctx, answerID, fieldID, order)
}

// RecordImage stores the metadata row of an uploaded question image. The
// (answer, field, order) slot must be free.
func (service *Service) RecordImage(ctx context.Context, image *QuestionImage) (_ *QuestionImage, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return nil, err
	}

	if image.ImageOrder < 1 {
		return nil, ErrValidation.New("image order must be at least 1, got %d", image.ImageOrder)
	}
	if image.FieldID == "" {
		return nil, ErrValidation.New("field id is required")
	}

	answer, err := service.db.Answers().Get(ctx, image.AnswerID)
	if err != nil {
		return nil, err
	}
	if _, err := service.loadAccessible(ctx, auth, answer.InspectionID); err != nil {
		return nil, err
	}

	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	image.UploadedBy = auth.User.ID

	return service.db.Images().Insert(ctx, image)
}

// ListImages returns the images of an inspection, optionally filtered by
// field and section, ordered by (section, field, order).
func (service *Service) ListImages(ctx context.Context, inspectionID uuid.UUID, fieldID, section string) (_ []QuestionImage, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := service.loadAccessible(ctx, auth, inspectionID); err != nil {
		return nil, err
	}

	images, err := service.db.Images().ListByInspection(ctx, inspectionID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if fieldID == "" && section == "" {
		return images, nil
	}

	filtered := images[:0]
	for _, image := range images {
		if fieldID != "" && image.FieldID != fieldID {
			continue
		}
		if section != "" && image.Section != section {
			continue
		}
		filtered = append(filtered, image)
	}
	return filtered, nil
}

// DeleteImage removes a single image row.
func (service *Service) DeleteImage(ctx context.Context, id uuid.UUID) (_ *QuestionImage, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return nil, err
	}

	image, err := service.db.Images().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	answer, err := service.db.Answers().Get(ctx, image.AnswerID)
	if err != nil {
		return nil, err
	}
	if _, err := service.loadAccessible(ctx, auth, answer.InspectionID); err != nil {
		return nil, err
	}

	return image, service.db.Images().Delete(ctx, id)
}

// SaveSignature merges a role to data-url signature into the aggregate of
// the inspection, locating the target row by id or structural probe.
func (service *Service) SaveSignature(ctx context.Context, inspectionID uuid.UUID, signatureType, dataURL string, answerID *uuid.UUID) (_ uuid.UUID, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	signatureType = strings.TrimSpace(signatureType)
	if signatureType == "" {
		return uuid.Nil, ErrValidation.New("signature type is required")
	}
	if !strings.HasPrefix(dataURL, "data:image/") {
		return uuid.Nil, ErrValidation.New("signature image must be a data url")
	}

	inspection, err := service.loadAccessible(ctx, auth, inspectionID)
	if err != nil {
		return uuid.Nil, err
	}
	catalogue, err := service.catalogueFor(ctx, inspection)
	if err != nil {
		return uuid.Nil, err
	}

	signatures := ordered.NewDoc()
	signatures.Set(signatureType, dataURL)
	writeDoc := ordered.NewDoc()
	writeDoc.Set(KeySignatures, signatures)

	tx, err := service.db.BeginTx(ctx)
	if err != nil {
		return uuid.Nil, Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, tx.Rollback())
			return
		}
		err = Error.Wrap(tx.Commit())
	}()

	rows, err := tx.Answers().ListByInspection(ctx, inspectionID)
	if err != nil {
		return uuid.Nil, Error.Wrap(err)
	}

	var target *Answer
	if answerID != nil {
		for i := range rows {
			if rows[i].ID == *answerID {
				target = &rows[i]
				break
			}
		}
		if target == nil {
			return uuid.Nil, ErrValidation.New("answer %s does not belong to inspection %s", answerID, inspectionID)
		}
	} else {
		target = probeMainRow(rows, catalogue)
	}
	if target == nil {
		return uuid.Nil, ErrNoRecord.New("no answer row for signature write")
	}

	target.Answers = mergeIntoAggregate(target.Answers, writeDoc, catalogue)
	target.AnsweredBy = auth.User.ID
	target.AnsweredAt = time.Now().UTC()
	if err := tx.Answers().Update(ctx, target); err != nil {
		return uuid.Nil, Error.Wrap(err)
	}
	return target.ID, nil
}
