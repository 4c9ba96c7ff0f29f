// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/scaleinspect/inspectd/inspection"
)

type images struct {
	base
}

const imageColumns = `id, answer_id, field_id, section, image_order, image_url, file_name, uploaded_by, created_at`

func (images *images) Get(ctx context.Context, id uuid.UUID) (*inspection.QuestionImage, error) {
	row := images.db.QueryRowContext(ctx, images.rebind(`
		SELECT `+imageColumns+`
		FROM inspection_question_images WHERE id = ?`), id.String())

	image, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inspection.ErrNoRecord.New("image not found")
	}
	if err != nil {
		return nil, err
	}
	return image, nil
}

func (images *images) GetBySlot(ctx context.Context, answerID uuid.UUID, fieldID string, order int) (*inspection.QuestionImage, error) {
	row := images.db.QueryRowContext(ctx, images.rebind(`
		SELECT `+imageColumns+`
		FROM inspection_question_images
		WHERE answer_id = ? AND field_id = ? AND image_order = ?`),
		answerID.String(), fieldID, order)

	image, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return image, nil
}

func scanImage(row scanner) (*inspection.QuestionImage, error) {
	var image inspection.QuestionImage
	var id, answerID, uploadedBy string

	err := row.Scan(&id, &answerID, &image.FieldID, &image.Section, &image.ImageOrder,
		&image.ImageURL, &image.FileName, &uploadedBy, &image.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, Error.Wrap(err)
	}

	if image.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	if image.AnswerID, err = parseUUID(answerID); err != nil {
		return nil, err
	}
	if image.UploadedBy, err = parseUUID(uploadedBy); err != nil {
		return nil, err
	}
	return &image, nil
}

func (images *images) Insert(ctx context.Context, image *inspection.QuestionImage) (*inspection.QuestionImage, error) {
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	image.CreatedAt = time.Now().UTC()

	_, err := images.db.ExecContext(ctx, images.rebind(`
		INSERT INTO inspection_question_images ( `+imageColumns+` )
		VALUES ( ?, ?, ?, ?, ?, ?, ?, ?, ? )`),
		image.ID.String(), image.AnswerID.String(), image.FieldID, image.Section, image.ImageOrder,
		image.ImageURL, image.FileName, image.UploadedBy.String(), image.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, inspection.ErrImageExists.New("field %s order %d", image.FieldID, image.ImageOrder)
		}
		return nil, Error.Wrap(err)
	}
	return image, nil
}

func (images *images) ListByAnswer(ctx context.Context, answerID uuid.UUID) ([]inspection.QuestionImage, error) {
	return images.listWhere(ctx, `answer_id = ?`, answerID.String())
}

func (images *images) ListByInspection(ctx context.Context, inspectionID uuid.UUID) ([]inspection.QuestionImage, error) {
	return images.listWhere(ctx, `answer_id IN (
		SELECT id FROM inspection_answers WHERE inspection_id = ? )`, inspectionID.String())
}

func (images *images) listWhere(ctx context.Context, where string, arg interface{}) (_ []inspection.QuestionImage, err error) {
	rows, err := images.db.QueryContext(ctx, images.rebind(`
		SELECT `+imageColumns+`
		FROM inspection_question_images
		WHERE `+where+`
		ORDER BY section ASC, field_id ASC, image_order ASC`), arg)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var list []inspection.QuestionImage
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *image)
	}
	return list, Error.Wrap(rows.Err())
}

func (images *images) ReparentByInspection(ctx context.Context, inspectionID, answerID uuid.UUID) error {
	_, err := images.db.ExecContext(ctx, images.rebind(`
		UPDATE inspection_question_images SET answer_id = ? WHERE answer_id IN (
			SELECT id FROM inspection_answers WHERE inspection_id = ? )`),
		answerID.String(), inspectionID.String())
	return Error.Wrap(err)
}

func (images *images) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := images.db.ExecContext(ctx, images.rebind(`
		DELETE FROM inspection_question_images WHERE id = ?`), id.String())
	return Error.Wrap(err)
}

func (images *images) DeleteByInspection(ctx context.Context, inspectionID uuid.UUID) error {
	_, err := images.db.ExecContext(ctx, images.rebind(`
		DELETE FROM inspection_question_images WHERE answer_id IN (
			SELECT id FROM inspection_answers WHERE inspection_id = ? )`), inspectionID.String())
	return Error.Wrap(err)
}
