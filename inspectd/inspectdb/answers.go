// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/inspection/ordered"
)

type answers struct {
	base
}

func (answers *answers) Get(ctx context.Context, id uuid.UUID) (*inspection.Answer, error) {
	row := answers.db.QueryRowContext(ctx, answers.rebind(`
		SELECT id, inspection_id, answers, answered_by, answered_at, created_at
		FROM inspection_answers WHERE id = ?`), id.String())

	answer, err := scanAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inspection.ErrNoRecord.New("answer not found")
	}
	if err != nil {
		return nil, err
	}
	return answer, nil
}

func scanAnswer(row scanner) (*inspection.Answer, error) {
	var answer inspection.Answer
	var id, inspectionID, answeredBy, doc string

	err := row.Scan(&id, &inspectionID, &doc, &answeredBy, &answer.AnsweredAt, &answer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, Error.Wrap(err)
	}

	if answer.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	if answer.InspectionID, err = parseUUID(inspectionID); err != nil {
		return nil, err
	}
	if answer.AnsweredBy, err = parseUUID(answeredBy); err != nil {
		return nil, err
	}
	if answer.Answers, err = ordered.Parse([]byte(doc)); err != nil {
		return nil, Error.Wrap(err)
	}
	return &answer, nil
}

func (answers *answers) ListByInspection(ctx context.Context, inspectionID uuid.UUID) (_ []inspection.Answer, err error) {
	rows, err := answers.db.QueryContext(ctx, answers.rebind(`
		SELECT id, inspection_id, answers, answered_by, answered_at, created_at
		FROM inspection_answers
		WHERE inspection_id = ?
		ORDER BY answered_at ASC, created_at ASC`), inspectionID.String())
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var list []inspection.Answer
	for rows.Next() {
		answer, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *answer)
	}
	return list, Error.Wrap(rows.Err())
}

func (answers *answers) Insert(ctx context.Context, answer *inspection.Answer) (*inspection.Answer, error) {
	if answer.ID == uuid.Nil {
		answer.ID = uuid.New()
	}
	if answer.Answers == nil {
		answer.Answers = ordered.NewDoc()
	}
	answer.CreatedAt = time.Now().UTC()
	if answer.AnsweredAt.IsZero() {
		answer.AnsweredAt = answer.CreatedAt
	}

	doc, err := json.Marshal(answer.Answers)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	_, err = answers.db.ExecContext(ctx, answers.rebind(`
		INSERT INTO inspection_answers ( id, inspection_id, answers, answered_by, answered_at, created_at )
		VALUES ( ?, ?, ?, ?, ?, ? )`),
		answer.ID.String(), answer.InspectionID.String(), string(doc),
		answer.AnsweredBy.String(), answer.AnsweredAt, answer.CreatedAt)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return answer, nil
}

func (answers *answers) Update(ctx context.Context, answer *inspection.Answer) error {
	doc, err := json.Marshal(answer.Answers)
	if err != nil {
		return Error.Wrap(err)
	}

	result, err := answers.db.ExecContext(ctx, answers.rebind(`
		UPDATE inspection_answers
		SET answers = ?, answered_by = ?, answered_at = ?
		WHERE id = ?`),
		string(doc), answer.AnsweredBy.String(), answer.AnsweredAt, answer.ID.String())
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return inspection.ErrNoRecord.New("answer %s not found", answer.ID)
	}
	return nil
}

func (answers *answers) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := answers.db.ExecContext(ctx, answers.rebind(`
		DELETE FROM inspection_answers WHERE id = ?`), id.String())
	return Error.Wrap(err)
}

func (answers *answers) DeleteByInspection(ctx context.Context, inspectionID uuid.UUID) error {
	_, err := answers.db.ExecContext(ctx, answers.rebind(`
		DELETE FROM inspection_answers WHERE inspection_id = ?`), inspectionID.String())
	return Error.Wrap(err)
}
