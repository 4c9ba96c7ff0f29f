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

	"github.com/scaleinspect/inspectd/inspection"
)

type templates struct {
	base
}

func (templates *templates) Get(ctx context.Context, id uuid.UUID) (*inspection.Template, error) {
	row := templates.db.QueryRowContext(ctx, templates.rebind(`
		SELECT id, name, questions, created_at
		FROM inspection_templates WHERE id = ?`), id.String())

	var template inspection.Template
	var templateID, questions string
	err := row.Scan(&templateID, &template.Name, &questions, &template.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inspection.ErrNoRecord.New("template not found")
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if template.ID, err = parseUUID(templateID); err != nil {
		return nil, err
	}
	template.Questions = json.RawMessage(questions)
	return &template, nil
}

func (templates *templates) Insert(ctx context.Context, template *inspection.Template) (*inspection.Template, error) {
	// reject malformed questions before they hit storage
	if _, err := inspection.ParseCatalogue(template.Questions); err != nil {
		return nil, err
	}

	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}
	template.CreatedAt = time.Now().UTC()

	_, err := templates.db.ExecContext(ctx, templates.rebind(`
		INSERT INTO inspection_templates ( id, name, questions, created_at )
		VALUES ( ?, ?, ?, ? )`),
		template.ID.String(), template.Name, string(template.Questions), template.CreatedAt)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return template, nil
}
