// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/scaleinspect/inspectd/inspection"
)

type organizations struct {
	base
}

func (orgs *organizations) Get(ctx context.Context, id uuid.UUID) (*inspection.Organization, error) {
	return orgs.getWhere(ctx, `id = ?`, id.String())
}

func (orgs *organizations) GetByCode(ctx context.Context, code string) (*inspection.Organization, error) {
	return orgs.getWhere(ctx, `code = ?`, code)
}

func (orgs *organizations) getWhere(ctx context.Context, where string, arg interface{}) (*inspection.Organization, error) {
	row := orgs.db.QueryRowContext(ctx, orgs.rebind(`
		SELECT id, name, code, contact_name, contact_phone, contact_email, created_at
		FROM organizations WHERE `+where), arg)

	var org inspection.Organization
	var id string
	err := row.Scan(&id, &org.Name, &org.Code, &org.ContactName, &org.ContactPhone, &org.ContactEmail, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inspection.ErrNoRecord.New("organization not found")
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if org.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	return &org, nil
}

func (orgs *organizations) Insert(ctx context.Context, org *inspection.Organization) (*inspection.Organization, error) {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	org.CreatedAt = time.Now().UTC()

	_, err := orgs.db.ExecContext(ctx, orgs.rebind(`
		INSERT INTO organizations ( id, name, code, contact_name, contact_phone, contact_email, created_at )
		VALUES ( ?, ?, ?, ?, ?, ?, ? )`),
		org.ID.String(), org.Name, org.Code, org.ContactName, org.ContactPhone, org.ContactEmail, org.CreatedAt)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return org, nil
}
