// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectdb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scaleinspect/inspectd/inspection"
)

type users struct {
	base
}

func (users *users) Get(ctx context.Context, id uuid.UUID) (*inspection.User, error) {
	return users.getWhere(ctx, `id = ?`, id.String())
}

func (users *users) GetByEmail(ctx context.Context, email string) (*inspection.User, error) {
	return users.getWhere(ctx, `email = ?`, strings.ToLower(email))
}

func (users *users) getWhere(ctx context.Context, where string, arg interface{}) (*inspection.User, error) {
	row := users.db.QueryRowContext(ctx, users.rebind(`
		SELECT id, organization_id, full_name, email, password_hash, role, created_at
		FROM users WHERE `+where), arg)

	var user inspection.User
	var id, orgID, role string
	err := row.Scan(&id, &orgID, &user.FullName, &user.Email, &user.PasswordHash, &role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inspection.ErrNoRecord.New("user not found")
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if user.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	if user.OrganizationID, err = parseUUID(orgID); err != nil {
		return nil, err
	}
	user.Role = inspection.Role(role)
	return &user, nil
}

func (users *users) Insert(ctx context.Context, user *inspection.User) (*inspection.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.Now().UTC()

	_, err := users.db.ExecContext(ctx, users.rebind(`
		INSERT INTO users ( id, organization_id, full_name, email, password_hash, role, created_at )
		VALUES ( ?, ?, ?, ?, ?, ?, ? )`),
		user.ID.String(), user.OrganizationID.String(), user.FullName, user.Email,
		user.PasswordHash, string(user.Role), user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, inspection.ErrValidation.New("email %s is already registered", user.Email)
		}
		return nil, Error.Wrap(err)
	}
	return user, nil
}
