// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectdb

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ids are stored as their 36 character text form.

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, Error.Wrap(err)
	}
	return id, nil
}

func nullUUIDValue(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func parseNullUUID(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid {
		return nil, nil
	}
	id, err := parseUUID(ns.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func nullTimeValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
