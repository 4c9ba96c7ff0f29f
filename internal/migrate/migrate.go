// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package migrate implements versioned database migrations.
package migrate

import (
	"database/sql"
	"fmt"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// Error is the default migrate errs class.
var Error = errs.Class("migrate")

// Migration describes a migration steps.
type Migration struct {
	Table string
	Steps []*Step
}

// Step describes a single step in migration.
type Step struct {
	Description string
	Version     int
	Action      Action
}

// Action is something that needs to be done.
type Action interface {
	Run(log *zap.Logger, tx *sql.Tx) error
}

// SQL statements that need to be executed.
type SQL []string

// Run runs the SQL statements.
func (sql SQL) Run(log *zap.Logger, tx *sql.Tx) error {
	for _, query := range sql {
		_, err := tx.Exec(query)
		if err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

// Func is an arbitrary operation.
type Func func(log *zap.Logger, tx *sql.Tx) error

// Run runs the migration function.
func (fn Func) Run(log *zap.Logger, tx *sql.Tx) error {
	return fn(log, tx)
}

// Run applies every unapplied step in version order and records the
// resulting version in the versions table.
func (migration *Migration) Run(log *zap.Logger, db *sql.DB) error {
	err := migration.ensureVersionTable(db)
	if err != nil {
		return Error.Wrap(err)
	}

	version, err := migration.currentVersion(db)
	if err != nil {
		return Error.Wrap(err)
	}

	last := -1
	for _, step := range migration.Steps {
		if step.Version <= last {
			return Error.New("steps have incorrect order")
		}
		last = step.Version

		if step.Version <= version {
			continue
		}

		stepLog := log.Named(migration.Table)
		stepLog.Info("running migration step",
			zap.Int("version", step.Version),
			zap.String("description", step.Description))

		tx, err := db.Begin()
		if err != nil {
			return Error.Wrap(err)
		}

		err = step.Action.Run(stepLog, tx)
		if err != nil {
			return Error.Wrap(errs.Combine(err, tx.Rollback()))
		}

		err = migration.addVersion(tx, step.Version)
		if err != nil {
			return Error.Wrap(errs.Combine(err, tx.Rollback()))
		}

		if err := tx.Commit(); err != nil {
			return Error.Wrap(err)
		}
	}

	return nil
}

// ensureVersionTable creates the versions table when missing.
func (migration *Migration) ensureVersionTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + migration.Table + ` (version int, commited_at text)`)
	return Error.Wrap(err)
}

// currentVersion finds the latest applied version, -1 when none applied.
func (migration *Migration) currentVersion(db *sql.DB) (int, error) {
	var version sql.NullInt64
	err := db.QueryRow(`SELECT MAX(version) FROM ` + migration.Table).Scan(&version)
	if err == sql.ErrNoRows || !version.Valid {
		return -1, nil
	}
	if err != nil {
		return -1, Error.Wrap(err)
	}
	return int(version.Int64), nil
}

// addVersion adds information about a new applied version. The version is
// formatted inline so the statement works on both sqlite and postgres
// placeholder dialects.
func (migration *Migration) addVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec(fmt.Sprintf(
		`INSERT INTO %s (version, commited_at) VALUES (%d, CURRENT_TIMESTAMP)`,
		migration.Table, version,
	))
	return Error.Wrap(err)
}
