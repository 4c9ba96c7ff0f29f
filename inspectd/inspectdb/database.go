// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package inspectdb implements inspection.DB on sqlite3 and postgres.
package inspectdb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/internal/dbutil"
	"github.com/scaleinspect/inspectd/internal/migrate"
)

// Error is the default inspectdb errs class.
var Error = errs.Class("inspectdb")

// DB implements inspection.DB on database/sql.
//
// architecture: Database
type DB struct {
	log  *zap.Logger
	db   *sql.DB
	impl dbutil.Implementation
}

// Open connects to the database URL and pings it.
func Open(log *zap.Logger, databaseURL string) (*DB, error) {
	driver, source, impl, err := dbutil.SplitConnStr(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := db.Ping(); err != nil {
		return nil, Error.Wrap(errs.Combine(err, db.Close()))
	}

	if impl == dbutil.SQLite3 {
		// cross connection writes would otherwise race on the file lock
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			return nil, Error.Wrap(errs.Combine(err, db.Close()))
		}
	}

	return &DB{log: log, db: db, impl: impl}, nil
}

// Close closes the underlying database.
func (db *DB) Close() error {
	return Error.Wrap(db.db.Close())
}

// MigrateToLatest applies all pending schema migrations.
func (db *DB) MigrateToLatest(ctx context.Context) error {
	return db.Migration().Run(db.log.Named("migration"), db.db)
}

// Migration returns the schema migration steps.
func (db *DB) Migration() *migrate.Migration {
	return &migrate.Migration{
		Table: "versions",
		Steps: []*migrate.Step{
			{
				Description: "Initial setup",
				Version:     0,
				Action: migrate.SQL{
					`CREATE TABLE organizations (
						id TEXT NOT NULL,
						name TEXT NOT NULL,
						code TEXT NOT NULL,
						contact_name TEXT NOT NULL DEFAULT '',
						contact_phone TEXT NOT NULL DEFAULT '',
						contact_email TEXT NOT NULL DEFAULT '',
						created_at TIMESTAMP NOT NULL,
						PRIMARY KEY ( id ),
						UNIQUE ( code )
					)`,
					`CREATE TABLE users (
						id TEXT NOT NULL,
						organization_id TEXT NOT NULL REFERENCES organizations( id ),
						full_name TEXT NOT NULL,
						email TEXT NOT NULL,
						password_hash BYTEA NOT NULL,
						role TEXT NOT NULL,
						created_at TIMESTAMP NOT NULL,
						PRIMARY KEY ( id ),
						UNIQUE ( email )
					)`,
					`CREATE TABLE sites (
						id TEXT NOT NULL,
						organization_id TEXT NOT NULL REFERENCES organizations( id ),
						name TEXT NOT NULL,
						location TEXT NOT NULL DEFAULT '',
						created_at TIMESTAMP NOT NULL,
						PRIMARY KEY ( id )
					)`,
					`CREATE TABLE contracts (
						id TEXT NOT NULL,
						organization_id TEXT NOT NULL REFERENCES organizations( id ),
						number TEXT NOT NULL,
						created_at TIMESTAMP NOT NULL,
						PRIMARY KEY ( id )
					)`,
					`CREATE TABLE device_models (
						id TEXT NOT NULL,
						name TEXT NOT NULL,
						manufacturer TEXT NOT NULL DEFAULT '',
						created_at TIMESTAMP NOT NULL,
						PRIMARY KEY ( id )
					)`,
					`CREATE TABLE devices (
						id TEXT NOT NULL,
						organization_id TEXT NOT NULL REFERENCES organizations( id ),
						model_id TEXT REFERENCES device_models( id ),
						site_id TEXT REFERENCES sites( id ),
						serial_number TEXT NOT NULL,
						name TEXT NOT NULL DEFAULT '',
						created_at TIMESTAMP NOT NULL,
						PRIMARY KEY ( id )
					)`,
					`CREATE TABLE inspection_templates (
						id TEXT NOT NULL,
						name TEXT NOT NULL,
						questions TEXT NOT NULL,
						created_at TIMESTAMP NOT NULL,
						PRIMARY KEY ( id )
					)`,
					`CREATE TABLE inspections (
						id TEXT NOT NULL,
						organization_id TEXT NOT NULL REFERENCES organizations( id ),
						device_id TEXT NOT NULL REFERENCES devices( id ),
						site_id TEXT REFERENCES sites( id ),
						contract_id TEXT REFERENCES contracts( id ),
						template_id TEXT REFERENCES inspection_templates( id ),
						title TEXT NOT NULL,
						type TEXT NOT NULL,
						schedule_type TEXT NOT NULL,
						status TEXT NOT NULL,
						progress INTEGER NOT NULL DEFAULT 0,
						assigned_to TEXT REFERENCES users( id ),
						created_by TEXT NOT NULL REFERENCES users( id ),
						updated_by TEXT REFERENCES users( id ),
						scheduled_for TIMESTAMP,
						completed_at TIMESTAMP,
						created_at TIMESTAMP NOT NULL,
						updated_at TIMESTAMP NOT NULL,
						deleted_at TIMESTAMP,
						PRIMARY KEY ( id )
					)`,
					`CREATE TABLE inspection_answers (
						id TEXT NOT NULL,
						inspection_id TEXT NOT NULL REFERENCES inspections( id ),
						answers TEXT NOT NULL,
						answered_by TEXT NOT NULL REFERENCES users( id ),
						answered_at TIMESTAMP NOT NULL,
						created_at TIMESTAMP NOT NULL,
						PRIMARY KEY ( id )
					)`,
					`CREATE TABLE inspection_question_images (
						id TEXT NOT NULL,
						answer_id TEXT NOT NULL REFERENCES inspection_answers( id ) ON DELETE CASCADE,
						field_id TEXT NOT NULL,
						section TEXT NOT NULL DEFAULT '',
						image_order INTEGER NOT NULL,
						image_url TEXT NOT NULL,
						file_name TEXT NOT NULL,
						uploaded_by TEXT NOT NULL REFERENCES users( id ),
						created_at TIMESTAMP NOT NULL,
						PRIMARY KEY ( id ),
						UNIQUE ( answer_id, field_id, image_order )
					)`,
					`CREATE INDEX inspections_assigned_to_index ON inspections ( assigned_to )`,
					`CREATE INDEX inspection_answers_inspection_id_index ON inspection_answers ( inspection_id )`,
					`CREATE INDEX inspection_question_images_answer_id_index ON inspection_question_images ( answer_id )`,
				},
			},
		},
	}
}

// Organizations returns the organizations table.
func (db *DB) Organizations() inspection.Organizations { return &organizations{base{db.db, db.impl}} }

// Users returns the users table.
func (db *DB) Users() inspection.Users { return &users{base{db.db, db.impl}} }

// Devices returns the devices table.
func (db *DB) Devices() inspection.Devices { return &devices{base{db.db, db.impl}} }

// Sites returns the sites table.
func (db *DB) Sites() inspection.Sites { return &sites{base{db.db, db.impl}} }

// Contracts returns the contracts table.
func (db *DB) Contracts() inspection.Contracts { return &contracts{base{db.db, db.impl}} }

// Templates returns the inspection templates table.
func (db *DB) Templates() inspection.Templates { return &templates{base{db.db, db.impl}} }

// Inspections returns the inspections table.
func (db *DB) Inspections() inspection.Inspections { return &inspections{base{db.db, db.impl}} }

// Answers returns the inspection answers table.
func (db *DB) Answers() inspection.Answers { return &answers{base{db.db, db.impl}} }

// Images returns the question images table.
func (db *DB) Images() inspection.Images { return &images{base{db.db, db.impl}} }

// BeginTx starts a transaction scoped view of the tables.
func (db *DB) BeginTx(ctx context.Context) (inspection.DBTx, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &dbTx{tx: tx, impl: db.impl}, nil
}

type dbTx struct {
	tx   *sql.Tx
	impl dbutil.Implementation
}

func (tx *dbTx) Inspections() inspection.Inspections { return &inspections{base{tx.tx, tx.impl}} }
func (tx *dbTx) Answers() inspection.Answers         { return &answers{base{tx.tx, tx.impl}} }
func (tx *dbTx) Images() inspection.Images           { return &images{base{tx.tx, tx.impl}} }

func (tx *dbTx) Commit() error   { return Error.Wrap(tx.tx.Commit()) }
func (tx *dbTx) Rollback() error { return Error.Wrap(tx.tx.Rollback()) }

// queryer covers *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// base carries the handle and placeholder dialect shared by all tables.
type base struct {
	db   queryer
	impl dbutil.Implementation
}

// rebind translates ? placeholders into the dialect of the implementation.
func (b base) rebind(query string) string {
	return dbutil.Rebind(b.impl, query)
}

// isUniqueViolation reports whether the error is a unique constraint
// violation on either backend.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
