// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package report composes Word documents from completed inspection
// aggregates.
package report

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/imagestore"
	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/report/docxtmpl"
)

var (
	mon = monkit.Package()

	// Error is the default report errs class.
	Error = errs.Class("report")
	// ErrTemplateMissing is returned when the document template file is
	// absent.
	ErrTemplateMissing = errs.Class("report template missing")
)

// Config holds the report composer settings.
type Config struct {
	TemplateFile string `help:"path to the .docx report template" default:"templates/report.docx"`
}

// Composer renders .docx reports from the answer aggregate and its images.
//
// architecture: Service
type Composer struct {
	log    *zap.Logger
	db     inspection.DB
	store  *imagestore.Store
	config Config
}

// NewComposer creates a report composer.
func NewComposer(log *zap.Logger, db inspection.DB, store *imagestore.Store, config Config) *Composer {
	return &Composer{log: log, db: db, store: store, config: config}
}

// Compose renders the document for an answer row and returns the .docx
// bytes.
func (composer *Composer) Compose(ctx context.Context, answerID uuid.UUID) (_ []byte, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := os.Stat(composer.config.TemplateFile); err != nil {
		return nil, ErrTemplateMissing.New("%s", composer.config.TemplateFile)
	}

	answer, err := composer.db.Answers().Get(ctx, answerID)
	if err != nil {
		return nil, err
	}
	record, err := composer.db.Inspections().Get(ctx, answer.InspectionID)
	if err != nil {
		return nil, err
	}

	data, err := composer.hydrate(ctx, record, answer)
	if err != nil {
		return nil, err
	}

	template, err := docxtmpl.Open(composer.config.TemplateFile)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	document, err := template.Render(data)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return document, nil
}
