// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectapi

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/report"
)

const docxMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Documents streams rendered reports.
type Documents struct {
	log      *zap.Logger
	service  *inspection.Service
	composer *report.Composer
}

// NewDocuments creates the documents handler.
func NewDocuments(log *zap.Logger, service *inspection.Service, composer *report.Composer) *Documents {
	return &Documents{log: log, service: service, composer: composer}
}

// Download renders and streams the .docx report of an answer.
func (h *Documents) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	answerID, err := uuid.Parse(mux.Vars(r)["answerId"])
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid answer id"))
		return
	}

	// access check through the owning inspection
	answer, record, err := h.service.GetAnswer(ctx, answerID)
	if err != nil {
		ServeError(h.log, w, err)
		return
	}

	document, err := h.composer.Compose(ctx, answer.ID)
	if err != nil {
		ServeError(h.log, w, err)
		return
	}

	w.Header().Set("Content-Type", docxMime)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="inspection_%s.docx"`, record.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(document)
}
