// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/imagestore"
	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/inspection/ordered"
	"github.com/scaleinspect/inspectd/notify"
)

// Inspections handles the aggregation and lifecycle endpoints.
type Inspections struct {
	log      *zap.Logger
	service  *inspection.Service
	store    *imagestore.Store
	notifier *notify.Notifier
}

// NewInspections creates the inspections handler.
func NewInspections(log *zap.Logger, service *inspection.Service, store *imagestore.Store, notifier *notify.Notifier) *Inspections {
	return &Inspections{log: log, service: service, store: store, notifier: notifier}
}

// sectionRequest is the body of a section write.
type sectionRequest struct {
	InspectionID   string          `json:"inspectionId"`
	Section        string          `json:"section"`
	Answers        json.RawMessage `json:"answers"`
	Data           json.RawMessage `json:"data"`
	AnswerID       string          `json:"answerId"`
	SectionIndex   int             `json:"sectionIndex"`
	IsFirstSection bool            `json:"isFirstSection"`
	Status         string          `json:"status"`
	SectionStatus  string          `json:"sectionStatus"`
	Progress       int             `json:"progress"`
}

// SubmitSection merges one partial section write into the aggregate.
func (h *Inspections) SubmitSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	var request sectionRequest
	if err = json.NewDecoder(r.Body).Decode(&request); err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("malformed request body"))
		return
	}

	inspectionID, err := uuid.Parse(request.InspectionID)
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid inspection id"))
		return
	}

	raw := request.Answers
	if len(raw) == 0 {
		raw = request.Data
	}
	if len(raw) == 0 {
		ServeError(h.log, w, inspection.ErrValidation.New("answers are required"))
		return
	}
	payload, err := ordered.Parse(raw)
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("answers must be an object"))
		return
	}

	write := inspection.SectionWrite{
		InspectionID:   inspectionID,
		Section:        request.Section,
		Payload:        payload,
		SectionIndex:   request.SectionIndex,
		IsFirstSection: request.IsFirstSection,
		Status:         request.Status,
		SectionStatus:  inspection.SectionStatus(request.SectionStatus),
		Progress:       request.Progress,
	}
	if request.AnswerID != "" {
		answerID, err := uuid.Parse(request.AnswerID)
		if err != nil {
			ServeError(h.log, w, inspection.ErrValidation.New("invalid answer id"))
			return
		}
		write.AnswerID = &answerID
	}

	result, err := h.service.SubmitSection(ctx, write)
	if err != nil {
		ServeError(h.log, w, err)
		return
	}

	if result.IsCompletion {
		h.notifier.InspectionCompleted(inspectionID, result.AnswerID)
	}

	sendData(w, http.StatusOK, "section saved", map[string]interface{}{
		"answerId":     result.AnswerID,
		"section":      result.Section,
		"nextSection":  result.NextSection,
		"isLast":       result.IsLast,
		"isCompletion": result.IsCompletion,
		"sectionOrder": result.SectionOrder,
		"progress":     result.Progress,
		"status":       result.Status,
	})
}

// SaveSignature stores a data-url signature into the aggregate.
func (h *Inspections) SaveSignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	inspectionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid inspection id"))
		return
	}

	var request struct {
		SignatureImage string `json:"signatureImage"`
		SignatureType  string `json:"signatureType"`
		AnswerID       string `json:"answerId"`
	}
	if err = json.NewDecoder(r.Body).Decode(&request); err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("malformed request body"))
		return
	}

	var answerID *uuid.UUID
	if request.AnswerID != "" {
		id, err := uuid.Parse(request.AnswerID)
		if err != nil {
			ServeError(h.log, w, inspection.ErrValidation.New("invalid answer id"))
			return
		}
		answerID = &id
	}

	signatureType := request.SignatureType
	if signatureType == "" {
		signatureType = "inspector"
	}

	savedID, err := h.service.SaveSignature(ctx, inspectionID, signatureType, request.SignatureImage, answerID)
	if err != nil {
		ServeError(h.log, w, err)
		return
	}

	sendData(w, http.StatusOK, "signature saved", map[string]interface{}{
		"answerId":      savedID,
		"signatureType": signatureType,
	})
}

// ListByScheduleType returns the caller's open inspections of a schedule
// type.
func (h *Inspections) ListByScheduleType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	scheduleType, err := inspection.ParseScheduleType(mux.Vars(r)["scheduleType"])
	if err != nil {
		ServeError(h.log, w, err)
		return
	}

	list, err := h.service.ListByScheduleType(ctx, scheduleType)
	if err != nil {
		ServeError(h.log, w, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(list))
	for _, record := range list {
		items = append(items, map[string]interface{}{
			"id":           record.ID,
			"title":        record.Title,
			"type":         record.Type,
			"scheduleType": record.ScheduleType,
			"status":       record.Status,
			"progress":     record.Progress,
			"scheduledFor": record.ScheduledFor,
			"createdAt":    record.CreatedAt,
		})
	}
	sendData(w, http.StatusOK, "inspections", items)
}

// Assign sets the inspector of an inspection and emails them.
func (h *Inspections) Assign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	inspectionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid inspection id"))
		return
	}

	var request struct {
		UserID string `json:"userId"`
	}
	if err = json.NewDecoder(r.Body).Decode(&request); err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("malformed request body"))
		return
	}
	userID, err := uuid.Parse(request.UserID)
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid user id"))
		return
	}

	record, assignee, err := h.service.Assign(ctx, inspectionID, userID)
	if err != nil {
		ServeError(h.log, w, err)
		return
	}
	h.notifier.InspectionAssigned(record, assignee)

	sendData(w, http.StatusOK, "inspection assigned", map[string]interface{}{
		"id":         record.ID,
		"assignedTo": assignee.ID,
	})
}

// Delete tombstones the inspection and removes its answers, image rows and
// stored files.
func (h *Inspections) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	inspectionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid inspection id"))
		return
	}

	images, err := h.service.DeleteInspection(ctx, inspectionID)
	if err != nil {
		ServeError(h.log, w, err)
		return
	}
	for _, image := range images {
		if err := h.store.Remove(ctx, image.FileName); err != nil {
			h.log.Warn("stored file not removed",
				zap.String("file", image.FileName), zap.Error(err))
		}
	}

	sendData(w, http.StatusOK, "inspection deleted", map[string]interface{}{
		"id":            inspectionID,
		"removedImages": len(images),
	})
}
