// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package inspectapi implements the JSON handlers of the inspection API.
package inspectapi

import (
	"encoding/json"
	"net/http"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/imagestore"
	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/report"
)

var (
	mon = monkit.Package()

	// Error is the default inspectapi errs class.
	Error = errs.Class("inspectapi")
)

// envelope is the uniform success response body.
type envelope struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// errorBody is the uniform error response body. Message carries the
// Mongolian text the client shows, Error the machine readable code and
// Detail the diagnostic string of expected failures.
type errorBody struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// presentation maps error codes to the messages shown to the inspector.
var presentation = map[string]string{
	"validation":          "Хүсэлт буруу байна",
	"unauthorized":        "Нэвтрэх эрх шаардлагатай",
	"forbidden":           "Хандах эрхгүй байна",
	"not_found":           "Бичлэг олдсонгүй",
	"image_exists":        "Зургийн байрлал аль хэдийн дүүрсэн байна",
	"invalid_media":       "Зургийн файл буруу байна",
	"payload_too_large":   "Файл хэт том байна",
	"storage_unavailable": "Файлын сан түр ажиллахгүй байна",
	"template_missing":    "Тайлангийн загвар олдсонгүй",
	"internal":            "Дотоод алдаа гарлаа",
}

// sendJSON writes a JSON response with the given status.
func sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// sendData writes a success envelope.
func sendData(w http.ResponseWriter, status int, message string, data interface{}) {
	sendJSON(w, status, envelope{Message: message, Data: data})
}

// ServeError maps a service error to its HTTP status and writes the error
// body.
func ServeError(log *zap.Logger, w http.ResponseWriter, err error) {
	ServeErrorDetails(log, w, err, nil)
}

// ServeErrorDetails writes the error body with a machine readable details
// payload.
func ServeErrorDetails(log *zap.Logger, w http.ResponseWriter, err error, details interface{}) {
	status := statusCode(err)
	if status == http.StatusInternalServerError {
		log.Error("api error", zap.Error(err))
	} else {
		log.Debug("api error", zap.Int("status", status), zap.Error(err))
	}

	class := errorClass(err)
	body := errorBody{
		Error:   class,
		Message: presentation[class],
		Details: details,
	}
	// internal errors keep their diagnostics in the log only
	if status != http.StatusInternalServerError {
		body.Detail = err.Error()
	}
	sendJSON(w, status, body)
}

func statusCode(err error) int {
	switch {
	case inspection.ErrValidation.Has(err), inspection.ErrTemplate.Has(err),
		imagestore.ErrInvalidMedia.Has(err):
		return http.StatusBadRequest
	case inspection.ErrUnauthorized.Has(err):
		return http.StatusUnauthorized
	case inspection.ErrForbidden.Has(err):
		return http.StatusForbidden
	case inspection.ErrNoRecord.Has(err), report.ErrTemplateMissing.Has(err):
		return http.StatusNotFound
	case inspection.ErrImageExists.Has(err):
		return http.StatusConflict
	case imagestore.ErrPayloadTooLarge.Has(err):
		return http.StatusRequestEntityTooLarge
	case imagestore.ErrStorageUnavailable.Has(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorClass(err error) string {
	switch {
	case inspection.ErrValidation.Has(err), inspection.ErrTemplate.Has(err):
		return "validation"
	case inspection.ErrUnauthorized.Has(err):
		return "unauthorized"
	case inspection.ErrForbidden.Has(err):
		return "forbidden"
	case inspection.ErrNoRecord.Has(err):
		return "not_found"
	case inspection.ErrImageExists.Has(err):
		return "image_exists"
	case imagestore.ErrInvalidMedia.Has(err):
		return "invalid_media"
	case imagestore.ErrPayloadTooLarge.Has(err):
		return "payload_too_large"
	case imagestore.ErrStorageUnavailable.Has(err):
		return "storage_unavailable"
	case report.ErrTemplateMissing.Has(err):
		return "template_missing"
	default:
		return "internal"
	}
}
