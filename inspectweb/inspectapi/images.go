// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/imagestore"
	"github.com/scaleinspect/inspectd/inspection"
)

// maxImagesPerRequest caps a single upload batch.
const maxImagesPerRequest = 10

// Images handles question image upload and retrieval.
type Images struct {
	log     *zap.Logger
	service *inspection.Service
	store   *imagestore.Store
}

// NewImages creates the images handler.
func NewImages(log *zap.Logger, service *inspection.Service, store *imagestore.Store) *Images {
	return &Images{log: log, service: service, store: store}
}

// Upload stores a batch of base64 encoded question images.
func (h *Images) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	inspectionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid inspection id"))
		return
	}

	var request struct {
		FieldID  string `json:"fieldId"`
		Section  string `json:"section"`
		AnswerID string `json:"answerId"`
		Images   []struct {
			Base64   string `json:"base64"`
			MimeType string `json:"mimeType"`
			Order    int    `json:"order"`
		} `json:"images"`
	}
	if err = json.NewDecoder(r.Body).Decode(&request); err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("malformed request body"))
		return
	}
	answerID, err := uuid.Parse(request.AnswerID)
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid answer id"))
		return
	}
	if len(request.Images) == 0 {
		ServeError(h.log, w, inspection.ErrValidation.New("images are required"))
		return
	}
	if len(request.Images) > maxImagesPerRequest {
		ServeError(h.log, w, inspection.ErrValidation.New("at most %d images per request", maxImagesPerRequest))
		return
	}

	results := make([]map[string]interface{}, 0, len(request.Images))
	uploaded := 0
	var firstErr error
	for _, item := range request.Images {
		order := item.Order
		if order < 1 {
			order = 1
		}
		data, contentType := decodeUpload(item.Base64, item.MimeType)
		record, conflict, err := h.storeOne(r, inspectionID, answerID, request.FieldID, request.Section, order, contentType, data)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if record != nil {
			uploaded++
		}
		results = append(results, uploadOutcome(record, conflict, err, request.FieldID, order))
	}

	h.sendBatch(w, results, uploaded, firstErr)
}

// UploadMultipart stores question images sent as multipart file parts.
func (h *Images) UploadMultipart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	inspectionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid inspection id"))
		return
	}

	if err = r.ParseMultipartForm(maxImagesPerRequest * imagestore.MaxImageSize); err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("malformed multipart body"))
		return
	}
	answerID, err := uuid.Parse(r.FormValue("answerId"))
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid answer id"))
		return
	}
	fieldID := r.FormValue("fieldId")
	section := r.FormValue("section")

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		ServeError(h.log, w, inspection.ErrValidation.New("images are required"))
		return
	}
	if len(files) > maxImagesPerRequest {
		ServeError(h.log, w, inspection.ErrValidation.New("at most %d images per request", maxImagesPerRequest))
		return
	}

	results := make([]map[string]interface{}, 0, len(files))
	uploaded := 0
	var firstErr error
	for i, header := range files {
		order := i + 1

		file, err := header.Open()
		var data []byte
		if err == nil {
			data, err = io.ReadAll(io.LimitReader(file, imagestore.MaxImageSize+1))
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
		}
		if err != nil {
			wrapped := Error.Wrap(err)
			if firstErr == nil {
				firstErr = wrapped
			}
			results = append(results, uploadOutcome(nil, nil, wrapped, fieldID, order))
			continue
		}

		record, conflict, err := h.storeOne(r, inspectionID, answerID, fieldID, section, order,
			header.Header.Get("Content-Type"), data)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if record != nil {
			uploaded++
		}
		results = append(results, uploadOutcome(record, conflict, err, fieldID, order))
	}

	h.sendBatch(w, results, uploaded, firstErr)
}

// uploadOutcome shapes one per image result of a batch upload.
func uploadOutcome(record, conflict map[string]interface{}, err error, fieldID string, order int) map[string]interface{} {
	switch {
	case conflict != nil:
		out := map[string]interface{}{
			"status":  "conflict",
			"error":   "image_exists",
			"message": presentation["image_exists"],
		}
		for key, value := range conflict {
			out[key] = value
		}
		return out
	case err != nil:
		class := errorClass(err)
		return map[string]interface{}{
			"status":  "error",
			"error":   class,
			"message": presentation[class],
			"detail":  err.Error(),
			"fieldId": fieldID,
			"order":   order,
		}
	default:
		record["status"] = "uploaded"
		return record
	}
}

// sendBatch reports a per image batch outcome. A partial success is a
// success so the client retries only the failed slots; a fully failed
// batch keeps the error contract of a single upload.
func (h *Images) sendBatch(w http.ResponseWriter, results []map[string]interface{}, uploaded int, firstErr error) {
	if uploaded > 0 {
		sendData(w, http.StatusCreated, "images uploaded", map[string]interface{}{
			"uploaded": uploaded,
			"failed":   len(results) - uploaded,
			"results":  results,
		})
		return
	}
	if firstErr == nil {
		firstErr = inspection.ErrImageExists.New("every slot taken")
	}
	ServeErrorDetails(h.log, w, firstErr, results)
}

// storeOne checks the slot, writes the file and records the placement. The
// slot is probed up front so a taken slot never leaves a file behind; a
// racing insert is compensated by removing the fresh file.
func (h *Images) storeOne(r *http.Request, inspectionID, answerID uuid.UUID, fieldID, section string, order int, contentType string, data []byte) (map[string]interface{}, map[string]interface{}, error) {
	ctx := r.Context()

	if order < 1 {
		order = 1
	}

	existing, err := h.service.ImageSlot(ctx, answerID, fieldID, order)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, conflictDetails(existing), nil
	}

	stored, err := h.store.Save(ctx, imagestore.Upload{
		InspectionID: inspectionID,
		AnswerID:     answerID,
		FieldID:      fieldID,
		Order:        order,
		ContentType:  contentType,
		Data:         data,
	})
	if err != nil {
		return nil, nil, err
	}

	record, err := h.service.RecordImage(ctx, &inspection.QuestionImage{
		AnswerID:   answerID,
		FieldID:    fieldID,
		Section:    section,
		ImageOrder: order,
		ImageURL:   stored.URL,
		FileName:   stored.FileName,
	})
	if err != nil {
		if removeErr := h.store.Remove(ctx, stored.FileName); removeErr != nil {
			h.log.Warn("orphan file not removed",
				zap.String("file", stored.FileName), zap.Error(removeErr))
		}
		if inspection.ErrImageExists.Has(err) {
			racing, slotErr := h.service.ImageSlot(ctx, answerID, fieldID, order)
			if slotErr == nil && racing != nil {
				return nil, conflictDetails(racing), nil
			}
		}
		return nil, nil, err
	}

	return map[string]interface{}{
		"id":       record.ID,
		"fieldId":  record.FieldID,
		"section":  record.Section,
		"order":    record.ImageOrder,
		"imageUrl": record.ImageURL,
		"fileName": record.FileName,
	}, nil, nil
}

func conflictDetails(existing *inspection.QuestionImage) map[string]interface{} {
	return map[string]interface{}{
		"fieldId": existing.FieldID,
		"order":   existing.ImageOrder,
		"existingImage": map[string]interface{}{
			"id":       existing.ID,
			"imageUrl": existing.ImageURL,
			"fileName": existing.FileName,
		},
	}
}

// List returns the inspection's images, optionally filtered and with base64
// payloads.
func (h *Images) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	inspectionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid inspection id"))
		return
	}

	images, err := h.service.ListImages(ctx, inspectionID,
		r.URL.Query().Get("fieldId"), r.URL.Query().Get("section"))
	if err != nil {
		ServeError(h.log, w, err)
		return
	}

	sendData(w, http.StatusOK, "images", h.render(ctx, images, true))
}

// Gallery returns the images grouped by section.
func (h *Images) Gallery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	inspectionID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid inspection id"))
		return
	}
	includeData := r.URL.Query().Get("includeData") == "true"

	images, err := h.service.ListImages(ctx, inspectionID, "", "")
	if err != nil {
		ServeError(h.log, w, err)
		return
	}

	gallery := map[string][]map[string]interface{}{}
	for _, image := range images {
		rendered := h.render(ctx, []inspection.QuestionImage{image}, includeData)
		gallery[image.Section] = append(gallery[image.Section], rendered[0])
	}
	sendData(w, http.StatusOK, "image gallery", gallery)
}

// Delete removes one image row and its stored file.
func (h *Images) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	imageID, err := uuid.Parse(mux.Vars(r)["imageId"])
	if err != nil {
		ServeError(h.log, w, inspection.ErrValidation.New("invalid image id"))
		return
	}

	image, err := h.service.DeleteImage(ctx, imageID)
	if err != nil {
		ServeError(h.log, w, err)
		return
	}
	if err := h.store.Remove(ctx, image.FileName); err != nil {
		h.log.Warn("stored file not removed",
			zap.String("file", image.FileName), zap.Error(err))
	}

	sendData(w, http.StatusOK, "image deleted", map[string]interface{}{"id": imageID})
}

// render shapes image records for responses, attaching base64 payloads when
// asked to.
func (h *Images) render(ctx context.Context, images []inspection.QuestionImage, includeData bool) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(images))
	for _, image := range images {
		item := map[string]interface{}{
			"id":       image.ID,
			"answerId": image.AnswerID,
			"fieldId":  image.FieldID,
			"section":  image.Section,
			"order":    image.ImageOrder,
			"imageUrl": image.ImageURL,
			"fileName": image.FileName,
		}
		if includeData {
			if reader, err := h.store.Open(ctx, image.FileName); err == nil {
				data, readErr := io.ReadAll(reader)
				_ = reader.Close()
				if readErr == nil {
					item["base64"] = base64.StdEncoding.EncodeToString(data)
				}
			}
		}
		out = append(out, item)
	}
	return out
}

// decodeUpload accepts either a bare base64 string with an explicit mime
// type or a full data url.
func decodeUpload(encoded, mimeType string) ([]byte, string) {
	if data, contentType, err := imagestore.DecodeDataURL(encoded); err == nil {
		return data, contentType
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, mimeType
	}
	return data, mimeType
}
