// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package imagestore stores uploaded inspection images on the local
// filesystem under deterministic names and serves them back by public URL.
package imagestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	mon = monkit.Package()

	// Error is the default imagestore errs class.
	Error = errs.Class("imagestore")
	// ErrInvalidMedia is returned for unsupported or undetectable image types.
	ErrInvalidMedia = errs.Class("invalid media")
	// ErrPayloadTooLarge is returned when an upload exceeds the size limit.
	ErrPayloadTooLarge = errs.Class("payload too large")
	// ErrStorageUnavailable is returned when the backing directory cannot be
	// written.
	ErrStorageUnavailable = errs.Class("storage unavailable")
)

// MaxImageSize is the upload size limit.
const MaxImageSize = 10 << 20

// allowed maps accepted content types to the canonical file extension.
var allowed = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

// Config holds the image store settings.
type Config struct {
	Path    string `help:"directory where uploaded images are stored" default:"ftp_images"`
	BaseURL string `help:"public base URL the stored images are served from" default:"http://localhost:10100"`
	Prefix  string `help:"URL path prefix for stored images" default:"ftp_images"`
}

// Store writes uploads to disk and knows their public URLs.
//
// architecture: Service
type Store struct {
	log    *zap.Logger
	config Config
}

// New creates the store and its backing directory.
func New(log *zap.Logger, config Config) (*Store, error) {
	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, ErrStorageUnavailable.Wrap(err)
	}
	return &Store{log: log, config: config}, nil
}

// Upload is a single image to be stored.
type Upload struct {
	InspectionID uuid.UUID
	AnswerID     uuid.UUID
	FieldID      string
	Order        int
	ContentType  string
	Data         []byte
}

// Stored describes a persisted image.
type Stored struct {
	FileName string
	URL      string
	Size     int64
}

// Save validates and writes the upload, returning its deterministic file
// name and public URL. The name embeds the upload instant so retries never
// overwrite an earlier file.
func (store *Store) Save(ctx context.Context, upload Upload) (_ *Stored, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(upload.Data) == 0 {
		return nil, ErrInvalidMedia.New("empty image")
	}
	if len(upload.Data) > MaxImageSize {
		return nil, ErrPayloadTooLarge.New("image is %d bytes, limit is %d", len(upload.Data), MaxImageSize)
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(upload.Data)
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := allowed[contentType]
	if !ok {
		return nil, ErrInvalidMedia.New("unsupported content type %q", contentType)
	}

	name := fmt.Sprintf("inspection_%s_ans_%s_field_%s_%d_%d.%s",
		upload.InspectionID, upload.AnswerID, sanitizeField(upload.FieldID),
		time.Now().UnixMilli(), upload.Order, ext)

	path := filepath.Join(store.config.Path, name)
	if err := os.WriteFile(path, upload.Data, 0o644); err != nil {
		return nil, ErrStorageUnavailable.Wrap(err)
	}

	store.log.Debug("image stored",
		zap.String("file", name),
		zap.Int("size", len(upload.Data)))

	return &Stored{
		FileName: name,
		URL:      store.PublicURL(name),
		Size:     int64(len(upload.Data)),
	}, nil
}

// PublicURL returns the URL a stored file is served from.
func (store *Store) PublicURL(fileName string) string {
	base := strings.TrimRight(store.config.BaseURL, "/")
	prefix := strings.Trim(store.config.Prefix, "/")
	if prefix == "" {
		return base + "/" + fileName
	}
	return base + "/" + prefix + "/" + fileName
}

// Open returns a reader over a stored file.
func (store *Store) Open(ctx context.Context, fileName string) (_ io.ReadCloser, err error) {
	defer mon.Task()(&ctx)(&err)

	file, err := os.Open(filepath.Join(store.config.Path, filepath.Base(fileName)))
	if os.IsNotExist(err) {
		return nil, Error.New("image %s not found", fileName)
	}
	if err != nil {
		return nil, ErrStorageUnavailable.Wrap(err)
	}
	return file, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (store *Store) Remove(ctx context.Context, fileName string) (err error) {
	defer mon.Task()(&ctx)(&err)

	err = os.Remove(filepath.Join(store.config.Path, filepath.Base(fileName)))
	if err != nil && !os.IsNotExist(err) {
		return ErrStorageUnavailable.Wrap(err)
	}
	return nil
}

// Dir returns the backing directory.
func (store *Store) Dir() string { return store.config.Path }

// DecodeDataURL decodes a data:image/...;base64 payload into its bytes and
// content type.
func DecodeDataURL(dataURL string) (data []byte, contentType string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, "", ErrInvalidMedia.New("not a data url")
	}
	rest := dataURL[len("data:"):]
	sep := strings.Index(rest, ",")
	if sep < 0 {
		return nil, "", ErrInvalidMedia.New("malformed data url")
	}

	meta, encoded := rest[:sep], rest[sep+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", ErrInvalidMedia.New("data url is not base64 encoded")
	}
	contentType = strings.TrimSuffix(meta, ";base64")

	data, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", ErrInvalidMedia.Wrap(err)
	}
	return data, contentType, nil
}

// sanitizeField keeps file names shell and URL safe.
func sanitizeField(field string) string {
	var out bytes.Buffer
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out.WriteRune(r)
		default:
			out.WriteByte('_')
		}
	}
	return out.String()
}
