// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package inspectweb serves the inspection HTTP API.
package inspectweb

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scaleinspect/inspectd/imagestore"
	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/inspection/inspectauth"
	"github.com/scaleinspect/inspectd/inspectweb/inspectapi"
	"github.com/scaleinspect/inspectd/notify"
	"github.com/scaleinspect/inspectd/report"
)

var (
	mon = monkit.Package()

	// Error is the default inspectweb errs class.
	Error = errs.Class("inspectweb")
)

// Config holds the http server settings.
type Config struct {
	Address      string `help:"server address of the api gateway and frontend app" default:":10100"`
	ImagesPrefix string `help:"URL path prefix the stored images are served under" default:"ftp_images"`
}

// Server wires the API handlers to a listener.
//
// architecture: Endpoint
type Server struct {
	log    *zap.Logger
	config Config

	listener net.Listener
	server   http.Server

	service *inspection.Service
	tokens  *inspectauth.TokenService
	users   inspection.Users
}

// NewServer creates a new API server.
func NewServer(
	log *zap.Logger,
	listener net.Listener,
	service *inspection.Service,
	users inspection.Users,
	tokens *inspectauth.TokenService,
	store *imagestore.Store,
	composer *report.Composer,
	notifier *notify.Notifier,
	config Config,
) *Server {
	server := &Server{
		log:      log,
		config:   config,
		listener: listener,
		service:  service,
		tokens:   tokens,
		users:    users,
	}

	router := mux.NewRouter()

	auth := inspectapi.NewAuth(log.Named("auth"), users, tokens)
	router.HandleFunc("/api/v0/auth/token", auth.Token).Methods(http.MethodPost)

	api := router.PathPrefix("/api/v0").Subrouter()
	api.Use(server.withAuth)

	inspections := inspectapi.NewInspections(log.Named("inspections"), service, store, notifier)
	api.HandleFunc("/inspections/section-answers", inspections.SubmitSection).Methods(http.MethodPost)
	api.HandleFunc("/inspections/{id}/signature-image", inspections.SaveSignature).Methods(http.MethodPost)
	api.HandleFunc("/inspections/by-schedule-type/{scheduleType}", inspections.ListByScheduleType).Methods(http.MethodGet)
	api.HandleFunc("/inspections/{id}/assign", inspections.Assign).Methods(http.MethodPut, http.MethodPost)
	api.HandleFunc("/inspections/{id}", inspections.Delete).Methods(http.MethodDelete)

	images := inspectapi.NewImages(log.Named("images"), service, store)
	api.HandleFunc("/inspections/{id}/question-images", images.Upload).Methods(http.MethodPost)
	api.HandleFunc("/inspections/{id}/upload-images", images.UploadMultipart).Methods(http.MethodPost)
	api.HandleFunc("/inspections/{id}/question-images", images.List).Methods(http.MethodGet)
	api.HandleFunc("/inspections/{id}/image-gallery", images.Gallery).Methods(http.MethodGet)
	api.HandleFunc("/question-images/{imageId}", images.Delete).Methods(http.MethodDelete)

	documents := inspectapi.NewDocuments(log.Named("documents"), service, composer)
	api.HandleFunc("/documents/answers/{answerId}/docx", documents.Download).Methods(http.MethodGet)

	prefix := "/" + strings.Trim(config.ImagesPrefix, "/") + "/"
	router.PathPrefix(prefix).Handler(
		http.StripPrefix(prefix, http.FileServer(http.Dir(store.Dir())))).Methods(http.MethodGet)

	server.server.Handler = router
	return server
}

// Run starts the server until the context is canceled.
func (server *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var group errgroup.Group
	group.Go(func() error {
		<-ctx.Done()
		return Error.Wrap(server.server.Shutdown(context.Background()))
	})
	group.Go(func() error {
		defer cancel()
		err := server.server.Serve(server.listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return Error.Wrap(err)
	})
	return group.Wait()
}

// Close stops the server.
func (server *Server) Close() error {
	return Error.Wrap(server.server.Close())
}

// withAuth checks the bearer token and stores the authenticated user in the
// request context.
func (server *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var err error
		defer mon.Task()(&ctx)(&err)

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			err = inspection.ErrUnauthorized.New("missing bearer token")
			inspectapi.ServeError(server.log, w, err)
			return
		}

		claims, err := server.tokens.CheckToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			err = inspection.ErrUnauthorized.Wrap(err)
			inspectapi.ServeError(server.log, w, err)
			return
		}

		user, err := server.users.Get(ctx, claims.UserID)
		if err != nil {
			err = inspection.ErrUnauthorized.New("unknown token subject")
			inspectapi.ServeError(server.log, w, err)
			return
		}

		ctx = inspection.WithAuth(ctx, inspection.Authorization{User: *user})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
