// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package inspectd wires the inspection services into a runnable peer.
package inspectd

import (
	"context"
	"net"
	"net/smtp"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scaleinspect/inspectd/imagestore"
	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/inspection/inspectauth"
	"github.com/scaleinspect/inspectd/inspectweb"
	"github.com/scaleinspect/inspectd/internal/post"
	"github.com/scaleinspect/inspectd/mailservice"
	"github.com/scaleinspect/inspectd/notify"
	"github.com/scaleinspect/inspectd/report"
)

// Error is the default inspectd errs class.
var Error = errs.Class("inspectd")

// DB is the master database the peer runs against.
type DB interface {
	inspection.DB

	// MigrateToLatest applies all pending schema migrations.
	MigrateToLatest(ctx context.Context) error
	// Close closes the database.
	Close() error
}

// Peer is the inspection backend process.
//
// architecture: Peer
type Peer struct {
	Log *zap.Logger
	DB  DB

	Servers  []server
	Closers  []closer
	services errgroup.Group

	Inspection struct {
		Service *inspection.Service
	}

	ImageStore struct {
		Store *imagestore.Store
	}

	Report struct {
		Composer *report.Composer
	}

	Mail struct {
		Service *mailservice.Service
	}

	Notify struct {
		Notifier *notify.Notifier
	}

	Auth struct {
		Tokens *inspectauth.TokenService
	}

	API struct {
		Listener net.Listener
		Server   *inspectweb.Server
	}
}

type server interface {
	Run(ctx context.Context) error
}

type closer struct {
	name  string
	close func() error
}

// New creates a new peer from the master database and configuration.
func New(log *zap.Logger, db DB, config *Config) (peer *Peer, err error) {
	peer = &Peer{Log: log, DB: db}

	{ // inspection service
		peer.Inspection.Service, err = inspection.NewService(log.Named("inspection"), db)
		if err != nil {
			return nil, errs.Combine(err, peer.Close())
		}
	}

	{ // image store
		peer.ImageStore.Store, err = imagestore.New(log.Named("imagestore"), config.ImageStore)
		if err != nil {
			return nil, errs.Combine(err, peer.Close())
		}
	}

	{ // report composer
		peer.Report.Composer = report.NewComposer(log.Named("report"), db, peer.ImageStore.Store, config.Report)
	}

	{ // mail
		sender, err := senderFrom(log, config.Mail)
		if err != nil {
			return nil, errs.Combine(err, peer.Close())
		}
		peer.Mail.Service, err = mailservice.New(log.Named("mail"), sender, config.Mail.TemplatePath)
		if err != nil {
			return nil, errs.Combine(err, peer.Close())
		}
	}

	{ // notifications
		peer.Notify.Notifier = notify.New(log.Named("notify"), db, peer.Report.Composer, peer.Mail.Service, config.Notify)
		peer.Servers = append(peer.Servers, peer.Notify.Notifier)
		peer.Closers = append(peer.Closers, closer{"notify", peer.Notify.Notifier.Close})
	}

	{ // auth tokens
		if config.Auth.TokenSecret == "" {
			return nil, errs.Combine(Error.New("auth token secret is required"), peer.Close())
		}
		peer.Auth.Tokens = inspectauth.NewTokenService([]byte(config.Auth.TokenSecret), config.Auth.TokenExpiration)
	}

	{ // api server
		peer.API.Listener, err = net.Listen("tcp", config.Server.Address)
		if err != nil {
			return nil, errs.Combine(Error.Wrap(err), peer.Close())
		}
		peer.API.Server = inspectweb.NewServer(
			log.Named("api"),
			peer.API.Listener,
			peer.Inspection.Service,
			db.Users(),
			peer.Auth.Tokens,
			peer.ImageStore.Store,
			peer.Report.Composer,
			peer.Notify.Notifier,
			config.Server,
		)
		peer.Servers = append(peer.Servers, peer.API.Server)
		peer.Closers = append(peer.Closers, closer{"api", peer.API.Server.Close})
	}

	return peer, nil
}

// Run starts every sub server and blocks until the context is canceled or
// one of them fails.
func (peer *Peer) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, srv := range peer.Servers {
		srv := srv
		group.Go(func() error { return srv.Run(ctx) })
	}
	peer.Log.Info("peer started")
	return group.Wait()
}

// Close shuts the sub systems down in reverse creation order.
func (peer *Peer) Close() error {
	var group errs.Group
	for i := len(peer.Closers) - 1; i >= 0; i-- {
		if err := peer.Closers[i].close(); err != nil {
			group.Add(Error.New("%s: %v", peer.Closers[i].name, err))
		}
	}
	return group.Err()
}

// senderFrom builds the SMTP sender from the mail configuration, falling
// back to a log only sender when no server is configured.
func senderFrom(log *zap.Logger, config mailservice.Config) (mailservice.Sender, error) {
	from := post.Address{Address: config.From, Name: "ScaleInspect"}

	if config.SMTPServerAddress == "" || config.AuthType == "nomail" {
		return &mailservice.SimulateSender{Log: log.Named("mail:simulate"), From: from}, nil
	}

	host, _, err := net.SplitHostPort(config.SMTPServerAddress)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var auth smtp.Auth
	switch config.AuthType {
	case "plain":
		auth = smtp.PlainAuth("", config.Login, config.Password, host)
	case "login":
		auth = post.LoginAuth{Username: config.Login, Password: config.Password}
	default:
		return nil, Error.New("unsupported smtp auth type %q", config.AuthType)
	}

	return &post.SMTPSender{
		ServerAddress: config.SMTPServerAddress,
		From:          from,
		Auth:          auth,
	}, nil
}
