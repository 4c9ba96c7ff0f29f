// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectd

import (
	"time"

	"github.com/scaleinspect/inspectd/imagestore"
	"github.com/scaleinspect/inspectd/inspectweb"
	"github.com/scaleinspect/inspectd/mailservice"
	"github.com/scaleinspect/inspectd/notify"
	"github.com/scaleinspect/inspectd/report"
)

// AuthConfig holds token issuing settings.
type AuthConfig struct {
	TokenSecret     string        `help:"secret the bearer tokens are signed with" default:""`
	TokenExpiration time.Duration `help:"lifetime of issued bearer tokens" default:"24h"`
}

// Config is the global configuration of the peer.
type Config struct {
	Database string `help:"database connection url" default:"sqlite3://inspectd.db"`

	Server     inspectweb.Config
	ImageStore imagestore.Config
	Report     report.Config
	Mail       mailservice.Config
	Notify     notify.Config
	Auth       AuthConfig
}
