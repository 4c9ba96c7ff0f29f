// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// inspectd runs the field inspection backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/inspectd"
	"github.com/scaleinspect/inspectd/inspectd/inspectdb"
)

var (
	rootCmd = &cobra.Command{
		Use:   "inspectd",
		Short: "Field inspection backend for weighing scale equipment",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the inspectd peer",
		RunE:  cmdRun,
	}
	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Write the default configuration file",
		RunE:  cmdSetup,
	}

	confDir string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&confDir, "config-dir", ".", "directory holding config.yaml")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(setupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads config.yaml and the INSPECTD_* environment, with a few
// aliases kept for deployments configured by the legacy variable names.
func loadConfig() (*inspectd.Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(confDir)

	v.SetEnvPrefix("INSPECTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errs.Wrap(err)
		}
	}

	// legacy environment aliases
	for alias, key := range map[string]string{
		"FTP_STORAGE_PATH":     "imagestore.path",
		"REPORT_TEMPLATE_FILE": "report.templatefile",
		"SMTP_HOST":            "mail.smtpserveraddress",
		"SMTP_FROM":            "mail.from",
		"SMTP_USER":            "mail.login",
		"SMTP_PASS":            "mail.password",
		"JWT_SECRET":           "auth.tokensecret",
	} {
		if value := os.Getenv(alias); value != "" {
			v.Set(key, value)
		}
	}

	config := &inspectd.Config{}
	config.Database = v.GetString("database")
	config.Server.Address = v.GetString("server.address")
	config.Server.ImagesPrefix = v.GetString("server.imagesprefix")
	config.ImageStore.Path = v.GetString("imagestore.path")
	config.ImageStore.BaseURL = v.GetString("imagestore.baseurl")
	config.ImageStore.Prefix = v.GetString("imagestore.prefix")
	config.Report.TemplateFile = v.GetString("report.templatefile")
	config.Mail.SMTPServerAddress = v.GetString("mail.smtpserveraddress")
	config.Mail.TemplatePath = v.GetString("mail.templatepath")
	config.Mail.From = v.GetString("mail.from")
	config.Mail.AuthType = v.GetString("mail.authtype")
	config.Mail.Login = v.GetString("mail.login")
	config.Mail.Password = v.GetString("mail.password")
	config.Notify.QueueSize = v.GetInt("notify.queuesize")
	config.Auth.TokenSecret = v.GetString("auth.tokensecret")
	config.Auth.TokenExpiration = v.GetDuration("auth.tokenexpiration")
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database", "sqlite3://inspectd.db")
	v.SetDefault("server.address", ":10100")
	v.SetDefault("server.imagesprefix", "ftp_images")
	v.SetDefault("imagestore.path", "ftp_images")
	v.SetDefault("imagestore.baseurl", "http://localhost:10100")
	v.SetDefault("imagestore.prefix", "ftp_images")
	v.SetDefault("report.templatefile", "templates/report.docx")
	v.SetDefault("mail.templatepath", "web/templates")
	v.SetDefault("mail.authtype", "login")
	v.SetDefault("notify.queuesize", 64)
	v.SetDefault("auth.tokenexpiration", "24h")
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return errs.Wrap(err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("inspectd")

	config, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := inspectdb.Open(log.Named("db"), config.Database)
	if err != nil {
		return errs.New("error opening database: %+v", err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.MigrateToLatest(ctx); err != nil {
		return errs.New("error migrating database: %+v", err)
	}

	peer, err := inspectd.New(log, db, config)
	if err != nil {
		return err
	}

	runErr := peer.Run(ctx)
	closeErr := peer.Close()
	return errs.Combine(runErr, closeErr)
}

func cmdSetup(cmd *cobra.Command, args []string) error {
	path := filepath.Join(confDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return errs.New("configuration already exists at %s", path)
	}

	if err := os.MkdirAll(confDir, 0o755); err != nil {
		return errs.Wrap(err)
	}
	return errs.Wrap(os.WriteFile(path, []byte(defaultConfigYAML), 0o600))
}

const defaultConfigYAML = `# inspectd configuration
database: sqlite3://inspectd.db
server:
  address: :10100
imagestore:
  path: ftp_images
  baseurl: http://localhost:10100
report:
  templatefile: templates/report.docx
mail:
  smtpserveraddress: ""
  templatepath: web/templates
  from: ""
  authtype: login
auth:
  tokensecret: ""
  tokenexpiration: 24h
`
