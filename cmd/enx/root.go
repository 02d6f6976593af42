package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/japaniel/enx/pkg/config"
	"github.com/japaniel/enx/pkg/credentials"
	"github.com/japaniel/enx/pkg/db"
	"github.com/japaniel/enx/pkg/enxapi"
	"github.com/japaniel/enx/pkg/ingest"
	"github.com/japaniel/enx/pkg/logger"
	"github.com/japaniel/enx/pkg/metrics"
)

// app carries what the subcommands share. Resources are opened lazily and
// released by close.
type app struct {
	configPath  string
	dbPath      string
	apiURL      string
	logLevel    string
	metricsFile string

	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics

	conn     *sql.DB
	recorder *ingest.Recorder
	logFile  *os.File
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "enx",
		Short:        "Annotate English articles with vocabulary familiarity",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to YAML config (default ./enx.yaml or $CONFIG_PATH)")
	pf.StringVar(&a.dbPath, "db", "", "Path to the SQLite word cache")
	pf.StringVar(&a.apiURL, "api", "", "Translation backend base URL")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	cmd.AddCommand(
		newAnnotateCmd(a),
		newStripCmd(a),
		newRenderCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newTranslateCmd(a),
		newMarkCmd(a),
		newEnrichCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Path = a.dbPath
	}
	if flags.Changed("api") {
		cfg.API.BaseURL = a.apiURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.logFile = f
		a.log = logger.Init(level, f)
	} else {
		a.log = logger.Init(level, nil)
	}
	a.metrics = metrics.New()
	return nil
}

// db opens the word cache on first use.
func (a *app) db() (*sql.DB, error) {
	if a.conn != nil {
		return a.conn, nil
	}
	conn, err := db.Open(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word cache: %w", err)
	}
	a.conn = conn
	a.log.Debug("word cache opened", "path", a.cfg.Database.Path)
	return conn, nil
}

func (a *app) store() (credentials.Store, error) {
	switch a.cfg.Session.Store {
	case config.StoreKeyring:
		return credentials.NewKeyring(a.cfg.Session.KeyringService, a.cfg.Session.KeyringAccount), nil
	case config.StoreSQLite:
		conn, err := a.db()
		if err != nil {
			return nil, err
		}
		return credentials.NewSQLite(conn), nil
	default:
		return &credentials.Memory{}, nil
	}
}

// client builds an API client with the persisted session restored.
func (a *app) client(ctx context.Context) (*enxapi.Client, error) {
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	c, err := enxapi.New(enxapi.Options{
		BaseURL:   a.cfg.API.BaseURL,
		Timeout:   a.cfg.API.Timeout,
		UserAgent: a.cfg.API.UserAgent,
		Store:     store,
		Logger:    a.log,
		Metrics:   a.metrics,
		OnExpired: func() {
			a.log.Warn("session expired, run `enx login` to sign in again")
		},
	})
	if err != nil {
		return nil, err
	}
	if err := c.Restore(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) recorderFor() (*ingest.Recorder, error) {
	if a.recorder != nil {
		return a.recorder, nil
	}
	conn, err := a.db()
	if err != nil {
		return nil, err
	}
	a.recorder = ingest.NewRecorder(conn, ingest.RecorderOptions{
		BatchSize:     a.cfg.Annotate.FlushSize,
		FlushInterval: a.cfg.Annotate.FlushInterval,
		Logger:        a.log,
	})
	return a.recorder, nil
}

// close flushes pending writes and releases everything setup opened.
func (a *app) close() error {
	var errs []error
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("flush word cache: %w", err))
		}
		a.recorder = nil
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		a.conn = nil
	}
	if a.metricsFile != "" && a.metrics != nil {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.metrics.Registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, err)
		}
		a.logFile = nil
	}
	return errors.Join(errs...)
}
