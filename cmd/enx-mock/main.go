// Command enx-mock serves the translation backend protocol locally, answering
// from a word list.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/japaniel/enx/pkg/config"
	"github.com/japaniel/enx/pkg/dictionary"
	"github.com/japaniel/enx/pkg/logger"
	"github.com/japaniel/enx/pkg/mockapi"
)

type options struct {
	config   string
	addr     string
	words    string
	wordsURL string
	username string
	password string
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:          "enx-mock",
		Short:        "Run a local translation backend for enx",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), &opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.config, "config", "", "Path to YAML config")
	f.StringVar(&opts.addr, "addr", "", "Listen address (default :3000)")
	f.StringVar(&opts.words, "words", "", "JSON word list served besides the built-in one")
	f.StringVar(&opts.wordsURL, "words-url", "", "Download the word list from here when --words is missing")
	f.StringVar(&opts.username, "username", "", "Accepted account name")
	f.StringVar(&opts.password, "password", "", "Accepted password")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	return cmd
}

// loadConfig applies flags over the file and environment.
func loadConfig(flags *pflag.FlagSet, opts *options) (*config.MockConfig, error) {
	cfg, err := config.Load(opts.config)
	if err != nil {
		return nil, err
	}
	m := cfg.Mock
	overrides := map[string]*string{
		"addr":      &m.Addr,
		"words":     &m.WordsFile,
		"words-url": &m.WordsURL,
		"username":  &m.Username,
		"password":  &m.Password,
		"log-level": &cfg.Log.Level,
	}
	flags.Visit(func(fl *pflag.Flag) {
		if dst, ok := overrides[fl.Name]; ok {
			*dst = fl.Value.String()
		}
	})

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger.Init(level, nil)

	if m.Username == "" || m.Password == "" {
		return nil, fmt.Errorf("username and password must be non-empty")
	}
	return &m, nil
}

func run(ctx context.Context, cfg *config.MockConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lists := [][]dictionary.Entry{dictionary.Seed()}
	if cfg.WordsFile != "" {
		if cfg.WordsURL != "" {
			if err := dictionary.EnsureWordList(ctx, cfg.WordsFile, cfg.WordsURL); err != nil {
				logger.Warn("failed to fetch word list, serving the built-in one", "url", cfg.WordsURL, "error", err)
			}
		}
		if entries, err := dictionary.LoadFile(cfg.WordsFile); err != nil {
			logger.Warn("failed to load word list, serving the built-in one", "path", cfg.WordsFile, "error", err)
		} else {
			lists = append(lists, entries)
			logger.Info("word list loaded", "path", cfg.WordsFile, "entries", len(entries))
		}
	}

	srv := mockapi.New(mockapi.Config{
		Username: cfg.Username,
		Password: cfg.Password,
		Index:    dictionary.NewIndex(lists...),
		Logger:   logger.L(),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.Addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down mock backend")
	done := make(chan error, 1)
	go func() { done <- srv.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return errors.New("shutdown timed out")
	}
}
