package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/japaniel/enx/pkg/logger"
)

// Session store names.
const (
	StoreMemory  = "memory"
	StoreKeyring = "keyring"
	StoreSQLite  = "sqlite"
)

// Validate checks values the loader cannot.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL (got %q)", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0 (got %v)", c.API.Timeout)
	}

	switch strings.ToLower(c.Session.Store) {
	case StoreMemory, StoreKeyring, StoreSQLite:
		c.Session.Store = strings.ToLower(c.Session.Store)
	default:
		return fmt.Errorf("session.store must be one of memory, keyring, sqlite (got %q)", c.Session.Store)
	}
	if c.Session.Store == StoreSQLite && c.Database.Path == "" {
		return fmt.Errorf("database.path is required for the sqlite session store")
	}

	if err := c.Annotate.validate(); err != nil {
		return fmt.Errorf("annotate: %w", err)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (a *AnnotateConfig) validate() error {
	if a.ChunkWords <= 0 {
		return fmt.Errorf("chunk_words must be > 0 (got %d)", a.ChunkWords)
	}
	if a.ChunkBytes < 64 {
		return fmt.Errorf("chunk_bytes must be >= 64 (got %d)", a.ChunkBytes)
	}
	if a.Workers <= 0 || a.Workers > 64 {
		return fmt.Errorf("workers must be in [1, 64] (got %d)", a.Workers)
	}
	if a.FlushSize <= 0 {
		return fmt.Errorf("flush_size must be > 0 (got %d)", a.FlushSize)
	}
	return nil
}
