// Package config loads enx settings from a YAML file and the environment.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Session  SessionConfig  `yaml:"session"`
	Database DatabaseConfig `yaml:"database"`
	Annotate AnnotateConfig `yaml:"annotate"`
	Log      LogConfig      `yaml:"log"`
	Mock     MockConfig     `yaml:"mock"`
}

// APIConfig points the client at the translation backend.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"   env:"ENX_API_BASE_URL"   env-default:"https://enx-dev.wiloon.com"`
	Timeout   time.Duration `yaml:"timeout"    env:"ENX_API_TIMEOUT"    env-default:"15s"`
	UserAgent string        `yaml:"user_agent" env:"ENX_API_USER_AGENT" env-default:"enx-cli/1.0"`
}

// SessionConfig selects where the session credential is kept between runs.
type SessionConfig struct {
	Store          string `yaml:"store"           env:"ENX_SESSION_STORE"           env-default:"sqlite"`
	KeyringService string `yaml:"keyring_service" env:"ENX_SESSION_KEYRING_SERVICE" env-default:"enx"`
	KeyringAccount string `yaml:"keyring_account" env:"ENX_SESSION_KEYRING_ACCOUNT" env-default:"session"`
}

// DatabaseConfig locates the local word cache.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"ENX_DB_PATH" env-default:"enx.db"`
}

// AnnotateConfig bounds classification requests and lookup concurrency.
type AnnotateConfig struct {
	ChunkWords    int           `yaml:"chunk_words"    env:"ENX_CHUNK_WORDS"    env-default:"200"`
	ChunkBytes    int           `yaml:"chunk_bytes"    env:"ENX_CHUNK_BYTES"    env-default:"5000"`
	Workers       int           `yaml:"workers"        env:"ENX_WORKERS"        env-default:"4"`
	FlushSize     int           `yaml:"flush_size"     env:"ENX_FLUSH_SIZE"     env-default:"50"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"ENX_FLUSH_INTERVAL" env-default:"500ms"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string `yaml:"level" env:"ENX_LOG_LEVEL" env-default:"info"`
	File  string `yaml:"file"  env:"ENX_LOG_FILE"`
}

// MockConfig configures the local mock backend. WordsURL is fetched into
// WordsFile when the file is missing.
type MockConfig struct {
	Addr      string `yaml:"addr"       env:"ENX_MOCK_ADDR"       env-default:":3000"`
	WordsFile string `yaml:"words_file" env:"ENX_MOCK_WORDS_FILE"`
	WordsURL  string `yaml:"words_url"  env:"ENX_MOCK_WORDS_URL"`
	Username  string `yaml:"username"   env:"ENX_MOCK_USERNAME"   env-default:"demo"`
	Password  string `yaml:"password"   env:"ENX_MOCK_PASSWORD"   env-default:"demo"`
}
