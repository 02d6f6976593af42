// Package credentials persists the session credential between runs.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/japaniel/enx/pkg/db"
)

// Store is where a session credential lives outside the process. Load
// returns "" when nothing is stored.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, credential string) error
	Clear(ctx context.Context) error
}

// Memory keeps the credential in process memory only.
type Memory struct {
	mu    sync.Mutex
	value string
}

func (m *Memory) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *Memory) Save(_ context.Context, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = strings.TrimSpace(credential)
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ""
	return nil
}

// Keyring keeps the credential in the OS keychain.
type Keyring struct {
	Service string
	Account string
}

func NewKeyring(service, account string) *Keyring {
	if service == "" {
		service = "enx"
	}
	if account == "" {
		account = "session"
	}
	return &Keyring{Service: service, Account: account}
}

func (k *Keyring) Load(context.Context) (string, error) {
	v, err := keyring.Get(k.Service, k.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

func (k *Keyring) Save(_ context.Context, credential string) error {
	return keyring.Set(k.Service, k.Account, strings.TrimSpace(credential))
}

func (k *Keyring) Clear(context.Context) error {
	err := keyring.Delete(k.Service, k.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// SQLite keeps the credential in the local enx database.
type SQLite struct {
	DB   *sql.DB
	Name string
}

func NewSQLite(conn *sql.DB) *SQLite {
	return &SQLite{DB: conn, Name: "session"}
}

func (s *SQLite) Load(context.Context) (string, error) {
	return db.GetCredential(s.DB, s.Name)
}

func (s *SQLite) Save(_ context.Context, credential string) error {
	return db.SetCredential(s.DB, s.Name, strings.TrimSpace(credential))
}

func (s *SQLite) Clear(context.Context) error {
	return db.DeleteCredential(s.DB, s.Name)
}
