package credentials

import (
	"context"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/japaniel/enx/pkg/db"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if v, err := s.Load(ctx); err != nil || v != "" {
		t.Fatalf("expected empty store, got %q, %v", v, err)
	}
	if err := s.Save(ctx, "  sess-123 \n"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if v, err := s.Load(ctx); err != nil || v != "sess-123" {
		t.Fatalf("expected trimmed credential, got %q, %v", v, err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clearing twice must succeed: %v", err)
	}
	if v, _ := s.Load(ctx); v != "" {
		t.Fatalf("credential survived clear: %q", v)
	}
}

func TestMemory(t *testing.T) {
	exercise(t, &Memory{})
}

func TestKeyring(t *testing.T) {
	keyring.MockInit()
	exercise(t, NewKeyring("", ""))
}

func TestSQLite(t *testing.T) {
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	exercise(t, NewSQLite(conn))
}
