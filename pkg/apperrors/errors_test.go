package apperrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("classify chunk 2: %w", SessionExpired(nil))
	if !IsSessionExpired(err) {
		t.Fatal("expected session expired through wrapping")
	}
	if IsNetwork(err) || IsServer(err) {
		t.Fatal("kind predicates overlap")
	}

	netErr := Network(context.DeadlineExceeded)
	if !errors.Is(netErr, context.DeadlineExceeded) {
		t.Fatal("cause not unwrapped")
	}
	if k, ok := KindOf(netErr); !ok || k != KindNetwork {
		t.Fatalf("unexpected kind %q", k)
	}
}

func TestServerMessageIsVerbatim(t *testing.T) {
	err := Server(503, "  backend overloaded \n", nil)
	if got := err.Error(); got != "backend overloaded (status 503)" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := Server(500, "", nil).Error(); !strings.Contains(got, "returned an error") {
		t.Fatalf("expected default message, got %q", got)
	}
	long := Server(500, strings.Repeat("x", 300), nil).Error()
	if len([]rune(long)) > 220 {
		t.Fatalf("message not truncated: %d runes", len([]rune(long)))
	}
}

func TestPublicMessage(t *testing.T) {
	if PublicMessage(nil) != "" {
		t.Fatal("nil error must have empty message")
	}
	if got := PublicMessage(errors.New("secret internals")); got != "Unexpected error." {
		t.Fatalf("internal error leaked: %q", got)
	}
	if got := PublicMessage(Auth("bad password")); got != "bad password" {
		t.Fatalf("unexpected message %q", got)
	}
}
