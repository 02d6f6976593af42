// Package apperrors classifies failures of the translation backend so callers
// can tell an expired session from a network or server problem.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindSessionExpired Kind = "session_expired"
	KindNetwork        Kind = "network"
	KindServer         Kind = "server"
	KindAuth           Kind = "auth"
	KindValidation     Kind = "validation"
)

type Error struct {
	Kind Kind
	// SafeMessage is fit for users and logs.
	SafeMessage string
	// Status is the HTTP status, when there was a response.
	Status int
	// Cause keeps the original error for troubleshooting.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.SafeMessage)
	if msg == "" {
		msg = defaultSafeMessage(e.Kind)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindSessionExpired:
		return "Session expired. Please log in again."
	case KindNetwork:
		return "Could not reach the translation service."
	case KindServer:
		return "The translation service returned an error."
	case KindAuth:
		return "Login failed."
	case KindValidation:
		return "Invalid input."
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	return &Error{Kind: kind, SafeMessage: strings.TrimSpace(safeMessage), Cause: cause}
}

func SessionExpired(cause error) error {
	return &Error{Kind: KindSessionExpired, Status: 401, Cause: cause}
}

func Network(cause error) error {
	return New(KindNetwork, "", cause)
}

// Server reports a non-2xx, non-401 response; body is surfaced as the message.
func Server(status int, body string, cause error) error {
	return &Error{Kind: KindServer, Status: status, SafeMessage: truncate(strings.TrimSpace(body), 200), Cause: cause}
}

func Auth(message string) error {
	return New(KindAuth, message, nil)
}

func Validation(message string) error {
	return New(KindValidation, message, nil)
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

func IsSessionExpired(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindSessionExpired
}

func IsNetwork(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindNetwork
}

func IsServer(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindServer
}

// PublicMessage returns a message safe to show to the user.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return "Unexpected error."
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
