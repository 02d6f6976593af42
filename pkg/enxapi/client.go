// Package enxapi talks to the translation backend: paragraph classification,
// single-word translation and mark-as-known, all bound to a session
// credential.
package enxapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/japaniel/enx/pkg/apperrors"
	"github.com/japaniel/enx/pkg/credentials"
	"github.com/japaniel/enx/pkg/familiarity"
	"github.com/japaniel/enx/pkg/metrics"
	"github.com/japaniel/enx/pkg/tokenize"
)

const (
	HeaderSession   = "X-Session-ID"
	HeaderRequestID = "X-Request-ID"

	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "enx-cli"

	maxBodyBytes = 4 << 20
)

var errNoSession = errors.New("no session credential")

// State of the session credential.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout applies when HTTPClient is nil.
	Timeout   time.Duration
	UserAgent string
	// Store persists the credential; defaults to process memory.
	Store   credentials.Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// OnExpired runs once per credential when the backend rejects it.
	OnExpired func()
}

// LoginResult is the backend's answer to a successful login.
type LoginResult struct {
	User    string
	Message string
}

type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	store     credentials.Store
	log       *slog.Logger
	metrics   *metrics.Metrics
	onExpired func()

	mu         sync.Mutex
	credential string
	generation uint64

	flight singleflight.Group
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperrors.Validation(fmt.Sprintf("invalid API base URL %q", opts.BaseURL))
	}
	c := &Client{
		base:      base,
		http:      opts.HTTPClient,
		userAgent: opts.UserAgent,
		store:     opts.Store,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		onExpired: opts.OnExpired,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.store == nil {
		c.store = &credentials.Memory{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c, nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.credential == "" {
		return Unauthenticated
	}
	return Authenticated
}

// Absorb replaces the in-memory credential with one observed elsewhere, such
// as another process writing the store. An empty value logs the client out
// locally without firing OnExpired.
func (c *Client) Absorb(credential string) {
	credential = strings.TrimSpace(credential)
	c.mu.Lock()
	defer c.mu.Unlock()
	if credential == c.credential {
		return
	}
	c.credential = credential
	c.generation++
}

// Restore loads the persisted credential, if any.
func (c *Client) Restore(ctx context.Context) error {
	cred, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	c.Absorb(cred)
	return nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.Validation("username and password are required")
	}
	payload := map[string]string{"username": username, "password": password}

	var resp struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		User      string `json:"user"`
		SessionID string `json:"session_id"`
	}
	body, status, err := c.send(ctx, "login", http.MethodPost, "/api/login", nil, payload, "")
	if err != nil && !apperrors.IsSessionExpired(err) {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, apperrors.Auth(loginMessage(body, "invalid username or password"))
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.Server(status, "undecodable login response", err)
	}
	if !resp.Success || strings.TrimSpace(resp.SessionID) == "" {
		return nil, apperrors.Auth(loginMessage(body, "login rejected"))
	}

	c.mu.Lock()
	c.credential = strings.TrimSpace(resp.SessionID)
	c.generation++
	err = c.store.Save(ctx, c.credential)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("save credential: %w", err)
	}
	c.log.Info("logged in", "user", resp.User)
	return &LoginResult{User: resp.User, Message: resp.Message}, nil
}

func loginMessage(body []byte, fallback string) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &m) == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
	}
	return fallback
}

// Logout clears the credential locally and in the store. The backend call is
// best effort; its failure is logged, not returned. A 401 here does not count
// as an expired session.
func (c *Client) Logout(ctx context.Context) error {
	cred, _ := c.snapshot()
	if cred != "" {
		if _, _, err := c.send(ctx, "logout", http.MethodPost, "/api/logout", nil, struct{}{}, cred); err != nil {
			c.log.Warn("backend logout failed", "error", err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.credential != "" {
		c.credential = ""
		c.generation++
	}
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// ClassifyParagraph asks the backend for the records of every word in text.
// The result is keyed by folded word.
func (c *Client) ClassifyParagraph(ctx context.Context, text string) (map[string]*familiarity.WordRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]*familiarity.WordRecord{}, nil
	}
	body, err := c.authed(ctx, "paragraph-init", http.MethodGet, "/api/paragraph-init", url.Values{"paragraph": {text}}, nil)
	if err != nil {
		return nil, err
	}
	recs, err := decodeParagraph(body)
	if err != nil {
		return nil, apperrors.Server(http.StatusOK, "undecodable classification response", err)
	}
	return recs, nil
}

// TranslateWord returns the full record of one word. Concurrent calls for the
// same folded word share one request.
func (c *Client) TranslateWord(ctx context.Context, word string) (*familiarity.WordRecord, error) {
	key := tokenize.Fold(strings.TrimSpace(word))
	if !tokenize.IsWord(key) {
		return nil, apperrors.Validation(fmt.Sprintf("not a word: %q", word))
	}
	// The shared request outlives any one caller; each caller waits only on
	// its own context.
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		body, err := c.authed(shared, "translate", http.MethodGet, "/api/translate", url.Values{"word": {key}}, nil)
		if err != nil {
			return nil, err
		}
		rec, ok, err := decodeWord(body, key)
		if err != nil {
			return nil, apperrors.Server(http.StatusOK, "undecodable translation response", err)
		}
		if !ok {
			return nil, apperrors.Server(http.StatusOK, "translation response carries no record", nil)
		}
		return rec, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*familiarity.WordRecord).Clone(), nil
	}
}

// MarkAcquainted tells the backend the reader knows word. The returned record
// is always acquainted, synthesized when the backend answers without one.
func (c *Client) MarkAcquainted(ctx context.Context, word string) (*familiarity.WordRecord, error) {
	word = strings.TrimSpace(word)
	key := tokenize.Fold(word)
	if !tokenize.IsWord(key) {
		return nil, apperrors.Validation(fmt.Sprintf("not a word: %q", word))
	}
	body, err := c.authed(ctx, "mark", http.MethodPost, "/api/mark", nil, map[string]string{"English": word})
	if err != nil {
		return nil, err
	}
	rec, ok, err := decodeWord(body, key)
	if err != nil || !ok {
		rec = &familiarity.WordRecord{Key: key, SurfaceForm: word}
	}
	rec.Acquainted = true
	return rec, nil
}

func (c *Client) snapshot() (string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential, c.generation
}

// authed sends a request bound to the current credential and returns the
// body of a 2xx response.
func (c *Client) authed(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	cred, gen := c.snapshot()
	if cred == "" {
		c.metrics.ObserveRequest(op, string(apperrors.KindSessionExpired), 0)
		return nil, apperrors.SessionExpired(errNoSession)
	}
	body, status, err := c.send(ctx, op, method, path, query, payload, cred)
	if status == http.StatusUnauthorized {
		c.expire(gen)
	}
	return body, err
}

// send performs one request and records its outcome.
func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, payload any, cred string) ([]byte, int, error) {
	start := time.Now()
	body, status, err := c.roundTrip(ctx, method, path, query, payload, cred)
	outcome := "ok"
	if err != nil {
		if k, ok := apperrors.KindOf(err); ok {
			outcome = string(k)
		}
		c.log.Warn("api request failed", "op", op, "status", status, "error", err)
	} else {
		c.log.Debug("api request", "op", op, "status", status, "elapsed", time.Since(start))
	}
	c.metrics.ObserveRequest(op, outcome, time.Since(start))
	return body, status, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, payload any, cred string) ([]byte, int, error) {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, apperrors.Validation(fmt.Sprintf("encode request: %v", err))
		}
		reqBody = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, 0, apperrors.Network(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != "" {
		req.Header.Set(HeaderSession, cred)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, apperrors.Network(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, apperrors.Network(fmt.Errorf("read response: %w", err))
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return body, resp.StatusCode, apperrors.SessionExpired(fmt.Errorf("%s %s: %s", method, path, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return body, resp.StatusCode, apperrors.Server(resp.StatusCode, errorMessage(body, resp.Status), nil)
	}
	return body, resp.StatusCode, nil
}

// errorMessage prefers a JSON message field, then the raw body.
func errorMessage(body []byte, status string) string {
	msg := loginMessage(body, "")
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = status
	}
	return msg
}

// expire drops the credential of generation gen. Only the first caller for a
// generation clears the store and fires OnExpired.
func (c *Client) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.credential == "" {
		c.mu.Unlock()
		return
	}
	c.credential = ""
	c.generation++
	if err := c.store.Clear(context.Background()); err != nil {
		c.log.Warn("clear expired credential", "error", err)
	}
	c.mu.Unlock()

	c.metrics.SessionExpired()
	c.log.Warn("session expired")
	if c.onExpired != nil {
		c.onExpired()
	}
}
