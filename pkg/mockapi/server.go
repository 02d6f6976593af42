// Package mockapi is a local stand-in for the translation backend. It speaks
// the same wire protocol as the real service, answers from a word list and
// keeps per-session lookup counts in memory.
package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/japaniel/enx/pkg/dictionary"
	"github.com/japaniel/enx/pkg/familiarity"
	"github.com/japaniel/enx/pkg/tokenize"
)

const sessionHeader = "X-Session-ID"

type Config struct {
	Username string
	Password string
	Index    *dictionary.Index
	Logger   *slog.Logger
}

type session struct {
	user   string
	counts map[string]int
	known  map[string]bool
}

// Server holds the fiber app and the in-memory session state.
type Server struct {
	app   *fiber.App
	cfg   Config
	log   *slog.Logger
	index *dictionary.Index

	mu       sync.Mutex
	sessions map[string]*session

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

func New(cfg Config) *Server {
	if cfg.Index == nil {
		cfg.Index = dictionary.NewIndex(dictionary.Seed())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      cfg.Logger,
		index:    cfg.Index,
		sessions: make(map[string]*session),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enx_mock_requests_total",
			Help: "Mock backend requests by route and status",
		}, []string{"route", "status"}),
	}
	s.registry.MustRegister(s.requests)

	s.app = fiber.New(fiber.Config{
		AppName: "enx-mock",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{"success": false, "message": message})
		},
	})
	s.app.Use(recover.New())
	s.app.Use(s.observe)

	s.app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "words": s.index.Len()})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.app.Group("/api")
	api.Post("/login", s.login)
	api.Post("/logout", s.logout)
	api.Get("/paragraph-init", s.requireSession, s.paragraphInit)
	api.Get("/translate", s.requireSession, s.translate)
	api.Post("/mark", s.requireSession, s.mark)
	return s
}

// App exposes the fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Handler adapts the app to net/http.
func (s *Server) Handler() http.Handler { return adaptor.FiberApp(s.app) }

func (s *Server) Listen(addr string) error {
	s.log.Info("mock backend listening", "addr", addr, "words", s.index.Len())
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// observe logs and counts every request.
func (s *Server) observe(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}
	route := c.Route().Path
	s.requests.WithLabelValues(route, statusClass(status)).Inc()
	s.log.Debug("mock request", "method", c.Method(), "path", c.Path(), "status", status, "elapsed", time.Since(start))
	return err
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

func (s *Server) login(c fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}
	if body.Username != s.cfg.Username || body.Password != s.cfg.Password || body.Username == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "invalid username or password"})
	}

	sid := uuid.NewString()
	s.mu.Lock()
	s.sessions[sid] = &session{user: body.Username, counts: make(map[string]int), known: make(map[string]bool)}
	s.mu.Unlock()
	s.log.Info("mock login", "user", body.Username)
	return c.JSON(fiber.Map{"success": true, "message": "login success", "user": body.Username, "session_id": sid})
}

func (s *Server) logout(c fiber.Ctx) error {
	s.mu.Lock()
	delete(s.sessions, c.Get(sessionHeader))
	s.mu.Unlock()
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) requireSession(c fiber.Ctx) error {
	sid := c.Get(sessionHeader)
	s.mu.Lock()
	_, ok := s.sessions[sid]
	s.mu.Unlock()
	if sid == "" || !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "session expired"})
	}
	c.Locals("sid", sid)
	return c.Next()
}

func (s *Server) paragraphInit(c fiber.Ctx) error {
	paragraph := c.Query("paragraph")
	if strings.TrimSpace(paragraph) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "paragraph is required"})
	}
	words := tokenize.Distinct(tokenize.ExtractWords(paragraph))
	sid, _ := c.Locals("sid").(string)

	out := make(map[string]wireRecord, len(words))
	s.mu.Lock()
	sess := s.sessions[sid]
	for _, w := range words {
		sess.counts[w]++
		out[w] = s.wire(sess, w)
	}
	s.mu.Unlock()
	return c.JSON(fiber.Map{"data": out})
}

func (s *Server) translate(c fiber.Ctx) error {
	key := tokenize.Fold(strings.TrimSpace(c.Query("word")))
	if !tokenize.IsWord(key) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "word is required"})
	}
	sid, _ := c.Locals("sid").(string)
	s.mu.Lock()
	sess := s.sessions[sid]
	sess.counts[key]++
	rec := s.wire(sess, key)
	s.mu.Unlock()
	return c.JSON(fiber.Map{"ecp": rec})
}

func (s *Server) mark(c fiber.Ctx) error {
	var body struct {
		English string `json:"English"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}
	key := tokenize.Fold(strings.TrimSpace(body.English))
	if !tokenize.IsWord(key) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "English is required"})
	}
	sid, _ := c.Locals("sid").(string)
	s.mu.Lock()
	sess := s.sessions[sid]
	sess.known[key] = true
	rec := s.wire(sess, key)
	s.mu.Unlock()
	return c.JSON(fiber.Map{"success": true, "ecp": rec})
}

// wireRecord mirrors the backend's word shape.
type wireRecord struct {
	Key               string `json:"Key"`
	English           string `json:"English"`
	Chinese           string `json:"Chinese"`
	Pronunciation     string `json:"Pronunciation"`
	LoadCount         int    `json:"LoadCount"`
	AlreadyAcquainted int    `json:"AlreadyAcquainted"`
	WordType          int    `json:"WordType"`
}

// wire builds the record of key for sess. s.mu must be held.
func (s *Server) wire(sess *session, key string) wireRecord {
	rec := s.index.Record(key)
	w := wireRecord{
		Key:           key,
		English:       key,
		Chinese:       rec.Translation,
		Pronunciation: rec.Pronunciation,
		LoadCount:     sess.counts[key],
	}
	if sess.known[key] {
		w.AlreadyAcquainted = 1
	}
	if rec.Class == familiarity.ClassFunctional {
		w.WordType = 1
	}
	return w
}
