// Package server exposes product system editing over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/meikuraledutech/supplychain"
	"github.com/meikuraledutech/supplychain/editor"
	"github.com/meikuraledutech/supplychain/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server keeps one editor session per opened product system. Sessions are
// opened from the store on first use and written back on save.
type Server struct {
	store   supplychain.Store
	log     *zap.Logger
	metrics *metrics.Collector

	mu       sync.Mutex
	sessions map[string]*editor.Session
}

// New returns a Server backed by store.
func New(store supplychain.Store, log *zap.Logger, m *metrics.Collector) *Server {
	return &Server{
		store:    store,
		log:      log,
		metrics:  m,
		sessions: make(map[string]*editor.Session),
	}
}

// App builds the fiber application with every route registered.
func (s *Server) App() *fiber.App {
	app := fiber.New()
	app.Use(s.observe)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", s.createSchema)
	app.Delete("/schema", s.dropSchema)

	// ── Product systems ───────────────────────────────────────────────
	app.Post("/systems", s.createSystem)
	app.Get("/systems/:id", s.getSystem)
	app.Delete("/systems/:id", s.deleteSystem)
	app.Post("/systems/:id/save", s.saveSystem)
	app.Post("/systems/:id/undo", s.undo)
	app.Post("/systems/:id/redo", s.redo)

	// ── Processes ─────────────────────────────────────────────────────
	app.Post("/systems/:id/processes", s.addProcess)
	app.Delete("/systems/:id/processes/:pid", s.removeProcess)
	app.Get("/systems/:id/processes/:pid/links", s.listLinks)
	app.Get("/systems/:id/processes/:pid/supply-chain", s.canRemoveSupplyChain)
	app.Delete("/systems/:id/processes/:pid/supply-chain", s.removeSupplyChain)

	// ── Links ─────────────────────────────────────────────────────────
	app.Post("/systems/:id/links", s.addLink)
	app.Delete("/systems/:id/links", s.removeLink)

	return app
}

// Listen serves the application on addr until ctx is done.
func (s *Server) Listen(ctx context.Context, addr string) error {
	app := s.App()
	errc := make(chan error, 1)
	go func() { errc <- app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}) }()
	s.log.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		return app.ShutdownWithTimeout(5 * time.Second)
	}
}

func (s *Server) observe(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	} else if err != nil {
		status = fiber.StatusInternalServerError
	}
	s.metrics.ObserveRequest(c.Method(), c.Route().Path, status, time.Since(start))
	return err
}

// session returns the open session of id, opening it from the store when
// needed. The store is read without holding the lock; when two requests open
// the same system, the first session stored wins.
func (s *Server) session(ctx context.Context, id string) (*editor.Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	ps, err := s.store.GetSystem(ctx, id)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		return nil, supplychain.ErrSystemNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	sess = editor.Open(ps, editor.WithView(), editor.WithLogger(s.log))
	s.sessions[id] = sess
	s.metrics.OpenSessions.Set(float64(len(s.sessions)))
	s.log.Debug("opened session", zap.String("system", id))
	return sess, nil
}

// close forgets the session of id, or every session when id is empty.
func (s *Server) close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		clear(s.sessions)
	} else {
		delete(s.sessions, id)
	}
	s.metrics.OpenSessions.Set(float64(len(s.sessions)))
}

func processParam(c fiber.Ctx) (supplychain.ProcessID, error) {
	pid, err := strconv.ParseInt(c.Params("pid"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid process id %q", c.Params("pid"))
	}
	return supplychain.ProcessID(pid), nil
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// fail maps err onto a status code and a JSON error body.
func (s *Server) fail(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, supplychain.ErrSystemNotFound),
		errors.Is(err, supplychain.ErrProcessNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, supplychain.ErrUnsafeRemoval),
		errors.Is(err, supplychain.ErrReferenceProcess),
		errors.Is(err, editor.ErrNothingToUndo),
		errors.Is(err, editor.ErrNothingToRedo):
		status = fiber.StatusConflict
	case errors.Is(err, supplychain.ErrUnknownProcess):
		status = fiber.StatusUnprocessableEntity
	}
	if status == fiber.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
