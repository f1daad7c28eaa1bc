// ABOUTME: HTTP server wiring for the batchtalk API using fiber.
// ABOUTME: Builds routes, auth middleware, and maps domain errors to statuses.

package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/Shameer2006/batchtalk/internal/auth"
	"github.com/Shameer2006/batchtalk/internal/chat"
	"github.com/Shameer2006/batchtalk/internal/dedupe"
	"github.com/Shameer2006/batchtalk/internal/identity"
	"github.com/Shameer2006/batchtalk/internal/live"
	"github.com/Shameer2006/batchtalk/internal/presence"
	"github.com/Shameer2006/batchtalk/internal/store"
)

// Idempotency keys are remembered long enough for client retry loops to
// settle; the cache is bounded so a chatty client cannot grow it unboundedly.
const (
	idempotencyTTL     = 10 * time.Minute
	idempotencyEntries = 10000
)

// Server exposes the chat service over HTTP and websocket.
type Server struct {
	chat     *chat.Service
	presence *presence.Tracker
	bus      *live.Broadcaster
	resolver identity.Resolver
	verifier auth.TokenVerifier
	idem     *dedupe.Cache
	logger   *slog.Logger

	app *fiber.App
}

// New assembles the fiber application. The broadcaster is the local fan-out
// endpoint websocket streams subscribe to; publishing happens inside the
// chat service.
func New(chatSvc *chat.Service, tracker *presence.Tracker, bus *live.Broadcaster,
	resolver identity.Resolver, verifier auth.TokenVerifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		chat:     chatSvc,
		presence: tracker,
		bus:      bus,
		resolver: resolver,
		verifier: verifier,
		idem:     dedupe.New(idempotencyTTL, idempotencyEntries),
		logger:   logger.With("component", "api"),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", auth.Middleware(verifier))
	api.Post("/conversations", s.handleOpenConversation)
	api.Get("/conversations", s.handleListConversations)
	api.Get("/conversations/:id/messages", s.handleListMessages)
	api.Post("/conversations/:id/messages", s.handleSendMessage)
	api.Post("/conversations/:id/read", s.handleMarkRead)
	api.Get("/conversations/:id/unread", s.handleUnread)
	api.Get("/unread", s.handleTotalUnread)
	api.Post("/conversations/:id/typing", s.handleSignalTyping)
	api.Get("/conversations/:id/typing", s.handlePeerTyping)

	ws := app.Group("/ws", auth.Middleware(verifier))
	ws.Use(func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	ws.Get("/conversations/:id", websocket.New(s.handleStream))

	s.app = app
	return s
}

// App returns the underlying fiber application, used by tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving HTTP on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server and releases the idempotency cache.
func (s *Server) Shutdown() error {
	s.idem.Close()
	return s.app.Shutdown()
}

// errorHandler maps domain errors onto HTTP statuses. Anything not in the
// permanent-failure taxonomy is treated as transient and reported as 503 so
// clients know a retry may succeed.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	status := fiber.StatusServiceUnavailable
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, store.ErrInvalidParticipant), errors.Is(err, store.ErrBodyTooLong):
		status = fiber.StatusBadRequest
	case errors.Is(err, store.ErrNotAParticipant):
		status = fiber.StatusForbidden
	default:
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
