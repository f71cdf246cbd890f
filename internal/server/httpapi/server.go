// Package httpapi exposes registration, login and profile lookup over HTTP.
package httpapi

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/users"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type UserService interface {
	Register(ctx context.Context, reg users.Registration) (*models.User, error)
	Login(ctx context.Context, identifier, secret string) (string, error)
	Profile(ctx context.Context, userID string) (*users.PublicUser, error)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type Server struct {
	app     *fiber.App
	users   UserService
	tokens  TokenVerifier
	metrics *metrics.Metrics
	log     logging.Logger
	dev     bool

	loginMax    int
	loginWindow time.Duration
}

type Option func(*Server)

// WithLoginLimit caps requests to /login at limit per client IP per window.
// A non-positive limit leaves /login unlimited.
func WithLoginLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		s.loginMax = limit
		s.loginWindow = window
	}
}

// NewServer builds the fiber app. dev enables the debug block of the error
// envelope.
func NewServer(svc UserService, tokens TokenVerifier, mx *metrics.Metrics, log logging.Logger, dev bool, opts ...Option) *Server {
	s := &Server{
		users:   svc,
		tokens:  tokens,
		metrics: mx,
		log:     log.With("module", "httpapi"),
		dev:     dev,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "authkeeper",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
	})

	s.app.Use(s.observe)
	if s.loginMax > 0 {
		s.app.Use("/login", s.loginLimiter())
	}

	s.app.Get("/", s.welcome)
	s.app.Post("/register", s.register)
	s.app.Post("/login", s.login)
	s.app.Get("/me", s.requireBearer, s.me)
	s.app.Get("/metrics", adaptor.HTTPHandler(mx.Handler()))

	s.app.Use(s.notFound)

	return s
}

func (s *Server) loginLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        s.loginMax,
		Expiration: s.loginWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			s.metrics.Login(metrics.OutcomeLimited)
			return s.fail(fiber.ErrTooManyRequests)
		},
	})
}

// App returns the underlying fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Serve accepts connections on ln until Shutdown is called or ln fails.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info(context.Background(), "http server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
