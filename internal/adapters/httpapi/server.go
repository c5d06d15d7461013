package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"go.uber.org/zap"
)

// OwnerHeader carries the caller identity
const OwnerHeader = "X-Owner-ID"

const ownerContextKey = "owner_id"

// Housekeeper is the service surface exposed over HTTP
type Housekeeper interface {
	Run(ctx context.Context, ownerID string, autoMode bool, maxEmails int) (*core.BatchStats, error)
	GetStats(ctx context.Context, ownerID string) (*core.Stats, error)
	ListForReview(ctx context.Context, ownerID string) ([]core.ReviewItem, error)
	SubmitFeedback(ctx context.Context, ownerID string, emailRecordID int64, userAction core.Action) (*core.FeedbackResult, error)
}

// Config holds HTTP server configuration
type Config struct {
	ListenAddress   string
	ShutdownTimeout time.Duration
}

// Server exposes the housekeeper over a JSON API
type Server struct {
	echo        *echo.Echo
	housekeeper Housekeeper
	keys        credentials.Store
	logger      *zap.Logger
	config      Config
}

// Response is the envelope of every API reply
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewServer creates a new HTTP server
func NewServer(housekeeper Housekeeper, keys credentials.Store, logger *zap.Logger, cfg Config) (*Server, error) {
	if housekeeper == nil {
		return nil, errors.New("housekeeper cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "0.0.0.0:8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:        e,
		housekeeper: housekeeper,
		keys:        keys,
		logger:      logger,
		config:      cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1", requireOwner)

	email := v1.Group("/email")
	email.POST("/run", s.handleRun)
	email.GET("/stats", s.handleStats)
	email.GET("/review", s.handleReview)
	email.POST("/feedback", s.handleFeedback)

	keys := v1.Group("/keys")
	keys.GET("", s.handleListKeys)
	keys.PUT("/:service", s.handleSetKey)
	keys.DELETE("/:service", s.handleDeleteKey)
}

// Handler returns the underlying HTTP handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Name identifies the frontend in logs
func (s *Server) Name() string {
	return "http-api"
}

// Start serves the API in the background
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.ListenAddress))

	go func() {
		if err := s.echo.Start(s.config.ListenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// requireOwner rejects requests without an owner header
func requireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner := c.Request().Header.Get(OwnerHeader)
		if owner == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, OwnerHeader+" header is required")
		}
		c.Set(ownerContextKey, owner)
		return next(c)
	}
}

func ownerID(c echo.Context) string {
	owner, _ := c.Get(ownerContextKey).(string)
	return owner
}

func success(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// errorHandler renders every error in the response envelope
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		} else {
			logger.Error("unhandled request error", zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, Response{Success: false, Message: message})
		}
		if err != nil {
			logger.Error("failed to write error response", zap.Error(err))
		}
	}
}
