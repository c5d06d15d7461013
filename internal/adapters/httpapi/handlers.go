package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"go.uber.org/zap"
)

const defaultMaxEmails = 20

// RunRequest is the request body for POST /api/v1/email/run
type RunRequest struct {
	AutoMode  bool `json:"auto_mode"`
	MaxEmails *int `json:"max_emails"`
}

// FeedbackRequest is the request body for POST /api/v1/email/feedback
type FeedbackRequest struct {
	EmailRecordID int64  `json:"email_record_id"`
	UserAction    string `json:"user_action"`
}

// KeyRequest is the request body for PUT /api/v1/keys/:service
type KeyRequest struct {
	APIKey string `json:"api_key"`
}

// KeysResponse lists the services an owner holds credentials for
type KeysResponse struct {
	Services []string `json:"services"`
}

// HealthResponse is the response body for GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleRun(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid run request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	maxEmails := defaultMaxEmails
	if req.MaxEmails != nil {
		maxEmails = *req.MaxEmails
	}

	stats, err := s.housekeeper.Run(c.Request().Context(), ownerID(c), req.AutoMode, maxEmails)
	if err != nil {
		if errors.Is(err, core.ErrInvalidBatchSize) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to process emails: %v", err))
	}

	return success(c, "Email processing completed successfully", stats)
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.housekeeper.GetStats(c.Request().Context(), ownerID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve stats: %v", err))
	}
	return success(c, "Email stats retrieved successfully", stats)
}

func (s *Server) handleReview(c echo.Context) error {
	items, err := s.housekeeper.ListForReview(c.Request().Context(), ownerID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve review emails: %v", err))
	}
	return success(c, fmt.Sprintf("Found %d emails for review", len(items)), items)
}

func (s *Server) handleFeedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid feedback request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	action := core.Action(strings.ToLower(strings.TrimSpace(req.UserAction)))
	if action != core.ActionKeep && action != core.ActionDelete {
		return echo.NewHTTPError(http.StatusBadRequest, "user_action must be 'keep' or 'delete'")
	}

	result, err := s.housekeeper.SubmitFeedback(c.Request().Context(), ownerID(c), req.EmailRecordID, action)
	switch {
	case errors.Is(err, core.ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, core.ErrRecordNotFound.Error())
	case errors.Is(err, core.ErrInvalidAction):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to submit feedback: %v", err))
	}

	return success(c, result.Message, result)
}

func (s *Server) handleListKeys(c echo.Context) error {
	if s.keys == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "credential storage is not configured")
	}

	services, err := s.keys.ListCredentialServices(c.Request().Context(), ownerID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to list keys: %v", err))
	}
	if services == nil {
		services = []string{}
	}
	return success(c, fmt.Sprintf("Found %d stored keys", len(services)), KeysResponse{Services: services})
}

func (s *Server) handleSetKey(c echo.Context) error {
	if s.keys == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "credential storage is not configured")
	}

	service, err := credentials.ParseService(c.Param("service"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var req KeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "api_key is required")
	}

	if err := s.keys.SetCredential(c.Request().Context(), ownerID(c), service.String(), req.APIKey); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to store key: %v", err))
	}

	s.logger.Info("credential stored",
		zap.String("owner_id", ownerID(c)),
		zap.String("service", service.String()))
	return success(c, fmt.Sprintf("Key for %s saved", service), nil)
}

func (s *Server) handleDeleteKey(c echo.Context) error {
	if s.keys == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "credential storage is not configured")
	}

	service, err := credentials.ParseService(c.Param("service"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err = s.keys.DeleteCredential(c.Request().Context(), ownerID(c), service.String())
	switch {
	case errors.Is(err, credentials.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("No key stored for %s", service))
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to delete key: %v", err))
	}

	return success(c, fmt.Sprintf("Key for %s deleted", service), nil)
}
