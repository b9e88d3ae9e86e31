// Package http provides the HTTP API for vaultd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/auth"
	"github.com/fyrsmithlabs/vaultd/internal/knowledge"
	"github.com/fyrsmithlabs/vaultd/internal/search"
	"github.com/fyrsmithlabs/vaultd/internal/vault"
)

// EntryService is the vault surface the HTTP layer exposes.
type EntryService interface {
	Create(ctx context.Context, ownerID string, input vault.CreateInput) (*knowledge.Entry, error)
	Get(ctx context.Context, ownerID, id string) (*knowledge.Entry, error)
	Update(ctx context.Context, ownerID, id string, input vault.UpdateInput) (*knowledge.Entry, error)
	Delete(ctx context.Context, ownerID, id string) error
	List(ctx context.Context, ownerID string, limit int, cursor string) (*knowledge.Page, error)
	Search(ctx context.Context, ownerID, query string, limit int) ([]search.Result, error)
}

// Server provides HTTP endpoints for vaultd.
type Server struct {
	echo    *echo.Echo
	service EntryService
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(service EntryService, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8484,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes, all owner-scoped
	v1 := s.echo.Group("/api/v1", auth.Middleware())
	v1.POST("/entries", s.handleCreateEntry)
	v1.GET("/entries", s.handleListEntries)
	v1.GET("/entries/:id", s.handleGetEntry)
	v1.PATCH("/entries/:id", s.handleUpdateEntry)
	v1.DELETE("/entries/:id", s.handleDeleteEntry)
	v1.GET("/search", s.handleSearch)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleCreateEntry persists a new knowledge entry.
func (s *Server) handleCreateEntry(c echo.Context) error {
	var req CreateEntryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid create request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	entry, err := s.service.Create(c.Request().Context(), auth.OwnerID(c), vault.CreateInput{
		Source: req.Source,
		Tags:   req.Tags,
	})
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusCreated, entry)
}

// handleGetEntry returns one entry.
func (s *Server) handleGetEntry(c echo.Context) error {
	entry, err := s.service.Get(c.Request().Context(), auth.OwnerID(c), c.Param("id"))
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

// handleListEntries returns a page of entries, newest first.
func (s *Server) handleListEntries(c echo.Context) error {
	limit := intQueryParam(c, "limit")
	page, err := s.service.List(c.Request().Context(), auth.OwnerID(c), limit, c.QueryParam("cursor"))
	if err != nil {
		return s.mapError(err)
	}

	resp := ListEntriesResponse{Entries: page.Entries, NextCursor: page.NextCursor}
	if resp.Entries == nil {
		resp.Entries = []*knowledge.Entry{}
	}
	return c.JSON(http.StatusOK, resp)
}

// handleUpdateEntry applies a partial update.
func (s *Server) handleUpdateEntry(c echo.Context) error {
	var req UpdateEntryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid update request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	entry, err := s.service.Update(c.Request().Context(), auth.OwnerID(c), c.Param("id"), vault.UpdateInput{
		Title: req.Title,
		Text:  req.Text,
		Tags:  req.Tags,
	})
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, entry)
}

// handleDeleteEntry removes an entry.
func (s *Server) handleDeleteEntry(c echo.Context) error {
	if err := s.service.Delete(c.Request().Context(), auth.OwnerID(c), c.Param("id")); err != nil {
		return s.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleSearch runs a hybrid search. Index trouble never surfaces
// here; a degraded index just means text-only results.
func (s *Server) handleSearch(c echo.Context) error {
	results, err := s.service.Search(c.Request().Context(), auth.OwnerID(c), c.QueryParam("q"), intQueryParam(c, "limit"))
	if err != nil {
		return s.mapError(err)
	}

	if results == nil {
		results = []search.Result{}
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: results})
}

// mapError translates domain errors to HTTP status codes.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, knowledge.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, knowledge.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "entry not found")
	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// intQueryParam parses a numeric query parameter, returning 0 on
// absence or garbage so the service applies its default.
func intQueryParam(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
