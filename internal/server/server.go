package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ppiankov/evidex/internal/model"
	"github.com/ppiankov/evidex/internal/worker"
	"go.uber.org/zap"
)

// Engine processes evidence batches and reports engine counters.
// *pipeline.Pipeline satisfies it.
type Engine interface {
	ProcessBatch(ctx context.Context, req model.BatchRequest) model.BatchResult
	Stats() model.EngineStats
}

// Server exposes the engine over HTTP
type Server struct {
	echo   *echo.Echo
	engine Engine
	logger *zap.Logger
}

// recordsResponse is returned when the caller asks for merged records
type recordsResponse struct {
	BatchID string           `json:"batch_id"`
	Records []map[string]any `json:"records"`
	Metrics any              `json:"metrics"`
}

// New creates the HTTP surface. metrics serves /metrics; nil disables it.
func New(engine Engine, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Warn("request failed",
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", c.RealIP()),
			zap.Error(err),
		)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}

	s := &Server{echo: e, engine: engine, logger: logger}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	v1 := e.Group("/v1")
	v1.GET("/stats", s.stats)
	v1.POST("/evidence", s.evidence)

	return s
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.logger.Info("server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// stats returns the engine counters
func (s *Server) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Stats())
}

// evidence runs one batch. With ?records=true the response carries each
// candidate's input record with the evidence fields attached.
func (s *Server) evidence(c echo.Context) error {
	var req model.BatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid batch request")
	}
	if err := validateBatch(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result := s.engine.ProcessBatch(c.Request().Context(), req)

	if c.QueryParam("records") == "true" {
		return c.JSON(http.StatusOK, recordsResponse{
			BatchID: result.BatchID,
			Records: result.Records(req.Candidates),
			Metrics: result.Metrics,
		})
	}
	return c.JSON(http.StatusOK, result)
}

func validateBatch(req model.BatchRequest) error {
	if len(req.Candidates) == 0 {
		return errors.New("no candidates in batch")
	}
	return worker.ValidateCandidates(req.Candidates)
}
