package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/mediagrab/internal/healthcheck"
)

type PingHandler struct {
	logger   *slog.Logger
	checkers []healthcheck.Checker
}

func NewPingHandler(log *slog.Logger, checkers ...healthcheck.Checker) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{logger: log.With(slog.String("handler", "ping")), checkers: checkers}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Health)
	e.HEAD("/health", h.PingHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Health reports every runtime check; any error check yields 503.
func (h *PingHandler) Health(c echo.Context) error {
	results, status := healthcheck.Run(c.Request().Context(), h.checkers...)
	return c.JSON(httpStatus(status), map[string]any{
		"status": status,
		"checks": results,
	})
}

func (h *PingHandler) PingHead(c echo.Context) error {
	_, status := healthcheck.Run(c.Request().Context(), h.checkers...)
	if status == healthcheck.StatusError {
		h.logger.Warn("health check failing")
	}
	return c.NoContent(httpStatus(status))
}

func httpStatus(status string) int {
	if status == healthcheck.StatusError {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
