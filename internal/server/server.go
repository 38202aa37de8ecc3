// Package server exposes the engine over HTTP.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/engine"
	"github.com/proptrust/proptrust/internal/export"
	"github.com/proptrust/proptrust/internal/ledger"
	"github.com/proptrust/proptrust/internal/repository"
)

// Handler wires the engine into echo routes.
type Handler struct {
	Engine  *engine.Orchestrator
	Ledger  ledger.Ledger
	Stats   repository.StatsRepository
	Audits  repository.AuditRepository
	Export  *export.Service
	Metrics prometheus.Gatherer
	Logger  *slog.Logger

	// MaxUploadBytes bounds multipart documents; default 25 MiB.
	MaxUploadBytes int64
}

// New builds the echo instance with all routes registered.
func New(h *Handler) *echo.Echo {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if h.MaxUploadBytes <= 0 {
		h.MaxUploadBytes = 25 << 20
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = h.errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("25M"))

	e.POST("/verify/upload", h.VerifyUpload)
	e.POST("/tamper/check", h.TamperCheck)
	e.GET("/verification/:property_id", h.GetVerification)
	e.DELETE("/verification/:property_id", h.DeleteVerification)
	e.GET("/verifications/export", h.ExportRegister)
	e.GET("/ledger/status", h.LedgerStatus)
	e.GET("/statistics", h.Statistics)
	e.GET("/audit", h.AuditLogs)
	e.GET("/healthz", h.Health)
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.Metrics, promhttp.HandlerOpts{})))
	}
	return e
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

// errorHandler maps engine error kinds onto HTTP statuses. Causes stay in
// the log; clients get the stable code, message and stage only.
func (h *Handler) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, errorBody{Code: "HTTP_ERROR", Message: http.StatusText(he.Code)})
		return
	}

	status := http.StatusInternalServerError
	body := errorBody{Code: "INTERNAL", Message: "internal error"}

	var ae *common.AppError
	if errors.As(err, &ae) {
		body = errorBody{Code: ae.Code, Message: ae.Message, Stage: ae.Stage}
		switch ae.Kind {
		case common.KindBadInput:
			status = http.StatusBadRequest
		case common.KindNotFound:
			status = http.StatusNotFound
		case common.KindExternalUnavailable:
			status = http.StatusBadGateway
		case common.KindDeadlineExceeded:
			status = http.StatusGatewayTimeout
		case common.KindLedgerRejected:
			status = http.StatusUnprocessableEntity
		case common.KindCancelled:
			status = 499 // client closed request
		default:
			status = http.StatusInternalServerError
		}
	}

	h.Logger.Error("http.request.failed",
		"path", c.Path(),
		"status", status,
		"code", body.Code,
		"error", err,
	)
	_ = c.JSON(status, body)
}

// Health is a liveness probe.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
