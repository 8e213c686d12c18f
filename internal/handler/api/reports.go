package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"StratGate/internal/domain/repository"
	"StratGate/internal/services/indicator"
	"StratGate/internal/services/strategy"
	"StratGate/internal/usecase"
	xhttp "StratGate/pkg/http"
	xlogger "StratGate/pkg/logger"
)

// ReportsHandler exposes the validation engine over HTTP. It only renders
// plain result structs; all semantics live in the usecase layer.
type ReportsHandler struct {
	logger       *xlogger.Logger
	orchestrator *usecase.Orchestrator
	store        repository.ReportStore
}

func NewReportsHandler(logger *xlogger.Logger, orchestrator *usecase.Orchestrator, store repository.ReportStore) *ReportsHandler {
	return &ReportsHandler{logger: logger, orchestrator: orchestrator, store: store}
}

func (h *ReportsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/validate", h.Validate)
	g.GET("/reports/:symbol", h.Report)
	g.GET("/health", h.Health)
}

// ValidateRequest is the body of POST /api/v1/validate.
type ValidateRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,dive,required"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
	TF      string   `json:"tf"`
}

func (h *ReportsHandler) Validate(c echo.Context) error {
	req := &ValidateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tf := repository.NormalizeTimeframe(req.TF)
	start := xhttp.ParseTimeDefault(req.Start, time.Time{})
	end := xhttp.ParseTimeDefault(req.End, time.Time{})

	res, err := h.orchestrator.Run(
		c.Request().Context(),
		req.Symbols,
		start, end, tf,
		indicator.NewBuiltinExtractor(),
		strategy.NewMomentum(),
		strategy.PassThrough(),
	)
	if err != nil {
		h.logger.Error("validation run failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ReportsHandler) Report(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol is required")
	}
	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("report_store_disabled", "", "report store is not configured", 503))
	}

	r, err := h.store.LatestSymbolResult(c.Request().Context(), symbol)
	if err != nil {
		h.logger.Error("report lookup failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, r)
}

type healthStatus struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func (h *ReportsHandler) Health(c echo.Context) error {
	status := healthStatus{Status: "ok", Store: "disabled"}
	if h.store != nil {
		status.Store = "ok"
		if err := h.store.Health(c.Request().Context()); err != nil {
			status.Store = "down"
		}
	}
	return xhttp.SuccessResponse(c, status)
}
