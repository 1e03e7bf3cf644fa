package api

import (
	"errors"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/usecase"
	xhttp "SignalDesk/pkg/http"
	xlogger "SignalDesk/pkg/logger"

	"github.com/labstack/echo/v4"
)

// TradingHandler exposes the commitment lifecycle to the dashboard UI.
type TradingHandler struct {
	logger *xlogger.Logger
	orch   *usecase.Orchestrator
	hub    *StreamHub
}

func NewTradingHandler(logger *xlogger.Logger, orch *usecase.Orchestrator, hub *StreamHub) *TradingHandler {
	return &TradingHandler{logger: logger, orch: orch, hub: hub}
}

func (h *TradingHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.Signals)
	g.GET("/eligibility", h.Eligibility)
	g.GET("/wallet", h.Wallet)
	g.GET("/history", h.History)
	g.GET("/state", h.State)
	g.POST("/commitments", h.Confirm)
	g.GET("/commitments/active", h.ActiveCommitment)
	g.POST("/commitments/active/ack", h.Acknowledge)
	g.POST("/commitments/active/resume", h.Resume)
	e.GET("/ws", h.hub.Handle)
}

func (h *TradingHandler) Signals(c echo.Context) error {
	cat, err := h.orch.Signals(c.Request().Context())
	if err != nil {
		if errors.Is(err, models.ErrRateLimited) {
			// Transient; serve an empty set rather than a hard error.
			return xhttp.SuccessResponse(c, models.Catalog{})
		}
		h.logger.Error("signals usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, cat)
}

func (h *TradingHandler) Eligibility(c echo.Context) error {
	v, err := h.orch.Eligibility(c.Request().Context(), accountActive(c))
	if err != nil {
		h.logger.Error("eligibility usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, v)
}

func (h *TradingHandler) Wallet(c echo.Context) error {
	snap, err := h.orch.Wallet(c.Request().Context())
	if err != nil && snap.FetchedAt.IsZero() {
		h.logger.Error("wallet usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *TradingHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	page, err := h.orch.History(c.Request().Context(), req.Page, req.PageSize)
	if err != nil {
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, page.Items, page.Total)
}

func (h *TradingHandler) ActiveCommitment(c echo.Context) error {
	st := h.orch.State()
	if st.Commitment == nil {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundError("no active commitment"))
	}
	return xhttp.SuccessResponse(c, st.Commitment)
}

func (h *TradingHandler) State(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.orch.State())
}

func (h *TradingHandler) Confirm(c echo.Context) error {
	req := &models.ConfirmRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	st, err := h.orch.Confirm(c.Request().Context(), req.SignalID, accountActive(c))
	if err != nil {
		if errors.Is(err, models.ErrRateLimited) {
			// Swallowed by design note in the confirmer: the client shows
			// the unchanged state, no error banner.
			return xhttp.SuccessResponse(c, st)
		}
		var cerr *usecase.ConfirmationError
		if errors.As(err, &cerr) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(cerr.Reason))
		}
		h.logger.Error("confirm usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, st)
}

func (h *TradingHandler) Acknowledge(c echo.Context) error {
	req := &models.AckRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.orch.Acknowledge(req.UsageID); err != nil {
		var cerr *usecase.ConfirmationError
		if errors.As(err, &cerr) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(cerr.Reason))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.orch.State())
}

func (h *TradingHandler) Resume(c echo.Context) error {
	h.orch.Resume()
	return xhttp.SuccessResponse(c, h.orch.State())
}

// accountActive reads the activation flag forwarded by the auth proxy. The
// platform enforces the real rule; this only frames eligibility client-side.
func accountActive(c echo.Context) bool {
	return c.Request().Header.Get("X-Account-Active") != "false"
}
