package handlers

import (
	"context"
	"strings"

	"github.com/fasthttp/router"
	"github.com/openbid/auction-core/internal/services"
	xhttp "github.com/openbid/auction-core/pkg/http"
)

type ReconcileService interface {
	ReconcileBalances(ctx context.Context, fix bool, limit int) (services.ReconcileReport, error)
}

type ExpiryService interface {
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

// AdminHandler exposes the operational sweeps the worker also runs on a
// schedule, for on-demand invocation.
type AdminHandler struct {
	reconcile ReconcileService
	expiry    ExpiryService
}

func RegisterAdminRoutes(e *router.Group, h *AdminHandler) {
	e.POST("/admin/reconcile", h.Reconcile)
	e.POST("/admin/expire-settlements", h.ExpireSettlements)
}

func NewAdminHandler(reconcile ReconcileService, expiry ExpiryService) *AdminHandler {
	return &AdminHandler{
		reconcile: reconcile,
		expiry:    expiry,
	}
}

func (h *AdminHandler) Reconcile(ctx *xhttp.RequestCtx) {
	fix := strings.EqualFold(queryParam(ctx, "fix"), "true")
	report, err := h.reconcile.ReconcileBalances(ctx, fix, queryInt(ctx, "limit"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, report)
}

func (h *AdminHandler) ExpireSettlements(ctx *xhttp.RequestCtx) {
	expired, err := h.expiry.ExpireOverdue(ctx, queryInt(ctx, "limit"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]int{"expired": expired})
}
