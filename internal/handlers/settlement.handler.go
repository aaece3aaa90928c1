package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/openbid/auction-core/internal/model"
	xhttp "github.com/openbid/auction-core/pkg/http"
)

type SettlementService interface {
	Get(ctx context.Context, settlementID int64) (*model.AuctionSettlement, error)
	GetByAuction(ctx context.Context, auctionID int64) (*model.AuctionSettlement, error)
	MarkPaid(ctx context.Context, settlementID int64, paymentRef string) (*model.AuctionSettlement, error)
	MarkPaymentFailed(ctx context.Context, settlementID int64, reason string) (*model.AuctionSettlement, error)
	ExpireSettlement(ctx context.Context, settlementID int64) (*model.AuctionSettlement, error)
}

type SettlementHandler struct {
	svc SettlementService
}

func RegisterSettlementRoutes(e *router.Group, h *SettlementHandler) {
	e.GET("/settlements/{id}", h.GetSettlement)
	e.GET("/auctions/{id}/settlement", h.GetAuctionSettlement)
	e.POST("/settlements/{id}/payments", h.RecordPayment)
	e.POST("/settlements/{id}/payment-failures", h.RecordPaymentFailure)
	e.POST("/settlements/{id}/expire", h.ExpireSettlement)
}

func NewSettlementHandler(settlementService SettlementService) *SettlementHandler {
	return &SettlementHandler{
		svc: settlementService,
	}
}

type recordPaymentRequest struct {
	PaymentRef string `json:"payment_ref"`
}

type recordPaymentFailureRequest struct {
	Reason string `json:"reason"`
}

func (h *SettlementHandler) GetSettlement(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid settlement id")
		return
	}
	settlement, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, settlement)
}

func (h *SettlementHandler) GetAuctionSettlement(ctx *xhttp.RequestCtx) {
	auctionID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid auction id")
		return
	}
	settlement, err := h.svc.GetByAuction(ctx, auctionID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, settlement)
}

func (h *SettlementHandler) RecordPayment(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid settlement id")
		return
	}
	var req recordPaymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.PaymentRef == "" {
		writeError(ctx, 400, "payment_ref is required")
		return
	}

	settlement, err := h.svc.MarkPaid(ctx, id, req.PaymentRef)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, settlement)
}

func (h *SettlementHandler) RecordPaymentFailure(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid settlement id")
		return
	}
	var req recordPaymentFailureRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	settlement, err := h.svc.MarkPaymentFailed(ctx, id, req.Reason)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, settlement)
}

func (h *SettlementHandler) ExpireSettlement(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid settlement id")
		return
	}
	settlement, err := h.svc.ExpireSettlement(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, settlement)
}
