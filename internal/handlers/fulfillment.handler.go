package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/openbid/auction-core/internal/model"
	xhttp "github.com/openbid/auction-core/pkg/http"
)

type FulfillmentService interface {
	Claim(ctx context.Context, settlementID, userID int64) (*model.AuctionFulfillment, error)
	TransitionTo(ctx context.Context, fulfillmentID int64, next model.FulfillmentStatus, carrier, trackingNumber *string) (*model.AuctionFulfillment, error)
	Get(ctx context.Context, fulfillmentID int64) (*model.AuctionFulfillment, error)
}

type FulfillmentHandler struct {
	svc FulfillmentService
}

func RegisterFulfillmentRoutes(e *router.Group, h *FulfillmentHandler) {
	e.POST("/settlements/{id}/fulfillment", h.ClaimFulfillment)
	e.GET("/fulfillments/{id}", h.GetFulfillment)
	e.POST("/fulfillments/{id}/status", h.TransitionFulfillment)
}

func NewFulfillmentHandler(fulfillmentService FulfillmentService) *FulfillmentHandler {
	return &FulfillmentHandler{
		svc: fulfillmentService,
	}
}

type claimFulfillmentRequest struct {
	UserID int64 `json:"user_id"`
}

type transitionFulfillmentRequest struct {
	Status         string  `json:"status"`
	Carrier        *string `json:"carrier"`
	TrackingNumber *string `json:"tracking_number"`
}

func (h *FulfillmentHandler) ClaimFulfillment(ctx *xhttp.RequestCtx) {
	settlementID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid settlement id")
		return
	}
	var req claimFulfillmentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID <= 0 {
		writeError(ctx, 400, "user_id is required")
		return
	}

	fulfillment, err := h.svc.Claim(ctx, settlementID, req.UserID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, fulfillment)
}

func (h *FulfillmentHandler) GetFulfillment(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid fulfillment id")
		return
	}
	fulfillment, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, fulfillment)
}

func (h *FulfillmentHandler) TransitionFulfillment(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid fulfillment id")
		return
	}
	var req transitionFulfillmentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Status == "" {
		writeError(ctx, 400, "status is required")
		return
	}

	fulfillment, err := h.svc.TransitionTo(ctx, id, model.FulfillmentStatus(req.Status), req.Carrier, req.TrackingNumber)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, fulfillment)
}
