package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/openbid/auction-core/internal/model"
	xhttp "github.com/openbid/auction-core/pkg/http"
	"github.com/openbid/auction-core/pkg/prom"
)

type BiddingService interface {
	PlaceBid(ctx context.Context, userID, auctionID int64) (*model.Bid, error)
	ListBids(ctx context.Context, auctionID int64, limit, offset int) ([]*model.Bid, int64, error)
}

type BidHandler struct {
	svc BiddingService
}

func RegisterBidRoutes(e *router.Group, h *BidHandler) {
	e.POST("/auctions/{id}/bids", h.PlaceBid)
	e.GET("/auctions/{id}/bids", h.ListBids)
}

func NewBidHandler(biddingService BiddingService) *BidHandler {
	return &BidHandler{
		svc: biddingService,
	}
}

type placeBidRequest struct {
	UserID int64 `json:"user_id"`
}

type bidListResponse struct {
	Items []*model.Bid `json:"items"`
	Total int64        `json:"total"`
}

func (h *BidHandler) PlaceBid(ctx *xhttp.RequestCtx) {
	auctionID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid auction id")
		return
	}
	var req placeBidRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID <= 0 {
		writeError(ctx, 400, "user_id is required")
		return
	}

	start := time.Now()
	bid, err := h.svc.PlaceBid(ctx, req.UserID, auctionID)
	prom.ObserveBidPlacementDuration(time.Since(start).Seconds())
	if err != nil {
		prom.IncBidPlaced("rejected")
		writeServiceError(ctx, err)
		return
	}
	prom.IncBidPlaced("accepted")
	writeJSON(ctx, 201, bid)
}

func (h *BidHandler) ListBids(ctx *xhttp.RequestCtx) {
	auctionID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid auction id")
		return
	}
	items, total, err := h.svc.ListBids(ctx, auctionID, queryInt(ctx, "limit"), queryInt(ctx, "offset"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, bidListResponse{Items: items, Total: total})
}
