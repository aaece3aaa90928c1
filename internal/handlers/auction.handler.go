package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/internal/services"
	xhttp "github.com/openbid/auction-core/pkg/http"
)

type AuctionService interface {
	Create(ctx context.Context, p services.AuctionCreateRequest) (*model.Auction, error)
	Get(ctx context.Context, auctionID int64) (*model.Auction, error)
	List(ctx context.Context, status model.AuctionStatus, limit, offset int) ([]*model.Auction, int64, error)
	Schedule(ctx context.Context, auctionID int64, startsAt, endsAt time.Time) (*model.Auction, error)
	Start(ctx context.Context, auctionID int64) (*model.Auction, error)
	Extend(ctx context.Context, auctionID int64, by time.Duration) (*model.Auction, error)
	Cancel(ctx context.Context, auctionID int64) (*model.Auction, error)
	Retire(ctx context.Context, auctionID int64) (*model.Auction, error)
	Close(ctx context.Context, auctionID int64, winner *int64) (*model.Auction, *model.AuctionSettlement, error)
}

type AuctionHandler struct {
	svc AuctionService
}

func RegisterAuctionRoutes(e *router.Group, h *AuctionHandler) {
	e.POST("/auctions", h.CreateAuction)
	e.GET("/auctions", h.ListAuctions)
	e.GET("/auctions/{id}", h.GetAuction)
	e.POST("/auctions/{id}/schedule", h.ScheduleAuction)
	e.POST("/auctions/{id}/start", h.StartAuction)
	e.POST("/auctions/{id}/extend", h.ExtendAuction)
	e.POST("/auctions/{id}/cancel", h.CancelAuction)
	e.POST("/auctions/{id}/retire", h.RetireAuction)
	e.POST("/auctions/{id}/close", h.CloseAuction)
}

func NewAuctionHandler(auctionService AuctionService) *AuctionHandler {
	return &AuctionHandler{
		svc: auctionService,
	}
}

type createAuctionRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	StartPriceCents int64  `json:"start_price_cents"`
	StartsAt        string `json:"starts_at"`
	EndsAt          string `json:"ends_at"`
}

type scheduleAuctionRequest struct {
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

type extendAuctionRequest struct {
	Seconds int64 `json:"seconds"`
}

type closeAuctionRequest struct {
	WinnerUserID *int64 `json:"winner_user_id"`
}

type closeAuctionResponse struct {
	Auction    *model.Auction           `json:"auction"`
	Settlement *model.AuctionSettlement `json:"settlement"`
}

type auctionListResponse struct {
	Items []*model.Auction `json:"items"`
	Total int64            `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *AuctionHandler) CreateAuction(ctx *xhttp.RequestCtx) {
	var req createAuctionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := services.AuctionCreateRequest{
		Title:           req.Title,
		Description:     req.Description,
		StartPriceCents: req.StartPriceCents,
	}
	if req.StartsAt != "" && req.EndsAt != "" {
		start, err := parseRFC3339(req.StartsAt)
		if err != nil {
			writeError(ctx, 400, "invalid starts_at: "+err.Error())
			return
		}
		end, err := parseRFC3339(req.EndsAt)
		if err != nil {
			writeError(ctx, 400, "invalid ends_at: "+err.Error())
			return
		}
		p.StartsAt = &start
		p.EndsAt = &end
	}

	auction, err := h.svc.Create(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, auction)
}

func (h *AuctionHandler) GetAuction(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid auction id")
		return
	}
	auction, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, auction)
}

func (h *AuctionHandler) ListAuctions(ctx *xhttp.RequestCtx) {
	status := model.AuctionStatus(queryParam(ctx, "status"))
	if status == "" {
		status = model.AuctionStatusActive
	}
	items, total, err := h.svc.List(ctx, status, queryInt(ctx, "limit"), queryInt(ctx, "offset"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, auctionListResponse{Items: items, Total: total})
}

func (h *AuctionHandler) ScheduleAuction(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid auction id")
		return
	}
	var req scheduleAuctionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	start, err := parseRFC3339(req.StartsAt)
	if err != nil {
		writeError(ctx, 400, "invalid starts_at: "+err.Error())
		return
	}
	end, err := parseRFC3339(req.EndsAt)
	if err != nil {
		writeError(ctx, 400, "invalid ends_at: "+err.Error())
		return
	}

	auction, err := h.svc.Schedule(ctx, id, start, end)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, auction)
}

func (h *AuctionHandler) StartAuction(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.Start)
}

func (h *AuctionHandler) CancelAuction(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.Cancel)
}

func (h *AuctionHandler) RetireAuction(ctx *xhttp.RequestCtx) {
	h.transition(ctx, h.svc.Retire)
}

func (h *AuctionHandler) ExtendAuction(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid auction id")
		return
	}
	var req extendAuctionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Seconds <= 0 {
		writeError(ctx, 400, "seconds must be positive")
		return
	}

	auction, err := h.svc.Extend(ctx, id, time.Duration(req.Seconds)*time.Second)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, auction)
}

func (h *AuctionHandler) CloseAuction(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid auction id")
		return
	}
	var req closeAuctionRequest
	if len(ctx.PostBody()) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, 400, "invalid JSON: "+err.Error())
			return
		}
	}

	auction, settlement, err := h.svc.Close(ctx, id, req.WinnerUserID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, closeAuctionResponse{Auction: auction, Settlement: settlement})
}

func (h *AuctionHandler) transition(ctx *xhttp.RequestCtx, op func(context.Context, int64) (*model.Auction, error)) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid auction id")
		return
	}
	auction, err := op(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, auction)
}
