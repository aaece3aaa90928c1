package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/internal/services"
	xhttp "github.com/openbid/auction-core/pkg/http"
)

type AccountService interface {
	Register(ctx context.Context, email string) (*model.User, error)
	Get(ctx context.Context, userID int64) (*model.User, error)
	GrantCredits(ctx context.Context, p services.CreditGrant) (*model.CreditTransaction, bool, error)
	Balance(ctx context.Context, userID int64) (services.Balance, error)
}

type LedgerReader interface {
	History(ctx context.Context, userID int64, limit, offset int) ([]*model.CreditTransaction, int64, error)
}

type AccountHandler struct {
	svc    AccountService
	ledger LedgerReader
}

func RegisterAccountRoutes(e *router.Group, h *AccountHandler) {
	e.POST("/users", h.CreateUser)
	e.GET("/users/{id}", h.GetUser)
	e.GET("/users/{id}/balance", h.GetBalance)
	e.GET("/users/{id}/ledger", h.ListLedger)
	e.POST("/users/{id}/credits", h.GrantCredits)
}

func NewAccountHandler(accountService AccountService, ledger LedgerReader) *AccountHandler {
	return &AccountHandler{
		svc:    accountService,
		ledger: ledger,
	}
}

type createUserRequest struct {
	Email string `json:"email"`
}

type grantCreditsRequest struct {
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
	PurchaseID     *int64 `json:"purchase_id"`
	ActorID        *int64 `json:"actor_id"`
}

type ledgerListResponse struct {
	Items []*model.CreditTransaction `json:"items"`
	Total int64                      `json:"total"`
}

func (h *AccountHandler) CreateUser(ctx *xhttp.RequestCtx) {
	var req createUserRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Email == "" {
		writeError(ctx, 400, "email is required")
		return
	}

	user, err := h.svc.Register(ctx, req.Email)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, user)
}

func (h *AccountHandler) GetUser(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid user id")
		return
	}
	user, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, user)
}

func (h *AccountHandler) GetBalance(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid user id")
		return
	}
	balance, err := h.svc.Balance(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, balance)
}

func (h *AccountHandler) ListLedger(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid user id")
		return
	}
	items, total, err := h.ledger.History(ctx, id, queryInt(ctx, "limit"), queryInt(ctx, "offset"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, ledgerListResponse{Items: items, Total: total})
}

// GrantCredits tops up a user. The caller supplies the idempotency key so a
// retried purchase callback lands on the same ledger entry.
func (h *AccountHandler) GrantCredits(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid user id")
		return
	}
	var req grantCreditsRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.IdempotencyKey == "" {
		writeError(ctx, 400, "idempotency_key is required")
		return
	}

	entry, created, err := h.svc.GrantCredits(ctx, services.CreditGrant{
		UserID:         id,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		PurchaseID:     req.PurchaseID,
		ActorID:        req.ActorID,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	status := 200
	if created {
		status = 201
	}
	writeJSON(ctx, status, entry)
}
