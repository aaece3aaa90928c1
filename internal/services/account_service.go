package services

import (
	"context"

	"github.com/openbid/auction-core/internal/model"
)

type AccountStore interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// CreditGrant is the input for a credit purchase or manual top-up.
type CreditGrant struct {
	UserID         int64
	Amount         int64
	Reason         string
	IdempotencyKey string
	PurchaseID     *int64
	ActorID        *int64
}

// Balance pairs the materialized counter with the ledger-derived sum so
// callers can observe both sides of the cache.
type Balance struct {
	UserID  int64 `json:"user_id"`
	Cached  int64 `json:"cached"`
	Derived int64 `json:"derived"`
}

// AccountService covers user registration and the credit top-up path. All
// credit movement goes through the ledger.
type AccountService struct {
	users  AccountStore
	ledger *LedgerService
}

func NewAccountService(users AccountStore, ledger *LedgerService) *AccountService {
	return &AccountService{
		users:  users,
		ledger: ledger,
	}
}

func (s *AccountService) Register(ctx context.Context, email string) (*model.User, error) {
	return s.users.Create(ctx, &model.User{Email: email})
}

func (s *AccountService) Get(ctx context.Context, userID int64) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// GrantCredits appends a grant entry. Replays with the same idempotency key
// return the original entry with created=false.
func (s *AccountService) GrantCredits(ctx context.Context, p CreditGrant) (*model.CreditTransaction, bool, error) {
	reason := p.Reason
	if reason == "" {
		reason = "credit_purchase"
	}
	return s.ledger.Write(ctx, LedgerWrite{
		UserID:         p.UserID,
		Kind:           model.CreditKindGrant,
		Amount:         p.Amount,
		Reason:         reason,
		IdempotencyKey: p.IdempotencyKey,
		PurchaseID:     p.PurchaseID,
		ActorID:        p.ActorID,
	})
}

func (s *AccountService) Balance(ctx context.Context, userID int64) (Balance, error) {
	cached, err := s.ledger.CachedBalance(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	derived, err := s.ledger.DerivedBalance(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{UserID: userID, Cached: cached, Derived: derived}, nil
}
