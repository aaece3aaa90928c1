package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/internal/repository"
	"github.com/openbid/auction-core/pkg/logger"
)

type LedgerRepository interface {
	Create(ctx context.Context, txn *model.CreditTransaction) (*model.CreditTransaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.CreditTransaction, error)
	SumForUser(ctx context.Context, userID int64) (int64, error)
	CountForUser(ctx context.Context, userID int64) (int64, error)
	ListForUser(ctx context.Context, userID int64, limit, offset int) ([]*model.CreditTransaction, int64, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetCachedBalance(ctx context.Context, id int64) (int64, error)
	SetCachedBalance(ctx context.Context, id int64, credits int64) error
}

type UserLocker interface {
	WithUser(ctx context.Context, userID int64, fn func(ctx context.Context, user *model.User) error) error
}

const reasonLedgerBootstrap = "ledger_bootstrap"

// BootstrapKey is the idempotency key of a user's ledger bootstrap grant.
func BootstrapKey(userID int64) string {
	return fmt.Sprintf("bootstrap:user:%d", userID)
}

// LedgerWrite is the input for one ledger entry.
type LedgerWrite struct {
	UserID         int64
	Kind           model.CreditTransactionKind
	Amount         int64
	Reason         string
	IdempotencyKey string
	AuctionID      *int64
	PurchaseID     *int64
	ActorID        *int64
	PaymentEventID *string
	Metadata       string
}

// LedgerService owns the credits ledger write path and balance derivation.
// Every write holds the user row lock for its duration, and every write
// leaves the materialized counter equal to the ledger sum.
type LedgerService struct {
	ledgerRepo LedgerRepository
	userRepo   UserRepository
	locker     UserLocker
}

func NewLedgerService(ledgerRepo LedgerRepository, userRepo UserRepository, locker UserLocker) *LedgerService {
	return &LedgerService{
		ledgerRepo: ledgerRepo,
		userRepo:   userRepo,
		locker:     locker,
	}
}

// Write appends a ledger entry under the user row lock. When an entry with
// the same idempotency key already exists for the same user, the existing
// entry is returned with created=false and nothing is written.
func (s *LedgerService) Write(ctx context.Context, p LedgerWrite) (*model.CreditTransaction, bool, error) {
	var (
		entry   *model.CreditTransaction
		created bool
	)
	err := s.locker.WithUser(ctx, p.UserID, func(ctx context.Context, _ *model.User) error {
		var err error
		entry, created, err = s.WriteLocked(ctx, p)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return entry, created, nil
}

// WriteLocked is the in-transaction write path. The caller must already hold
// the user row lock (via Locker); the bid placement transaction supplies it.
func (s *LedgerService) WriteLocked(ctx context.Context, p LedgerWrite) (*model.CreditTransaction, bool, error) {
	existing, err := s.ledgerRepo.GetByIdempotencyKey(ctx, p.IdempotencyKey)
	if err == nil {
		if existing.UserID != p.UserID {
			logger.Error("ledger idempotency key collision across users",
				"idempotency_key", p.IdempotencyKey,
				"owner_user_id", existing.UserID,
				"caller_user_id", p.UserID)
			return nil, false, fmt.Errorf("%w: key %q owned by user %d, caller %d",
				ErrIdempotencyKeyConflict, p.IdempotencyKey, existing.UserID, p.UserID)
		}
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrEntryNotFound) {
		return nil, false, err
	}

	// A user from before the ledger existed carries a nonzero cached counter
	// and no entries. Seed the bootstrap grant first, so the ledger sum equals
	// the counter at the moment the ledger becomes the source of truth.
	if p.Reason != reasonLedgerBootstrap {
		if err := s.bootstrapLegacyTx(ctx, p.UserID); err != nil {
			return nil, false, err
		}
	}

	entry, err := s.ledgerRepo.Create(ctx, &model.CreditTransaction{
		UserID:         p.UserID,
		Kind:           p.Kind,
		Amount:         p.Amount,
		Reason:         p.Reason,
		IdempotencyKey: p.IdempotencyKey,
		AuctionID:      p.AuctionID,
		PurchaseID:     p.PurchaseID,
		ActorID:        p.ActorID,
		PaymentEventID: p.PaymentEventID,
		Metadata:       p.Metadata,
	})
	if err != nil {
		return nil, false, fmt.Errorf("append ledger entry: %w", err)
	}

	// Refresh the materialized counter from the full ledger sum in the same
	// transaction, so derived and cached can never be observed apart.
	derived, err := s.ledgerRepo.SumForUser(ctx, p.UserID)
	if err != nil {
		return nil, false, fmt.Errorf("derive balance: %w", err)
	}
	if err := s.userRepo.SetCachedBalance(ctx, p.UserID, derived); err != nil {
		return nil, false, fmt.Errorf("refresh cached balance: %w", err)
	}

	return entry, true, nil
}

// bootstrapLegacyTx seeds the ledger for a pre-ledger user. Must run under
// the user row lock, before the user's first real entry is appended.
func (s *LedgerService) bootstrapLegacyTx(ctx context.Context, userID int64) error {
	count, err := s.ledgerRepo.CountForUser(ctx, userID)
	if err != nil {
		return err
	}
	if count != 0 {
		return nil
	}
	cached, err := s.userRepo.GetCachedBalance(ctx, userID)
	if err != nil {
		return err
	}
	if cached <= 0 {
		return nil
	}
	_, err = s.ledgerRepo.Create(ctx, &model.CreditTransaction{
		UserID:         userID,
		Kind:           model.CreditKindGrant,
		Amount:         cached,
		Reason:         reasonLedgerBootstrap,
		IdempotencyKey: BootstrapKey(userID),
	})
	if err != nil {
		return fmt.Errorf("bootstrap ledger for user %d: %w", userID, err)
	}
	return nil
}

// DebitForBid acquires the user lock itself, then debits one credit. Callers
// already inside a lock-ordered transaction use DebitForBidLocked instead.
func (s *LedgerService) DebitForBid(ctx context.Context, userID, auctionID int64, idempotencyKey string) (*model.CreditTransaction, error) {
	var entry *model.CreditTransaction
	err := s.locker.WithUser(ctx, userID, func(ctx context.Context, _ *model.User) error {
		var err error
		entry, err = s.DebitForBidLocked(ctx, userID, auctionID, idempotencyKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DebitForBidLocked writes the -1 bid debit. The authoritative balance check
// happens here, against the derived balance, under the already-held user lock.
func (s *LedgerService) DebitForBidLocked(ctx context.Context, userID, auctionID int64, idempotencyKey string) (*model.CreditTransaction, error) {
	derived, err := s.derivedBalanceTx(ctx, userID)
	if err != nil {
		return nil, err
	}
	if derived <= 0 {
		return nil, ErrInsufficientCredits
	}

	entry, _, err := s.WriteLocked(ctx, LedgerWrite{
		UserID:         userID,
		Kind:           model.CreditKindDebit,
		Amount:         -1,
		Reason:         "bid_debit",
		IdempotencyKey: idempotencyKey,
		AuctionID:      &auctionID,
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DerivedBalance folds the ledger for a user. Users created before the ledger
// existed have no entries; for them the cached counter is authoritative until
// their first write.
func (s *LedgerService) DerivedBalance(ctx context.Context, userID int64) (int64, error) {
	return s.derivedBalanceTx(ctx, userID)
}

func (s *LedgerService) derivedBalanceTx(ctx context.Context, userID int64) (int64, error) {
	count, err := s.ledgerRepo.CountForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return s.userRepo.GetCachedBalance(ctx, userID)
	}
	return s.ledgerRepo.SumForUser(ctx, userID)
}

// CachedBalance reads the materialized counter.
func (s *LedgerService) CachedBalance(ctx context.Context, userID int64) (int64, error) {
	return s.userRepo.GetCachedBalance(ctx, userID)
}

// History lists a user's ledger entries newest first.
func (s *LedgerService) History(ctx context.Context, userID int64, limit, offset int) ([]*model.CreditTransaction, int64, error) {
	return s.ledgerRepo.ListForUser(ctx, userID, limit, offset)
}
