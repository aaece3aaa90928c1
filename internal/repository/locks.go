package repository

import (
	"context"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/pkg/pg"
)

// Locker owns the lock-ordering discipline: whenever a user row and an
// auction row must both be locked, the user lock is acquired first. This is
// the only sanctioned way to take both locks; call sites must never acquire
// them in any other order or through any other path.
type Locker struct {
	db       *pg.DB
	users    *UserRepository
	auctions *AuctionRepository
}

func NewLocker(db *pg.DB) *Locker {
	return &Locker{
		db:       db,
		users:    NewUserRepository(db),
		auctions: NewAuctionRepository(db),
	}
}

// WithUserThenAuction opens one transaction, locks the user row, then the
// auction row, and runs fn with the locked rows. Both locks are held until
// commit or rollback.
func (l *Locker) WithUserThenAuction(ctx context.Context, userID, auctionID int64, fn func(ctx context.Context, user *model.User, auction *model.Auction) error) error {
	return l.db.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := l.users.LockForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		auction, err := l.auctions.LockForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		return fn(ctx, user, auction)
	})
}

// WithUser opens one transaction and locks only the user row. Ledger writes
// for a single user go through here.
func (l *Locker) WithUser(ctx context.Context, userID int64, fn func(ctx context.Context, user *model.User) error) error {
	return l.db.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := l.users.LockForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		return fn(ctx, user)
	})
}

// WithAuction opens one transaction and locks only the auction row. Used by
// lifecycle transitions that never touch a user balance (close resolves its
// winner from already-committed bids).
func (l *Locker) WithAuction(ctx context.Context, auctionID int64, fn func(ctx context.Context, auction *model.Auction) error) error {
	return l.db.WithinTransaction(ctx, func(ctx context.Context) error {
		auction, err := l.auctions.LockForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		return fn(ctx, auction)
	})
}
