package services

import (
	"context"
	"fmt"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/pkg/logger"
)

const reconcileBatchSize = 200

type UserLister interface {
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*model.User, error)
}

// ReconcileReport summarizes one sweep.
type ReconcileReport struct {
	Checked int `json:"checked"`
	Drifted int `json:"drifted"`
	Fixed   int `json:"fixed"`
}

// ReconcileService audits ledger/cache drift across all users. It reads the
// ledger and the cached counters, logs any disagreement, and repairs the
// cache only when asked. It never mutates existing ledger entries.
type ReconcileService struct {
	users  UserLister
	ledger *LedgerService
	locker UserLocker
}

func NewReconcileService(users UserLister, ledger *LedgerService, locker UserLocker) *ReconcileService {
	return &ReconcileService{
		users:  users,
		ledger: ledger,
		locker: locker,
	}
}

// ReconcileBalances walks users in ascending id order. limit <= 0 means all
// users; a positive limit bounds the sweep so it can be resumed in slices.
func (s *ReconcileService) ReconcileBalances(ctx context.Context, fix bool, limit int) (ReconcileReport, error) {
	var report ReconcileReport
	afterID := int64(0)

	for {
		batch := reconcileBatchSize
		if limit > 0 && limit-report.Checked < batch {
			batch = limit - report.Checked
		}
		if batch <= 0 {
			return report, nil
		}

		users, err := s.users.ListAfter(ctx, afterID, batch)
		if err != nil {
			return report, fmt.Errorf("list users: %w", err)
		}
		if len(users) == 0 {
			return report, nil
		}

		for _, user := range users {
			afterID = user.ID
			if err := s.reconcileUser(ctx, user, fix, &report); err != nil {
				return report, err
			}
			report.Checked++
		}
	}
}

func (s *ReconcileService) reconcileUser(ctx context.Context, user *model.User, fix bool, report *ReconcileReport) error {
	count, err := s.ledger.ledgerRepo.CountForUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("count ledger entries for user %d: %w", user.ID, err)
	}

	// A user from before the ledger existed has no entries; the cached
	// counter is authoritative. When repairing, seed the ledger with a
	// bootstrap grant so it becomes the source of truth from here on.
	if count == 0 {
		if !fix || user.Credits == 0 {
			return nil
		}
		err := s.locker.WithUser(ctx, user.ID, func(ctx context.Context, locked *model.User) error {
			_, _, err := s.ledger.WriteLocked(ctx, LedgerWrite{
				UserID:         user.ID,
				Kind:           model.CreditKindGrant,
				Amount:         locked.Credits,
				Reason:         reasonLedgerBootstrap,
				IdempotencyKey: BootstrapKey(user.ID),
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("bootstrap ledger for user %d: %w", user.ID, err)
		}
		return nil
	}

	derived, err := s.ledger.ledgerRepo.SumForUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("derive balance for user %d: %w", user.ID, err)
	}
	cached, err := s.ledger.CachedBalance(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("read cached balance for user %d: %w", user.ID, err)
	}

	if derived == cached {
		return nil
	}

	report.Drifted++
	logger.Warn("balance drift detected",
		"user_id", user.ID,
		"derived", derived,
		"cached", cached)

	if !fix {
		return nil
	}

	// Repair under the user row lock, re-deriving inside the transaction so
	// a concurrent ledger write cannot be clobbered with a stale sum.
	err = s.locker.WithUser(ctx, user.ID, func(ctx context.Context, _ *model.User) error {
		current, err := s.ledger.ledgerRepo.SumForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		return s.ledger.userRepo.SetCachedBalance(ctx, user.ID, current)
	})
	if err != nil {
		return fmt.Errorf("fix balance for user %d: %w", user.ID, err)
	}

	report.Fixed++
	return nil
}
