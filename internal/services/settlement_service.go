package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openbid/auction-core/internal/events"
	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/internal/repository"
	"github.com/openbid/auction-core/pkg/logger"
	"github.com/openbid/auction-core/pkg/pg"
)

// SettlementRetryWindow is how long a winner has to complete payment before
// the expiry sweep cancels the settlement.
const SettlementRetryWindow = 48 * time.Hour

type SettlementRepository interface {
	Create(ctx context.Context, s *model.AuctionSettlement) (*model.AuctionSettlement, error)
	GetByID(ctx context.Context, id int64) (*model.AuctionSettlement, error)
	GetByAuctionID(ctx context.Context, auctionID int64) (*model.AuctionSettlement, error)
	LockForUpdate(ctx context.Context, id int64) (*model.AuctionSettlement, error)
	Update(ctx context.Context, s *model.AuctionSettlement) error
	ListExpirable(ctx context.Context, endedBefore time.Time, limit int) ([]*model.AuctionSettlement, error)
}

// Scheduler is the job-scheduler side of the settlement contract: "run an
// expiry check for this settlement at time T".
type Scheduler interface {
	ScheduleExpiryCheck(ctx context.Context, settlementID int64, at time.Time) error
}

// SettlementService creates the once-per-auction outcome snapshot and drives
// its payment transitions.
type SettlementService struct {
	db             *pg.DB
	settlementRepo SettlementRepository
	scheduler      Scheduler
	publisher      EventPublisher
	retryWindow    time.Duration
	now            func() time.Time
}

func NewSettlementService(db *pg.DB, settlementRepo SettlementRepository, scheduler Scheduler, publisher EventPublisher) *SettlementService {
	return &SettlementService{
		db:             db,
		settlementRepo: settlementRepo,
		scheduler:      scheduler,
		publisher:      publisher,
		retryWindow:    SettlementRetryWindow,
		now:            time.Now,
	}
}

// SettleLocked snapshots a just-closed auction into a settlement. It runs
// inside the close transaction, with the auction row lock held. If a
// settlement already exists the call is an idempotent no-op returning the
// existing record; this guards against double-close races.
func (s *SettlementService) SettleLocked(ctx context.Context, auction *model.Auction, topBid *model.Bid, endedAt time.Time) (*model.AuctionSettlement, bool, error) {
	existing, err := s.settlementRepo.GetByAuctionID(ctx, auction.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrSettlementNotFound) {
		return nil, false, err
	}

	settlement := &model.AuctionSettlement{
		AuctionID:       auction.ID,
		WinningUserID:   auction.WinningUserID,
		FinalPriceCents: auction.CurrentPriceCents,
		EndedAt:         endedAt,
	}
	if topBid != nil {
		settlement.WinningBidID = &topBid.ID
	}
	if auction.WinningUserID != nil && auction.CurrentPriceCents > 0 {
		settlement.Status = model.SettlementStatusPendingPayment
	} else {
		settlement.Status = model.SettlementStatusNoWinner
	}

	created, err := s.settlementRepo.Create(ctx, settlement)
	if err != nil {
		return nil, false, fmt.Errorf("create settlement: %w", err)
	}
	return created, true, nil
}

// SettleAuction settles an already-ended auction in its own transaction.
// Idempotent: repeated calls return the existing settlement. Exists for crash
// recovery, where close committed but the caller never saw the settlement.
func (s *SettlementService) SettleAuction(ctx context.Context, auction *model.Auction, topBid *model.Bid) (*model.AuctionSettlement, bool, error) {
	if auction.Status != model.AuctionStatusEnded {
		return nil, false, &model.InvalidTransitionError{Entity: "settlement", From: auction.Status.String(), To: model.SettlementStatusPendingPayment.String()}
	}

	var (
		settlement *model.AuctionSettlement
		created    bool
	)
	err := s.db.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		settlement, created, err = s.SettleLocked(ctx, auction, topBid, s.now())
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.AfterSettlement(ctx, settlement)
	}
	return settlement, created, nil
}

// AfterSettlement runs the post-commit side effects of a new settlement:
// schedule the retry-window expiry check. Best effort; the periodic sweep is
// the safety net for a lost schedule.
func (s *SettlementService) AfterSettlement(ctx context.Context, settlement *model.AuctionSettlement) {
	if settlement == nil || settlement.Status != model.SettlementStatusPendingPayment {
		return
	}
	if s.scheduler == nil {
		return
	}
	at := settlement.RetryWindowEndsAt(s.retryWindow)
	if err := s.scheduler.ScheduleExpiryCheck(ctx, settlement.ID, at); err != nil {
		logger.Error("failed to schedule settlement expiry check",
			"settlement_id", settlement.ID,
			"at", at,
			"error", err)
	}
}

// Get reads one settlement.
func (s *SettlementService) Get(ctx context.Context, settlementID int64) (*model.AuctionSettlement, error) {
	return s.settlementRepo.GetByID(ctx, settlementID)
}

// GetByAuction reads the settlement of a closed auction.
func (s *SettlementService) GetByAuction(ctx context.Context, auctionID int64) (*model.AuctionSettlement, error) {
	return s.settlementRepo.GetByAuctionID(ctx, auctionID)
}

// MarkPaid records the payment gateway's success report.
func (s *SettlementService) MarkPaid(ctx context.Context, settlementID int64, paymentRef string) (*model.AuctionSettlement, error) {
	settlement, err := s.mutate(ctx, settlementID, func(m *model.AuctionSettlement) error {
		return m.MarkPaid(paymentRef, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, settlement, events.TypeSettlementPaid)
	return settlement, nil
}

// MarkPaymentFailed records a failed payment attempt.
func (s *SettlementService) MarkPaymentFailed(ctx context.Context, settlementID int64, reason string) (*model.AuctionSettlement, error) {
	settlement, err := s.mutate(ctx, settlementID, func(m *model.AuctionSettlement) error {
		return m.MarkPaymentFailed(reason)
	})
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, settlement, events.TypeSettlementFailed)
	return settlement, nil
}

// ExpireSettlement expires one settlement if its retry window has elapsed.
func (s *SettlementService) ExpireSettlement(ctx context.Context, settlementID int64) (*model.AuctionSettlement, error) {
	settlement, err := s.mutate(ctx, settlementID, func(m *model.AuctionSettlement) error {
		return m.Expire(s.retryWindow, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, settlement, events.TypeSettlementExpired)
	return settlement, nil
}

// ExpireOverdue sweeps unpaid settlements whose retry window has elapsed and
// cancels them. Returns the number expired.
func (s *SettlementService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	cutoff := s.now().Add(-s.retryWindow)
	overdue, err := s.settlementRepo.ListExpirable(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, settlement := range overdue {
		if _, err := s.ExpireSettlement(ctx, settlement.ID); err != nil {
			// Another sweep or a payment may have won the race; keep going.
			var invalid *model.InvalidTransitionError
			if errors.As(err, &invalid) {
				logger.Warn("settlement no longer expirable",
					"settlement_id", settlement.ID,
					"error", err)
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *SettlementService) mutate(ctx context.Context, settlementID int64, apply func(*model.AuctionSettlement) error) (*model.AuctionSettlement, error) {
	var result *model.AuctionSettlement
	err := s.db.WithinTransaction(ctx, func(ctx context.Context) error {
		settlement, err := s.settlementRepo.LockForUpdate(ctx, settlementID)
		if err != nil {
			return err
		}
		if err := apply(settlement); err != nil {
			return err
		}
		if err := s.settlementRepo.Update(ctx, settlement); err != nil {
			return err
		}
		result = settlement
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SettlementService) broadcast(ctx context.Context, settlement *model.AuctionSettlement, eventType string) {
	if s.publisher == nil || settlement == nil {
		return
	}
	event := events.SettlementEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		SettlementID: settlement.ID,
		AuctionID:    settlement.AuctionID,
		Status:       settlement.Status.String(),
		OccurredAt:   s.now(),
	}
	if _, err := s.publisher.PublishJSON(ctx, event, nil); err != nil {
		logger.Error("failed to broadcast settlement event",
			"settlement_id", settlement.ID,
			"type", eventType,
			"error", err)
	}
}
