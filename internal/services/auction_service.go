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
)

type AuctionLocker interface {
	WithAuction(ctx context.Context, auctionID int64, fn func(ctx context.Context, auction *model.Auction) error) error
}

type AuctionStore interface {
	AuctionRepository
	Create(ctx context.Context, auction *model.Auction) (*model.Auction, error)
	ListByStatus(ctx context.Context, status model.AuctionStatus, limit, offset int) ([]*model.Auction, int64, error)
}

// AuctionCreateRequest carries the fields for a new listing. The window is
// optional; a windowless auction stays schedulable.
type AuctionCreateRequest struct {
	Title           string
	Description     string
	StartPriceCents int64
	StartsAt        *time.Time
	EndsAt          *time.Time
}

// AuctionService drives the auction lifecycle. Transitions that mutate the
// auction run under its row lock; close also creates the settlement in the
// same transaction.
type AuctionService struct {
	auctionRepo AuctionStore
	bidRepo     BidRepository
	locker      AuctionLocker
	settlements *SettlementService
	publisher   EventPublisher
	now         func() time.Time
}

func NewAuctionService(auctionRepo AuctionStore, bidRepo BidRepository, locker AuctionLocker, settlements *SettlementService, publisher EventPublisher) *AuctionService {
	return &AuctionService{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		locker:      locker,
		settlements: settlements,
		publisher:   publisher,
		now:         time.Now,
	}
}

// Create inserts a new pending auction.
func (s *AuctionService) Create(ctx context.Context, p AuctionCreateRequest) (*model.Auction, error) {
	auction := &model.Auction{
		Title:             p.Title,
		Description:       p.Description,
		Status:            model.AuctionStatusPending,
		CurrentPriceCents: p.StartPriceCents,
	}
	if p.StartsAt != nil && p.EndsAt != nil {
		if err := auction.Schedule(*p.StartsAt, *p.EndsAt); err != nil {
			return nil, err
		}
	}
	return s.auctionRepo.Create(ctx, auction)
}

// Get reads one auction.
func (s *AuctionService) Get(ctx context.Context, auctionID int64) (*model.Auction, error) {
	return s.auctionRepo.GetByID(ctx, auctionID)
}

// List pages auctions in one status.
func (s *AuctionService) List(ctx context.Context, status model.AuctionStatus, limit, offset int) ([]*model.Auction, int64, error) {
	return s.auctionRepo.ListByStatus(ctx, status, limit, offset)
}

// Schedule sets the auction window.
func (s *AuctionService) Schedule(ctx context.Context, auctionID int64, startsAt, endsAt time.Time) (*model.Auction, error) {
	return s.transition(ctx, auctionID, events.TypeAuctionScheduled, func(a *model.Auction) error {
		return a.Schedule(startsAt, endsAt)
	})
}

// Start opens the auction for bidding.
func (s *AuctionService) Start(ctx context.Context, auctionID int64) (*model.Auction, error) {
	return s.transition(ctx, auctionID, events.TypeAuctionStarted, func(a *model.Auction) error {
		return a.Start()
	})
}

// Extend applies the anti-sniping extension explicitly.
func (s *AuctionService) Extend(ctx context.Context, auctionID int64, by time.Duration) (*model.Auction, error) {
	return s.transition(ctx, auctionID, events.TypeAuctionExtended, func(a *model.Auction) error {
		return a.Extend(by, s.now())
	})
}

// Cancel aborts a pending or active auction.
func (s *AuctionService) Cancel(ctx context.Context, auctionID int64) (*model.Auction, error) {
	return s.transition(ctx, auctionID, events.TypeAuctionCancelled, func(a *model.Auction) error {
		return a.Cancel()
	})
}

// Retire marks a bidless auction inactive. The bid count is read inside the
// auction lock so a concurrent first bid cannot slip past the guard.
func (s *AuctionService) Retire(ctx context.Context, auctionID int64) (*model.Auction, error) {
	var retired *model.Auction
	err := s.locker.WithAuction(ctx, auctionID, func(ctx context.Context, auction *model.Auction) error {
		bidCount, err := s.bidRepo.CountByAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		if err := auction.Retire(bidCount); err != nil {
			return err
		}
		if err := s.auctionRepo.Update(ctx, auction); err != nil {
			return err
		}
		retired = auction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return retired, nil
}

// Close ends an active auction and snapshots its outcome into a settlement,
// all in one transaction. The winner is the explicit argument when given,
// else the cached winning user, else the top bidder.
func (s *AuctionService) Close(ctx context.Context, auctionID int64, winner *int64) (*model.Auction, *model.AuctionSettlement, error) {
	var (
		closed     *model.Auction
		settlement *model.AuctionSettlement
	)
	err := s.locker.WithAuction(ctx, auctionID, func(ctx context.Context, auction *model.Auction) error {
		if err := auction.Close(winner); err != nil {
			return err
		}

		topBid, err := s.bidRepo.TopBid(ctx, auctionID)
		if err != nil && !errors.Is(err, repository.ErrNoBids) {
			return fmt.Errorf("resolve top bid: %w", err)
		}
		if auction.WinningUserID == nil && topBid != nil {
			auction.WinningUserID = &topBid.UserID
		}

		if err := s.auctionRepo.Update(ctx, auction); err != nil {
			return fmt.Errorf("update auction: %w", err)
		}

		settlement, _, err = s.settlements.SettleLocked(ctx, auction, topBid, s.now())
		if err != nil {
			return err
		}
		closed = auction
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.settlements.AfterSettlement(ctx, settlement)
	s.broadcast(ctx, closed, events.TypeAuctionClosed)
	return closed, settlement, nil
}

func (s *AuctionService) transition(ctx context.Context, auctionID int64, eventType string, apply func(*model.Auction) error) (*model.Auction, error) {
	var result *model.Auction
	err := s.locker.WithAuction(ctx, auctionID, func(ctx context.Context, auction *model.Auction) error {
		if err := apply(auction); err != nil {
			return err
		}
		if err := s.auctionRepo.Update(ctx, auction); err != nil {
			return err
		}
		result = auction
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, result, eventType)
	return result, nil
}

func (s *AuctionService) broadcast(ctx context.Context, auction *model.Auction, eventType string) {
	if s.publisher == nil || auction == nil {
		return
	}
	event := events.AuctionEvent{
		ID:                uuid.NewString(),
		Type:              eventType,
		AuctionID:         auction.ID,
		UserID:            auction.WinningUserID,
		CurrentPriceCents: auction.CurrentPriceCents,
		EndTime:           auction.EndTime,
		OccurredAt:        s.now(),
	}
	if _, err := s.publisher.PublishJSON(ctx, event, nil); err != nil {
		logger.Error("failed to broadcast auction event",
			"auction_id", auction.ID,
			"type", eventType,
			"error", err)
	}
}
