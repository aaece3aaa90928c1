package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openbid/auction-core/internal/events"
	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/pkg/logger"
)

const (
	// BidIncrementCents is the fixed price step. Bids never carry a
	// user-supplied amount; each accepted bid advances the price by exactly
	// one increment.
	BidIncrementCents int64 = 1

	// AntiSnipeWindow is the trailing window: a bid landing while the auction
	// ends within this window pushes the end time to now+window.
	AntiSnipeWindow = 2 * time.Minute
)

type AuctionRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Auction, error)
	Update(ctx context.Context, auction *model.Auction) error
}

type BidRepository interface {
	Create(ctx context.Context, bid *model.Bid) (*model.Bid, error)
	ListByAuction(ctx context.Context, auctionID int64, limit, offset int) ([]*model.Bid, int64, error)
	TopBid(ctx context.Context, auctionID int64) (*model.Bid, error)
	CountByAuction(ctx context.Context, auctionID int64) (int64, error)
}

type DualLocker interface {
	WithUserThenAuction(ctx context.Context, userID, auctionID int64, fn func(ctx context.Context, user *model.User, auction *model.Auction) error) error
}

type BidDebiter interface {
	DebitForBidLocked(ctx context.Context, userID, auctionID int64, idempotencyKey string) (*model.CreditTransaction, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// BiddingService runs the per-bid unit of work: validate, debit, insert,
// advance price, anti-snipe extend, all inside one lock-ordered transaction.
type BiddingService struct {
	auctionRepo AuctionRepository
	bidRepo     BidRepository
	userRepo    UserRepository
	ledger      BidDebiter
	locker      DualLocker
	publisher   EventPublisher
	now         func() time.Time
}

func NewBiddingService(auctionRepo AuctionRepository, bidRepo BidRepository, userRepo UserRepository, ledger BidDebiter, locker DualLocker, publisher EventPublisher) *BiddingService {
	return &BiddingService{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		userRepo:    userRepo,
		ledger:      ledger,
		locker:      locker,
		publisher:   publisher,
		now:         time.Now,
	}
}

// PlaceBid places one bid for userID on auctionID.
//
// Cheap pre-checks run before any lock is taken: the auction must look active
// and the cached balance must be positive. The authoritative checks repeat
// inside the transaction, where the user row lock is acquired first, then the
// auction row lock. The loser of a price race gets ErrPriceRaced and decides
// for itself whether to retry.
func (s *BiddingService) PlaceBid(ctx context.Context, userID, auctionID int64) (*model.Bid, error) {
	auction, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status != model.AuctionStatusActive {
		return nil, ErrAuctionNotActive
	}

	cached, err := s.userRepo.GetCachedBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cached <= 0 {
		return nil, ErrInsufficientCredits
	}

	newPrice := auction.CurrentPriceCents + BidIncrementCents

	var (
		acceptedBid    *model.Bid
		updatedAuction *model.Auction
	)
	err = s.locker.WithUserThenAuction(ctx, userID, auctionID, func(ctx context.Context, _ *model.User, locked *model.Auction) error {
		if locked.Status != model.AuctionStatusActive {
			return ErrAuctionNotActive
		}
		// Optimistic race check inside the pessimistic lock: if the price
		// already reached what we computed from the unlocked read, another
		// bid got there first.
		if locked.CurrentPriceCents >= newPrice {
			return ErrPriceRaced
		}

		key := fmt.Sprintf("bid:%d:%d:%d", auctionID, userID, newPrice)
		if _, err := s.ledger.DebitForBidLocked(ctx, userID, auctionID, key); err != nil {
			return err
		}

		bid, err := s.bidRepo.Create(ctx, &model.Bid{
			AuctionID:   auctionID,
			UserID:      userID,
			AmountCents: newPrice,
		})
		if err != nil {
			return fmt.Errorf("create bid: %w", err)
		}

		locked.CurrentPriceCents = newPrice
		locked.WinningUserID = &userID

		now := s.now()
		if locked.EndTime != nil && !locked.EndTime.After(now.Add(AntiSnipeWindow)) {
			if err := locked.Extend(AntiSnipeWindow, now); err != nil {
				return err
			}
		}

		if err := s.auctionRepo.Update(ctx, locked); err != nil {
			return fmt.Errorf("update auction: %w", err)
		}

		acceptedBid = bid
		updatedAuction = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcastBid(ctx, acceptedBid, updatedAuction)
	return acceptedBid, nil
}

// ListBids pages an auction's bid history, newest first.
func (s *BiddingService) ListBids(ctx context.Context, auctionID int64, limit, offset int) ([]*model.Bid, int64, error) {
	return s.bidRepo.ListByAuction(ctx, auctionID, limit, offset)
}

// broadcastBid publishes the committed bid to external listeners. Best
// effort: a publish failure is logged and never invalidates the bid.
func (s *BiddingService) broadcastBid(ctx context.Context, bid *model.Bid, auction *model.Auction) {
	if s.publisher == nil {
		return
	}
	event := events.AuctionEvent{
		ID:                uuid.NewString(),
		Type:              events.TypeBidPlaced,
		AuctionID:         auction.ID,
		BidID:             &bid.ID,
		UserID:            &bid.UserID,
		CurrentPriceCents: auction.CurrentPriceCents,
		EndTime:           auction.EndTime,
		OccurredAt:        s.now(),
	}
	if _, err := s.publisher.PublishJSON(ctx, event, nil); err != nil {
		logger.Error("failed to broadcast bid event",
			"auction_id", auction.ID,
			"bid_id", bid.ID,
			"error", err)
	}
}
