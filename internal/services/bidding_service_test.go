package services

import (
	"context"
	"testing"
	"time"

	"github.com/openbid/auction-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBiddingService(env *testEnv) *BiddingService {
	return NewBiddingService(env.auctions, env.bids, env.users, env.ledger, env.locker, nil)
}

// staleAuctionReader serves a snapshot taken before a concurrent bid
// committed, reproducing the read-then-lock race deterministically.
type staleAuctionReader struct {
	AuctionRepository
	stale model.Auction
}

func (r *staleAuctionReader) GetByID(ctx context.Context, id int64) (*model.Auction, error) {
	snapshot := r.stale
	return &snapshot, nil
}

func TestBiddingService_PlaceBid(t *testing.T) {
	env := setupTestEnv(t)
	svc := newBiddingService(env)
	ctx := context.Background()

	t.Run("accepted bid advances price and debits one credit", func(t *testing.T) {
		user := env.createUser(t, "bid1@example.com", 0)
		env.grantCredits(t, user.ID, 1, "purchase:bid1")
		auction := env.createActiveAuction(t, 1000, time.Hour)

		bid, err := svc.PlaceBid(ctx, user.ID, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1001), bid.AmountCents)

		updated, err := env.auctions.GetByID(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1001), updated.CurrentPriceCents)
		require.NotNil(t, updated.WinningUserID)
		assert.Equal(t, user.ID, *updated.WinningUserID)

		cached, err := env.ledger.CachedBalance(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), cached)
	})

	t.Run("zero credits rejected before any lock", func(t *testing.T) {
		user := env.createUser(t, "bid2@example.com", 0)
		auction := env.createActiveAuction(t, 1000, time.Hour)

		_, err := svc.PlaceBid(ctx, user.ID, auction.ID)
		assert.ErrorIs(t, err, ErrInsufficientCredits)

		unchanged, err := env.auctions.GetByID(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), unchanged.CurrentPriceCents)

		count, err := env.bids.CountByAuction(ctx, auction.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("inactive auction rejected", func(t *testing.T) {
		user := env.createUser(t, "bid3@example.com", 0)
		env.grantCredits(t, user.ID, 1, "purchase:bid3")
		auction, err := env.auctions.Create(ctx, &model.Auction{
			Title:  "not started",
			Status: model.AuctionStatusPending,
		})
		require.NoError(t, err)

		_, err = svc.PlaceBid(ctx, user.ID, auction.ID)
		assert.ErrorIs(t, err, ErrAuctionNotActive)
	})

	t.Run("sequential bids step the price one increment each", func(t *testing.T) {
		auction := env.createActiveAuction(t, 500, time.Hour)
		for i, email := range []string{"seq1@example.com", "seq2@example.com", "seq3@example.com"} {
			user := env.createUser(t, email, 0)
			env.grantCredits(t, user.ID, 1, "purchase:"+email)
			bid, err := svc.PlaceBid(ctx, user.ID, auction.ID)
			require.NoError(t, err)
			assert.Equal(t, 500+int64(i+1)*BidIncrementCents, bid.AmountCents)
		}

		final, err := env.auctions.GetByID(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(503), final.CurrentPriceCents)

		count, err := env.bids.CountByAuction(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}

func TestBiddingService_PriceRace(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	winner := env.createUser(t, "winner@example.com", 0)
	env.grantCredits(t, winner.ID, 1, "purchase:winner")
	loser := env.createUser(t, "loser@example.com", 0)
	env.grantCredits(t, loser.ID, 1, "purchase:loser")
	auction := env.createActiveAuction(t, 1000, time.Hour)

	// The loser reads the auction at 10.00...
	stale := &staleAuctionReader{AuctionRepository: env.auctions, stale: *auction}
	racingSvc := NewBiddingService(stale, env.bids, env.users, env.ledger, env.locker, nil)

	// ...but the winner's bid commits first.
	winnerSvc := newBiddingService(env)
	_, err := winnerSvc.PlaceBid(ctx, winner.ID, auction.ID)
	require.NoError(t, err)

	_, err = racingSvc.PlaceBid(ctx, loser.ID, auction.ID)
	assert.ErrorIs(t, err, ErrPriceRaced)

	// The losing attempt rolled back whole: no bid row, no debit.
	count, err := env.bids.CountByAuction(ctx, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	cached, err := env.ledger.CachedBalance(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached)

	// A fresh attempt against the current price succeeds one step higher.
	bid, err := winnerSvc.PlaceBid(ctx, loser.ID, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1002), bid.AmountCents)
}

func TestBiddingService_AntiSnipeExtension(t *testing.T) {
	env := setupTestEnv(t)
	svc := newBiddingService(env)
	ctx := context.Background()

	t.Run("late bid pushes the end time", func(t *testing.T) {
		user := env.createUser(t, "sniper@example.com", 0)
		env.grantCredits(t, user.ID, 1, "purchase:sniper")
		auction := env.createActiveAuction(t, 100, 30*time.Second)

		before := time.Now()
		_, err := svc.PlaceBid(ctx, user.ID, auction.ID)
		require.NoError(t, err)

		updated, err := env.auctions.GetByID(ctx, auction.ID)
		require.NoError(t, err)
		require.NotNil(t, updated.EndTime)
		assert.False(t, updated.EndTime.Before(before.Add(AntiSnipeWindow)))
	})

	t.Run("early bid leaves the end time alone", func(t *testing.T) {
		user := env.createUser(t, "early@example.com", 0)
		env.grantCredits(t, user.ID, 1, "purchase:early")
		auction := env.createActiveAuction(t, 100, time.Hour)
		originalEnd := *auction.EndTime

		_, err := svc.PlaceBid(ctx, user.ID, auction.ID)
		require.NoError(t, err)

		updated, err := env.auctions.GetByID(ctx, auction.ID)
		require.NoError(t, err)
		require.NotNil(t, updated.EndTime)
		assert.WithinDuration(t, originalEnd, *updated.EndTime, time.Second)
	})
}
