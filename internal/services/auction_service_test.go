package services

import (
	"context"
	"testing"
	"time"

	"github.com/openbid/auction-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuctionService(env *testEnv) *AuctionService {
	settlements := NewSettlementService(env.db, env.settlements, nil, nil)
	return NewAuctionService(env.auctions, env.bids, env.locker, settlements, nil)
}

func TestAuctionService_Lifecycle(t *testing.T) {
	env := setupTestEnv(t)
	svc := newAuctionService(env)
	ctx := context.Background()

	t.Run("schedule then start", func(t *testing.T) {
		auction, err := env.auctions.Create(ctx, &model.Auction{
			Title:  "vintage watch",
			Status: model.AuctionStatusPending,
		})
		require.NoError(t, err)

		starts := time.Now().Add(time.Hour)
		ends := starts.Add(24 * time.Hour)
		scheduled, err := svc.Schedule(ctx, auction.ID, starts, ends)
		require.NoError(t, err)
		assert.Equal(t, model.AuctionStatusPending, scheduled.Status)
		require.NotNil(t, scheduled.EndTime)

		started, err := svc.Start(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AuctionStatusActive, started.Status)
	})

	t.Run("schedule rejects inverted window", func(t *testing.T) {
		auction, err := env.auctions.Create(ctx, &model.Auction{
			Title:  "inverted",
			Status: model.AuctionStatusPending,
		})
		require.NoError(t, err)

		now := time.Now()
		_, err = svc.Schedule(ctx, auction.ID, now, now.Add(-time.Hour))
		assert.ErrorIs(t, err, model.ErrEndBeforeStart)
	})

	t.Run("start requires pending", func(t *testing.T) {
		auction := env.createActiveAuction(t, 100, time.Hour)

		_, err := svc.Start(ctx, auction.ID)
		var invalid *model.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "active", invalid.From)
	})

	t.Run("cancel active auction", func(t *testing.T) {
		auction := env.createActiveAuction(t, 100, time.Hour)

		cancelled, err := svc.Cancel(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AuctionStatusCancelled, cancelled.Status)

		_, err = svc.Cancel(ctx, auction.ID)
		var invalid *model.InvalidTransitionError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestAuctionService_Retire(t *testing.T) {
	env := setupTestEnv(t)
	svc := newAuctionService(env)
	ctx := context.Background()

	t.Run("bidless pending auction can retire", func(t *testing.T) {
		auction, err := env.auctions.Create(ctx, &model.Auction{
			Title:  "unloved",
			Status: model.AuctionStatusPending,
		})
		require.NoError(t, err)

		retired, err := svc.Retire(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AuctionStatusInactive, retired.Status)

		// A retired auction can be rescheduled.
		starts := time.Now().Add(time.Hour)
		rescheduled, err := svc.Schedule(ctx, auction.ID, starts, starts.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, model.AuctionStatusPending, rescheduled.Status)
	})

	t.Run("active auction cannot retire", func(t *testing.T) {
		auction, err := env.auctions.Create(ctx, &model.Auction{
			Title:  "already open",
			Status: model.AuctionStatusActive,
		})
		require.NoError(t, err)

		_, err = svc.Retire(ctx, auction.ID)
		var invalid *model.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)

		unchanged, err := env.auctions.GetByID(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AuctionStatusActive, unchanged.Status)
	})

	t.Run("auction with bids can never retire", func(t *testing.T) {
		user := env.createUser(t, "retire@example.com", 0)

		pending, err := env.auctions.Create(ctx, &model.Auction{
			Title:  "pending with bid",
			Status: model.AuctionStatusPending,
		})
		require.NoError(t, err)
		_, err = env.bids.Create(ctx, &model.Bid{AuctionID: pending.ID, UserID: user.ID, AmountCents: 1})
		require.NoError(t, err)

		_, err = svc.Retire(ctx, pending.ID)
		var invalid *model.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)

		unchanged, err := env.auctions.GetByID(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AuctionStatusPending, unchanged.Status)
	})
}

func TestAuctionService_Close(t *testing.T) {
	env := setupTestEnv(t)
	svc := newAuctionService(env)
	ctx := context.Background()

	t.Run("close resolves winner from top bid", func(t *testing.T) {
		user := env.createUser(t, "close1@example.com", 0)
		env.grantCredits(t, user.ID, 2, "purchase:close1")
		auction := env.createActiveAuction(t, 2500, time.Hour)

		bidding := newBiddingService(env)
		_, err := bidding.PlaceBid(ctx, user.ID, auction.ID)
		require.NoError(t, err)

		closed, settlement, err := svc.Close(ctx, auction.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, model.AuctionStatusEnded, closed.Status)
		require.NotNil(t, closed.WinningUserID)
		assert.Equal(t, user.ID, *closed.WinningUserID)

		require.NotNil(t, settlement)
		assert.Equal(t, model.SettlementStatusPendingPayment, settlement.Status)
		assert.Equal(t, int64(2501), settlement.FinalPriceCents)
		require.NotNil(t, settlement.WinningUserID)
		assert.Equal(t, user.ID, *settlement.WinningUserID)
	})

	t.Run("close without bids settles as no winner", func(t *testing.T) {
		auction := env.createActiveAuction(t, 100, time.Hour)

		closed, settlement, err := svc.Close(ctx, auction.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, model.AuctionStatusEnded, closed.Status)
		assert.Nil(t, closed.WinningUserID)
		assert.Equal(t, model.SettlementStatusNoWinner, settlement.Status)
	})

	t.Run("double close is rejected, settlement survives once", func(t *testing.T) {
		auction := env.createActiveAuction(t, 100, time.Hour)

		_, first, err := svc.Close(ctx, auction.ID, nil)
		require.NoError(t, err)

		_, _, err = svc.Close(ctx, auction.ID, nil)
		var invalid *model.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)

		existing, err := env.settlements.GetByAuctionID(ctx, auction.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, existing.ID)
	})
}
