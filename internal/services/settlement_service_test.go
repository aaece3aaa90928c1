package services

import (
	"context"
	"testing"
	"time"

	"github.com/openbid/auction-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func endedAuction(t *testing.T, env *testEnv, priceCents int64, winner *int64) *model.Auction {
	t.Helper()
	auction, err := env.auctions.Create(context.Background(), &model.Auction{
		Title:             "ended",
		Status:            model.AuctionStatusEnded,
		CurrentPriceCents: priceCents,
		WinningUserID:     winner,
	})
	require.NoError(t, err)
	return auction
}

func TestSettlementService_SettleAuction(t *testing.T) {
	env := setupTestEnv(t)
	svc := NewSettlementService(env.db, env.settlements, nil, nil)
	ctx := context.Background()

	t.Run("winner owing a positive amount becomes pending payment", func(t *testing.T) {
		user := env.createUser(t, "settle1@example.com", 0)
		auction := endedAuction(t, env, 2500, &user.ID)

		settlement, created, err := svc.SettleAuction(ctx, auction, nil)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, model.SettlementStatusPendingPayment, settlement.Status)
		assert.Equal(t, int64(2500), settlement.FinalPriceCents)
	})

	t.Run("settling twice returns the first record", func(t *testing.T) {
		user := env.createUser(t, "settle2@example.com", 0)
		auction := endedAuction(t, env, 1000, &user.ID)

		first, created, err := svc.SettleAuction(ctx, auction, nil)
		require.NoError(t, err)
		require.True(t, created)

		second, created, err := svc.SettleAuction(ctx, auction, nil)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("active auction cannot settle", func(t *testing.T) {
		auction := env.createActiveAuction(t, 100, time.Hour)

		_, _, err := svc.SettleAuction(ctx, auction, nil)
		var invalid *model.InvalidTransitionError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestSettlementService_PaymentTransitions(t *testing.T) {
	env := setupTestEnv(t)
	svc := NewSettlementService(env.db, env.settlements, nil, nil)
	ctx := context.Background()

	newSettlement := func(t *testing.T, email string) *model.AuctionSettlement {
		user := env.createUser(t, email, 0)
		auction := endedAuction(t, env, 1500, &user.ID)
		settlement, _, err := svc.SettleAuction(ctx, auction, nil)
		require.NoError(t, err)
		return settlement
	}

	t.Run("pending payment to paid", func(t *testing.T) {
		settlement := newSettlement(t, "pay1@example.com")

		paid, err := svc.MarkPaid(ctx, settlement.ID, "pi_123")
		require.NoError(t, err)
		assert.Equal(t, model.SettlementStatusPaid, paid.Status)
		require.NotNil(t, paid.PaymentRef)
		assert.Equal(t, "pi_123", *paid.PaymentRef)
		assert.NotNil(t, paid.PaidAt)
	})

	t.Run("failed payment can still be paid within the window", func(t *testing.T) {
		settlement := newSettlement(t, "pay2@example.com")

		failed, err := svc.MarkPaymentFailed(ctx, settlement.ID, "card_declined")
		require.NoError(t, err)
		assert.Equal(t, model.SettlementStatusPaymentFailed, failed.Status)
		require.NotNil(t, failed.FailureReason)

		paid, err := svc.MarkPaid(ctx, settlement.ID, "pi_456")
		require.NoError(t, err)
		assert.Equal(t, model.SettlementStatusPaid, paid.Status)
	})

	t.Run("paid settlement rejects further transitions", func(t *testing.T) {
		settlement := newSettlement(t, "pay3@example.com")

		_, err := svc.MarkPaid(ctx, settlement.ID, "pi_789")
		require.NoError(t, err)

		_, err = svc.MarkPaymentFailed(ctx, settlement.ID, "too late")
		var invalid *model.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "paid", invalid.From)
	})
}

func TestSettlementService_Expiry(t *testing.T) {
	env := setupTestEnv(t)
	svc := NewSettlementService(env.db, env.settlements, nil, nil)
	ctx := context.Background()

	seedSettlement := func(t *testing.T, email string, endedAt time.Time, status model.SettlementStatus) *model.AuctionSettlement {
		user := env.createUser(t, email, 0)
		auction := endedAuction(t, env, 1000, &user.ID)
		settlement, err := env.settlements.Create(ctx, &model.AuctionSettlement{
			AuctionID:       auction.ID,
			WinningUserID:   &user.ID,
			FinalPriceCents: 1000,
			Status:          status,
			EndedAt:         endedAt,
		})
		require.NoError(t, err)
		return settlement
	}

	t.Run("sweep cancels overdue settlements only", func(t *testing.T) {
		overdue := seedSettlement(t, "exp1@example.com", time.Now().Add(-SettlementRetryWindow-time.Hour), model.SettlementStatusPendingPayment)
		overdueFailed := seedSettlement(t, "exp2@example.com", time.Now().Add(-SettlementRetryWindow-time.Hour), model.SettlementStatusPaymentFailed)
		fresh := seedSettlement(t, "exp3@example.com", time.Now(), model.SettlementStatusPendingPayment)

		expired, err := svc.ExpireOverdue(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, expired)

		for _, id := range []int64{overdue.ID, overdueFailed.ID} {
			s, err := env.settlements.GetByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, model.SettlementStatusCancelled, s.Status)
		}

		untouched, err := env.settlements.GetByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SettlementStatusPendingPayment, untouched.Status)
	})

	t.Run("single expiry check refuses a live window", func(t *testing.T) {
		fresh := seedSettlement(t, "exp4@example.com", time.Now(), model.SettlementStatusPendingPayment)

		_, err := svc.ExpireSettlement(ctx, fresh.ID)
		var invalid *model.InvalidTransitionError
		assert.ErrorAs(t, err, &invalid)
	})
}
