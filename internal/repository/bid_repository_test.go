package repository

import (
	"context"
	"testing"

	"github.com/openbid/auction-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBidRepository(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewBidRepository(db)
	ctx := context.Background()

	amounts := []int64{1001, 1002, 1003}
	for i, amount := range amounts {
		_, err := repo.Create(ctx, &model.Bid{
			AuctionID:   1,
			UserID:      int64(i + 1),
			AmountCents: amount,
		})
		require.NoError(t, err)
	}

	t.Run("list newest first", func(t *testing.T) {
		bids, total, err := repo.ListByAuction(ctx, 1, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, bids, 3)
		assert.Equal(t, int64(1003), bids[0].AmountCents)
	})

	t.Run("top bid wins by amount", func(t *testing.T) {
		top, err := repo.TopBid(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1003), top.AmountCents)
		assert.Equal(t, int64(3), top.UserID)
	})

	t.Run("no bids", func(t *testing.T) {
		_, err := repo.TopBid(ctx, 42)
		assert.ErrorIs(t, err, ErrNoBids)
	})

	t.Run("count per auction", func(t *testing.T) {
		count, err := repo.CountByAuction(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		count, err = repo.CountByAuction(ctx, 42)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
