package repository

import (
	"context"
	"testing"

	"github.com/openbid/auction-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("create and fetch", func(t *testing.T) {
		created, err := repo.Create(ctx, &model.User{Email: "alice@example.com", Credits: 10})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", got.Email)
		assert.Equal(t, int64(10), got.Credits)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 99999)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUserRepository_CachedBalance(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	user, err := repo.Create(ctx, &model.User{Email: "bob@example.com", Credits: 3})
	require.NoError(t, err)

	t.Run("read counter", func(t *testing.T) {
		credits, err := repo.GetCachedBalance(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), credits)
	})

	t.Run("overwrite counter", func(t *testing.T) {
		require.NoError(t, repo.SetCachedBalance(ctx, user.ID, 7))

		credits, err := repo.GetCachedBalance(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(7), credits)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := repo.GetCachedBalance(ctx, 99999)
		assert.ErrorIs(t, err, ErrUserNotFound)

		err = repo.SetCachedBalance(ctx, 99999, 1)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUserRepository_ListAfter(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	ids := make([]int64, 0, 4)
	for _, email := range []string{"u1@example.com", "u2@example.com", "u3@example.com", "u4@example.com"} {
		user, err := repo.Create(ctx, &model.User{Email: email})
		require.NoError(t, err)
		ids = append(ids, user.ID)
	}

	t.Run("ascending order", func(t *testing.T) {
		users, err := repo.ListAfter(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, users, 4)
		for i := 1; i < len(users); i++ {
			assert.Greater(t, users[i].ID, users[i-1].ID)
		}
	})

	t.Run("resume after cursor", func(t *testing.T) {
		users, err := repo.ListAfter(ctx, ids[1], 0)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, ids[2], users[0].ID)
	})

	t.Run("limit bounds the page", func(t *testing.T) {
		users, err := repo.ListAfter(ctx, 0, 3)
		require.NoError(t, err)
		assert.Len(t, users, 3)
	})
}
