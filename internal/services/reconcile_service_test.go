package services

import (
	"context"
	"testing"

	"github.com/openbid/auction-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileService_ReconcileBalances(t *testing.T) {
	ctx := context.Background()

	t.Run("detects drift without fixing", func(t *testing.T) {
		env := setupTestEnv(t)
		svc := NewReconcileService(env.users, env.ledger, env.locker)

		healthy := env.createUser(t, "healthy@example.com", 0)
		env.grantCredits(t, healthy.ID, 4, "purchase:healthy")

		drifted := env.createUser(t, "drifted@example.com", 0)
		env.grantCredits(t, drifted.ID, 4, "purchase:drifted")
		// Corrupt the cache behind the ledger's back.
		require.NoError(t, env.users.SetCachedBalance(ctx, drifted.ID, 9))

		report, err := svc.ReconcileBalances(ctx, false, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Checked)
		assert.Equal(t, 1, report.Drifted)
		assert.Equal(t, 0, report.Fixed)

		// Audit-only: the corrupt cache is untouched.
		cached, err := env.ledger.CachedBalance(ctx, drifted.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(9), cached)
	})

	t.Run("repairs drift when asked", func(t *testing.T) {
		env := setupTestEnv(t)
		svc := NewReconcileService(env.users, env.ledger, env.locker)

		user := env.createUser(t, "fixme@example.com", 0)
		env.grantCredits(t, user.ID, 6, "purchase:fixme")
		require.NoError(t, env.users.SetCachedBalance(ctx, user.ID, 1))

		report, err := svc.ReconcileBalances(ctx, true, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Drifted)
		assert.Equal(t, 1, report.Fixed)

		cached, err := env.ledger.CachedBalance(ctx, user.ID)
		require.NoError(t, err)
		derived, err := env.ledger.DerivedBalance(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, derived, cached)
		assert.Equal(t, int64(6), cached)
	})

	t.Run("bootstraps pre-ledger users on fix", func(t *testing.T) {
		env := setupTestEnv(t)
		svc := NewReconcileService(env.users, env.ledger, env.locker)

		legacy := env.createUser(t, "legacy2@example.com", 9)

		report, err := svc.ReconcileBalances(ctx, true, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Checked)

		entries, total, err := env.ledger.History(ctx, legacy.ID, 10, 0)
		require.NoError(t, err)
		require.Equal(t, int64(1), total)
		assert.Equal(t, model.CreditKindGrant, entries[0].Kind)
		assert.Equal(t, int64(9), entries[0].Amount)
		assert.Equal(t, "ledger_bootstrap", entries[0].Reason)

		// Re-running is a no-op thanks to the bootstrap idempotency key.
		_, err = svc.ReconcileBalances(ctx, true, 0)
		require.NoError(t, err)
		_, total, err = env.ledger.History(ctx, legacy.ID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("limit bounds the sweep", func(t *testing.T) {
		env := setupTestEnv(t)
		svc := NewReconcileService(env.users, env.ledger, env.locker)

		for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
			env.createUser(t, email, 0)
		}

		report, err := svc.ReconcileBalances(ctx, false, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Checked)
	})
}
