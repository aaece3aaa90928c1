package services

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/internal/repository"
	"github.com/openbid/auction-core/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	db           *pg.DB
	rawDB        *gorm.DB
	users        *repository.UserRepository
	auctions     *repository.AuctionRepository
	bids         *repository.BidRepository
	ledgerRepo   *repository.LedgerRepository
	settlements  *repository.SettlementRepository
	fulfillments *repository.FulfillmentRepository
	locker       *repository.Locker
	ledger       *LedgerService
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.UserEntity{},
		&repository.AuctionEntity{},
		&repository.BidEntity{},
		&repository.CreditTransactionEntity{},
		&repository.SettlementEntity{},
		&repository.FulfillmentEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()
	for _, name := range []string{"read", "write"} {
		field := pgDBValue.FieldByName(name)
		field = reflect.NewAt(field.Type(), field.Addr().UnsafePointer()).Elem()
		field.Set(reflect.ValueOf(db))
	}

	env := &testEnv{
		db:           pgDB,
		rawDB:        db,
		users:        repository.NewUserRepository(pgDB),
		auctions:     repository.NewAuctionRepository(pgDB),
		bids:         repository.NewBidRepository(pgDB),
		ledgerRepo:   repository.NewLedgerRepository(pgDB),
		settlements:  repository.NewSettlementRepository(pgDB),
		fulfillments: repository.NewFulfillmentRepository(pgDB),
		locker:       repository.NewLocker(pgDB),
	}
	env.ledger = NewLedgerService(env.ledgerRepo, env.users, env.locker)
	return env
}

func (e *testEnv) createUser(t *testing.T, email string, credits int64) *model.User {
	t.Helper()
	user, err := e.users.Create(context.Background(), &model.User{Email: email, Credits: credits})
	require.NoError(t, err)
	return user
}

// grantCredits funds a user through the ledger so the cache and the ledger
// agree from the start.
func (e *testEnv) grantCredits(t *testing.T, userID, amount int64, key string) {
	t.Helper()
	_, created, err := e.ledger.Write(context.Background(), LedgerWrite{
		UserID:         userID,
		Kind:           model.CreditKindGrant,
		Amount:         amount,
		Reason:         "credit_purchase",
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	require.True(t, created)
}

func (e *testEnv) createActiveAuction(t *testing.T, priceCents int64, endsIn time.Duration) *model.Auction {
	t.Helper()
	now := time.Now()
	end := now.Add(endsIn)
	auction, err := e.auctions.Create(context.Background(), &model.Auction{
		Title:             "test auction",
		Status:            model.AuctionStatusActive,
		CurrentPriceCents: priceCents,
		StartDate:         &now,
		EndTime:           &end,
	})
	require.NoError(t, err)
	return auction
}
