package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/internal/queue"
	"github.com/openbid/auction-core/internal/repository"
	"github.com/openbid/auction-core/internal/services"
	"github.com/openbid/auction-core/pkg/pg"
	"github.com/openbid/auction-core/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB = pg.DB

type TestEnvironment struct {
	DB              *pg.DB
	Redis           *miniredis.Miniredis
	RedisAdapter    redis.RedisAdapter
	Queue           *queue.Queue
	UserRepo        *repository.UserRepository
	AuctionRepo     *repository.AuctionRepository
	BidRepo         *repository.BidRepository
	LedgerRepo      *repository.LedgerRepository
	SettlementRepo  *repository.SettlementRepository
	FulfillmentRepo *repository.FulfillmentRepository
	Locker          *repository.Locker
	Ledger          *services.LedgerService
	Accounts        *services.AccountService
	Bidding         *services.BiddingService
	Auctions        *services.AuctionService
	Settlements     *services.SettlementService
	Fulfillments    *services.FulfillmentService
	Reconcile       *services.ReconcileService
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
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

	pgDB := &testDB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Use unique connection name per test to avoid global adapter caching issues
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	redisAdapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	queueConfig := queue.QueueConfig{
		Name:              "test:events",
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}

	q, err := queue.NewQueue(redisAdapter, queueConfig)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(pgDB)
	auctionRepo := repository.NewAuctionRepository(pgDB)
	bidRepo := repository.NewBidRepository(pgDB)
	ledgerRepo := repository.NewLedgerRepository(pgDB)
	settlementRepo := repository.NewSettlementRepository(pgDB)
	fulfillmentRepo := repository.NewFulfillmentRepository(pgDB)
	locker := repository.NewLocker(pgDB)

	ledgerService := services.NewLedgerService(ledgerRepo, userRepo, locker)
	scheduler := services.NewQueueScheduler(q)
	settlementService := services.NewSettlementService(pgDB, settlementRepo, scheduler, q)
	auctionService := services.NewAuctionService(auctionRepo, bidRepo, locker, settlementService, q)
	biddingService := services.NewBiddingService(auctionRepo, bidRepo, userRepo, ledgerService, locker, q)
	fulfillmentService := services.NewFulfillmentService(pgDB, fulfillmentRepo, settlementRepo)
	accountService := services.NewAccountService(userRepo, ledgerService)
	reconcileService := services.NewReconcileService(userRepo, ledgerService, locker)

	return &TestEnvironment{
		DB:              pgDB,
		Redis:           mr,
		RedisAdapter:    redisAdapter,
		Queue:           q,
		UserRepo:        userRepo,
		AuctionRepo:     auctionRepo,
		BidRepo:         bidRepo,
		LedgerRepo:      ledgerRepo,
		SettlementRepo:  settlementRepo,
		FulfillmentRepo: fulfillmentRepo,
		Locker:          locker,
		Ledger:          ledgerService,
		Accounts:        accountService,
		Bidding:         biddingService,
		Auctions:        auctionService,
		Settlements:     settlementService,
		Fulfillments:    fulfillmentService,
		Reconcile:       reconcileService,
	}
}

func (env *TestEnvironment) Cleanup() {
	// Stop queue first (gracefully drain messages)
	if env.Queue != nil {
		_ = env.Queue.Stop(5 * time.Second)
	}
	// Give time for any in-flight operations to complete
	time.Sleep(100 * time.Millisecond)
	// Then close Redis
	if env.Redis != nil {
		env.Redis.Close()
	}
}

// fundedUser registers a user and grants credits through the ledger so the
// cache and the entries agree from the start.
func (env *TestEnvironment) fundedUser(t *testing.T, email string, credits int64) *model.User {
	ctx := context.Background()
	user, err := env.Accounts.Register(ctx, email)
	require.NoError(t, err)
	if credits > 0 {
		_, _, err = env.Accounts.GrantCredits(ctx, services.CreditGrant{
			UserID:         user.ID,
			Amount:         credits,
			IdempotencyKey: fmt.Sprintf("seed:%d", user.ID),
		})
		require.NoError(t, err)
	}
	return user
}

func (env *TestEnvironment) activeAuction(t *testing.T, priceCents int64, endsIn time.Duration) *model.Auction {
	ctx := context.Background()
	end := time.Now().Add(endsIn)
	entity := &repository.AuctionEntity{
		Title:             "E2E lot",
		Status:            model.AuctionStatusActive.String(),
		CurrentPriceCents: priceCents,
		EndTime:           &end,
	}
	err := env.DB.Write(ctx).Create(entity).Error
	require.NoError(t, err)

	auction, err := env.AuctionRepo.GetByID(ctx, entity.ID)
	require.NoError(t, err)
	return auction
}

func TestE2E_BidPlacementAndEnqueue(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	user := env.fundedUser(t, "bidder@example.com", 10)
	auction := env.activeAuction(t, 0, time.Hour)

	bid, err := env.Bidding.PlaceBid(ctx, user.ID, auction.ID)
	require.NoError(t, err)
	assert.NotZero(t, bid.ID)
	assert.Equal(t, int64(1), bid.AmountCents)

	balance, err := env.UserRepo.GetCachedBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), balance)

	var entry repository.CreditTransactionEntity
	err = env.DB.Read(ctx).Where("user_id = ? AND kind = ?", user.ID, "debit").First(&entry).Error
	require.NoError(t, err)
	assert.Equal(t, int64(-1), entry.Amount)
	assert.Equal(t, "bid_debit", entry.Reason)

	updated, err := env.AuctionRepo.GetByID(ctx, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.CurrentPriceCents)
	require.NotNil(t, updated.WinningUserID)
	assert.Equal(t, user.ID, *updated.WinningUserID)

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(1))
}

func TestE2E_InsufficientCredits(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	user := env.fundedUser(t, "broke@example.com", 0)
	auction := env.activeAuction(t, 0, time.Hour)

	bid, err := env.Bidding.PlaceBid(ctx, user.ID, auction.ID)
	assert.ErrorIs(t, err, services.ErrInsufficientCredits)
	assert.Nil(t, bid)

	var count int64
	env.DB.Read(ctx).Model(&repository.BidEntity{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestE2E_LastCreditThenRejected(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	user := env.fundedUser(t, "last-credit@example.com", 1)
	auction := env.activeAuction(t, 0, time.Hour)

	_, err := env.Bidding.PlaceBid(ctx, user.ID, auction.ID)
	require.NoError(t, err)

	_, err = env.Bidding.PlaceBid(ctx, user.ID, auction.ID)
	assert.ErrorIs(t, err, services.ErrInsufficientCredits)

	balance, err := env.UserRepo.GetCachedBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	var count int64
	env.DB.Read(ctx).Model(&repository.BidEntity{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestE2E_BidEventConsumption(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	user := env.fundedUser(t, "consumer@example.com", 5)
	auction := env.activeAuction(t, 0, time.Hour)

	bid, err := env.Bidding.PlaceBid(ctx, user.ID, auction.ID)
	require.NoError(t, err)

	received := make(chan bool, 1)
	handler := func(ctx context.Context, qMsg *queue.Message) error {
		var data map[string]interface{}
		err := json.Unmarshal(qMsg.Data, &data)
		assert.NoError(t, err)
		assert.Equal(t, "bid.placed", data["type"])
		assert.Equal(t, float64(auction.ID), data["auction_id"])
		assert.Equal(t, float64(bid.ID), data["bid_id"])
		assert.Equal(t, float64(1), data["current_price_cents"])
		received <- true
		return nil
	}

	err = env.Queue.Consume(handler)
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("bid event not consumed within timeout")
	}
}

func TestE2E_CloseSettleAndFulfill(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	user := env.fundedUser(t, "winner@example.com", 10)
	auction := env.activeAuction(t, 0, time.Hour)

	_, err := env.Bidding.PlaceBid(ctx, user.ID, auction.ID)
	require.NoError(t, err)

	closed, settlement, err := env.Auctions.Close(ctx, auction.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionStatusEnded, closed.Status)
	require.NotNil(t, settlement)
	assert.Equal(t, model.SettlementStatusPendingPayment, settlement.Status)
	require.NotNil(t, settlement.WinningUserID)
	assert.Equal(t, user.ID, *settlement.WinningUserID)
	assert.Equal(t, int64(1), settlement.FinalPriceCents)

	paid, err := env.Settlements.MarkPaid(ctx, settlement.ID, "pay_e2e_1")
	require.NoError(t, err)
	assert.Equal(t, model.SettlementStatusPaid, paid.Status)

	fulfillment, err := env.Fulfillments.Claim(ctx, settlement.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FulfillmentStatusClaimed, fulfillment.Status)

	shipped, err := env.Fulfillments.TransitionTo(ctx, fulfillment.ID, model.FulfillmentStatusProcessing, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.FulfillmentStatusProcessing, shipped.Status)
}

func TestE2E_CloseWithoutBids(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	auction := env.activeAuction(t, 0, time.Hour)

	closed, settlement, err := env.Auctions.Close(ctx, auction.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionStatusEnded, closed.Status)
	require.NotNil(t, settlement)
	assert.Equal(t, model.SettlementStatusNoWinner, settlement.Status)
	assert.Nil(t, settlement.WinningUserID)
}

func TestE2E_ReconcileRepairsDrift(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	user := env.fundedUser(t, "drifter@example.com", 10)

	// Corrupt the cache out from under the ledger.
	err := env.UserRepo.SetCachedBalance(ctx, user.ID, 42)
	require.NoError(t, err)

	report, err := env.Reconcile.ReconcileBalances(ctx, true, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Drifted)
	assert.Equal(t, 1, report.Fixed)

	balance, err := env.UserRepo.GetCachedBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestE2E_ConcurrentBids(t *testing.T) {
	t.Skip("Skipping concurrency test - SQLite doesn't handle concurrent writes well")

	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	user := env.fundedUser(t, "racer@example.com", 100)
	auction := env.activeAuction(t, 0, time.Hour)

	concurrency := 10
	done := make(chan bool, concurrency)
	successCount := make(chan int, concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer func() { done <- true }()
			_, err := env.Bidding.PlaceBid(ctx, user.ID, auction.ID)
			if err == nil {
				successCount <- 1
			}
		}()
	}

	for i := 0; i < concurrency; i++ {
		<-done
	}
	close(successCount)

	total := 0
	for range successCount {
		total++
	}

	assert.LessOrEqual(t, total, concurrency)

	balance, err := env.UserRepo.GetCachedBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100-total), balance)

	updated, err := env.AuctionRepo.GetByID(ctx, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(total), updated.CurrentPriceCents)
}

func TestE2E_LedgerHistory(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	user := env.fundedUser(t, "history@example.com", 5)
	auction := env.activeAuction(t, 0, time.Hour)

	for i := 0; i < 3; i++ {
		_, err := env.Bidding.PlaceBid(ctx, user.ID, auction.ID)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}

	entries, total, err := env.Ledger.History(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total) // seed grant plus three debits
	assert.Len(t, entries, 4)

	derived, err := env.Ledger.DerivedBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), derived)
}
