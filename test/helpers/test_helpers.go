package helpers

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/internal/repository"
	"github.com/openbid/auction-core/pkg/pg"
	"github.com/openbid/auction-core/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
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

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestUser(t *testing.T, db *pg.DB, id int64, credits int64) *repository.UserEntity {
	ctx := context.Background()
	user := &repository.UserEntity{
		ID:      id,
		Email:   RandomEmail(id),
		Credits: credits,
	}
	err := db.Write(ctx).Create(user).Error
	require.NoError(t, err)
	return user
}

func CreateTestAuction(t *testing.T, db *pg.DB, status model.AuctionStatus, priceCents int64, endTime *time.Time) *repository.AuctionEntity {
	ctx := context.Background()
	auction := &repository.AuctionEntity{
		Title:             "Test Auction",
		Status:            status.String(),
		CurrentPriceCents: priceCents,
		EndTime:           endTime,
	}
	err := db.Write(ctx).Create(auction).Error
	require.NoError(t, err)
	return auction
}

func CreateTestBid(t *testing.T, db *pg.DB, auctionID, userID, amountCents int64) *repository.BidEntity {
	ctx := context.Background()
	bid := &repository.BidEntity{
		AuctionID:   auctionID,
		UserID:      userID,
		AmountCents: amountCents,
	}
	err := db.Write(ctx).Create(bid).Error
	require.NoError(t, err)
	return bid
}

func CreateTestLedgerEntry(t *testing.T, db *pg.DB, userID int64, kind model.CreditTransactionKind, amount int64, key string) *repository.CreditTransactionEntity {
	ctx := context.Background()
	entry := &repository.CreditTransactionEntity{
		UserID:         userID,
		Kind:           string(kind),
		Amount:         amount,
		Reason:         "test",
		IdempotencyKey: key,
	}
	err := db.Write(ctx).Create(entry).Error
	require.NoError(t, err)
	return entry
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func RandomEmail(id int64) string {
	return fmt.Sprintf("user-%d-%s@example.com", id, time.Now().Format("20060102150405"))
}

func Ptr[T any](v T) *T {
	return &v
}
