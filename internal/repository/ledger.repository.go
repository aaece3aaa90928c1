package repository

import (
	"context"
	"errors"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrEntryNotFound = errors.New("credit transaction not found")
)

// LedgerRepository is the write-once store for credit transactions. It exposes
// no update or delete; the entity hooks reject both even if one were added.
type LedgerRepository struct {
	*pg.DB
}

func NewLedgerRepository(db *pg.DB) *LedgerRepository {
	return &LedgerRepository{
		db,
	}
}

func (r *LedgerRepository) Create(ctx context.Context, txn *model.CreditTransaction) (*model.CreditTransaction, error) {
	if err := txn.Validate(); err != nil {
		return nil, err
	}
	entity := toCreditTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCreditTransactionModel(entity), nil
}

func (r *LedgerRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.CreditTransaction, error) {
	var entity CreditTransactionEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return toCreditTransactionModel(&entity), nil
}

// SumForUser folds the ledger into the derived balance.
func (r *LedgerRepository) SumForUser(ctx context.Context, userID int64) (int64, error) {
	var sum *int64
	err := r.Write(ctx).WithContext(ctx).
		Model(&CreditTransactionEntity{}).
		Select("SUM(amount)").
		Where("user_id = ?", userID).
		Scan(&sum).
		Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

func (r *LedgerRepository) CountForUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.Write(ctx).WithContext(ctx).
		Model(&CreditTransactionEntity{}).
		Where("user_id = ?", userID).
		Count(&count).
		Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListForUser returns ledger entries newest first.
func (r *LedgerRepository) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]*model.CreditTransaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).
		Model(&CreditTransactionEntity{}).
		Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	var entities []*CreditTransactionEntity
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&entities).Error
	if err != nil {
		return nil, 0, err
	}
	return toCreditTransactionModels(entities), total, nil
}
