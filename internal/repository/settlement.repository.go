package repository

import (
	"context"
	"errors"
	"time"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSettlementNotFound = errors.New("settlement not found")
)

type SettlementRepository struct {
	*pg.DB
}

func NewSettlementRepository(db *pg.DB) *SettlementRepository {
	return &SettlementRepository{
		db,
	}
}

func (r *SettlementRepository) Create(ctx context.Context, s *model.AuctionSettlement) (*model.AuctionSettlement, error) {
	entity := toSettlementEntity(s)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toSettlementModel(entity), nil
}

func (r *SettlementRepository) GetByID(ctx context.Context, id int64) (*model.AuctionSettlement, error) {
	var entity SettlementEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, err
	}
	return toSettlementModel(&entity), nil
}

// GetByAuctionID reads on the write connection so a close transaction sees a
// settlement created by a concurrent close before its own insert.
func (r *SettlementRepository) GetByAuctionID(ctx context.Context, auctionID int64) (*model.AuctionSettlement, error) {
	var entity SettlementEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("auction_id = ?", auctionID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, err
	}
	return toSettlementModel(&entity), nil
}

// LockForUpdate reads the settlement row under FOR UPDATE for payment-outcome
// transitions.
func (r *SettlementRepository) LockForUpdate(ctx context.Context, id int64) (*model.AuctionSettlement, error) {
	var entity SettlementEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, err
	}
	return toSettlementModel(&entity), nil
}

func (r *SettlementRepository) Update(ctx context.Context, s *model.AuctionSettlement) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&SettlementEntity{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"status":         string(s.Status),
			"payment_ref":    s.PaymentRef,
			"failure_reason": s.FailureReason,
			"paid_at":        s.PaidAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettlementNotFound
	}
	return nil
}

// ListExpirable returns unpaid settlements whose retry window ended before the
// cutoff, oldest first.
func (r *SettlementRepository) ListExpirable(ctx context.Context, endedBefore time.Time, limit int) ([]*model.AuctionSettlement, error) {
	q := r.Read(ctx).WithContext(ctx).
		Where("status IN ?", []string{
			string(model.SettlementStatusPendingPayment),
			string(model.SettlementStatusPaymentFailed),
		}).
		Where("ended_at < ?", endedBefore).
		Order("ended_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entities []*SettlementEntity
	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	return toSettlementModels(entities), nil
}
