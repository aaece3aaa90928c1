package repository

import (
	"context"
	"errors"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrFulfillmentNotFound = errors.New("fulfillment not found")
)

type FulfillmentRepository struct {
	*pg.DB
}

func NewFulfillmentRepository(db *pg.DB) *FulfillmentRepository {
	return &FulfillmentRepository{
		db,
	}
}

func (r *FulfillmentRepository) Create(ctx context.Context, f *model.AuctionFulfillment) (*model.AuctionFulfillment, error) {
	entity := toFulfillmentEntity(f)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toFulfillmentModel(entity), nil
}

func (r *FulfillmentRepository) GetByID(ctx context.Context, id int64) (*model.AuctionFulfillment, error) {
	var entity FulfillmentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFulfillmentNotFound
		}
		return nil, err
	}
	return toFulfillmentModel(&entity), nil
}

func (r *FulfillmentRepository) GetBySettlementID(ctx context.Context, settlementID int64) (*model.AuctionFulfillment, error) {
	var entity FulfillmentEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("auction_settlement_id = ?", settlementID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFulfillmentNotFound
		}
		return nil, err
	}
	return toFulfillmentModel(&entity), nil
}

// LockForUpdate reads the fulfillment row under FOR UPDATE so concurrent
// shipping transitions are serialized.
func (r *FulfillmentRepository) LockForUpdate(ctx context.Context, id int64) (*model.AuctionFulfillment, error) {
	var entity FulfillmentEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFulfillmentNotFound
		}
		return nil, err
	}
	return toFulfillmentModel(&entity), nil
}

func (r *FulfillmentRepository) Update(ctx context.Context, f *model.AuctionFulfillment) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&FulfillmentEntity{}).
		Where("id = ?", f.ID).
		Updates(map[string]interface{}{
			"status":          string(f.Status),
			"carrier":         f.Carrier,
			"tracking_number": f.TrackingNumber,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFulfillmentNotFound
	}
	return nil
}
