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
	ErrAuctionNotFound = errors.New("auction not found")
)

type AuctionRepository struct {
	*pg.DB
}

func NewAuctionRepository(db *pg.DB) *AuctionRepository {
	return &AuctionRepository{
		db,
	}
}

func (r *AuctionRepository) Create(ctx context.Context, auction *model.Auction) (*model.Auction, error) {
	entity := toAuctionEntity(auction)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toAuctionModel(entity), nil
}

func (r *AuctionRepository) GetByID(ctx context.Context, id int64) (*model.Auction, error) {
	var entity AuctionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, err
	}
	return toAuctionModel(&entity), nil
}

// LockForUpdate reads the auction row under FOR UPDATE. Must be called inside
// a transaction and, when a user row is also locked, only after that user
// lock (see Locker).
func (r *AuctionRepository) LockForUpdate(ctx context.Context, id int64) (*model.Auction, error) {
	var entity AuctionEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, err
	}
	return toAuctionModel(&entity), nil
}

// Update persists the mutable auction fields. Auctions are never deleted;
// retirement is a status change.
func (r *AuctionRepository) Update(ctx context.Context, auction *model.Auction) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&AuctionEntity{}).
		Where("id = ?", auction.ID).
		Updates(map[string]interface{}{
			"status":              string(auction.Status),
			"current_price_cents": auction.CurrentPriceCents,
			"start_date":          auction.StartDate,
			"end_time":            auction.EndTime,
			"winning_user_id":     auction.WinningUserID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAuctionNotFound
	}
	return nil
}

func (r *AuctionRepository) ListByStatus(ctx context.Context, status model.AuctionStatus, limit, offset int) ([]*model.Auction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).
		Model(&AuctionEntity{}).
		Where("status = ?", string(status))

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	var entities []*AuctionEntity
	err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&entities).Error
	if err != nil {
		return nil, 0, err
	}
	return toAuctionModels(entities), total, nil
}
