package repository

import (
	"context"
	"errors"

	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrNoBids = errors.New("no bids for auction")
)

type BidRepository struct {
	*pg.DB
}

func NewBidRepository(db *pg.DB) *BidRepository {
	return &BidRepository{
		db,
	}
}

func (r *BidRepository) Create(ctx context.Context, bid *model.Bid) (*model.Bid, error) {
	entity := toBidEntity(bid)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toBidModel(entity), nil
}

// ListByAuction returns bids newest first.
func (r *BidRepository) ListByAuction(ctx context.Context, auctionID int64, limit, offset int) ([]*model.Bid, int64, error) {
	q := r.Read(ctx).WithContext(ctx).
		Model(&BidEntity{}).
		Where("auction_id = ?", auctionID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	var entities []*BidEntity
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&entities).Error
	if err != nil {
		return nil, 0, err
	}
	return toBidModels(entities), total, nil
}

// TopBid returns the highest bid on an auction.
func (r *BidRepository) TopBid(ctx context.Context, auctionID int64) (*model.Bid, error) {
	var entity BidEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount_cents DESC, id DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoBids
		}
		return nil, err
	}
	return toBidModel(&entity), nil
}

func (r *BidRepository) CountByAuction(ctx context.Context, auctionID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&BidEntity{}).
		Where("auction_id = ?", auctionID).
		Count(&count).
		Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
