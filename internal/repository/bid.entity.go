package repository

import (
	"time"

	"github.com/openbid/auction-core/internal/model"
)

type BidEntity struct {
	ID          int64     `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	AuctionID   int64     `db:"auction_id"   gorm:"column:auction_id;not null;index"`
	UserID      int64     `db:"user_id"      gorm:"column:user_id;not null;index"`
	AmountCents int64     `db:"amount_cents" gorm:"column:amount_cents;not null"`
	CreatedAt   time.Time `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
}

func (BidEntity) TableName() string {
	return "bids"
}

func toBidEntity(m *model.Bid) *BidEntity {
	if m == nil {
		return nil
	}
	return &BidEntity{
		ID:          m.ID,
		AuctionID:   m.AuctionID,
		UserID:      m.UserID,
		AmountCents: m.AmountCents,
		CreatedAt:   m.CreatedAt,
	}
}

func toBidModel(e *BidEntity) *model.Bid {
	if e == nil {
		return nil
	}
	return &model.Bid{
		ID:          e.ID,
		AuctionID:   e.AuctionID,
		UserID:      e.UserID,
		AmountCents: e.AmountCents,
		CreatedAt:   e.CreatedAt,
	}
}

func toBidModels(entities []*BidEntity) []*model.Bid {
	if entities == nil {
		return nil
	}
	models := make([]*model.Bid, len(entities))
	for i, e := range entities {
		models[i] = toBidModel(e)
	}
	return models
}
