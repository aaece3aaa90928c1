package repository

import (
	"time"

	"github.com/openbid/auction-core/internal/model"
)

type AuctionEntity struct {
	ID                int64      `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	Title             string     `db:"title"               gorm:"column:title;not null"`
	Description       string     `db:"description"         gorm:"column:description"`
	Status            string     `db:"status"              gorm:"column:status;not null;default:pending;index"`
	CurrentPriceCents int64      `db:"current_price_cents" gorm:"column:current_price_cents;not null;default:0"`
	StartDate         *time.Time `db:"start_date"          gorm:"column:start_date"`
	EndTime           *time.Time `db:"end_time"            gorm:"column:end_time"`
	WinningUserID     *int64     `db:"winning_user_id"     gorm:"column:winning_user_id"`
	CreatedAt         time.Time  `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `db:"updated_at"          gorm:"column:updated_at;autoUpdateTime"`
}

func (AuctionEntity) TableName() string {
	return "auctions"
}

func toAuctionEntity(m *model.Auction) *AuctionEntity {
	if m == nil {
		return nil
	}
	return &AuctionEntity{
		ID:                m.ID,
		Title:             m.Title,
		Description:       m.Description,
		Status:            string(m.Status),
		CurrentPriceCents: m.CurrentPriceCents,
		StartDate:         m.StartDate,
		EndTime:           m.EndTime,
		WinningUserID:     m.WinningUserID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toAuctionModel(e *AuctionEntity) *model.Auction {
	if e == nil {
		return nil
	}
	return &model.Auction{
		ID:                e.ID,
		Title:             e.Title,
		Description:       e.Description,
		Status:            model.AuctionStatus(e.Status),
		CurrentPriceCents: e.CurrentPriceCents,
		StartDate:         e.StartDate,
		EndTime:           e.EndTime,
		WinningUserID:     e.WinningUserID,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func toAuctionModels(entities []*AuctionEntity) []*model.Auction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Auction, len(entities))
	for i, e := range entities {
		models[i] = toAuctionModel(e)
	}
	return models
}
