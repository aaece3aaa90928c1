package repository

import (
	"time"

	"github.com/openbid/auction-core/internal/model"
)

type SettlementEntity struct {
	ID              int64      `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	AuctionID       int64      `db:"auction_id"        gorm:"column:auction_id;not null;unique"`
	WinningUserID   *int64     `db:"winning_user_id"   gorm:"column:winning_user_id"`
	WinningBidID    *int64     `db:"winning_bid_id"    gorm:"column:winning_bid_id"`
	FinalPriceCents int64      `db:"final_price_cents" gorm:"column:final_price_cents;not null"`
	Status          string     `db:"status"            gorm:"column:status;not null;index"`
	EndedAt         time.Time  `db:"ended_at"          gorm:"column:ended_at;not null"`
	PaymentRef      *string    `db:"payment_ref"       gorm:"column:payment_ref"`
	FailureReason   *string    `db:"failure_reason"    gorm:"column:failure_reason"`
	PaidAt          *time.Time `db:"paid_at"           gorm:"column:paid_at"`
	CreatedAt       time.Time  `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `db:"updated_at"        gorm:"column:updated_at;autoUpdateTime"`
}

func (SettlementEntity) TableName() string {
	return "auction_settlements"
}

func toSettlementEntity(m *model.AuctionSettlement) *SettlementEntity {
	if m == nil {
		return nil
	}
	return &SettlementEntity{
		ID:              m.ID,
		AuctionID:       m.AuctionID,
		WinningUserID:   m.WinningUserID,
		WinningBidID:    m.WinningBidID,
		FinalPriceCents: m.FinalPriceCents,
		Status:          string(m.Status),
		EndedAt:         m.EndedAt,
		PaymentRef:      m.PaymentRef,
		FailureReason:   m.FailureReason,
		PaidAt:          m.PaidAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toSettlementModel(e *SettlementEntity) *model.AuctionSettlement {
	if e == nil {
		return nil
	}
	return &model.AuctionSettlement{
		ID:              e.ID,
		AuctionID:       e.AuctionID,
		WinningUserID:   e.WinningUserID,
		WinningBidID:    e.WinningBidID,
		FinalPriceCents: e.FinalPriceCents,
		Status:          model.SettlementStatus(e.Status),
		EndedAt:         e.EndedAt,
		PaymentRef:      e.PaymentRef,
		FailureReason:   e.FailureReason,
		PaidAt:          e.PaidAt,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toSettlementModels(entities []*SettlementEntity) []*model.AuctionSettlement {
	if entities == nil {
		return nil
	}
	models := make([]*model.AuctionSettlement, len(entities))
	for i, e := range entities {
		models[i] = toSettlementModel(e)
	}
	return models
}
