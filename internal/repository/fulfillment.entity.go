package repository

import (
	"time"

	"github.com/openbid/auction-core/internal/model"
)

type FulfillmentEntity struct {
	ID                  int64     `db:"id"                    gorm:"primaryKey;autoIncrement;column:id"`
	AuctionSettlementID int64     `db:"auction_settlement_id" gorm:"column:auction_settlement_id;not null;unique"`
	UserID              int64     `db:"user_id"               gorm:"column:user_id;not null;index"`
	Status              string    `db:"status"                gorm:"column:status;not null"`
	Carrier             *string   `db:"carrier"               gorm:"column:carrier"`
	TrackingNumber      *string   `db:"tracking_number"       gorm:"column:tracking_number"`
	CreatedAt           time.Time `db:"created_at"            gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `db:"updated_at"            gorm:"column:updated_at;autoUpdateTime"`
}

func (FulfillmentEntity) TableName() string {
	return "auction_fulfillments"
}

func toFulfillmentEntity(m *model.AuctionFulfillment) *FulfillmentEntity {
	if m == nil {
		return nil
	}
	return &FulfillmentEntity{
		ID:                  m.ID,
		AuctionSettlementID: m.AuctionSettlementID,
		UserID:              m.UserID,
		Status:              string(m.Status),
		Carrier:             m.Carrier,
		TrackingNumber:      m.TrackingNumber,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func toFulfillmentModel(e *FulfillmentEntity) *model.AuctionFulfillment {
	if e == nil {
		return nil
	}
	return &model.AuctionFulfillment{
		ID:                  e.ID,
		AuctionSettlementID: e.AuctionSettlementID,
		UserID:              e.UserID,
		Status:              model.FulfillmentStatus(e.Status),
		Carrier:             e.Carrier,
		TrackingNumber:      e.TrackingNumber,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}
