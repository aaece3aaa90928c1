package model

import "time"

// FulfillmentStatus is the shipping state of a settled auction. Transitions
// are a strict linear chain; skipping, repeating, or reversing a step is
// rejected.
type FulfillmentStatus string

const (
	FulfillmentStatusPending    FulfillmentStatus = "pending"
	FulfillmentStatusClaimed    FulfillmentStatus = "claimed"
	FulfillmentStatusProcessing FulfillmentStatus = "processing"
	FulfillmentStatusShipped    FulfillmentStatus = "shipped"
	FulfillmentStatusComplete   FulfillmentStatus = "complete"
)

func (s FulfillmentStatus) String() string { return string(s) }

var fulfillmentNext = map[FulfillmentStatus]FulfillmentStatus{
	FulfillmentStatusPending:    FulfillmentStatusClaimed,
	FulfillmentStatusClaimed:    FulfillmentStatusProcessing,
	FulfillmentStatusProcessing: FulfillmentStatusShipped,
	FulfillmentStatusShipped:    FulfillmentStatusComplete,
}

// AuctionFulfillment tracks shipping for a settlement's winner. UserID must
// always equal the settlement's winning user; the service checks that
// invariant on every write, not just at creation.
type AuctionFulfillment struct {
	ID                  int64             `json:"id"                    gorm:"primaryKey;autoIncrement;column:id"`
	AuctionSettlementID int64             `json:"auction_settlement_id" gorm:"column:auction_settlement_id;not null;unique"`
	UserID              int64             `json:"user_id"               gorm:"column:user_id;not null;index"`
	Status              FulfillmentStatus `json:"status"                gorm:"column:status;not null"`
	Carrier             *string           `json:"carrier"               gorm:"column:carrier"`
	TrackingNumber      *string           `json:"tracking_number"       gorm:"column:tracking_number"`
	CreatedAt           time.Time         `json:"created_at"            gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `json:"updated_at"            gorm:"column:updated_at;autoUpdateTime"`
}

func (AuctionFulfillment) TableName() string { return "auction_fulfillments" }

// TransitionTo advances the fulfillment exactly one step along the chain.
func (f *AuctionFulfillment) TransitionTo(next FulfillmentStatus) error {
	if fulfillmentNext[f.Status] != next {
		return invalidTransition("fulfillment", f.Status, next)
	}
	f.Status = next
	return nil
}
