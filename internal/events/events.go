package events

import "time"

const (
	TypeBidPlaced         = "bid.placed"
	TypeAuctionScheduled  = "auction.scheduled"
	TypeAuctionStarted    = "auction.started"
	TypeAuctionExtended   = "auction.extended"
	TypeAuctionClosed     = "auction.closed"
	TypeAuctionCancelled  = "auction.cancelled"
	TypeSettlementPaid    = "settlement.paid"
	TypeSettlementFailed  = "settlement.payment_failed"
	TypeSettlementExpired = "settlement.expired"
)

// AuctionEvent is the best-effort broadcast payload published after a bid or
// lifecycle transition commits. Delivery failures never roll back the
// committed change.
type AuctionEvent struct {
	ID                string     `json:"id"`
	Type              string     `json:"type"`
	AuctionID         int64      `json:"auction_id"`
	BidID             *int64     `json:"bid_id,omitempty"`
	UserID            *int64     `json:"user_id,omitempty"`
	CurrentPriceCents int64      `json:"current_price_cents"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	OccurredAt        time.Time  `json:"occurred_at"`
}

// SettlementEvent notifies external listeners of a payment outcome.
type SettlementEvent struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	SettlementID int64     `json:"settlement_id"`
	AuctionID    int64     `json:"auction_id"`
	Status       string    `json:"status"`
	OccurredAt   time.Time `json:"occurred_at"`
}
