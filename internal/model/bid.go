package model

import "time"

// Bid is immutable once created. Amount must be strictly greater than the
// auction's current price at the instant the bid is accepted; the bidding
// service enforces this under the auction row lock.
type Bid struct {
	ID          int64     `json:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	AuctionID   int64     `json:"auction_id"   gorm:"column:auction_id;not null;index"`
	Auction     *Auction  `json:"-"            gorm:"foreignKey:AuctionID;references:ID"`
	UserID      int64     `json:"user_id"      gorm:"column:user_id;not null;index"`
	AmountCents int64     `json:"amount_cents" gorm:"column:amount_cents;not null"`
	CreatedAt   time.Time `json:"created_at"   gorm:"column:created_at;autoCreateTime"`
}

func (Bid) TableName() string { return "bids" }
