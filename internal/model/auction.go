package model

import (
	"errors"
	"time"
)

// AuctionStatus is the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionStatusPending   AuctionStatus = "pending"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
	AuctionStatusInactive  AuctionStatus = "inactive"
)

func (s AuctionStatus) String() string { return string(s) }

// auctionTransitions is the closed transition table. Anything not listed here
// is rejected with an InvalidTransitionError. "inactive" is reachable only
// while the auction has no bids; that extra guard lives in Retire.
var auctionTransitions = map[AuctionStatus][]AuctionStatus{
	AuctionStatusPending:   {AuctionStatusActive, AuctionStatusCancelled, AuctionStatusPending, AuctionStatusInactive},
	AuctionStatusActive:    {AuctionStatusEnded, AuctionStatusCancelled},
	AuctionStatusInactive:  {AuctionStatusPending},
	AuctionStatusEnded:     {},
	AuctionStatusCancelled: {},
}

func (s AuctionStatus) canTransitionTo(next AuctionStatus) bool {
	for _, allowed := range auctionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var (
	ErrEndBeforeStart         = errors.New("auction end time must be after start time")
	ErrOutsideExtensionWindow = errors.New("auction end time is outside the extension window")
)

type Auction struct {
	ID                int64         `json:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	Title             string        `json:"title"         gorm:"column:title;not null"`
	Description       string        `json:"description"   gorm:"column:description"`
	Status            AuctionStatus `json:"status"        gorm:"column:status;not null;default:pending;index"`
	CurrentPriceCents int64         `json:"current_price_cents" gorm:"column:current_price_cents;not null;default:0"`
	StartDate         *time.Time    `json:"start_date"    gorm:"column:start_date"`
	EndTime           *time.Time    `json:"end_time"      gorm:"column:end_time"`
	WinningUserID     *int64        `json:"winning_user_id" gorm:"column:winning_user_id"`
	CreatedAt         time.Time     `json:"created_at"    gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time     `json:"updated_at"    gorm:"column:updated_at;autoUpdateTime"`
}

func (Auction) TableName() string { return "auctions" }

// Schedule sets the auction window and moves the auction to pending. Allowed
// from pending and inactive (re-scheduling a retired or not-yet-started
// auction).
func (a *Auction) Schedule(startsAt, endsAt time.Time) error {
	if !a.Status.canTransitionTo(AuctionStatusPending) {
		return invalidTransition("auction", a.Status, AuctionStatusPending)
	}
	if !endsAt.After(startsAt) {
		return ErrEndBeforeStart
	}
	a.Status = AuctionStatusPending
	a.StartDate = &startsAt
	a.EndTime = &endsAt
	return nil
}

// Start opens the auction for bidding.
func (a *Auction) Start() error {
	if a.Status != AuctionStatusPending {
		return invalidTransition("auction", a.Status, AuctionStatusActive)
	}
	a.Status = AuctionStatusActive
	return nil
}

// Extend pushes the end time to referenceTime+by, but only while active and
// only when the current end time already falls inside the trailing window.
// This is the anti-sniping rule: a bid near the end buys everyone more time.
func (a *Auction) Extend(by time.Duration, referenceTime time.Time) error {
	if a.Status != AuctionStatusActive {
		return invalidTransition("auction", a.Status, AuctionStatusActive)
	}
	if a.EndTime == nil || a.EndTime.After(referenceTime.Add(by)) {
		return ErrOutsideExtensionWindow
	}
	newEnd := referenceTime.Add(by)
	a.EndTime = &newEnd
	return nil
}

// Close ends an active auction. The winner is the explicit argument when
// non-nil, else the cached winning user.
func (a *Auction) Close(winner *int64) error {
	if a.Status != AuctionStatusActive {
		return invalidTransition("auction", a.Status, AuctionStatusEnded)
	}
	a.Status = AuctionStatusEnded
	if winner != nil {
		a.WinningUserID = winner
	}
	return nil
}

// Cancel aborts a pending or active auction.
func (a *Auction) Cancel() error {
	if !a.Status.canTransitionTo(AuctionStatusCancelled) {
		return invalidTransition("auction", a.Status, AuctionStatusCancelled)
	}
	a.Status = AuctionStatusCancelled
	return nil
}

// Retire marks an auction inactive. Only a pending auction may retire; once
// bidding has opened the auction must run to ended or cancelled. An auction
// that has received any bid can never be retired.
func (a *Auction) Retire(bidCount int64) error {
	if a.Status == AuctionStatusInactive || !a.Status.canTransitionTo(AuctionStatusInactive) {
		return invalidTransition("auction", a.Status, AuctionStatusInactive)
	}
	if bidCount > 0 {
		return invalidTransition("auction", a.Status, AuctionStatusInactive)
	}
	a.Status = AuctionStatusInactive
	return nil
}
