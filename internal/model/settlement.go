package model

import "time"

// SettlementStatus is the payment lifecycle of a closed auction's outcome.
type SettlementStatus string

const (
	SettlementStatusPendingPayment SettlementStatus = "pending_payment"
	SettlementStatusPaymentFailed  SettlementStatus = "payment_failed"
	SettlementStatusPaid           SettlementStatus = "paid"
	SettlementStatusNoWinner       SettlementStatus = "no_winner"
	SettlementStatusCancelled      SettlementStatus = "cancelled"
)

func (s SettlementStatus) String() string { return string(s) }

var settlementTransitions = map[SettlementStatus][]SettlementStatus{
	SettlementStatusPendingPayment: {SettlementStatusPaid, SettlementStatusPaymentFailed, SettlementStatusCancelled},
	SettlementStatusPaymentFailed:  {SettlementStatusPaid, SettlementStatusCancelled},
	SettlementStatusPaid:           {},
	SettlementStatusNoWinner:       {},
	SettlementStatusCancelled:      {},
}

func (s SettlementStatus) canTransitionTo(next SettlementStatus) bool {
	for _, allowed := range settlementTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AuctionSettlement is the immutable snapshot of an auction's outcome, created
// exactly once when the auction ends. Only payment-outcome transitions and the
// retry-window expiry mutate it afterwards.
type AuctionSettlement struct {
	ID              int64            `json:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	AuctionID       int64            `json:"auction_id"       gorm:"column:auction_id;not null;unique"`
	WinningUserID   *int64           `json:"winning_user_id"  gorm:"column:winning_user_id"`
	WinningBidID    *int64           `json:"winning_bid_id"   gorm:"column:winning_bid_id"`
	FinalPriceCents int64            `json:"final_price_cents" gorm:"column:final_price_cents;not null"`
	Status          SettlementStatus `json:"status"           gorm:"column:status;not null;index"`
	EndedAt         time.Time        `json:"ended_at"         gorm:"column:ended_at;not null"`
	PaymentRef      *string          `json:"payment_ref"      gorm:"column:payment_ref"`
	FailureReason   *string          `json:"failure_reason"   gorm:"column:failure_reason"`
	PaidAt          *time.Time       `json:"paid_at"          gorm:"column:paid_at"`
	CreatedAt       time.Time        `json:"created_at"       gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `json:"updated_at"       gorm:"column:updated_at;autoUpdateTime"`
}

func (AuctionSettlement) TableName() string { return "auction_settlements" }

// RetryWindowEndsAt is the moment after which an unpaid settlement is expired.
func (s *AuctionSettlement) RetryWindowEndsAt(window time.Duration) time.Time {
	return s.EndedAt.Add(window)
}

// MarkPaid records a successful payment.
func (s *AuctionSettlement) MarkPaid(paymentRef string, at time.Time) error {
	if !s.Status.canTransitionTo(SettlementStatusPaid) {
		return invalidTransition("settlement", s.Status, SettlementStatusPaid)
	}
	s.Status = SettlementStatusPaid
	s.PaymentRef = &paymentRef
	s.PaidAt = &at
	return nil
}

// MarkPaymentFailed records a failed payment attempt. The settlement stays
// payable until the retry window elapses.
func (s *AuctionSettlement) MarkPaymentFailed(reason string) error {
	if !s.Status.canTransitionTo(SettlementStatusPaymentFailed) {
		return invalidTransition("settlement", s.Status, SettlementStatusPaymentFailed)
	}
	s.Status = SettlementStatusPaymentFailed
	s.FailureReason = &reason
	return nil
}

// Expire cancels a settlement whose retry window has elapsed without payment.
func (s *AuctionSettlement) Expire(window time.Duration, now time.Time) error {
	if !s.Status.canTransitionTo(SettlementStatusCancelled) {
		return invalidTransition("settlement", s.Status, SettlementStatusCancelled)
	}
	if now.Before(s.RetryWindowEndsAt(window)) {
		return invalidTransition("settlement", s.Status, SettlementStatusCancelled)
	}
	s.Status = SettlementStatusCancelled
	return nil
}
