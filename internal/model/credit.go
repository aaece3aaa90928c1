package model

import (
	"errors"
	"fmt"
	"time"
)

// CreditTransactionKind classifies a ledger entry. The sign of Amount must be
// consistent with the kind: grants and refunds are positive, debits negative,
// adjustments may be either but never zero.
type CreditTransactionKind string

const (
	CreditKindGrant      CreditTransactionKind = "grant"
	CreditKindDebit      CreditTransactionKind = "debit"
	CreditKindRefund     CreditTransactionKind = "refund"
	CreditKindAdjustment CreditTransactionKind = "adjustment"
)

var (
	ErrLedgerImmutable    = errors.New("credit transactions are append-only")
	ErrZeroAmount         = errors.New("credit transaction amount must be nonzero")
	ErrAmountKindMismatch = errors.New("credit transaction amount sign does not match kind")
)

// CreditTransaction is one entry in the append-only credits ledger. The sum of
// all entries for a user is their derived balance.
type CreditTransaction struct {
	ID             int64                 `json:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	UserID         int64                 `json:"user_id"         gorm:"column:user_id;not null;index"`
	Kind           CreditTransactionKind `json:"kind"            gorm:"column:kind;not null"`
	Amount         int64                 `json:"amount"          gorm:"column:amount;not null"`
	Reason         string                `json:"reason"          gorm:"column:reason;not null"`
	IdempotencyKey string                `json:"idempotency_key" gorm:"column:idempotency_key;not null;unique"`
	AuctionID      *int64                `json:"auction_id"      gorm:"column:auction_id;index"`
	PurchaseID     *int64                `json:"purchase_id"     gorm:"column:purchase_id"`
	ActorID        *int64                `json:"actor_id"        gorm:"column:actor_id"`
	PaymentEventID *string               `json:"payment_event_id" gorm:"column:payment_event_id"`
	Metadata       string                `json:"metadata"        gorm:"column:metadata"`
	CreatedAt      time.Time             `json:"created_at"      gorm:"column:created_at;autoCreateTime"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

// Validate enforces the sign/kind invariant before a write reaches the store.
func (t *CreditTransaction) Validate() error {
	if t.Amount == 0 {
		return ErrZeroAmount
	}
	switch t.Kind {
	case CreditKindGrant, CreditKindRefund:
		if t.Amount < 0 {
			return fmt.Errorf("%w: %s with amount %d", ErrAmountKindMismatch, t.Kind, t.Amount)
		}
	case CreditKindDebit:
		if t.Amount > 0 {
			return fmt.Errorf("%w: %s with amount %d", ErrAmountKindMismatch, t.Kind, t.Amount)
		}
	case CreditKindAdjustment:
		// either sign
	default:
		return fmt.Errorf("unknown credit transaction kind %q", t.Kind)
	}
	return nil
}
