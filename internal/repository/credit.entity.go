package repository

import (
	"time"

	"github.com/openbid/auction-core/internal/model"
	"gorm.io/gorm"
)

type CreditTransactionEntity struct {
	ID             int64     `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	UserID         int64     `db:"user_id"          gorm:"column:user_id;not null;index"`
	Kind           string    `db:"kind"             gorm:"column:kind;not null"`
	Amount         int64     `db:"amount"           gorm:"column:amount;not null"`
	Reason         string    `db:"reason"           gorm:"column:reason;not null"`
	IdempotencyKey string    `db:"idempotency_key"  gorm:"column:idempotency_key;not null;unique"`
	AuctionID      *int64    `db:"auction_id"       gorm:"column:auction_id;index"`
	PurchaseID     *int64    `db:"purchase_id"      gorm:"column:purchase_id"`
	ActorID        *int64    `db:"actor_id"         gorm:"column:actor_id"`
	PaymentEventID *string   `db:"payment_event_id" gorm:"column:payment_event_id"`
	Metadata       string    `db:"metadata"         gorm:"column:metadata"`
	CreatedAt      time.Time `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
}

func (CreditTransactionEntity) TableName() string {
	return "credit_transactions"
}

// BeforeUpdate makes the ledger append-only at the storage layer: any update
// of an existing entry fails, no matter which code path attempts it.
func (CreditTransactionEntity) BeforeUpdate(*gorm.DB) error {
	return model.ErrLedgerImmutable
}

// BeforeDelete rejects deletes for the same reason.
func (CreditTransactionEntity) BeforeDelete(*gorm.DB) error {
	return model.ErrLedgerImmutable
}

func toCreditTransactionEntity(m *model.CreditTransaction) *CreditTransactionEntity {
	if m == nil {
		return nil
	}
	return &CreditTransactionEntity{
		ID:             m.ID,
		UserID:         m.UserID,
		Kind:           string(m.Kind),
		Amount:         m.Amount,
		Reason:         m.Reason,
		IdempotencyKey: m.IdempotencyKey,
		AuctionID:      m.AuctionID,
		PurchaseID:     m.PurchaseID,
		ActorID:        m.ActorID,
		PaymentEventID: m.PaymentEventID,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
	}
}

func toCreditTransactionModel(e *CreditTransactionEntity) *model.CreditTransaction {
	if e == nil {
		return nil
	}
	return &model.CreditTransaction{
		ID:             e.ID,
		UserID:         e.UserID,
		Kind:           model.CreditTransactionKind(e.Kind),
		Amount:         e.Amount,
		Reason:         e.Reason,
		IdempotencyKey: e.IdempotencyKey,
		AuctionID:      e.AuctionID,
		PurchaseID:     e.PurchaseID,
		ActorID:        e.ActorID,
		PaymentEventID: e.PaymentEventID,
		Metadata:       e.Metadata,
		CreatedAt:      e.CreatedAt,
	}
}

func toCreditTransactionModels(entities []*CreditTransactionEntity) []*model.CreditTransaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.CreditTransaction, len(entities))
	for i, e := range entities {
		models[i] = toCreditTransactionModel(e)
	}
	return models
}
