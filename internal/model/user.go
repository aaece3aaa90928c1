package model

import "time"

// User carries the materialized credit counter. Credits is a cache of the
// ledger sum, never the source of truth; every ledger write refreshes it in
// the same transaction.
type User struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Email     string    `json:"email"      gorm:"column:email;not null;unique"`
	Credits   int64     `json:"credits"    gorm:"column:credits;not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string { return "users" }
