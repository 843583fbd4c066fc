package db

import (
	"time"

	"gorm.io/gorm"
)

// Pack is a purchasable credit pack. Packs are created and edited by an
// admin process; this service only reads them.
type Pack struct {
	gorm.Model
	PackID       string `gorm:"uniqueIndex;size:100"`
	Name         string `gorm:"size:100"`
	Description  string `gorm:"size:255"`
	PriceUSD     float64 // 2dp semantics, converted to smallest units for matching
	Credits      int
	ExtraCredits int
	StripeID     string `gorm:"size:100"` // card rail reference, unused here
	Active       bool   `gorm:"default:true"`
}

// User owns a credit balance. Balances only move through the ledger helpers.
type User struct {
	gorm.Model
	Email   string `gorm:"uniqueIndex;size:255"`
	Name    string `gorm:"size:100"`
	Credits int    `gorm:"default:0"`
}

// PaymentRecord is the proof that a transaction signature has been credited.
// The unique index on TXSignature is the de-duplication boundary: the manual
// confirm path and the polling path may race on the same signature, possibly
// from different processes, and only one insert can win.
type PaymentRecord struct {
	gorm.Model
	Method      string `gorm:"size:20"` // "solana", "card", "mbway"
	UserID      string `gorm:"index;size:255"`
	PackID      string `gorm:"size:100"`
	TXSignature string `gorm:"uniqueIndex;size:88"`
	PaidAt      time.Time
}
