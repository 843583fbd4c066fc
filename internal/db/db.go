package db

import (
	"context"

	"gorm.io/gorm"
)

// ActivePacks loads the packs currently on sale.
func ActivePacks(ctx context.Context, db *gorm.DB) ([]Pack, error) {
	var packs []Pack
	err := db.WithContext(ctx).Where("active = ?", true).Find(&packs).Error
	return packs, err
}

// PackStore adapts the packs table to the catalog's source interface.
type PackStore struct {
	db *gorm.DB
}

func NewPackStore(db *gorm.DB) *PackStore {
	return &PackStore{db: db}
}

func (s *PackStore) ActivePacks(ctx context.Context) ([]Pack, error) {
	return ActivePacks(ctx, s.db)
}

func GetUser(ctx context.Context, db *gorm.DB, email string) (*User, error) {
	var user User
	err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return &user, err
}

func GetPaymentBySignature(ctx context.Context, db *gorm.DB, signature string) (*PaymentRecord, error) {
	var rec PaymentRecord
	err := db.WithContext(ctx).Where("tx_signature = ?", signature).First(&rec).Error
	return &rec, err
}

func PaymentsByUser(ctx context.Context, db *gorm.DB, userID string) ([]PaymentRecord, error) {
	var recs []PaymentRecord
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("paid_at DESC").Find(&recs).Error
	return recs, err
}
