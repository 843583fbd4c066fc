package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNonPositiveCredits = errors.New("credits must be positive")
)

// Ledger is the credit store. Both payment confirmation paths funnel their
// writes through CreditPurchase, which is the only concurrency-safety
// mechanism in the system: the unique index on tx_signature makes the
// record insert an atomic check-and-insert, and the balance increment rides
// in the same database transaction.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// CreditPurchase registers rec and adds credits to the user's balance as one
// atomic unit. If a record for rec.TXSignature already exists the call is a
// no-op and already is true: the signature was credited before, by this
// process or another one. A failed balance update rolls the record back, so
// the operation is retryable rather than partially applied.
//
// Requires the connection to be opened with TranslateError so duplicate-key
// violations surface as gorm.ErrDuplicatedKey.
func (l *Ledger) CreditPurchase(ctx context.Context, rec PaymentRecord, credits int) (already bool, err error) {
	if credits <= 0 {
		return false, ErrNonPositiveCredits
	}
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				already = true
				return nil
			}
			return err
		}
		res := tx.Model(&User{}).
			Where("email = ?", rec.UserID).
			Update("credits", gorm.Expr("credits + ?", credits))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	return already, err
}

// AddCredits bumps a balance outside of a purchase (admin adjustments).
func (l *Ledger) AddCredits(ctx context.Context, email string, amount int) (*User, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveCredits
	}
	res := l.db.WithContext(ctx).Model(&User{}).
		Where("email = ?", email).
		Update("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return GetUser(ctx, l.db, email)
}
