// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the referral and store-credit
// repository used by commission settlement.
//
// Error semantics:
//   - When a referral is not found, functions return ErrNotFound.
//   - CreditReferral affecting zero rows also returns ErrNotFound: the
//     referral was already credited (or expired) by a concurrent trigger
//     path, which callers treat as a harmless no-op.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelkos/go-bakery-backend/internal/domain"
)

// FindPendingReferralForCustomer returns the pending referral whose referred
// party matches the customer by ID or email, or ErrNotFound. Matching only
// pending rows is half of the double-credit guard; the guarded update in
// CreditReferral is the other half.
func FindPendingReferralForCustomer(ctx context.Context, db *gorm.DB, customerID, email string) (*domain.Referral, error) {
	var r domain.Referral
	err := db.WithContext(ctx).
		Where("status = ?", domain.ReferralStatusPending).
		Where("referred_id = ? OR (referred_email <> '' AND referred_email = ?)", customerID, email).
		Order("created_at asc").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreditReferral transitions a referral pending → credited, freezing the
// rate and amount at settlement time. The WHERE status = 'pending' guard
// makes the transition single-shot: if another trigger path already
// credited it, zero rows are affected and ErrNotFound is returned.
func CreditReferral(ctx context.Context, db *gorm.DB, id string, rate, amount decimal.Decimal, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Referral{}).
		Where("id = ? AND status = ?", id, domain.ReferralStatusPending).
		Updates(map[string]any{
			"status":            domain.ReferralStatusCredited,
			"commission_rate":   rate,
			"commission_earned": amount,
			"credited_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireReferral transitions a referral pending → expired. Reserved for the
// admin surface; no automation drives it.
func ExpireReferral(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Referral{}).
		Where("id = ? AND status = ?", id, domain.ReferralStatusPending).
		Update("status", domain.ReferralStatusExpired)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddStoreCredit increments a customer's balance by amount using a single
// SQL expression. The increment must stay atomic at the storage layer so
// concurrent crediting of the same referrer from unrelated orders cannot
// lose updates.
func AddStoreCredit(ctx context.Context, db *gorm.DB, customerID string, amount decimal.Decimal) error {
	res := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("id = ?", customerID).
		Update("store_credit", gorm.Expr("store_credit + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateStoreCreditTransaction appends an immutable store-credit movement
// record.
func CreateStoreCreditTransaction(ctx context.Context, db *gorm.DB, customerID string, amount decimal.Decimal, reason string, referralID *string) (*domain.StoreCreditTransaction, error) {
	txn := &domain.StoreCreditTransaction{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Amount:     amount,
		Reason:     reason,
		ReferralID: referralID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// GetCustomer fetches a customer by ID, or ErrNotFound.
func GetCustomer(ctx context.Context, db *gorm.DB, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
