// Package services – referral commission settlement.
//
// ReferralService owns the pending → credited transition. It is invoked
// from two automations (payment capture and delivery) that may both fire
// for the same order; the guarded status update in the repository makes the
// transition single-shot, so the second path finds no pending row and
// settles nothing.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelkos/go-bakery-backend/internal/domain"
	"github.com/avelkos/go-bakery-backend/internal/repo"
)

// Commission reason recorded on store-credit transactions.
const creditReasonReferral = "referral-commission"

// ReferralService settles referral commissions.
type ReferralService struct {
	DB       *gorm.DB
	Notifier Notifier
	Log      zerolog.Logger

	// StandardRate and AffiliateRate are commission percentages. The rate
	// is chosen by the referrer's affiliate flag at settlement time and
	// frozen on the referral.
	StandardRate  decimal.Decimal
	AffiliateRate decimal.Decimal
}

// NewReferralService constructs a ReferralService with the given two-tier
// rates (percent).
func NewReferralService(db *gorm.DB, notifier Notifier, standardRate, affiliateRate decimal.Decimal, log zerolog.Logger) *ReferralService {
	return &ReferralService{
		DB:            db,
		Notifier:      notifier,
		Log:           log,
		StandardRate:  standardRate,
		AffiliateRate: affiliateRate,
	}
}

// Settle credits the pending referral matching the order's customer, if one
// exists. It is a no-op (nil) when the order has no customer, the customer
// has no pending referral, or a concurrent settlement won the transition.
// Financial failures fail closed: any error inside the transaction rolls
// everything back and leaves the referral pending.
func (s *ReferralService) Settle(ctx context.Context, order *domain.Order) error {
	if order.CustomerID == nil {
		return nil
	}
	referred, err := repo.GetCustomer(ctx, s.DB, *order.CustomerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	referral, err := repo.FindPendingReferralForCustomer(ctx, s.DB, referred.ID, referred.Email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	referrer, err := repo.GetCustomer(ctx, s.DB, referral.ReferrerID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrReferrerNotFound
	}
	if err != nil {
		return err
	}

	rate := s.StandardRate
	if referrer.IsAffiliate {
		rate = s.AffiliateRate
	}
	commission := order.Subtotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
	now := time.Now().UTC()

	credited := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch err := repo.CreditReferral(ctx, tx, referral.ID, rate, commission, now); {
		case errors.Is(err, repo.ErrNotFound):
			// Lost the race against the other trigger path: the referral is
			// no longer pending and nothing must be credited twice.
			return nil
		case err != nil:
			return err
		}
		if err := repo.AddStoreCredit(ctx, tx, referrer.ID, commission); err != nil {
			return err
		}
		if _, err := repo.CreateStoreCreditTransaction(ctx, tx, referrer.ID, commission, creditReasonReferral, &referral.ID); err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		return err
	}
	if !credited {
		return nil
	}

	s.Log.Info().
		Str("referral_id", referral.ID).
		Str("referrer_id", referrer.ID).
		Str("rate", rate.String()).
		Str("commission", commission.String()).
		Msg("referral credited")

	// The credit is already committed; a lost notification must not undo it.
	if err := s.Notifier.Send(ctx, Notification{
		Template:  TemplateReferralCredited,
		Recipient: referrer.Email,
		Data: map[string]any{
			"referral_id": referral.ID,
			"commission":  commission,
		},
	}); err != nil {
		s.Log.Warn().Err(err).Str("referral_id", referral.ID).Msg("referral-credited notification failed")
	}
	return nil
}
