package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Referral statuses. A referral is credited at most once; expired is a
// reserved terminal state not driven by any automation.
const (
	ReferralStatusPending  = "pending"
	ReferralStatusCredited = "credited"
	ReferralStatusExpired  = "expired"
)

// Referral links a referrer to a referred signup. It transitions
// pending → credited exactly once, when the referred customer's first
// qualifying order is paid or delivered. CommissionRate and CommissionEarned
// are frozen at settlement time and never recomputed, even if the referrer's
// affiliate status later changes.
type Referral struct {
	ID               string           `json:"id"                gorm:"type:char(36);primaryKey"`
	ReferrerID       string           `json:"referrer_id"       gorm:"type:char(36);not null;index"`
	ReferredID       *string          `json:"referred_id"       gorm:"type:char(36);index"`
	ReferredEmail    string           `json:"referred_email"    gorm:"type:varchar(255);index"`
	Status           string           `json:"status"            gorm:"type:varchar(16);not null;default:'pending';index"`
	CommissionRate   *decimal.Decimal `json:"commission_rate"   gorm:"type:decimal(5,2)"`
	CommissionEarned *decimal.Decimal `json:"commission_earned" gorm:"type:decimal(10,2)"`
	CreditedAt       *time.Time       `json:"credited_at"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName returns the database table name for Referral.
func (Referral) TableName() string { return "referrals" }
