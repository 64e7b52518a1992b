package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer is a registered storefront account. The engine reads customers to
// resolve referrals and notification addresses, and mutates only StoreCredit
// (via an atomic increment) when a commission is settled.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: unique contact address used by the notification transport.
//   - IsAffiliate: grants the elevated commission rate at settlement time.
//   - StoreCredit: running balance; incremented atomically, never rewritten.
type Customer struct {
	ID          string          `json:"id"           gorm:"type:char(36);primaryKey"`
	Email       string          `json:"email"        gorm:"type:varchar(255);not null;uniqueIndex"`
	Name        string          `json:"name"         gorm:"type:varchar(255)"`
	IsAffiliate bool            `json:"is_affiliate" gorm:"not null;default:false"`
	StoreCredit decimal.Decimal `json:"store_credit" gorm:"type:decimal(10,2);not null;default:0"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }

// StoreCreditTransaction is an immutable record of a single store-credit
// movement. Rows are only ever appended; the customer's balance is the
// authoritative running total.
type StoreCreditTransaction struct {
	ID         string          `json:"id"          gorm:"type:char(36);primaryKey"`
	CustomerID string          `json:"customer_id" gorm:"type:char(36);not null;index"`
	Amount     decimal.Decimal `json:"amount"      gorm:"type:decimal(10,2);not null"`
	Reason     string          `json:"reason"      gorm:"type:varchar(64);not null"`
	ReferralID *string         `json:"referral_id" gorm:"type:char(36);index"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TableName returns the database table name for StoreCreditTransaction.
func (StoreCreditTransaction) TableName() string { return "store_credit_transactions" }
