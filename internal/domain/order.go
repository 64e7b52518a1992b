// Package domain defines the persistence models for orders, customers,
// referrals, chat sessions, and the automation bookkeeping tables. These
// types are mapped with GORM and form the core data layer of the bakery
// backend.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order lifecycle statuses. Orders move forward through the happy path and
// may jump to StatusCancelled from any pre-delivery state.
const (
	OrderStatusPending        = "pending"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusPreparing      = "preparing"
	OrderStatusReady          = "ready"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
)

// Payment statuses.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Payment methods. The two "direct message" variants are settled manually by
// the shop outside the card gateway, so they are driven by the payment
// acknowledgement/reminder/auto-cancel automations.
const (
	PaymentMethodCard      = "card"
	PaymentMethodWhatsApp  = "whatsapp"
	PaymentMethodInstagram = "instagram"
)

// Order types. Custom orders go through a quote step before payment.
const (
	OrderTypeStandard = "standard"
	OrderTypeCustom   = "custom"
)

// Order represents a placed bakery order. The automation engine references
// orders by ID and mutates only Status/PaymentStatus as rule side effects;
// everything else is owned by the storefront.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - CustomerID: optional link to the ordering customer (guest orders have none).
//   - Status / PaymentStatus / PaymentMethod / Type: see constants above.
//   - Subtotal / Total: monetary amounts with 2-dp precision.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Order struct {
	ID            string          `json:"id"             gorm:"type:char(36);primaryKey"`
	CustomerID    *string         `json:"customer_id"    gorm:"type:char(36);index"`
	Status        string          `json:"status"         gorm:"type:varchar(32);not null;default:'pending';index"`
	PaymentStatus string          `json:"payment_status" gorm:"type:varchar(16);not null;default:'pending';index"`
	PaymentMethod string          `json:"payment_method" gorm:"type:varchar(32);not null;default:'card'"`
	Type          string          `json:"type"           gorm:"type:varchar(16);not null;default:'standard'"`
	Subtotal      decimal.Decimal `json:"subtotal"       gorm:"type:decimal(10,2);not null"`
	Total         decimal.Decimal `json:"total"          gorm:"type:decimal(10,2);not null"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// IsDirectMessagePayment reports whether the order is settled manually over
// a direct-message channel rather than through the card gateway.
func (o Order) IsDirectMessagePayment() bool {
	return o.PaymentMethod == PaymentMethodWhatsApp || o.PaymentMethod == PaymentMethodInstagram
}

// OrderItem is a single product line within an order. Items are referenced
// by the daily popularity query and the weekly summary only.
type OrderItem struct {
	ID          string          `json:"id"           gorm:"type:char(36);primaryKey"`
	OrderID     string          `json:"order_id"     gorm:"type:char(36);not null;index"`
	ProductID   string          `json:"product_id"   gorm:"type:char(36);not null;index"`
	ProductName string          `json:"product_name" gorm:"type:varchar(255);not null"`
	Quantity    int             `json:"quantity"     gorm:"not null;default:1"`
	UnitPrice   decimal.Decimal `json:"unit_price"   gorm:"type:decimal(10,2);not null"`
	CreatedAt   time.Time       `json:"created_at"`

	// Order is the parent order. Items are cascade-deleted with it.
	Order Order `json:"-" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for OrderItem.
func (OrderItem) TableName() string { return "order_items" }

// Basket statuses.
const (
	BasketStatusOpen      = "open"
	BasketStatusConverted = "converted"
)

// Basket is a shopping basket captured by the storefront. The engine only
// reads baskets for abandoned-basket detection; conversion to an order is
// the storefront's job.
type Basket struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	CustomerID *string        `json:"customer_id" gorm:"type:char(36);index"`
	Email      string         `json:"email"       gorm:"type:varchar(255)"`
	Status     string         `json:"status"      gorm:"type:varchar(16);not null;default:'open';index"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"  gorm:"index"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Basket.
func (Basket) TableName() string { return "baskets" }
