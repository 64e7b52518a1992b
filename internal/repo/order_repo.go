// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the order queries used by the webhook
// path and the three pollers.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelkos/go-bakery-backend/internal/domain"
)

// GetOrder fetches a single order by ID, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrderStatus sets the status of an order. Returns ErrNotFound when
// no row matches. Last-writer-wins is acceptable here: status rules are
// guarded by the ledger, not by the order row.
func UpdateOrderStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelOrderIfOpen transitions an order to cancelled only while it is still
// in a pre-delivery state. Returns ErrNotFound when the order is already
// delivered, cancelled, or missing.
func CancelOrderIfOpen(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status NOT IN ?", id, []string{domain.OrderStatusDelivered, domain.OrderStatusCancelled}).
		Update("status", domain.OrderStatusCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAwaitingDirectPayment returns open orders paid over a direct-message
// channel whose payment has not been confirmed yet. The frequent poller
// evaluates the acknowledgement, reminder, and auto-cancel rules against
// each of them; bounding the window keeps a tick's runtime predictable.
func ListAwaitingDirectPayment(ctx context.Context, db *gorm.DB, since time.Time) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Where("payment_method IN ?", []string{domain.PaymentMethodWhatsApp, domain.PaymentMethodInstagram}).
		Where("payment_status = ?", domain.PaymentStatusPending).
		Where("status NOT IN ?", []string{domain.OrderStatusDelivered, domain.OrderStatusCancelled}).
		Where("created_at >= ?", since).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// PopularProductCount returns how many distinct products exceeded the given
// ordered-quantity threshold since the cutoff.
func PopularProductCount(ctx context.Context, db *gorm.DB, since time.Time, threshold int) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Raw(`SELECT COUNT(*) FROM (
			SELECT product_id FROM order_items
			WHERE created_at >= ?
			GROUP BY product_id
			HAVING SUM(quantity) >= ?
		) popular`, since, threshold).
		Scan(&n).Error
	return n, err
}

// ListOccasionOrders returns delivered orders whose creation date falls in
// the [from, to) window, used by the daily occasion-reminder rule to find
// purchases made roughly one year ago.
func ListOccasionOrders(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Where("status = ?", domain.OrderStatusDelivered).
		Where("customer_id IS NOT NULL").
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListAbandonedBaskets returns open baskets last touched inside the
// [oldest, newest) age window. The rolling window, combined with the
// ledger, means a basket is flagged at most once.
func ListAbandonedBaskets(ctx context.Context, db *gorm.DB, oldest, newest time.Time) ([]domain.Basket, error) {
	var out []domain.Basket
	err := db.WithContext(ctx).
		Where("status = ?", domain.BasketStatusOpen).
		Where("updated_at >= ? AND updated_at < ?", oldest, newest).
		Order("updated_at asc").
		Find(&out).Error
	return out, err
}

// ListOrderItems returns the line items of an order.
func ListOrderItems(ctx context.Context, db *gorm.DB, orderID string) ([]domain.OrderItem, error) {
	var out []domain.OrderItem
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// OrderStats aggregates order count and revenue since the cutoff for the
// weekly business summary. Cancelled orders are excluded.
func OrderStats(ctx context.Context, db *gorm.DB, since time.Time) (count int64, revenue decimal.Decimal, err error) {
	type row struct {
		N       int64
		Revenue decimal.Decimal
	}
	var r row
	err = db.WithContext(ctx).
		Model(&domain.Order{}).
		Select("COUNT(*) AS n, COALESCE(SUM(total), 0) AS revenue").
		Where("created_at >= ?", since).
		Where("status <> ?", domain.OrderStatusCancelled).
		Scan(&r).Error
	return r.N, r.Revenue, err
}
