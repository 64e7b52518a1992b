package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelkos/go-bakery-backend/internal/domain"
)

func createOrder(t *testing.T, db *gorm.DB, o domain.Order) domain.Order {
	t.Helper()
	if err := db.Create(&o).Error; err != nil {
		t.Fatalf("create order %s: %v", o.ID, err)
	}
	return o
}

func TestCancelOrderIfOpen_Guard(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	createOrder(t, db, domain.Order{
		ID: "o-open", Status: domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending, PaymentMethod: domain.PaymentMethodWhatsApp,
		Type: domain.OrderTypeStandard, Subtotal: decimal.NewFromInt(20), Total: decimal.NewFromInt(20),
		CreatedAt: now,
	})
	createOrder(t, db, domain.Order{
		ID: "o-done", Status: domain.OrderStatusDelivered,
		PaymentStatus: domain.PaymentStatusPaid, PaymentMethod: domain.PaymentMethodCard,
		Type: domain.OrderTypeStandard, Subtotal: decimal.NewFromInt(20), Total: decimal.NewFromInt(20),
		CreatedAt: now,
	})

	if err := CancelOrderIfOpen(ctx, db, "o-open"); err != nil {
		t.Fatalf("cancel open order: %v", err)
	}
	got, err := GetOrder(ctx, db, "o-open")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.OrderStatusCancelled {
		t.Fatalf("status = %q; want cancelled", got.Status)
	}

	// Cancelling twice, or cancelling a delivered order, affects nothing.
	if err := CancelOrderIfOpen(ctx, db, "o-open"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double cancel: expected ErrNotFound, got %v", err)
	}
	if err := CancelOrderIfOpen(ctx, db, "o-done"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delivered cancel: expected ErrNotFound, got %v", err)
	}
	if err := CancelOrderIfOpen(ctx, db, "o-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing cancel: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	createOrder(t, db, domain.Order{
		ID: "o1", Status: domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending, PaymentMethod: domain.PaymentMethodCard,
		Type: domain.OrderTypeStandard, Subtotal: decimal.NewFromInt(10), Total: decimal.NewFromInt(10),
		CreatedAt: time.Now().UTC(),
	})

	if err := UpdateOrderStatus(ctx, db, "o1", domain.OrderStatusPreparing); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := GetOrder(ctx, db, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.OrderStatusPreparing {
		t.Fatalf("status = %q", got.Status)
	}
	if err := UpdateOrderStatus(ctx, db, "nope", domain.OrderStatusReady); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAwaitingDirectPayment_Filters(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	since := now.Add(-14 * 24 * time.Hour)

	base := domain.Order{
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Type:          domain.OrderTypeStandard,
		Subtotal:      decimal.NewFromInt(15),
		Total:         decimal.NewFromInt(15),
	}

	wa := base
	wa.ID, wa.PaymentMethod, wa.CreatedAt = "o-wa", domain.PaymentMethodWhatsApp, now.Add(-time.Hour)
	createOrder(t, db, wa)

	ig := base
	ig.ID, ig.PaymentMethod, ig.CreatedAt = "o-ig", domain.PaymentMethodInstagram, now.Add(-2*time.Hour)
	createOrder(t, db, ig)

	card := base
	card.ID, card.PaymentMethod, card.CreatedAt = "o-card", domain.PaymentMethodCard, now.Add(-time.Hour)
	createOrder(t, db, card)

	paid := base
	paid.ID, paid.PaymentMethod, paid.CreatedAt = "o-paid", domain.PaymentMethodWhatsApp, now.Add(-time.Hour)
	paid.PaymentStatus = domain.PaymentStatusPaid
	createOrder(t, db, paid)

	cancelled := base
	cancelled.ID, cancelled.PaymentMethod, cancelled.CreatedAt = "o-cancelled", domain.PaymentMethodWhatsApp, now.Add(-time.Hour)
	cancelled.Status = domain.OrderStatusCancelled
	createOrder(t, db, cancelled)

	stale := base
	stale.ID, stale.PaymentMethod, stale.CreatedAt = "o-stale", domain.PaymentMethodWhatsApp, since.Add(-time.Hour)
	createOrder(t, db, stale)

	out, err := ListAwaitingDirectPayment(ctx, db, since)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(out))
	}
	// Oldest first.
	if out[0].ID != "o-ig" || out[1].ID != "o-wa" {
		t.Fatalf("unexpected order: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestPopularProductCount(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	createOrder(t, db, domain.Order{
		ID: "o1", Status: domain.OrderStatusDelivered,
		PaymentStatus: domain.PaymentStatusPaid, PaymentMethod: domain.PaymentMethodCard,
		Type: domain.OrderTypeStandard, Subtotal: decimal.NewFromInt(50), Total: decimal.NewFromInt(50),
		CreatedAt: now.Add(-2 * time.Hour),
	})
	items := []domain.OrderItem{
		{ID: "i1", OrderID: "o1", ProductID: "p-sourdough", ProductName: "sourdough loaf", Quantity: 6, UnitPrice: decimal.NewFromInt(4), CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "i2", OrderID: "o1", ProductID: "p-sourdough", ProductName: "sourdough loaf", Quantity: 5, UnitPrice: decimal.NewFromInt(4), CreatedAt: now.Add(-time.Hour)},
		{ID: "i3", OrderID: "o1", ProductID: "p-eclair", ProductName: "eclair", Quantity: 3, UnitPrice: decimal.NewFromInt(3), CreatedAt: now.Add(-time.Hour)},
		// Outside the window: must not count no matter the quantity.
		{ID: "i4", OrderID: "o1", ProductID: "p-eclair", ProductName: "eclair", Quantity: 50, UnitPrice: decimal.NewFromInt(3), CreatedAt: now.Add(-48 * time.Hour)},
	}
	for i := range items {
		if err := db.Create(&items[i]).Error; err != nil {
			t.Fatalf("create item: %v", err)
		}
	}

	n, err := PopularProductCount(ctx, db, now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 popular product, got %d", n)
	}

	n, err = PopularProductCount(ctx, db, now.Add(-24*time.Hour), 3)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 products at threshold 3, got %d", n)
	}
}

func TestListOccasionOrders(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	anniversary := now.AddDate(-1, 0, 0)
	cust := "cust-1"

	inWindow := domain.Order{
		ID: "o-hit", CustomerID: &cust, Status: domain.OrderStatusDelivered,
		PaymentStatus: domain.PaymentStatusPaid, PaymentMethod: domain.PaymentMethodCard,
		Type: domain.OrderTypeStandard, Subtotal: decimal.NewFromInt(25), Total: decimal.NewFromInt(25),
		CreatedAt: anniversary,
	}
	createOrder(t, db, inWindow)

	guest := inWindow
	guest.ID, guest.CustomerID = "o-guest", nil
	createOrder(t, db, guest)

	open := inWindow
	open.ID, open.Status = "o-open", domain.OrderStatusPending
	createOrder(t, db, open)

	out, err := ListOccasionOrders(ctx, db, anniversary.Add(-24*time.Hour), anniversary.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].ID != "o-hit" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestListAbandonedBaskets_Window(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	newest := now.Add(-3 * time.Hour)
	oldest := now.Add(-14 * 24 * time.Hour)

	baskets := []domain.Basket{
		{ID: "b-stale", Status: domain.BasketStatusOpen, Email: "a@x.test", CreatedAt: now.Add(-5 * time.Hour), UpdatedAt: now.Add(-5 * time.Hour)},
		{ID: "b-fresh", Status: domain.BasketStatusOpen, Email: "b@x.test", CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour)},
		{ID: "b-converted", Status: domain.BasketStatusConverted, Email: "c@x.test", CreatedAt: now.Add(-5 * time.Hour), UpdatedAt: now.Add(-5 * time.Hour)},
	}
	for i := range baskets {
		if err := db.Create(&baskets[i]).Error; err != nil {
			t.Fatalf("create basket: %v", err)
		}
	}

	out, err := ListAbandonedBaskets(ctx, db, oldest, newest)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].ID != "b-stale" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestOrderStats_ExcludesCancelled(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	base := domain.Order{
		Status:        domain.OrderStatusDelivered,
		PaymentStatus: domain.PaymentStatusPaid,
		PaymentMethod: domain.PaymentMethodCard,
		Type:          domain.OrderTypeStandard,
	}

	a := base
	a.ID, a.Subtotal, a.Total, a.CreatedAt = "s1", decimal.NewFromInt(30), decimal.NewFromInt(30), now.Add(-24*time.Hour)
	createOrder(t, db, a)

	b := base
	b.ID, b.Subtotal, b.CreatedAt = "s2", decimal.NewFromFloat(12.5), now.Add(-48*time.Hour)
	b.Total = decimal.NewFromFloat(12.5)
	createOrder(t, db, b)

	c := base
	c.ID, c.Status, c.Subtotal, c.Total, c.CreatedAt = "s3", domain.OrderStatusCancelled, decimal.NewFromInt(100), decimal.NewFromInt(100), now.Add(-24*time.Hour)
	createOrder(t, db, c)

	old := base
	old.ID, old.Subtotal, old.Total, old.CreatedAt = "s4", decimal.NewFromInt(500), decimal.NewFromInt(500), now.Add(-10*24*time.Hour)
	createOrder(t, db, old)

	count, revenue, err := OrderStats(ctx, db, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d; want 2", count)
	}
	if !revenue.Equal(decimal.NewFromFloat(42.5)) {
		t.Fatalf("revenue = %s; want 42.5", revenue)
	}
}
