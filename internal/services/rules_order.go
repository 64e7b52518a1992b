// Package services – webhook-triggered automation rules.
//
// These rules react to order insert/update events delivered by the
// storefront webhook. Status-transition rules only match when the previous
// status differs from the new one, so a redelivered event with identical
// snapshots matches nothing and an event where only a non-status field
// changed triggers no transition rule.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/avelkos/go-bakery-backend/internal/domain"
	"github.com/avelkos/go-bakery-backend/internal/repo"
)

// ruleDeps carries the collaborators shared by all rule implementations.
type ruleDeps struct {
	db            *gorm.DB
	notifier      Notifier
	chat          *ChatService
	referrals     *ReferralService
	operatorEmail string
}

// customerEmail resolves the notification address for an order's customer.
// Guest orders have no address, which callers surface as ErrNotApplicable.
func (d ruleDeps) customerEmail(ctx context.Context, o *domain.Order) (string, error) {
	if o.CustomerID == nil {
		return "", ErrNotApplicable
	}
	c, err := repo.GetCustomer(ctx, d.db, *o.CustomerID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrNotApplicable
	}
	if err != nil {
		return "", err
	}
	return c.Email, nil
}

// statusChanged reports whether an update event represents a real status
// transition into want.
func statusChanged(ev Event, want string) bool {
	return ev.Kind == EventOrderUpdated &&
		ev.Old != nil && ev.Order != nil &&
		ev.Old.Status != ev.Order.Status &&
		ev.Order.Status == want
}

// newOrderAlertRule (AUTO-1) notifies the operator once per created order.
type newOrderAlertRule struct{ ruleDeps }

func (newOrderAlertRule) ID() string { return AutoNewOrderAlert }

func (newOrderAlertRule) Match(ev Event, _ Params) (EntityRef, bool) {
	if ev.Kind != EventOrderCreated || ev.Order == nil {
		return EntityRef{}, false
	}
	return EntityRef{Type: EntityOrder, ID: ev.Order.ID}, true
}

func (r newOrderAlertRule) Run(ctx context.Context, ev Event, _ Params) error {
	return r.notifier.Send(ctx, Notification{
		Template:  TemplateNewOrder,
		Recipient: r.operatorEmail,
		Data: map[string]any{
			"order_id":       ev.Order.ID,
			"total":          ev.Order.Total,
			"payment_method": ev.Order.PaymentMethod,
		},
	})
}

// preparingUpdateRule (AUTO-2) tells the customer preparation has started
// and mirrors the update into their chat session as a system message.
type preparingUpdateRule struct{ ruleDeps }

func (preparingUpdateRule) ID() string { return AutoPreparingUpdate }

func (preparingUpdateRule) Match(ev Event, _ Params) (EntityRef, bool) {
	if !statusChanged(ev, domain.OrderStatusPreparing) {
		return EntityRef{}, false
	}
	return EntityRef{Type: EntityOrder, ID: ev.Order.ID}, true
}

func (r preparingUpdateRule) Run(ctx context.Context, ev Event, _ Params) error {
	email, err := r.customerEmail(ctx, ev.Order)
	if err != nil {
		return err
	}
	if err := r.notifier.Send(ctx, Notification{
		Template:  TemplateStatusUpdate,
		Recipient: email,
		Data:      map[string]any{"order_id": ev.Order.ID, "status": ev.Order.Status},
	}); err != nil {
		return err
	}
	// Best effort: customers without a chat session simply get no system line.
	if r.chat != nil && ev.Order.CustomerID != nil {
		_ = r.chat.InjectSystemMessage(ctx, *ev.Order.CustomerID, "Your order is in the oven — preparation has started.")
	}
	return nil
}

// readyUpdateRule (AUTO-3) notifies the customer when the order is ready
// for pickup or out for delivery. The ledger key includes the status so the
// two distinct transitions each notify once, while a redelivered event for
// either does not.
type readyUpdateRule struct{ ruleDeps }

func (readyUpdateRule) ID() string { return AutoReadyUpdate }

func (readyUpdateRule) Match(ev Event, _ Params) (EntityRef, bool) {
	if !statusChanged(ev, domain.OrderStatusReady) && !statusChanged(ev, domain.OrderStatusOutForDelivery) {
		return EntityRef{}, false
	}
	return EntityRef{Type: EntityOrder, ID: ev.Order.ID + ":" + ev.Order.Status}, true
}

func (r readyUpdateRule) Run(ctx context.Context, ev Event, _ Params) error {
	email, err := r.customerEmail(ctx, ev.Order)
	if err != nil {
		return err
	}
	return r.notifier.Send(ctx, Notification{
		Template:  TemplateStatusUpdate,
		Recipient: email,
		Data:      map[string]any{"order_id": ev.Order.ID, "status": ev.Order.Status},
	})
}

// reviewRequestRule (AUTO-4) asks for a review once an order is delivered.
type reviewRequestRule struct{ ruleDeps }

func (reviewRequestRule) ID() string { return AutoReviewRequest }

func (reviewRequestRule) Match(ev Event, _ Params) (EntityRef, bool) {
	if !statusChanged(ev, domain.OrderStatusDelivered) {
		return EntityRef{}, false
	}
	return EntityRef{Type: EntityOrder, ID: ev.Order.ID}, true
}

func (r reviewRequestRule) Run(ctx context.Context, ev Event, _ Params) error {
	email, err := r.customerEmail(ctx, ev.Order)
	if err != nil {
		return err
	}
	return r.notifier.Send(ctx, Notification{
		Template:  TemplateReviewRequest,
		Recipient: email,
		Data:      map[string]any{"order_id": ev.Order.ID},
	})
}

// referralDeliveredRule (AUTO-5) settles the referred customer's pending
// referral when their order reaches delivered.
type referralDeliveredRule struct{ ruleDeps }

func (referralDeliveredRule) ID() string { return AutoReferralDelivered }

func (referralDeliveredRule) Match(ev Event, _ Params) (EntityRef, bool) {
	if !statusChanged(ev, domain.OrderStatusDelivered) || ev.Order.CustomerID == nil {
		return EntityRef{}, false
	}
	return EntityRef{Type: EntityOrder, ID: ev.Order.ID}, true
}

func (r referralDeliveredRule) Run(ctx context.Context, ev Event, _ Params) error {
	return r.referrals.Settle(ctx, ev.Order)
}

// referralPaidRule (AUTO-6) settles the pending referral when payment for
// the referred customer's order is captured.
type referralPaidRule struct{ ruleDeps }

func (referralPaidRule) ID() string { return AutoReferralPaid }

func (referralPaidRule) Match(ev Event, _ Params) (EntityRef, bool) {
	if ev.Kind != EventOrderUpdated || ev.Old == nil || ev.Order == nil || ev.Order.CustomerID == nil {
		return EntityRef{}, false
	}
	if ev.Old.PaymentStatus == ev.Order.PaymentStatus || ev.Order.PaymentStatus != domain.PaymentStatusPaid {
		return EntityRef{}, false
	}
	return EntityRef{Type: EntityOrder, ID: ev.Order.ID}, true
}

func (r referralPaidRule) Run(ctx context.Context, ev Event, _ Params) error {
	return r.referrals.Settle(ctx, ev.Order)
}

// customQuoteRule (AUTO-10) sends the payment link when a custom order's
// quote is approved (confirmed) while payment is still pending.
type customQuoteRule struct{ ruleDeps }

func (customQuoteRule) ID() string { return AutoCustomQuote }

func (customQuoteRule) Match(ev Event, _ Params) (EntityRef, bool) {
	if !statusChanged(ev, domain.OrderStatusConfirmed) {
		return EntityRef{}, false
	}
	if ev.Order.Type != domain.OrderTypeCustom || ev.Order.PaymentStatus != domain.PaymentStatusPending {
		return EntityRef{}, false
	}
	return EntityRef{Type: EntityOrder, ID: ev.Order.ID}, true
}

func (r customQuoteRule) Run(ctx context.Context, ev Event, _ Params) error {
	email, err := r.customerEmail(ctx, ev.Order)
	if err != nil {
		return err
	}
	return r.notifier.Send(ctx, Notification{
		Template:  TemplateCustomQuote,
		Recipient: email,
		Data:      map[string]any{"order_id": ev.Order.ID, "total": ev.Order.Total},
	})
}
