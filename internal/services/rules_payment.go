// Package services – age-threshold rules for the direct-message payment flow.
//
// The frequent poller evaluates each open direct-payment order against these
// rules by order age. Registration order matters inside a tick: the
// auto-cancel rule runs before the reminder rule and mutates the shared
// order snapshot, so a cancellation pre-empts reminder evaluation for that
// tick without any extra coordination.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/avelkos/go-bakery-backend/internal/domain"
	"github.com/avelkos/go-bakery-backend/internal/repo"
)

// paymentAckRule (AUTO-7) sends payment instructions once the order has
// waited at least ack_delay_minutes.
type paymentAckRule struct{ ruleDeps }

func (paymentAckRule) ID() string { return AutoPaymentAck }

func (paymentAckRule) Match(ev Event, p Params) (EntityRef, bool) {
	if ev.Kind != EventPaymentTick || ev.Order == nil || p.AckDelayMinutes <= 0 {
		return EntityRef{}, false
	}
	if orderAgeMinutes(ev.Order, ev.Now) < p.AckDelayMinutes {
		return EntityRef{}, false
	}
	return EntityRef{Type: EntityOrder, ID: ev.Order.ID}, true
}

func (r paymentAckRule) Run(ctx context.Context, ev Event, _ Params) error {
	email, err := r.customerEmail(ctx, ev.Order)
	if err != nil {
		return err
	}
	return r.notifier.Send(ctx, Notification{
		Template:  TemplatePaymentAck,
		Recipient: email,
		Data: map[string]any{
			"order_id":       ev.Order.ID,
			"payment_method": ev.Order.PaymentMethod,
			"total":          ev.Order.Total,
		},
	})
}

// paymentCancelRule (AUTO-9) cancels the order once it has waited at least
// auto_cancel_minutes without payment. It runs before the reminder rule and
// updates the shared snapshot so reminders are skipped in the same tick.
type paymentCancelRule struct{ ruleDeps }

func (paymentCancelRule) ID() string { return AutoPaymentCancel }

func (paymentCancelRule) Match(ev Event, p Params) (EntityRef, bool) {
	if ev.Kind != EventPaymentTick || ev.Order == nil || p.AutoCancelMinutes <= 0 {
		return EntityRef{}, false
	}
	if orderAgeMinutes(ev.Order, ev.Now) < p.AutoCancelMinutes {
		return EntityRef{}, false
	}
	return EntityRef{Type: EntityOrder, ID: ev.Order.ID}, true
}

func (r paymentCancelRule) Run(ctx context.Context, ev Event, _ Params) error {
	err := repo.CancelOrderIfOpen(ctx, r.db, ev.Order.ID)
	if errors.Is(err, repo.ErrNotFound) {
		// Already delivered or cancelled elsewhere; nothing to undo.
		ev.Order.Status = domain.OrderStatusCancelled
		return ErrNotApplicable
	}
	if err != nil {
		return err
	}
	ev.Order.Status = domain.OrderStatusCancelled

	email, cerr := r.customerEmail(ctx, ev.Order)
	if cerr != nil {
		// The cancellation itself stands even when the customer cannot be
		// notified (guest order).
		if errors.Is(cerr, ErrNotApplicable) {
			return nil
		}
		return cerr
	}
	return r.notifier.Send(ctx, Notification{
		Template:  TemplateOrderCancelled,
		Recipient: email,
		Data:      map[string]any{"order_id": ev.Order.ID},
	})
}

// paymentReminderRule (AUTO-8) sends at most one reminder per tick: the
// highest threshold already satisfied by the order's age. Thresholds are
// scanned longest first and the scan stops at the first satisfied one, so
// an order that aged past several thresholds between polls produces a
// single reminder. Earlier, skipped thresholds are deliberately not marked
// fired; the scan never selects them once a higher one has fired.
type paymentReminderRule struct{ ruleDeps }

func (paymentReminderRule) ID() string { return AutoPaymentReminder }

func (paymentReminderRule) Match(ev Event, p Params) (EntityRef, bool) {
	if ev.Kind != EventPaymentTick || ev.Order == nil || len(p.ReminderDelaysMinutes) == 0 {
		return EntityRef{}, false
	}
	// Cancellation pre-empts reminders for this tick.
	if ev.Order.Status == domain.OrderStatusCancelled {
		return EntityRef{}, false
	}
	age := orderAgeMinutes(ev.Order, ev.Now)
	if p.AutoCancelMinutes > 0 && age >= p.AutoCancelMinutes {
		return EntityRef{}, false
	}
	for _, delay := range sortedDesc(p.ReminderDelaysMinutes) {
		if delay <= age {
			return EntityRef{Type: EntityOrder, ID: fmt.Sprintf("%s:r%d", ev.Order.ID, delay)}, true
		}
	}
	return EntityRef{}, false
}

func (r paymentReminderRule) Run(ctx context.Context, ev Event, _ Params) error {
	email, err := r.customerEmail(ctx, ev.Order)
	if err != nil {
		return err
	}
	return r.notifier.Send(ctx, Notification{
		Template:  TemplatePaymentReminder,
		Recipient: email,
		Data: map[string]any{
			"order_id":       ev.Order.ID,
			"payment_method": ev.Order.PaymentMethod,
			"total":          ev.Order.Total,
		},
	})
}
