// Package services – poller-driven rules with time-bucketed ledger keys.
//
// The daily and weekly rules key their facts by calendar bucket rather than
// by entity, always computed in UTC so a poll near midnight cannot produce
// two buckets for the same day depending on server locale.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/avelkos/go-bakery-backend/internal/repo"
)

// abandonedBasketRule (AUTO-11) nudges the owner of a basket that has sat
// untouched past the configured age. The poller selects candidate baskets;
// the ledger guarantees one nudge per basket ever.
type abandonedBasketRule struct{ ruleDeps }

func (abandonedBasketRule) ID() string { return AutoAbandonedBasket }

func (abandonedBasketRule) Match(ev Event, _ Params) (EntityRef, bool) {
	if ev.Kind != EventBasketTick || ev.Basket == nil {
		return EntityRef{}, false
	}
	return EntityRef{Type: EntityBasket, ID: ev.Basket.ID}, true
}

func (r abandonedBasketRule) Run(ctx context.Context, ev Event, _ Params) error {
	email := ev.Basket.Email
	if email == "" && ev.Basket.CustomerID != nil {
		c, err := repo.GetCustomer(ctx, r.db, *ev.Basket.CustomerID)
		if err != nil {
			return err
		}
		email = c.Email
	}
	if email == "" {
		return ErrNotApplicable
	}
	return r.notifier.Send(ctx, Notification{
		Template:  TemplateAbandonedBasket,
		Recipient: email,
		Data:      map[string]any{"basket_id": ev.Basket.ID},
	})
}

// popularityAlertRule (AUTO-12) alerts the operator once per UTC calendar
// day when any product crossed the ordered-quantity threshold over the last
// 24 hours.
type popularityAlertRule struct{ ruleDeps }

func (popularityAlertRule) ID() string { return AutoPopularityAlert }

func (popularityAlertRule) Match(ev Event, _ Params) (EntityRef, bool) {
	if ev.Kind != EventDailyTick {
		return EntityRef{}, false
	}
	day := ev.Now.UTC().Format("2006-01-02")
	return EntityRef{Type: EntityReport, ID: "popular-" + day}, true
}

func (r popularityAlertRule) Run(ctx context.Context, ev Event, p Params) error {
	threshold := p.PopularityThreshold
	if threshold <= 0 {
		threshold = 10
	}
	n, err := repo.PopularProductCount(ctx, r.db, ev.Now.Add(-24*time.Hour), threshold)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotApplicable
	}
	return r.notifier.Send(ctx, Notification{
		Template:  TemplatePopularityAlert,
		Recipient: r.operatorEmail,
		Data:      map[string]any{"popular_products": n, "threshold": threshold},
	})
}

// occasionReminderRule (AUTO-13) reminds a customer about the anniversary
// of a delivered order roughly one year later. The ledger key is bucketed
// by year so the reminder can recur annually without re-firing within one
// window.
type occasionReminderRule struct{ ruleDeps }

func (occasionReminderRule) ID() string { return AutoOccasionReminder }

func (occasionReminderRule) Match(ev Event, _ Params) (EntityRef, bool) {
	if ev.Kind != EventOccasionTick || ev.Order == nil {
		return EntityRef{}, false
	}
	key := fmt.Sprintf("%s:y%d", ev.Order.ID, ev.Now.UTC().Year())
	return EntityRef{Type: EntityOrder, ID: key}, true
}

func (r occasionReminderRule) Run(ctx context.Context, ev Event, _ Params) error {
	email, err := r.customerEmail(ctx, ev.Order)
	if err != nil {
		return err
	}
	items, err := repo.ListOrderItems(ctx, r.db, ev.Order.ID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, displayName(it.ProductName))
	}
	return r.notifier.Send(ctx, Notification{
		Template:  TemplateOccasionReminder,
		Recipient: email,
		Data:      map[string]any{"order_id": ev.Order.ID, "products": names},
	})
}

// weeklySummaryRule (AUTO-14) sends the operator an aggregate of the last
// seven days, keyed by ISO week so restarts inside the same week do not
// resend it.
type weeklySummaryRule struct{ ruleDeps }

func (weeklySummaryRule) ID() string { return AutoWeeklySummary }

func (weeklySummaryRule) Match(ev Event, _ Params) (EntityRef, bool) {
	if ev.Kind != EventWeeklyTick {
		return EntityRef{}, false
	}
	year, week := ev.Now.UTC().ISOWeek()
	return EntityRef{Type: EntityReport, ID: fmt.Sprintf("summary-%d-W%02d", year, week)}, true
}

func (r weeklySummaryRule) Run(ctx context.Context, ev Event, _ Params) error {
	count, revenue, err := repo.OrderStats(ctx, r.db, ev.Now.Add(-7*24*time.Hour))
	if err != nil {
		return err
	}
	return r.notifier.Send(ctx, Notification{
		Template:  TemplateBusinessSummary,
		Recipient: r.operatorEmail,
		Data:      map[string]any{"orders": count, "revenue": revenue},
	})
}
