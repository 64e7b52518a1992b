// Package services – automation engine.
//
// The Engine is the single execution path behind all four trigger sources
// (order webhook plus the frequent/daily/weekly pollers). Every trigger is
// mapped to events, every event is offered to every registered rule, and
// each eligible (rule, entity) pair runs through the same gate:
//
//	registry active? → ledger fact absent? → Run → MarkFired → log
//
// Failures are isolated per pair: a rule error becomes a "failed" run row
// and withholds the ledger fact so the next trigger retries, and it never
// aborts the remaining rules of the same tick. All cross-tick memory lives
// in the ledger, which is what makes overlapping triggers and re-polling
// safe.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/avelkos/go-bakery-backend/internal/domain"
	"github.com/avelkos/go-bakery-backend/internal/repo"
)

// automationRuns counts executions by automation identity and outcome.
var automationRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "automation_runs_total",
		Help: "Total automation executions by automation id and outcome.",
	},
	[]string{"automation", "status"},
)

func init() {
	prometheus.MustRegister(automationRuns)
}

// OrderEventType discriminates webhook deliveries.
type OrderEventType string

// Webhook event types.
const (
	OrderEventInsert OrderEventType = "insert"
	OrderEventUpdate OrderEventType = "update"
)

// OrderEvent is one webhook delivery: an order insert or update with the
// old and new snapshots. Old is nil for inserts.
type OrderEvent struct {
	Type OrderEventType
	Old  *domain.Order
	New  *domain.Order
}

// Engine evaluates the automation rule set against trigger events.
type Engine struct {
	DB        *gorm.DB
	Notifier  Notifier
	Chat      *ChatService
	Referrals *ReferralService
	Log       zerolog.Logger

	// OperatorEmail receives operator-facing notifications (new orders,
	// popularity alerts, the weekly summary).
	OperatorEmail string

	// PaymentLookback bounds the frequent poller's order scan so a tick's
	// runtime stays predictable. Orders older than this have either been
	// auto-cancelled long ago or are not the engine's problem anymore.
	PaymentLookback time.Duration

	// Clock returns the current time; tests pin it.
	Clock func() time.Time

	rules []Rule
}

// NewEngine constructs an Engine with the full rule set registered. Within
// a tick rules run in registration order; the auto-cancel rule is
// registered before the reminder rule so a cancellation pre-empts reminder
// evaluation for the same order in the same tick.
func NewEngine(db *gorm.DB, notifier Notifier, chat *ChatService, referrals *ReferralService, operatorEmail string, log zerolog.Logger) *Engine {
	e := &Engine{
		DB:              db,
		Notifier:        notifier,
		Chat:            chat,
		Referrals:       referrals,
		Log:             log,
		OperatorEmail:   operatorEmail,
		PaymentLookback: 14 * 24 * time.Hour,
		Clock:           func() time.Time { return time.Now().UTC() },
	}
	deps := ruleDeps{
		db:            db,
		notifier:      notifier,
		chat:          chat,
		referrals:     referrals,
		operatorEmail: operatorEmail,
	}
	e.rules = []Rule{
		newOrderAlertRule{deps},
		preparingUpdateRule{deps},
		readyUpdateRule{deps},
		reviewRequestRule{deps},
		referralDeliveredRule{deps},
		referralPaidRule{deps},
		paymentAckRule{deps},
		paymentCancelRule{deps},
		paymentReminderRule{deps},
		customQuoteRule{deps},
		abandonedBasketRule{deps},
		popularityAlertRule{deps},
		occasionReminderRule{deps},
		weeklySummaryRule{deps},
	}
	return e
}

// configSnapshot is the per-tick view of the automation registry: one
// lookup per tick instead of one per rule per entity.
type configSnapshot map[string]domain.AutomationConfig

func (e *Engine) loadConfigs(ctx context.Context) (configSnapshot, error) {
	rows, err := repo.ListAutomationConfigs(ctx, e.DB)
	if err != nil {
		return nil, err
	}
	snap := make(configSnapshot, len(rows))
	for _, row := range rows {
		snap[row.ID] = row
	}
	return snap, nil
}

// HandleOrderEvent is the webhook entry point. Insert events evaluate the
// insert-triggered rules; update events evaluate transition rules, which
// only match when the corresponding field actually changed between the old
// and new snapshots.
func (e *Engine) HandleOrderEvent(ctx context.Context, evt OrderEvent) error {
	tr := otel.Tracer("services/Engine")
	ctx, span := tr.Start(ctx, "HandleOrderEvent",
		trace.WithAttributes(attribute.String("event.type", string(evt.Type))),
	)
	defer span.End()

	if evt.New == nil {
		return ErrOrderNotFound
	}
	snap, err := e.loadConfigs(ctx)
	if err != nil {
		return err
	}

	ev := Event{Old: evt.Old, Order: evt.New, Now: e.Clock()}
	switch evt.Type {
	case OrderEventInsert:
		ev.Kind = EventOrderCreated
	case OrderEventUpdate:
		ev.Kind = EventOrderUpdated
	default:
		return fmt.Errorf("unknown order event type %q", evt.Type)
	}
	e.evaluate(ctx, snap, ev)
	return nil
}

// RunFrequent is the ≈15-minute poller tick: age-threshold evaluation of
// every open direct-payment order, plus abandoned-basket detection. It is
// the safety net against missed webhook deliveries; the ledger makes the
// overlap with the webhook path harmless.
func (e *Engine) RunFrequent(ctx context.Context) error {
	tr := otel.Tracer("services/Engine")
	ctx, span := tr.Start(ctx, "RunFrequent")
	defer span.End()

	snap, err := e.loadConfigs(ctx)
	if err != nil {
		return err
	}
	now := e.Clock()

	orders, err := repo.ListAwaitingDirectPayment(ctx, e.DB, now.Add(-e.PaymentLookback))
	if err != nil {
		return err
	}
	for i := range orders {
		e.evaluate(ctx, snap, Event{Kind: EventPaymentTick, Order: &orders[i], Now: now})
	}

	// Basket detection only scans when the automation is switched on; the
	// window is derived from its own registry parameters.
	if cfg, ok := snap[AutoAbandonedBasket]; ok && cfg.IsActive {
		p := ParseParams(cfg.Params)
		age := p.BasketAgeMinutes
		if age <= 0 {
			age = 180
		}
		newest := now.Add(-time.Duration(age) * time.Minute)
		oldest := newest.Add(-e.PaymentLookback)
		baskets, err := repo.ListAbandonedBaskets(ctx, e.DB, oldest, newest)
		if err != nil {
			return err
		}
		for i := range baskets {
			e.evaluate(ctx, snap, Event{Kind: EventBasketTick, Basket: &baskets[i], Now: now})
		}
	}
	return nil
}

// RunDaily is the daily poller tick: the popularity alert plus per-order
// occasion reminders for purchases made roughly one year ago.
func (e *Engine) RunDaily(ctx context.Context) error {
	tr := otel.Tracer("services/Engine")
	ctx, span := tr.Start(ctx, "RunDaily")
	defer span.End()

	snap, err := e.loadConfigs(ctx)
	if err != nil {
		return err
	}
	now := e.Clock()
	e.evaluate(ctx, snap, Event{Kind: EventDailyTick, Now: now})

	if cfg, ok := snap[AutoOccasionReminder]; ok && cfg.IsActive {
		p := ParseParams(cfg.Params)
		window := p.OccasionWindowDays
		if window <= 0 {
			window = 7
		}
		anniversary := now.AddDate(-1, 0, 0)
		half := time.Duration(window) * 24 * time.Hour / 2
		orders, err := repo.ListOccasionOrders(ctx, e.DB, anniversary.Add(-half), anniversary.Add(half))
		if err != nil {
			return err
		}
		for i := range orders {
			e.evaluate(ctx, snap, Event{Kind: EventOccasionTick, Order: &orders[i], Now: now})
		}
	}
	return nil
}

// RunWeekly is the weekly poller tick: the aggregate business summary.
func (e *Engine) RunWeekly(ctx context.Context) error {
	tr := otel.Tracer("services/Engine")
	ctx, span := tr.Start(ctx, "RunWeekly")
	defer span.End()

	snap, err := e.loadConfigs(ctx)
	if err != nil {
		return err
	}
	e.evaluate(ctx, snap, Event{Kind: EventWeeklyTick, Now: e.Clock()})
	return nil
}

// evaluate offers the event to every rule and executes the ones that match.
// A registry row that is missing counts as inactive, not as an error.
func (e *Engine) evaluate(ctx context.Context, snap configSnapshot, ev Event) {
	for _, rule := range e.rules {
		cfg, ok := snap[rule.ID()]
		if !ok || !cfg.IsActive {
			continue
		}
		p := ParseParams(cfg.Params)
		ref, ok := rule.Match(ev, p)
		if !ok {
			continue
		}
		e.execute(ctx, rule, ev, p, ref)
	}
}

// execute runs one (rule, entity) pair through the idempotency gate. Any
// panic or error is converted into an execution-log row at this boundary
// and never propagates to the caller, so one pair's failure cannot abort
// the remaining automations of the same tick.
func (e *Engine) execute(ctx context.Context, rule Rule, ev Event, p Params, ref EntityRef) {
	log := e.Log.With().
		Str("automation", rule.ID()).
		Str("entity_type", ref.Type).
		Str("entity_id", ref.ID).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			e.record(ctx, log, rule.ID(), ref, domain.RunStatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	fired, err := repo.HasFired(ctx, e.DB, rule.ID(), ref.Type, ref.ID)
	if err != nil {
		log.Error().Err(err).Msg("ledger lookup failed")
		return
	}
	if fired {
		return
	}

	if err := rule.Run(ctx, ev, p); err != nil {
		if errors.Is(err, ErrNotApplicable) {
			// Firing condition disproven against live data: neither a fact
			// nor a log row, so a later tick may still fire.
			return
		}
		e.record(ctx, log, rule.ID(), ref, domain.RunStatusFailed, err.Error())
		return
	}

	switch err := repo.MarkFired(ctx, e.DB, rule.ID(), ref.Type, ref.ID); {
	case errors.Is(err, repo.ErrDuplicate):
		// A concurrent trigger got there first; its execution is the one
		// of record.
		e.record(ctx, log, rule.ID(), ref, domain.RunStatusSkipped, "")
	case err != nil:
		// Fact withheld: the next trigger retries the whole pair.
		e.record(ctx, log, rule.ID(), ref, domain.RunStatusFailed, err.Error())
	default:
		e.record(ctx, log, rule.ID(), ref, domain.RunStatusSuccess, "")
	}
}

// record writes the execution-log row and the metric. The log is
// observability data: a failed write is itself only logged, never allowed
// to block the engine.
func (e *Engine) record(ctx context.Context, log zerolog.Logger, automationID string, ref EntityRef, status, errMsg string) {
	automationRuns.WithLabelValues(automationID, status).Inc()
	switch status {
	case domain.RunStatusFailed:
		log.Warn().Str("error", errMsg).Msg("automation failed")
	case domain.RunStatusSkipped:
		log.Debug().Msg("automation skipped (already handled)")
	default:
		log.Info().Msg("automation executed")
	}
	if err := repo.LogRun(ctx, e.DB, automationID, ref.Type, ref.ID, status, errMsg); err != nil {
		log.Error().Err(err).Msg("execution log write failed")
	}
}
