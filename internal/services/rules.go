// Package services – automation rule set.
//
// Every automation is one Rule implementation keyed by a stable identity.
// A rule is a pure decision over an event snapshot plus its registry
// parameters: Match selects the idempotency key, Run performs the side
// effect. Adding an automation means adding one implementation and one
// registry seed row, not editing a dispatch conditional.
package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/avelkos/go-bakery-backend/internal/domain"
)

// Automation identities. The set is fixed and enumerable; identities are
// stable across releases because they key the idempotency ledger.
const (
	AutoNewOrderAlert     = "AUTO-1"
	AutoPreparingUpdate   = "AUTO-2"
	AutoReadyUpdate       = "AUTO-3"
	AutoReviewRequest     = "AUTO-4"
	AutoReferralDelivered = "AUTO-5"
	AutoReferralPaid      = "AUTO-6"
	AutoPaymentAck        = "AUTO-7"
	AutoPaymentReminder   = "AUTO-8"
	AutoPaymentCancel     = "AUTO-9"
	AutoCustomQuote       = "AUTO-10"
	AutoAbandonedBasket   = "AUTO-11"
	AutoPopularityAlert   = "AUTO-12"
	AutoOccasionReminder  = "AUTO-13"
	AutoWeeklySummary     = "AUTO-14"
)

// Entity types used in ledger keys and execution-log rows.
const (
	EntityOrder  = "order"
	EntityBasket = "basket"
	EntityReport = "report"
)

// EventKind discriminates the trigger that produced an Event.
type EventKind int

const (
	// EventOrderCreated is a webhook insert event.
	EventOrderCreated EventKind = iota
	// EventOrderUpdated is a webhook update event carrying old and new
	// snapshots.
	EventOrderUpdated
	// EventPaymentTick is one frequent-poll evaluation of a single order
	// awaiting direct-message payment.
	EventPaymentTick
	// EventBasketTick is one frequent-poll evaluation of a single
	// abandoned basket.
	EventBasketTick
	// EventOccasionTick is one daily-poll evaluation of a single order in
	// the anniversary window.
	EventOccasionTick
	// EventDailyTick fires once per daily poll.
	EventDailyTick
	// EventWeeklyTick fires once per weekly poll.
	EventWeeklyTick
)

// Event is the snapshot a rule decides over. Only the fields relevant to
// the kind are populated. Order is a pointer so that an earlier rule's
// state mutation in the same tick (auto-cancel) is visible to later rules.
type Event struct {
	Kind   EventKind
	Old    *domain.Order
	Order  *domain.Order
	Basket *domain.Basket
	Now    time.Time
}

// EntityRef is the (entity_type, entity_id) half of an idempotency key.
type EntityRef struct {
	Type string
	ID   string
}

// Rule is one automation. Match reports whether the rule applies to the
// event and returns the entity the execution should be keyed by; Run
// performs the side effect. Run may return ErrNotApplicable when live data
// disproves the firing condition.
type Rule interface {
	ID() string
	Match(ev Event, p Params) (EntityRef, bool)
	Run(ctx context.Context, ev Event, p Params) error
}

// Params is the decoded JSON parameter block of one registry row. Fields
// not present in the JSON keep their zero value; rules apply their own
// defaults where a zero would be meaningless.
type Params struct {
	// Direct-message payment flow.
	AckDelayMinutes       int   `json:"ack_delay_minutes"`
	ReminderDelaysMinutes []int `json:"reminder_delays_minutes"`
	AutoCancelMinutes     int   `json:"auto_cancel_minutes"`

	// Daily rules.
	PopularityThreshold int `json:"popularity_threshold"`
	OccasionWindowDays  int `json:"occasion_window_days"`

	// Abandoned baskets.
	BasketAgeMinutes int `json:"basket_age_minutes"`
}

// ParseParams decodes a registry parameter block. Invalid JSON yields zero
// params rather than an error: a malformed admin edit must not wedge the
// whole tick, and every rule tolerates zero values by not matching.
func ParseParams(raw string) Params {
	var p Params
	if raw == "" {
		return p
	}
	_ = json.Unmarshal([]byte(raw), &p)
	return p
}

// sortedDesc returns a copy of delays sorted longest first.
func sortedDesc(delays []int) []int {
	out := make([]int, len(delays))
	copy(out, delays)
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// orderAgeMinutes returns the whole minutes elapsed since the order was
// placed.
func orderAgeMinutes(o *domain.Order, now time.Time) int {
	return int(now.Sub(o.CreatedAt) / time.Minute)
}

// DefaultAutomationConfigs returns the seed registry rows. Seeding uses
// FirstOrCreate, so admin edits to live rows always win over these values.
func DefaultAutomationConfigs() []domain.AutomationConfig {
	return []domain.AutomationConfig{
		{ID: AutoNewOrderAlert, Name: "New order operator alert", IsActive: true, Params: "{}"},
		{ID: AutoPreparingUpdate, Name: "Preparation started update", IsActive: true, Params: "{}"},
		{ID: AutoReadyUpdate, Name: "Ready / out for delivery update", IsActive: true, Params: "{}"},
		{ID: AutoReviewRequest, Name: "Post-delivery review request", IsActive: true, Params: "{}"},
		{ID: AutoReferralDelivered, Name: "Referral settlement on delivery", IsActive: true, Params: "{}"},
		{ID: AutoReferralPaid, Name: "Referral settlement on payment", IsActive: true, Params: "{}"},
		{ID: AutoPaymentAck, Name: "Direct payment acknowledgement", IsActive: true, Params: `{"ack_delay_minutes":10}`},
		{ID: AutoPaymentReminder, Name: "Direct payment reminders", IsActive: true, Params: `{"reminder_delays_minutes":[30,90],"auto_cancel_minutes":120}`},
		{ID: AutoPaymentCancel, Name: "Direct payment auto-cancel", IsActive: true, Params: `{"auto_cancel_minutes":120}`},
		{ID: AutoCustomQuote, Name: "Custom order quote approved", IsActive: true, Params: "{}"},
		{ID: AutoAbandonedBasket, Name: "Abandoned basket nudge", IsActive: false, Params: `{"basket_age_minutes":180}`},
		{ID: AutoPopularityAlert, Name: "Daily popularity alert", IsActive: true, Params: `{"popularity_threshold":10}`},
		{ID: AutoOccasionReminder, Name: "Occasion reminder", IsActive: true, Params: `{"occasion_window_days":7}`},
		{ID: AutoWeeklySummary, Name: "Weekly business summary", IsActive: true, Params: "{}"},
	}
}
