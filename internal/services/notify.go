// Package services – notification transport contract.
//
// The engine never talks to an email provider or the chat widget directly;
// it hands templated notifications to a Notifier. Delivery failure is a
// recoverable error: the engine logs the attempt as failed, withholds the
// ledger fact, and the next trigger retries.
package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Template identities recognized by the notification transport.
const (
	TemplateNewOrder         = "new-order"
	TemplateStatusUpdate     = "status-update"
	TemplateReviewRequest    = "review-request"
	TemplateReferralCredited = "referral-credited"
	TemplateAbandonedBasket  = "abandoned-basket"
	TemplateCustomQuote      = "custom-quote"
	TemplateBusinessSummary  = "business-summary"
	TemplatePaymentAck       = "payment-ack"
	TemplatePaymentReminder  = "payment-reminder"
	TemplateOccasionReminder = "occasion-reminder"
	TemplatePopularityAlert  = "popularity-alert"
	TemplateOrderCancelled   = "order-cancelled"
)

// Notification is one templated message addressed to a customer or the
// operator.
type Notification struct {
	Template  string
	Recipient string
	Data      map[string]any
}

// Notifier sends templated notifications. Implementations must be safe for
// concurrent use; errors are recoverable and lead to a retry on the next
// trigger.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier is the default Notifier: it records the notification in the
// structured log and reports success. It keeps the engine fully operational
// in environments without a mail/chat transport configured.
type LogNotifier struct {
	Log zerolog.Logger
}

// NewLogNotifier constructs a LogNotifier writing to log.
func NewLogNotifier(log zerolog.Logger) LogNotifier {
	return LogNotifier{Log: log}
}

// Send logs the notification and never fails.
func (l LogNotifier) Send(_ context.Context, n Notification) error {
	l.Log.Info().
		Str("template", n.Template).
		Str("recipient", n.Recipient).
		Interface("data", n.Data).
		Msg("notification dispatched")
	return nil
}

// displayName renders a product name for notification payloads: trimmed and
// title-cased per English conventions.
func displayName(name string) string {
	return cases.Title(language.English).String(strings.TrimSpace(name))
}
