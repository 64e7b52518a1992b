package services

import (
	"context"
	"strings"

	"github.com/avelkos/go-bakery-backend/internal/domain"
)

// StaticResponder is a rule-based Responder used when no hosted model is
// configured. It answers a handful of common bakery questions and emits the
// escalation marker when the customer asks for a person.
type StaticResponder struct {
	// Marker is embedded in the reply to request a human handoff. Must match
	// the marker the ChatService strips.
	Marker string
}

// escalationPhrases are matched case-insensitively against the inbound text.
var escalationPhrases = []string{
	"human", "person", "staff", "operator", "speak to someone", "real agent",
	"complaint", "refund",
}

// Reply implements Responder.
func (r StaticResponder) Reply(_ context.Context, _ *domain.ChatSession, message string) (string, error) {
	text := strings.ToLower(message)
	for _, phrase := range escalationPhrases {
		if strings.Contains(text, phrase) {
			return "Of course. " + r.Marker, nil
		}
	}
	switch {
	case strings.Contains(text, "opening") || strings.Contains(text, "hours"):
		return "We bake Tuesday to Sunday, 8am to 5pm.", nil
	case strings.Contains(text, "order") && strings.Contains(text, "status"):
		return "You can check your order status with the link in your confirmation email.", nil
	case strings.Contains(text, "allerg") || strings.Contains(text, "gluten"):
		return "All our products are made in a kitchen that handles gluten, nuts, dairy, and eggs. Ask us about a specific item and we'll check the recipe.", nil
	default:
		return "Thanks for your message! Ask me about opening hours, allergens, or your order, or ask for a member of staff.", nil
	}
}
