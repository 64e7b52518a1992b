// Package services – chat handoff state machine.
//
// ChatService tracks each widget session's mode (bot → waiting → human) and
// enforces reply suppression: while a session is escalated, inbound user
// messages are still recorded but no bot reply is generated. Escalation is
// signalled by a marker string embedded in the generated reply; the marker
// is a structured signal inside otherwise free-text model output, must stay
// globally unique, and is stripped before anything is stored or shown.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/avelkos/go-bakery-backend/internal/domain"
	"github.com/avelkos/go-bakery-backend/internal/repo"
)

// DefaultEscalationMarker is the marker the conversational responder embeds
// in a reply to request a human handoff.
const DefaultEscalationMarker = "[[ESCALATE_TO_HUMAN]]"

// escalationFallback is stored when a reply consisted of nothing but the
// marker.
const escalationFallback = "A member of the team will be with you shortly."

// Responder generates a bot reply for an inbound message. The concrete
// implementation (a hosted model) lives outside this repository.
type Responder interface {
	Reply(ctx context.Context, session *domain.ChatSession, message string) (string, error)
}

// ChatService owns chat sessions, their message streams, and the handoff
// state machine.
type ChatService struct {
	DB        *gorm.DB
	Responder Responder
	Log       zerolog.Logger

	// EscalationMarker overrides DefaultEscalationMarker when non-empty.
	EscalationMarker string
}

// NewChatService constructs a ChatService with the default marker.
func NewChatService(db *gorm.DB, responder Responder, log zerolog.Logger) *ChatService {
	return &ChatService{DB: db, Responder: responder, Log: log, EscalationMarker: DefaultEscalationMarker}
}

func (s *ChatService) marker() string {
	if s.EscalationMarker != "" {
		return s.EscalationMarker
	}
	return DefaultEscalationMarker
}

// HandleInbound records an inbound customer message and, when the session
// is in the bot state, generates and stores a reply. It returns the stored
// bot message, or nil when the reply was suppressed because the session is
// waiting for (or engaged with) a human.
func (s *ChatService) HandleInbound(ctx context.Context, token string, customerID *string, content string) (*domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	session, err := repo.GetOrCreateSession(ctx, s.DB, token, customerID)
	if err != nil {
		return nil, err
	}
	if _, err := repo.AppendChatMessage(ctx, s.DB, session.ID, domain.ChatRoleUser, content); err != nil {
		return nil, err
	}
	if session.Status != domain.ChatStatusBot {
		// Escalated: record only, never speak.
		return nil, nil
	}

	reply, err := s.Responder.Reply(ctx, session, content)
	if err != nil {
		return nil, err
	}

	if strings.Contains(reply, s.marker()) {
		reply = strings.TrimSpace(strings.ReplaceAll(reply, s.marker(), ""))
		if reply == "" {
			reply = escalationFallback
		}
		switch err := repo.TransitionSessionStatus(ctx, s.DB, session.ID, domain.ChatStatusBot, domain.ChatStatusWaiting); {
		case errors.Is(err, repo.ErrNotFound):
			// Already escalated by a concurrent message; the state stands.
		case err != nil:
			return nil, err
		default:
			s.Log.Info().Str("session_id", session.ID).Msg("chat session escalated")
		}
	}

	return repo.AppendChatMessage(ctx, s.DB, session.ID, domain.ChatRoleAssistant, reply)
}

// InjectSystemMessage appends a system-authored line into the customer's
// most recent session, regardless of handoff state. System messages do not
// request a generation, so they bypass escalation detection entirely.
func (s *ChatService) InjectSystemMessage(ctx context.Context, customerID, content string) error {
	session, err := repo.FindSessionForCustomer(ctx, s.DB, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	_, err = repo.AppendChatMessage(ctx, s.DB, session.ID, domain.ChatRoleSystem, content)
	return err
}

// Claim moves a waiting session to human. Only an explicit operator action
// reaches this; nothing in the engine claims sessions automatically.
func (s *ChatService) Claim(ctx context.Context, token string) error {
	session, err := repo.GetSessionByToken(ctx, s.DB, token)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if err := repo.TransitionSessionStatus(ctx, s.DB, session.ID, domain.ChatStatusWaiting, domain.ChatStatusHuman); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidTransition
		}
		return err
	}
	return nil
}

// Release hands an escalated session back to the bot. Valid from waiting or
// human; releasing a session already in the bot state is an invalid
// transition.
func (s *ChatService) Release(ctx context.Context, token string) error {
	session, err := repo.GetSessionByToken(ctx, s.DB, token)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if session.Status == domain.ChatStatusBot {
		return ErrInvalidTransition
	}
	if err := repo.TransitionSessionStatus(ctx, s.DB, session.ID, session.Status, domain.ChatStatusBot); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidTransition
		}
		return err
	}
	return nil
}
