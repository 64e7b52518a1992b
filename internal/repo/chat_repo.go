// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for chat sessions
// and their message streams.
//
// Handoff transitions are guarded UPDATEs: the WHERE clause names the
// expected current status, so a transition observed by two writers applies
// exactly once and the loser sees ErrNotFound.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelkos/go-bakery-backend/internal/domain"
)

// GetSessionByToken fetches a session by its widget token, or ErrNotFound.
func GetSessionByToken(ctx context.Context, db *gorm.DB, token string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := db.WithContext(ctx).Where("session_token = ?", token).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetOrCreateSession returns the session for the token, creating it in the
// initial bot state when absent.
func GetOrCreateSession(ctx context.Context, db *gorm.DB, token string, customerID *string) (*domain.ChatSession, error) {
	s, err := GetSessionByToken(ctx, db, token)
	if err == nil {
		return s, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	s = &domain.ChatSession{
		ID:           uuid.NewString(),
		SessionToken: token,
		CustomerID:   customerID,
		Status:       domain.ChatStatusBot,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// FindSessionForCustomer returns the most recent session linked to the
// customer, or ErrNotFound. Automations use it to inject system messages.
func FindSessionForCustomer(ctx context.Context, db *gorm.DB, customerID string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// AppendChatMessage inserts a message into a session's stream.
func AppendChatMessage(ctx context.Context, db *gorm.DB, sessionID, role, content string) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// TransitionSessionStatus moves a session from one status to another.
// Returns ErrNotFound if the session is missing or no longer in the
// expected status.
func TransitionSessionStatus(ctx context.Context, db *gorm.DB, sessionID, from, to string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("id = ? AND status = ?", sessionID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSessionMessages returns the number of messages in a session.
func CountSessionMessages(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error
	return total, err
}

// ListSessionMessages returns a session's messages oldest first.
func ListSessionMessages(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
