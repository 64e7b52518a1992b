package domain

import (
	"time"

	"gorm.io/gorm"
)

// Chat session handoff states. A session starts with the bot; escalation
// moves it to waiting; only an explicit operator action moves it to human.
// While the session is not in the bot state the automated responder must
// not speak.
const (
	ChatStatusBot     = "bot"
	ChatStatusWaiting = "waiting"
	ChatStatusHuman   = "human"
)

// Chat message roles. System messages are appended by automations (e.g.
// "preparation has started") and bypass escalation detection because they
// never request a model generation.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleSystem    = "system"
)

// ChatSession is one chat-widget conversation, keyed by the widget's session
// token. Status drives bot-reply suppression and the human handoff.
type ChatSession struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	SessionToken string         `json:"session_token" gorm:"type:varchar(128);not null;uniqueIndex"`
	CustomerID   *string        `json:"customer_id"   gorm:"type:char(36);index"`
	Status       string         `json:"status"        gorm:"type:varchar(16);not null;default:'bot';index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string { return "chat_sessions" }

// ChatMessage is a single utterance within a session, authored by the
// customer, the bot, or an automation (system).
type ChatMessage struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	SessionID string    `json:"session_id" gorm:"type:char(36);not null;index:idx_session_msgs,priority:1"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_session_msgs,priority:2"`

	// Session is the parent conversation. Messages are cascade-deleted
	// if their session is removed.
	Session ChatSession `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }
