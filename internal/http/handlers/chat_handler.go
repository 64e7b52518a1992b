// Chat HTTP handlers.
//
// This file exposes REST endpoints for the chat widget and the operator
// handoff controls:
//   - POST /chat/messages                  (inbound customer message)
//   - POST /chat/sessions/{token}/claim    (operator claims a waiting session)
//   - POST /chat/sessions/{token}/release  (operator hands the session back)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/avelkos/go-bakery-backend/internal/domain"
	"github.com/avelkos/go-bakery-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ChatService defines the chat operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChatService interface {
	// HandleInbound records a customer message and returns the bot reply,
	// or nil when the session is escalated and the reply was suppressed.
	HandleInbound(ctx context.Context, token string, customerID *string, content string) (*domain.ChatMessage, error)
	// Claim moves a waiting session to a human operator.
	Claim(ctx context.Context, token string) error
	// Release hands an escalated session back to the bot.
	Release(ctx context.Context, token string) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for webhooks, chat, and the automation
// admin surface. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	engine       OrderEventHandler
	chat         ChatService
	db           *gorm.DB
	webhookToken string
}

// New constructs a Handlers instance bound to the given services. db backs
// the automation admin endpoints; webhookToken is the shared secret expected
// on order webhook deliveries.
func New(engine OrderEventHandler, chat ChatService, db *gorm.DB, webhookToken string) *Handlers {
	return &Handlers{engine: engine, chat: chat, db: db, webhookToken: webhookToken}
}

//
// DTOs
//

// InboundMessageRequest is the JSON payload for an inbound widget message.
type InboundMessageRequest struct {
	// SessionToken identifies the widget session; a new session is created
	// on first use.
	SessionToken string `json:"session_token" binding:"required,min=1,max=255"`
	// CustomerID optionally links the session to a known customer.
	CustomerID *string `json:"customer_id"`
	// Content is the message text.
	Content string `json:"content" binding:"required"`
}

// InboundMessageResponse wraps the stored reply. Reply is null when the
// session is escalated and the bot stayed silent.
type InboundMessageResponse struct {
	Reply      *domain.ChatMessage `json:"reply"`
	Suppressed bool                `json:"suppressed"`
}

//
// Handlers
//

// PostChatMessage accepts an inbound customer message, stores it, and returns
// the generated reply. While the session is waiting for (or engaged with) a
// human, the message is still recorded but no reply is generated and the
// response carries "suppressed": true.
func (h *Handlers) PostChatMessage(c *gin.Context) {
	var req InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	reply, err := h.chat.HandleInbound(c.Request.Context(), req.SessionToken, req.CustomerID, req.Content)
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeChatFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, InboundMessageResponse{Reply: reply, Suppressed: reply == nil})
}

// ClaimChatSession moves a waiting session into the human state. Claiming a
// session that is not waiting is a conflict, not an error to retry.
func (h *Handlers) ClaimChatSession(c *gin.Context) {
	token := c.Param("token")
	switch err := h.chat.Claim(c.Request.Context(), token); {
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, "session is not waiting for an operator")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		noContent(c)
	}
}

// ReleaseChatSession hands an escalated session back to the bot.
func (h *Handlers) ReleaseChatSession(c *gin.Context) {
	token := c.Param("token")
	switch err := h.chat.Release(c.Request.Context(), token); {
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, "session is already with the bot")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		noContent(c)
	}
}
