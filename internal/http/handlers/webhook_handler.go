// Order webhook HTTP handler.
//
// This file exposes the storefront-facing ingestion endpoint:
//   - POST /webhooks/orders   (order insert/update deliveries)
//
// Handlers are transport-thin: they authenticate the delivery, validate the
// payload shape, and hand the event to the automation engine. Idempotency is
// the engine's job; redelivering the same event is always safe.
package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/avelkos/go-bakery-backend/internal/domain"
	"github.com/avelkos/go-bakery-backend/internal/services"
)

// HeaderWebhookToken carries the shared secret authenticating deliveries.
const HeaderWebhookToken = "X-Webhook-Token"

// OrderEventHandler is the engine surface consumed by the webhook endpoint.
//
// Implementations must be safe for concurrent use and must honor the provided
// context for cancellation and timeouts.
type OrderEventHandler interface {
	// HandleOrderEvent evaluates the automation rule set against one order
	// insert or update delivery.
	HandleOrderEvent(ctx context.Context, evt services.OrderEvent) error
}

// OrderEventRequest is the JSON payload delivered by the storefront for each
// order mutation. Old is absent for inserts.
type OrderEventRequest struct {
	Type string        `json:"type" binding:"required"`
	Old  *domain.Order `json:"old"`
	New  *domain.Order `json:"new" binding:"required"`
}

// OrderEventResponse acknowledges a processed delivery.
type OrderEventResponse struct {
	Accepted bool   `json:"accepted"`
	OrderID  string `json:"order_id"`
}

// HandleOrderWebhook ingests one order insert/update delivery.
//
// Authentication: the X-Webhook-Token header must match the configured shared
// secret (constant-time comparison). Deliveries without a valid token are
// rejected with 401 and never reach the engine.
//
// The endpoint returns 200 once the event has been evaluated; duplicates are
// acknowledged the same way because the ledger makes re-processing a no-op.
func (h *Handlers) HandleOrderWebhook(c *gin.Context) {
	token := c.GetHeader(HeaderWebhookToken)
	if h.webhookToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookToken)) != 1 {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook token")
		return
	}

	var req OrderEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	var evtType services.OrderEventType
	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case string(services.OrderEventInsert):
		evtType = services.OrderEventInsert
	case string(services.OrderEventUpdate):
		evtType = services.OrderEventUpdate
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, `type must be "insert" or "update"`)
		return
	}
	if req.New.ID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "new.id required")
		return
	}
	if evtType == services.OrderEventUpdate && req.Old == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "old snapshot required for updates")
		return
	}

	evt := services.OrderEvent{Type: evtType, Old: req.Old, New: req.New}
	if err := h.engine.HandleOrderEvent(c.Request.Context(), evt); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeEventFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, OrderEventResponse{Accepted: true, OrderID: req.New.ID})
}
