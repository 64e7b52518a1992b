package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/avelkos/go-bakery-backend/internal/domain"
	"github.com/avelkos/go-bakery-backend/internal/services"
)

func newWebhookRouter(engine OrderEventHandler, token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(engine, &fakeChat{}, nil, token)
	r := gin.New()
	r.POST("/webhooks/orders", h.HandleOrderWebhook)
	return r
}

func deliver(t *testing.T, r *gin.Engine, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(HeaderWebhookToken, token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func orderPayload(id, status string) map[string]any {
	return map[string]any{
		"id":             id,
		"status":         status,
		"payment_status": "pending",
		"payment_method": "card",
		"type":           "standard",
		"subtotal":       "40",
		"total":          "42.5",
	}
}

func TestHandleOrderWebhook_TokenRequired(t *testing.T) {
	eng := &fakeEngine{}
	r := newWebhookRouter(eng, "secret")

	// Missing token
	w := deliver(t, r, "", map[string]any{"type": "insert", "new": orderPayload("o1", "pending")})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d; want 401", w.Code)
	}

	// Wrong token
	w = deliver(t, r, "nope", map[string]any{"type": "insert", "new": orderPayload("o1", "pending")})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d; want 401", w.Code)
	}
	if eng.got.New != nil {
		t.Fatalf("engine must not see unauthenticated deliveries")
	}

	// A server with no token configured accepts nothing
	rNone := newWebhookRouter(eng, "")
	w = deliver(t, rNone, "", map[string]any{"type": "insert", "new": orderPayload("o1", "pending")})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unconfigured token status = %d; want 401", w.Code)
	}
}

func TestHandleOrderWebhook_BadPayloads(t *testing.T) {
	r := newWebhookRouter(&fakeEngine{}, "secret")

	// Malformed JSON
	w := deliver(t, r, "secret", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed status = %d; want 400", w.Code)
	}

	// Unknown type
	w = deliver(t, r, "secret", map[string]any{"type": "upsert", "new": orderPayload("o1", "pending")})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown type status = %d; want 400", w.Code)
	}

	// Update without old snapshot
	w = deliver(t, r, "secret", map[string]any{"type": "update", "new": orderPayload("o1", "preparing")})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("update without old status = %d; want 400", w.Code)
	}

	// Missing new.id
	w = deliver(t, r, "secret", map[string]any{"type": "insert", "new": orderPayload("", "pending")})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing id status = %d; want 400", w.Code)
	}
}

func TestHandleOrderWebhook_InsertAndUpdate(t *testing.T) {
	eng := &fakeEngine{}
	r := newWebhookRouter(eng, "secret")

	w := deliver(t, r, "secret", map[string]any{"type": "insert", "new": orderPayload("o1", "pending")})
	if w.Code != http.StatusOK {
		t.Fatalf("insert status = %d; want 200 (body %s)", w.Code, w.Body.String())
	}
	if eng.got.Type != services.OrderEventInsert || eng.got.New == nil || eng.got.New.ID != "o1" || eng.got.Old != nil {
		t.Fatalf("unexpected insert event: %+v", eng.got)
	}
	if !eng.got.New.Subtotal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("subtotal = %s; want 40", eng.got.New.Subtotal)
	}

	var resp OrderEventResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !resp.Accepted || resp.OrderID != "o1" {
		t.Fatalf("unexpected ack: %+v", resp)
	}

	w = deliver(t, r, "secret", map[string]any{
		"type": "update",
		"old":  orderPayload("o1", "pending"),
		"new":  orderPayload("o1", "preparing"),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d; want 200", w.Code)
	}
	if eng.got.Type != services.OrderEventUpdate || eng.got.Old == nil || eng.got.Old.Status != domain.OrderStatusPending || eng.got.New.Status != domain.OrderStatusPreparing {
		t.Fatalf("unexpected update event: %+v", eng.got)
	}
}

func TestHandleOrderWebhook_EngineError(t *testing.T) {
	r := newWebhookRouter(&fakeEngine{err: errors.New("boom")}, "secret")

	w := deliver(t, r, "secret", map[string]any{"type": "insert", "new": orderPayload("o1", "pending")})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Code != ErrCodeEventFailed {
		t.Fatalf("code = %q; want %q", er.Code, ErrCodeEventFailed)
	}
}
