package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avelkos/go-bakery-backend/internal/domain"
	"github.com/avelkos/go-bakery-backend/internal/repo"
	"github.com/avelkos/go-bakery-backend/internal/services"
)

func newAdminDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.AutomationConfig{}, &domain.AutomationFact{}, &domain.AutomationRun{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := repo.SeedAutomationConfigs(context.Background(), db, services.DefaultAutomationConfigs()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func newAdminRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newAdminDB(t)
	h := New(&fakeEngine{}, &fakeChat{}, db, "tok")
	r := gin.New()
	r.GET("/automations", h.ListAutomations)
	r.GET("/automations/:id", h.GetAutomation)
	r.PATCH("/automations/:id", h.UpdateAutomation)
	r.GET("/automations/:id/runs", h.ListAutomationRuns)
	return r, db
}

func TestListAutomations_ReturnsSeededRegistry(t *testing.T) {
	r, _ := newAdminRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/automations", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	var rows []domain.AutomationConfig
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(rows) != 14 {
		t.Fatalf("expected 14 registry entries, got %d", len(rows))
	}
}

func TestGetAutomation_FoundAndMissing(t *testing.T) {
	r, _ := newAdminRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/automations/"+services.AutoNewOrderAlert, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	var cfg domain.AutomationConfig
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("json: %v", err)
	}
	if cfg.ID != services.AutoNewOrderAlert {
		t.Fatalf("id = %q", cfg.ID)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/automations/AUTO-99", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d; want 404", w.Code)
	}
}

func TestUpdateAutomation_Toggle(t *testing.T) {
	r, db := newAdminRouter(t)

	body := strings.NewReader(`{"is_active": false}`)
	req := httptest.NewRequest(http.MethodPatch, "/automations/"+services.AutoNewOrderAlert, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d; want 204 (body %s)", w.Code, w.Body.String())
	}

	cfg, err := repo.GetAutomationConfig(context.Background(), db, services.AutoNewOrderAlert)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.IsActive {
		t.Fatalf("expected automation to be deactivated")
	}

	// Missing body field
	req = httptest.NewRequest(http.MethodPatch, "/automations/"+services.AutoNewOrderAlert, strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d; want 400", w.Code)
	}

	// Unknown automation
	req = httptest.NewRequest(http.MethodPatch, "/automations/AUTO-99", strings.NewReader(`{"is_active": true}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown automation status = %d; want 404", w.Code)
	}
}

func TestListAutomationRuns_Pagination(t *testing.T) {
	r, db := newAdminRouter(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if err := repo.LogRun(ctx, db, services.AutoNewOrderAlert, "order", fmt.Sprintf("o%02d", i), domain.RunStatusSuccess, ""); err != nil {
			t.Fatalf("log run: %v", err)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/automations/"+services.AutoNewOrderAlert+"/runs?page=2&page_size=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	var resp ListRunsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Pagination.Total != 25 || resp.Pagination.TotalPages != 3 || !resp.Pagination.HasNext {
		t.Fatalf("unexpected pagination: %+v", resp.Pagination)
	}
	if len(resp.Runs) != 10 {
		t.Fatalf("expected 10 runs on page 2, got %d", len(resp.Runs))
	}

	// Page size clamps at 100, page clamps at 1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/automations/"+services.AutoNewOrderAlert+"/runs?page=-1&page_size=9999", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("clamp status = %d; want 200", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Pagination.Page != 1 || resp.Pagination.PageSize != 100 {
		t.Fatalf("expected clamped pagination, got %+v", resp.Pagination)
	}

	// Unknown automation
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/automations/AUTO-99/runs", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown automation status = %d; want 404", w.Code)
	}
}
