// Automation admin HTTP handlers.
//
// This file exposes the operator-facing registry and execution-log endpoints:
//   - GET   /automations            (list registry entries)
//   - GET   /automations/{id}       (single registry entry)
//   - PATCH /automations/{id}       (toggle on/off)
//   - GET   /automations/{id}/runs  (execution log, paginated)
//
// Toggling is the only mutation: parameters and the ledger are never edited
// over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/avelkos/go-bakery-backend/internal/domain"
	"github.com/avelkos/go-bakery-backend/internal/repo"
)

//
// DTOs
//

// UpdateAutomationRequest is the JSON payload for toggling an automation.
type UpdateAutomationRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListRunsResponse wraps a page of execution-log rows.
type ListRunsResponse struct {
	Runs       []domain.AutomationRun `json:"runs"`
	Pagination Pagination             `json:"pagination"`
}

//
// Helpers
//

// atoiDefault parses s as an int, returning def on empty or malformed input.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = atoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = atoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// ListAutomations returns every registry entry with its current toggle state
// and parameters.
func (h *Handlers) ListAutomations(c *gin.Context) {
	rows, err := repo.ListAutomationConfigs(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, rows)
}

// GetAutomation returns a single registry entry.
func (h *Handlers) GetAutomation(c *gin.Context) {
	cfg, err := repo.GetAutomationConfig(c.Request.Context(), h.db, c.Param("id"))
	if errors.Is(err, repo.ErrNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "automation not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, cfg)
}

// UpdateAutomation toggles an automation on or off. Deactivation stops new
// executions only; it never touches the ledger, so re-activating will not
// re-fire anything that already ran.
func (h *Handlers) UpdateAutomation(c *gin.Context) {
	var req UpdateAutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "is_active (boolean) required")
		return
	}

	id := c.Param("id")
	switch err := repo.SetAutomationActive(c.Request.Context(), h.db, id, *req.IsActive); {
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "automation not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		noContent(c)
	}
}

// ListAutomationRuns returns a page of the automation's execution log, newest
// first.
func (h *Handlers) ListAutomationRuns(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := repo.GetAutomationConfig(ctx, h.db, id); errors.Is(err, repo.ErrNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "automation not found")
		return
	} else if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	page, pageSize := clampPagination(c)
	total, err := repo.CountRuns(ctx, h.db, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	runs, err := repo.ListRunsPage(ctx, h.db, id, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListRunsResponse{
		Runs: runs,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
