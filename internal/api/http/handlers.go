package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/appdock/appdock/internal/domain/actions"
	"github.com/appdock/appdock/internal/domain/catalog"
	"github.com/appdock/appdock/internal/domain/library"
	"github.com/appdock/appdock/internal/infrastructure/logging"
	"github.com/appdock/appdock/internal/providers/installed"
	"github.com/appdock/appdock/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// refreshTimeout bounds a cold system scan triggered over HTTP.
const refreshTimeout = 30 * time.Second

// Handlers contains all HTTP handlers
type Handlers struct {
	catalog   *catalog.Catalog
	engine    *library.Engine
	actionLog *actions.Manager
	system    *installed.Provider
	logger    *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(
	cat *catalog.Catalog,
	engine *library.Engine,
	actionLog *actions.Manager,
	system *installed.Provider,
	logger *logging.Logger,
) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		catalog:   cat,
		engine:    engine,
		actionLog: actionLog,
		system:    system,
		logger:    logger,
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "appdock",
		"status":  "online",
		"items":   h.catalog.Len(),
	})
}

// Health handles health checks
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"actions": h.actionLog.Stats(),
	})
}

// ListLibrary returns the current reconciled library view
func (h *Handlers) ListLibrary(c *gin.Context) {
	snapshot := h.engine.Current()
	c.JSON(http.StatusOK, gin.H{
		"items": snapshot,
		"count": len(snapshot),
	})
}

// GetLibraryItem returns one effective item
func (h *Handlers) GetLibraryItem(c *gin.Context) {
	id := c.Param("id")
	item, ok := h.engine.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not in catalog: " + id})
		return
	}
	c.JSON(http.StatusOK, item)
}

// RefreshLibrary runs a cold refresh against the installed-state query
func (h *Handlers) RefreshLibrary(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()

	if err := h.engine.Refresh(ctx); err != nil {
		if errors.Is(err, library.ErrQueryUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": h.engine.Current(),
	})
}

// recordActionRequest is the payload for recording a lifecycle action
type recordActionRequest struct {
	ItemID string           `json:"item_id" binding:"required"`
	Type   types.ActionType `json:"type" binding:"required"`
}

// RecordAction records a new install/uninstall request
func (h *Handlers) RecordAction(c *gin.Context) {
	var req recordActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type != types.ActionInstall && req.Type != types.ActionUninstall {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be install or uninstall"})
		return
	}
	if _, ok := h.catalog.Get(req.ItemID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not in catalog: " + req.ItemID})
		return
	}

	action, err := h.actionLog.Record(req.ItemID, req.Type)
	if err != nil {
		if errors.Is(err, actions.ErrActionInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, action)
}

// advanceActionRequest is the payload for a lifecycle transition
type advanceActionRequest struct {
	Status types.ActionStatus `json:"status" binding:"required"`
}

// AdvanceAction moves an action through its lifecycle
func (h *Handlers) AdvanceAction(c *gin.Context) {
	var req advanceActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action, err := h.actionLog.Advance(c.Param("id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, actions.ErrUnknownAction):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, actions.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, action)
}

// ListActions returns the current action per item
func (h *Handlers) ListActions(c *gin.Context) {
	snapshot := h.actionLog.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"actions": snapshot,
		"count":   len(snapshot),
	})
}

// ListInstalled returns the simulated system's install records
func (h *Handlers) ListInstalled(c *gin.Context) {
	records, err := h.system.ListInstalled(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"installed": records,
		"count":     len(records),
	})
}

// installRequest optionally overrides the recorded install time
type installRequest struct {
	UpdatedAt *int64 `json:"updated_at"`
}

// MarkInstalled writes an install record into the simulated system state
func (h *Handlers) MarkInstalled(c *gin.Context) {
	// An empty body is fine; the install time defaults to now.
	var req installRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ts := time.Now().Unix()
	if req.UpdatedAt != nil {
		ts = *req.UpdatedAt
	}

	h.system.Install(c.Param("id"), ts)
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "updated_at": ts})
}

// MarkUninstalled removes an install record from the simulated system state
func (h *Handlers) MarkUninstalled(c *gin.Context) {
	h.system.Uninstall(c.Param("id"))
	c.Status(http.StatusNoContent)
}
