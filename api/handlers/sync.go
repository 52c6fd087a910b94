package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
)

type SyncHandler struct {
	sync    interfaces.SyncService
	opQueue interfaces.OperationQueueService
}

func NewSyncHandler(sync interfaces.SyncService, opQueue interfaces.OperationQueueService) *SyncHandler {
	return &SyncHandler{
		sync:    sync,
		opQueue: opQueue,
	}
}

// Trigger requests an on-demand cycle. It returns immediately; a cycle
// already in flight absorbs the trigger.
func (h *SyncHandler) Trigger() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.sync.TriggerSync(c.Param("id"))
		c.JSON(http.StatusAccepted, gin.H{"status": "sync requested"})
	}
}

func (h *SyncHandler) Status() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.sync.Status())
	}
}

// Operations lists queued operations for an account, optionally filtered
// by status.
func (h *SyncHandler) Operations() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := enum.OperationStatus(c.Query("status"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if limit <= 0 || limit > maxPageSize {
			limit = 100
		}

		ops, err := h.opQueue.Status(c.Request.Context(), c.Param("id"), status, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list operations"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"operations": ops})
	}
}
