package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
)

type SubscriptionsHandler struct {
	log   logger.Logger
	repos *repository.Repositories
}

func NewSubscriptionsHandler(log logger.Logger, repos *repository.Repositories) *SubscriptionsHandler {
	return &SubscriptionsHandler{
		log:   log,
		repos: repos,
	}
}

type registerSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Auth     string `json:"auth"`
	P256dh   string `json:"p256dh"`
}

func (h *SubscriptionsHandler) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sub := &models.PushSubscription{
			AccountID: c.Param("id"),
			Endpoint:  req.Endpoint,
			Auth:      req.Auth,
			P256dh:    req.P256dh,
		}
		if err := h.repos.PushSubscriptionRepository.Create(c.Request.Context(), sub); err != nil {
			h.log.Errorf("Failed to register push subscription: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register subscription"})
			return
		}
		c.JSON(http.StatusCreated, sub)
	}
}

func (h *SubscriptionsHandler) Unregister() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.repos.PushSubscriptionRepository.Delete(c.Request.Context(), c.Param("id")); err != nil {
			h.log.Errorf("Failed to delete push subscription: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete subscription"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
