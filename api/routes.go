package api

import (
	"github.com/gin-gonic/gin"

	"github.com/customeros/mailsync/api/handlers"
	"github.com/customeros/mailsync/api/middleware"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, log logger.Logger, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())

	apiHandlers := handlers.InitHandlers(log, repos, s)

	// Health endpoint needs no auth
	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-MAILSYNC-API-KEY",
		ValidAPIKey: apikey,
	})

	v1 := r.Group("/v1")
	v1.Use(apiKeyMiddleware)
	v1.Use(middleware.TracingMiddleware())
	{
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", apiHandlers.Accounts.Create())
			accounts.GET("", apiHandlers.Accounts.List())
			accounts.GET("/:id", apiHandlers.Accounts.Get())
			accounts.PATCH("/:id/status", apiHandlers.Accounts.UpdateStatus())
			accounts.DELETE("/:id", apiHandlers.Accounts.Delete())

			accounts.POST("/:id/sync", apiHandlers.Sync.Trigger())
			accounts.GET("/:id/operations", apiHandlers.Sync.Operations())
			accounts.POST("/:id/empty-trash", apiHandlers.Emails.EmptyTrash())

			accounts.POST("/:id/subscriptions", apiHandlers.Subscriptions.Register())
		}

		emails := v1.Group("/emails")
		{
			emails.GET("", apiHandlers.Emails.List())
			emails.GET("/:id", apiHandlers.Emails.Get())
			emails.GET("/:id/suggestions", apiHandlers.Emails.Suggestions())

			emails.POST("/:id/read", apiHandlers.Emails.Mutate(enum.OperationMarkRead))
			emails.POST("/:id/unread", apiHandlers.Emails.Mutate(enum.OperationMarkUnread))
			emails.POST("/:id/trash", apiHandlers.Emails.Mutate(enum.OperationTrash))
			emails.POST("/:id/restore", apiHandlers.Emails.Mutate(enum.OperationRestore))
			emails.DELETE("/:id", apiHandlers.Emails.Mutate(enum.OperationDelete))
		}

		v1.GET("/sync/status", apiHandlers.Sync.Status())
		v1.DELETE("/subscriptions/:id", apiHandlers.Subscriptions.Unregister())
	}
}
