package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	syncerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type EmailsHandler struct {
	log        logger.Logger
	repos      *repository.Repositories
	opQueue    interfaces.OperationQueueService
	classifier interfaces.ClassifierService
	sync       interfaces.SyncService
}

func NewEmailsHandler(
	log logger.Logger,
	repos *repository.Repositories,
	opQueue interfaces.OperationQueueService,
	classifier interfaces.ClassifierService,
	sync interfaces.SyncService,
) *EmailsHandler {
	return &EmailsHandler{
		log:        log,
		repos:      repos,
		opQueue:    opQueue,
		classifier: classifier,
		sync:       sync,
	}
}

// List returns one folder page for an account.
func (h *EmailsHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Query("accountId")
		if accountID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "accountId is required"})
			return
		}

		folder := enum.EmailFolder(c.DefaultQuery("folder", enum.FolderInbox.String()))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit <= 0 || limit > maxPageSize {
			limit = defaultPageSize
		}
		if offset < 0 {
			offset = 0
		}

		emails, total, err := h.repos.EmailRepository.ListByFolder(c.Request.Context(), accountID, folder, limit, offset)
		if err != nil {
			h.log.Errorf("Failed to list emails: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list emails"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"emails": emails,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}

func (h *EmailsHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		email, err := h.repos.EmailRepository.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			h.log.Errorf("Failed to get email: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get email"})
			return
		}
		if email == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
			return
		}
		c.JSON(http.StatusOK, email)
	}
}

// Mutate queues one mutation kind against an email. The local change is
// visible in the response; the remote change follows asynchronously.
func (h *EmailsHandler) Mutate(kind enum.OperationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		op, err := h.opQueue.RequestMutation(c.Request.Context(), c.Param("id"), kind)
		if err != nil {
			if err == syncerrors.ErrEmailNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
				return
			}
			h.log.Errorf("Failed to queue %s: %v", kind, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue operation"})
			return
		}

		h.sync.TriggerSync(op.AccountID)
		c.JSON(http.StatusAccepted, op)
	}
}

// EmptyTrash queues a permanent delete for every trashed message of an
// account and removes them locally right away.
func (h *EmailsHandler) EmptyTrash() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("id")
		result, err := h.opQueue.EmptyTrash(c.Request.Context(), accountID)
		if err != nil {
			h.log.Errorf("Failed to empty trash for account %s: %v", accountID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to empty trash"})
			return
		}

		h.sync.TriggerSync(accountID)
		c.JSON(http.StatusAccepted, result)
	}
}

// Suggestions returns short reply drafts for an email, or an empty list
// when inference is unavailable.
func (h *EmailsHandler) Suggestions() gin.HandlerFunc {
	return func(c *gin.Context) {
		email, err := h.repos.EmailRepository.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			h.log.Errorf("Failed to get email: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get email"})
			return
		}
		if email == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
			return
		}

		suggestions := h.classifier.SuggestReplies(c.Request.Context(), email)
		c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
	}
}
