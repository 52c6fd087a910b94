package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
)

type AccountsHandler struct {
	log   logger.Logger
	repos *repository.Repositories
	sync  interfaces.SyncService
}

func NewAccountsHandler(log logger.Logger, repos *repository.Repositories, sync interfaces.SyncService) *AccountsHandler {
	return &AccountsHandler{
		log:   log,
		repos: repos,
		sync:  sync,
	}
}

type createAccountRequest struct {
	Provider     enum.EmailProvider `json:"provider" binding:"required"`
	EmailAddress string             `json:"emailAddress" binding:"required"`
	DisplayName  string             `json:"displayName"`

	OAuthAccessToken  string `json:"oauthAccessToken"`
	OAuthRefreshToken string `json:"oauthRefreshToken"`

	ImapServer   string   `json:"imapServer"`
	ImapPort     int      `json:"imapPort"`
	ImapUsername string   `json:"imapUsername"`
	ImapPassword string   `json:"imapPassword"`
	ImapTLS      *bool    `json:"imapTls"`
	ImapFolders  []string `json:"imapFolders"`
}

func (h *AccountsHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		switch req.Provider {
		case enum.ProviderGmail:
			if req.OAuthRefreshToken == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "oauthRefreshToken is required for gmail accounts"})
				return
			}
		case enum.ProviderIMAP:
			if req.ImapServer == "" || req.ImapUsername == "" || req.ImapPassword == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "imapServer, imapUsername and imapPassword are required for imap accounts"})
				return
			}
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported provider"})
			return
		}

		account := &models.Account{
			Provider:          req.Provider,
			EmailAddress:      req.EmailAddress,
			DisplayName:       req.DisplayName,
			OAuthAccessToken:  req.OAuthAccessToken,
			OAuthRefreshToken: req.OAuthRefreshToken,
			ImapServer:        req.ImapServer,
			ImapPort:          req.ImapPort,
			ImapUsername:      req.ImapUsername,
			ImapPassword:      req.ImapPassword,
			ImapTLS:           req.ImapTLS == nil || *req.ImapTLS,
			ImapFolders:       req.ImapFolders,
			SyncStatus:        enum.SyncStatusActive,
		}

		if err := h.repos.AccountRepository.Create(c.Request.Context(), account); err != nil {
			h.log.Errorf("Failed to create account: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
			return
		}

		// kick off the initial backfill
		h.sync.TriggerSync(account.ID)
		c.JSON(http.StatusCreated, account)
	}
}

func (h *AccountsHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := h.repos.AccountRepository.List(c.Request.Context())
		if err != nil {
			h.log.Errorf("Failed to list accounts: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list accounts"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": accounts})
	}
}

func (h *AccountsHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := h.repos.AccountRepository.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			h.log.Errorf("Failed to get account: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get account"})
			return
		}
		if account == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

type updateStatusRequest struct {
	SyncStatus enum.SyncStatus `json:"syncStatus" binding:"required"`
}

// UpdateStatus flips the account sync status. Reactivating a degraded
// account clears its last sync error and triggers a cycle.
func (h *AccountsHandler) UpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		switch req.SyncStatus {
		case enum.SyncStatusActive, enum.SyncStatusDisabled:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "syncStatus must be active or disabled"})
			return
		}

		accountID := c.Param("id")
		if err := h.repos.AccountRepository.SetSyncStatus(c.Request.Context(), accountID, req.SyncStatus, ""); err != nil {
			h.log.Errorf("Failed to update account %s status: %v", accountID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update account status"})
			return
		}

		if req.SyncStatus == enum.SyncStatusActive {
			h.sync.TriggerSync(accountID)
		}
		c.JSON(http.StatusOK, gin.H{"syncStatus": req.SyncStatus})
	}
}

func (h *AccountsHandler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.Param("id")
		if err := h.repos.AccountRepository.Delete(c.Request.Context(), accountID); err != nil {
			h.log.Errorf("Failed to delete account %s: %v", accountID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete account"})
			return
		}
		if err := h.repos.SyncCursorRepository.Delete(c.Request.Context(), accountID); err != nil {
			h.log.Warnf("Failed to delete sync cursor for account %s: %v", accountID, err)
		}
		c.Status(http.StatusNoContent)
	}
}
