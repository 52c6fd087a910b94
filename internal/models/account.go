package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/utils"
)

// Account is a mail account registered for synchronization. The provider
// field selects the adapter variant at construction time.
type Account struct {
	ID           string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Provider     enum.EmailProvider `gorm:"column:provider;type:varchar(50);index;not null" json:"provider"`
	EmailAddress string             `gorm:"column:email_address;type:varchar(255);index" json:"emailAddress"`
	DisplayName  string             `gorm:"column:display_name;type:varchar(255)" json:"displayName"`

	// Gmail configuration
	OAuthAccessToken  string     `gorm:"column:oauth_access_token;type:text" json:"-"`
	OAuthRefreshToken string     `gorm:"column:oauth_refresh_token;type:text" json:"-"`
	OAuthTokenExpiry  *time.Time `gorm:"column:oauth_token_expiry;type:timestamp" json:"-"`

	// IMAP configuration
	ImapServer   string         `gorm:"column:imap_server;type:varchar(255)" json:"imapServer"`
	ImapPort     int            `gorm:"column:imap_port" json:"imapPort"`
	ImapUsername string         `gorm:"column:imap_username;type:varchar(255)" json:"imapUsername"`
	ImapPassword string         `gorm:"column:imap_password;type:varchar(255)" json:"-"`
	ImapTLS      bool           `gorm:"column:imap_tls;default:true" json:"imapTls"`
	ImapFolders  pq.StringArray `gorm:"column:imap_folders;type:text[]" json:"imapFolders"`

	// Status information
	SyncStatus    enum.SyncStatus `gorm:"column:sync_status;type:varchar(50);default:'active'" json:"syncStatus"`
	LastSyncedAt  *time.Time      `gorm:"column:last_synced_at;type:timestamp" json:"lastSyncedAt"`
	LastSyncError string          `gorm:"column:last_sync_error;type:text" json:"lastSyncError"`

	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIdWithPrefix("acct", 16)
	}
	return nil
}

// Syncable reports whether the account should take part in sync cycles.
// Degraded accounts wait for a credential refresh; disabled ones are skipped.
func (a *Account) Syncable() bool {
	return a.SyncStatus == enum.SyncStatusActive
}
