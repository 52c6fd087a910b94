package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/utils"
)

// SyncCursor marks the last successfully merged remote state for an account.
// The cursor value is provider-opaque: a decimal history id for the label-API
// variant, a JSON folder-to-UID map for the stateful-protocol variant. It is
// advanced only after a successful fetch-and-merge.
type SyncCursor struct {
	ID         string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID  string    `gorm:"column:account_id;type:varchar(50);uniqueIndex;not null" json:"accountId"`
	Cursor     string    `gorm:"column:cursor;type:text" json:"cursor"`
	LastSyncAt time.Time `gorm:"column:last_sync_at;type:timestamp" json:"lastSyncAt"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (SyncCursor) TableName() string {
	return "sync_cursors"
}

func (c *SyncCursor) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = utils.GenerateNanoIdWithPrefix("cur", 16)
	}
	return nil
}
