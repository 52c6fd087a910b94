package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/utils"
)

// MaxOperationAttempts bounds transient retries for a queued mutation. One
// attempt is made per sync cycle; the cycle cadence is the backoff interval.
const MaxOperationAttempts = 3

// PendingOperation is a durable record of a locally intended mutation
// awaiting remote propagation. Completed operations are retained for audit.
type PendingOperation struct {
	ID        string               `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string               `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`
	EmailID   string               `gorm:"column:email_id;type:varchar(50);index;not null" json:"emailId"`
	RemoteID  string               `gorm:"column:remote_id;type:varchar(255);not null" json:"remoteId"`
	Kind      enum.OperationKind   `gorm:"column:kind;type:varchar(50);not null" json:"kind"`
	Status    enum.OperationStatus `gorm:"column:status;type:varchar(50);index;default:'pending'" json:"status"`
	Attempts  int                  `gorm:"column:attempts;default:0" json:"attempts"`
	LastError *string              `gorm:"column:last_error;type:text" json:"lastError"`

	// CreatedAt defines processing order during drain.
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;index;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (PendingOperation) TableName() string {
	return "pending_operations"
}

func (o *PendingOperation) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = utils.GenerateNanoIdWithPrefix("op", 20)
	}
	if o.Status == "" {
		o.Status = enum.OperationStatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = utils.Now()
	}
	return nil
}
