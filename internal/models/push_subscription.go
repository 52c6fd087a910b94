package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/utils"
)

// PushSubscription is a delivery target registered with the external push
// relay. A terminal "subscription gone" response from the relay removes it.
type PushSubscription struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`
	Endpoint  string `gorm:"column:endpoint;type:text;not null" json:"endpoint"`
	Auth      string `gorm:"column:auth;type:text" json:"-"`
	P256dh    string `gorm:"column:p256dh;type:text" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (PushSubscription) TableName() string {
	return "push_subscriptions"
}

func (s *PushSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = utils.GenerateNanoIdWithPrefix("sub", 16)
	}
	return nil
}
