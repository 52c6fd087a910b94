package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/utils"
)

// Email is the locally cached representation of a remote message. Read flag,
// folder and tags may diverge from the remote copy while a pending operation
// exists; convergence is restored by queue drainage or a fresh fetch.
type Email struct {
	ID        string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string             `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`
	Provider  enum.EmailProvider `gorm:"column:provider;type:varchar(50);index;not null" json:"provider"`
	RemoteID  string             `gorm:"column:remote_id;type:varchar(255);index:idx_emails_account_remote,unique;not null" json:"remoteId"`
	ThreadID  string             `gorm:"column:thread_id;type:varchar(255);index" json:"threadId"`
	MessageID string             `gorm:"column:message_id;type:varchar(255);index" json:"messageId"`
	Folder    enum.EmailFolder   `gorm:"column:folder;type:varchar(50);index;not null" json:"folder"`

	// Core email metadata
	Subject     string         `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	FromAddress string         `gorm:"column:from_address;type:varchar(255);index" json:"fromAddress"`
	FromName    string         `gorm:"column:from_name;type:varchar(255)" json:"fromName"`
	ToAddresses pq.StringArray `gorm:"column:to_addresses;type:text[]" json:"toAddresses"`

	// Time information
	SentAt     *time.Time `gorm:"column:sent_at;type:timestamp;index" json:"sentAt"`
	IngestedAt time.Time  `gorm:"column:ingested_at;type:timestamp;index" json:"ingestedAt"`

	// Content
	Snippet  string `gorm:"column:snippet;type:text" json:"snippet"`
	BodyText string `gorm:"column:body_text;type:text" json:"-"`

	// Local mutable state
	IsRead bool           `gorm:"column:is_read;default:false" json:"isRead"`
	Tags   pq.StringArray `gorm:"column:tags;type:text[]" json:"tags"`

	// Classification
	Classified     bool     `gorm:"column:classified;default:false" json:"classified"`
	TagConfidence  *float64 `gorm:"column:tag_confidence" json:"tagConfidence"`
	TagSource      string   `gorm:"column:tag_source;type:varchar(50)" json:"tagSource"`
	ManuallyTagged bool     `gorm:"column:manually_tagged;default:false" json:"manuallyTagged"`

	// Raw data
	RawHeaders JSONMap `gorm:"column:raw_headers;type:jsonb" json:"-"`

	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIdWithPrefix("email", 24)
	}
	if e.IngestedAt.IsZero() {
		e.IngestedAt = utils.Now()
	}
	return nil
}

// HasTag reports whether the email currently carries tag.
func (e *Email) HasTag(tag enum.EmailTag) bool {
	return utils.IsStringInSlice(tag.String(), e.Tags)
}

// HasTerminalTag reports whether tag state was fixed by a user or by the
// header pre-filter, in which case the classification gate must skip it.
func (e *Email) HasTerminalTag() bool {
	return e.ManuallyTagged || e.HasTag(enum.TagSystem)
}

// HeaderValue returns the first value of a raw header, or empty.
func (e *Email) HeaderValue(key string) string {
	if e.RawHeaders == nil {
		return ""
	}
	if values, ok := e.RawHeaders[key].([]string); ok && len(values) > 0 {
		return values[0]
	}
	if values, ok := e.RawHeaders[key].([]interface{}); ok && len(values) > 0 {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	if value, ok := e.RawHeaders[key].(string); ok {
		return value
	}
	return ""
}

// HeaderExists reports whether a raw header is present at all.
func (e *Email) HeaderExists(key string) bool {
	if e.RawHeaders == nil {
		return false
	}
	_, exists := e.RawHeaders[key]
	return exists
}
