package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

func TestPrefilterTag_AutoSubmitted(t *testing.T) {
	email := &models.Email{RawHeaders: models.JSONMap{"Auto-Submitted": "auto-replied"}}
	tag, _, matched := prefilterTag(email)
	assert.True(t, matched)
	assert.Equal(t, enum.TagSystem, tag)
}

func TestPrefilterTag_AutoSubmittedNoIsNotAnAutoresponder(t *testing.T) {
	email := &models.Email{RawHeaders: models.JSONMap{"Auto-Submitted": "no"}}
	_, _, matched := prefilterTag(email)
	assert.False(t, matched)
}

func TestPrefilterTag_FailedRecipients(t *testing.T) {
	email := &models.Email{RawHeaders: models.JSONMap{"X-Failed-Recipients": "gone@example.com"}}
	tag, reason, matched := prefilterTag(email)
	assert.True(t, matched)
	assert.Equal(t, enum.TagSystem, tag)
	assert.Contains(t, reason, "X-FAILED-RECIPIENTS")
}

func TestPrefilterTag_ListUnsubscribe(t *testing.T) {
	email := &models.Email{RawHeaders: models.JSONMap{"List-Unsubscribe": "<mailto:unsub@example.com>"}}
	tag, _, matched := prefilterTag(email)
	assert.True(t, matched)
	assert.Equal(t, enum.TagNewsletter, tag)
}

func TestPrefilterTag_PrecedenceBulk(t *testing.T) {
	email := &models.Email{RawHeaders: models.JSONMap{"Precedence": "Bulk"}}
	tag, _, matched := prefilterTag(email)
	assert.True(t, matched)
	assert.Equal(t, enum.TagNewsletter, tag)
}

func TestPrefilterTag_BounceSubject(t *testing.T) {
	email := &models.Email{Subject: "Undeliverable: your message to ops@example.com"}
	tag, _, matched := prefilterTag(email)
	assert.True(t, matched)
	assert.Equal(t, enum.TagSystem, tag)
}

func TestPrefilterTag_PlainEmailPasses(t *testing.T) {
	email := &models.Email{
		Subject:     "Lunch on Thursday?",
		FromAddress: "sam@example.com",
		RawHeaders:  models.JSONMap{"Message-Id": "<abc@example.com>"},
	}
	_, _, matched := prefilterTag(email)
	assert.False(t, matched)
}
