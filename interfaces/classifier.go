package interfaces

import (
	"golang.org/x/net/context"

	"github.com/customeros/mailsync/internal/models"
)

type ClassifierService interface {
	// ClassifyEmail tags a newly ingested email. A timeout or malformed
	// inference response leaves the email untagged and eligible for retry
	// on a later cycle; it is never a cycle-level failure.
	ClassifyEmail(ctx context.Context, email *models.Email) error
	// SuggestReplies returns 3-4 short reply drafts. Any failure yields an
	// empty slice; callers degrade to showing no suggestions.
	SuggestReplies(ctx context.Context, email *models.Email) []string
}
