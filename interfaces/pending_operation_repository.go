package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

type PendingOperationRepository interface {
	// EnqueueWithEmail inserts the operation and persists the optimistic
	// local email mutation in a single transaction, so the UI-visible state
	// and the queue can never diverge.
	EnqueueWithEmail(ctx context.Context, op *models.PendingOperation, email *models.Email) error
	// EnqueueBatchWithEmails is the bulk form used by empty-trash.
	EnqueueBatchWithEmails(ctx context.Context, ops []*models.PendingOperation, emails []*models.Email) error
	GetByID(ctx context.Context, id string) (*models.PendingOperation, error)
	// ListPendingByAccount returns pending operations in creation order,
	// which defines drain processing order.
	ListPendingByAccount(ctx context.Context, accountID string) ([]*models.PendingOperation, error)
	ListByAccount(ctx context.Context, accountID string, status enum.OperationStatus, limit int) ([]*models.PendingOperation, error)
	// PendingEmailIDs returns the set of email ids that still have a pending
	// operation; merge uses it to keep local intentions from being clobbered.
	PendingEmailIDs(ctx context.Context, accountID string) (map[string]bool, error)
	Update(ctx context.Context, op *models.PendingOperation) error
}
