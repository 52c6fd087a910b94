package interfaces

import (
	"context"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

type OperationQueueService interface {
	// RequestMutation applies the mutation to the local cache and enqueues
	// a pending operation in one transaction, returning immediately.
	RequestMutation(ctx context.Context, emailID string, kind enum.OperationKind) (*models.PendingOperation, error)
	// EmptyTrash locally deletes all trashed messages for the account and
	// queues one permanent_delete per message, without any remote call.
	EmptyTrash(ctx context.Context, accountID string) (*dto.EmptyTrashResult, error)
	// Drain processes eligible pending operations against the provider in
	// creation order, after dedup reduction.
	Drain(ctx context.Context, account *models.Account, provider MailProvider) error
	Status(ctx context.Context, accountID string, status enum.OperationStatus, limit int) ([]*models.PendingOperation, error)
}
