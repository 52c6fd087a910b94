package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	SetSyncStatus(ctx context.Context, accountID string, status enum.SyncStatus, lastError string) error
	MarkSynced(ctx context.Context, accountID string) error
	Delete(ctx context.Context, accountID string) error
}
