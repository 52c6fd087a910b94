package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

type EmailRepository interface {
	Create(ctx context.Context, email *models.Email) error
	GetByID(ctx context.Context, id string) (*models.Email, error)
	GetByRemoteID(ctx context.Context, accountID, remoteID string) (*models.Email, error)
	ListByFolder(ctx context.Context, accountID string, folder enum.EmailFolder, limit, offset int) ([]*models.Email, int64, error)
	ListTrashed(ctx context.Context, accountID string) ([]*models.Email, error)
	ListUnclassified(ctx context.Context, accountID string, limit int) ([]*models.Email, error)
	Update(ctx context.Context, email *models.Email) error
	SoftDelete(ctx context.Context, id string) error
}
