package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type SyncCursorRepository interface {
	Get(ctx context.Context, accountID string) (*models.SyncCursor, error)
	Save(ctx context.Context, accountID, cursor string) error
	Delete(ctx context.Context, accountID string) error
}
