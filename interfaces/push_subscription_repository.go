package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type PushSubscriptionRepository interface {
	Create(ctx context.Context, sub *models.PushSubscription) error
	ListByAccount(ctx context.Context, accountID string) ([]*models.PushSubscription, error)
	Delete(ctx context.Context, id string) error
}
