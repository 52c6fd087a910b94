package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type NotifierService interface {
	// Dispatch selects notifiable messages from the newly ingested batch,
	// caps the per-cycle volume and hands payloads to the push relay.
	// Delivery failures are per-subscription and never abort the batch.
	Dispatch(ctx context.Context, account *models.Account, newlyIngested []*models.Email)
}
