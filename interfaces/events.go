package interfaces

import (
	"context"

	"github.com/customeros/mailsync/dto"
)

type EventPublisher interface {
	PublishEmailIngested(ctx context.Context, event dto.EmailIngested) error
	Close() error
}
