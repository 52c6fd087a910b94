package events

import (
	"context"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
)

type noopPublisher struct{}

// NewNoopPublisher stands in when no broker is configured; ingestion
// events are simply dropped.
func NewNoopPublisher() interfaces.EventPublisher {
	return &noopPublisher{}
}

func (p *noopPublisher) PublishEmailIngested(ctx context.Context, event dto.EmailIngested) error {
	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}
