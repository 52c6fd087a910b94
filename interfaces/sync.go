package interfaces

import (
	"context"
	"time"
)

type SyncService interface {
	Start(ctx context.Context) error
	Stop() error
	// TriggerSync requests an on-demand cycle for one account. It is
	// fire-and-forget: if a cycle for the account is already in flight the
	// trigger coalesces into a no-op.
	TriggerSync(accountID string)
	// SyncAll runs one cycle for every syncable account; cycles for
	// different accounts run concurrently.
	SyncAll(ctx context.Context)
	Status() map[string]AccountSyncStatus
}

type AccountSyncStatus struct {
	InFlight    bool
	LastCycleAt time.Time
	LastError   string
}
