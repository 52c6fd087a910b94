package enum

type SyncStatus string

const (
	SyncStatusActive   SyncStatus = "active"
	SyncStatusDegraded SyncStatus = "degraded"
	SyncStatusDisabled SyncStatus = "disabled"
)

func (t SyncStatus) String() string {
	return string(t)
}
