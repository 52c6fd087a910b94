package enum

type OperationKind string

const (
	OperationMarkRead        OperationKind = "mark_read"
	OperationMarkUnread      OperationKind = "mark_unread"
	OperationTrash           OperationKind = "trash"
	OperationRestore         OperationKind = "restore"
	OperationDelete          OperationKind = "delete"
	OperationPermanentDelete OperationKind = "permanent_delete"
)

func (t OperationKind) String() string {
	return string(t)
}

// IsDeleteKind reports whether the operation removes the message remotely.
// Delete kinds dominate dedup: nothing queued later can cancel them.
func (t OperationKind) IsDeleteKind() bool {
	return t == OperationDelete || t == OperationPermanentDelete
}

// Opposite returns the operation that cancels t when queued later for the
// same message before a drain, or empty if t is not cancelable.
func (t OperationKind) Opposite() OperationKind {
	switch t {
	case OperationMarkRead:
		return OperationMarkUnread
	case OperationMarkUnread:
		return OperationMarkRead
	case OperationTrash:
		return OperationRestore
	case OperationRestore:
		return OperationTrash
	default:
		return ""
	}
}

type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
)

func (t OperationStatus) String() string {
	return string(t)
}
