package opqueue

import (
	"github.com/customeros/mailsync/internal/models"
)

// reduceOperations folds the pending queue left to right and cancels
// adjacent opposite pairs per message (mark_read/mark_unread,
// trash/restore). A delete kind is never cancelable; every operation
// queued after it for the same message collapses to a no-op.
//
// Survivors keep their original creation order. Cancelled operations are
// returned separately so the caller can complete them without any
// provider call.
func reduceOperations(ops []*models.PendingOperation) (survivors, cancelled []*models.PendingOperation) {
	cancelledIDs := make(map[string]bool)
	stacks := make(map[string][]*models.PendingOperation)
	deleted := make(map[string]bool)

	for _, op := range ops {
		if deleted[op.EmailID] {
			cancelledIDs[op.ID] = true
			continue
		}

		stack := stacks[op.EmailID]
		if len(stack) > 0 {
			last := stack[len(stack)-1]
			if opposite := last.Kind.Opposite(); opposite != "" && op.Kind == opposite {
				cancelledIDs[last.ID] = true
				cancelledIDs[op.ID] = true
				stacks[op.EmailID] = stack[:len(stack)-1]
				continue
			}
		}

		stacks[op.EmailID] = append(stack, op)
		if op.Kind.IsDeleteKind() {
			deleted[op.EmailID] = true
		}
	}

	for _, op := range ops {
		if cancelledIDs[op.ID] {
			cancelled = append(cancelled, op)
		} else {
			survivors = append(survivors, op)
		}
	}
	return survivors, cancelled
}
