package opqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

func makeOps(emailID string, kinds ...enum.OperationKind) []*models.PendingOperation {
	ops := make([]*models.PendingOperation, 0, len(kinds))
	for i, kind := range kinds {
		ops = append(ops, &models.PendingOperation{
			ID:      emailID + "_" + string(rune('a'+i)),
			EmailID: emailID,
			Kind:    kind,
		})
	}
	return ops
}

func kinds(ops []*models.PendingOperation) []enum.OperationKind {
	out := make([]enum.OperationKind, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.Kind)
	}
	return out
}

func TestReduceOperations_OppositePair(t *testing.T) {
	survivors, cancelled := reduceOperations(makeOps("e1", enum.OperationMarkRead, enum.OperationMarkUnread))
	assert.Empty(t, survivors)
	assert.Len(t, cancelled, 2)
}

func TestReduceOperations_TriplesLeaveOne(t *testing.T) {
	survivors, cancelled := reduceOperations(makeOps("e1",
		enum.OperationMarkRead, enum.OperationMarkUnread, enum.OperationMarkRead))
	assert.Equal(t, []enum.OperationKind{enum.OperationMarkRead}, kinds(survivors))
	assert.Len(t, cancelled, 2)
}

func TestReduceOperations_NonAdjacentKindsDoNotCancel(t *testing.T) {
	survivors, cancelled := reduceOperations(makeOps("e1",
		enum.OperationMarkRead, enum.OperationTrash, enum.OperationMarkUnread))
	assert.Len(t, survivors, 3)
	assert.Empty(t, cancelled)
}

func TestReduceOperations_TrashRestorePair(t *testing.T) {
	survivors, cancelled := reduceOperations(makeOps("e1",
		enum.OperationTrash, enum.OperationRestore))
	assert.Empty(t, survivors)
	assert.Len(t, cancelled, 2)
}

func TestReduceOperations_DeleteDominatesLaterOps(t *testing.T) {
	survivors, cancelled := reduceOperations(makeOps("e1",
		enum.OperationDelete, enum.OperationMarkRead, enum.OperationRestore))
	assert.Equal(t, []enum.OperationKind{enum.OperationDelete}, kinds(survivors))
	assert.Len(t, cancelled, 2)
}

func TestReduceOperations_DeleteNeverCancelledByRestore(t *testing.T) {
	survivors, _ := reduceOperations(makeOps("e1",
		enum.OperationPermanentDelete, enum.OperationRestore))
	assert.Equal(t, []enum.OperationKind{enum.OperationPermanentDelete}, kinds(survivors))
}

func TestReduceOperations_IndependentEmails(t *testing.T) {
	ops := append(makeOps("e1", enum.OperationMarkRead),
		makeOps("e2", enum.OperationMarkUnread)...)
	survivors, cancelled := reduceOperations(ops)
	assert.Len(t, survivors, 2)
	assert.Empty(t, cancelled)
}

func TestReduceOperations_Empty(t *testing.T) {
	survivors, cancelled := reduceOperations(nil)
	assert.Empty(t, survivors)
	assert.Empty(t, cancelled)
}
