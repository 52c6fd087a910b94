package opqueue

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	syncerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
)

type operationQueueService struct {
	log          logger.Logger
	repositories *repository.Repositories
}

func NewOperationQueueService(log logger.Logger, repositories *repository.Repositories) interfaces.OperationQueueService {
	return &operationQueueService{
		log:          log,
		repositories: repositories,
	}
}

func (s *operationQueueService) RequestMutation(ctx context.Context, emailID string, kind enum.OperationKind) (*models.PendingOperation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OperationQueueService.RequestMutation")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEmail(span, emailID)
	span.SetTag("operation.kind", kind.String())

	email, err := s.repositories.EmailRepository.GetByID(ctx, emailID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if email == nil {
		return nil, syncerrors.ErrEmailNotFound
	}

	if err := applyLocalMutation(email, kind); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	op := &models.PendingOperation{
		AccountID: email.AccountID,
		EmailID:   email.ID,
		RemoteID:  email.RemoteID,
		Kind:      kind,
	}

	if err := s.repositories.PendingOperationRepository.EnqueueWithEmail(ctx, op, email); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.log.Infof("Queued %s for email %s on account %s", kind, email.ID, email.AccountID)
	return op, nil
}

// applyLocalMutation mutates the cached email so the change is visible
// immediately, before the remote side has confirmed anything.
func applyLocalMutation(email *models.Email, kind enum.OperationKind) error {
	switch kind {
	case enum.OperationMarkRead:
		email.IsRead = true
	case enum.OperationMarkUnread:
		email.IsRead = false
	case enum.OperationTrash:
		email.Folder = enum.FolderTrash
	case enum.OperationRestore:
		email.Folder = enum.FolderInbox
	case enum.OperationDelete, enum.OperationPermanentDelete:
		email.Folder = enum.FolderDeleting
	default:
		return syncerrors.ErrUnknownMutation
	}
	return nil
}

func (s *operationQueueService) EmptyTrash(ctx context.Context, accountID string) (*dto.EmptyTrashResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OperationQueueService.EmptyTrash")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	trashed, err := s.repositories.EmailRepository.ListTrashed(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(trashed) == 0 {
		return &dto.EmptyTrashResult{}, nil
	}

	ops := make([]*models.PendingOperation, 0, len(trashed))
	for _, email := range trashed {
		email.Folder = enum.FolderDeleting
		ops = append(ops, &models.PendingOperation{
			AccountID: email.AccountID,
			EmailID:   email.ID,
			RemoteID:  email.RemoteID,
			Kind:      enum.OperationPermanentDelete,
		})
	}

	if err := s.repositories.PendingOperationRepository.EnqueueBatchWithEmails(ctx, ops, trashed); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.log.Infof("Emptied trash for account %s, queued %d deletions", accountID, len(ops))
	return &dto.EmptyTrashResult{
		Deleted: len(trashed),
		Queued:  len(ops),
	}, nil
}

func (s *operationQueueService) Drain(ctx context.Context, account *models.Account, provider interfaces.MailProvider) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OperationQueueService.Drain")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)

	pending, err := s.repositories.PendingOperationRepository.ListPendingByAccount(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	span.SetTag("operations.pending", len(pending))

	survivors, cancelled := reduceOperations(pending)
	for _, op := range cancelled {
		op.Status = enum.OperationStatusCompleted
		if err := s.repositories.PendingOperationRepository.Update(ctx, op); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}
	if len(cancelled) > 0 {
		s.log.Infof("Cancelled %d paired operations for account %s", len(cancelled), account.ID)
	}

	// Once a delete succeeds within this drain, anything still queued for
	// the same message is moot. A move within this drain re-homes the
	// message under a new remote id; later operations for the same email
	// must target it, not the id captured at enqueue time.
	deletedEmails := make(map[string]bool)
	movedRemoteIDs := make(map[string]string)

	for _, op := range survivors {
		if ctx.Err() != nil {
			return syncerrors.Transient(ctx.Err(), "drain cancelled")
		}

		if deletedEmails[op.EmailID] {
			op.Status = enum.OperationStatusCompleted
			if err := s.repositories.PendingOperationRepository.Update(ctx, op); err != nil {
				tracing.TraceErr(span, err)
				return err
			}
			continue
		}

		if err := s.executeOperation(ctx, account, provider, op, deletedEmails, movedRemoteIDs); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}
	return nil
}

// executeOperation makes a single attempt at op. Transient failures keep
// it pending until the attempts are exhausted; auth failures abort the
// drain so the whole account can be degraded.
func (s *operationQueueService) executeOperation(ctx context.Context, account *models.Account, provider interfaces.MailProvider, op *models.PendingOperation, deletedEmails map[string]bool, movedRemoteIDs map[string]string) error {
	remoteID := op.RemoteID
	if moved, ok := movedRemoteIDs[op.EmailID]; ok {
		remoteID = moved
	}

	newRemoteID, err := provider.ApplyMutation(ctx, account, remoteID, op.Kind)

	switch {
	case err == nil:
		if newRemoteID != "" && newRemoteID != remoteID {
			movedRemoteIDs[op.EmailID] = newRemoteID
			if err := s.repointEmail(ctx, op.EmailID, newRemoteID); err != nil {
				return err
			}
		}
		return s.completeOperation(ctx, op, deletedEmails)

	case syncerrors.IsNotFound(err):
		if op.Kind.IsDeleteKind() {
			// The message is already gone remotely; the intended end
			// state holds, so the operation completes as a no-op.
			s.log.Debugf("Operation %s: remote message %s gone, completing", op.ID, remoteID)
			return s.completeOperation(ctx, op, deletedEmails)
		}
		// For anything else a vanished target is a real divergence, and
		// retrying cannot resolve it. Surface it through queue status.
		op.Attempts++
		msg := err.Error()
		op.LastError = &msg
		op.Status = enum.OperationStatusFailed
		s.log.Warnf("Operation %s: remote message %s gone, cannot apply %s", op.ID, remoteID, op.Kind)
		return s.repositories.PendingOperationRepository.Update(ctx, op)

	case syncerrors.IsAuthFailed(err):
		// Leave the operation pending without burning an attempt; it
		// retries once the account credentials are fixed.
		return err

	default:
		op.Attempts++
		msg := err.Error()
		op.LastError = &msg
		if op.Attempts >= models.MaxOperationAttempts {
			op.Status = enum.OperationStatusFailed
			s.log.Warnf("Operation %s failed after %d attempts: %v", op.ID, op.Attempts, err)
		} else {
			s.log.Debugf("Operation %s attempt %d failed, will retry: %v", op.ID, op.Attempts, err)
		}
		return s.repositories.PendingOperationRepository.Update(ctx, op)
	}
}

// repointEmail persists a provider-assigned remote id change so future
// enqueues and fetch merges address the message at its new location.
func (s *operationQueueService) repointEmail(ctx context.Context, emailID, newRemoteID string) error {
	email, err := s.repositories.EmailRepository.GetByID(ctx, emailID)
	if err != nil {
		return err
	}
	if email == nil {
		return nil
	}
	email.RemoteID = newRemoteID
	return s.repositories.EmailRepository.Update(ctx, email)
}

func (s *operationQueueService) completeOperation(ctx context.Context, op *models.PendingOperation, deletedEmails map[string]bool) error {
	op.Attempts++
	op.Status = enum.OperationStatusCompleted
	op.LastError = nil
	if err := s.repositories.PendingOperationRepository.Update(ctx, op); err != nil {
		return err
	}

	if op.Kind.IsDeleteKind() {
		deletedEmails[op.EmailID] = true
		if err := s.repositories.EmailRepository.SoftDelete(ctx, op.EmailID); err != nil {
			return fmt.Errorf("error removing deleted email %s: %w", op.EmailID, err)
		}
	}
	return nil
}

func (s *operationQueueService) Status(ctx context.Context, accountID string, status enum.OperationStatus, limit int) ([]*models.PendingOperation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OperationQueueService.Status")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	ops, err := s.repositories.PendingOperationRepository.ListByAccount(ctx, accountID, status, limit)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return ops, nil
}
