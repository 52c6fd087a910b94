package syncer

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

// merge folds a fetched delta into the local store. Unknown messages are
// created; known ones have read flag and folder reconciled, except when a
// pending operation exists for the message, in which case the local
// intention wins until the queue drains. Remote deletions are applied
// last so a message both updated and deleted in the same window ends up
// deleted.
func (s *syncService) merge(ctx context.Context, account *models.Account, delta *interfaces.RemoteDelta) ([]*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.merge")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("delta.messages", len(delta.Messages))

	if len(delta.Messages) == 0 && len(delta.Deleted) == 0 {
		return nil, nil
	}

	pendingEmailIDs, err := s.repositories.PendingOperationRepository.PendingEmailIDs(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var newlyIngested []*models.Email
	for _, remote := range delta.Messages {
		existing, err := s.repositories.EmailRepository.GetByRemoteID(ctx, account.ID, remote.RemoteID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}

		if existing == nil {
			email := buildEmail(account, remote)
			if err := s.repositories.EmailRepository.Create(ctx, email); err != nil {
				tracing.TraceErr(span, err)
				return nil, err
			}
			newlyIngested = append(newlyIngested, email)
			continue
		}

		if pendingEmailIDs[existing.ID] {
			continue
		}

		if reconcile(existing, remote) {
			if err := s.repositories.EmailRepository.Update(ctx, existing); err != nil {
				tracing.TraceErr(span, err)
				return nil, err
			}
		}
	}

	for _, remoteID := range delta.Deleted {
		existing, err := s.repositories.EmailRepository.GetByRemoteID(ctx, account.ID, remoteID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if existing == nil || pendingEmailIDs[existing.ID] {
			continue
		}
		if err := s.repositories.EmailRepository.SoftDelete(ctx, existing.ID); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
	}

	span.SetTag("delta.ingested", len(newlyIngested))
	return newlyIngested, nil
}

// reconcile applies remote flag and folder state onto a cached email and
// reports whether anything changed.
func reconcile(email *models.Email, remote interfaces.RemoteMessage) bool {
	changed := false
	if email.IsRead != remote.IsRead {
		email.IsRead = remote.IsRead
		changed = true
	}
	if email.Folder != remote.Folder && email.Folder != enum.FolderDeleting {
		email.Folder = remote.Folder
		changed = true
	}
	return changed
}

func buildEmail(account *models.Account, remote interfaces.RemoteMessage) *models.Email {
	return &models.Email{
		AccountID:   account.ID,
		Provider:    account.Provider,
		RemoteID:    remote.RemoteID,
		ThreadID:    remote.ThreadID,
		MessageID:   remote.MessageID,
		Folder:      remote.Folder,
		Subject:     utils.NormalizeEmailSubject(remote.Subject),
		FromAddress: remote.FromAddress,
		FromName:    remote.FromName,
		ToAddresses: remote.To,
		SentAt:      remote.SentAt,
		Snippet:     remote.Snippet,
		BodyText:    remote.BodyText,
		IsRead:      remote.IsRead,
		RawHeaders:  remote.Headers,
	}
}
