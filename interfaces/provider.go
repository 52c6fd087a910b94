package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

// RemoteMessage is the provider-normalized shape of a fetched message.
type RemoteMessage struct {
	RemoteID    string
	ThreadID    string
	MessageID   string
	Folder      enum.EmailFolder
	Subject     string
	FromAddress string
	FromName    string
	To          []string
	Snippet     string
	BodyText    string
	IsRead      bool
	SentAt      *time.Time
	Headers     map[string]interface{}
}

// RemoteDelta is the result of one fetch pass against a provider. Deleted
// lists remote ids the provider reports as removed since the cursor.
type RemoteDelta struct {
	Messages  []RemoteMessage
	Deleted   []string
	NewCursor string
}

// MailProvider is the uniform capability surface over a remote mailbox.
// Implementations never touch the local store; side effects are strictly
// remote. Errors carry the taxonomy from internal/errors: transient failures
// are safe to retry next cycle, auth failures pause the account, not-found
// means the remote object is already absent.
//
// ApplyMutation returns the message's remote id after the mutation. It is
// empty when the id did not change (or could not be resolved); a move on a
// UID-addressed mailbox assigns the copy a fresh id, and callers must
// re-point their reference to keep later mutations addressable.
type MailProvider interface {
	Provider() enum.EmailProvider
	FetchChanges(ctx context.Context, account *models.Account, cursor string) (*RemoteDelta, error)
	ApplyMutation(ctx context.Context, account *models.Account, remoteID string, kind enum.OperationKind) (string, error)
}
