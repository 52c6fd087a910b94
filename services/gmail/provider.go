package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	syncerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

const (
	labelUnread = "UNREAD"
	labelInbox  = "INBOX"
	labelTrash  = "TRASH"
	labelSent   = "SENT"

	backfillPageSize = 100
	requestTimeout   = 60 * time.Second
)

type gmailProvider struct {
	oauthConfig *config.GoogleOAuthConfig
	log         logger.Logger
}

func NewGmailProvider(oauthConfig *config.GoogleOAuthConfig, log logger.Logger) interfaces.MailProvider {
	return &gmailProvider{
		oauthConfig: oauthConfig,
		log:         log,
	}
}

func (p *gmailProvider) Provider() enum.EmailProvider {
	return enum.ProviderGmail
}

// service builds an authenticated Gmail client for the account. Token
// refresh is handled by the oauth2 token source.
func (p *gmailProvider) service(ctx context.Context, account *models.Account) (*gmailapi.Service, error) {
	token := &oauth2.Token{
		AccessToken:  account.OAuthAccessToken,
		RefreshToken: account.OAuthRefreshToken,
	}
	if account.OAuthTokenExpiry != nil {
		token.Expiry = *account.OAuthTokenExpiry
	}

	oauthCfg := &oauth2.Config{
		ClientID:     p.oauthConfig.ClientID,
		ClientSecret: p.oauthConfig.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{gmailapi.GmailModifyScope},
	}

	httpClient := oauthCfg.Client(ctx, token)

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, syncerrors.Transient(err, "failed to create gmail service")
	}
	return svc, nil
}

func (p *gmailProvider) FetchChanges(ctx context.Context, account *models.Account, cursor string) (*interfaces.RemoteDelta, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailProvider.FetchChanges")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, account.ID)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	svc, err := p.service(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if cursor == "" {
		return p.backfill(ctx, svc)
	}

	delta, err := p.incremental(ctx, svc, cursor)
	if err != nil {
		if syncerrors.IsNotFound(err) {
			// History id expired on the Gmail side; start over from a
			// fresh backfill rather than failing the account.
			p.log.Warnf("Gmail history expired for account %s, falling back to backfill", account.ID)
			return p.backfill(ctx, svc)
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return delta, nil
}

func (p *gmailProvider) backfill(ctx context.Context, svc *gmailapi.Service) (*interfaces.RemoteDelta, error) {
	delta := &interfaces.RemoteDelta{}

	call := svc.Users.Messages.List("me").IncludeSpamTrash(false).MaxResults(backfillPageSize)
	err := call.Pages(ctx, func(page *gmailapi.ListMessagesResponse) error {
		for _, m := range page.Messages {
			full, err := svc.Users.Messages.Get("me", m.Id).Format("full").Context(ctx).Do()
			if err != nil {
				return err
			}
			delta.Messages = append(delta.Messages, normalize(full))
		}
		return nil
	})
	if err != nil {
		return nil, mapGoogleError(err, "gmail backfill failed")
	}

	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError(err, "gmail profile fetch failed")
	}
	delta.NewCursor = strconv.FormatUint(profile.HistoryId, 10)

	return delta, nil
}

func (p *gmailProvider) incremental(ctx context.Context, svc *gmailapi.Service, cursor string) (*interfaces.RemoteDelta, error) {
	startHistoryID, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid gmail cursor %q: %w", cursor, err)
	}

	delta := &interfaces.RemoteDelta{}
	latestHistoryID := startHistoryID
	seen := make(map[string]bool)
	deleted := make(map[string]bool)

	fetch := func(msgID string) error {
		if seen[msgID] || deleted[msgID] {
			return nil
		}
		seen[msgID] = true

		full, err := svc.Users.Messages.Get("me", msgID).Format("full").Context(ctx).Do()
		if err != nil {
			if isStatus(err, 404) {
				// Message was deleted before we could fetch it.
				return nil
			}
			return err
		}
		delta.Messages = append(delta.Messages, normalize(full))
		return nil
	}

	call := svc.Users.History.List("me").StartHistoryId(startHistoryID).MaxResults(backfillPageSize)
	err = call.Pages(ctx, func(page *gmailapi.ListHistoryResponse) error {
		for _, history := range page.History {
			if history.Id > latestHistoryID {
				latestHistoryID = history.Id
			}
			for _, record := range history.MessagesAdded {
				if err := fetch(record.Message.Id); err != nil {
					return err
				}
			}
			// Label flips made from another client (read, trash, restore)
			// refetch the message so the merge can reconcile flag and
			// folder state on already-known messages.
			for _, record := range history.LabelsAdded {
				if err := fetch(record.Message.Id); err != nil {
					return err
				}
			}
			for _, record := range history.LabelsRemoved {
				if err := fetch(record.Message.Id); err != nil {
					return err
				}
			}
			for _, record := range history.MessagesDeleted {
				deleted[record.Message.Id] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapGoogleError(err, "gmail history sync failed")
	}

	for msgID := range deleted {
		delta.Deleted = append(delta.Deleted, msgID)
	}
	delta.NewCursor = strconv.FormatUint(latestHistoryID, 10)
	return delta, nil
}

// ApplyMutation always returns an empty remote id: Gmail message ids are
// stable across label moves.
func (p *gmailProvider) ApplyMutation(ctx context.Context, account *models.Account, remoteID string, kind enum.OperationKind) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailProvider.ApplyMutation")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("operation.kind", kind.String())

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	svc, err := p.service(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	switch kind {
	case enum.OperationMarkRead:
		err = p.modifyLabels(ctx, svc, remoteID, nil, []string{labelUnread})
	case enum.OperationMarkUnread:
		err = p.modifyLabels(ctx, svc, remoteID, []string{labelUnread}, nil)
	case enum.OperationTrash:
		err = p.modifyLabels(ctx, svc, remoteID, []string{labelTrash}, []string{labelInbox})
	case enum.OperationRestore:
		err = p.modifyLabels(ctx, svc, remoteID, []string{labelInbox}, []string{labelTrash})
	case enum.OperationDelete, enum.OperationPermanentDelete:
		// Irreversible remove call; not undoable through the label API.
		err = mapGoogleError(svc.Users.Messages.Delete("me", remoteID).Context(ctx).Do(), "gmail delete failed")
	default:
		err = syncerrors.ErrUnknownMutation
	}

	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return "", nil
}

func (p *gmailProvider) modifyLabels(ctx context.Context, svc *gmailapi.Service, remoteID string, add, remove []string) error {
	req := &gmailapi.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}
	_, err := svc.Users.Messages.Modify("me", remoteID, req).Context(ctx).Do()
	return mapGoogleError(err, "gmail modify failed")
}

// normalize converts a Gmail message into the provider-agnostic shape.
func normalize(m *gmailapi.Message) interfaces.RemoteMessage {
	headers := make(map[string]interface{})
	var subject, from, messageID string
	var to []string
	var sentAt *time.Time

	if m.Payload != nil {
		for _, kv := range m.Payload.Headers {
			headers[kv.Name] = kv.Value
			switch kv.Name {
			case "Subject":
				subject = kv.Value
			case "From":
				from = kv.Value
			case "To":
				to = append(to, kv.Value)
			case "Message-ID", "Message-Id":
				messageID = utils.NormalizeMessageID(kv.Value)
			case "Date":
				if t, err := mail.ParseDate(kv.Value); err == nil {
					utc := t.UTC()
					sentAt = &utc
				}
			}
		}
	}

	fromName, fromAddress := splitAddress(from)

	return interfaces.RemoteMessage{
		RemoteID:    m.Id,
		ThreadID:    m.ThreadId,
		MessageID:   messageID,
		Folder:      folderFromLabels(m.LabelIds),
		Subject:     subject,
		FromAddress: fromAddress,
		FromName:    fromName,
		To:          to,
		Snippet:     m.Snippet,
		BodyText:    extractPlainText(m.Payload),
		IsRead:      !utils.IsStringInSlice(labelUnread, m.LabelIds),
		SentAt:      sentAt,
		Headers:     headers,
	}
}

func folderFromLabels(labels []string) enum.EmailFolder {
	switch {
	case utils.IsStringInSlice(labelTrash, labels):
		return enum.FolderTrash
	case utils.IsStringInSlice(labelSent, labels):
		return enum.FolderSent
	default:
		return enum.FolderInbox
	}
}

func splitAddress(header string) (name, address string) {
	if header == "" {
		return "", ""
	}
	parsed, err := mail.ParseAddress(header)
	if err != nil {
		return "", header
	}
	return parsed.Name, parsed.Address
}

func extractPlainText(part *gmailapi.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, child := range part.Parts {
		if text := extractPlainText(child); text != "" {
			return text
		}
	}
	return ""
}

// mapGoogleError translates Gmail API failures into the shared taxonomy.
func mapGoogleError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return syncerrors.AuthFailed(err, msg)
		case apiErr.Code == 404:
			return syncerrors.NotFound(msg)
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return syncerrors.Transient(err, msg)
		}
		return syncerrors.Transient(err, msg)
	}
	// Anything that is not an API status is a network-level failure.
	return syncerrors.Transient(err, msg)
}

func isStatus(err error, code int) bool {
	apiErr, ok := err.(*googleapi.Error)
	return ok && apiErr.Code == code
}
