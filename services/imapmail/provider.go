package imapmail

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	syncerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

const (
	mailboxInbox = "INBOX"
	mailboxTrash = "Trash"

	fetchBatchSize = 50
)

type imapProvider struct {
	log logger.Logger
}

func NewIMAPProvider(log logger.Logger) interfaces.MailProvider {
	return &imapProvider{
		log: log,
	}
}

func (p *imapProvider) Provider() enum.EmailProvider {
	return enum.ProviderIMAP
}

// The IMAP cursor is a JSON folder-to-UID map; the remote id of a message
// is "<folder>:<uid>" since UIDs are only unique per folder.

func decodeCursor(cursor string) map[string]uint32 {
	result := make(map[string]uint32)
	if cursor == "" {
		return result
	}
	if err := json.Unmarshal([]byte(cursor), &result); err != nil {
		return make(map[string]uint32)
	}
	return result
}

func encodeCursor(uids map[string]uint32) string {
	data, err := json.Marshal(uids)
	if err != nil {
		return ""
	}
	return string(data)
}

func EncodeRemoteID(folder string, uid uint32) string {
	return fmt.Sprintf("%s:%d", folder, uid)
}

func DecodeRemoteID(remoteID string) (folder string, uid uint32, err error) {
	idx := strings.LastIndex(remoteID, ":")
	if idx < 1 || idx == len(remoteID)-1 {
		return "", 0, fmt.Errorf("malformed imap remote id %q", remoteID)
	}
	parsed, err := strconv.ParseUint(remoteID[idx+1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed imap remote id %q: %w", remoteID, err)
	}
	return remoteID[:idx], uint32(parsed), nil
}

func (p *imapProvider) folders(account *models.Account) []string {
	if len(account.ImapFolders) > 0 {
		return account.ImapFolders
	}
	return []string{mailboxInbox}
}

func (p *imapProvider) FetchChanges(ctx context.Context, account *models.Account, cursor string) (*interfaces.RemoteDelta, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapProvider.FetchChanges")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, account.ID)

	c, err := p.connect(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer c.Logout()

	cursorMap := decodeCursor(cursor)
	delta := &interfaces.RemoteDelta{}

	for _, folderName := range p.folders(account) {
		if ctx.Err() != nil {
			return nil, syncerrors.Transient(ctx.Err(), "fetch cancelled")
		}

		lastUID := cursorMap[folderName]
		messages, highestUID, err := p.fetchFolder(ctx, c, folderName, lastUID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}

		delta.Messages = append(delta.Messages, messages...)
		if highestUID > lastUID {
			cursorMap[folderName] = highestUID
		}
	}

	delta.NewCursor = encodeCursor(cursorMap)
	return delta, nil
}

func (p *imapProvider) fetchFolder(ctx context.Context, c *client.Client, folderName string, lastUID uint32) ([]interfaces.RemoteMessage, uint32, error) {
	_, err := c.Select(folderName, false)
	if err != nil {
		return nil, 0, mapIMAPError(err, fmt.Sprintf("error selecting folder %s", folderName))
	}

	criteria := imap.NewSearchCriteria()
	seq := new(imap.SeqSet)
	seq.AddRange(lastUID+1, 0)
	criteria.Uid = seq

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, 0, mapIMAPError(err, fmt.Sprintf("error searching folder %s", folderName))
	}

	// Servers echo back the highest existing UID when the range start is
	// past the end of the mailbox; drop anything already synced.
	fresh := uids[:0]
	for _, uid := range uids {
		if uid > lastUID {
			fresh = append(fresh, uid)
		}
	}
	if len(fresh) == 0 {
		return nil, lastUID, nil
	}

	var messages []interfaces.RemoteMessage
	highestUID := lastUID

	for i := 0; i < len(fresh); i += fetchBatchSize {
		end := i + fetchBatchSize
		if end > len(fresh) {
			end = len(fresh)
		}

		seqSet := new(imap.SeqSet)
		for _, uid := range fresh[i:end] {
			seqSet.AddNum(uid)
		}

		section := &imap.BodySectionName{Peek: true}
		items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, section.FetchItem()}

		ch := make(chan *imap.Message, fetchBatchSize)
		done := make(chan error, 1)
		go func() {
			done <- c.UidFetch(seqSet, items, ch)
		}()

		for msg := range ch {
			remote := p.normalize(folderName, msg, section)
			messages = append(messages, remote)
			if msg.Uid > highestUID {
				highestUID = msg.Uid
			}
		}

		if err := <-done; err != nil {
			return nil, 0, mapIMAPError(err, fmt.Sprintf("error fetching from folder %s", folderName))
		}

		if ctx.Err() != nil {
			return nil, 0, syncerrors.Transient(ctx.Err(), "fetch cancelled")
		}
	}

	return messages, highestUID, nil
}

func (p *imapProvider) normalize(folderName string, msg *imap.Message, section *imap.BodySectionName) interfaces.RemoteMessage {
	remote := interfaces.RemoteMessage{
		RemoteID: EncodeRemoteID(folderName, msg.Uid),
		Folder:   localFolder(folderName),
		IsRead:   hasFlag(msg.Flags, imap.SeenFlag),
	}

	if msg.Envelope != nil {
		remote.Subject = msg.Envelope.Subject
		remote.MessageID = utils.NormalizeMessageID(msg.Envelope.MessageId)
		remote.ThreadID = utils.NormalizeMessageID(msg.Envelope.InReplyTo)
		if !msg.Envelope.Date.IsZero() {
			utc := msg.Envelope.Date.UTC()
			remote.SentAt = &utc
		}
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			remote.FromName = from.PersonalName
			remote.FromAddress = from.Address()
		}
		for _, to := range msg.Envelope.To {
			remote.To = append(remote.To, to.Address())
		}
	}

	if body := msg.GetBody(section); body != nil {
		envelope, err := enmime.ReadEnvelope(body)
		if err == nil {
			remote.BodyText = envelope.Text
			remote.Snippet = utils.TruncateString(strings.TrimSpace(envelope.Text), 200)

			headers := make(map[string]interface{})
			for _, key := range envelope.GetHeaderKeys() {
				headers[key] = envelope.GetHeader(key)
			}
			remote.Headers = headers
		} else {
			p.log.Debugf("Failed to parse message body for %s: %v", remote.RemoteID, err)
		}
	}

	return remote
}

// ApplyMutation returns the message's remote id after the mutation. Moves
// re-home the message under a fresh UID in the destination mailbox, so
// trash and restore resolve and return the copy's id; flag stores and
// expunges leave the id alone and return empty.
func (p *imapProvider) ApplyMutation(ctx context.Context, account *models.Account, remoteID string, kind enum.OperationKind) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapProvider.ApplyMutation")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("operation.kind", kind.String())

	folderName, uid, err := DecodeRemoteID(remoteID)
	if err != nil {
		return "", err
	}

	c, err := p.connect(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	defer c.Logout()

	if _, err := c.Select(folderName, false); err != nil {
		err = mapIMAPError(err, fmt.Sprintf("error selecting folder %s", folderName))
		tracing.TraceErr(span, err)
		return "", err
	}

	exists, err := p.messageExists(c, uid)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	if !exists {
		return "", syncerrors.NotFound(fmt.Sprintf("message %s absent remotely", remoteID))
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	newRemoteID := ""
	switch kind {
	case enum.OperationMarkRead:
		err = p.storeFlags(c, seqSet, imap.AddFlags, imap.SeenFlag)
	case enum.OperationMarkUnread:
		err = p.storeFlags(c, seqSet, imap.RemoveFlags, imap.SeenFlag)
	case enum.OperationTrash:
		newRemoteID, err = p.moveMessage(c, uid, mailboxTrash)
	case enum.OperationRestore:
		newRemoteID, err = p.moveMessage(c, uid, mailboxInbox)
	case enum.OperationDelete, enum.OperationPermanentDelete:
		err = p.expungeMessage(c, seqSet)
	default:
		err = syncerrors.ErrUnknownMutation
	}

	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return newRemoteID, nil
}

func (p *imapProvider) messageExists(c *client.Client, uid uint32) (bool, error) {
	criteria := imap.NewSearchCriteria()
	seq := new(imap.SeqSet)
	seq.AddNum(uid)
	criteria.Uid = seq

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return false, mapIMAPError(err, "error searching for message")
	}
	return len(uids) > 0, nil
}

func (p *imapProvider) storeFlags(c *client.Client, seqSet *imap.SeqSet, op imap.FlagsOp, flag string) error {
	item := imap.FormatFlagsOp(op, true)
	if err := c.UidStore(seqSet, item, []interface{}{flag}, nil); err != nil {
		return mapIMAPError(err, "error storing flags")
	}
	return nil
}

// moveMessage is copy-then-expunge since plain IMAP has no atomic move.
// The copy gets a fresh UID in the destination, so the message's envelope
// Message-ID is captured first and used to locate the copy afterwards.
// The resolved id of the copy is returned, or empty when it could not be
// found (the next fetch pass will pick it up under its new UID).
func (p *imapProvider) moveMessage(c *client.Client, uid uint32, dest string) (string, error) {
	messageID := p.fetchMessageID(c, uid)

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	if err := c.UidCopy(seqSet, dest); err != nil {
		return "", mapIMAPError(err, fmt.Sprintf("error copying to %s", dest))
	}
	if err := p.expungeMessage(c, seqSet); err != nil {
		return "", err
	}

	if messageID == "" {
		return "", nil
	}
	newUID, err := p.findByMessageID(c, dest, messageID)
	if err != nil || newUID == 0 {
		p.log.Debugf("Could not locate moved message %q in %s: %v", messageID, dest, err)
		return "", nil
	}
	return EncodeRemoteID(dest, newUID), nil
}

// fetchMessageID reads the envelope Message-ID of one message in the
// currently selected mailbox. Best effort; returns empty on any failure.
func (p *imapProvider) fetchMessageID(c *client.Client, uid uint32) string {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	ch := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, ch)
	}()

	messageID := ""
	for msg := range ch {
		if msg.Envelope != nil {
			messageID = msg.Envelope.MessageId
		}
	}
	if err := <-done; err != nil {
		return ""
	}
	return messageID
}

// findByMessageID searches a mailbox for a message by its Message-ID
// header and returns the highest matching UID, or zero when absent.
func (p *imapProvider) findByMessageID(c *client.Client, mailbox, messageID string) (uint32, error) {
	if _, err := c.Select(mailbox, false); err != nil {
		return 0, mapIMAPError(err, fmt.Sprintf("error selecting folder %s", mailbox))
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Set("Message-Id", messageID)

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return 0, mapIMAPError(err, "error searching by message id")
	}
	var highest uint32
	for _, uid := range uids {
		if uid > highest {
			highest = uid
		}
	}
	return highest, nil
}

func (p *imapProvider) expungeMessage(c *client.Client, seqSet *imap.SeqSet) error {
	if err := p.storeFlags(c, seqSet, imap.AddFlags, imap.DeletedFlag); err != nil {
		return err
	}
	if err := c.Expunge(nil); err != nil {
		return mapIMAPError(err, "error expunging")
	}
	return nil
}

func localFolder(folderName string) enum.EmailFolder {
	lower := strings.ToLower(folderName)
	switch {
	case strings.Contains(lower, "trash") || strings.Contains(lower, "deleted"):
		return enum.FolderTrash
	case strings.Contains(lower, "sent"):
		return enum.FolderSent
	default:
		return enum.FolderInbox
	}
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

func mapIMAPError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if isConnectionError(err) {
		return syncerrors.Transient(err, msg)
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "authentication") || strings.Contains(lower, "login") {
		return syncerrors.AuthFailed(err, msg)
	}
	return syncerrors.Transient(err, msg)
}
