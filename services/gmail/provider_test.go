package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/customeros/mailsync/internal/enum"
	syncerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
)

func TestMapGoogleError(t *testing.T) {
	require.NoError(t, mapGoogleError(nil, "noop"))

	tests := []struct {
		name  string
		code  int
		check func(error) bool
	}{
		{"unauthorized", 401, syncerrors.IsAuthFailed},
		{"forbidden", 403, syncerrors.IsAuthFailed},
		{"not found", 404, syncerrors.IsNotFound},
		{"rate limited", 429, syncerrors.IsTransient},
		{"server error", 503, syncerrors.IsTransient},
		{"unexpected status", 400, syncerrors.IsTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapGoogleError(&googleapi.Error{Code: tt.code}, "call failed")
			require.True(t, tt.check(mapped))
		})
	}

	netErr := mapGoogleError(errors.New("connection reset by peer"), "call failed")
	require.True(t, syncerrors.IsTransient(netErr))
}

func TestFolderFromLabels(t *testing.T) {
	require.Equal(t, enum.FolderInbox, folderFromLabels([]string{"INBOX", "UNREAD"}))
	require.Equal(t, enum.FolderTrash, folderFromLabels([]string{"TRASH"}))
	require.Equal(t, enum.FolderSent, folderFromLabels([]string{"SENT"}))
	// Trash wins when a message somehow carries both labels.
	require.Equal(t, enum.FolderTrash, folderFromLabels([]string{"SENT", "TRASH"}))
	require.Equal(t, enum.FolderInbox, folderFromLabels(nil))
}

func TestSplitAddress(t *testing.T) {
	name, address := splitAddress(`"Jane Doe" <jane@acme.com>`)
	require.Equal(t, "Jane Doe", name)
	require.Equal(t, "jane@acme.com", address)

	name, address = splitAddress("jane@acme.com")
	require.Equal(t, "", name)
	require.Equal(t, "jane@acme.com", address)

	// Unparseable headers fall back to the raw value.
	name, address = splitAddress("not an address")
	require.Equal(t, "", name)
	require.Equal(t, "not an address", address)

	name, address = splitAddress("")
	require.Equal(t, "", name)
	require.Equal(t, "", address)
}

func TestExtractPlainText(t *testing.T) {
	encode := func(s string) string {
		return base64.URLEncoding.EncodeToString([]byte(s))
	}

	require.Equal(t, "", extractPlainText(nil))

	flat := &gmailapi.MessagePart{
		MimeType: "text/plain",
		Body:     &gmailapi.MessagePartBody{Data: encode("hello")},
	}
	require.Equal(t, "hello", extractPlainText(flat))

	// The plain part of a multipart/alternative message is nested.
	nested := &gmailapi.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmailapi.MessagePart{
			{
				MimeType: "text/html",
				Body:     &gmailapi.MessagePartBody{Data: encode("<p>hello</p>")},
			},
			{
				MimeType: "text/plain",
				Body:     &gmailapi.MessagePartBody{Data: encode("hello")},
			},
		},
	}
	require.Equal(t, "hello", extractPlainText(nested))

	htmlOnly := &gmailapi.MessagePart{
		MimeType: "text/html",
		Body:     &gmailapi.MessagePartBody{Data: encode("<p>hello</p>")},
	}
	require.Equal(t, "", extractPlainText(htmlOnly))
}

func TestIncremental_ConsumesLabelChangesAndDeletions(t *testing.T) {
	var fetched []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/history"):
			fmt.Fprint(w, `{"historyId":"210","history":[
				{"id":"201","messagesAdded":[{"message":{"id":"m_new"}}]},
				{"id":"205","labelsAdded":[{"message":{"id":"m_read"},"labelIds":["UNREAD"]}]},
				{"id":"208","labelsRemoved":[{"message":{"id":"m_moved"},"labelIds":["INBOX"]}]},
				{"id":"210","messagesDeleted":[{"message":{"id":"m_gone"}}]}
			]}`)
		case strings.Contains(r.URL.Path, "/messages/"):
			parts := strings.Split(r.URL.Path, "/")
			id := parts[len(parts)-1]
			fetched = append(fetched, id)
			fmt.Fprintf(w, `{"id":%q,"threadId":"t1","labelIds":["INBOX"]}`, id)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	svc, err := gmailapi.NewService(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication())
	require.NoError(t, err)

	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()
	p := &gmailProvider{log: log}

	delta, err := p.incremental(context.Background(), svc, "200")
	require.NoError(t, err)

	// Label flips made elsewhere refetch the message; hard deletions
	// surface as deleted remote ids instead of a fetch.
	assert.ElementsMatch(t, []string{"m_new", "m_read", "m_moved"}, fetched)
	assert.Len(t, delta.Messages, 3)
	assert.Equal(t, []string{"m_gone"}, delta.Deleted)
	assert.Equal(t, "210", delta.NewCursor)
}

func TestNormalize(t *testing.T) {
	msg := &gmailapi.Message{
		Id:       "msg_1",
		ThreadId: "thread_1",
		LabelIds: []string{"INBOX", "UNREAD"},
		Snippet:  "short preview",
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Body: &gmailapi.MessagePartBody{
				Data: base64.URLEncoding.EncodeToString([]byte("full body")),
			},
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "Subject", Value: "Quarterly report"},
				{Name: "From", Value: `"Jane Doe" <jane@acme.com>`},
				{Name: "To", Value: "team@acme.com"},
				{Name: "Message-ID", Value: "<abc@mail.acme.com>"},
				{Name: "Date", Value: "Mon, 13 Jul 2026 10:30:00 +0200"},
			},
		},
	}

	remote := normalize(msg)
	require.Equal(t, "msg_1", remote.RemoteID)
	require.Equal(t, "thread_1", remote.ThreadID)
	require.Equal(t, "abc@mail.acme.com", remote.MessageID)
	require.Equal(t, enum.FolderInbox, remote.Folder)
	require.Equal(t, "Quarterly report", remote.Subject)
	require.Equal(t, "Jane Doe", remote.FromName)
	require.Equal(t, "jane@acme.com", remote.FromAddress)
	require.Equal(t, []string{"team@acme.com"}, remote.To)
	require.Equal(t, "short preview", remote.Snippet)
	require.Equal(t, "full body", remote.BodyText)
	require.False(t, remote.IsRead)
	require.NotNil(t, remote.SentAt)
	require.Equal(t, "Quarterly report", remote.Headers["Subject"])
}
