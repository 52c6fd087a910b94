package imapmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	syncerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

const (
	dialTimeout  = 30 * time.Second
	loginTimeout = 30 * time.Second
)

// connect establishes a logged-in IMAP session for the account. The caller
// owns the returned client and must Logout when done.
func (p *imapProvider) connect(ctx context.Context, account *models.Account) (*client.Client, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapProvider.connect")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	span.SetTag("server", account.ImapServer)
	span.SetTag("port", account.ImapPort)
	span.SetTag("tls", account.ImapTLS)

	serverAddr := fmt.Sprintf("%s:%d", account.ImapServer, account.ImapPort)

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: dialTimeout,
	}

	var c *client.Client
	var err error

	if account.ImapTLS {
		tlsConfig := &tls.Config{
			ServerName: account.ImapServer,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}

	if err != nil {
		tracing.TraceErr(span, err)
		return nil, syncerrors.Transient(err, fmt.Sprintf("failed to connect to %s", serverAddr))
	}

	c.Timeout = loginTimeout

	err = c.Login(account.ImapUsername, account.ImapPassword)
	if err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return nil, syncerrors.AuthFailed(err, fmt.Sprintf("failed to login as %s", account.ImapUsername))
	}

	// No timeout for normal operations; individual calls are bounded by
	// the cycle context.
	c.Timeout = 0

	p.log.Debugf("[%s] Connected and logged in to %s", account.ID, serverAddr)
	return c, nil
}

// isConnectionError reports whether an IMAP failure looks like a dropped or
// unreachable connection rather than a protocol-level rejection.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(net.Error); ok {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "closed") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "eof")
}
