package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type notifierService struct {
	log          logger.Logger
	cfg          *config.PushRelayConfig
	repositories *repository.Repositories
	httpClient   *http.Client
}

func NewNotifierService(log logger.Logger, cfg *config.PushRelayConfig, repositories *repository.Repositories) interfaces.NotifierService {
	return &notifierService{
		log:          log,
		cfg:          cfg,
		repositories: repositories,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

func (s *notifierService) Dispatch(ctx context.Context, account *models.Account, newlyIngested []*models.Email) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "NotifierService.Dispatch")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)

	notifiable := make([]*models.Email, 0, len(newlyIngested))
	for _, email := range newlyIngested {
		if shouldNotify(email) {
			notifiable = append(notifiable, email)
		}
	}
	if len(notifiable) == 0 {
		return
	}

	if len(notifiable) > s.cfg.MaxPerCycle {
		s.log.Infof("Capping notifications for account %s: %d notifiable, sending %d",
			account.ID, len(notifiable), s.cfg.MaxPerCycle)
		notifiable = notifiable[:s.cfg.MaxPerCycle]
	}
	span.SetTag("notifications.count", len(notifiable))

	subscriptions, err := s.repositories.PushSubscriptionRepository.ListByAccount(ctx, account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to list push subscriptions for account %s: %v", account.ID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	gone := make(map[string]bool)
	for _, email := range notifiable {
		payload := s.buildPayload(email)
		for _, sub := range subscriptions {
			if gone[sub.ID] {
				continue
			}
			subGone, err := s.deliver(ctx, sub, payload)
			if subGone {
				gone[sub.ID] = true
				s.log.Infof("Push subscription %s gone, removing", sub.ID)
				if err := s.repositories.PushSubscriptionRepository.Delete(ctx, sub.ID); err != nil {
					tracing.TraceErr(span, err)
					s.log.Errorf("Failed to delete gone subscription %s: %v", sub.ID, err)
				}
				continue
			}
			if err != nil {
				tracing.TraceErr(span, err)
				s.log.Warnf("Push delivery to subscription %s failed: %v", sub.ID, err)
			}
		}
	}
}

// shouldNotify keeps notifications to unread inbox mail a person would
// plausibly want to see immediately.
func shouldNotify(email *models.Email) bool {
	if email.Folder != enum.FolderInbox || email.IsRead {
		return false
	}
	if email.HasTag(enum.TagJunk) || email.HasTag(enum.TagNewsletter) || email.HasTag(enum.TagSystem) {
		return false
	}
	return true
}

func (s *notifierService) buildPayload(email *models.Email) dto.PushPayload {
	title := email.FromName
	if title == "" {
		title = email.FromAddress
	}
	return dto.PushPayload{
		Title:   title,
		Body:    utils.TruncateString(email.Subject, 120),
		EmailID: email.ID,
		Link:    fmt.Sprintf("%s/%s", s.cfg.DeepLinkBase, email.ID),
	}
}

// deliver posts one payload to the relay. The gone return is terminal for
// the subscription; any other failure is worth retrying on a later cycle.
func (s *notifierService) deliver(ctx context.Context, sub *models.PushSubscription, payload dto.PushPayload) (bool, error) {
	delivery := dto.PushDelivery{
		Subscription: dto.PushSubscriptionRecord{
			Endpoint: sub.Endpoint,
			Auth:     sub.Auth,
			P256dh:   sub.P256dh,
		},
		Payload: payload,
	}

	body, err := json.Marshal(delivery)
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal delivery")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Url+"/send", bytes.NewBuffer(body))
	if err != nil {
		return false, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ApiKey != "" {
		req.Header.Set("X-Api-Key", s.cfg.ApiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "relay request failed")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return true, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, fmt.Errorf("relay responded with status %d", resp.StatusCode)
	default:
		return false, nil
	}
}
