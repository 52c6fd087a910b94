package classifier

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

const (
	tagSourcePrefilter = "prefilter"
	tagSourceInference = "inference"
)

type classifierService struct {
	log          logger.Logger
	cfg          *config.InferenceConfig
	repositories *repository.Repositories
	httpClient   *http.Client
}

func NewClassifierService(log logger.Logger, cfg *config.InferenceConfig, repositories *repository.Repositories) interfaces.ClassifierService {
	return &classifierService{
		log:          log,
		cfg:          cfg,
		repositories: repositories,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

func (s *classifierService) ClassifyEmail(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ClassifierService.ClassifyEmail")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEmail(span, email.ID)

	if email.Classified || email.HasTerminalTag() {
		return nil
	}

	if tag, reason, matched := prefilterTag(email); matched {
		s.log.Debugf("Prefilter tagged email %s as %s: %s", email.ID, tag, reason)
		span.SetTag("classification.source", tagSourcePrefilter)
		email.Tags = append(email.Tags, tag.String())
		email.Classified = true
		email.TagSource = tagSourcePrefilter
		return s.repositories.EmailRepository.Update(ctx, email)
	}

	response, err := s.classify(ctx, email)
	if err != nil {
		// Inference is best effort: the email stays untagged and gets
		// picked up again on a later cycle.
		tracing.TraceErr(span, err)
		s.log.Warnf("Classification unavailable for email %s: %v", email.ID, err)
		return nil
	}

	tag := enum.ParseEmailTag(response.Category)
	span.SetTag("classification.source", tagSourceInference)
	span.SetTag("classification.tag", tag.String())

	email.Tags = append(email.Tags, tag.String())
	email.Classified = true
	email.TagSource = tagSourceInference
	email.TagConfidence = response.Confidence
	return s.repositories.EmailRepository.Update(ctx, email)
}

func (s *classifierService) classify(ctx context.Context, email *models.Email) (*dto.ClassifyEmailResponse, error) {
	request := dto.ClassifyEmailRequest{
		Task:    "classify",
		Subject: email.Subject,
		Sender:  email.FromAddress,
		Snippet: utils.TruncateString(email.BodyText, s.cfg.SnippetMaxChars),
	}

	var response dto.ClassifyEmailResponse
	if err := s.post(ctx, "/classify", request, &response); err != nil {
		return nil, err
	}
	if response.Category == "" {
		return nil, errors.New("inference response missing category")
	}
	return &response, nil
}

func (s *classifierService) SuggestReplies(ctx context.Context, email *models.Email) []string {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ClassifierService.SuggestReplies")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEmail(span, email.ID)

	request := dto.SuggestRepliesRequest{
		Task:    "suggest_replies",
		Subject: email.Subject,
		Sender:  email.FromAddress,
		Snippet: utils.TruncateString(email.BodyText, s.cfg.SnippetMaxChars),
	}

	var response dto.SuggestRepliesResponse
	if err := s.post(ctx, "/suggest-replies", request, &response); err != nil {
		tracing.TraceErr(span, err)
		s.log.Debugf("Reply suggestions unavailable for email %s: %v", email.ID, err)
		return []string{}
	}
	if response.Suggestions == nil {
		return []string{}
	}
	return response.Suggestions
}

func (s *classifierService) post(ctx context.Context, path string, request, response interface{}) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Url+path, bytes.NewBuffer(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ApiKey != "" {
		req.Header.Set("X-Api-Key", s.cfg.ApiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, utils.TruncateString(string(body), 200))
	}

	if err := json.Unmarshal(body, response); err != nil {
		return errors.Wrap(err, "failed to unmarshal response")
	}
	return nil
}
