package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
)

type fakeEmailRepository struct {
	updated []*models.Email
}

func (f *fakeEmailRepository) Create(ctx context.Context, email *models.Email) error { return nil }
func (f *fakeEmailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	return nil, nil
}
func (f *fakeEmailRepository) GetByRemoteID(ctx context.Context, accountID, remoteID string) (*models.Email, error) {
	return nil, nil
}
func (f *fakeEmailRepository) ListByFolder(ctx context.Context, accountID string, folder enum.EmailFolder, limit, offset int) ([]*models.Email, int64, error) {
	return nil, 0, nil
}
func (f *fakeEmailRepository) ListTrashed(ctx context.Context, accountID string) ([]*models.Email, error) {
	return nil, nil
}
func (f *fakeEmailRepository) ListUnclassified(ctx context.Context, accountID string, limit int) ([]*models.Email, error) {
	return nil, nil
}
func (f *fakeEmailRepository) Update(ctx context.Context, email *models.Email) error {
	f.updated = append(f.updated, email)
	return nil
}
func (f *fakeEmailRepository) SoftDelete(ctx context.Context, id string) error { return nil }

func newTestClassifier(t *testing.T, url string) (*classifierService, *fakeEmailRepository) {
	t.Helper()
	emailRepo := &fakeEmailRepository{}
	repos := &repository.Repositories{EmailRepository: emailRepo}
	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()
	cfg := &config.InferenceConfig{
		Url:             url,
		TimeoutSeconds:  30,
		SnippetMaxChars: 800,
	}
	svc := NewClassifierService(log, cfg, repos).(*classifierService)
	return svc, emailRepo
}

func plainEmail() *models.Email {
	return &models.Email{
		ID:          "email_1",
		Subject:     "Quarterly check-in",
		FromAddress: "jamie@example.com",
		BodyText:    "Hi, do you have time this week to catch up?",
	}
}

func TestClassifyEmail_AppliesInferenceTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)
		w.Write([]byte(`{"category": "important", "confidence": 0.92}`))
	}))
	defer server.Close()

	svc, emailRepo := newTestClassifier(t, server.URL)
	email := plainEmail()

	require.NoError(t, svc.ClassifyEmail(context.Background(), email))

	assert.True(t, email.Classified)
	assert.True(t, email.HasTag(enum.TagImportant))
	assert.Equal(t, tagSourceInference, email.TagSource)
	require.NotNil(t, email.TagConfidence)
	assert.InDelta(t, 0.92, *email.TagConfidence, 0.001)
	require.Len(t, emailRepo.updated, 1)
}

func TestClassifyEmail_UnknownCategoryFallsBackToNeutral(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"category": "spearphishing-alert"}`))
	}))
	defer server.Close()

	svc, _ := newTestClassifier(t, server.URL)
	email := plainEmail()

	require.NoError(t, svc.ClassifyEmail(context.Background(), email))
	assert.True(t, email.HasTag(enum.TagNeutral))
}

func TestClassifyEmail_MalformedResponseLeavesUntagged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	svc, emailRepo := newTestClassifier(t, server.URL)
	email := plainEmail()

	require.NoError(t, svc.ClassifyEmail(context.Background(), email))

	assert.False(t, email.Classified)
	assert.Empty(t, email.Tags)
	assert.Empty(t, emailRepo.updated)
}

func TestClassifyEmail_ServerErrorLeavesUntagged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc, _ := newTestClassifier(t, server.URL)
	email := plainEmail()

	require.NoError(t, svc.ClassifyEmail(context.Background(), email))
	assert.False(t, email.Classified)
}

func TestClassifyEmail_TimeoutLeavesUntagged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"category": "neutral"}`))
	}))
	defer server.Close()

	svc, _ := newTestClassifier(t, server.URL)
	svc.httpClient.Timeout = 50 * time.Millisecond
	email := plainEmail()

	require.NoError(t, svc.ClassifyEmail(context.Background(), email))
	assert.False(t, email.Classified)
	assert.Empty(t, email.Tags)
}

func TestClassifyEmail_SkipsTerminallyTagged(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	svc, _ := newTestClassifier(t, server.URL)
	email := plainEmail()
	email.ManuallyTagged = true
	email.Tags = []string{enum.TagImportant.String()}

	require.NoError(t, svc.ClassifyEmail(context.Background(), email))
	assert.Zero(t, calls)
}

func TestClassifyEmail_PrefilterShortCircuitsInference(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	svc, emailRepo := newTestClassifier(t, server.URL)
	email := plainEmail()
	email.Subject = "Delivery Status Notification (Failure)"
	email.FromAddress = "mailer-daemon@example.com"

	require.NoError(t, svc.ClassifyEmail(context.Background(), email))

	assert.Zero(t, calls)
	assert.True(t, email.Classified)
	assert.True(t, email.HasTag(enum.TagSystem))
	assert.True(t, email.HasTerminalTag())
	assert.Equal(t, tagSourcePrefilter, email.TagSource)
	require.Len(t, emailRepo.updated, 1)
}

func TestSuggestReplies_ReturnsDrafts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/suggest-replies", r.URL.Path)
		w.Write([]byte(`{"suggestions": ["Sounds good!", "Let me check my calendar.", "Can we do Friday?"]}`))
	}))
	defer server.Close()

	svc, _ := newTestClassifier(t, server.URL)
	suggestions := svc.SuggestReplies(context.Background(), plainEmail())
	assert.Len(t, suggestions, 3)
}

func TestSuggestReplies_DegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc, _ := newTestClassifier(t, server.URL)
	suggestions := svc.SuggestReplies(context.Background(), plainEmail())
	assert.NotNil(t, suggestions)
	assert.Empty(t, suggestions)
}
