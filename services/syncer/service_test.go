package syncer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	syncerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
)

type fakeAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	synced   []string
}

func (f *fakeAccountRepository) Create(ctx context.Context, account *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id], nil
}

func (f *fakeAccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Account
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAccountRepository) Update(ctx context.Context, account *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeAccountRepository) SetSyncStatus(ctx context.Context, accountID string, status enum.SyncStatus, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[accountID]; ok {
		a.SyncStatus = status
		a.LastSyncError = lastError
	}
	return nil
}

func (f *fakeAccountRepository) MarkSynced(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, accountID)
	return nil
}

func (f *fakeAccountRepository) Delete(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, accountID)
	return nil
}

type fakeCursorRepository struct {
	mu      sync.Mutex
	cursors map[string]string
}

func (f *fakeCursorRepository) Get(ctx context.Context, accountID string) (*models.SyncCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cursor, ok := f.cursors[accountID]
	if !ok {
		return nil, nil
	}
	return &models.SyncCursor{AccountID: accountID, Cursor: cursor}, nil
}

func (f *fakeCursorRepository) Save(ctx context.Context, accountID, cursor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[accountID] = cursor
	return nil
}

func (f *fakeCursorRepository) Delete(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cursors, accountID)
	return nil
}

type fakeEmailRepository struct {
	mu     sync.Mutex
	emails map[string]*models.Email
	nextID int
}

func newFakeEmailRepository() *fakeEmailRepository {
	return &fakeEmailRepository{emails: make(map[string]*models.Email)}
}

func (f *fakeEmailRepository) Create(ctx context.Context, email *models.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	email.ID = fmt.Sprintf("email_%d", f.nextID)
	f.emails[email.ID] = email
	return nil
}

func (f *fakeEmailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emails[id], nil
}

func (f *fakeEmailRepository) GetByRemoteID(ctx context.Context, accountID, remoteID string) (*models.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.emails {
		if e.AccountID == accountID && e.RemoteID == remoteID {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeEmailRepository) ListByFolder(ctx context.Context, accountID string, folder enum.EmailFolder, limit, offset int) ([]*models.Email, int64, error) {
	return nil, 0, nil
}

func (f *fakeEmailRepository) ListTrashed(ctx context.Context, accountID string) ([]*models.Email, error) {
	return nil, nil
}

func (f *fakeEmailRepository) ListUnclassified(ctx context.Context, accountID string, limit int) ([]*models.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Email
	for _, e := range f.emails {
		if e.AccountID == accountID && !e.Classified && !e.ManuallyTagged {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeEmailRepository) Update(ctx context.Context, email *models.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails[email.ID] = email
	return nil
}

func (f *fakeEmailRepository) SoftDelete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.emails, id)
	return nil
}

type fakeOperationRepository struct {
	mu  sync.Mutex
	ops []*models.PendingOperation
}

func (f *fakeOperationRepository) EnqueueWithEmail(ctx context.Context, op *models.PendingOperation, email *models.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
	return nil
}

func (f *fakeOperationRepository) EnqueueBatchWithEmails(ctx context.Context, ops []*models.PendingOperation, emails []*models.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, ops...)
	return nil
}

func (f *fakeOperationRepository) GetByID(ctx context.Context, id string) (*models.PendingOperation, error) {
	return nil, nil
}

func (f *fakeOperationRepository) ListPendingByAccount(ctx context.Context, accountID string) ([]*models.PendingOperation, error) {
	return nil, nil
}

func (f *fakeOperationRepository) ListByAccount(ctx context.Context, accountID string, status enum.OperationStatus, limit int) ([]*models.PendingOperation, error) {
	return nil, nil
}

func (f *fakeOperationRepository) PendingEmailIDs(ctx context.Context, accountID string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool)
	for _, op := range f.ops {
		if op.AccountID == accountID && op.Status == enum.OperationStatusPending {
			out[op.EmailID] = true
		}
	}
	return out, nil
}

func (f *fakeOperationRepository) Update(ctx context.Context, op *models.PendingOperation) error {
	return nil
}

type scriptedProvider struct {
	mu         sync.Mutex
	deltas     []*interfaces.RemoteDelta
	fetchErr   error
	fetchCount int
	block      chan struct{}
	fetchHook  func()
}

func (p *scriptedProvider) Provider() enum.EmailProvider {
	return enum.ProviderGmail
}

func (p *scriptedProvider) FetchChanges(ctx context.Context, account *models.Account, cursor string) (*interfaces.RemoteDelta, error) {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCount++
	if p.fetchHook != nil {
		p.fetchHook()
	}
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	if len(p.deltas) == 0 {
		return &interfaces.RemoteDelta{NewCursor: cursor}, nil
	}
	delta := p.deltas[0]
	p.deltas = p.deltas[1:]
	return delta, nil
}

func (p *scriptedProvider) ApplyMutation(ctx context.Context, account *models.Account, remoteID string, kind enum.OperationKind) (string, error) {
	return "", nil
}

type fakeQueue struct {
	drainErr error
	drains   int
}

func (f *fakeQueue) RequestMutation(ctx context.Context, emailID string, kind enum.OperationKind) (*models.PendingOperation, error) {
	return nil, nil
}

func (f *fakeQueue) EmptyTrash(ctx context.Context, accountID string) (*dto.EmptyTrashResult, error) {
	return nil, nil
}

func (f *fakeQueue) Drain(ctx context.Context, account *models.Account, provider interfaces.MailProvider) error {
	f.drains++
	return f.drainErr
}

func (f *fakeQueue) Status(ctx context.Context, accountID string, status enum.OperationStatus, limit int) ([]*models.PendingOperation, error) {
	return nil, nil
}

type fakeClassifier struct {
	mu         sync.Mutex
	classified []string
	err        error
}

func (f *fakeClassifier) ClassifyEmail(ctx context.Context, email *models.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classified = append(f.classified, email.ID)
	if f.err != nil {
		return f.err
	}
	email.Classified = true
	return nil
}

func (f *fakeClassifier) SuggestReplies(ctx context.Context, email *models.Email) []string {
	return []string{}
}

type fakeNotifier struct {
	mu      sync.Mutex
	batches [][]*models.Email
}

func (f *fakeNotifier) Dispatch(ctx context.Context, account *models.Account, newlyIngested []*models.Email) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, newlyIngested)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []dto.EmailIngested
}

func (f *fakePublisher) PublishEmailIngested(ctx context.Context, event dto.EmailIngested) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type syncFixture struct {
	svc         *syncService
	accountRepo *fakeAccountRepository
	cursorRepo  *fakeCursorRepository
	emailRepo   *fakeEmailRepository
	opRepo      *fakeOperationRepository
	provider    *scriptedProvider
	queue       *fakeQueue
	classifier  *fakeClassifier
	notifier    *fakeNotifier
	publisher   *fakePublisher
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		accountRepo: &fakeAccountRepository{accounts: make(map[string]*models.Account)},
		cursorRepo:  &fakeCursorRepository{cursors: make(map[string]string)},
		emailRepo:   newFakeEmailRepository(),
		opRepo:      &fakeOperationRepository{},
		provider:    &scriptedProvider{},
		queue:       &fakeQueue{},
		classifier:  &fakeClassifier{},
		notifier:    &fakeNotifier{},
		publisher:   &fakePublisher{},
	}
	repos := &repository.Repositories{
		AccountRepository:          f.accountRepo,
		EmailRepository:            f.emailRepo,
		PendingOperationRepository: f.opRepo,
		SyncCursorRepository:       f.cursorRepo,
	}
	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()
	providers := map[enum.EmailProvider]interfaces.MailProvider{
		enum.ProviderGmail: f.provider,
	}
	f.svc = NewSyncService(log, repos, providers, f.queue, f.classifier, f.notifier, f.publisher).(*syncService)
	require.NoError(t, f.svc.Start(context.Background()))
	t.Cleanup(func() { f.svc.Stop() })
	return f
}

func (f *syncFixture) addAccount(id string) *models.Account {
	account := &models.Account{
		ID:         id,
		Provider:   enum.ProviderGmail,
		SyncStatus: enum.SyncStatusActive,
	}
	f.accountRepo.accounts[id] = account
	return account
}

func remoteMessage(remoteID string) interfaces.RemoteMessage {
	return interfaces.RemoteMessage{
		RemoteID:    remoteID,
		Folder:      enum.FolderInbox,
		Subject:     "Subject " + remoteID,
		FromAddress: "sender@example.com",
	}
}

func TestCycle_IngestsClassifiesNotifiesAndAdvancesCursor(t *testing.T) {
	f := newSyncFixture(t)
	f.addAccount("acct_1")
	f.provider.deltas = []*interfaces.RemoteDelta{{
		Messages:  []interfaces.RemoteMessage{remoteMessage("r1"), remoteMessage("r2")},
		NewCursor: "cursor-2",
	}}

	require.NoError(t, f.svc.cycle(context.Background(), "acct_1"))

	assert.Equal(t, 1, f.queue.drains)
	assert.Len(t, f.emailRepo.emails, 2)
	assert.Equal(t, "cursor-2", f.cursorRepo.cursors["acct_1"])
	assert.Len(t, f.classifier.classified, 2)
	require.Len(t, f.notifier.batches, 1)
	assert.Len(t, f.notifier.batches[0], 2)
	assert.Len(t, f.publisher.events, 2)
	assert.Contains(t, f.accountRepo.synced, "acct_1")
}

func TestCycle_TransientFetchFailureKeepsCursor(t *testing.T) {
	f := newSyncFixture(t)
	f.addAccount("acct_1")
	f.cursorRepo.cursors["acct_1"] = "cursor-1"
	f.provider.fetchErr = syncerrors.Transient(nil, "upstream flaking")

	err := f.svc.cycle(context.Background(), "acct_1")
	require.Error(t, err)
	assert.True(t, syncerrors.IsTransient(err))

	assert.Equal(t, "cursor-1", f.cursorRepo.cursors["acct_1"])
	assert.Equal(t, enum.SyncStatusActive, f.accountRepo.accounts["acct_1"].SyncStatus)
	assert.Empty(t, f.notifier.batches)
}

func TestCycle_AuthFailureDegradesAccount(t *testing.T) {
	f := newSyncFixture(t)
	f.addAccount("acct_1")
	f.provider.fetchErr = syncerrors.AuthFailed(nil, "refresh token revoked")

	err := f.svc.cycle(context.Background(), "acct_1")
	require.Error(t, err)

	account := f.accountRepo.accounts["acct_1"]
	assert.Equal(t, enum.SyncStatusDegraded, account.SyncStatus)
	assert.Contains(t, account.LastSyncError, "refresh token revoked")
}

func TestCycle_AuthFailureDuringDrainDegradesAccount(t *testing.T) {
	f := newSyncFixture(t)
	f.addAccount("acct_1")
	f.queue.drainErr = syncerrors.AuthFailed(nil, "password rejected")

	err := f.svc.cycle(context.Background(), "acct_1")
	require.Error(t, err)
	assert.Equal(t, enum.SyncStatusDegraded, f.accountRepo.accounts["acct_1"].SyncStatus)
	assert.Zero(t, f.provider.fetchCount)
}

func TestCycle_DegradedAccountIsSkipped(t *testing.T) {
	f := newSyncFixture(t)
	account := f.addAccount("acct_1")
	account.SyncStatus = enum.SyncStatusDegraded

	require.NoError(t, f.svc.cycle(context.Background(), "acct_1"))
	assert.Zero(t, f.queue.drains)
	assert.Zero(t, f.provider.fetchCount)
}

func TestMerge_PendingOperationProtectsLocalState(t *testing.T) {
	f := newSyncFixture(t)
	account := f.addAccount("acct_1")

	cached := &models.Email{
		AccountID: "acct_1",
		RemoteID:  "r1",
		Folder:    enum.FolderTrash,
		IsRead:    false,
	}
	require.NoError(t, f.emailRepo.Create(context.Background(), cached))
	f.opRepo.ops = append(f.opRepo.ops, &models.PendingOperation{
		ID:        "op_1",
		AccountID: "acct_1",
		EmailID:   cached.ID,
		Kind:      enum.OperationTrash,
		Status:    enum.OperationStatusPending,
	})

	// The remote still reports the message in the inbox as read.
	remote := remoteMessage("r1")
	remote.IsRead = true
	delta := &interfaces.RemoteDelta{Messages: []interfaces.RemoteMessage{remote}}

	newly, err := f.svc.merge(context.Background(), account, delta)
	require.NoError(t, err)
	assert.Empty(t, newly)

	assert.Equal(t, enum.FolderTrash, f.emailRepo.emails[cached.ID].Folder)
	assert.False(t, f.emailRepo.emails[cached.ID].IsRead)
}

func TestMerge_ReconcilesSettledEmails(t *testing.T) {
	f := newSyncFixture(t)
	account := f.addAccount("acct_1")

	cached := &models.Email{
		AccountID: "acct_1",
		RemoteID:  "r1",
		Folder:    enum.FolderInbox,
		IsRead:    false,
	}
	require.NoError(t, f.emailRepo.Create(context.Background(), cached))

	remote := remoteMessage("r1")
	remote.IsRead = true
	delta := &interfaces.RemoteDelta{Messages: []interfaces.RemoteMessage{remote}}

	newly, err := f.svc.merge(context.Background(), account, delta)
	require.NoError(t, err)
	assert.Empty(t, newly)
	assert.True(t, f.emailRepo.emails[cached.ID].IsRead)
}

func TestMerge_DoesNotResurrectDeletingEmails(t *testing.T) {
	f := newSyncFixture(t)
	account := f.addAccount("acct_1")

	cached := &models.Email{
		AccountID: "acct_1",
		RemoteID:  "r1",
		Folder:    enum.FolderDeleting,
	}
	require.NoError(t, f.emailRepo.Create(context.Background(), cached))

	delta := &interfaces.RemoteDelta{Messages: []interfaces.RemoteMessage{remoteMessage("r1")}}
	_, err := f.svc.merge(context.Background(), account, delta)
	require.NoError(t, err)
	assert.Equal(t, enum.FolderDeleting, f.emailRepo.emails[cached.ID].Folder)
}

func TestCycle_RetriesUnclassifiedBacklog(t *testing.T) {
	f := newSyncFixture(t)
	f.addAccount("acct_1")
	f.classifier.err = fmt.Errorf("inference timed out")
	f.provider.deltas = []*interfaces.RemoteDelta{{
		Messages:  []interfaces.RemoteMessage{remoteMessage("r1")},
		NewCursor: "cursor-1",
	}}

	require.NoError(t, f.svc.cycle(context.Background(), "acct_1"))
	assert.Equal(t, []string{"email_1"}, f.classifier.classified)
	assert.False(t, f.emailRepo.emails["email_1"].Classified)

	// The inference endpoint recovers; the next cycle brings nothing new
	// but picks the untagged message back up.
	f.classifier.err = nil
	require.NoError(t, f.svc.cycle(context.Background(), "acct_1"))
	assert.Equal(t, []string{"email_1", "email_1"}, f.classifier.classified)
	assert.True(t, f.emailRepo.emails["email_1"].Classified)

	// Once tagged it stays out of the backlog.
	require.NoError(t, f.svc.cycle(context.Background(), "acct_1"))
	assert.Len(t, f.classifier.classified, 2)
}

func TestCycle_AccountDisabledMidCycleSkipsLaterStages(t *testing.T) {
	f := newSyncFixture(t)
	account := f.addAccount("acct_1")
	f.provider.deltas = []*interfaces.RemoteDelta{{
		Messages:  []interfaces.RemoteMessage{remoteMessage("r1")},
		NewCursor: "cursor-1",
	}}
	// The account is disabled while the fetch is on the wire; the fetch
	// finishes, everything after it is abandoned.
	f.provider.fetchHook = func() {
		f.accountRepo.mu.Lock()
		account.SyncStatus = enum.SyncStatusDisabled
		f.accountRepo.mu.Unlock()
	}

	require.NoError(t, f.svc.cycle(context.Background(), "acct_1"))

	assert.Equal(t, 1, f.provider.fetchCount)
	assert.Empty(t, f.emailRepo.emails)
	assert.Empty(t, f.classifier.classified)
	assert.Empty(t, f.notifier.batches)
	assert.Empty(t, f.accountRepo.synced)
	assert.Empty(t, f.cursorRepo.cursors)
}

func TestMerge_RemoteDeletionRemovesEmail(t *testing.T) {
	f := newSyncFixture(t)
	account := f.addAccount("acct_1")

	cached := &models.Email{AccountID: "acct_1", RemoteID: "r1", Folder: enum.FolderInbox}
	require.NoError(t, f.emailRepo.Create(context.Background(), cached))

	delta := &interfaces.RemoteDelta{Deleted: []string{"r1", "unknown"}}
	newly, err := f.svc.merge(context.Background(), account, delta)
	require.NoError(t, err)
	assert.Empty(t, newly)
	assert.Empty(t, f.emailRepo.emails)
}

func TestMerge_RemoteDeletionSparesEmailWithPendingOperation(t *testing.T) {
	f := newSyncFixture(t)
	account := f.addAccount("acct_1")

	cached := &models.Email{AccountID: "acct_1", RemoteID: "r1", Folder: enum.FolderInbox}
	require.NoError(t, f.emailRepo.Create(context.Background(), cached))
	f.opRepo.ops = append(f.opRepo.ops, &models.PendingOperation{
		ID:        "op_1",
		AccountID: "acct_1",
		EmailID:   cached.ID,
		Kind:      enum.OperationMarkRead,
		Status:    enum.OperationStatusPending,
	})

	delta := &interfaces.RemoteDelta{Deleted: []string{"r1"}}
	_, err := f.svc.merge(context.Background(), account, delta)
	require.NoError(t, err)
	assert.Contains(t, f.emailRepo.emails, cached.ID)
}

func TestCycle_ClassifierErrorDoesNotBlockNotifications(t *testing.T) {
	f := newSyncFixture(t)
	f.addAccount("acct_1")
	f.classifier.err = fmt.Errorf("repository write failed")
	f.provider.deltas = []*interfaces.RemoteDelta{{
		Messages:  []interfaces.RemoteMessage{remoteMessage("r1")},
		NewCursor: "cursor-1",
	}}

	require.NoError(t, f.svc.cycle(context.Background(), "acct_1"))
	require.Len(t, f.notifier.batches, 1)
	assert.Len(t, f.publisher.events, 1)
}

func TestTriggerSync_CoalescesWhileInFlight(t *testing.T) {
	f := newSyncFixture(t)
	f.addAccount("acct_1")
	f.provider.block = make(chan struct{})

	f.svc.TriggerSync("acct_1")
	require.Eventually(t, func() bool {
		return f.svc.Status()["acct_1"].InFlight
	}, time.Second, 5*time.Millisecond)

	// Triggers landing mid-cycle are no-ops.
	f.svc.TriggerSync("acct_1")
	f.svc.TriggerSync("acct_1")

	close(f.provider.block)
	require.Eventually(t, func() bool {
		return !f.svc.Status()["acct_1"].InFlight
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, f.provider.fetchCount)
}

func TestSyncAll_RunsEverySyncableAccount(t *testing.T) {
	f := newSyncFixture(t)
	f.addAccount("acct_1")
	f.addAccount("acct_2")
	disabled := f.addAccount("acct_3")
	disabled.SyncStatus = enum.SyncStatusDisabled

	f.svc.SyncAll(context.Background())

	assert.Equal(t, 2, f.provider.fetchCount)
	assert.ElementsMatch(t, []string{"acct_1", "acct_2"}, f.accountRepo.synced)
}

func TestStatus_RecordsLastCycleOutcome(t *testing.T) {
	f := newSyncFixture(t)
	f.addAccount("acct_1")
	f.provider.fetchErr = syncerrors.Transient(nil, "boom")

	f.svc.TriggerSync("acct_1")
	require.Eventually(t, func() bool {
		status := f.svc.Status()["acct_1"]
		return !status.InFlight && status.LastError != ""
	}, time.Second, 5*time.Millisecond)

	status := f.svc.Status()["acct_1"]
	assert.Contains(t, status.LastError, "boom")
	assert.False(t, status.LastCycleAt.IsZero())
}
