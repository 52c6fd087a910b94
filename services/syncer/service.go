package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	syncerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

// classifyBacklogLimit bounds how much untagged backlog one cycle retries,
// in addition to the cycle's own new messages.
const classifyBacklogLimit = 50

type syncService struct {
	log          logger.Logger
	repositories *repository.Repositories
	providers    map[enum.EmailProvider]interfaces.MailProvider
	opQueue      interfaces.OperationQueueService
	classifier   interfaces.ClassifierService
	notifier     interfaces.NotifierService
	publisher    interfaces.EventPublisher

	mu      sync.Mutex
	states  map[string]*accountState
	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// accountState serializes cycles per account: at most one in flight, and
// triggers arriving mid-cycle coalesce into nothing.
type accountState struct {
	inFlight    bool
	lastCycleAt time.Time
	lastError   string
}

func NewSyncService(
	log logger.Logger,
	repositories *repository.Repositories,
	providers map[enum.EmailProvider]interfaces.MailProvider,
	opQueue interfaces.OperationQueueService,
	classifier interfaces.ClassifierService,
	notifier interfaces.NotifierService,
	publisher interfaces.EventPublisher,
) interfaces.SyncService {
	return &syncService{
		log:          log,
		repositories: repositories,
		providers:    providers,
		opQueue:      opQueue,
		classifier:   classifier,
		notifier:     notifier,
		publisher:    publisher,
		states:       make(map[string]*accountState),
	}
}

func (s *syncService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("sync engine already started")
	}
	s.rootCtx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.log.Info("Sync engine started")
	return nil
}

func (s *syncService) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Info("Sync engine stopped")
	return nil
}

func (s *syncService) TriggerSync(accountID string) {
	if !s.begin(accountID) {
		s.log.Debugf("Sync for account %s already in flight, trigger coalesced", accountID)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCycle(accountID)
	}()
}

func (s *syncService) SyncAll(ctx context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.SyncAll")
	defer span.Finish()
	tracing.TagComponentService(span)

	accounts, err := s.repositories.AccountRepository.List(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to list accounts for sync: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, account := range accounts {
		if !account.Syncable() {
			continue
		}
		if !s.begin(account.ID) {
			continue
		}
		wg.Add(1)
		s.wg.Add(1)
		go func(accountID string) {
			defer wg.Done()
			defer s.wg.Done()
			s.runCycle(accountID)
		}(account.ID)
	}
	wg.Wait()
}

// begin claims the in-flight slot for an account. It returns false when a
// cycle is already running, or the engine is not started.
func (s *syncService) begin(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return false
	}
	state, ok := s.states[accountID]
	if !ok {
		state = &accountState{}
		s.states[accountID] = state
	}
	if state.inFlight {
		return false
	}
	state.inFlight = true
	return true
}

func (s *syncService) finish(accountID string, cycleErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[accountID]
	state.inFlight = false
	state.lastCycleAt = utils.Now()
	if cycleErr != nil {
		state.lastError = cycleErr.Error()
	} else {
		state.lastError = ""
	}
}

func (s *syncService) Status() map[string]interfaces.AccountSyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interfaces.AccountSyncStatus, len(s.states))
	for id, state := range s.states {
		out[id] = interfaces.AccountSyncStatus{
			InFlight:    state.inFlight,
			LastCycleAt: state.lastCycleAt,
			LastError:   state.lastError,
		}
	}
	return out
}

func (s *syncService) runCycle(accountID string) {
	defer tracing.RecoverAndLogToJaeger(s.log)

	span, ctx := tracing.StartTracerSpan(s.rootCtx, "SyncService.cycle")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	err := s.cycle(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	s.finish(accountID, err)
}

func (s *syncService) cycle(ctx context.Context, accountID string) error {
	account, err := s.repositories.AccountRepository.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return syncerrors.ErrAccountNotFound
	}
	if !account.Syncable() {
		s.log.Debugf("Account %s is %s, skipping cycle", account.ID, account.SyncStatus)
		return nil
	}

	provider, ok := s.providers[account.Provider]
	if !ok {
		return fmt.Errorf("no adapter registered for provider %s", account.Provider)
	}

	if err := s.opQueue.Drain(ctx, account, provider); err != nil {
		return s.recordCycleError(ctx, account.ID, err)
	}

	if ok, err := s.stillSyncable(ctx, account.ID); err != nil || !ok {
		return err
	}

	cursor := ""
	cursorRecord, err := s.repositories.SyncCursorRepository.Get(ctx, account.ID)
	if err != nil {
		return err
	}
	if cursorRecord != nil {
		cursor = cursorRecord.Cursor
	}

	delta, err := provider.FetchChanges(ctx, account, cursor)
	if err != nil {
		// The cursor is untouched; a transient fetch failure replays the
		// same window next cycle.
		return s.recordCycleError(ctx, account.ID, err)
	}

	// The account may have been disabled or deleted while the fetch was
	// in flight; the remote call finished, the remaining stages skip.
	if ok, err := s.stillSyncable(ctx, account.ID); err != nil || !ok {
		return err
	}

	newlyIngested, err := s.merge(ctx, account, delta)
	if err != nil {
		return err
	}

	if delta.NewCursor != cursor {
		if err := s.repositories.SyncCursorRepository.Save(ctx, account.ID, delta.NewCursor); err != nil {
			return err
		}
	}

	for _, email := range s.classifiable(ctx, account.ID, newlyIngested) {
		if err := s.classifier.ClassifyEmail(ctx, email); err != nil {
			s.log.Warnf("Classification failed for email %s: %v", email.ID, err)
		}
	}

	s.notifier.Dispatch(ctx, account, newlyIngested)

	for _, email := range newlyIngested {
		event := dto.EmailIngested{
			EmailID:     email.ID,
			AccountID:   email.AccountID,
			Provider:    email.Provider.String(),
			Folder:      email.Folder.String(),
			Subject:     email.Subject,
			FromAddress: email.FromAddress,
			Tags:        email.Tags,
		}
		if err := s.publisher.PublishEmailIngested(ctx, event); err != nil {
			s.log.Warnf("Failed to publish ingestion event for email %s: %v", email.ID, err)
		}
	}

	if len(newlyIngested) > 0 {
		s.log.Infof("Account %s: ingested %d new messages", account.ID, len(newlyIngested))
	}
	return s.repositories.AccountRepository.MarkSynced(ctx, account.ID)
}

// stillSyncable re-reads the account between cycle stages so a disable or
// delete landing mid-cycle stops further work for it.
func (s *syncService) stillSyncable(ctx context.Context, accountID string) (bool, error) {
	account, err := s.repositories.AccountRepository.GetByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	if account == nil || !account.Syncable() {
		s.log.Debugf("Account %s no longer syncable, abandoning cycle", accountID)
		return false, nil
	}
	return true, nil
}

// classifiable joins this cycle's new messages with the untagged backlog
// from earlier cycles, so a message left untagged by an inference failure
// gets another attempt instead of staying untagged forever.
func (s *syncService) classifiable(ctx context.Context, accountID string, newlyIngested []*models.Email) []*models.Email {
	out := make([]*models.Email, 0, len(newlyIngested))
	seen := make(map[string]bool, len(newlyIngested))
	for _, email := range newlyIngested {
		out = append(out, email)
		seen[email.ID] = true
	}

	backlog, err := s.repositories.EmailRepository.ListUnclassified(ctx, accountID, classifyBacklogLimit)
	if err != nil {
		s.log.Warnf("Failed to list unclassified backlog for account %s: %v", accountID, err)
		return out
	}
	for _, email := range backlog {
		if !seen[email.ID] {
			out = append(out, email)
		}
	}
	return out
}

// recordCycleError maps a provider failure onto account state. Auth
// failures degrade the account until credentials are fixed; transient
// failures leave it active for the next cycle.
func (s *syncService) recordCycleError(ctx context.Context, accountID string, err error) error {
	if syncerrors.IsAuthFailed(err) {
		s.log.Warnf("Account %s degraded: %v", accountID, err)
		if statusErr := s.repositories.AccountRepository.SetSyncStatus(ctx, accountID, enum.SyncStatusDegraded, err.Error()); statusErr != nil {
			s.log.Errorf("Failed to degrade account %s: %v", accountID, statusErr)
		}
	}
	return err
}
