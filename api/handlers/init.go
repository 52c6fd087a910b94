package handlers

import (
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/services"
)

type Handlers struct {
	Emails        *EmailsHandler
	Accounts      *AccountsHandler
	Sync          *SyncHandler
	Subscriptions *SubscriptionsHandler
}

func InitHandlers(log logger.Logger, repos *repository.Repositories, s *services.Services) *Handlers {
	return &Handlers{
		Emails:        NewEmailsHandler(log, repos, s.OperationQueue, s.ClassifierService, s.SyncService),
		Accounts:      NewAccountsHandler(log, repos, s.SyncService),
		Sync:          NewSyncHandler(s.SyncService, s.OperationQueue),
		Subscriptions: NewSubscriptionsHandler(log, repos),
	}
}
