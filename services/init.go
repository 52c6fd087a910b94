package services

import (
	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/services/classifier"
	"github.com/customeros/mailsync/services/events"
	"github.com/customeros/mailsync/services/gmail"
	"github.com/customeros/mailsync/services/imapmail"
	"github.com/customeros/mailsync/services/notifier"
	"github.com/customeros/mailsync/services/opqueue"
	"github.com/customeros/mailsync/services/syncer"
)

type Services struct {
	Providers         map[enum.EmailProvider]interfaces.MailProvider
	OperationQueue    interfaces.OperationQueueService
	ClassifierService interfaces.ClassifierService
	NotifierService   interfaces.NotifierService
	EventPublisher    interfaces.EventPublisher
	SyncService       interfaces.SyncService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		var err error
		publisher, err = events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log, nil)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("RABBITMQ_URL not set, ingestion events will not be published")
		publisher = events.NewNoopPublisher()
	}

	providers := map[enum.EmailProvider]interfaces.MailProvider{
		enum.ProviderGmail: gmail.NewGmailProvider(cfg.GoogleOAuthConfig, log),
		enum.ProviderIMAP:  imapmail.NewIMAPProvider(log),
	}

	operationQueue := opqueue.NewOperationQueueService(log, repos)
	classifierService := classifier.NewClassifierService(log, cfg.InferenceConfig, repos)
	notifierService := notifier.NewNotifierService(log, cfg.PushRelayConfig, repos)

	syncService := syncer.NewSyncService(
		log,
		repos,
		providers,
		operationQueue,
		classifierService,
		notifierService,
		publisher,
	)

	return &Services{
		Providers:         providers,
		OperationQueue:    operationQueue,
		ClassifierService: classifierService,
		NotifierService:   notifierService,
		EventPublisher:    publisher,
		SyncService:       syncService,
	}, nil
}
