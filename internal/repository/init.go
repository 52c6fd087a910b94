package repository

import (
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
)

type Repositories struct {
	AccountRepository          interfaces.AccountRepository
	EmailRepository            interfaces.EmailRepository
	PendingOperationRepository interfaces.PendingOperationRepository
	SyncCursorRepository       interfaces.SyncCursorRepository
	PushSubscriptionRepository interfaces.PushSubscriptionRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		AccountRepository:          NewAccountRepository(db),
		EmailRepository:            NewEmailRepository(db),
		PendingOperationRepository: NewPendingOperationRepository(db),
		SyncCursorRepository:       NewSyncCursorRepository(db),
		PushSubscriptionRepository: NewPushSubscriptionRepository(db),
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.Email{},
		&models.PendingOperation{},
		&models.SyncCursor{},
		&models.PushSubscription{},
	)
}
