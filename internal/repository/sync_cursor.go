package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type syncCursorRepository struct {
	db *gorm.DB
}

func NewSyncCursorRepository(db *gorm.DB) interfaces.SyncCursorRepository {
	return &syncCursorRepository{
		db: db,
	}
}

func (r *syncCursorRepository) Get(ctx context.Context, accountID string) (*models.SyncCursor, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCursorRepository.Get")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var cursor models.SyncCursor
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&cursor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &cursor, nil
}

// Save upserts the cursor for an account. Called only after a successful
// fetch-and-merge.
func (r *syncCursorRepository) Save(ctx context.Context, accountID, cursor string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCursorRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	existing, err := r.Get(ctx, accountID)
	if err != nil {
		return err
	}

	if existing == nil {
		record := &models.SyncCursor{
			AccountID:  accountID,
			Cursor:     cursor,
			LastSyncAt: utils.Now(),
		}
		if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		return nil
	}

	existing.Cursor = cursor
	existing.LastSyncAt = utils.Now()
	if err := r.db.WithContext(ctx).Save(existing).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *syncCursorRepository) Delete(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCursorRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.SyncCursor{}).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
