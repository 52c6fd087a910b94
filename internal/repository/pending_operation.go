package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type pendingOperationRepository struct {
	db *gorm.DB
}

func NewPendingOperationRepository(db *gorm.DB) interfaces.PendingOperationRepository {
	return &pendingOperationRepository{
		db: db,
	}
}

// EnqueueWithEmail inserts the operation and saves the mutated email row in
// one transaction. This is the shared transactional boundary between the
// UI-facing path and the sync cycle.
func (r *pendingOperationRepository) EnqueueWithEmail(ctx context.Context, op *models.PendingOperation, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingOperationRepository.EnqueueWithEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(op).Error; err != nil {
			return err
		}
		if email != nil {
			if err := tx.Save(email).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *pendingOperationRepository) EnqueueBatchWithEmails(ctx context.Context, ops []*models.PendingOperation, emails []*models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingOperationRepository.EnqueueBatchWithEmails")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if err := tx.Create(op).Error; err != nil {
				return err
			}
		}
		for _, email := range emails {
			if err := tx.Save(email).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *pendingOperationRepository) GetByID(ctx context.Context, id string) (*models.PendingOperation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingOperationRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var op models.PendingOperation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&op).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &op, nil
}

// ListPendingByAccount returns pending operations in creation order
func (r *pendingOperationRepository) ListPendingByAccount(ctx context.Context, accountID string) ([]*models.PendingOperation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingOperationRepository.ListPendingByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var ops []*models.PendingOperation
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, enum.OperationStatusPending).
		Order("created_at ASC").
		Find(&ops).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return ops, nil
}

func (r *pendingOperationRepository) ListByAccount(ctx context.Context, accountID string, status enum.OperationStatus, limit int) ([]*models.PendingOperation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingOperationRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var ops []*models.PendingOperation
	if err := query.Order("created_at DESC").Limit(limit).Find(&ops).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return ops, nil
}

func (r *pendingOperationRepository) PendingEmailIDs(ctx context.Context, accountID string) (map[string]bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingOperationRepository.PendingEmailIDs")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.PendingOperation{}).
		Where("account_id = ? AND status = ?", accountID, enum.OperationStatusPending).
		Distinct().
		Pluck("email_id", &ids).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

func (r *pendingOperationRepository) Update(ctx context.Context, op *models.PendingOperation) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingOperationRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Save(op).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
