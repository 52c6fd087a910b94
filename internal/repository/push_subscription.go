package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type pushSubscriptionRepository struct {
	db *gorm.DB
}

func NewPushSubscriptionRepository(db *gorm.DB) interfaces.PushSubscriptionRepository {
	return &pushSubscriptionRepository{
		db: db,
	}
}

func (r *pushSubscriptionRepository) Create(ctx context.Context, sub *models.PushSubscription) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pushSubscriptionRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *pushSubscriptionRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.PushSubscription, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pushSubscriptionRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var subs []*models.PushSubscription
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Find(&subs).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return subs, nil
}

func (r *pushSubscriptionRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pushSubscriptionRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).
		Delete(&models.PushSubscription{}, "id = ?", id).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
