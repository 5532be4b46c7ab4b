package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a communication does not exist.
	ErrNotFound = errors.New("communication not found")
)

type CommunicationRepository struct {
	*pg.DB
}

func NewCommunicationRepository(db *pg.DB) *CommunicationRepository {
	return &CommunicationRepository{
		db,
	}
}

func (r *CommunicationRepository) Create(ctx context.Context, c *model.Communication) (*model.Communication, error) {
	entity := toCommunicationEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCommunicationModel(entity), nil
}

func (r *CommunicationRepository) GetByID(ctx context.Context, id int64) (*model.Communication, error) {
	var entity CommunicationEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toCommunicationModel(&entity), nil
}

// GetByProviderMessageID looks a communication up by the provider-side
// message id carried in lifecycle webhooks.
func (r *CommunicationRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*model.Communication, error) {
	var entity CommunicationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		Order("id DESC").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toCommunicationModel(&entity), nil
}

func (r *CommunicationRepository) List(ctx context.Context, f model.CommunicationFilter) ([]*model.Communication, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&CommunicationEntity{})

	if f.CompanyID != nil {
		q = q.Where("company_id = ?", *f.CompanyID)
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.Direction != nil {
		q = q.Where("direction = ?", string(*f.Direction))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*CommunicationEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toCommunicationModels(entities), total, nil
}

// MarkSent records a successful provider hand-off.
func (r *CommunicationRepository) MarkSent(ctx context.Context, id int64, providerMessageID string, at time.Time) error {
	return r.updateByID(ctx, id, map[string]interface{}{
		"status":              string(model.CommunicationStatusSent),
		"provider_message_id": providerMessageID,
		"sent_at":             gorm.Expr("COALESCE(sent_at, ?)", at),
	})
}

func (r *CommunicationRepository) MarkFailed(ctx context.Context, id int64) error {
	return r.updateByID(ctx, id, map[string]interface{}{
		"status": string(model.CommunicationStatusFailed),
	})
}

// MarkProviderSent is the webhook-driven variant of MarkSent, keyed by the
// provider message id instead of the row id.
func (r *CommunicationRepository) MarkProviderSent(ctx context.Context, providerMessageID string, at time.Time) error {
	return r.updateByProviderMessageID(ctx, providerMessageID, map[string]interface{}{
		"status":  string(model.CommunicationStatusSent),
		"sent_at": gorm.Expr("COALESCE(sent_at, ?)", at),
	})
}

// MarkDelivered is an absolute update: webhook deliveries may arrive out of
// order, so the write does not depend on the current status.
func (r *CommunicationRepository) MarkDelivered(ctx context.Context, providerMessageID string, at time.Time) error {
	return r.updateByProviderMessageID(ctx, providerMessageID, map[string]interface{}{
		"status":       string(model.CommunicationStatusDelivered),
		"delivered_at": gorm.Expr("COALESCE(delivered_at, ?)", at),
	})
}

// MarkOpened increments the open counter on every delivery of the event and
// sets the first-occurrence timestamp only once.
func (r *CommunicationRepository) MarkOpened(ctx context.Context, providerMessageID string, at time.Time) error {
	return r.updateByProviderMessageID(ctx, providerMessageID, map[string]interface{}{
		"open_count": gorm.Expr("open_count + 1"),
		"opened_at":  gorm.Expr("COALESCE(opened_at, ?)", at),
	})
}

func (r *CommunicationRepository) MarkClicked(ctx context.Context, providerMessageID string, at time.Time) error {
	return r.updateByProviderMessageID(ctx, providerMessageID, map[string]interface{}{
		"click_count": gorm.Expr("click_count + 1"),
		"clicked_at":  gorm.Expr("COALESCE(clicked_at, ?)", at),
	})
}

func (r *CommunicationRepository) MarkBounced(ctx context.Context, providerMessageID string, at time.Time) error {
	return r.updateByProviderMessageID(ctx, providerMessageID, map[string]interface{}{
		"status":     string(model.CommunicationStatusBounced),
		"bounced_at": gorm.Expr("COALESCE(bounced_at, ?)", at),
	})
}

func (r *CommunicationRepository) MarkComplained(ctx context.Context, providerMessageID string) error {
	return r.updateByProviderMessageID(ctx, providerMessageID, map[string]interface{}{
		"status": string(model.CommunicationStatusComplained),
	})
}

func (r *CommunicationRepository) updateByID(ctx context.Context, id int64, values map[string]interface{}) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&CommunicationEntity{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CommunicationRepository) updateByProviderMessageID(ctx context.Context, providerMessageID string, values map[string]interface{}) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&CommunicationEntity{}).
		Where("provider_message_id = ?", providerMessageID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
