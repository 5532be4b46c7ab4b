package repository

import (
	"context"
	"errors"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/pkg/pg"
	"gorm.io/gorm"
)

var ErrUnroutedEmailNotFound = errors.New("unrouted email not found")

type UnroutedEmailRepository struct {
	*pg.DB
}

func NewUnroutedEmailRepository(db *pg.DB) *UnroutedEmailRepository {
	return &UnroutedEmailRepository{DB: db}
}

func (r *UnroutedEmailRepository) Create(ctx context.Context, email *model.UnroutedEmail) (*model.UnroutedEmail, error) {
	entity := toUnroutedEmailEntity(email)
	if entity.Status == "" {
		entity.Status = string(model.UnroutedEmailStatusPending)
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toUnroutedEmailModel(entity), nil
}

func (r *UnroutedEmailRepository) GetByID(ctx context.Context, id int64) (*model.UnroutedEmail, error) {
	var entity UnroutedEmailEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnroutedEmailNotFound
		}
		return nil, err
	}
	return toUnroutedEmailModel(&entity), nil
}

func (r *UnroutedEmailRepository) List(ctx context.Context, status model.UnroutedEmailStatus, limit, offset int) ([]*model.UnroutedEmail, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.Read(ctx).WithContext(ctx).Model(&UnroutedEmailEntity{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var entities []*UnroutedEmailEntity
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toUnroutedEmailModels(entities), nil
}

func (r *UnroutedEmailRepository) SetStatus(ctx context.Context, id int64, status model.UnroutedEmailStatus) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&UnroutedEmailEntity{}).
		Where("id = ?", id).
		Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUnroutedEmailNotFound
	}
	return nil
}
