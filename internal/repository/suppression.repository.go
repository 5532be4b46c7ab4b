package repository

import (
	"context"
	"strings"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/pkg/pg"
	"gorm.io/gorm/clause"
)

type SuppressionRepository struct {
	*pg.DB
}

func NewSuppressionRepository(db *pg.DB) *SuppressionRepository {
	return &SuppressionRepository{DB: db}
}

// Upsert records a suppression for the recipient. Repeated signals for the
// same company/email pair keep the first recorded reason.
func (r *SuppressionRepository) Upsert(ctx context.Context, suppression *model.Suppression) (*model.Suppression, error) {
	entity := toSuppressionEntity(suppression)
	entity.Email = strings.ToLower(strings.TrimSpace(entity.Email))
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_id"}, {Name: "email"}},
			DoNothing: true,
		}).
		Create(entity).Error
	if err != nil {
		return nil, err
	}
	return toSuppressionModel(entity), nil
}

func (r *SuppressionRepository) IsSuppressed(ctx context.Context, companyID int64, email string) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&SuppressionEntity{}).
		Where("company_id = ? AND email = ?", companyID, strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *SuppressionRepository) List(ctx context.Context, companyID int64) ([]*model.Suppression, error) {
	var entities []*SuppressionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	models := make([]*model.Suppression, len(entities))
	for i, e := range entities {
		models[i] = toSuppressionModel(e)
	}
	return models, nil
}
