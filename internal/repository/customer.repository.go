package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	entity := toCustomerEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCustomerModel(entity), nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

// FindByEmail returns every customer of a company sharing an email address,
// case-insensitive, most recently updated first. Multiple rows are a
// duplicate-detection signal for the caller, not an error.
func (r *CustomerRepository) FindByEmail(ctx context.Context, companyID int64, email string) ([]*model.Customer, error) {
	var entities []*CustomerEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("company_id = ? AND LOWER(email) = ?", companyID, strings.ToLower(strings.TrimSpace(email))).
		Order("updated_at DESC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toCustomerModels(entities), nil
}
