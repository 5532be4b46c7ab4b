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
	ErrCompanyNotFound = errors.New("company not found")
)

type CompanyRepository struct {
	*pg.DB
}

func NewCompanyRepository(db *pg.DB) *CompanyRepository {
	return &CompanyRepository{
		db,
	}
}

func (r *CompanyRepository) Create(ctx context.Context, c *model.Company) (*model.Company, error) {
	entity := toCompanyEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCompanyModel(entity), nil
}

func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*model.Company, error) {
	var entity CompanyEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return toCompanyModel(&entity), nil
}

// FindReceiveAllByDomain returns the company claiming all mail for a domain.
func (r *CompanyRepository) FindReceiveAllByDomain(ctx context.Context, domain string) (*model.Company, error) {
	var entity CompanyEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("email_domain = ? AND email_receive_all = ?", strings.ToLower(domain), true).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return toCompanyModel(&entity), nil
}
