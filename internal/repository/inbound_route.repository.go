package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrRouteNotFound is returned when no enabled route matches.
	ErrRouteNotFound = errors.New("inbound route not found")
)

type InboundRouteRepository struct {
	*pg.DB
}

func NewInboundRouteRepository(db *pg.DB) *InboundRouteRepository {
	return &InboundRouteRepository{
		db,
	}
}

// FindExact returns the enabled route whose address equals destination.
func (r *InboundRouteRepository) FindExact(ctx context.Context, destination string) (*model.InboundRoute, error) {
	var entity InboundRouteEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("route_address = ? AND enabled = ?", strings.ToLower(destination), true).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}
	return toInboundRouteModel(&entity), nil
}

// FindCatchAll returns the enabled "@domain" route for a domain.
func (r *InboundRouteRepository) FindCatchAll(ctx context.Context, domain string) (*model.InboundRoute, error) {
	return r.FindExact(ctx, "@"+strings.ToLower(domain))
}

func (r *InboundRouteRepository) Create(ctx context.Context, route *model.InboundRoute) (*model.InboundRoute, error) {
	entity := toInboundRouteEntity(route)
	entity.RouteAddress = strings.ToLower(entity.RouteAddress)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toInboundRouteModel(entity), nil
}

// Ensure creates the route if no row with the same address exists yet.
// Safe to race: the auto-created row is advisory and last-writer-wins.
func (r *InboundRouteRepository) Ensure(ctx context.Context, route *model.InboundRoute) error {
	entity := toInboundRouteEntity(route)
	entity.RouteAddress = strings.ToLower(entity.RouteAddress)

	return r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "route_address"}},
			DoNothing: true,
		}).
		Create(entity).Error
}

func (r *InboundRouteRepository) List(ctx context.Context, companyID int64) ([]*model.InboundRoute, error) {
	var entities []*InboundRouteEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("route_address ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toInboundRouteModels(entities), nil
}

func (r *InboundRouteRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	status := model.RouteStatusActive
	if !enabled {
		status = model.RouteStatusDisabled
	}
	res := r.Write(ctx).WithContext(ctx).
		Model(&InboundRouteEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"enabled": enabled, "status": string(status)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRouteNotFound
	}
	return nil
}

func (r *InboundRouteRepository) Delete(ctx context.Context, id int64) error {
	res := r.Write(ctx).WithContext(ctx).Delete(&InboundRouteEntity{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRouteNotFound
	}
	return nil
}
