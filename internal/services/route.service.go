package services

import (
	"context"
	"strings"

	"github.com/fieldserve/comms-gateway/internal/model"
)

type RouteAdminRepository interface {
	Create(ctx context.Context, route *model.InboundRoute) (*model.InboundRoute, error)
	List(ctx context.Context, companyID int64) ([]*model.InboundRoute, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	Delete(ctx context.Context, id int64) error
}

type UnroutedAdminRepository interface {
	List(ctx context.Context, status model.UnroutedEmailStatus, limit, offset int) ([]*model.UnroutedEmail, error)
	SetStatus(ctx context.Context, id int64, status model.UnroutedEmailStatus) error
}

// RouteService backs the tenant-admin route management endpoints.
type RouteService struct {
	routeRepo    RouteAdminRepository
	unroutedRepo UnroutedAdminRepository
}

func NewRouteService(routeRepo RouteAdminRepository, unroutedRepo UnroutedAdminRepository) *RouteService {
	return &RouteService{
		routeRepo:    routeRepo,
		unroutedRepo: unroutedRepo,
	}
}

func (s *RouteService) Create(ctx context.Context, p model.RouteCreateRequest) (*model.InboundRoute, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return s.routeRepo.Create(ctx, &model.InboundRoute{
		CompanyID:    p.CompanyID,
		RouteAddress: strings.ToLower(strings.TrimSpace(p.RouteAddress)),
		Enabled:      p.Enabled,
		Status:       model.RouteStatusActive,
	})
}

func (s *RouteService) List(ctx context.Context, companyID int64) ([]*model.InboundRoute, error) {
	return s.routeRepo.List(ctx, companyID)
}

func (s *RouteService) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.routeRepo.SetEnabled(ctx, id, enabled)
}

func (s *RouteService) Delete(ctx context.Context, id int64) error {
	return s.routeRepo.Delete(ctx, id)
}

func (s *RouteService) ListUnrouted(ctx context.Context, status model.UnroutedEmailStatus, limit, offset int) ([]*model.UnroutedEmail, error) {
	return s.unroutedRepo.List(ctx, status, limit, offset)
}

func (s *RouteService) ReviewUnrouted(ctx context.Context, id int64, status model.UnroutedEmailStatus) error {
	return s.unroutedRepo.SetStatus(ctx, id, status)
}
