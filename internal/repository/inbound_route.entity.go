package repository

import (
	"time"

	"github.com/fieldserve/comms-gateway/internal/model"
)

type InboundRouteEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	CompanyID    int64     `db:"company_id"    gorm:"column:company_id;not null;index"`
	RouteAddress string    `db:"route_address" gorm:"column:route_address;not null;uniqueIndex"`
	Enabled      bool      `db:"enabled"       gorm:"column:enabled;not null;default:true"`
	Status       string    `db:"status"        gorm:"column:status;not null"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (InboundRouteEntity) TableName() string {
	return "inbound_routes"
}

func toInboundRouteEntity(m *model.InboundRoute) *InboundRouteEntity {
	if m == nil {
		return nil
	}
	return &InboundRouteEntity{
		ID:           m.ID,
		CompanyID:    m.CompanyID,
		RouteAddress: m.RouteAddress,
		Enabled:      m.Enabled,
		Status:       string(m.Status),
		CreatedAt:    m.CreatedAt,
	}
}

func toInboundRouteModel(e *InboundRouteEntity) *model.InboundRoute {
	if e == nil {
		return nil
	}
	return &model.InboundRoute{
		ID:           e.ID,
		CompanyID:    e.CompanyID,
		RouteAddress: e.RouteAddress,
		Enabled:      e.Enabled,
		Status:       model.RouteStatus(e.Status),
		CreatedAt:    e.CreatedAt,
	}
}

func toInboundRouteModels(entities []*InboundRouteEntity) []*model.InboundRoute {
	if entities == nil {
		return nil
	}
	models := make([]*model.InboundRoute, len(entities))
	for i, e := range entities {
		models[i] = toInboundRouteModel(e)
	}
	return models
}
