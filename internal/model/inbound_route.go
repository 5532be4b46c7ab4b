package model

import (
	"errors"
	"strings"
	"time"
)

// RouteStatus tracks how a route came to exist.
type RouteStatus string

const (
	RouteStatusActive      RouteStatus = "active"
	RouteStatusAutoCreated RouteStatus = "auto_created"
	RouteStatusDisabled    RouteStatus = "disabled"
)

// InboundRoute maps a destination address, or a domain catch-all of the form
// "@domain", to the owning company. Enabled routes are unique per address.
type InboundRoute struct {
	ID           int64       `json:"id"`
	CompanyID    int64       `json:"company_id"`
	RouteAddress string      `json:"route_address"`
	Enabled      bool        `json:"enabled"`
	Status       RouteStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (InboundRoute) TableName() string { return "inbound_routes" }

// IsCatchAll reports whether the route matches any local part at a domain.
func (r InboundRoute) IsCatchAll() bool {
	return strings.HasPrefix(r.RouteAddress, "@")
}

// RouteCreateRequest is the input for creating a route via the admin API.
type RouteCreateRequest struct {
	CompanyID    int64
	RouteAddress string
	Enabled      bool
}

func (p RouteCreateRequest) Validate() error {
	if p.CompanyID == 0 {
		return errors.New("company_id is required")
	}
	addr := strings.TrimSpace(p.RouteAddress)
	if addr == "" {
		return errors.New("route_address is required")
	}
	if !strings.Contains(addr, "@") {
		return errors.New("route_address must be an email address or @domain catch-all")
	}
	return nil
}
