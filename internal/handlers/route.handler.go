package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/fieldserve/comms-gateway/internal/model"
	xhttp "github.com/fieldserve/comms-gateway/pkg/http"
)

type RouteService interface {
	Create(ctx context.Context, p model.RouteCreateRequest) (*model.InboundRoute, error)
	List(ctx context.Context, companyID int64) ([]*model.InboundRoute, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	Delete(ctx context.Context, id int64) error
	ListUnrouted(ctx context.Context, status model.UnroutedEmailStatus, limit, offset int) ([]*model.UnroutedEmail, error)
	ReviewUnrouted(ctx context.Context, id int64, status model.UnroutedEmailStatus) error
}

type RouteHandler struct {
	svc RouteService
}

func RegisterRouteRoutes(e *router.Group, h *RouteHandler) {
	e.POST("/routes", h.CreateRoute)
	e.GET("/routes", h.ListRoutes)
	e.PATCH("/routes/{id}", h.UpdateRoute)
	e.DELETE("/routes/{id}", h.DeleteRoute)
	e.GET("/unrouted", h.ListUnrouted)
	e.POST("/unrouted/{id}/review", h.ReviewUnrouted)
}

func NewRouteHandler(svc RouteService) *RouteHandler {
	return &RouteHandler{
		svc: svc,
	}
}

type createRouteRequest struct {
	CompanyID    int64  `json:"company_id"`
	RouteAddress string `json:"route_address"`
	Enabled      *bool  `json:"enabled,omitempty"`
}

type updateRouteRequest struct {
	Enabled bool `json:"enabled"`
}

type reviewUnroutedRequest struct {
	Status string `json:"status"`
}

type routeListResponse struct {
	Items []*model.InboundRoute `json:"items"`
}

type unroutedListResponse struct {
	Items []*model.UnroutedEmail `json:"items"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *RouteHandler) CreateRoute(ctx *xhttp.RequestCtx) {
	var req createRouteRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	p := model.RouteCreateRequest{
		CompanyID:    req.CompanyID,
		RouteAddress: req.RouteAddress,
		Enabled:      enabled,
	}
	route, err := h.svc.Create(ctx, p)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 201, route)
}

func (h *RouteHandler) ListRoutes(ctx *xhttp.RequestCtx) {
	companyID, err := strconv.ParseInt(query(ctx, "company_id"), 10, 64)
	if err != nil || companyID == 0 {
		writeError(ctx, 400, "company_id is required")
		return
	}
	items, err := h.svc.List(ctx, companyID)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, routeListResponse{Items: items})
}

func (h *RouteHandler) UpdateRoute(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid route id")
		return
	}
	var req updateRouteRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if err := h.svc.SetEnabled(ctx, id, req.Enabled); err != nil {
		writeError(ctx, 404, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]bool{"enabled": req.Enabled})
}

func (h *RouteHandler) DeleteRoute(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid route id")
		return
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		writeError(ctx, 404, err.Error())
		return
	}
	ctx.Response.SetStatusCode(204)
}

func (h *RouteHandler) ListUnrouted(ctx *xhttp.RequestCtx) {
	status := model.UnroutedEmailStatus(query(ctx, "status"))
	limit, _ := strconv.Atoi(query(ctx, "limit"))
	offset, _ := strconv.Atoi(query(ctx, "offset"))

	items, err := h.svc.ListUnrouted(ctx, status, limit, offset)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, unroutedListResponse{Items: items})
}

func (h *RouteHandler) ReviewUnrouted(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid unrouted email id")
		return
	}
	var req reviewUnroutedRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	status := model.UnroutedEmailStatus(req.Status)
	switch status {
	case model.UnroutedEmailStatusReviewed, model.UnroutedEmailStatusIgnored:
	default:
		writeError(ctx, 400, "status must be reviewed or ignored")
		return
	}
	if err := h.svc.ReviewUnrouted(ctx, id, status); err != nil {
		writeError(ctx, 404, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": string(status)})
}
