package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRouteService struct {
	mock.Mock
}

func (m *MockRouteService) Create(ctx context.Context, p model.RouteCreateRequest) (*model.InboundRoute, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InboundRoute), args.Error(1)
}

func (m *MockRouteService) List(ctx context.Context, companyID int64) ([]*model.InboundRoute, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.InboundRoute), args.Error(1)
}

func (m *MockRouteService) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	args := m.Called(ctx, id, enabled)
	return args.Error(0)
}

func (m *MockRouteService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRouteService) ListUnrouted(ctx context.Context, status model.UnroutedEmailStatus, limit, offset int) ([]*model.UnroutedEmail, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UnroutedEmail), args.Error(1)
}

func (m *MockRouteService) ReviewUnrouted(ctx context.Context, id int64, status model.UnroutedEmailStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func TestRouteHandler_CreateRoute(t *testing.T) {
	t.Run("successful create", func(t *testing.T) {
		svc := new(MockRouteService)
		handler := NewRouteHandler(svc)

		bodyBytes, _ := json.Marshal(createRouteRequest{
			CompanyID:    1,
			RouteAddress: "support@acmefield.com",
		})

		expected := &model.InboundRoute{
			ID:           10,
			CompanyID:    1,
			RouteAddress: "support@acmefield.com",
			Enabled:      true,
		}

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.RouteCreateRequest) bool {
			return p.CompanyID == 1 && p.RouteAddress == "support@acmefield.com" && p.Enabled
		})).Return(expected, nil)

		ctx := setupTestContext("POST", "/routes", bodyBytes)
		handler.CreateRoute(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.InboundRoute
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(10), response.ID)

		svc.AssertExpectations(t)
	})

	t.Run("explicit disabled", func(t *testing.T) {
		svc := new(MockRouteService)
		handler := NewRouteHandler(svc)

		disabled := false
		bodyBytes, _ := json.Marshal(createRouteRequest{
			CompanyID:    1,
			RouteAddress: "@acmefield.com",
			Enabled:      &disabled,
		})

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.RouteCreateRequest) bool {
			return !p.Enabled
		})).Return(&model.InboundRoute{ID: 11}, nil)

		ctx := setupTestContext("POST", "/routes", bodyBytes)
		handler.CreateRoute(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("validation error", func(t *testing.T) {
		svc := new(MockRouteService)
		handler := NewRouteHandler(svc)

		bodyBytes, _ := json.Marshal(createRouteRequest{CompanyID: 1, RouteAddress: "no-at-sign"})
		svc.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("route_address must be an email address or @domain catch-all"))

		ctx := setupTestContext("POST", "/routes", bodyBytes)
		handler.CreateRoute(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestRouteHandler_ListRoutes(t *testing.T) {
	t.Run("successful list", func(t *testing.T) {
		svc := new(MockRouteService)
		handler := NewRouteHandler(svc)

		svc.On("List", mock.Anything, int64(7)).Return([]*model.InboundRoute{
			{ID: 1, CompanyID: 7, RouteAddress: "support@acmefield.com"},
		}, nil)

		ctx := setupTestContext("GET", "/routes?company_id=7", nil)
		handler.ListRoutes(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response routeListResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Len(t, response.Items, 1)

		svc.AssertExpectations(t)
	})

	t.Run("missing company_id", func(t *testing.T) {
		svc := new(MockRouteService)
		handler := NewRouteHandler(svc)

		ctx := setupTestContext("GET", "/routes", nil)
		handler.ListRoutes(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "List")
	})
}

func TestRouteHandler_UpdateRoute(t *testing.T) {
	t.Run("disable route", func(t *testing.T) {
		svc := new(MockRouteService)
		handler := NewRouteHandler(svc)

		svc.On("SetEnabled", mock.Anything, int64(5), false).Return(nil)

		bodyBytes, _ := json.Marshal(updateRouteRequest{Enabled: false})
		ctx := setupTestContext("PATCH", "/routes/5", bodyBytes)
		ctx.SetUserValue("id", "5")
		handler.UpdateRoute(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("unknown route", func(t *testing.T) {
		svc := new(MockRouteService)
		handler := NewRouteHandler(svc)

		svc.On("SetEnabled", mock.Anything, int64(99), true).Return(errors.New("route not found"))

		bodyBytes, _ := json.Marshal(updateRouteRequest{Enabled: true})
		ctx := setupTestContext("PATCH", "/routes/99", bodyBytes)
		ctx.SetUserValue("id", "99")
		handler.UpdateRoute(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := new(MockRouteService)
		handler := NewRouteHandler(svc)

		ctx := setupTestContext("PATCH", "/routes/abc", nil)
		ctx.SetUserValue("id", "abc")
		handler.UpdateRoute(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "SetEnabled")
	})
}

func TestRouteHandler_DeleteRoute(t *testing.T) {
	svc := new(MockRouteService)
	handler := NewRouteHandler(svc)

	svc.On("Delete", mock.Anything, int64(5)).Return(nil)

	ctx := setupTestContext("DELETE", "/routes/5", nil)
	ctx.SetUserValue("id", "5")
	handler.DeleteRoute(ctx)

	assert.Equal(t, 204, ctx.Response.StatusCode())
	svc.AssertExpectations(t)
}

func TestRouteHandler_ListUnrouted(t *testing.T) {
	svc := new(MockRouteService)
	handler := NewRouteHandler(svc)

	svc.On("ListUnrouted", mock.Anything, model.UnroutedEmailStatusPending, 20, 0).
		Return([]*model.UnroutedEmail{{ID: 1, ToAddress: "nobody@acmefield.com"}}, nil)

	ctx := setupTestContext("GET", "/unrouted?status=pending&limit=20", nil)
	handler.ListUnrouted(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response unroutedListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Len(t, response.Items, 1)

	svc.AssertExpectations(t)
}

func TestRouteHandler_ReviewUnrouted(t *testing.T) {
	t.Run("mark reviewed", func(t *testing.T) {
		svc := new(MockRouteService)
		handler := NewRouteHandler(svc)

		svc.On("ReviewUnrouted", mock.Anything, int64(3), model.UnroutedEmailStatusReviewed).Return(nil)

		bodyBytes, _ := json.Marshal(reviewUnroutedRequest{Status: "reviewed"})
		ctx := setupTestContext("POST", "/unrouted/3/review", bodyBytes)
		ctx.SetUserValue("id", "3")
		handler.ReviewUnrouted(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("rejects pending", func(t *testing.T) {
		svc := new(MockRouteService)
		handler := NewRouteHandler(svc)

		bodyBytes, _ := json.Marshal(reviewUnroutedRequest{Status: "pending"})
		ctx := setupTestContext("POST", "/unrouted/3/review", bodyBytes)
		ctx.SetUserValue("id", "3")
		handler.ReviewUnrouted(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "ReviewUnrouted")
	})
}
