package services

import (
	"context"
	"testing"
	"time"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/internal/repository"
	"github.com/fieldserve/comms-gateway/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLifecycleRepository struct {
	mock.Mock
}

func (m *MockLifecycleRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*model.Communication, error) {
	args := m.Called(ctx, providerMessageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Communication), args.Error(1)
}

func (m *MockLifecycleRepository) MarkProviderSent(ctx context.Context, providerMessageID string, at time.Time) error {
	args := m.Called(ctx, providerMessageID, at)
	return args.Error(0)
}

func (m *MockLifecycleRepository) MarkDelivered(ctx context.Context, providerMessageID string, at time.Time) error {
	args := m.Called(ctx, providerMessageID, at)
	return args.Error(0)
}

func (m *MockLifecycleRepository) MarkOpened(ctx context.Context, providerMessageID string, at time.Time) error {
	args := m.Called(ctx, providerMessageID, at)
	return args.Error(0)
}

func (m *MockLifecycleRepository) MarkClicked(ctx context.Context, providerMessageID string, at time.Time) error {
	args := m.Called(ctx, providerMessageID, at)
	return args.Error(0)
}

func (m *MockLifecycleRepository) MarkBounced(ctx context.Context, providerMessageID string, at time.Time) error {
	args := m.Called(ctx, providerMessageID, at)
	return args.Error(0)
}

func (m *MockLifecycleRepository) MarkComplained(ctx context.Context, providerMessageID string) error {
	args := m.Called(ctx, providerMessageID)
	return args.Error(0)
}

type MockSuppressionRepository struct {
	mock.Mock
}

func (m *MockSuppressionRepository) Upsert(ctx context.Context, suppression *model.Suppression) (*model.Suppression, error) {
	args := m.Called(ctx, suppression)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Suppression), args.Error(1)
}

func lifecycleEvent(eventType, emailID, to string) *webhook.Event {
	return &webhook.Event{
		Type:      eventType,
		CreatedAt: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		Data: webhook.EventData{
			EmailID: emailID,
			To:      webhook.AddressList{{Email: to}},
		},
	}
}

func TestLifecycleService_HandleEvent_Delivered(t *testing.T) {
	comms := new(MockLifecycleRepository)
	supp := new(MockSuppressionRepository)
	svc := NewLifecycleService(comms, supp)
	ctx := context.Background()

	ev := lifecycleEvent(webhook.EventEmailDelivered, "em_1", "jane@customer.com")
	comms.On("MarkDelivered", ctx, "em_1", ev.CreatedAt).Return(nil)

	require.NoError(t, svc.HandleEvent(ctx, ev))
	comms.AssertExpectations(t)
	supp.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleEvent_Opened(t *testing.T) {
	comms := new(MockLifecycleRepository)
	supp := new(MockSuppressionRepository)
	svc := NewLifecycleService(comms, supp)
	ctx := context.Background()

	ev := lifecycleEvent(webhook.EventEmailOpened, "em_1", "jane@customer.com")
	comms.On("MarkOpened", ctx, "em_1", ev.CreatedAt).Return(nil)

	require.NoError(t, svc.HandleEvent(ctx, ev))
	require.NoError(t, svc.HandleEvent(ctx, ev))

	comms.AssertNumberOfCalls(t, "MarkOpened", 2)
}

func TestLifecycleService_HandleEvent_BounceSuppresses(t *testing.T) {
	comms := new(MockLifecycleRepository)
	supp := new(MockSuppressionRepository)
	svc := NewLifecycleService(comms, supp)
	ctx := context.Background()

	ev := lifecycleEvent(webhook.EventEmailBounced, "em_2", "Jane@Customer.com")
	comms.On("MarkBounced", ctx, "em_2", ev.CreatedAt).Return(nil)
	comms.On("GetByProviderMessageID", ctx, "em_2").
		Return(&model.Communication{ID: 1, CompanyID: 7}, nil)
	supp.On("Upsert", ctx, mock.AnythingOfType("*model.Suppression")).
		Return(&model.Suppression{ID: 1}, nil)

	require.NoError(t, svc.HandleEvent(ctx, ev))

	entry := supp.Calls[0].Arguments.Get(1).(*model.Suppression)
	assert.Equal(t, int64(7), entry.CompanyID)
	assert.Equal(t, "jane@customer.com", entry.Email)
	assert.Equal(t, model.SuppressionReasonBounce, entry.Reason)
	assert.Equal(t, model.SuppressionSourceWebhook, entry.Source)
}

func TestLifecycleService_HandleEvent_ComplaintSuppressesViaTags(t *testing.T) {
	comms := new(MockLifecycleRepository)
	supp := new(MockSuppressionRepository)
	svc := NewLifecycleService(comms, supp)
	ctx := context.Background()

	// Communication row is gone; the company comes from the payload tags.
	ev := lifecycleEvent(webhook.EventEmailComplained, "em_3", "jane@customer.com")
	ev.Data.Tags = webhook.Tags{"company_id": "42"}

	comms.On("MarkComplained", ctx, "em_3").Return(repository.ErrNotFound)
	comms.On("GetByProviderMessageID", ctx, "em_3").Return(nil, repository.ErrNotFound)
	supp.On("Upsert", ctx, mock.AnythingOfType("*model.Suppression")).
		Return(&model.Suppression{ID: 2}, nil)

	require.NoError(t, svc.HandleEvent(ctx, ev))

	entry := supp.Calls[0].Arguments.Get(1).(*model.Suppression)
	assert.Equal(t, int64(42), entry.CompanyID)
	assert.Equal(t, model.SuppressionReasonComplaint, entry.Reason)
}

func TestLifecycleService_HandleEvent_BounceWithoutCompanyDropsSuppression(t *testing.T) {
	comms := new(MockLifecycleRepository)
	supp := new(MockSuppressionRepository)
	svc := NewLifecycleService(comms, supp)
	ctx := context.Background()

	ev := lifecycleEvent(webhook.EventEmailBounced, "em_4", "jane@customer.com")
	comms.On("MarkBounced", ctx, "em_4", ev.CreatedAt).Return(repository.ErrNotFound)
	comms.On("GetByProviderMessageID", ctx, "em_4").Return(nil, repository.ErrNotFound)

	require.NoError(t, svc.HandleEvent(ctx, ev))
	supp.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleEvent_UnknownCommunicationSettles(t *testing.T) {
	comms := new(MockLifecycleRepository)
	supp := new(MockSuppressionRepository)
	svc := NewLifecycleService(comms, supp)
	ctx := context.Background()

	ev := lifecycleEvent(webhook.EventEmailDelivered, "em_missing", "jane@customer.com")
	comms.On("MarkDelivered", ctx, "em_missing", ev.CreatedAt).Return(repository.ErrNotFound)

	require.NoError(t, svc.HandleEvent(ctx, ev))
}

func TestLifecycleService_HandleEvent_UnknownType(t *testing.T) {
	comms := new(MockLifecycleRepository)
	supp := new(MockSuppressionRepository)
	svc := NewLifecycleService(comms, supp)
	ctx := context.Background()

	ev := lifecycleEvent("email.mystery", "em_5", "jane@customer.com")

	require.NoError(t, svc.HandleEvent(ctx, ev))
	comms.AssertNotCalled(t, "MarkDelivered", mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleEvent_MissingMessageID(t *testing.T) {
	comms := new(MockLifecycleRepository)
	supp := new(MockSuppressionRepository)
	svc := NewLifecycleService(comms, supp)
	ctx := context.Background()

	ev := &webhook.Event{Type: webhook.EventEmailDelivered}

	require.NoError(t, svc.HandleEvent(ctx, ev))
	comms.AssertNotCalled(t, "MarkDelivered", mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_HandleEvent_RepositoryError(t *testing.T) {
	comms := new(MockLifecycleRepository)
	supp := new(MockSuppressionRepository)
	svc := NewLifecycleService(comms, supp)
	ctx := context.Background()

	ev := lifecycleEvent(webhook.EventEmailDelivered, "em_6", "jane@customer.com")
	comms.On("MarkDelivered", ctx, "em_6", ev.CreatedAt).Return(assert.AnError)

	assert.Error(t, svc.HandleEvent(ctx, ev))
}
