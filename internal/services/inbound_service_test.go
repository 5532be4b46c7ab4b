package services

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	gateway "github.com/fieldserve/comms-gateway/internal/gateways"
	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/internal/repository"
	"github.com/fieldserve/comms-gateway/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRouteRepository struct {
	mock.Mock
}

func (m *MockRouteRepository) FindExact(ctx context.Context, destination string) (*model.InboundRoute, error) {
	args := m.Called(ctx, destination)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InboundRoute), args.Error(1)
}

func (m *MockRouteRepository) FindCatchAll(ctx context.Context, domain string) (*model.InboundRoute, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InboundRoute), args.Error(1)
}

func (m *MockRouteRepository) Ensure(ctx context.Context, route *model.InboundRoute) error {
	args := m.Called(ctx, route)
	return args.Error(0)
}

type MockCompanyRepository struct {
	mock.Mock
}

func (m *MockCompanyRepository) FindReceiveAllByDomain(ctx context.Context, domain string) (*model.Company, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByEmail(ctx context.Context, companyID int64, email string) ([]*model.Customer, error) {
	args := m.Called(ctx, companyID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Customer), args.Error(1)
}

type MockCommunicationRepository struct {
	mock.Mock
}

func (m *MockCommunicationRepository) Create(ctx context.Context, c *model.Communication) (*model.Communication, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Communication), args.Error(1)
}

func (m *MockCommunicationRepository) List(ctx context.Context, f model.CommunicationFilter) ([]*model.Communication, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Communication), args.Get(1).(int64), args.Error(2)
}

type MockUnroutedEmailRepository struct {
	mock.Mock
}

func (m *MockUnroutedEmailRepository) Create(ctx context.Context, email *model.UnroutedEmail) (*model.UnroutedEmail, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UnroutedEmail), args.Error(1)
}

type MockAttachmentRepository struct {
	mock.Mock
}

func (m *MockAttachmentRepository) Create(ctx context.Context, attachment *model.Attachment) (*model.Attachment, error) {
	args := m.Called(ctx, attachment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attachment), args.Error(1)
}

type MockContentFetcher struct {
	mock.Mock
}

func (m *MockContentFetcher) FetchContent(ctx context.Context, emailID string) (*gateway.RemoteContent, error) {
	args := m.Called(ctx, emailID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RemoteContent), args.Error(1)
}

func (m *MockContentFetcher) FetchAttachment(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockSpamClassifier struct {
	mock.Mock
}

func (m *MockSpamClassifier) Classify(ctx context.Context, from, subject, text, html string) model.SpamCheck {
	args := m.Called(ctx, from, subject, text, html)
	return args.Get(0).(model.SpamCheck)
}

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Save(companyID int64, filename string, data []byte) (string, error) {
	args := m.Called(companyID, filename, data)
	return args.String(0), args.Error(1)
}

type inboundMocks struct {
	routes      *MockRouteRepository
	companies   *MockCompanyRepository
	customers   *MockCustomerRepository
	comms       *MockCommunicationRepository
	unrouted    *MockUnroutedEmailRepository
	attachments *MockAttachmentRepository
	fetcher     *MockContentFetcher
	spam        *MockSpamClassifier
	blobs       *MockBlobStore
}

func newInboundService() (*InboundService, *inboundMocks) {
	m := &inboundMocks{
		routes:      new(MockRouteRepository),
		companies:   new(MockCompanyRepository),
		customers:   new(MockCustomerRepository),
		comms:       new(MockCommunicationRepository),
		unrouted:    new(MockUnroutedEmailRepository),
		attachments: new(MockAttachmentRepository),
		fetcher:     new(MockContentFetcher),
		spam:        new(MockSpamClassifier),
		blobs:       new(MockBlobStore),
	}
	svc := NewInboundService(
		m.routes, m.companies, m.customers, m.comms, m.unrouted,
		m.attachments, m.fetcher, m.spam, m.blobs,
		MatchPolicyMostRecentlyUpdated,
	)
	return svc, m
}

func receivedEvent(to, from, subject, text string) *webhook.Event {
	return &webhook.Event{
		Type:      webhook.EventEmailReceived,
		CreatedAt: time.Now().UTC(),
		Data: webhook.EventData{
			ID:      "em_1",
			Subject: subject,
			Text:    text,
			To:      webhook.AddressList{{Email: to}},
			From:    webhook.AddressList{{Email: from}},
		},
	}
}

func TestInboundService_ProcessReceived_ExactRoute(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := receivedEvent("support@acme.com", "jane@customer.com", "Help", "Need service")

	m.routes.On("FindExact", ctx, "support@acme.com").
		Return(&model.InboundRoute{ID: 1, CompanyID: 7, RouteAddress: "support@acme.com"}, nil)
	m.customers.On("FindByEmail", ctx, int64(7), "jane@customer.com").
		Return([]*model.Customer{{ID: 3, CompanyID: 7, Email: "jane@customer.com"}}, nil)
	m.spam.On("Classify", ctx, "jane@customer.com", "Help", "Need service", "").
		Return(model.SpamCheck{Verdict: "ham"})
	m.comms.On("Create", ctx, mock.AnythingOfType("*model.Communication")).
		Return(&model.Communication{ID: 10}, nil)

	err := svc.ProcessReceived(ctx, ev, []byte(`{"type":"email.received"}`))
	require.NoError(t, err)

	created := m.comms.Calls[0].Arguments.Get(1).(*model.Communication)
	assert.Equal(t, int64(7), created.CompanyID)
	require.NotNil(t, created.CustomerID)
	assert.Equal(t, int64(3), *created.CustomerID)
	assert.Equal(t, model.DirectionInbound, created.Direction)
	assert.Equal(t, model.CommunicationStatusDelivered, created.Status)
	assert.Equal(t, "Help", created.Subject)
	assert.NotContains(t, created.ProviderMetadata, "duplicate_customers")

	m.routes.AssertExpectations(t)
	m.comms.AssertExpectations(t)
	m.companies.AssertNotCalled(t, "FindReceiveAllByDomain", mock.Anything, mock.Anything)
}

func TestInboundService_ProcessReceived_CatchAllRoute(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := receivedEvent("random@acme.com", "jane@customer.com", "Hi", "body")

	m.routes.On("FindExact", ctx, "random@acme.com").Return(nil, repository.ErrRouteNotFound)
	m.routes.On("FindCatchAll", ctx, "acme.com").
		Return(&model.InboundRoute{ID: 2, CompanyID: 9, RouteAddress: "@acme.com"}, nil)
	m.customers.On("FindByEmail", ctx, int64(9), "jane@customer.com").Return([]*model.Customer{}, nil)
	m.spam.On("Classify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SpamCheck{Verdict: "unknown"})
	m.comms.On("Create", ctx, mock.AnythingOfType("*model.Communication")).
		Return(&model.Communication{ID: 11}, nil)

	err := svc.ProcessReceived(ctx, ev, []byte(`{}`))
	require.NoError(t, err)

	created := m.comms.Calls[0].Arguments.Get(1).(*model.Communication)
	assert.Equal(t, int64(9), created.CompanyID)
	assert.Nil(t, created.CustomerID)
}

func TestInboundService_ProcessReceived_CompanyDomainAutoRoute(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := receivedEvent("new@acme.com", "jane@customer.com", "Hi", "body")

	m.routes.On("FindExact", ctx, "new@acme.com").Return(nil, repository.ErrRouteNotFound)
	m.routes.On("FindCatchAll", ctx, "acme.com").Return(nil, repository.ErrRouteNotFound)
	m.companies.On("FindReceiveAllByDomain", ctx, "acme.com").
		Return(&model.Company{ID: 5, EmailDomain: "acme.com", EmailReceiveAll: true}, nil)
	m.routes.On("Ensure", ctx, mock.AnythingOfType("*model.InboundRoute")).Return(nil)
	m.customers.On("FindByEmail", ctx, int64(5), "jane@customer.com").Return([]*model.Customer{}, nil)
	m.spam.On("Classify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SpamCheck{Verdict: "ham"})
	m.comms.On("Create", ctx, mock.AnythingOfType("*model.Communication")).
		Return(&model.Communication{ID: 12}, nil)

	err := svc.ProcessReceived(ctx, ev, []byte(`{}`))
	require.NoError(t, err)

	ensured := m.routes.Calls[2].Arguments.Get(1).(*model.InboundRoute)
	assert.Equal(t, "new@acme.com", ensured.RouteAddress)
	assert.Equal(t, model.RouteStatusAutoCreated, ensured.Status)
	assert.True(t, ensured.Enabled)

	created := m.comms.Calls[0].Arguments.Get(1).(*model.Communication)
	assert.Equal(t, int64(5), created.CompanyID)
}

func TestInboundService_ProcessReceived_Unrouted(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := receivedEvent("nobody@unknown.com", "jane@customer.com", "Hi", "body")
	raw := []byte(`{"type":"email.received","data":{}}`)

	m.routes.On("FindExact", ctx, "nobody@unknown.com").Return(nil, repository.ErrRouteNotFound)
	m.routes.On("FindCatchAll", ctx, "unknown.com").Return(nil, repository.ErrRouteNotFound)
	m.companies.On("FindReceiveAllByDomain", ctx, "unknown.com").Return(nil, repository.ErrCompanyNotFound)
	m.unrouted.On("Create", ctx, mock.AnythingOfType("*model.UnroutedEmail")).
		Return(&model.UnroutedEmail{ID: 1}, nil)

	err := svc.ProcessReceived(ctx, ev, raw)
	require.NoError(t, err)

	parked := m.unrouted.Calls[0].Arguments.Get(1).(*model.UnroutedEmail)
	assert.Equal(t, "nobody@unknown.com", parked.ToAddress)
	assert.Equal(t, string(raw), parked.RawPayload)
	assert.Equal(t, model.UnroutedEmailStatusPending, parked.Status)

	m.comms.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInboundService_ProcessReceived_DBErrorFallsThrough(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := receivedEvent("support@acme.com", "jane@customer.com", "Hi", "body")

	m.routes.On("FindExact", ctx, "support@acme.com").Return(nil, assert.AnError)
	m.routes.On("FindCatchAll", ctx, "acme.com").
		Return(&model.InboundRoute{ID: 2, CompanyID: 4}, nil)
	m.customers.On("FindByEmail", ctx, int64(4), "jane@customer.com").Return([]*model.Customer{}, nil)
	m.spam.On("Classify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SpamCheck{Verdict: "ham"})
	m.comms.On("Create", ctx, mock.AnythingOfType("*model.Communication")).
		Return(&model.Communication{ID: 13}, nil)

	err := svc.ProcessReceived(ctx, ev, []byte(`{}`))
	require.NoError(t, err)

	created := m.comms.Calls[0].Arguments.Get(1).(*model.Communication)
	assert.Equal(t, int64(4), created.CompanyID)
}

func TestInboundService_ProcessReceived_NoDestination(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := &webhook.Event{Type: webhook.EventEmailReceived}

	err := svc.ProcessReceived(ctx, ev, []byte(`{}`))
	require.NoError(t, err)

	m.routes.AssertNotCalled(t, "FindExact", mock.Anything, mock.Anything)
	m.unrouted.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInboundService_ProcessReceived_RemoteContentFetch(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := receivedEvent("support@acme.com", "jane@customer.com", "Subject only", "")

	m.routes.On("FindExact", ctx, "support@acme.com").
		Return(&model.InboundRoute{ID: 1, CompanyID: 7}, nil)
	m.fetcher.On("FetchContent", ctx, "em_1").
		Return(&gateway.RemoteContent{Text: "fetched body", HTML: "<p>fetched</p>"}, nil)
	m.customers.On("FindByEmail", ctx, int64(7), "jane@customer.com").Return([]*model.Customer{}, nil)
	m.spam.On("Classify", ctx, mock.Anything, mock.Anything, "fetched body", "<p>fetched</p>").
		Return(model.SpamCheck{Verdict: "ham"})
	m.comms.On("Create", ctx, mock.AnythingOfType("*model.Communication")).
		Return(&model.Communication{ID: 14}, nil)

	err := svc.ProcessReceived(ctx, ev, []byte(`{}`))
	require.NoError(t, err)

	created := m.comms.Calls[0].Arguments.Get(1).(*model.Communication)
	assert.Equal(t, "fetched body", created.Body)
	assert.Equal(t, "<p>fetched</p>", created.BodyHTML)
}

func TestInboundService_ProcessReceived_FetchOutageStoresEmpty(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := receivedEvent("support@acme.com", "jane@customer.com", "Subject only", "")

	m.routes.On("FindExact", ctx, "support@acme.com").
		Return(&model.InboundRoute{ID: 1, CompanyID: 7}, nil)
	m.fetcher.On("FetchContent", ctx, "em_1").Return(nil, assert.AnError)
	m.customers.On("FindByEmail", ctx, int64(7), "jane@customer.com").Return([]*model.Customer{}, nil)
	m.spam.On("Classify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SpamCheck{Verdict: "unknown"})
	m.comms.On("Create", ctx, mock.AnythingOfType("*model.Communication")).
		Return(&model.Communication{ID: 15}, nil)

	err := svc.ProcessReceived(ctx, ev, []byte(`{}`))
	require.NoError(t, err)

	created := m.comms.Calls[0].Arguments.Get(1).(*model.Communication)
	assert.Equal(t, "Subject only", created.Subject)
	assert.Empty(t, created.Body)
}

func TestInboundService_ProcessReceived_PayloadContentSkipsFetch(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := receivedEvent("support@acme.com", "jane@customer.com", "Hi", "inline body")

	m.routes.On("FindExact", ctx, "support@acme.com").
		Return(&model.InboundRoute{ID: 1, CompanyID: 7}, nil)
	m.customers.On("FindByEmail", ctx, int64(7), "jane@customer.com").Return([]*model.Customer{}, nil)
	m.spam.On("Classify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SpamCheck{Verdict: "ham"})
	m.comms.On("Create", ctx, mock.AnythingOfType("*model.Communication")).
		Return(&model.Communication{ID: 16}, nil)

	err := svc.ProcessReceived(ctx, ev, []byte(`{}`))
	require.NoError(t, err)

	m.fetcher.AssertNotCalled(t, "FetchContent", mock.Anything, mock.Anything)
}

func TestInboundService_ProcessReceived_DuplicateCustomers(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := receivedEvent("support@acme.com", "pat@customer.com", "Hi", "body")

	m.routes.On("FindExact", ctx, "support@acme.com").
		Return(&model.InboundRoute{ID: 1, CompanyID: 7}, nil)
	m.customers.On("FindByEmail", ctx, int64(7), "pat@customer.com").
		Return([]*model.Customer{
			{ID: 30, CompanyID: 7},
			{ID: 20, CompanyID: 7},
			{ID: 10, CompanyID: 7},
		}, nil)
	m.spam.On("Classify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SpamCheck{Verdict: "ham"})
	m.comms.On("Create", ctx, mock.AnythingOfType("*model.Communication")).
		Return(&model.Communication{ID: 17}, nil)

	err := svc.ProcessReceived(ctx, ev, []byte(`{}`))
	require.NoError(t, err)

	created := m.comms.Calls[0].Arguments.Get(1).(*model.Communication)
	require.NotNil(t, created.CustomerID)
	assert.Equal(t, int64(30), *created.CustomerID)

	dup, ok := created.ProviderMetadata["duplicate_customers"].(*model.DuplicateCustomers)
	require.True(t, ok)
	assert.Equal(t, int64(30), dup.PrimaryCustomerID)
	assert.Equal(t, []int64{20, 10}, dup.OtherCustomerIDs)
}

func TestInboundService_ProcessReceived_Attachments(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := receivedEvent("support@acme.com", "jane@customer.com", "Hi", "body")
	ev.Data.Attachments = []webhook.Attachment{
		{Filename: "inline.pdf", ContentType: "application/pdf", Content: base64.StdEncoding.EncodeToString([]byte("inline bytes"))},
		{Filename: "remote.jpg", ContentType: "image/jpeg", URL: "https://provider.example/att/2"},
		{Filename: "broken.bin"},
	}

	m.routes.On("FindExact", ctx, "support@acme.com").
		Return(&model.InboundRoute{ID: 1, CompanyID: 7}, nil)
	m.customers.On("FindByEmail", ctx, int64(7), "jane@customer.com").Return([]*model.Customer{}, nil)
	m.spam.On("Classify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SpamCheck{Verdict: "ham"})
	m.comms.On("Create", ctx, mock.AnythingOfType("*model.Communication")).
		Return(&model.Communication{ID: 18}, nil)

	m.fetcher.On("FetchAttachment", ctx, "https://provider.example/att/2").
		Return([]byte("remote bytes"), nil)
	m.blobs.On("Save", int64(7), "inline.pdf", []byte("inline bytes")).Return("7/1_inline.pdf", nil)
	m.blobs.On("Save", int64(7), "remote.jpg", []byte("remote bytes")).Return("7/2_remote.jpg", nil)
	m.attachments.On("Create", ctx, mock.AnythingOfType("*model.Attachment")).
		Return(&model.Attachment{ID: 1}, nil).Twice()

	err := svc.ProcessReceived(ctx, ev, []byte(`{}`))
	require.NoError(t, err)

	// the attachment with no content and no url is skipped, not fatal
	m.attachments.AssertNumberOfCalls(t, "Create", 2)
}

func TestInboundService_ProcessReceived_AttachmentFailureIsPartial(t *testing.T) {
	svc, m := newInboundService()
	ctx := context.Background()

	ev := receivedEvent("support@acme.com", "jane@customer.com", "Hi", "body")
	ev.Data.Attachments = []webhook.Attachment{
		{Filename: "bad.jpg", URL: "https://provider.example/att/bad"},
		{Filename: "good.pdf", Content: base64.StdEncoding.EncodeToString([]byte("ok"))},
	}

	m.routes.On("FindExact", ctx, "support@acme.com").
		Return(&model.InboundRoute{ID: 1, CompanyID: 7}, nil)
	m.customers.On("FindByEmail", ctx, int64(7), "jane@customer.com").Return([]*model.Customer{}, nil)
	m.spam.On("Classify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.SpamCheck{Verdict: "ham"})
	m.comms.On("Create", ctx, mock.AnythingOfType("*model.Communication")).
		Return(&model.Communication{ID: 19}, nil)

	m.fetcher.On("FetchAttachment", ctx, "https://provider.example/att/bad").Return(nil, assert.AnError)
	m.blobs.On("Save", int64(7), "good.pdf", []byte("ok")).Return("7/3_good.pdf", nil)
	m.attachments.On("Create", ctx, mock.AnythingOfType("*model.Attachment")).
		Return(&model.Attachment{ID: 2}, nil).Once()

	err := svc.ProcessReceived(ctx, ev, []byte(`{}`))
	require.NoError(t, err)

	m.attachments.AssertNumberOfCalls(t, "Create", 1)
}
