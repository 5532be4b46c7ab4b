package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/fieldserve/comms-gateway/internal/gateways"
	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/internal/repository"
	"github.com/fieldserve/comms-gateway/internal/webhook"
	"github.com/fieldserve/comms-gateway/pkg/logger"
	"github.com/fieldserve/comms-gateway/pkg/prom"
)

// Resolution phases reported to metrics.
const (
	PhaseExact    = "exact"
	PhaseCatchAll = "catch_all"
	PhaseCompany  = "company_domain"
	PhaseUnrouted = "unrouted"
)

// Duplicate-customer selection policies.
const (
	MatchPolicyMostRecentlyUpdated  = "most_recently_updated"
	MatchPolicyLeastRecentlyUpdated = "least_recently_updated"
)

type RouteRepository interface {
	FindExact(ctx context.Context, destination string) (*model.InboundRoute, error)
	FindCatchAll(ctx context.Context, domain string) (*model.InboundRoute, error)
	Ensure(ctx context.Context, route *model.InboundRoute) error
}

type CompanyRepository interface {
	FindReceiveAllByDomain(ctx context.Context, domain string) (*model.Company, error)
}

type CustomerRepository interface {
	FindByEmail(ctx context.Context, companyID int64, email string) ([]*model.Customer, error)
}

type UnroutedEmailRepository interface {
	Create(ctx context.Context, email *model.UnroutedEmail) (*model.UnroutedEmail, error)
}

type AttachmentRepository interface {
	Create(ctx context.Context, attachment *model.Attachment) (*model.Attachment, error)
}

type CommunicationCreator interface {
	Create(ctx context.Context, c *model.Communication) (*model.Communication, error)
}

type ContentFetcher interface {
	FetchContent(ctx context.Context, emailID string) (*gateway.RemoteContent, error)
	FetchAttachment(ctx context.Context, url string) ([]byte, error)
}

type SpamClassifier interface {
	Classify(ctx context.Context, from, subject, text, html string) model.SpamCheck
}

type BlobStore interface {
	Save(companyID int64, filename string, data []byte) (string, error)
}

// InboundService reconciles a received email to a tenant and customer and
// persists it as an inbound communication.
type InboundService struct {
	routeRepo      RouteRepository
	companyRepo    CompanyRepository
	customerRepo   CustomerRepository
	commRepo       CommunicationCreator
	unroutedRepo   UnroutedEmailRepository
	attachmentRepo AttachmentRepository
	fetcher        ContentFetcher
	spam           SpamClassifier
	blobs          BlobStore
	matchPolicy    string
}

func NewInboundService(
	routeRepo RouteRepository,
	companyRepo CompanyRepository,
	customerRepo CustomerRepository,
	commRepo CommunicationCreator,
	unroutedRepo UnroutedEmailRepository,
	attachmentRepo AttachmentRepository,
	fetcher ContentFetcher,
	spam SpamClassifier,
	blobs BlobStore,
	matchPolicy string,
) *InboundService {
	return &InboundService{
		routeRepo:      routeRepo,
		companyRepo:    companyRepo,
		customerRepo:   customerRepo,
		commRepo:       commRepo,
		unroutedRepo:   unroutedRepo,
		attachmentRepo: attachmentRepo,
		fetcher:        fetcher,
		spam:           spam,
		blobs:          blobs,
		matchPolicy:    matchPolicy,
	}
}

// ProcessReceived runs the full inbound pipeline for one email.received
// delivery. A nil return means the delivery is settled from the provider's
// point of view, including the parked and malformed cases; only unexpected
// persistence failures surface as errors.
func (s *InboundService) ProcessReceived(ctx context.Context, ev *webhook.Event, rawBody []byte) error {
	destination := ev.Data.Destination()
	if destination == "" {
		logger.Warn("Received email without destination, dropping", "provider_message_id", ev.Data.MessageID())
		return nil
	}

	companyID, routed := s.resolveRoute(ctx, destination)
	if !routed {
		prom.ObserveParkedEmail()
		return s.park(ctx, ev, rawBody, destination)
	}

	subject, text, html := s.assembleContent(ctx, ev)
	customerID, duplicates := s.linkCustomer(ctx, companyID, ev.Data.Sender())

	metadata := map[string]interface{}{
		"payload": rawMetadata(rawBody),
	}
	verdict := s.spam.Classify(ctx, ev.Data.Sender(), subject, text, html)
	metadata["spam_check"] = verdict
	if duplicates != nil {
		metadata["duplicate_customers"] = duplicates
	}

	comm := &model.Communication{
		CompanyID:         companyID,
		CustomerID:        customerID,
		Direction:         model.DirectionInbound,
		Channel:           model.ChannelEmail,
		FromAddress:       ev.Data.Sender(),
		ToAddress:         destination,
		Subject:           subject,
		Body:              text,
		BodyHTML:          html,
		Status:            model.CommunicationStatusDelivered,
		ProviderMessageID: ev.Data.MessageID(),
		ProviderMetadata:  metadata,
	}

	created, err := s.commRepo.Create(ctx, comm)
	if err != nil {
		return err
	}

	s.storeAttachments(ctx, companyID, created.ID, ev.Data.Attachments)

	logger.Info("Inbound email stored",
		"communication_id", created.ID,
		"company_id", companyID,
		"linked", customerID != nil,
		"spam_verdict", verdict.Verdict)

	return nil
}

// resolveRoute walks the phases in strict precedence. A database error in a
// phase is logged and treated as "no match" so the next phase still runs.
func (s *InboundService) resolveRoute(ctx context.Context, destination string) (int64, bool) {
	route, err := s.routeRepo.FindExact(ctx, destination)
	if err == nil {
		prom.ObserveRouteResolution(PhaseExact)
		return route.CompanyID, true
	}
	if !errors.Is(err, repository.ErrRouteNotFound) {
		logger.Error("Exact route lookup failed", "destination", destination, "error", err)
	}

	domain := webhook.Domain(destination)
	if domain != "" {
		route, err = s.routeRepo.FindCatchAll(ctx, domain)
		if err == nil {
			prom.ObserveRouteResolution(PhaseCatchAll)
			return route.CompanyID, true
		}
		if !errors.Is(err, repository.ErrRouteNotFound) {
			logger.Error("Catch-all route lookup failed", "domain", domain, "error", err)
		}

		company, err := s.companyRepo.FindReceiveAllByDomain(ctx, domain)
		if err == nil {
			// Auto-create the exact route so the next delivery short-circuits.
			ensureErr := s.routeRepo.Ensure(ctx, &model.InboundRoute{
				CompanyID:    company.ID,
				RouteAddress: destination,
				Enabled:      true,
				Status:       model.RouteStatusAutoCreated,
			})
			if ensureErr != nil {
				logger.Warn("Auto-route creation failed", "destination", destination, "error", ensureErr)
			}
			prom.ObserveRouteResolution(PhaseCompany)
			return company.ID, true
		}
		if !errors.Is(err, repository.ErrCompanyNotFound) {
			logger.Error("Receive-all company lookup failed", "domain", domain, "error", err)
		}
	}

	prom.ObserveRouteResolution(PhaseUnrouted)
	return 0, false
}

func (s *InboundService) park(ctx context.Context, ev *webhook.Event, rawBody []byte, destination string) error {
	_, err := s.unroutedRepo.Create(ctx, &model.UnroutedEmail{
		ToAddress:   destination,
		FromAddress: ev.Data.Sender(),
		Subject:     ev.Data.Subject,
		RawPayload:  string(rawBody),
		Status:      model.UnroutedEmailStatusPending,
	})
	if err != nil {
		return err
	}
	logger.Info("Inbound email parked as unrouted", "destination", destination)
	return nil
}

// assembleContent prefers payload-embedded content; the remote fetch runs
// only when both bodies are empty, to tolerate provider outages.
func (s *InboundService) assembleContent(ctx context.Context, ev *webhook.Event) (subject, text, html string) {
	subject = ev.Data.Subject
	text = ev.Data.Text
	html = ev.Data.HTML

	if text != "" || html != "" {
		return subject, text, html
	}

	content, err := s.fetcher.FetchContent(ctx, ev.Data.MessageID())
	if err != nil {
		logger.Warn("Content fetch failed, storing email without body", "provider_message_id", ev.Data.MessageID(), "error", err)
		return subject, text, html
	}
	return subject, content.Text, content.HTML
}

// linkCustomer matches the sender against the tenant's customers. More than
// one match links the most recently updated record and reports the rest; the
// pipeline never auto-merges.
func (s *InboundService) linkCustomer(ctx context.Context, companyID int64, sender string) (*int64, *model.DuplicateCustomers) {
	if sender == "" {
		return nil, nil
	}

	customers, err := s.customerRepo.FindByEmail(ctx, companyID, sender)
	if err != nil {
		logger.Error("Customer lookup failed", "company_id", companyID, "error", err)
		return nil, nil
	}

	switch len(customers) {
	case 0:
		return nil, nil
	case 1:
		return &customers[0].ID, nil
	}

	primaryIdx := 0
	if s.matchPolicy == MatchPolicyLeastRecentlyUpdated {
		primaryIdx = len(customers) - 1
	}
	primary := customers[primaryIdx].ID
	others := make([]int64, 0, len(customers)-1)
	for i, c := range customers {
		if i == primaryIdx {
			continue
		}
		others = append(others, c.ID)
	}
	logger.Warn("Sender matched multiple customers", "company_id", companyID, "primary", primary, "others", len(others))
	return &primary, &model.DuplicateCustomers{
		PrimaryCustomerID: primary,
		OtherCustomerIDs:  others,
	}
}

// storeAttachments persists each attachment independently; a failure skips
// that attachment and keeps the email.
func (s *InboundService) storeAttachments(ctx context.Context, companyID, communicationID int64, attachments []webhook.Attachment) {
	for _, att := range attachments {
		data, err := s.attachmentBytes(ctx, att)
		if err != nil {
			logger.Warn("Attachment skipped", "filename", att.Filename, "error", err)
			continue
		}

		path, err := s.blobs.Save(companyID, att.Filename, data)
		if err != nil {
			logger.Warn("Attachment upload failed, skipped", "filename", att.Filename, "error", err)
			continue
		}

		_, err = s.attachmentRepo.Create(ctx, &model.Attachment{
			CommunicationID: communicationID,
			Filename:        att.Filename,
			ContentType:     att.ContentType,
			SizeBytes:       int64(len(data)),
			StoragePath:     path,
		})
		if err != nil {
			logger.Warn("Attachment row insert failed, skipped", "filename", att.Filename, "error", err)
		}
	}
}

func (s *InboundService) attachmentBytes(ctx context.Context, att webhook.Attachment) ([]byte, error) {
	if att.Content != "" {
		data, err := base64.StdEncoding.DecodeString(att.Content)
		if err == nil {
			return data, nil
		}
		logger.Warn("Embedded attachment content not decodable, trying remote fetch", "filename", att.Filename, "error", err)
	}
	if att.URL == "" {
		return nil, errors.New("attachment has no content and no url")
	}
	return s.fetcher.FetchAttachment(ctx, att.URL)
}

// rawMetadata keeps the original payload readable in stored metadata.
func rawMetadata(body []byte) interface{} {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}
