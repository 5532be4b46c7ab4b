package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/internal/repository"
	"github.com/fieldserve/comms-gateway/internal/webhook"
	"github.com/fieldserve/comms-gateway/pkg/logger"
)

type CommunicationLifecycleRepository interface {
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*model.Communication, error)
	MarkProviderSent(ctx context.Context, providerMessageID string, at time.Time) error
	MarkDelivered(ctx context.Context, providerMessageID string, at time.Time) error
	MarkOpened(ctx context.Context, providerMessageID string, at time.Time) error
	MarkClicked(ctx context.Context, providerMessageID string, at time.Time) error
	MarkBounced(ctx context.Context, providerMessageID string, at time.Time) error
	MarkComplained(ctx context.Context, providerMessageID string) error
}

type SuppressionRepository interface {
	Upsert(ctx context.Context, suppression *model.Suppression) (*model.Suppression, error)
}

// LifecycleService applies provider lifecycle webhooks to the matching
// communication row. Every update is absolute, so redeliveries and
// out-of-order events converge on the same state.
type LifecycleService struct {
	commRepo        CommunicationLifecycleRepository
	suppressionRepo SuppressionRepository
}

func NewLifecycleService(commRepo CommunicationLifecycleRepository, suppressionRepo SuppressionRepository) *LifecycleService {
	return &LifecycleService{
		commRepo:        commRepo,
		suppressionRepo: suppressionRepo,
	}
}

// HandleEvent updates lifecycle state for one delivery. A communication that
// cannot be found is logged and settled; the provider must not retry events
// we will never be able to apply.
func (s *LifecycleService) HandleEvent(ctx context.Context, ev *webhook.Event) error {
	messageID := ev.Data.MessageID()
	if messageID == "" {
		logger.Warn("Lifecycle event without message id", "type", ev.Type)
		return nil
	}

	at := ev.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var err error
	switch ev.Type {
	case webhook.EventEmailSent:
		err = s.commRepo.MarkProviderSent(ctx, messageID, at)
	case webhook.EventEmailDelivered:
		err = s.commRepo.MarkDelivered(ctx, messageID, at)
	case webhook.EventEmailOpened:
		err = s.commRepo.MarkOpened(ctx, messageID, at)
	case webhook.EventEmailClicked:
		err = s.commRepo.MarkClicked(ctx, messageID, at)
	case webhook.EventEmailBounced:
		err = s.commRepo.MarkBounced(ctx, messageID, at)
		s.suppress(ctx, ev, messageID, model.SuppressionReasonBounce)
	case webhook.EventEmailComplained:
		err = s.commRepo.MarkComplained(ctx, messageID)
		s.suppress(ctx, ev, messageID, model.SuppressionReasonComplaint)
	default:
		logger.Info("Ignoring unknown webhook event type", "type", ev.Type)
		return nil
	}

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("Lifecycle event for unknown communication", "type", ev.Type, "provider_message_id", messageID)
			return nil
		}
		return err
	}
	return nil
}

// suppress records the do-not-send entry. It runs even when the originating
// communication row was never found: the company then comes from the payload
// tags, and the signal is dropped only when neither source yields a tenant.
func (s *LifecycleService) suppress(ctx context.Context, ev *webhook.Event, messageID string, reason model.SuppressionReason) {
	email := ev.Data.Destination()
	if email == "" {
		logger.Warn("Suppression signal without recipient", "type", ev.Type)
		return
	}

	companyID := s.companyForEvent(ctx, ev, messageID)
	if companyID == 0 {
		logger.Warn("Suppression signal without resolvable company", "type", ev.Type, "email", email)
		return
	}

	_, err := s.suppressionRepo.Upsert(ctx, &model.Suppression{
		CompanyID: companyID,
		Email:     email,
		Reason:    reason,
		Source:    model.SuppressionSourceWebhook,
	})
	if err != nil {
		logger.Error("Suppression upsert failed", "company_id", companyID, "email", email, "error", err)
		return
	}
	logger.Info("Recipient suppressed", "company_id", companyID, "email", email, "reason", string(reason))
}

func (s *LifecycleService) companyForEvent(ctx context.Context, ev *webhook.Event, messageID string) int64 {
	comm, err := s.commRepo.GetByProviderMessageID(ctx, messageID)
	if err == nil {
		return comm.CompanyID
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logger.Error("Communication lookup for suppression failed", "provider_message_id", messageID, "error", err)
	}

	if tag, ok := ev.Data.Tags["company_id"]; ok {
		if id, parseErr := strconv.ParseInt(tag, 10, 64); parseErr == nil && id > 0 {
			return id
		}
	}
	return 0
}
