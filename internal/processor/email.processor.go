package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	gateway "github.com/fieldserve/comms-gateway/internal/gateways"
	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/internal/queue"
	"github.com/fieldserve/comms-gateway/pkg/logger"
	"github.com/fieldserve/comms-gateway/pkg/prom"
)

type CommunicationRepository interface {
	MarkSent(ctx context.Context, id int64, providerMessageID string, at time.Time) error
	MarkFailed(ctx context.Context, id int64) error
}

type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, companyID int64, email string) (bool, error)
}

// EmailProcessor drains the outbound queue: suppression check, provider
// hand-off, lifecycle bookkeeping, all under the idempotency lock.
type EmailProcessor struct {
	client      *gateway.Client
	commRepo    CommunicationRepository
	suppression SuppressionChecker
	idempotency *IdempotencyService
}

func NewEmailProcessor(client *gateway.Client, commRepo CommunicationRepository, suppression SuppressionChecker, idempotency *IdempotencyService) *EmailProcessor {
	return &EmailProcessor{
		client:      client,
		commRepo:    commRepo,
		suppression: suppression,
		idempotency: idempotency,
	}
}

func (p *EmailProcessor) GetType() string {
	return "email"
}

// Process sends one queued communication with idempotency guarantees.
func (p *EmailProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	// Step 1: Parse message
	var comm model.Communication
	if err := json.Unmarshal(queueMessage.Data, &comm); err != nil {
		logger.Error("Failed to unmarshal queued communication", "error", err)
		return err // Return error to trigger DLQ move
	}
	if comm.ID == 0 {
		logger.Error("Queued communication without id, dropping")
		return nil // ACK - retrying cannot fix a broken payload
	}

	communicationID := strconv.FormatInt(comm.ID, 10)

	// Step 2: Acquire processing lock and check idempotency
	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, communicationID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			logger.Info("Communication already processed, skipping", "communication_id", communicationID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("Max retries exceeded", "communication_id", communicationID)
			if markErr := p.commRepo.MarkFailed(ctx, comm.ID); markErr != nil {
				logger.Error("Failed to mark communication failed", "communication_id", communicationID, "error", markErr)
			}
			return nil // ACK to move to DLQ
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			logger.Info("Lock held by another consumer, will retry", "communication_id", communicationID)
			return errors.New("lock held by another consumer")
		}
		logger.Error("Failed to acquire lock", "communication_id", communicationID, "error", err)
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Processing outbound email",
		"communication_id", communicationID,
		"to", comm.ToAddress,
		"retry_count", procCtx.RetryCount,
		"is_retry", procCtx.IsRetry)

	// Step 3: Refuse suppressed recipients before touching the provider
	suppressed, err := p.suppression.IsSuppressed(ctx, comm.CompanyID, comm.ToAddress)
	if err != nil {
		logger.Error("Suppression check failed", "communication_id", communicationID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "communication_id", communicationID, "error", markErr)
		}
		return err // NACK to retry
	}
	if suppressed {
		logger.Warn("Recipient suppressed, refusing send", "communication_id", communicationID, "to", comm.ToAddress)
		if markErr := p.commRepo.MarkFailed(ctx, comm.ID); markErr != nil {
			logger.Error("Failed to mark communication failed", "communication_id", communicationID, "error", markErr)
		}
		if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
			logger.Error("Failed to mark success", "communication_id", communicationID, "error", markErr)
		}
		return nil // ACK - a suppressed recipient never becomes sendable on retry
	}

	// Step 4: Hand to provider
	req := &gateway.EmailRequest{
		Reference: communicationID,
		From:      comm.FromAddress,
		To:        comm.ToAddress,
		Subject:   comm.Subject,
		Text:      comm.Body,
		HTML:      comm.BodyHTML,
	}

	res, err := p.client.SendEmail(ctx, req)
	if err != nil {
		logger.Error("Failed to send email", "communication_id", communicationID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "communication_id", communicationID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	if res.Status == gateway.AcceptStateRejected {
		logger.Warn("Provider rejected email", "communication_id", communicationID, "error_code", res.ErrorCode)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, errors.New("provider rejected email")); markErr != nil {
			logger.Error("Failed to mark failure", "communication_id", communicationID, "error", markErr)
		}
		return errors.New("provider rejected email")
	}

	// Step 5: Record the hand-off
	sentAt := res.AcceptedAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	prom.ObserveSendDuration(sentAt.Sub(comm.CreatedAt).Seconds(), "email")

	if err := p.commRepo.MarkSent(ctx, comm.ID, res.ProviderMessageID, sentAt); err != nil {
		logger.Error("Failed to mark communication sent", "communication_id", communicationID, "error", err)
		// Continue - the provider accepted it; a retry would double-send
	}

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark success", "communication_id", communicationID, "error", markErr)
	}

	logger.Info("Email handed to provider",
		"communication_id", communicationID,
		"provider_message_id", res.ProviderMessageID,
		"retry_count", procCtx.RetryCount)

	return nil // ACK message
}
