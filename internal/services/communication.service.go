package services

import (
	"context"
	"errors"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/internal/queue"
)

var (
	ErrInvalidRequest = errors.New("invalid send request")
)

type CommunicationRepository interface {
	Create(ctx context.Context, c *model.Communication) (*model.Communication, error)
	List(ctx context.Context, f model.CommunicationFilter) ([]*model.Communication, int64, error)
}

// CommunicationService creates outbound emails and hands them to the queue;
// the processor owns the actual provider send.
type CommunicationService struct {
	commRepo CommunicationRepository
	queue    *queue.Queue
}

func NewCommunicationService(commRepo CommunicationRepository, q *queue.Queue) *CommunicationService {
	return &CommunicationService{
		commRepo: commRepo,
		queue:    q,
	}
}

// SendEmail persists the communication as queued and publishes it. The row
// exists before the publish so a crash between the two steps leaves a
// visible stuck-in-queued record instead of a silent drop.
func (s *CommunicationService) SendEmail(ctx context.Context, p model.EmailSendRequest) (*model.Communication, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	comm := &model.Communication{
		CompanyID:   p.CompanyID,
		CustomerID:  p.CustomerID,
		Direction:   model.DirectionOutbound,
		Channel:     model.ChannelEmail,
		FromAddress: p.From,
		ToAddress:   p.To,
		Subject:     p.Subject,
		Body:        p.Text,
		BodyHTML:    p.HTML,
		Status:      model.CommunicationStatusQueued,
	}

	created, err := s.commRepo.Create(ctx, comm)
	if err != nil {
		return nil, err
	}

	if _, err := s.queue.PublishJSON(ctx, created, nil); err != nil {
		return nil, err
	}

	return created, nil
}

func (s *CommunicationService) List(ctx context.Context, f model.CommunicationFilter) ([]*model.Communication, int64, error) {
	return s.commRepo.List(ctx, f)
}
