package repository

import (
	"context"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/pkg/pg"
)

type AttachmentRepository struct {
	*pg.DB
}

func NewAttachmentRepository(db *pg.DB) *AttachmentRepository {
	return &AttachmentRepository{DB: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment *model.Attachment) (*model.Attachment, error) {
	entity := toAttachmentEntity(attachment)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toAttachmentModel(entity), nil
}

func (r *AttachmentRepository) ListByCommunication(ctx context.Context, communicationID int64) ([]*model.Attachment, error) {
	var entities []*AttachmentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("communication_id = ?", communicationID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toAttachmentModels(entities), nil
}
