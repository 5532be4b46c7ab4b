package repository

import (
	"time"

	"github.com/fieldserve/comms-gateway/internal/model"
)

type AttachmentEntity struct {
	ID              int64     `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	CommunicationID int64     `db:"communication_id" gorm:"column:communication_id;not null;index"`
	Filename        string    `db:"filename"         gorm:"column:filename;not null"`
	ContentType     string    `db:"content_type"     gorm:"column:content_type"`
	SizeBytes       int64     `db:"size_bytes"       gorm:"column:size_bytes"`
	StoragePath     string    `db:"storage_path"     gorm:"column:storage_path;not null"`
	CreatedAt       time.Time `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
}

func (AttachmentEntity) TableName() string {
	return "communication_attachments"
}

func toAttachmentEntity(m *model.Attachment) *AttachmentEntity {
	if m == nil {
		return nil
	}
	return &AttachmentEntity{
		ID:              m.ID,
		CommunicationID: m.CommunicationID,
		Filename:        m.Filename,
		ContentType:     m.ContentType,
		SizeBytes:       m.SizeBytes,
		StoragePath:     m.StoragePath,
		CreatedAt:       m.CreatedAt,
	}
}

func toAttachmentModel(e *AttachmentEntity) *model.Attachment {
	if e == nil {
		return nil
	}
	return &model.Attachment{
		ID:              e.ID,
		CommunicationID: e.CommunicationID,
		Filename:        e.Filename,
		ContentType:     e.ContentType,
		SizeBytes:       e.SizeBytes,
		StoragePath:     e.StoragePath,
		CreatedAt:       e.CreatedAt,
	}
}

func toAttachmentModels(entities []*AttachmentEntity) []*model.Attachment {
	if entities == nil {
		return nil
	}
	models := make([]*model.Attachment, len(entities))
	for i, e := range entities {
		models[i] = toAttachmentModel(e)
	}
	return models
}
