package repository

import (
	"time"

	"github.com/fieldserve/comms-gateway/internal/model"
)

type UnroutedEmailEntity struct {
	ID          int64     `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	ToAddress   string    `db:"to_address"   gorm:"column:to_address;not null;index"`
	FromAddress string    `db:"from_address" gorm:"column:from_address"`
	Subject     string    `db:"subject"      gorm:"column:subject"`
	RawPayload  string    `db:"raw_payload"  gorm:"column:raw_payload"`
	Status      string    `db:"status"       gorm:"column:status;not null;index"`
	CreatedAt   time.Time `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
}

func (UnroutedEmailEntity) TableName() string {
	return "unrouted_emails"
}

func toUnroutedEmailEntity(m *model.UnroutedEmail) *UnroutedEmailEntity {
	if m == nil {
		return nil
	}
	return &UnroutedEmailEntity{
		ID:          m.ID,
		ToAddress:   m.ToAddress,
		FromAddress: m.FromAddress,
		Subject:     m.Subject,
		RawPayload:  m.RawPayload,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
	}
}

func toUnroutedEmailModel(e *UnroutedEmailEntity) *model.UnroutedEmail {
	if e == nil {
		return nil
	}
	return &model.UnroutedEmail{
		ID:          e.ID,
		ToAddress:   e.ToAddress,
		FromAddress: e.FromAddress,
		Subject:     e.Subject,
		RawPayload:  e.RawPayload,
		Status:      model.UnroutedEmailStatus(e.Status),
		CreatedAt:   e.CreatedAt,
	}
}

func toUnroutedEmailModels(entities []*UnroutedEmailEntity) []*model.UnroutedEmail {
	if entities == nil {
		return nil
	}
	models := make([]*model.UnroutedEmail, len(entities))
	for i, e := range entities {
		models[i] = toUnroutedEmailModel(e)
	}
	return models
}
