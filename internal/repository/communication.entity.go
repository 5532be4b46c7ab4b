package repository

import (
	"encoding/json"
	"time"

	"github.com/fieldserve/comms-gateway/internal/model"
)

type CommunicationEntity struct {
	ID                int64      `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	CompanyID         int64      `db:"company_id"          gorm:"column:company_id;not null;index"`
	CustomerID        *int64     `db:"customer_id"         gorm:"column:customer_id;index"`
	Direction         string     `db:"direction"           gorm:"column:direction;not null"`
	Channel           string     `db:"channel"             gorm:"column:channel;not null"`
	FromAddress       string     `db:"from_address"        gorm:"column:from_address"`
	ToAddress         string     `db:"to_address"          gorm:"column:to_address"`
	Subject           string     `db:"subject"             gorm:"column:subject"`
	Body              string     `db:"body"                gorm:"column:body"`
	BodyHTML          string     `db:"body_html"           gorm:"column:body_html"`
	Status            string     `db:"status"              gorm:"column:status;not null;index"`
	ProviderMessageID string     `db:"provider_message_id" gorm:"column:provider_message_id;index"`
	ProviderMetadata  string     `db:"provider_metadata"   gorm:"column:provider_metadata"`
	OpenCount         int        `db:"open_count"          gorm:"column:open_count;not null;default:0"`
	ClickCount        int        `db:"click_count"         gorm:"column:click_count;not null;default:0"`
	SentAt            *time.Time `db:"sent_at"             gorm:"column:sent_at"`
	DeliveredAt       *time.Time `db:"delivered_at"        gorm:"column:delivered_at"`
	OpenedAt          *time.Time `db:"opened_at"           gorm:"column:opened_at"`
	ClickedAt         *time.Time `db:"clicked_at"          gorm:"column:clicked_at"`
	BouncedAt         *time.Time `db:"bounced_at"          gorm:"column:bounced_at"`
	CreatedAt         time.Time  `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `db:"updated_at"          gorm:"column:updated_at;autoUpdateTime"`
}

func (CommunicationEntity) TableName() string {
	return "communications"
}

func toCommunicationEntity(m *model.Communication) *CommunicationEntity {
	if m == nil {
		return nil
	}
	metadata := ""
	if len(m.ProviderMetadata) > 0 {
		if b, err := json.Marshal(m.ProviderMetadata); err == nil {
			metadata = string(b)
		}
	}
	return &CommunicationEntity{
		ID:                m.ID,
		CompanyID:         m.CompanyID,
		CustomerID:        m.CustomerID,
		Direction:         string(m.Direction),
		Channel:           string(m.Channel),
		FromAddress:       m.FromAddress,
		ToAddress:         m.ToAddress,
		Subject:           m.Subject,
		Body:              m.Body,
		BodyHTML:          m.BodyHTML,
		Status:            string(m.Status),
		ProviderMessageID: m.ProviderMessageID,
		ProviderMetadata:  metadata,
		OpenCount:         m.OpenCount,
		ClickCount:        m.ClickCount,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		OpenedAt:          m.OpenedAt,
		ClickedAt:         m.ClickedAt,
		BouncedAt:         m.BouncedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toCommunicationModel(e *CommunicationEntity) *model.Communication {
	if e == nil {
		return nil
	}
	var metadata map[string]interface{}
	if e.ProviderMetadata != "" {
		// a row with unreadable metadata is still a valid communication
		_ = json.Unmarshal([]byte(e.ProviderMetadata), &metadata)
	}
	return &model.Communication{
		ID:                e.ID,
		CompanyID:         e.CompanyID,
		CustomerID:        e.CustomerID,
		Direction:         model.Direction(e.Direction),
		Channel:           model.Channel(e.Channel),
		FromAddress:       e.FromAddress,
		ToAddress:         e.ToAddress,
		Subject:           e.Subject,
		Body:              e.Body,
		BodyHTML:          e.BodyHTML,
		Status:            model.CommunicationStatus(e.Status),
		ProviderMessageID: e.ProviderMessageID,
		ProviderMetadata:  metadata,
		OpenCount:         e.OpenCount,
		ClickCount:        e.ClickCount,
		SentAt:            e.SentAt,
		DeliveredAt:       e.DeliveredAt,
		OpenedAt:          e.OpenedAt,
		ClickedAt:         e.ClickedAt,
		BouncedAt:         e.BouncedAt,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func toCommunicationModels(entities []*CommunicationEntity) []*model.Communication {
	if entities == nil {
		return nil
	}
	models := make([]*model.Communication, len(entities))
	for i, e := range entities {
		models[i] = toCommunicationModel(e)
	}
	return models
}
