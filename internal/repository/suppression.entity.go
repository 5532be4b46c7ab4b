package repository

import (
	"time"

	"github.com/fieldserve/comms-gateway/internal/model"
)

type SuppressionEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	CompanyID int64     `db:"company_id" gorm:"column:company_id;not null;uniqueIndex:idx_suppressions_company_email"`
	Email     string    `db:"email"      gorm:"column:email;not null;uniqueIndex:idx_suppressions_company_email"`
	Reason    string    `db:"reason"     gorm:"column:reason;not null"`
	Source    string    `db:"source"     gorm:"column:source;not null"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (SuppressionEntity) TableName() string {
	return "suppressions"
}

func toSuppressionEntity(m *model.Suppression) *SuppressionEntity {
	if m == nil {
		return nil
	}
	return &SuppressionEntity{
		ID:        m.ID,
		CompanyID: m.CompanyID,
		Email:     m.Email,
		Reason:    string(m.Reason),
		Source:    string(m.Source),
		CreatedAt: m.CreatedAt,
	}
}

func toSuppressionModel(e *SuppressionEntity) *model.Suppression {
	if e == nil {
		return nil
	}
	return &model.Suppression{
		ID:        e.ID,
		CompanyID: e.CompanyID,
		Email:     e.Email,
		Reason:    model.SuppressionReason(e.Reason),
		Source:    model.SuppressionSource(e.Source),
		CreatedAt: e.CreatedAt,
	}
}
