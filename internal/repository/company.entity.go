package repository

import "github.com/fieldserve/comms-gateway/internal/model"

type CompanyEntity struct {
	ID              int64  `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	Name            string `db:"name"              gorm:"column:name;not null"`
	EmailDomain     string `db:"email_domain"      gorm:"column:email_domain;index"`
	EmailReceiveAll bool   `db:"email_receive_all" gorm:"column:email_receive_all;not null;default:false"`
}

func (CompanyEntity) TableName() string {
	return "companies"
}

func toCompanyEntity(m *model.Company) *CompanyEntity {
	if m == nil {
		return nil
	}
	return &CompanyEntity{
		ID:              m.ID,
		Name:            m.Name,
		EmailDomain:     m.EmailDomain,
		EmailReceiveAll: m.EmailReceiveAll,
	}
}

func toCompanyModel(e *CompanyEntity) *model.Company {
	if e == nil {
		return nil
	}
	return &model.Company{
		ID:              e.ID,
		Name:            e.Name,
		EmailDomain:     e.EmailDomain,
		EmailReceiveAll: e.EmailReceiveAll,
	}
}
