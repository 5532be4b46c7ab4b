package model

// Company is an isolated tenant organization. EmailDomain plus
// EmailReceiveAll lets a tenant claim all mail sent to its domain even when
// no explicit route exists yet.
type Company struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	EmailDomain     string `json:"email_domain"`
	EmailReceiveAll bool   `json:"email_receive_all"`
}

func (Company) TableName() string { return "companies" }
