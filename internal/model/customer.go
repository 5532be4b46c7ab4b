package model

import "time"

// Customer is a tenant-scoped contact record. Email is keyed loosely: two
// customers in the same company may share an address, which the linker
// surfaces as a duplicate signal rather than a uniqueness violation.
type Customer struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
