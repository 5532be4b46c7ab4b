package model

import "time"

// UnroutedEmailStatus is the triage state of a parked email.
type UnroutedEmailStatus string

const (
	UnroutedEmailStatusPending  UnroutedEmailStatus = "pending"
	UnroutedEmailStatusReviewed UnroutedEmailStatus = "reviewed"
	UnroutedEmailStatusIgnored  UnroutedEmailStatus = "ignored"
)

// UnroutedEmail parks inbound mail that matched no company. The raw payload
// is kept verbatim for manual triage.
type UnroutedEmail struct {
	ID          int64               `json:"id"`
	ToAddress   string              `json:"to_address"`
	FromAddress string              `json:"from_address"`
	Subject     string              `json:"subject"`
	RawPayload  string              `json:"raw_payload"`
	Status      UnroutedEmailStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
}

func (UnroutedEmail) TableName() string { return "unrouted_emails" }
