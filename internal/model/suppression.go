package model

import "time"

// SuppressionReason enumerates why a recipient was suppressed.
type SuppressionReason string

const (
	SuppressionReasonBounce    SuppressionReason = "bounce"
	SuppressionReasonComplaint SuppressionReason = "complaint"
	SuppressionReasonManual    SuppressionReason = "manual"
)

// SuppressionSource indicates where the suppression signal originated.
type SuppressionSource string

const (
	SuppressionSourceWebhook SuppressionSource = "provider_webhook"
	SuppressionSourceManual  SuppressionSource = "manual"
)

// Suppression is a tenant-scoped do-not-send entry. The outbound processor
// refuses to send to suppressed recipients.
type Suppression struct {
	ID        int64             `json:"id"`
	CompanyID int64             `json:"company_id"`
	Email     string            `json:"email"`
	Reason    SuppressionReason `json:"reason"`
	Source    SuppressionSource `json:"source"`
	CreatedAt time.Time         `json:"created_at"`
}

func (Suppression) TableName() string { return "suppressions" }
