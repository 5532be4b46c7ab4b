package model

import (
	"errors"
	"time"
)

// Direction distinguishes mail we received from mail we sent.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Channel is the medium a communication happened on.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
	ChannelCall      Channel = "call"
	ChannelVoicemail Channel = "voicemail"
)

// CommunicationStatus is the lifecycle state of a communication.
type CommunicationStatus string

const (
	CommunicationStatusQueued     CommunicationStatus = "queued"
	CommunicationStatusScheduled  CommunicationStatus = "scheduled"
	CommunicationStatusSent       CommunicationStatus = "sent"
	CommunicationStatusDelivered  CommunicationStatus = "delivered"
	CommunicationStatusBounced    CommunicationStatus = "bounced"
	CommunicationStatusComplained CommunicationStatus = "complained"
	CommunicationStatusFailed     CommunicationStatus = "failed"
)

// Communication is the unified record for any message exchanged with a
// customer. CompanyID is always set; CustomerID only after a successful
// sender match.
type Communication struct {
	ID                int64                  `json:"id"`
	CompanyID         int64                  `json:"company_id"`
	CustomerID        *int64                 `json:"customer_id,omitempty"`
	Direction         Direction              `json:"direction"`
	Channel           Channel                `json:"channel"`
	FromAddress       string                 `json:"from_address"`
	ToAddress         string                 `json:"to_address"`
	Subject           string                 `json:"subject"`
	Body              string                 `json:"body"`
	BodyHTML          string                 `json:"body_html"`
	Status            CommunicationStatus    `json:"status"`
	ProviderMessageID string                 `json:"provider_message_id"`
	ProviderMetadata  map[string]interface{} `json:"provider_metadata,omitempty"`
	OpenCount         int                    `json:"open_count"`
	ClickCount        int                    `json:"click_count"`
	SentAt            *time.Time             `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time             `json:"delivered_at,omitempty"`
	OpenedAt          *time.Time             `json:"opened_at,omitempty"`
	ClickedAt         *time.Time             `json:"clicked_at,omitempty"`
	BouncedAt         *time.Time             `json:"bounced_at,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

func (Communication) TableName() string { return "communications" }

// DuplicateCustomers is attached to provider metadata when an inbound sender
// matched more than one customer record. The system never auto-merges.
type DuplicateCustomers struct {
	PrimaryCustomerID int64   `json:"primary_customer_id"`
	OtherCustomerIDs  []int64 `json:"other_customer_ids"`
}

// SpamCheck is the classifier verdict attached to provider metadata.
type SpamCheck struct {
	Verdict string  `json:"verdict"` // "spam" | "ham" | "unknown"
	Score   float64 `json:"score"`
	Reason  string  `json:"reason,omitempty"`
}

// EmailSendRequest is the input for creating an outbound email.
type EmailSendRequest struct {
	CompanyID  int64
	CustomerID *int64
	To         string
	From       string
	Subject    string
	Text       string
	HTML       string
}

func (p EmailSendRequest) Validate() error {
	if p.CompanyID == 0 {
		return errors.New("company_id is required")
	}
	if p.To == "" {
		return errors.New("to is required")
	}
	if p.Subject == "" && p.Text == "" && p.HTML == "" {
		return errors.New("subject or body is required")
	}
	return nil
}

// CommunicationFilter controls List queries.
type CommunicationFilter struct {
	CompanyID  *int64
	CustomerID *int64
	Direction  *Direction
	Statuses   []CommunicationStatus
	From       *time.Time
	To         *time.Time
	Limit      int  // default 50
	Offset     int  // for pagination
	Desc       bool // order by created_at
}
