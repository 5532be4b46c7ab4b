package webhook

import (
	"encoding/json"
	"strings"
	"time"
)

// Event types delivered by the email provider.
const (
	EventEmailSent       = "email.sent"
	EventEmailDelivered  = "email.delivered"
	EventEmailOpened     = "email.opened"
	EventEmailClicked    = "email.clicked"
	EventEmailBounced    = "email.bounced"
	EventEmailComplained = "email.complained"
	EventEmailReceived   = "email.received"
)

// Event is one webhook delivery after boundary normalization. Downstream
// code never branches on payload shape; all duck-typed fields are folded
// into these types during unmarshalling.
type Event struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      EventData `json:"data"`
}

type EventData struct {
	ID           string       `json:"id"`
	EmailID      string       `json:"email_id"`
	Subject      string       `json:"subject"`
	Text         string       `json:"text"`
	HTML         string       `json:"html"`
	To           AddressList  `json:"to"`
	From         AddressList  `json:"from"`
	Tags         Tags         `json:"tags"`
	Attachments  []Attachment `json:"attachments"`
	BounceType   string       `json:"bounce_type"`
	BounceReason string       `json:"bounce_reason"`
	Error        string       `json:"error"`
}

// MessageID is the provider-side identifier of the email the event refers
// to. Lifecycle events carry it in email_id, received events in id.
func (d EventData) MessageID() string {
	if d.EmailID != "" {
		return d.EmailID
	}
	return d.ID
}

// Destination is the first recipient address, lowercased.
func (d EventData) Destination() string {
	if len(d.To) == 0 {
		return ""
	}
	return strings.ToLower(d.To[0].Email)
}

// Sender is the first from address, lowercased.
func (d EventData) Sender() string {
	if len(d.From) == 0 {
		return ""
	}
	return strings.ToLower(d.From[0].Email)
}

// Address is a single mailbox. The provider sends either a bare string
// ("jane@example.com" or "Jane <jane@example.com>") or an object
// {email, name}; both decode into the same struct.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (a *Address) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		a.Email, a.Name = splitDisplayAddress(s)
		return nil
	}
	type plain Address
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	a.Email = strings.ToLower(strings.TrimSpace(p.Email))
	a.Name = p.Name
	return nil
}

// splitDisplayAddress handles the "Name <addr>" convention.
func splitDisplayAddress(s string) (email, name string) {
	s = strings.TrimSpace(s)
	if open := strings.LastIndex(s, "<"); open >= 0 && strings.HasSuffix(s, ">") {
		return strings.ToLower(strings.TrimSpace(s[open+1 : len(s)-1])), strings.TrimSpace(s[:open])
	}
	return strings.ToLower(s), ""
}

// AddressList accepts either a JSON array of addresses or a single address.
type AddressList []Address

func (l *AddressList) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" || trimmed == "" {
		*l = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var addrs []Address
		if err := json.Unmarshal(b, &addrs); err != nil {
			return err
		}
		*l = addrs
		return nil
	}
	var a Address
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*l = AddressList{a}
	return nil
}

// Tags accepts either a {name: value} object or the provider's
// [{name, value}] array form, normalized to a flat map.
type Tags map[string]string

func (t *Tags) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" || trimmed == "" {
		*t = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var m map[string]string
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
		*t = m
		return nil
	}
	var pairs []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(b, &pairs); err != nil {
		return err
	}
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[p.Name] = p.Value
	}
	*t = m
	return nil
}

// Attachment is one inbound attachment. Content carries payload-embedded
// base64 bytes; URL is the per-attachment remote fetch fallback.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	URL         string `json:"url"`
}

// Parse decodes a webhook body into a normalized Event.
func Parse(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Domain returns the part after the last '@', lowercased, or "" when the
// address has no domain.
func Domain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}
