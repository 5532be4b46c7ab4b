package fixtures

import (
	"fmt"

	"github.com/fieldserve/comms-gateway/internal/model"
)

var (
	TestCompanyAcme = model.Company{
		ID:              1,
		Name:            "Acme Field Services",
		EmailDomain:     "acmefield.com",
		EmailReceiveAll: true,
	}

	TestCompanyNoCatchAll = model.Company{
		ID:          2,
		Name:        "Bolt Plumbing",
		EmailDomain: "boltplumbing.com",
	}
)

func NewEmailSendRequest(companyID int64, to, subject, text string) model.EmailSendRequest {
	return model.EmailSendRequest{
		CompanyID: companyID,
		To:        to,
		From:      "support@acmefield.com",
		Subject:   subject,
		Text:      text,
	}
}

func NewRouteCreateRequest(companyID int64, address string) model.RouteCreateRequest {
	return model.RouteCreateRequest{
		CompanyID:    companyID,
		RouteAddress: address,
		Enabled:      true,
	}
}

// ReceivedEventJSON builds a raw email.received webhook payload the way the
// provider delivers it.
func ReceivedEventJSON(messageID, to, from, subject, text string) []byte {
	return []byte(fmt.Sprintf(
		`{"type":"email.received","created_at":"2026-03-01T10:00:00Z","data":{"id":%q,"to":[%q],"from":%q,"subject":%q,"text":%q}}`,
		messageID, to, from, subject, text,
	))
}

// LifecycleEventJSON builds a raw lifecycle webhook payload keyed by the
// provider message id.
func LifecycleEventJSON(eventType, emailID, to string) []byte {
	return []byte(fmt.Sprintf(
		`{"type":%q,"created_at":"2026-03-01T10:05:00Z","data":{"email_id":%q,"to":[%q]}}`,
		eventType, emailID, to,
	))
}

var (
	ValidEmailAddresses = []string{
		"jane@customer.com",
		"bob.smith@example.org",
		"ops+billing@acmefield.com",
	}

	InvalidRouteAddresses = []string{
		"",
		"no-at-sign",
		"   ",
	}
)

func CommunicationFilterByCompany(companyID int64) model.CommunicationFilter {
	return model.CommunicationFilter{
		CompanyID: &companyID,
		Limit:     50,
		Offset:    0,
	}
}

func CommunicationFilterWithPagination(companyID int64, limit, offset int) model.CommunicationFilter {
	return model.CommunicationFilter{
		CompanyID: &companyID,
		Limit:     limit,
		Offset:    offset,
	}
}
