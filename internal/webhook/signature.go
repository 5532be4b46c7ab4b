package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

const secretPrefix = "whsec_"

// DefaultTolerance bounds how far a webhook timestamp may drift from now.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingHeaders    = errors.New("webhook: missing signature headers")
	ErrInvalidTimestamp  = errors.New("webhook: invalid timestamp")
	ErrTimestampTooOld   = errors.New("webhook: timestamp outside tolerance")
	ErrNoMatchingVersion = errors.New("webhook: no v1 signature found")
	ErrSignatureMismatch = errors.New("webhook: signature mismatch")
)

// Verifier checks svix-style webhook signatures: HMAC-SHA256 over
// "id.timestamp.body" with the base64-decoded signing secret.
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("webhook: signing secret is required")
	}
	trimmed := strings.TrimPrefix(secret, secretPrefix)
	key, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		// secrets handed out before the whsec_ convention are raw strings
		key = []byte(trimmed)
	}
	return &Verifier{key: key, tolerance: DefaultTolerance, now: time.Now}, nil
}

// Verify validates one delivery. signatures is the raw svix-signature header:
// space-delimited "v1,<base64>" candidates; any single match passes.
func (v *Verifier) Verify(msgID, timestamp string, body []byte, signatures string) error {
	if msgID == "" || timestamp == "" || signatures == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}
	drift := v.now().Sub(time.Unix(ts, 0))
	if drift > v.tolerance || drift < -v.tolerance {
		return ErrTimestampTooOld
	}

	expected := v.sign(msgID, timestamp, body)

	matched := false
	for _, candidate := range strings.Fields(signatures) {
		version, sig, found := strings.Cut(candidate, ",")
		if !found || version != "v1" {
			continue
		}
		matched = true
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	if !matched {
		return ErrNoMatchingVersion
	}
	return ErrSignatureMismatch
}

// Sign produces the "v1,<base64>" header value for a payload. Used by the
// provider simulator and tests.
func (v *Verifier) Sign(msgID, timestamp string, body []byte) string {
	return "v1," + v.sign(msgID, timestamp, body)
}

func (v *Verifier) sign(msgID, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(msgID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
