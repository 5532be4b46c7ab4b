package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldserve/comms-gateway/internal/model"
	"github.com/fieldserve/comms-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

// SpamClient asks an external classifier whether an inbound email looks like
// spam. The classifier is advisory: an outage or a bad response degrades to
// an "unknown" verdict instead of failing the pipeline.
type SpamClient struct {
	url     string
	timeout time.Duration
	client  *fasthttp.Client
}

type spamRequest struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

func NewSpamClient(url string, timeout time.Duration) *SpamClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SpamClient{
		url:     url,
		timeout: timeout,
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

// Classify returns the classifier verdict for an email. It never returns an
// error to the caller: failure modes collapse into verdict "unknown".
func (c *SpamClient) Classify(ctx context.Context, from, subject, text, html string) model.SpamCheck {
	if c.url == "" {
		return model.SpamCheck{Verdict: "unknown", Reason: "classifier not configured"}
	}

	verdict, err := c.classify(ctx, from, subject, text, html)
	if err != nil {
		logger.Warn("Spam classifier unavailable", "error", err)
		return model.SpamCheck{Verdict: "unknown", Reason: "classifier unavailable"}
	}
	return verdict
}

func (c *SpamClient) classify(ctx context.Context, from, subject, text, html string) (model.SpamCheck, error) {
	body, err := json.Marshal(spamRequest{From: from, Subject: subject, Text: text, HTML: html})
	if err != nil {
		return model.SpamCheck{}, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod("POST")
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return model.SpamCheck{}, err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return model.SpamCheck{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var result model.SpamCheck
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return model.SpamCheck{}, err
	}
	if result.Verdict != "spam" && result.Verdict != "ham" {
		result.Verdict = "unknown"
	}
	return result, nil
}
