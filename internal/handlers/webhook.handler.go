package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/fieldserve/comms-gateway/internal/webhook"
	xhttp "github.com/fieldserve/comms-gateway/pkg/http"
	"github.com/fieldserve/comms-gateway/pkg/logger"
	"github.com/fieldserve/comms-gateway/pkg/prom"
)

type InboundProcessor interface {
	ProcessReceived(ctx context.Context, ev *webhook.Event, rawBody []byte) error
}

type LifecycleProcessor interface {
	HandleEvent(ctx context.Context, ev *webhook.Event) error
}

type WebhookHandler struct {
	verifier  *webhook.Verifier
	inbound   InboundProcessor
	lifecycle LifecycleProcessor
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/email", h.HandleEmailEvent)
}

// RegisterProviderWebhookAlias exposes the unversioned path the provider
// console is configured with, alongside the versioned neutral route.
func RegisterProviderWebhookAlias(r *router.Router, h *WebhookHandler) {
	r.POST("/api/webhooks/resend", h.HandleEmailEvent)
}

func NewWebhookHandler(verifier *webhook.Verifier, inbound InboundProcessor, lifecycle LifecycleProcessor) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		inbound:   inbound,
		lifecycle: lifecycle,
	}
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HandleEmailEvent is the single entry point the email provider delivers to.
// Signature failures are the only rejection: once a payload is authenticated
// we always acknowledge it, otherwise the provider keeps redelivering events
// we can never use.
func (h *WebhookHandler) HandleEmailEvent(ctx *xhttp.RequestCtx) {
	msgID := string(ctx.Request.Header.Peek("svix-id"))
	timestamp := string(ctx.Request.Header.Peek("svix-timestamp"))
	signatures := string(ctx.Request.Header.Peek("svix-signature"))
	body := ctx.PostBody()

	if err := h.verifier.Verify(msgID, timestamp, body, signatures); err != nil {
		logger.Warn("webhook signature rejected", "svix_id", msgID, "error", err)
		writeJSON(ctx, 401, webhookResponse{Success: false, Error: "invalid signature"})
		return
	}

	ev, err := webhook.Parse(body)
	if err != nil {
		// authenticated but unparseable, acknowledge and drop
		logger.Warn("webhook payload malformed", "svix_id", msgID, "error", err)
		writeJSON(ctx, 200, webhookResponse{Success: true})
		return
	}

	prom.ObserveWebhookEvent(ev.Type)

	switch ev.Type {
	case webhook.EventEmailReceived:
		err = h.inbound.ProcessReceived(ctx, ev, body)
	default:
		err = h.lifecycle.HandleEvent(ctx, ev)
	}
	if err != nil {
		logger.Error("webhook processing failed", "svix_id", msgID, "type", ev.Type, "error", err)
		writeJSON(ctx, 500, webhookResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(ctx, 200, webhookResponse{Success: true})
}
