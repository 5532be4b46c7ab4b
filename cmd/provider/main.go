package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fieldserve/comms-gateway/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AcceptState represents the provider-side state of a submitted email
type AcceptState string

const (
	StateQueued   AcceptState = "QUEUED"
	StateAccepted AcceptState = "ACCEPTED"
	StateRejected AcceptState = "REJECTED"
)

// SendEmailRequest represents the request to send an email
type SendEmailRequest struct {
	Reference string `json:"reference"`
	From      string `json:"from" binding:"required"`
	To        string `json:"to" binding:"required"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
	HTML      string `json:"html"`
}

// SendEmailResponse represents the response from submitting an email
type SendEmailResponse struct {
	ID         string      `json:"id"`
	Status     AcceptState `json:"status"`
	ErrorCode  string      `json:"error_code,omitempty"`
	ErrorMsg   string      `json:"error_message,omitempty"`
	AcceptedAt time.Time   `json:"accepted_at"`
}

// EmailContentResponse serves the stored body for content-fetch requests
type EmailContentResponse struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status     string    `json:"status"`
	ProviderID string    `json:"provider_id"`
	Timestamp  time.Time `json:"timestamp"`
	AcceptRate float64   `json:"accept_rate"`
}

// storedEmail keeps an accepted submission for content fetches and
// lifecycle webhooks
type storedEmail struct {
	req SendEmailRequest
	id  string
}

// MockProvider simulates an email delivery provider
type MockProvider struct {
	acceptRate float64
	bounceRate float64
	minDelay   time.Duration
	maxDelay   time.Duration
	providerID string
	rng        *rand.Rand

	mu     sync.RWMutex
	emails map[string]storedEmail
}

// NewMockProvider creates a new mock provider instance
func NewMockProvider(acceptRate, bounceRate float64, minDelay, maxDelay time.Duration) *MockProvider {
	return &MockProvider{
		acceptRate: acceptRate,
		bounceRate: bounceRate,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		providerID: "MOCK_PROVIDER_" + uuid.New().String()[:8],
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		emails:     make(map[string]storedEmail),
	}
}

func (m *MockProvider) accept(req *SendEmailRequest) *SendEmailResponse {
	response := &SendEmailResponse{
		ID:         "em_" + uuid.New().String(),
		AcceptedAt: time.Now(),
	}

	if m.shouldAccept() {
		response.Status = StateQueued

		m.mu.Lock()
		m.emails[response.ID] = storedEmail{req: *req, id: response.ID}
		m.mu.Unlock()

		log.Info().
			Str("email_id", response.ID).
			Str("to", req.To).
			Str("reference", req.Reference).
			Msg("Email accepted")
	} else {
		response.Status = StateRejected
		response.ErrorCode = m.randomErrorCode()
		response.ErrorMsg = m.errorMessage(response.ErrorCode)

		log.Warn().
			Str("to", req.To).
			Str("error_code", response.ErrorCode).
			Msg("Email rejected")
	}

	return response
}

func (m *MockProvider) lookup(id string) (storedEmail, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.emails[id]
	return e, ok
}

func (m *MockProvider) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	randomDelta := time.Duration(m.rng.Int63n(int64(delta)))
	return m.minDelay + randomDelta
}

func (m *MockProvider) shouldAccept() bool {
	return m.rng.Float64() < m.acceptRate
}

func (m *MockProvider) shouldBounce() bool {
	return m.rng.Float64() < m.bounceRate
}

func (m *MockProvider) randomErrorCode() string {
	errorCodes := []string{
		"INVALID_RECIPIENT",
		"NETWORK_ERROR",
		"TIMEOUT",
		"CONTENT_REJECTED",
		"RATE_LIMITED",
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

func (m *MockProvider) errorMessage(code string) string {
	messages := map[string]string{
		"INVALID_RECIPIENT": "The recipient address is invalid",
		"NETWORK_ERROR":     "Network connectivity issue with downstream MTA",
		"TIMEOUT":           "Email submission timed out",
		"CONTENT_REJECTED":  "Email content violates provider policies",
		"RATE_LIMITED":      "Sending rate limit exceeded",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

// webhookSender fires signed lifecycle events back at the gateway
type webhookSender struct {
	url      string
	verifier *webhook.Verifier
	client   *http.Client
}

func newWebhookSender(url, secret string) (*webhookSender, error) {
	if url == "" {
		return nil, nil
	}
	v, err := webhook.NewVerifier(secret)
	if err != nil {
		return nil, err
	}
	return &webhookSender{
		url:      url,
		verifier: v,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (w *webhookSender) send(eventType, emailID string, email storedEmail) {
	payload := map[string]interface{}{
		"type":       eventType,
		"created_at": time.Now().UTC().Format(time.RFC3339),
		"data": map[string]interface{}{
			"email_id": emailID,
			"to":       []string{email.req.To},
			"from":     email.req.From,
			"subject":  email.req.Subject,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal webhook payload")
		return
	}

	msgID := "msg_" + uuid.New().String()
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("svix-id", msgID)
	req.Header.Set("svix-timestamp", ts)
	req.Header.Set("svix-signature", w.verifier.Sign(msgID, ts, body))

	resp, err := w.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	log.Info().
		Str("type", eventType).
		Str("email_id", emailID).
		Int("status", resp.StatusCode).
		Msg("Webhook delivered")
}

// Handler struct holds the mock provider and routes
type Handler struct {
	provider *MockProvider
	webhooks *webhookSender
}

func NewHandler(provider *MockProvider, webhooks *webhookSender) *Handler {
	return &Handler{provider: provider, webhooks: webhooks}
}

// SendEmail handles email submission requests
func (h *Handler) SendEmail(c *gin.Context) {
	var req SendEmailRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	log.Info().
		Str("to", req.To).
		Str("reference", req.Reference).
		Msg("Received email send request")

	response := h.provider.accept(&req)

	if response.Status == StateQueued {
		go h.simulateLifecycle(response.ID)
	}

	c.JSON(http.StatusOK, response)
}

// simulateLifecycle fires sent and then delivered or bounced events after a
// random delay
func (h *Handler) simulateLifecycle(emailID string) {
	if h.webhooks == nil {
		return
	}
	email, ok := h.provider.lookup(emailID)
	if !ok {
		return
	}

	time.Sleep(h.provider.randomDelay())
	h.webhooks.send("email.sent", emailID, email)

	time.Sleep(h.provider.randomDelay())
	if h.provider.shouldBounce() {
		h.webhooks.send("email.bounced", emailID, email)
		return
	}
	h.webhooks.send("email.delivered", emailID, email)
}

// GetEmail handles content-fetch requests
func (h *Handler) GetEmail(c *gin.Context) {
	emailID := c.Param("email_id")

	if emailID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "email_id is required",
		})
		return
	}

	email, ok := h.provider.lookup(emailID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "email not found",
		})
		return
	}

	c.JSON(http.StatusOK, EmailContentResponse{
		Text: email.req.Text,
		HTML: email.req.HTML,
	})
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.provider.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Provider temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		ProviderID: h.provider.providerID,
		Timestamp:  time.Now(),
		AcceptRate: h.provider.acceptRate,
	})
}

// UpdateConfig allows changing provider configuration at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		AcceptRate *float64 `json:"accept_rate"`
		BounceRate *float64 `json:"bounce_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.AcceptRate != nil {
		if *config.AcceptRate >= 0 && *config.AcceptRate <= 1.0 {
			h.provider.acceptRate = *config.AcceptRate
			log.Info().Float64("rate", *config.AcceptRate).Msg("Updated accept rate")
		}
	}
	if config.BounceRate != nil {
		if *config.BounceRate >= 0 && *config.BounceRate <= 1.0 {
			h.provider.bounceRate = *config.BounceRate
			log.Info().Float64("rate", *config.BounceRate).Msg("Updated bounce rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Configuration updated",
		"accept_rate": h.provider.acceptRate,
		"bounce_rate": h.provider.bounceRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/emails", handler.SendEmail)
		v1.GET("/emails/:email_id", handler.GetEmail)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8081")
	acceptRate := getEnvFloat("ACCEPT_RATE", 1)
	bounceRate := getEnvFloat("BOUNCE_RATE", 0.05)
	minDelay := getEnvDuration("MIN_DELAY", 1*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 5*time.Second)
	webhookURL := getEnv("WEBHOOK_URL", "")
	webhookSecret := getEnv("WEBHOOK_SIGNING_SECRET", "")

	log.Info().
		Str("port", port).
		Float64("accept_rate", acceptRate).
		Float64("bounce_rate", bounceRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Str("webhook_url", webhookURL).
		Msg("Starting Mock Email Provider")

	// Create mock provider
	provider := NewMockProvider(acceptRate, bounceRate, minDelay, maxDelay)

	webhooks, err := newWebhookSender(webhookURL, webhookSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create webhook sender")
	}

	handler := NewHandler(provider, webhooks)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
