package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DeliveryStatus represents the delivery status of a webhook event
type DeliveryStatus string

const (
	StatusAccepted DeliveryStatus = "ACCEPTED"
	StatusFailed   DeliveryStatus = "FAILED"
	StatusPending  DeliveryStatus = "PENDING"
)

// DeliverEventRequest represents an incoming webhook event
type DeliverEventRequest struct {
	EventID    string          `json:"event_id" binding:"required"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// DeliverEventResponse represents the response for a delivered event
type DeliverEventResponse struct {
	EventID     string         `json:"event_id"`
	Status      DeliveryStatus `json:"status"`
	ReceivedAt  *time.Time     `json:"received_at,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorMsg    string         `json:"error_message,omitempty"`
	SinkID      string         `json:"sink_id"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status     string    `json:"status"`
	SinkID     string    `json:"sink_id"`
	Timestamp  time.Time `json:"timestamp"`
	AcceptRate float64   `json:"accept_rate"`
}

// MockSink simulates a downstream webhook consumer
type MockSink struct {
	acceptRate float64
	minDelay   time.Duration
	maxDelay   time.Duration
	sinkID     string
	rng        *rand.Rand
	seen       map[string]time.Time
}

// NewMockSink creates a new mock sink instance
func NewMockSink(acceptRate float64, minDelay, maxDelay time.Duration) *MockSink {
	return &MockSink{
		acceptRate: acceptRate,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		sinkID:     "MOCK_SINK_" + uuid.New().String()[:8],
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		seen:       make(map[string]time.Time),
	}
}

// simulateDelivery simulates event ingestion with latency and flakiness
func (m *MockSink) simulateDelivery(req *DeliverEventRequest) *DeliverEventResponse {
	delay := m.randomDelay()
	time.Sleep(delay)

	response := &DeliverEventResponse{
		EventID:     req.EventID,
		SinkID:      m.sinkID,
		ProcessedAt: time.Now(),
	}

	if m.shouldAccept() {
		now := time.Now()
		response.Status = StatusAccepted
		response.ReceivedAt = &now
		m.seen[req.EventID] = now

		log.Info().
			Str("event_id", req.EventID).
			Str("event_type", req.EventType).
			Dur("delay", delay).
			Msg("Event accepted")
	} else {
		response.Status = StatusFailed
		response.ErrorCode = m.randomErrorCode()
		response.ErrorMsg = m.errorMessage(response.ErrorCode)

		log.Warn().
			Str("event_id", req.EventID).
			Str("event_type", req.EventType).
			Str("error_code", response.ErrorCode).
			Msg("Event rejected")
	}

	return response
}

func (m *MockSink) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	randomDelta := time.Duration(m.rng.Int63n(int64(delta)))
	return m.minDelay + randomDelta
}

func (m *MockSink) shouldAccept() bool {
	return m.rng.Float64() < m.acceptRate
}

func (m *MockSink) randomErrorCode() string {
	errorCodes := []string{
		"MALFORMED_EVENT",
		"NETWORK_ERROR",
		"TIMEOUT",
		"RATE_LIMITED",
		"CONSUMER_REJECTED",
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

func (m *MockSink) errorMessage(code string) string {
	msgs := map[string]string{
		"MALFORMED_EVENT":   "The event envelope could not be parsed",
		"NETWORK_ERROR":     "Network connectivity issue with consumer",
		"TIMEOUT":           "Event ingestion timed out",
		"RATE_LIMITED":      "The consumer is shedding load",
		"CONSUMER_REJECTED": "Consumer rejected the event",
	}

	if msg, ok := msgs[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

// Handler struct holds the mock sink and routes
type Handler struct {
	sink *MockSink
}

func NewHandler(sink *MockSink) *Handler {
	return &Handler{sink: sink}
}

// DeliverEvent handles single event deliveries
func (h *Handler) DeliverEvent(c *gin.Context) {
	var req DeliverEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	log.Info().
		Str("event_id", req.EventID).
		Str("event_type", req.EventType).
		Msg("Received event delivery")

	response := h.sink.simulateDelivery(&req)

	statusCode := http.StatusOK
	if response.Status == StatusFailed {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// GetEvent reports whether an event has been ingested
func (h *Handler) GetEvent(c *gin.Context) {
	eventID := c.Param("event_id")

	if eventID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "event_id is required",
		})
		return
	}

	response := DeliverEventResponse{
		EventID: eventID,
		SinkID:  h.sink.sinkID,
	}

	if receivedAt, ok := h.sink.seen[eventID]; ok {
		at := receivedAt
		response.Status = StatusAccepted
		response.ReceivedAt = &at
	} else {
		response.Status = StatusPending
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.sink.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Sink temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		SinkID:     h.sink.sinkID,
		Timestamp:  time.Now(),
		AcceptRate: h.sink.acceptRate,
	})
}

// UpdateConfig allows changing sink configuration at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		AcceptRate *float64 `json:"accept_rate"`
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
			h.sink.acceptRate = *config.AcceptRate
			log.Info().Float64("rate", *config.AcceptRate).Msg("Updated accept rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Configuration updated",
		"accept_rate": h.sink.acceptRate,
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
		v1.POST("/webhooks/events", handler.DeliverEvent)
		v1.GET("/webhooks/events/:event_id", handler.GetEvent)
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
	minDelay := getEnvDuration("MIN_DELAY", 10*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 200*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("accept_rate", acceptRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Mock Webhook Sink")

	// Create mock sink
	sink := NewMockSink(acceptRate, minDelay, maxDelay)
	handler := NewHandler(sink)
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
