package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openbid/auction-core/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrNoAvailableSinks = errors.New("no available webhook sinks")
)

type DeliveryStatus string

const (
	StatusAccepted DeliveryStatus = "ACCEPTED"
	StatusFailed   DeliveryStatus = "FAILED"
	StatusPending  DeliveryStatus = "PENDING"
)

// Request/Response types
type DeliveryRequest struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type DeliveryResponse struct {
	EventID     string         `json:"event_id"`
	Status      DeliveryStatus `json:"status"`
	ReceivedAt  *time.Time     `json:"received_at,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorMsg    string         `json:"error_message,omitempty"`
	SinkID      string         `json:"sink_id"`
	ProcessedAt time.Time      `json:"processed_at"`
}

type SinkMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64

	mu             sync.RWMutex
	latencyHistory []int64 // Last N latencies for percentile calculation
	maxHistorySize int
}

func NewSinkMetrics() *SinkMetrics {
	return &SinkMetrics{
		latencyHistory: make([]int64, 0, 100),
		maxHistorySize: 100,
	}
}

func (m *SinkMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())

	m.mu.Lock()
	if len(m.latencyHistory) >= m.maxHistorySize {
		m.latencyHistory = m.latencyHistory[1:]
	}
	m.latencyHistory = append(m.latencyHistory, latencyMs)
	m.mu.Unlock()
}

func (m *SinkMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *SinkMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *SinkMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *SinkMetrics) P95LatencyMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencyHistory) == 0 {
		return 0
	}

	sorted := make([]int64, len(m.latencyHistory))
	copy(sorted, m.latencyHistory)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p95Index := int(float64(len(sorted)) * 0.95)
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}
	return sorted[p95Index]
}

type SinkState int

const (
	StateHealthy SinkState = iota
	StateDegraded
	StateUnhealthy
	StateCircuitOpen
)

type Sink struct {
	name             string
	url              string
	client           *fasthttp.Client
	metrics          *SinkMetrics
	state            atomic.Int32
	weight           atomic.Int32 // Base weight/priority
	lastHealthCheck  atomic.Int64
	circuitOpenUntil atomic.Int64

	mu sync.RWMutex
}

func NewSink(name, url string, weight int, client *fasthttp.Client) *Sink {
	s := &Sink{
		name:    name,
		url:     url,
		client:  client,
		metrics: NewSinkMetrics(),
	}
	s.state.Store(int32(StateHealthy))
	s.weight.Store(int32(weight))
	return s
}

func (s *Sink) GetState() SinkState {
	return SinkState(s.state.Load())
}

func (s *Sink) SetState(state SinkState) {
	s.state.Store(int32(state))
}

func (s *Sink) IsAvailable() bool {
	state := s.GetState()
	if state == StateCircuitOpen {
		// Check if circuit should close
		openUntil := s.circuitOpenUntil.Load()
		if time.Now().Unix() > openUntil {
			s.SetState(StateDegraded)
			return true
		}
		return false
	}
	return state != StateUnhealthy
}

// CalculateScore calculates sink score based on metrics (higher is better)
func (s *Sink) CalculateScore() float64 {
	if !s.IsAvailable() {
		return 0.0
	}

	metrics := s.metrics
	baseWeight := float64(s.weight.Load())

	// Success rate weight (0-100 points)
	successRate := metrics.SuccessRate()
	successScore := successRate * 100

	// Latency score (0-100 points, lower latency = higher score)
	avgLatency := metrics.AvgLatencyMs()
	latencyScore := 100.0
	if avgLatency > 0 {
		// Normalize: 100ms = 100 points, 1000ms = 10 points, 5000ms+ = 0 points
		latencyScore = 100.0 * (1.0 - (float64(avgLatency) / 5000.0))
		if latencyScore < 0 {
			latencyScore = 0
		}
	}

	// Recent performance weight (penalize recent failures)
	consecutiveFails := float64(metrics.ConsecutiveFails.Load())
	recentPenalty := 1.0 - (consecutiveFails * 0.1) // Each fail reduces by 10%
	if recentPenalty < 0.1 {
		recentPenalty = 0.1
	}

	// State penalty
	statePenalty := 1.0
	switch s.GetState() {
	case StateDegraded:
		statePenalty = 0.5
	case StateUnhealthy, StateCircuitOpen:
		statePenalty = 0.0
	}

	// Calculate final score
	score := (successScore*0.4 + latencyScore*0.4 + baseWeight*0.2) * recentPenalty * statePenalty

	return score
}

type Config struct {
	Sinks                   []SinkConfig
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	ReadBufferSize          int
	WriteBufferSize         int
	HealthCheckInterval     time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	MetricsWindow           time.Duration
}

type SinkConfig struct {
	Name   string
	URL    string
	Weight int // Base priority weight (1-100)
}

// Client fans auction events out to the configured webhook sinks, always
// picking the best-scoring healthy sink and failing over on errors.
type Client struct {
	config *Config
	sinks  []*Sink
	mu     sync.RWMutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	if len(config.Sinks) == 0 {
		return nil, errors.New("at least one webhook sink is required")
	}

	client := &Client{
		config: config,
		sinks:  make([]*Sink, 0, len(config.Sinks)),
		stopCh: make(chan struct{}),
	}

	// Initialize sinks
	for _, sc := range config.Sinks {
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
		}

		sink := NewSink(sc.Name, sc.URL, sc.Weight, httpClient)
		client.sinks = append(client.sinks, sink)

		logger.Info("Webhook sink initialized", "name", sc.Name, "url", sc.URL, "weight", sc.Weight)
	}

	// Start background tasks
	client.wg.Add(2)
	go client.healthChecker()
	go client.metricsCollector()

	logger.Info("Webhook client initialized", "sinks", len(client.sinks), "timeout", config.Timeout)

	return client, nil
}

// SelectBestSink selects the best performing sink
func (c *Client) SelectBestSink() (*Sink, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.sinks) == 0 {
		return nil, ErrNoAvailableSinks
	}

	var bestSink *Sink
	var bestScore float64

	for _, sink := range c.sinks {
		if !sink.IsAvailable() {
			continue
		}

		score := sink.CalculateScore()
		if score > bestScore {
			bestScore = score
			bestSink = sink
		}
	}

	if bestSink == nil {
		return nil, ErrNoAvailableSinks
	}

	logger.Debug("Selected sink", "sink", bestSink.name, "score", bestScore)

	return bestSink, nil
}

// Deliver posts a single event to the best available sink
func (c *Client) Deliver(ctx context.Context, req *DeliveryRequest) (*DeliveryResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		sink, err := c.SelectBestSink()
		if err != nil {
			lastErr = err
			continue
		}

		startTime := time.Now()
		response, err := c.doRequest(ctx, sink, "POST", "/api/v1/webhooks/events", reqBody)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			sink.metrics.RecordFailure()
			c.checkCircuitBreaker(sink)

			logger.Warn("Delivery failed, retrying", "error", err, "sink", sink.name, "attempt", attempt+1)

			lastErr = err
			continue
		}

		sink.metrics.RecordSuccess(latency)

		var resp DeliveryResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		logger.Info("Event delivered to sink", "event_id", req.EventID, "status", string(resp.Status), "sink", sink.name, "latency_ms", latency)

		return &resp, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// doRequest performs HTTP request with timeout
func (c *Client) doRequest(ctx context.Context, sink *Sink, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	url := sink.url + path
	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")

	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := sink.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}

func (c *Client) checkCircuitBreaker(sink *Sink) {
	consecutiveFails := sink.metrics.ConsecutiveFails.Load()
	if consecutiveFails >= int32(c.config.CircuitBreakerThreshold) {
		sink.SetState(StateCircuitOpen)
		openUntil := time.Now().Add(c.config.CircuitBreakerTimeout).Unix()
		sink.circuitOpenUntil.Store(openUntil)

		logger.Warn("Circuit breaker opened", "sink", sink.name, "consecutive_fails", consecutiveFails, "timeout", c.config.CircuitBreakerTimeout)
	}
}

func (c *Client) healthChecker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.performHealthChecks()
		case <-c.stopCh:
			return
		}
	}
}

// performHealthChecks checks health of all sinks
func (c *Client) performHealthChecks() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	c.mu.RLock()
	sinks := make([]*Sink, len(c.sinks))
	copy(sinks, c.sinks)
	c.mu.RUnlock()

	for _, sink := range sinks {
		healthy := c.checkSinkHealth(ctx, sink)
		sink.lastHealthCheck.Store(time.Now().Unix())

		oldState := sink.GetState()
		newState := oldState

		if healthy {
			if oldState == StateUnhealthy || oldState == StateDegraded {
				newState = StateHealthy
			}
		} else {
			newState = StateUnhealthy
		}

		if newState != oldState {
			sink.SetState(newState)
			logger.Info("Sink state changed", "sink", sink.name, "old_state", stateString(oldState), "new_state", stateString(newState))
		}
	}
}

// checkSinkHealth checks if a sink is healthy
func (c *Client) checkSinkHealth(ctx context.Context, sink *Sink) bool {
	response, err := c.doRequest(ctx, sink, "GET", "/health", nil)
	if err != nil {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(response, &health); err != nil {
		return false
	}

	return health.Status == "healthy"
}

// metricsCollector periodically evaluates sink performance
func (c *Client) metricsCollector() {
	defer c.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evaluateSinks()
		case <-c.stopCh:
			return
		}
	}
}

// evaluateSinks evaluates and adjusts sink states based on metrics
func (c *Client) evaluateSinks() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, sink := range c.sinks {
		if sink.GetState() == StateCircuitOpen {
			continue
		}

		successRate := sink.metrics.SuccessRate()
		avgLatency := sink.metrics.AvgLatencyMs()

		// Determine state based on performance
		if successRate < 0.8 || avgLatency > 5000 {
			if sink.GetState() != StateDegraded {
				sink.SetState(StateDegraded)
				logger.Warn("Sink degraded", "sink", sink.name, "success_rate", successRate, "avg_latency_ms", avgLatency)
			}
		} else if successRate > 0.95 && avgLatency < 2000 {
			if sink.GetState() != StateHealthy {
				sink.SetState(StateHealthy)
				logger.Info("Sink recovered to healthy state", "sink", sink.name)
			}
		}
	}
}

// GetSinkStats returns detailed statistics for all sinks
func (c *Client) GetSinkStats() []SinkStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]SinkStats, 0, len(c.sinks))
	for _, sink := range c.sinks {
		stats = append(stats, SinkStats{
			Name:             sink.name,
			URL:              sink.url,
			State:            stateString(sink.GetState()),
			Score:            sink.CalculateScore(),
			TotalRequests:    sink.metrics.TotalRequests.Load(),
			SuccessfulReqs:   sink.metrics.SuccessfulReqs.Load(),
			FailedReqs:       sink.metrics.FailedReqs.Load(),
			SuccessRate:      sink.metrics.SuccessRate(),
			AvgLatencyMs:     sink.metrics.AvgLatencyMs(),
			P95LatencyMs:     sink.metrics.P95LatencyMs(),
			LastLatencyMs:    sink.metrics.LastLatencyMs.Load(),
			ConsecutiveFails: sink.metrics.ConsecutiveFails.Load(),
		})
	}

	// Sort by score
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Score > stats[j].Score
	})

	return stats
}

// Close closes the client and releases resources
func (c *Client) Close() error {
	close(c.stopCh)
	c.wg.Wait()
	logger.Info("Webhook client closed")
	return nil
}

// Supporting types
type SinkStats struct {
	Name             string
	URL              string
	State            string
	Score            float64
	TotalRequests    int64
	SuccessfulReqs   int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	P95LatencyMs     int64
	LastLatencyMs    int64
	ConsecutiveFails int32
}

func stateString(state SinkState) string {
	switch state {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNKNOWN"
	}
}
