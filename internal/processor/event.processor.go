package processor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gateway "github.com/openbid/auction-core/internal/gateways"
	"github.com/openbid/auction-core/internal/queue"
	"github.com/openbid/auction-core/pkg/logger"
	"github.com/openbid/auction-core/pkg/prom"
)

// eventEnvelope is the shared head of every published event payload. The full
// payload is forwarded to the sink untouched.
type eventEnvelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
}

type WebhookEventProcessor struct {
	client      *gateway.Client
	idempotency *IdempotencyService
}

func NewWebhookEventProcessor(client *gateway.Client, idempotency *IdempotencyService) *WebhookEventProcessor {
	return &WebhookEventProcessor{
		client:      client,
		idempotency: idempotency,
	}
}

func (p *WebhookEventProcessor) GetType() string {
	return "event"
}

// Process delivers one published event to a webhook sink with idempotency
// guarantees. Each event is delivered at most once per its event id; retries
// after a crash or NACK reuse the same id and are deduplicated here.
func (p *WebhookEventProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	// Step 1: Parse the envelope
	var envelope eventEnvelope
	if err := json.Unmarshal(queueMessage.Data, &envelope); err != nil {
		logger.Error("Failed to unmarshal event", "error", err)
		return err // Return error to trigger DLQ move
	}
	if envelope.ID == "" {
		logger.Error("Event without id, moving to DLQ", "queue_message_id", queueMessage.ID)
		return errors.New("event missing id")
	}

	// Step 2: Acquire processing lock and check idempotency
	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, envelope.ID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			// Event already delivered - ACK to remove from queue
			logger.Info("Event already delivered, skipping", "event_id", envelope.ID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// Max retries exceeded - give up and ACK to move on
			logger.Error("Max delivery retries exceeded", "event_id", envelope.ID, "type", envelope.Type)
			return nil // ACK to move to DLQ
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			// Another consumer is delivering - NACK to retry later
			logger.Info("Lock held by another consumer, will retry", "event_id", envelope.ID)
			return errors.New("lock held by another consumer")
		}
		// Unexpected error - NACK to retry
		logger.Error("Failed to acquire lock", "event_id", envelope.ID, "error", err)
		return err
	}

	// Ensure lock is released on exit (if not already marked success/failure)
	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Delivering event",
		"event_id", envelope.ID,
		"type", envelope.Type,
		"retry_count", procCtx.RetryCount,
		"is_retry", procCtx.IsRetry)

	// Step 3: Post the event to a webhook sink
	req := &gateway.DeliveryRequest{
		EventID:    envelope.ID,
		EventType:  envelope.Type,
		OccurredAt: envelope.OccurredAt,
		Payload:    json.RawMessage(queueMessage.Data),
	}

	res, err := p.client.Deliver(ctx, req)
	if err != nil {
		// Step 4a: Delivery failed - mark failure and retry
		logger.Error("Failed to deliver event", "event_id", envelope.ID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "event_id", envelope.ID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	// Step 4b: Delivery succeeded - record metrics and mark success
	if res.Status == gateway.StatusAccepted {
		if !envelope.OccurredAt.IsZero() {
			prom.AddEventDeliveryDuration(
				time.Since(envelope.OccurredAt).Seconds(),
				envelope.Type,
			)
		}

		logger.Info("Event delivered",
			"event_id", envelope.ID,
			"type", envelope.Type,
			"sink", res.SinkID,
			"retry_count", procCtx.RetryCount)

		// Mark as successfully delivered (sets 24-hour processed marker)
		if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
			logger.Error("Failed to mark success", "event_id", envelope.ID, "error", markErr)
			// Continue - the event was delivered
		}

		return nil // ACK message
	}

	// Sink returned a non-accepted status - treat as failure
	logger.Warn("Event not accepted by sink", "event_id", envelope.ID, "status", res.Status)
	if markErr := p.idempotency.MarkFailure(ctx, procCtx, errors.New("sink returned non-accepted status")); markErr != nil {
		logger.Error("Failed to mark failure", "event_id", envelope.ID, "error", markErr)
	}
	return errors.New("failed to deliver event")
}
