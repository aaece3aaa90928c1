package services

import (
	"context"
	"time"
)

// ExpiryCheck is the scheduled-job payload asking the worker to re-examine a
// settlement once its retry window has ended.
type ExpiryCheck struct {
	SettlementID int64     `json:"settlement_id"`
	DueAt        time.Time `json:"due_at"`
}

// QueueScheduler schedules expiry checks by publishing them to the jobs
// queue. The worker holds messages until DueAt before acting; the periodic
// sweep backstops any lost message.
type QueueScheduler struct {
	publisher EventPublisher
}

func NewQueueScheduler(publisher EventPublisher) *QueueScheduler {
	return &QueueScheduler{publisher: publisher}
}

func (s *QueueScheduler) ScheduleExpiryCheck(ctx context.Context, settlementID int64, at time.Time) error {
	_, err := s.publisher.PublishJSON(ctx, ExpiryCheck{
		SettlementID: settlementID,
		DueAt:        at,
	}, map[string]string{"type": "settlement.expiry_check"})
	return err
}
