package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/openbid/auction-core/internal/config"
	"github.com/openbid/auction-core/internal/model"
	"github.com/openbid/auction-core/internal/queue"
	"github.com/openbid/auction-core/internal/repository"
	"github.com/openbid/auction-core/internal/services"
	"github.com/openbid/auction-core/pkg/logger"
	"github.com/openbid/auction-core/pkg/pg"
	"github.com/openbid/auction-core/pkg/redis"
)

const sweepBatchSize = 200

func main() {
	defer logger.Sync() //nolint:errcheck

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	db, err := pg.CreateReadWrite(readConf, writeConf, false)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("worker", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "worker",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	eventsQ, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating events queue", "error", err)
		return
	}

	jobsQ, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName + ":jobs",
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName + "-worker",
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating jobs queue", "error", err)
		return
	}

	userRepo := repository.NewUserRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	locker := repository.NewLocker(db)

	scheduler := services.NewQueueScheduler(jobsQ)
	ledgerService := services.NewLedgerService(ledgerRepo, userRepo, locker)
	settlementService := services.NewSettlementService(db, settlementRepo, scheduler, eventsQ)
	reconcileService := services.NewReconcileService(userRepo, ledgerService, locker)

	ctx, cancel := context.WithCancel(context.Background())

	if err := jobsQ.Consume(expiryCheckHandler(settlementService)); err != nil {
		logger.Error("failed to start jobs consumer", "error", err)
		return
	}

	go sweepLoop(ctx, settlementService)
	go reconcileLoop(ctx, reconcileService)

	logger.Info("worker started",
		"sweep_interval", config.Get().SweepInterval,
		"reconcile_interval", config.Get().ReconcileInterval)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, os.Kill)
	<-c

	cancel()
	if err := jobsQ.Stop(time.Second * 30); err != nil {
		logger.Error("jobs queue did not stop cleanly", "error", err)
	}
}

// expiryCheckHandler consumes scheduled expiry checks. Checks arriving before
// their due time are held in the handler; the periodic sweep catches anything
// a crashed worker drops on the floor.
func expiryCheckHandler(settlements *services.SettlementService) queue.MessageHandler {
	return func(ctx context.Context, msg *queue.Message) error {
		if msg.Metadata["type"] != "settlement.expiry_check" {
			logger.Warn("skipping job with unknown type", "type", msg.Metadata["type"], "id", msg.ID)
			return nil
		}

		var check services.ExpiryCheck
		if err := json.Unmarshal(msg.Data, &check); err != nil {
			logger.Error("malformed expiry check", "id", msg.ID, "error", err)
			return nil
		}

		if wait := time.Until(check.DueAt); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		_, err := settlements.ExpireSettlement(ctx, check.SettlementID)
		if err != nil {
			// Already paid or already expired means the check is stale.
			var invalid *model.InvalidTransitionError
			if errors.As(err, &invalid) || errors.Is(err, repository.ErrSettlementNotFound) {
				return nil
			}
			logger.Error("expiry check failed", "settlement_id", check.SettlementID, "error", err)
			return err
		}

		logger.Info("settlement expired on schedule", "settlement_id", check.SettlementID)
		return nil
	}
}

func sweepLoop(ctx context.Context, settlements *services.SettlementService) {
	ticker := time.NewTicker(config.Get().SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := settlements.ExpireOverdue(ctx, sweepBatchSize)
			if err != nil {
				logger.Error("expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expiry sweep done", "expired", n)
			}
		}
	}
}

func reconcileLoop(ctx context.Context, reconcile *services.ReconcileService) {
	ticker := time.NewTicker(config.Get().ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := reconcile.ReconcileBalances(ctx, config.Get().ReconcileFix, config.Get().ReconcileBatchLimit)
			if err != nil {
				logger.Error("reconcile sweep failed", "error", err)
				continue
			}
			if report.Drifted > 0 {
				logger.Warn("balance drift detected",
					"checked", report.Checked,
					"drifted", report.Drifted,
					"fixed", report.Fixed)
			}
		}
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
