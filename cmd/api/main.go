package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/openbid/auction-core/internal/config"
	"github.com/openbid/auction-core/internal/handlers"
	"github.com/openbid/auction-core/internal/queue"
	"github.com/openbid/auction-core/internal/repository"
	"github.com/openbid/auction-core/internal/services"
	xhttp "github.com/openbid/auction-core/pkg/http"
	"github.com/openbid/auction-core/pkg/logger"
	"github.com/openbid/auction-core/pkg/pg"
	"github.com/openbid/auction-core/pkg/prom"
	"github.com/openbid/auction-core/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync() //nolint:errcheck

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

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

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
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
	}

	jobsQ, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName + ":jobs",
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
		logger.Error("failed creating jobs queue", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	auctionRepo := repository.NewAuctionRepository(db)
	bidRepo := repository.NewBidRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	fulfillmentRepo := repository.NewFulfillmentRepository(db)
	locker := repository.NewLocker(db)

	// services
	scheduler := services.NewQueueScheduler(jobsQ)
	ledgerService := services.NewLedgerService(ledgerRepo, userRepo, locker)
	settlementService := services.NewSettlementService(db, settlementRepo, scheduler, eventsQ)
	auctionService := services.NewAuctionService(auctionRepo, bidRepo, locker, settlementService, eventsQ)
	biddingService := services.NewBiddingService(auctionRepo, bidRepo, userRepo, ledgerService, locker, eventsQ)
	fulfillmentService := services.NewFulfillmentService(db, fulfillmentRepo, settlementRepo)
	accountService := services.NewAccountService(userRepo, ledgerService)
	reconcileService := services.NewReconcileService(userRepo, ledgerService, locker)
	healthService := services.NewHealthService(db)

	// v1 handlers
	auctionHandler := handlers.NewAuctionHandler(auctionService)
	bidHandler := handlers.NewBidHandler(biddingService)
	accountHandler := handlers.NewAccountHandler(accountService, ledgerService)
	settlementHandler := handlers.NewSettlementHandler(settlementService)
	fulfillmentHandler := handlers.NewFulfillmentHandler(fulfillmentService)
	adminHandler := handlers.NewAdminHandler(reconcileService, settlementService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterAuctionRoutes(g, auctionHandler)
	handlers.RegisterBidRoutes(g, bidHandler)
	handlers.RegisterAccountRoutes(g, accountHandler)
	handlers.RegisterSettlementRoutes(g, settlementHandler)
	handlers.RegisterFulfillmentRoutes(g, fulfillmentHandler)
	handlers.RegisterAdminRoutes(g, adminHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9101", "/metrics")
	}()

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
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
