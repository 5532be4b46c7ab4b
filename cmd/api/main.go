package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fieldserve/comms-gateway/internal/config"
	gateway "github.com/fieldserve/comms-gateway/internal/gateways"
	"github.com/fieldserve/comms-gateway/internal/handlers"
	"github.com/fieldserve/comms-gateway/internal/queue"
	"github.com/fieldserve/comms-gateway/internal/repository"
	"github.com/fieldserve/comms-gateway/internal/services"
	"github.com/fieldserve/comms-gateway/internal/storage"
	"github.com/fieldserve/comms-gateway/internal/webhook"
	xhttp "github.com/fieldserve/comms-gateway/pkg/http"
	"github.com/fieldserve/comms-gateway/pkg/logger"
	"github.com/fieldserve/comms-gateway/pkg/pg"
	"github.com/fieldserve/comms-gateway/pkg/prom"
	"github.com/fieldserve/comms-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

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

	q, err := queue.NewQueue(redisAdap, queue.QueueConfig{
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
		logger.Error("failed creating queue", "error", err)
		return
	}

	verifier, err := webhook.NewVerifier(config.Get().WebhookSigningSecret)
	if err != nil {
		logger.Error("failed creating webhook verifier", "error", err)
		return
	}

	providers, err := gateway.NewClient(&gateway.Config{
		Providers: []gateway.ProviderConfig{
			{Name: "primary", URL: config.Get().ProviderPrimaryUrl, Weight: 100},
			{Name: "secondary", URL: config.Get().ProviderSecondaryUrl, Weight: 80},
			{Name: "backup", URL: config.Get().ProviderBackupUrl, Weight: 60},
		},
		Timeout:                 time.Second * 5,
		MaxRetries:              3,
		RetryDelay:              time.Millisecond * 100,
		MaxConns:                1000,
		ReadBufferSize:          1024 * 4,
		WriteBufferSize:         1024 * 4,
		HealthCheckInterval:     30 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	})
	if err != nil {
		logger.Error("failed to create provider client", "error", err)
		return
	}

	spamClient := gateway.NewSpamClient(config.Get().SpamCheckUrl, time.Second*5)

	blobs, err := storage.NewBlobStore(config.Get().AttachmentStorageDir)
	if err != nil {
		logger.Error("failed to create attachment store", "error", err)
		return
	}

	commRepo := repository.NewCommunicationRepository(db)
	routeRepo := repository.NewInboundRouteRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	unroutedRepo := repository.NewUnroutedEmailRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	suppressionRepo := repository.NewSuppressionRepository(db)

	// services
	inboundService := services.NewInboundService(
		routeRepo,
		companyRepo,
		customerRepo,
		commRepo,
		unroutedRepo,
		attachmentRepo,
		providers,
		spamClient,
		blobs,
		config.Get().CustomerMatchPolicy,
	)
	lifecycleService := services.NewLifecycleService(commRepo, suppressionRepo)
	communicationService := services.NewCommunicationService(commRepo, q)
	routeService := services.NewRouteService(routeRepo, unroutedRepo)

	// v1 handlers
	webhookHandler := handlers.NewWebhookHandler(verifier, inboundService, lifecycleService)
	communicationHandler := handlers.NewCommunicationHandler(communicationService)
	routeHandler := handlers.NewRouteHandler(routeService)
	healthHandler := handlers.NewHealthHandler()

	g := s.Router.Group("/api/v1")
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterProviderWebhookAlias(s.Router, webhookHandler)
	handlers.RegisterCommunicationRoutes(g, communicationHandler)
	handlers.RegisterRouteRoutes(g, routeHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if addr := config.Get().AppDebugMetricsAddr; addr != "" {
		go func() {
			prom.ListenAndServer(addr, config.Get().AppDebugMetricsURI)
		}()
	}

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
