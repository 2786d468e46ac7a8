package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/karmahq/questline/go/clients/openai_client"
	"github.com/karmahq/questline/go/internal/api"
	"github.com/karmahq/questline/go/internal/gateway"
	"github.com/karmahq/questline/go/internal/outbox"
	"github.com/karmahq/questline/go/internal/quests"
	"github.com/karmahq/questline/go/internal/quests/orchestrator"
	"github.com/karmahq/questline/go/internal/recognizer"
	"github.com/karmahq/questline/go/internal/scoring"
	"github.com/karmahq/questline/go/internal/scraper"
	"github.com/karmahq/questline/go/internal/uploads"
	"github.com/karmahq/questline/go/internal/users"
)

type Services struct {
	cfg *AppConfig

	Users      *users.App
	Quests     *quests.App
	Categories *quests.CategorySource
	Uploads    *uploads.App
	Outbox     *outbox.App
	API        *api.Handler
	WebSocket  *gateway.WebSocketHandler

	Registry *prometheus.Registry

	connectionManager *gateway.ConnectionManager
	eventConsumer     *gateway.EventConsumer
	outboxWorker      *outbox.Worker
	orchestrator      *orchestrator.Orchestrator
	natsConn          *nats.Conn
}

func setupServices(ctx context.Context, cfg *AppConfig, pool *pgxpool.Pool) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → HTTP layer

	// Quest categories, optionally hot-reloaded from a yaml file
	categoryCfg := quests.DefaultConfig()
	if cfg.CategoryConfigPath != "" {
		loaded, err := quests.LoadConfig(cfg.CategoryConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load category config: %w", err)
		}
		categoryCfg = loaded
	}
	categories := quests.NewCategorySource(categoryCfg)

	// Users
	usersRepo := users.NewRepository(pool)
	usersApp := users.NewApp(usersRepo)

	// Quests
	questsRepo := quests.NewRepository(pool)
	questsApp := quests.NewApp(questsRepo, usersApp, categories)

	// Recognition and scoring share one OpenAI client
	openai := openai_client.NewOpenAIClient(cfg.OpenAIAPIKey)
	recog := recognizer.NewRecognizer(openai)
	scoringRepo := scoring.NewRepository(pool)
	scorer := scoring.NewScorer(openai, scoringRepo)

	// Blob storage
	var blobs uploads.BlobStore
	if cfg.S3Bucket != "" {
		s3Store, err := uploads.NewS3BlobStore(ctx, cfg.S3Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 blob store: %w", err)
		}
		blobs = s3Store
		log.Printf("Storing uploads in s3://%s", cfg.S3Bucket)
	} else {
		blobs = uploads.NewLocalBlobStore(cfg.BlobDir)
		log.Printf("Storing uploads under %s", cfg.BlobDir)
	}

	// Outbox
	outboxRepo := outbox.NewRepository(pool)
	outboxApp := outbox.NewApp(outboxRepo)

	// Upload pipeline
	uploadsApp := uploads.NewApp(blobs, uploads.NewCompletionStore(pool), recog, scorer, questsApp, outboxApp, categories)

	// Attendee scraping for first-time badge scans
	attendeeScraper := scraper.NewScraper(cfg.AttendeeBaseURL, cfg.AttendeeSessionToken)

	// HTTP API
	apiHandler := api.NewHandler(usersApp, questsApp, uploadsApp, attendeeScraper, outboxApp)
	apiHandler.SetDynamsoftLicense(cfg.DynamsoftLicense)

	// Outbox delivery onto NATS, with prometheus metrics
	registry := prometheus.NewRegistry()
	metrics := outbox.NewPrometheusMetrics(registry)

	natsConn, err := nats.Connect(cfg.NATSURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(outbox.DefaultConfig().RetryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	publisher := outbox.NewNATSPublisher(natsConn, cfg.SubjectPrefix)

	workerCfg := outbox.DefaultConfig()
	workerCfg.PollInterval = cfg.OutboxPollInterval
	workerCfg.BatchSize = cfg.OutboxBatchSize
	worker := outbox.NewWorker(outboxRepo, publisher, workerCfg, metrics)

	// Expiry orchestration driven by the quest event stream
	orch := orchestrator.NewOrchestrator(questsApp).WithOutbox(outboxApp)

	// Websocket gateway
	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	wsHandler := gateway.NewWebSocketHandler(connectionManager)
	consumerCfg := gateway.DefaultConsumerConfig()
	consumerCfg.URL = cfg.NATSURL
	consumerCfg.SubjectFilter = cfg.SubjectPrefix + ".quest.>"
	eventConsumer, err := gateway.NewEventConsumer(connectionManager, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway consumer: %w", err)
	}

	return &Services{
		cfg:               cfg,
		Users:             usersApp,
		Quests:            questsApp,
		Categories:        categories,
		Uploads:           uploadsApp,
		Outbox:            outboxApp,
		API:               apiHandler,
		WebSocket:         wsHandler,
		Registry:          registry,
		connectionManager: connectionManager,
		eventConsumer:     eventConsumer,
		outboxWorker:      worker,
		orchestrator:      orch,
		natsConn:          natsConn,
	}, nil
}

// Start launches the background components: category hot reload, broadcast
// loop, outbox delivery, gateway consumption and expiry orchestration.
func (s *Services) Start(ctx context.Context) error {
	if s.cfg.CategoryConfigPath != "" {
		if err := s.Categories.Watch(ctx, s.cfg.CategoryConfigPath); err != nil {
			return fmt.Errorf("failed to watch category config: %w", err)
		}
	}

	go s.connectionManager.Start(ctx)

	if err := s.outboxWorker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start outbox worker: %w", err)
	}
	if err := s.eventConsumer.Start(); err != nil {
		return fmt.Errorf("failed to start gateway consumer: %w", err)
	}

	if err := s.orchestrator.ConnectBus(ctx, s.cfg.NATSURL, s.cfg.SubjectPrefix); err != nil {
		return fmt.Errorf("failed to connect orchestrator: %w", err)
	}
	go func() {
		if err := s.orchestrator.Run(ctx); err != nil {
			log.Printf("Orchestrator stopped: %v", err)
		}
	}()

	return nil
}

// Stop shuts the background components down in reverse order.
func (s *Services) Stop() {
	if err := s.outboxWorker.Stop(); err != nil {
		log.Printf("Failed to stop outbox worker: %v", err)
	}
	s.eventConsumer.Stop()
	if err := s.orchestrator.Close(); err != nil {
		log.Printf("Failed to close orchestrator: %v", err)
	}
	s.natsConn.Close()
}
