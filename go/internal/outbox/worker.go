package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Config struct {
	PollInterval time.Duration
	BatchSize    int32
	MaxRetries   int
	RetryDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
		MaxRetries:   3,
		RetryDelay:   time.Second,
	}
}

// WorkerRepository defines what the worker needs from the repository.
type WorkerRepository interface {
	FetchUnsent(ctx context.Context, limit int32) ([]*OutboxEvent, error)
	MarkSent(ctx context.Context, ids []uuid.UUID) error
	CountUnsent(ctx context.Context) (int, error)
}

// Worker polls the outbox table and publishes unsent events to the bus.
// Delivery is at-least-once: an event is only marked sent after a successful
// publish, so a crash in between republishes it.
type Worker struct {
	repo      WorkerRepository
	publisher EventPublisher
	config    Config
	metrics   MetricsCollector

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(repo WorkerRepository, publisher EventPublisher, cfg Config, metrics MetricsCollector) *Worker {
	if metrics == nil {
		metrics = &NoOpMetricsCollector{}
	}
	return &Worker{
		repo:      repo,
		publisher: publisher,
		config:    cfg,
		metrics:   metrics,
		stopChan:  make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Dur("poll_interval", w.config.PollInterval).
		Int32("batch_size", w.config.BatchSize).
		Msg("outbox worker started")
	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Msg("outbox worker stopped")
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.processOutbox(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	start := time.Now()

	outboxEvents, err := w.repo.FetchUnsent(ctx, w.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch unsent events")
		return
	}
	if len(outboxEvents) == 0 {
		w.metrics.RecordOutboxLag(0)
		return
	}

	log.Debug().Int("count", len(outboxEvents)).Msg("processing outbox events")

	var successfulIDs []uuid.UUID
	for _, event := range outboxEvents {
		if err := w.publishWithRetry(ctx, *event); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Msg("failed to publish event")
			w.metrics.RecordEventProcessed(event.EventType, false, time.Since(start))
			continue
		}
		w.metrics.RecordEventProcessed(event.EventType, true, time.Since(start))
		successfulIDs = append(successfulIDs, event.ID)
	}

	if err := w.repo.MarkSent(ctx, successfulIDs); err != nil {
		log.Error().Err(err).Msg("failed to mark events as sent")
		return
	}

	w.metrics.RecordBatchProcessed(len(successfulIDs), time.Since(start))
	if lag, err := w.repo.CountUnsent(ctx); err == nil {
		w.metrics.RecordOutboxLag(lag)
	}

	log.Info().
		Int("total", len(outboxEvents)).
		Int("successful", len(successfulIDs)).
		Msg("processed outbox events")
}

func (w *Worker) publishWithRetry(ctx context.Context, event OutboxEvent) error {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := w.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			w.metrics.RecordPublishAttempt(event.EventType, attempt+1, false)
			log.Warn().
				Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}

		w.metrics.RecordPublishAttempt(event.EventType, attempt+1, true)
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
