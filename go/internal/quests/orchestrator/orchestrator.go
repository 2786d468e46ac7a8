package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"

	"github.com/karmahq/questline/go/internal/models"
	"github.com/karmahq/questline/go/internal/quests"
)

// QuestsApp defines what the orchestrator needs from the quests app.
type QuestsApp interface {
	HandleExpiry(ctx context.Context, questIDStr string) (*quests.ExpiryResult, error)
	ListPendingWithDeadline(ctx context.Context) ([]*models.Quest, error)
}

// OutboxApp defines the outbox inserts the expiry workers perform.
type OutboxApp interface {
	InsertQuestExpiredEvent(ctx context.Context, userID uuid.UUID, payload []byte) error
	InsertQuestAssignedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error
}

// Orchestrator owns one-shot expiry timers for pending quests. Timers are
// keyed by quest_id_str; when one fires the quest is enqueued for a worker
// which expires it and schedules the replacement quest's deadline.
type Orchestrator struct {
	questsApp  QuestsApp
	outbox     OutboxApp
	clock      clockwork.Clock
	instanceID string
	nc         *nats.Conn

	numWorkers int
	workCh     chan string

	activeTimers   map[string]clockwork.Timer
	activeTimersMu sync.Mutex

	lastScheduled   map[string]time.Time
	lastScheduledMu sync.Mutex
}

// NewOrchestrator creates a quest expiry orchestrator with a worker pool.
func NewOrchestrator(questsApp QuestsApp) *Orchestrator {
	numWorkers := 4
	return &Orchestrator{
		questsApp:  questsApp,
		clock:      clockwork.NewRealClock(),
		instanceID: uuid.New().String()[:8],

		numWorkers: numWorkers,
		workCh:     make(chan string, numWorkers*2),

		activeTimers:  make(map[string]clockwork.Timer),
		lastScheduled: make(map[string]time.Time),
	}
}

// WithClock swaps the clock, for tests.
func (o *Orchestrator) WithClock(clock clockwork.Clock) *Orchestrator {
	o.clock = clock
	return o
}

// WithOutbox attaches an outbox so expiry workers record QuestExpired and
// QuestAssigned events. Without one, expiry still runs; only the events are
// skipped.
func (o *Orchestrator) WithOutbox(outbox OutboxApp) *Orchestrator {
	o.outbox = outbox
	return o
}
