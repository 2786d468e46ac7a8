package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmahq/questline/go/internal/models"
	"github.com/karmahq/questline/go/internal/quests"
)

type fakeQuestsApp struct {
	mu      sync.Mutex
	handled []string
	results map[string]*quests.ExpiryResult
	pending []*models.Quest
	calls   chan string
}

func newFakeQuestsApp() *fakeQuestsApp {
	return &fakeQuestsApp{
		results: make(map[string]*quests.ExpiryResult),
		calls:   make(chan string, 16),
	}
}

func (f *fakeQuestsApp) HandleExpiry(ctx context.Context, questIDStr string) (*quests.ExpiryResult, error) {
	f.mu.Lock()
	f.handled = append(f.handled, questIDStr)
	result := f.results[questIDStr]
	f.mu.Unlock()
	f.calls <- questIDStr
	return result, nil
}

func (f *fakeQuestsApp) ListPendingWithDeadline(ctx context.Context) ([]*models.Quest, error) {
	return f.pending, nil
}

func (f *fakeQuestsApp) handledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handled)
}

func waitForCall(t *testing.T, app *fakeQuestsApp) string {
	t.Helper()
	select {
	case id := <-app.calls:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for expiry handling")
		return ""
	}
}

func assertNoCall(t *testing.T, app *fakeQuestsApp) {
	t.Helper()
	select {
	case id := <-app.calls:
		t.Fatalf("unexpected expiry handling for %s", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func startOrchestrator(t *testing.T, app *fakeQuestsApp, clock clockwork.Clock) (*Orchestrator, context.Context) {
	t.Helper()
	orch := NewOrchestrator(app).WithClock(clock)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orch.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return orch, ctx
}

func TestScheduleFiresAtDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := newFakeQuestsApp()
	orch, ctx := startOrchestrator(t, app, clock)

	orch.Schedule(ctx, "quest-1", clock.Now().Add(time.Hour))

	assertNoCall(t, app)

	clock.Advance(time.Hour)
	assert.Equal(t, "quest-1", waitForCall(t, app))
}

func TestSchedulePastDeadlineFiresImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := newFakeQuestsApp()
	orch, ctx := startOrchestrator(t, app, clock)

	orch.Schedule(ctx, "quest-late", clock.Now().Add(-time.Minute))

	assert.Equal(t, "quest-late", waitForCall(t, app))
}

func TestScheduleSameDeadlineIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := newFakeQuestsApp()
	orch, ctx := startOrchestrator(t, app, clock)

	deadline := clock.Now().Add(time.Hour)
	orch.Schedule(ctx, "quest-1", deadline)
	orch.Schedule(ctx, "quest-1", deadline)

	clock.Advance(2 * time.Hour)
	waitForCall(t, app)
	assertNoCall(t, app)
	assert.Equal(t, 1, app.handledCount())
}

func TestScheduleNewDeadlineReplacesTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := newFakeQuestsApp()
	orch, ctx := startOrchestrator(t, app, clock)

	orch.Schedule(ctx, "quest-1", clock.Now().Add(time.Hour))
	orch.Schedule(ctx, "quest-1", clock.Now().Add(3*time.Hour))

	clock.Advance(90 * time.Minute)
	assertNoCall(t, app)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, "quest-1", waitForCall(t, app))
	assert.Equal(t, 1, app.handledCount())
}

func TestCancelStopsTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := newFakeQuestsApp()
	orch, ctx := startOrchestrator(t, app, clock)

	orch.Schedule(ctx, "quest-1", clock.Now().Add(time.Hour))
	orch.Cancel("quest-1")

	clock.Advance(2 * time.Hour)
	assertNoCall(t, app)
}

func TestExpiryReschedulesReplacementQuest(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := newFakeQuestsApp()

	nextDeadline := clock.Now().Add(48 * time.Hour)
	app.results["quest-1"] = &quests.ExpiryResult{
		Expired: &models.Quest{QuestIDStr: "quest-1", Status: models.QuestStatusExpired},
		Next: &models.Quest{
			QuestIDStr: "quest-2",
			Status:     models.QuestStatusPending,
			ExpiresAt:  &nextDeadline,
		},
	}

	orch, ctx := startOrchestrator(t, app, clock)
	orch.Schedule(ctx, "quest-1", clock.Now().Add(24*time.Hour))

	clock.Advance(24 * time.Hour)
	require.Equal(t, "quest-1", waitForCall(t, app))

	clock.Advance(24 * time.Hour)
	assert.Equal(t, "quest-2", waitForCall(t, app))
}

type fakeExpiryOutbox struct {
	mu       sync.Mutex
	inserted []string
}

func (f *fakeExpiryOutbox) record(eventType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, eventType)
}

func (f *fakeExpiryOutbox) InsertQuestExpiredEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	f.record("QuestExpired")
	return nil
}

func (f *fakeExpiryOutbox) InsertQuestAssignedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	f.record("QuestAssigned")
	return nil
}

func (f *fakeExpiryOutbox) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inserted...)
}

func TestExpiryRecordsOutboxEvents(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := newFakeQuestsApp()
	outbox := &fakeExpiryOutbox{}

	nextDeadline := clock.Now().Add(24 * time.Hour)
	app.results["quest-1"] = &quests.ExpiryResult{
		Expired: &models.Quest{ID: uuid.New(), QuestIDStr: "quest-1", UserToID: uuid.New(), Status: models.QuestStatusExpired},
		Next: &models.Quest{
			ID:         uuid.New(),
			QuestIDStr: "quest-2",
			UserToID:   uuid.New(),
			Status:     models.QuestStatusPending,
			ExpiresAt:  &nextDeadline,
		},
	}

	orch := NewOrchestrator(app).WithClock(clock).WithOutbox(outbox)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orch.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	orch.Schedule(ctx, "quest-1", clock.Now().Add(time.Hour))
	clock.Advance(time.Hour)
	require.Equal(t, "quest-1", waitForCall(t, app))

	require.Eventually(t, func() bool {
		return len(outbox.eventTypes()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"QuestExpired", "QuestAssigned"}, outbox.eventTypes())
}

func TestRunReschedulesPendingQuestsOnBoot(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := newFakeQuestsApp()

	due := clock.Now().Add(-time.Minute)
	later := clock.Now().Add(time.Hour)
	app.pending = []*models.Quest{
		{ID: uuid.New(), QuestIDStr: "quest-due", Status: models.QuestStatusPending, ExpiresAt: &due},
		{ID: uuid.New(), QuestIDStr: "quest-later", Status: models.QuestStatusPending, ExpiresAt: &later},
	}

	startOrchestrator(t, app, clock)

	assert.Equal(t, "quest-due", waitForCall(t, app))
	assertNoCall(t, app)

	clock.Advance(time.Hour)
	assert.Equal(t, "quest-later", waitForCall(t, app))
}
