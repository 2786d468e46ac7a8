package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessEventSchedulesAssignedQuest(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := newFakeQuestsApp()
	orch, _ := startOrchestrator(t, app, clock)

	expires := clock.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	err := orch.processEvent(context.Background(), []byte(`{
		"eventType": "QuestAssigned",
		"userId": "ignored",
		"payload": {"quest_id_str": "quest-7", "user_to_id": "u1", "expires_at": "`+expires+`"}
	}`))
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, "quest-7", waitForCall(t, app))
}

func TestProcessEventCancelsCompletedQuest(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := newFakeQuestsApp()
	orch, ctx := startOrchestrator(t, app, clock)

	orch.Schedule(ctx, "quest-7", clock.Now().Add(time.Hour))

	err := orch.processEvent(context.Background(), []byte(`{
		"eventType": "QuestCompleted",
		"payload": {"quest_id_str": "quest-7", "user_id": "u1"}
	}`))
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	assertNoCall(t, app)
}

func TestProcessEventRejectsGarbage(t *testing.T) {
	orch := NewOrchestrator(newFakeQuestsApp())
	assert.Error(t, orch.processEvent(context.Background(), []byte("not json")))
}
