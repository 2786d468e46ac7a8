package countdown

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRenderer struct {
	mu       sync.Mutex
	displays map[string][]Display
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{displays: make(map[string][]Display)}
}

func (r *recordingRenderer) Render(questID string, d Display) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displays[questID] = append(r.displays[questID], d)
}

func (r *recordingRenderer) last(questID string) (Display, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ds := r.displays[questID]
	if len(ds) == 0 {
		return Display{}, false
	}
	return ds[len(ds)-1], true
}

func (r *recordingRenderer) all(questID string) []Display {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Display(nil), r.displays[questID]...)
}

func TestEngineCountsDownThenExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	renderer := newRecordingRenderer()
	engine := NewEngine(renderer, WithClock(clock))

	expiry := clock.Now().Add(2 * time.Second)
	engine.Track("q1", &expiry)

	engine.Tick()
	d, ok := renderer.last("q1")
	require.True(t, ok)
	assert.Equal(t, PhaseCounting, d.Phase)
	assert.Equal(t, "2s", d.Text)
	assert.True(t, d.ActionEnabled)
	assert.Equal(t, ActionComplete, d.ActionLabel)

	// Deadline passed: the next tick flips to the terminal expired state.
	clock.Advance(3 * time.Second)
	engine.Tick()
	d, _ = renderer.last("q1")
	assert.Equal(t, PhaseExpired, d.Phase)
	assert.Equal(t, TextExpired, d.Text)
	assert.True(t, d.Alert)
	assert.False(t, d.ActionEnabled)
	assert.Equal(t, ActionExpired, d.ActionLabel)
}

func TestEngineExpiredIsMonotonic(t *testing.T) {
	clock := clockwork.NewFakeClock()
	renderer := newRecordingRenderer()
	engine := NewEngine(renderer, WithClock(clock))

	expiry := clock.Now().Add(-time.Second)
	engine.Track("q1", &expiry)

	for i := 0; i < 5; i++ {
		engine.Tick()
		clock.Advance(time.Second)
	}

	for i, d := range renderer.all("q1") {
		assert.Equalf(t, PhaseExpired, d.Phase, "tick %d left the expired state", i)
		assert.Equal(t, TextExpired, d.Text)
		assert.False(t, d.ActionEnabled)
	}
}

func TestEngineNoExpiryIsStatic(t *testing.T) {
	clock := clockwork.NewFakeClock()
	renderer := newRecordingRenderer()
	engine := NewEngine(renderer, WithClock(clock))

	engine.Track("q1", nil)

	engine.Tick()
	clock.Advance(48 * time.Hour)
	engine.Tick()

	for _, d := range renderer.all("q1") {
		assert.Equal(t, TextNoExpiry, d.Text)
		assert.True(t, d.ActionEnabled)
	}
}

func TestEngineExpiringSoonWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	renderer := newRecordingRenderer()
	engine := NewEngine(renderer, WithClock(clock))

	expiry := clock.Now().Add(500 * time.Millisecond)
	engine.Track("q1", &expiry)

	engine.Tick()
	d, _ := renderer.last("q1")
	assert.Equal(t, PhaseCounting, d.Phase)
	assert.Equal(t, TextExpiringSoon, d.Text)
	assert.True(t, d.ActionEnabled)
}

func TestEngineUntrackStopsRendering(t *testing.T) {
	clock := clockwork.NewFakeClock()
	renderer := newRecordingRenderer()
	engine := NewEngine(renderer, WithClock(clock))

	expiry := clock.Now().Add(time.Minute)
	engine.Track("q1", &expiry)
	engine.Tick()
	require.Len(t, renderer.all("q1"), 1)

	engine.Untrack("q1")
	clock.Advance(time.Second)
	engine.Tick()
	assert.Len(t, renderer.all("q1"), 1)
}

func TestEngineRetrackReplacesDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	renderer := newRecordingRenderer()
	engine := NewEngine(renderer, WithClock(clock))

	past := clock.Now().Add(-time.Minute)
	engine.Track("q1", &past)
	engine.Tick()
	d, _ := renderer.last("q1")
	require.Equal(t, PhaseExpired, d.Phase)

	// A new quest reusing the element id starts a fresh countdown.
	future := clock.Now().Add(time.Minute)
	engine.Track("q1", &future)
	engine.Tick()
	d, _ = renderer.last("q1")
	assert.Equal(t, PhaseCounting, d.Phase)
	assert.Equal(t, "1m 0s", d.Text)
}
