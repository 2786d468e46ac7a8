package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Phase is the display state of one tracked quest element.
type Phase string

const (
	PhasePending  Phase = "pending"
	PhaseCounting Phase = "counting"
	PhaseExpired  Phase = "expired"
)

// Action labels for the per-quest complete control.
const (
	ActionComplete = "Complete Quest"
	ActionExpired  = "Quest Expired"
)

// Display is what a renderer should show for one quest element on a tick.
type Display struct {
	Phase         Phase
	Text          string
	Alert         bool
	ActionEnabled bool
	ActionLabel   string
}

// Renderer receives the derived display state every tick. Implementations
// must tolerate being handed the same terminal state repeatedly; the engine
// re-renders expired entries without re-deriving them.
type Renderer interface {
	Render(questID string, d Display)
}

type entry struct {
	expiresAt *time.Time
	phase     Phase
}

// Engine drives per-quest countdown displays on a one-second tick. The
// transition to PhaseExpired is one-way: once an entry has expired it is
// never recomputed from the clock again, so a skewed or adjusted clock
// cannot flip it back to counting.
type Engine struct {
	clock    clockwork.Clock
	renderer Renderer

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock substitutes the engine's clock. Tests pass a fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// NewEngine creates a countdown engine that reports into renderer.
func NewEngine(renderer Renderer, opts ...Option) *Engine {
	e := &Engine{
		clock:    clockwork.NewRealClock(),
		renderer: renderer,
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Track registers a quest element. A nil expiresAt means the quest has no
// deadline and displays a static text. Re-tracking an id replaces its
// deadline and resets its phase.
func (e *Engine) Track(questID string, expiresAt *time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[questID] = &entry{expiresAt: expiresAt, phase: PhasePending}
}

// Untrack removes a quest element from the tick loop.
func (e *Engine) Untrack(questID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.entries, questID)
}

// Run ticks once per second until ctx is cancelled. Ticking is independent
// of any network activity; it only reads deadlines captured at Track time.
func (e *Engine) Run(ctx context.Context) {
	ticker := e.clock.NewTicker(time.Second)
	defer ticker.Stop()

	e.Tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			e.Tick()
		}
	}
}

// Tick derives and renders the display state for every tracked element.
func (e *Engine) Tick() {
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	for questID, en := range e.entries {
		e.renderer.Render(questID, en.displayAt(now))
	}
}

func (en *entry) displayAt(now time.Time) Display {
	if en.expiresAt == nil {
		en.phase = PhaseCounting
		return Display{
			Phase:         PhaseCounting,
			Text:          TextNoExpiry,
			ActionEnabled: true,
			ActionLabel:   ActionComplete,
		}
	}

	if en.phase == PhaseExpired {
		return expiredDisplay()
	}

	left := en.expiresAt.Sub(now)
	if left < 0 {
		en.phase = PhaseExpired
		return expiredDisplay()
	}

	en.phase = PhaseCounting
	return Display{
		Phase:         PhaseCounting,
		Text:          FormatRemaining(left),
		ActionEnabled: true,
		ActionLabel:   ActionComplete,
	}
}

func expiredDisplay() Display {
	return Display{
		Phase:         PhaseExpired,
		Text:          TextExpired,
		Alert:         true,
		ActionEnabled: false,
		ActionLabel:   ActionExpired,
	}
}
