package orchestrator

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Schedule sets a one-shot timer that enqueues the quest for expiry handling
// when the deadline passes. A deadline already in the past enqueues the quest
// immediately. Scheduling the same quest for the same deadline twice is a
// no-op; a different deadline replaces the existing timer.
func (o *Orchestrator) Schedule(ctx context.Context, questIDStr string, deadline time.Time) {
	// Deadline idempotency guard - prevent duplicate timers for the same deadline
	o.lastScheduledMu.Lock()
	if last, exists := o.lastScheduled[questIDStr]; exists && last.Equal(deadline) {
		o.lastScheduledMu.Unlock()
		log.Debug().
			Str("quest_id", questIDStr).
			Time("deadline", deadline).
			Msg("skipping duplicate schedule - already scheduled for this deadline")
		return
	}
	o.lastScheduled[questIDStr] = deadline
	o.lastScheduledMu.Unlock()

	duration := deadline.Sub(o.clock.Now())
	if duration <= 0 {
		o.clearScheduled(questIDStr)
		o.enqueue(questIDStr)
		return
	}

	timer := o.clock.NewTimer(duration)
	o.replaceTimer(questIDStr, timer)

	go func(id string, t clockwork.Timer) {
		select {
		case <-t.Chan():
			o.removeTimer(id)
			o.clearScheduled(id)
			o.enqueue(id)
		case <-ctx.Done():
			stopAndDrainTimer(t)
			o.removeTimer(id)
			o.clearScheduled(id)
			log.Debug().Str("quest_id", id).Msg("timer cancelled due to context cancellation")
		}
	}(questIDStr, timer)

	log.Debug().
		Str("quest_id", questIDStr).
		Time("deadline", deadline).
		Dur("duration", duration).
		Msg("scheduled expiry timer")
}

// Cancel stops and removes any active timer for a quest. Used when a quest
// completes before its deadline.
func (o *Orchestrator) Cancel(questIDStr string) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	if timer, exists := o.activeTimers[questIDStr]; exists {
		stopAndDrainTimer(timer)
		delete(o.activeTimers, questIDStr)

		o.clearScheduled(questIDStr)

		log.Debug().Str("quest_id", questIDStr).Msg("cancelled expiry timer")
	}
}

func (o *Orchestrator) enqueue(questIDStr string) {
	select {
	case o.workCh <- questIDStr:
		log.Debug().Str("quest_id", questIDStr).Msg("enqueued for expiry handling")
	default:
		log.Warn().Str("quest_id", questIDStr).Msg("timer fired but work channel full")
	}
}

// replaceTimer atomically replaces a timer for a quest, cancelling any
// existing timer so a new one cannot slip in between Stop() and delete().
func (o *Orchestrator) replaceTimer(questIDStr string, newTimer clockwork.Timer) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	if existing, exists := o.activeTimers[questIDStr]; exists {
		stopAndDrainTimer(existing)
		log.Debug().Str("quest_id", questIDStr).Msg("replaced existing timer")
	}
	o.activeTimers[questIDStr] = newTimer
}

func (o *Orchestrator) removeTimer(questIDStr string) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	delete(o.activeTimers, questIDStr)
}

func (o *Orchestrator) clearScheduled(questIDStr string) {
	o.lastScheduledMu.Lock()
	delete(o.lastScheduled, questIDStr)
	o.lastScheduledMu.Unlock()
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent
// goroutine leaks, following the time.Timer.Stop() documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
