package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/karmahq/questline/go/internal/events"
	"github.com/karmahq/questline/go/internal/quests"
)

// Run reschedules every pending quest deadline from the database, then runs
// the worker pool until the context is cancelled. Boot-time rescheduling is
// how timers survive restarts: deadlines live on the quest rows, not here.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Str("instance", o.instanceID).
		Int("workers", o.numWorkers).
		Msg("quest expiry orchestrator started")

	if err := o.rescheduleAll(ctx); err != nil {
		return fmt.Errorf("failed to reschedule pending quests: %w", err)
	}

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < o.numWorkers; i++ {
		wg.Add(1)
		go o.worker(workerCtx, &wg, i)
	}

	<-ctx.Done()
	log.Info().Str("instance", o.instanceID).Msg("orchestrator shutdown requested")

	cancelWorkers()
	wg.Wait()

	// Cancel any remaining active timers
	o.activeTimersMu.Lock()
	for questIDStr, timer := range o.activeTimers {
		stopAndDrainTimer(timer)
		log.Debug().Str("quest_id", questIDStr).Msg("cancelled timer on shutdown")
	}
	o.activeTimers = make(map[string]clockwork.Timer)
	o.activeTimersMu.Unlock()

	log.Info().Str("instance", o.instanceID).Msg("all workers shut down")
	return nil
}

func (o *Orchestrator) rescheduleAll(ctx context.Context) error {
	pending, err := o.questsApp.ListPendingWithDeadline(ctx)
	if err != nil {
		return err
	}
	for _, quest := range pending {
		o.Schedule(ctx, quest.QuestIDStr, *quest.ExpiresAt)
	}
	log.Info().
		Str("instance", o.instanceID).
		Int("count", len(pending)).
		Msg("rescheduled pending quest deadlines")
	return nil
}

// worker drains quest ids from the work channel, expires them, and schedules
// the replacement quest's deadline.
func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case questIDStr := <-o.workCh:
			result, err := o.questsApp.HandleExpiry(ctx, questIDStr)
			if err != nil {
				log.Error().
					Err(err).
					Str("quest_id", questIDStr).
					Int("worker_id", workerID).
					Msg("expiry handling failed")
				continue
			}
			if result == nil {
				// Quest completed before the timer fired or deadline moved.
				continue
			}
			o.emitExpiryEvents(ctx, result)
			if result.Next != nil && result.Next.ExpiresAt != nil {
				o.Schedule(ctx, result.Next.QuestIDStr, *result.Next.ExpiresAt)
			}
		}
	}
}

func (o *Orchestrator) emitExpiryEvents(ctx context.Context, result *quests.ExpiryResult) {
	if o.outbox == nil {
		return
	}

	if expired := result.Expired; expired != nil {
		payload := events.QuestExpiredPayload{
			QuestIDStr:     expired.QuestIDStr,
			UserID:         expired.UserToID.String(),
			TargetCategory: expired.TargetCategory,
			ExpiredAt:      o.clock.Now().UTC(),
		}
		o.insertEvent(ctx, expired.UserToID, o.outbox.InsertQuestExpiredEvent, payload, expired.QuestIDStr)
	}

	if next := result.Next; next != nil {
		payload := events.QuestAssignedPayload{
			QuestIDStr:     next.QuestIDStr,
			UserToID:       next.UserToID.String(),
			TargetCategory: next.TargetCategory,
			ExpiresAt:      next.ExpiresAt,
			AssignedAt:     next.CreatedAt,
		}
		o.insertEvent(ctx, next.UserToID, o.outbox.InsertQuestAssignedEvent, payload, next.QuestIDStr)
	}
}

func (o *Orchestrator) insertEvent(ctx context.Context, userID uuid.UUID, insert func(context.Context, uuid.UUID, []byte) error, payload any, questIDStr string) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("quest_id", questIDStr).Msg("failed to marshal expiry event payload")
		return
	}
	if err := insert(ctx, userID, data); err != nil {
		log.Error().Err(err).Str("quest_id", questIDStr).Msg("failed to insert expiry event")
	}
}
