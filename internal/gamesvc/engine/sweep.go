package engine

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

const sweepBatchLimit = 50

// Sweep is the durable draw scheduler: every tick it queries rounds whose
// draw time has passed while still accepting entries and fires their draws.
// Because due-ness lives in the rounds table, a process restart never loses
// a pending draw, and the guarded status transition inside DrawRound makes
// concurrent sweepers harmless.
type Sweep struct {
	registry *Registry
	rounds   RoundStore
	interval time.Duration
}

func NewSweep(registry *Registry, rounds RoundStore, interval time.Duration) *Sweep {
	return &Sweep{registry: registry, rounds: rounds, interval: interval}
}

// Run ticks until the context is cancelled.
func (s *Sweep) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("draw sweep stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one sweep pass: fire due draws, then make sure every scheduled
// game has an open round.
func (s *Sweep) Tick(ctx context.Context) {
	due, err := s.rounds.ListDueRounds(ctx, time.Now(), sweepBatchLimit)
	if err != nil {
		log.Errorf("sweep: list due rounds: %v", err)
		return
	}

	for _, round := range due {
		eng, err := s.registry.Get(round.GameID)
		if err != nil {
			log.Errorf("sweep: round %d: %v", round.ID, err)
			continue
		}
		if _, err := eng.DrawRound(ctx, round.ID); err != nil {
			if errors.Is(err, ErrAlreadyDrawn) {
				continue // another sweeper or an admin got there first
			}
			log.Errorf("sweep: draw round %d: %v", round.ID, err)
		}
	}

	for _, eng := range s.registry.All() {
		sched, ok := eng.(*ScheduledEngine)
		if !ok {
			continue
		}
		if err := sched.EnsureOpenRound(ctx); err != nil {
			log.Errorf("sweep: ensure open round for game %d: %v", sched.Game().ID, err)
		}
	}
}
