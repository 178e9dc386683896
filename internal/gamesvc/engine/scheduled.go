package engine

import (
	"context"
	"time"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"

	log "github.com/sirupsen/logrus"
)

// ScheduledEngine runs recurring draws on the game's cadence. Entry
// acceptance and draw execution are fully decoupled: entries join whatever
// round is open, the sweep fires draws whose time has elapsed, and a fresh
// round opens after every settled or cancelled draw. A late-firing sweep
// draws over exactly the entries the round accepted, nothing dropped or
// counted twice.
type ScheduledEngine struct {
	PooledEngine
}

func NewScheduledEngine(game *models.Game, deps Deps) *ScheduledEngine {
	return &ScheduledEngine{PooledEngine{baseEngine: newBase(game, deps)}}
}

func (e *ScheduledEngine) DrawRound(ctx context.Context, roundID int64) (*models.Result, error) {
	result, err := drawPool(ctx, &e.baseEngine, roundID, models.WinPooled, e.poolShares)
	if err != nil {
		return nil, err
	}

	// keep the cadence going: open the next round if none is accepting
	if err := e.EnsureOpenRound(ctx); err != nil {
		log.Errorf("open next scheduled round for game %d: %v", e.game.ID, err)
	}
	return result, nil
}

// EnsureOpenRound opens a new round when the game has none accepting
// entries. Safe to call repeatedly; the sweep runs it every pass so a
// process restart never leaves a scheduled game without a round.
func (e *ScheduledEngine) EnsureOpenRound(ctx context.Context) error {
	open, err := e.deps.Rounds.GetOpenRoundByGame(ctx, e.game.ID)
	if err != nil {
		return err
	}
	if open != nil {
		return nil
	}
	drawAt := time.Now().Add(time.Duration(e.game.DrawIntervalSec) * time.Second)
	_, err = e.createRound(ctx, models.RoundRegistering, &drawAt)
	return err
}
