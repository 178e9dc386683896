package engine

import (
	"context"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"

	"github.com/shopspring/decimal"
)

// JackpotEngine runs progressive jackpots: every accepted entry grows the
// pot by the configured increment up to the cap, the draw hands the whole
// pot to a single winner, and completion resets the next round to the floor.
// The pot is always derived from the durable entry count, never tracked in
// engine memory.
type JackpotEngine struct {
	baseEngine
}

func NewJackpotEngine(game *models.Game, deps Deps) *JackpotEngine {
	return &JackpotEngine{baseEngine: newBase(game, deps)}
}

func (e *JackpotEngine) CreateRound(ctx context.Context) (*models.Round, error) {
	return e.createRound(ctx, models.RoundRegistering, nil)
}

func (e *JackpotEngine) ProcessEntry(ctx context.Context, req EntryRequest) (*EntryOutcome, error) {
	outcome, _, err := e.acceptEntry(ctx, req)
	return outcome, err
}

// Jackpot reports the current pot for a round: min(floor + increment*N, cap).
func (e *JackpotEngine) Jackpot(entryCount int) decimal.Decimal {
	return jackpotAmount(e.game, entryCount)
}

func (e *JackpotEngine) DrawRound(ctx context.Context, roundID int64) (*models.Result, error) {
	return drawPool(ctx, &e.baseEngine, roundID, models.WinJackpot,
		func(round *models.Round, entries []*models.Entry) (int, decimal.Decimal) {
			// exactly one winner takes the whole pot
			return 1, jackpotAmount(e.game, len(entries))
		})
}
