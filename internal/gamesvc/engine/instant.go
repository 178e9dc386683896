package engine

import (
	"context"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
	"github.com/avvvet/sweeps-services/internal/gamesvc/payout"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// instantRange is the derivation range for instant-win rolls; the win
// threshold is rtp_percent*100 inside it, so rtp 85.0 wins on values < 8500.
const instantRange = int64(10000)

// InstantEngine runs single-shot sessions: every accepted entry derives a
// value, compares it against the RTP threshold and settles in the same call.
// There is no scheduled draw; DrawRound just closes the session.
type InstantEngine struct {
	baseEngine
}

func NewInstantEngine(game *models.Game, deps Deps) *InstantEngine {
	return &InstantEngine{baseEngine: newBase(game, deps)}
}

// CreateRound opens a session round that is live immediately.
func (e *InstantEngine) CreateRound(ctx context.Context) (*models.Round, error) {
	return e.createRound(ctx, models.RoundLive, nil)
}

func (e *InstantEngine) ProcessEntry(ctx context.Context, req EntryRequest) (*EntryOutcome, error) {
	outcome, round, err := e.acceptEntry(ctx, req)
	if err != nil || outcome.Rejected != nil {
		return outcome, err
	}
	entry := outcome.Entry

	value, err := e.deps.RNG.Derive(ctx, e.game.ID, round.ID,
		round.ServerSeed, entry.ClientSeed, entry.Nonce, instantRange)
	if err != nil {
		return nil, err
	}

	threshold := int64(e.game.RTPPercent * 100)
	winnerCount := 0
	if value < threshold {
		winnerCount = 1
	}

	result, err := e.recordResult(ctx, round, entry.ClientSeed, entry.Nonce, instantRange, value, winnerCount)
	if err != nil {
		return nil, err
	}
	outcome.Result = result

	if value >= threshold {
		if err := e.deps.Entries.SettleEntry(ctx, entry.ID, models.EntryLost); err != nil {
			return nil, err
		}
		return outcome, nil
	}

	// winner: settle synchronously in the same call
	prize := entry.Stake.Mul(e.game.WinMultiplier)
	if err := e.deps.Entries.SettleEntry(ctx, entry.ID, models.EntryWon); err != nil {
		return nil, err
	}
	_, err = e.deps.Settler.ProcessPayout(ctx, e.game.ID, round.ID, result.ID, payout.Request{
		UserID:  entry.UserID,
		WinType: models.WinInstant,
		Amounts: map[string]decimal.Decimal{e.game.Currency: prize},
	})
	if err != nil {
		// entry stays won, payout row is parked failed for the retry path
		log.Errorf("instant payout for entry %d failed: %v", entry.ID, err)
		return nil, err
	}

	e.deps.Notify.PublishWinnerAnnounced(e.game.ID, round.ID, entry.UserID,
		models.WinInstant, prize, e.game.Currency)

	outcome.Won = true
	outcome.Prize = &prize
	return outcome, nil
}

// DrawRound closes an instant session; there is nothing to derive here.
func (e *InstantEngine) DrawRound(ctx context.Context, roundID int64) (*models.Result, error) {
	if _, err := e.claimDraw(ctx, roundID); err != nil {
		return nil, err
	}
	if err := e.completeRound(ctx, roundID); err != nil {
		return nil, err
	}
	result, err := e.deps.Results.GetLatestResult(ctx, roundID)
	if err != nil {
		// a session can close without a single entry
		return nil, nil
	}
	return result, nil
}
