package engine

import (
	"context"
	"time"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
	"github.com/avvvet/sweeps-services/internal/gamesvc/payout"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// PooledEngine accumulates entries into a shared pool over the game's
// interval, then selects K winners without replacement and splits the pool
// evenly between them.
type PooledEngine struct {
	baseEngine
}

func NewPooledEngine(game *models.Game, deps Deps) *PooledEngine {
	return &PooledEngine{baseEngine: newBase(game, deps)}
}

func (e *PooledEngine) CreateRound(ctx context.Context) (*models.Round, error) {
	drawAt := time.Now().Add(time.Duration(e.game.DrawIntervalSec) * time.Second)
	return e.createRound(ctx, models.RoundRegistering, &drawAt)
}

func (e *PooledEngine) ProcessEntry(ctx context.Context, req EntryRequest) (*EntryOutcome, error) {
	outcome, _, err := e.acceptEntry(ctx, req)
	return outcome, err
}

func (e *PooledEngine) DrawRound(ctx context.Context, roundID int64) (*models.Result, error) {
	return drawPool(ctx, &e.baseEngine, roundID, models.WinPooled, e.poolShares)
}

// poolShares splits the pool evenly among up to the configured number of
// winners, never more winners than entries.
func (e *PooledEngine) poolShares(round *models.Round, entries []*models.Entry) (int, decimal.Decimal) {
	winners := e.game.WinnerCount
	if winners < 1 {
		winners = 1
	}
	if winners > len(entries) {
		winners = len(entries)
	}

	pool := decimal.Zero
	for _, en := range entries {
		pool = pool.Add(en.Stake)
	}
	share := pool.DivRound(decimal.NewFromInt(int64(winners)), 2)
	return winners, share
}

// shareFunc decides how many winners a draw selects and what each receives.
type shareFunc func(round *models.Round, entries []*models.Entry) (int, decimal.Decimal)

// drawPool is the common accumulate-then-draw execution: claim the draw,
// select winners by exact sampling without replacement over the entry list,
// settle each winner independently and complete the round. A round with no
// entries is cancelled instead of drawn, never an error.
func drawPool(ctx context.Context, b *baseEngine, roundID int64, winType string, shares shareFunc) (*models.Result, error) {
	// claim before reading entries: once the round is in drawing the locked
	// insert turns new entries away, so the list below is the final set and
	// a second draw attempt stops here with ErrAlreadyDrawn.
	round, err := b.claimDraw(ctx, roundID)
	if err != nil {
		return nil, err
	}

	entries, err := b.deps.Entries.ListActiveEntries(ctx, roundID)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		// nothing staked: close out as cancelled, not an exception
		if _, err := b.deps.Rounds.TransitionStatus(ctx, roundID, models.RoundCancelled, models.RoundDrawing); err != nil {
			return nil, err
		}
		if cancelled, err := b.deps.Rounds.GetRoundByID(ctx, roundID); err == nil {
			b.deps.Notify.PublishRoundStatus(cancelled)
		}
		return b.recordResult(ctx, round, "", 0, 1, 0, 0)
	}

	winnerCount, share := shares(round, entries)
	clientSeed := combinedClientSeed(entries)

	// exact sampling without replacement: each derivation indexes the
	// remaining candidates and the pick is removed, so K derivations always
	// produce K distinct entries with no rejection loop.
	candidates := append([]*models.Entry(nil), entries...)
	var winners []*models.Entry
	var firstPick int64
	for nonce := 0; nonce < winnerCount; nonce++ {
		idx, err := b.deps.RNG.Derive(ctx, round.GameID, round.ID,
			round.ServerSeed, clientSeed, nonce, int64(len(candidates)))
		if err != nil {
			return nil, err
		}
		if nonce == 0 {
			firstPick = idx
		}
		winners = append(winners, candidates[idx])
		candidates = append(candidates[:idx], candidates[idx+1:]...)
	}

	// the stored artifact is the nonce-0 derivation: value over the full
	// entry range, so /verify re-derives it exactly as published
	result, err := b.recordResult(ctx, round, clientSeed, 0,
		int64(len(entries)), firstPick, winnerCount)
	if err != nil {
		return nil, err
	}

	winnerIDs := make([]int64, 0, len(winners))
	reqs := make([]payout.Request, 0, len(winners))
	for _, w := range winners {
		winnerIDs = append(winnerIDs, w.ID)
		reqs = append(reqs, payout.Request{
			UserID:  w.UserID,
			WinType: winType,
			Amounts: map[string]decimal.Decimal{b.game.Currency: share},
		})
	}

	if err := b.deps.Entries.SettleRound(ctx, roundID, winnerIDs); err != nil {
		return nil, err
	}

	if _, errs := b.deps.Settler.ProcessRoundPayouts(ctx, round.GameID, round.ID, result.ID, reqs); len(errs) > 0 {
		// failed rows are parked for retry; the draw itself stands
		for _, perr := range errs {
			log.Errorf("round %d settlement: %v", roundID, perr)
		}
	}

	for _, w := range winners {
		b.deps.Notify.PublishWinnerAnnounced(round.GameID, round.ID, w.UserID, winType, share, b.game.Currency)
	}

	if err := b.completeRound(ctx, roundID); err != nil {
		return nil, err
	}
	return result, nil
}
