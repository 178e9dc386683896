package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
	"github.com/avvvet/sweeps-services/internal/gamesvc/validation"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// baseEngine carries the lifecycle behavior all four mechanics share:
// seed-committed round creation, gatekept entry acceptance, cancellation
// with refunds, and the durable-row status/stat queries.
type baseEngine struct {
	game *models.Game
	deps Deps
}

func newBase(game *models.Game, deps Deps) baseEngine {
	return baseEngine{game: game, deps: deps}
}

func (b *baseEngine) Game() *models.Game {
	return b.game
}

// createRound generates a fresh server seed and stores only after the hash
// commitment is in place, so no client seed can ever precede it.
func (b *baseEngine) createRound(ctx context.Context, status string, drawAt *time.Time) (*models.Round, error) {
	seed, err := b.deps.RNG.GenerateSeed()
	if err != nil {
		return nil, fmt.Errorf("round seed for game %d: %w", b.game.ID, err)
	}

	round := &models.Round{
		GameID:         b.game.ID,
		Status:         status,
		ServerSeed:     seed,
		ServerSeedHash: b.deps.RNG.HashSeed(seed),
		PrizePool:      decimal.Zero,
		DrawAt:         drawAt,
	}
	if err := b.deps.Rounds.CreateRound(ctx, round); err != nil {
		return nil, err
	}

	b.deps.Notify.PublishRoundStatus(round)
	return round, nil
}

func (b *baseEngine) ValidateEntry(ctx context.Context, roundID, userID int64) (validation.Result, error) {
	return b.deps.Validator.Validate(ctx, validation.Request{
		UserID:             userID,
		GameID:             b.game.ID,
		RoundID:            roundID,
		Stake:              b.game.EntryCost,
		Currency:           b.game.Currency,
		MaxEntriesPerUser:  b.game.MaxEntriesPerUser,
		MaxEntriesPerRound: b.game.MaxEntriesPerRound,
	})
}

// acceptEntry runs validation then records the entry; the store's locked
// insert rejects rounds that left registering/live in the meantime.
func (b *baseEngine) acceptEntry(ctx context.Context, req EntryRequest) (*EntryOutcome, *models.Round, error) {
	res, err := b.ValidateEntry(ctx, req.RoundID, req.UserID)
	if err != nil {
		return nil, nil, err
	}
	if !res.Valid {
		return &EntryOutcome{Rejected: &res}, nil, nil
	}

	entry, err := b.deps.Entries.CreateEntry(ctx, &models.Entry{
		RoundID:    req.RoundID,
		GameID:     b.game.ID,
		UserID:     req.UserID,
		Stake:      b.game.EntryCost,
		Currency:   b.game.Currency,
		ClientSeed: req.ClientSeed,
	})
	if err != nil {
		return nil, nil, err
	}

	round, err := b.deps.Rounds.GetRoundByID(ctx, req.RoundID)
	if err != nil {
		return nil, nil, err
	}

	b.deps.Notify.PublishEntrySubmitted(round, entry)
	return &EntryOutcome{Entry: entry}, round, nil
}

// claimDraw is the at-most-once gate for draw execution: whoever wins the
// guarded transition out of the accepting statuses owns the draw.
func (b *baseEngine) claimDraw(ctx context.Context, roundID int64) (*models.Round, error) {
	moved, err := b.deps.Rounds.TransitionStatus(ctx, roundID, models.RoundDrawing,
		models.RoundRegistering, models.RoundLive)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrAlreadyDrawn
	}

	round, err := b.deps.Rounds.GetRoundByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	b.deps.Notify.PublishRoundStatus(round)
	return round, nil
}

func (b *baseEngine) completeRound(ctx context.Context, roundID int64) error {
	if err := b.deps.Rounds.MarkCompleted(ctx, roundID); err != nil {
		return err
	}
	round, err := b.deps.Rounds.GetRoundByID(ctx, roundID)
	if err != nil {
		log.Errorf("reload completed round %d: %v", roundID, err)
		return nil
	}
	b.deps.Notify.PublishRoundStatus(round)
	return nil
}

// CancelRound flips the round and all active entries to cancelled and
// writes the refund ledger rows in one transaction, then announces it.
func (b *baseEngine) CancelRound(ctx context.Context, roundID int64) (int, error) {
	cancelled, err := b.deps.Rounds.CancelWithRefunds(ctx, roundID)
	if err != nil {
		return 0, err
	}

	round, err := b.deps.Rounds.GetRoundByID(ctx, roundID)
	if err != nil {
		log.Errorf("reload cancelled round %d: %v", roundID, err)
		return cancelled, nil
	}
	b.deps.Notify.PublishRoundStatus(round)
	return cancelled, nil
}

func (b *baseEngine) GetWinners(ctx context.Context, roundID int64) ([]*models.Payout, error) {
	return b.deps.Payouts.ListPayoutsByRound(ctx, roundID, models.PayoutProcessed)
}

func (b *baseEngine) GetRoundStatus(ctx context.Context, roundID int64) (*models.Round, error) {
	return b.deps.Rounds.GetRoundByID(ctx, roundID)
}

func (b *baseEngine) GetPlayerEntries(ctx context.Context, roundID, userID int64) ([]*models.Entry, error) {
	return b.deps.Entries.ListEntriesByUser(ctx, roundID, userID)
}

func (b *baseEngine) GetRoundStats(ctx context.Context, roundID int64) (*RoundStats, error) {
	round, err := b.deps.Rounds.GetRoundByID(ctx, roundID)
	if err != nil {
		return nil, err
	}

	stats := &RoundStats{
		RoundID:    round.ID,
		GameID:     round.GameID,
		Status:     round.Status,
		EntryCount: round.EntryCount,
		PrizePool:  round.PrizePool,
		PaidGC:     decimal.Zero,
		PaidSC:     decimal.Zero,
		DrawAt:     round.DrawAt,
	}
	if b.game.Mechanic == models.MechanicProgressiveJackpot {
		stats.Jackpot = jackpotAmount(b.game, round.EntryCount)
	}

	paid, err := b.deps.Payouts.ListPayoutsByRound(ctx, roundID, models.PayoutProcessed)
	if err != nil {
		return nil, err
	}
	stats.WinnerCount = len(paid)
	for _, p := range paid {
		stats.PaidGC = stats.PaidGC.Add(p.AmountGC)
		stats.PaidSC = stats.PaidSC.Add(p.AmountSC)
	}
	return stats, nil
}

// jackpotAmount derives the live jackpot from the durable entry count:
// min(floor + increment*N, cap). Nothing in memory is authoritative.
func jackpotAmount(game *models.Game, entryCount int) decimal.Decimal {
	amount := game.JackpotFloor.Add(game.JackpotIncrement.Mul(decimal.NewFromInt(int64(entryCount))))
	if amount.GreaterThan(game.JackpotCap) {
		return game.JackpotCap
	}
	return amount
}

// combinedClientSeed folds every entrant's client seed into the draw seed,
// in acceptance order. Entries are public, so the fold is re-computable by
// anyone verifying the draw.
func combinedClientSeed(entries []*models.Entry) string {
	h := sha256.New()
	for i, e := range entries {
		if i > 0 {
			h.Write([]byte(":"))
		}
		h.Write([]byte(e.ClientSeed))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// recordResult persists the provably-fair artifact of a draw.
func (b *baseEngine) recordResult(ctx context.Context, round *models.Round, clientSeed string, nonce int, max, value int64, winnerCount int) (*models.Result, error) {
	result := &models.Result{
		RoundID:        round.ID,
		GameID:         round.GameID,
		ServerSeed:     round.ServerSeed,
		ServerSeedHash: round.ServerSeedHash,
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		Range:          max,
		Value:          value,
		VerifyCode:     verifyCode(round.ServerSeedHash, clientSeed, nonce),
		WinnerCount:    winnerCount,
	}
	if err := b.deps.Results.CreateResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// verifyCode is the short handle players paste into the public verifier.
func verifyCode(serverSeedHash, clientSeed string, nonce int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", serverSeedHash, clientSeed, nonce)))
	return hex.EncodeToString(sum[:8])
}
