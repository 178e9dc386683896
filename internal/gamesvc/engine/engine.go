package engine

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
	"github.com/avvvet/sweeps-services/internal/gamesvc/payout"
	"github.com/avvvet/sweeps-services/internal/gamesvc/validation"

	"github.com/shopspring/decimal"
)

// ErrAlreadyDrawn reports that another caller moved the round out of its
// accepting statuses first. Sweeps treat it as a no-op.
var ErrAlreadyDrawn = errors.New("round already drawn or closed")

// ErrRoundClosed mirrors the store sentinel for engines' callers.
var ErrRoundClosed = errors.New("round is not accepting entries")

// RoundEngine is the one interface all four game mechanics sit behind.
type RoundEngine interface {
	Game() *models.Game

	CreateRound(ctx context.Context) (*models.Round, error)
	ValidateEntry(ctx context.Context, roundID, userID int64) (validation.Result, error)
	ProcessEntry(ctx context.Context, req EntryRequest) (*EntryOutcome, error)
	DrawRound(ctx context.Context, roundID int64) (*models.Result, error)
	CancelRound(ctx context.Context, roundID int64) (int, error)

	GetWinners(ctx context.Context, roundID int64) ([]*models.Payout, error)
	GetRoundStatus(ctx context.Context, roundID int64) (*models.Round, error)
	GetPlayerEntries(ctx context.Context, roundID, userID int64) ([]*models.Entry, error)
	GetRoundStats(ctx context.Context, roundID int64) (*RoundStats, error)
}

// EntryRequest is one user's stake submission.
type EntryRequest struct {
	RoundID    int64
	UserID     int64
	ClientSeed string
}

// EntryOutcome is what entry processing hands back. Rejected carries the
// typed validation result when the gatekeeper said no; Entry is nil then.
type EntryOutcome struct {
	Rejected *validation.Result `json:"rejected,omitempty"`
	Entry    *models.Entry      `json:"entry,omitempty"`
	// instant win settles synchronously; these are set for that mechanic only
	Won    bool             `json:"won,omitempty"`
	Prize  *decimal.Decimal `json:"prize,omitempty"`
	Result *models.Result   `json:"result,omitempty"`
}

// RoundStats is the queryable aggregate view of a round. Everything in it
// derives from durable rows, not from engine memory.
type RoundStats struct {
	RoundID     int64           `json:"round_id"`
	GameID      int64           `json:"game_id"`
	Status      string          `json:"status"`
	EntryCount  int             `json:"entry_count"`
	PrizePool   decimal.Decimal `json:"prize_pool"`
	Jackpot     decimal.Decimal `json:"jackpot"` // progressive mechanic only
	WinnerCount int             `json:"winner_count"`
	PaidGC      decimal.Decimal `json:"paid_gc"`
	PaidSC      decimal.Decimal `json:"paid_sc"`
	DrawAt      *time.Time      `json:"draw_at,omitempty"`
}

// Store interfaces the engines depend on; the pgx implementations live in
// the store package, tests substitute in-memory fakes.

type RoundStore interface {
	CreateRound(ctx context.Context, r *models.Round) error
	GetRoundByID(ctx context.Context, roundID int64) (*models.Round, error)
	TransitionStatus(ctx context.Context, roundID int64, to string, from ...string) (bool, error)
	MarkCompleted(ctx context.Context, roundID int64) error
	CancelWithRefunds(ctx context.Context, roundID int64) (int, error)
	GetOpenRoundByGame(ctx context.Context, gameID int64) (*models.Round, error)
	ListDueRounds(ctx context.Context, now time.Time, limit int) ([]*models.Round, error)
}

type EntryStore interface {
	CreateEntry(ctx context.Context, e *models.Entry) (*models.Entry, error)
	ListActiveEntries(ctx context.Context, roundID int64) ([]*models.Entry, error)
	ListEntriesByUser(ctx context.Context, roundID, userID int64) ([]*models.Entry, error)
	SettleEntry(ctx context.Context, entryID int64, status string) error
	SettleRound(ctx context.Context, roundID int64, winnerEntryIDs []int64) error
}

type ResultStore interface {
	CreateResult(ctx context.Context, r *models.Result) error
	GetLatestResult(ctx context.Context, roundID int64) (*models.Result, error)
}

type PayoutReader interface {
	ListPayoutsByRound(ctx context.Context, roundID int64, status string) ([]*models.Payout, error)
}

// Validator is the entry gatekeeper (validation.Service).
type Validator interface {
	Validate(ctx context.Context, req validation.Request) (validation.Result, error)
}

// Settler is the payout engine surface the round engines drive.
type Settler interface {
	ProcessPayout(ctx context.Context, gameID, roundID, resultID int64, req payout.Request) (*models.Payout, error)
	ProcessRoundPayouts(ctx context.Context, gameID, roundID, resultID int64, reqs []payout.Request) ([]*models.Payout, []error)
}

// Notifier is the broadcaster surface; fire and forget.
type Notifier interface {
	PublishEntrySubmitted(round *models.Round, entry *models.Entry)
	PublishRoundStatus(round *models.Round)
	PublishWinnerAnnounced(gameID, roundID, userID int64, winType string, amount decimal.Decimal, currency string)
}

// Deps bundles everything an engine needs; the registry wires one per game.
type Deps struct {
	Rounds    RoundStore
	Entries   EntryStore
	Results   ResultStore
	Payouts   PayoutReader
	Validator Validator
	Settler   Settler
	RNG       RNG
	Notify    Notifier
}

// RNG is the derivation surface (rng.Engine).
type RNG interface {
	GenerateSeed() (string, error)
	HashSeed(seed string) string
	Derive(ctx context.Context, gameID, roundID int64, serverSeed, clientSeed string, nonce int, max int64) (int64, error)
}
