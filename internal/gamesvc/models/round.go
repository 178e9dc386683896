package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Round statuses. Transitions are monotonic:
// registering -> (live) -> drawing -> completed | cancelled,
// with registering <-> paused as the only reversible edge.
const (
	RoundRegistering = "registering"
	RoundPaused      = "paused"
	RoundLive        = "live"
	RoundDrawing     = "drawing"
	RoundCompleted   = "completed"
	RoundCancelled   = "cancelled"
)

type Round struct {
	ID             int64           `json:"id"`      // Primary key
	GameID         int64           `json:"game_id"` // FK to games(id)
	Status         string          `json:"status"`
	ServerSeed     string          `json:"-"`                // secret until the round settles
	ServerSeedHash string          `json:"server_seed_hash"` // published commitment
	PrizePool      decimal.Decimal `json:"prize_pool"`       // display cache, ledger is truth
	EntryCount     int             `json:"entry_count"`      // display cache
	DrawAt         *time.Time      `json:"draw_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Accepting reports whether new entries may still join the round.
func (r *Round) Accepting() bool {
	return r.Status == RoundRegistering || r.Status == RoundLive
}
