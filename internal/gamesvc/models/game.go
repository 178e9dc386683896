package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Game mechanics, one per round engine.
const (
	MechanicInstantWin         = "instant_win"
	MechanicPooledDraw         = "pooled_draw"
	MechanicProgressiveJackpot = "progressive_jackpot"
	MechanicScheduledDraw      = "scheduled_draw"
)

type Game struct {
	ID                 int64           `json:"id"`       // Primary key
	Name               string          `json:"name"`     // Display name
	Mechanic           string          `json:"mechanic"` // one of the Mechanic* constants
	Currency           string          `json:"currency"` // GC or SC
	EntryCost          decimal.Decimal `json:"entry_cost"`
	RTPPercent         float64         `json:"rtp_percent"`    // instant win: long-run win probability
	WinMultiplier      decimal.Decimal `json:"win_multiplier"` // instant win: prize = stake * multiplier
	WinnerCount        int             `json:"winner_count"`   // pooled draw: K winners
	JackpotFloor       decimal.Decimal `json:"jackpot_floor"`
	JackpotIncrement   decimal.Decimal `json:"jackpot_increment"`
	JackpotCap         decimal.Decimal `json:"jackpot_cap"`
	DrawIntervalSec    int             `json:"draw_interval_sec"` // pooled/scheduled cadence
	MaxEntriesPerUser  int             `json:"max_entries_per_user"`
	MaxEntriesPerRound int             `json:"max_entries_per_round"`
	Status             string          `json:"status"` // 'active', 'disabled'
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
