package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry statuses. The terminal status is set exactly once.
const (
	EntryActive    = "active"
	EntryWon       = "won"
	EntryLost      = "lost"
	EntryCancelled = "cancelled"
)

type Entry struct {
	ID         int64           `json:"id"`      // Primary key
	RoundID    int64           `json:"round_id"`
	GameID     int64           `json:"game_id"`
	UserID     int64           `json:"user_id"`
	Stake      decimal.Decimal `json:"stake"`
	Currency   string          `json:"currency"`
	ClientSeed string          `json:"client_seed"`
	Nonce      int             `json:"nonce"` // derivation nonce assigned at acceptance
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
