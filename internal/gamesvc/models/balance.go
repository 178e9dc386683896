package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceTransaction is one immutable ledger line. Balances are derived
// as SUM(dr)-SUM(cr) per currency; cached balances are never authoritative.
type BalanceTransaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Currency  string          `json:"currency"`
	TType     string          `json:"ttype"` // 'entry', 'payout', 'refund'
	Dr        decimal.Decimal `json:"dr"`
	Cr        decimal.Decimal `json:"cr"`
	TRef      string          `json:"tref"` // payout ref or round tag
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
