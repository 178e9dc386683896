package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payout statuses. 'failed' rows are the retry queue; a (round_id, user_id)
// pair never reaches 'processed' twice.
const (
	PayoutProcessing = "processing"
	PayoutProcessed  = "processed"
	PayoutFailed     = "failed"
)

// Win types carried on payouts and broadcast to subscribers.
const (
	WinInstant = "instant"
	WinPooled  = "pooled"
	WinJackpot = "jackpot"
	WinRefund  = "refund"
)

type Payout struct {
	ID        int64           `json:"id"` // Primary key
	RoundID   int64           `json:"round_id"`
	ResultID  int64           `json:"result_id"`
	UserID    int64           `json:"user_id"`
	WinType   string          `json:"win_type"`
	AmountGC  decimal.Decimal `json:"amount_gc"`
	AmountSC  decimal.Decimal `json:"amount_sc"`
	Status    string          `json:"status"`
	TRef      string          `json:"tref"` // ledger reference shared with balance rows
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Amounts maps currency code to the non-zero amounts on this payout.
func (p *Payout) Amounts() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, 2)
	if p.AmountGC.IsPositive() {
		m[CurrencyGC] = p.AmountGC
	}
	if p.AmountSC.IsPositive() {
		m[CurrencySC] = p.AmountSC
	}
	return m
}
