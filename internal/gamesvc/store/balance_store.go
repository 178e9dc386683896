package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type BalanceStore struct {
	db *pgxpool.Pool
}

func NewBalanceStore(db *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{db: db}
}

// GetBalance derives a user's balance for one currency from the ledger.
// The ledger is the source of truth; nothing caches this for settlement.
func (c *BalanceStore) GetBalance(ctx context.Context, userID int64, currency string) (decimal.Decimal, error) {
	var totalDr, totalCr decimal.Decimal

	err := c.db.QueryRow(ctx, `
        SELECT
            COALESCE(SUM(dr), 0),
            COALESCE(SUM(cr), 0)
        FROM balances
        WHERE user_id = $1 AND currency = $2 AND status = 'completed'
    `, userID, currency).Scan(&totalDr, &totalCr)

	if err != nil {
		return decimal.Zero, err
	}

	balance := totalDr.Sub(totalCr)
	return balance, nil
}

// GetBalances returns both currency balances in one round trip.
func (c *BalanceStore) GetBalances(ctx context.Context, userID int64) (map[string]decimal.Decimal, error) {
	rows, err := c.db.Query(ctx, `
        SELECT currency, COALESCE(SUM(dr), 0) - COALESCE(SUM(cr), 0)
        FROM balances
        WHERE user_id = $1 AND status = 'completed'
        GROUP BY currency
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := map[string]decimal.Decimal{}
	for rows.Next() {
		var currency string
		var amount decimal.Decimal
		if err := rows.Scan(&currency, &amount); err != nil {
			return nil, err
		}
		balances[currency] = amount
	}
	return balances, rows.Err()
}
