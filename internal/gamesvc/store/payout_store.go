package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PayoutStore struct {
	db *pgxpool.Pool
}

func NewPayoutStore(db *pgxpool.Pool) *PayoutStore {
	return &PayoutStore{db: db}
}

const payoutColumns = `id, round_id, result_id, user_id, win_type, amount_gc, amount_sc,
	status, tref, created_at, updated_at`

func scanPayout(row rowScanner) (*models.Payout, error) {
	p := &models.Payout{}
	err := row.Scan(
		&p.ID, &p.RoundID, &p.ResultID, &p.UserID, &p.WinType, &p.AmountGC,
		&p.AmountSC, &p.Status, &p.TRef, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ErrAlreadyPaid is returned when a (round, user) pair already holds a
// payout row; settlement must never credit a winner twice.
var ErrAlreadyPaid = errors.New("payout already exists for round and user")

// CreateProcessing inserts the payout row in 'processing' status. The
// unique index on (round_id, user_id) is the idempotency guard.
func (s *PayoutStore) CreateProcessing(ctx context.Context, p *models.Payout) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO payouts (round_id, result_id, user_id, win_type, amount_gc, amount_sc, status, tref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, p.RoundID, p.ResultID, p.UserID, p.WinType, p.AmountGC, p.AmountSC,
		models.PayoutProcessing, p.TRef).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyPaid
		}
		return fmt.Errorf("create payout for round %d user %d: %w", p.RoundID, p.UserID, err)
	}
	p.Status = models.PayoutProcessing
	return nil
}

// Settle commits all ledger credits and the 'processed' flip as one unit.
// Any failure rolls the whole transaction back; no partial credit survives.
func (s *PayoutStore) Settle(ctx context.Context, p *models.Payout) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for currency, amount := range p.Amounts() {
		_, err := tx.Exec(ctx, `
			INSERT INTO balances (user_id, currency, ttype, dr, cr, tref, status)
			VALUES ($1, $2, 'payout', $3, 0, $4, 'completed')
		`, p.UserID, currency, amount, p.TRef)
		if err != nil {
			return fmt.Errorf("credit %s for payout %d: %w", currency, p.ID, err)
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE payouts SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, p.ID, models.PayoutProcessed,
		[]string{models.PayoutProcessing, models.PayoutFailed})
	if err != nil {
		return fmt.Errorf("mark payout %d processed: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// concurrent settle won; abort so the ledger rows are not duplicated
		return ErrAlreadyPaid
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit payout %d: %w", p.ID, err)
	}
	p.Status = models.PayoutProcessed
	return nil
}

// MarkFailed parks a payout for the explicit retry pathway.
func (s *PayoutStore) MarkFailed(ctx context.Context, payoutID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE payouts SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
	`, payoutID, models.PayoutFailed, models.PayoutProcessing)
	if err != nil {
		return fmt.Errorf("mark payout %d failed: %w", payoutID, err)
	}
	return nil
}

func (s *PayoutStore) GetPayoutByRoundUser(ctx context.Context, roundID, userID int64) (*models.Payout, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+payoutColumns+` FROM payouts WHERE round_id = $1 AND user_id = $2
	`, roundID, userID)
	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout round %d user %d: %w", roundID, userID, err)
	}
	return p, nil
}

func (s *PayoutStore) ListPayoutsByRound(ctx context.Context, roundID int64, status string) ([]*models.Payout, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+payoutColumns+` FROM payouts
		WHERE round_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY id
	`, roundID, status)
	if err != nil {
		return nil, fmt.Errorf("list payouts for round %d: %w", roundID, err)
	}
	defer rows.Close()

	var payouts []*models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}
