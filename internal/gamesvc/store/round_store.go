package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type RoundStore struct {
	db *pgxpool.Pool
}

func NewRoundStore(db *pgxpool.Pool) *RoundStore {
	return &RoundStore{db: db}
}

const roundColumns = `id, game_id, status, server_seed, server_seed_hash, prize_pool,
	entry_count, draw_at, created_at, updated_at, completed_at`

func scanRound(row rowScanner) (*models.Round, error) {
	r := &models.Round{}
	err := row.Scan(
		&r.ID, &r.GameID, &r.Status, &r.ServerSeed, &r.ServerSeedHash,
		&r.PrizePool, &r.EntryCount, &r.DrawAt, &r.CreatedAt, &r.UpdatedAt,
		&r.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// CreateRound stores a round whose server seed hash is already committed.
func (s *RoundStore) CreateRound(ctx context.Context, r *models.Round) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO rounds (game_id, status, server_seed, server_seed_hash, prize_pool, entry_count, draw_at)
		VALUES ($1, $2, $3, $4, 0, 0, $5)
		RETURNING id, created_at, updated_at
	`, r.GameID, r.Status, r.ServerSeed, r.ServerSeedHash, r.DrawAt).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create round for game %d: %w", r.GameID, err)
	}
	return nil
}

func (s *RoundStore) GetRoundByID(ctx context.Context, roundID int64) (*models.Round, error) {
	row := s.db.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, roundID)
	r, err := scanRound(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("round %d not found", roundID)
		}
		return nil, fmt.Errorf("get round %d: %w", roundID, err)
	}
	return r, nil
}

// TransitionStatus moves a round to a new status only when it is still in
// one of the expected statuses. It reports false when another caller got
// there first, which makes draw scheduling idempotent.
func (s *RoundStore) TransitionStatus(ctx context.Context, roundID int64, to string, from ...string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rounds SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, roundID, to, from)
	if err != nil {
		return false, fmt.Errorf("transition round %d to %s: %w", roundID, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted closes a round and reveals its server seed to readers.
func (s *RoundStore) MarkCompleted(ctx context.Context, roundID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE rounds SET status = $2, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
	`, roundID, models.RoundCompleted, models.RoundDrawing)
	if err != nil {
		return fmt.Errorf("complete round %d: %w", roundID, err)
	}
	return nil
}

// CancelWithRefunds flips the round and all its active entries to cancelled
// and writes one refund ledger row per entry, as a single transaction.
// Returns the number of entries cancelled.
func (s *RoundStore) CancelWithRefunds(ctx context.Context, roundID int64) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE rounds SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, roundID, models.RoundCancelled,
		[]string{models.RoundRegistering, models.RoundLive, models.RoundPaused})
	if err != nil {
		return 0, fmt.Errorf("cancel round %d: %w", roundID, err)
	}
	if tag.RowsAffected() == 0 {
		// already terminal, nothing to do
		return 0, nil
	}

	rows, err := tx.Query(ctx, `
		UPDATE entries SET status = $2, updated_at = now()
		WHERE round_id = $1 AND status = $3
		RETURNING id, user_id, stake, currency
	`, roundID, models.EntryCancelled, models.EntryActive)
	if err != nil {
		return 0, fmt.Errorf("cancel entries for round %d: %w", roundID, err)
	}

	type refund struct {
		entryID  int64
		userID   int64
		stake    decimal.Decimal
		currency string
	}
	var refunds []refund
	for rows.Next() {
		var rf refund
		if err := rows.Scan(&rf.entryID, &rf.userID, &rf.stake, &rf.currency); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan cancelled entry: %w", err)
		}
		refunds = append(refunds, rf)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("cancelled entries rows: %w", err)
	}

	for _, rf := range refunds {
		tref := fmt.Sprintf("refund:round:%d:entry:%d", roundID, rf.entryID)
		_, err := tx.Exec(ctx, `
			INSERT INTO balances (user_id, currency, ttype, dr, cr, tref, status)
			VALUES ($1, $2, 'refund', $3, 0, $4, 'completed')
		`, rf.userID, rf.currency, rf.stake, tref)
		if err != nil {
			return 0, fmt.Errorf("refund entry %d: %w", rf.entryID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit cancel round %d: %w", roundID, err)
	}
	return len(refunds), nil
}

// ListDueRounds returns rounds whose draw time has elapsed while still
// accepting entries. The sweep calls DrawRound on each; the guarded status
// transition inside the draw keeps concurrent sweepers from double-firing.
func (s *RoundStore) ListDueRounds(ctx context.Context, now time.Time, limit int) ([]*models.Round, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+roundColumns+`
		FROM rounds
		WHERE draw_at IS NOT NULL
		  AND draw_at <= $1
		  AND status = ANY($2)
		ORDER BY draw_at
		LIMIT $3
	`, now, []string{models.RoundRegistering, models.RoundLive}, limit)
	if err != nil {
		return nil, fmt.Errorf("select due rounds: %w", err)
	}
	defer rows.Close()

	var due []*models.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due round: %w", err)
		}
		due = append(due, r)
	}
	return due, rows.Err()
}

// GetOpenRoundByGame returns the newest round of a game still accepting entries.
func (s *RoundStore) GetOpenRoundByGame(ctx context.Context, gameID int64) (*models.Round, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+roundColumns+`
		FROM rounds
		WHERE game_id = $1 AND status = ANY($2)
		ORDER BY id DESC
		LIMIT 1
	`, gameID, []string{models.RoundRegistering, models.RoundLive})
	r, err := scanRound(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("open round for game %d: %w", gameID, err)
	}
	return r, nil
}
