package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EntryStore struct {
	db *pgxpool.Pool
}

func NewEntryStore(db *pgxpool.Pool) *EntryStore {
	return &EntryStore{db: db}
}

const entryColumns = `id, round_id, game_id, user_id, stake, currency, client_seed, nonce,
	status, created_at, updated_at`

func scanEntry(row rowScanner) (*models.Entry, error) {
	e := &models.Entry{}
	err := row.Scan(
		&e.ID, &e.RoundID, &e.GameID, &e.UserID, &e.Stake, &e.Currency,
		&e.ClientSeed, &e.Nonce, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

var ErrRoundClosed = errors.New("round is not accepting entries")

// CreateEntry records a stake. The CTE locks the round row and enforces
// that it still accepts entries; the same statement bumps the round's
// cached entry count and prize pool and hands the pre-bump count back as
// the entry's derivation nonce. The stake debit ledger row is written in
// the same transaction so an accepted entry and its charge are inseparable.
func (s *EntryStore) CreateEntry(ctx context.Context, e *models.Entry) (*models.Entry, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
WITH locked_round AS (
  SELECT id
  FROM rounds
  WHERE id = $1
    AND status = ANY($6)
  FOR UPDATE
), bumped AS (
  UPDATE rounds
  SET entry_count = entry_count + 1,
      prize_pool = prize_pool + $4,
      updated_at = now()
  WHERE id IN (SELECT id FROM locked_round)
  RETURNING id, entry_count
)
INSERT INTO entries (round_id, game_id, user_id, stake, currency, client_seed, nonce, status)
SELECT b.id, $2, $3, $4, $5, $7, b.entry_count - 1, 'active'
FROM bumped b
RETURNING ` + entryColumns + `;
`
	accepting := []string{models.RoundRegistering, models.RoundLive}
	row := tx.QueryRow(ctx, query,
		e.RoundID, e.GameID, e.UserID, e.Stake, e.Currency, accepting, e.ClientSeed)
	created, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// zero rows means the round already left registering/live
			return nil, ErrRoundClosed
		}
		return nil, fmt.Errorf("create entry for round %d: %w", e.RoundID, err)
	}

	tref := fmt.Sprintf("entry:round:%d:entry:%d", created.RoundID, created.ID)
	_, err = tx.Exec(ctx, `
		INSERT INTO balances (user_id, currency, ttype, dr, cr, tref, status)
		VALUES ($1, $2, 'entry', 0, $3, $4, 'completed')
	`, created.UserID, created.Currency, created.Stake, tref)
	if err != nil {
		return nil, fmt.Errorf("debit stake for entry %d: %w", created.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit entry: %w", err)
	}
	return created, nil
}

func (s *EntryStore) GetEntryByID(ctx context.Context, entryID int64) (*models.Entry, error) {
	row := s.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, entryID)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("entry %d not found", entryID)
		}
		return nil, fmt.Errorf("get entry %d: %w", entryID, err)
	}
	return e, nil
}

// ListActiveEntries returns the active entries of a round ordered by nonce,
// the order draw derivations index into.
func (s *EntryStore) ListActiveEntries(ctx context.Context, roundID int64) ([]*models.Entry, error) {
	return s.listEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE round_id = $1 AND status = 'active'
		ORDER BY nonce
	`, roundID)
}

func (s *EntryStore) ListEntriesByUser(ctx context.Context, roundID, userID int64) ([]*models.Entry, error) {
	return s.listEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE round_id = $1 AND user_id = $2
		ORDER BY nonce
	`, roundID, userID)
}

func (s *EntryStore) listEntries(ctx context.Context, query string, args ...any) ([]*models.Entry, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *EntryStore) CountEntriesByUser(ctx context.Context, roundID, userID int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM entries WHERE round_id = $1 AND user_id = $2
	`, roundID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries for user %d round %d: %w", userID, roundID, err)
	}
	return n, nil
}

// CountEntriesByRound counts every entry of a round, for the round-total cap.
func (s *EntryStore) CountEntriesByRound(ctx context.Context, roundID int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM entries WHERE round_id = $1
	`, roundID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries for round %d: %w", roundID, err)
	}
	return n, nil
}

// CountUserEntriesSince counts a user's entries across all rounds from a
// sliding-window start. Feeds the per-minute/hour/day rate limits.
func (s *EntryStore) CountUserEntriesSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM entries WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries since %s for user %d: %w", since, userID, err)
	}
	return n, nil
}

// RecentEntryTimes returns up to limit acceptance timestamps for a user
// since the given time, newest first. Feeds the abuse heuristic.
func (s *EntryStore) RecentEntryTimes(ctx context.Context, userID int64, since time.Time, limit int) ([]time.Time, error) {
	rows, err := s.db.Query(ctx, `
		SELECT created_at FROM entries
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent entry times for user %d: %w", userID, err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan entry time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// SettleEntry sets an entry's terminal status. The active-status guard
// keeps the terminal status write-once.
func (s *EntryStore) SettleEntry(ctx context.Context, entryID int64, status string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE entries SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'active'
	`, entryID, status)
	if err != nil {
		return fmt.Errorf("settle entry %d: %w", entryID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %d already settled", entryID)
	}
	return nil
}

// SettleRound marks the winner entries won and every other active entry lost.
func (s *EntryStore) SettleRound(ctx context.Context, roundID int64, winnerEntryIDs []int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if len(winnerEntryIDs) > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE entries SET status = 'won', updated_at = now()
			WHERE round_id = $1 AND id = ANY($2) AND status = 'active'
		`, roundID, winnerEntryIDs)
		if err != nil {
			return fmt.Errorf("mark winners for round %d: %w", roundID, err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE entries SET status = 'lost', updated_at = now()
		WHERE round_id = $1 AND status = 'active'
	`, roundID)
	if err != nil {
		return fmt.Errorf("mark losers for round %d: %w", roundID, err)
	}

	return tx.Commit(ctx)
}
