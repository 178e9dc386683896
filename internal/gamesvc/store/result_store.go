package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResultStore struct {
	db *pgxpool.Pool
}

func NewResultStore(db *pgxpool.Pool) *ResultStore {
	return &ResultStore{db: db}
}

const resultColumns = `id, round_id, game_id, server_seed, server_seed_hash, client_seed,
	nonce, range_max, value, verify_code, winner_count, created_at`

func scanResult(row rowScanner) (*models.Result, error) {
	r := &models.Result{}
	err := row.Scan(
		&r.ID, &r.RoundID, &r.GameID, &r.ServerSeed, &r.ServerSeedHash,
		&r.ClientSeed, &r.Nonce, &r.Range, &r.Value, &r.VerifyCode,
		&r.WinnerCount, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ResultStore) CreateResult(ctx context.Context, r *models.Result) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO results (round_id, game_id, server_seed, server_seed_hash, client_seed,
			nonce, range_max, value, verify_code, winner_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, r.RoundID, r.GameID, r.ServerSeed, r.ServerSeedHash, r.ClientSeed,
		r.Nonce, r.Range, r.Value, r.VerifyCode, r.WinnerCount).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create result for round %d: %w", r.RoundID, err)
	}
	return nil
}

// ListResultsByRound returns results newest first; instant-win sessions
// accumulate one per settled entry.
func (s *ResultStore) ListResultsByRound(ctx context.Context, roundID int64) ([]*models.Result, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+resultColumns+` FROM results WHERE round_id = $1 ORDER BY id DESC
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list results for round %d: %w", roundID, err)
	}
	defer rows.Close()

	var results []*models.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *ResultStore) GetLatestResult(ctx context.Context, roundID int64) (*models.Result, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+resultColumns+` FROM results WHERE round_id = $1 ORDER BY id DESC LIMIT 1
	`, roundID)
	r, err := scanResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no result for round %d", roundID)
		}
		return nil, fmt.Errorf("latest result for round %d: %w", roundID, err)
	}
	return r, nil
}
