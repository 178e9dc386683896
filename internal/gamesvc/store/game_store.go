package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GameStore struct {
	db *pgxpool.Pool
}

func NewGameStore(db *pgxpool.Pool) *GameStore {
	return &GameStore{db: db}
}

const gameColumns = `id, name, mechanic, currency, entry_cost, rtp_percent, win_multiplier,
	winner_count, jackpot_floor, jackpot_increment, jackpot_cap, draw_interval_sec,
	max_entries_per_user, max_entries_per_round, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*models.Game, error) {
	g := &models.Game{}
	err := row.Scan(
		&g.ID, &g.Name, &g.Mechanic, &g.Currency, &g.EntryCost, &g.RTPPercent,
		&g.WinMultiplier, &g.WinnerCount, &g.JackpotFloor, &g.JackpotIncrement,
		&g.JackpotCap, &g.DrawIntervalSec, &g.MaxEntriesPerUser,
		&g.MaxEntriesPerRound, &g.Status, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GameStore) GetGameByID(ctx context.Context, gameID int64) (*models.Game, error) {
	row := s.db.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, gameID)
	g, err := scanGame(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("game %d not found", gameID)
		}
		return nil, fmt.Errorf("get game %d: %w", gameID, err)
	}
	return g, nil
}

// ListActiveGames returns every game the registry should build an engine for.
func (s *GameStore) ListActiveGames(ctx context.Context) ([]*models.Game, error) {
	rows, err := s.db.Query(ctx, `SELECT `+gameColumns+` FROM games WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active games: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}
