package store

import (
	"context"
	"errors"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

// GetUserByID returns nil when the user does not exist; the validation
// layer turns that into a typed rejection rather than an error.
func (s *UserStore) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRow(ctx, `
		SELECT user_id, name, COALESCE(avatar, ''), COALESCE(email, ''), status, verified, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`, userID).Scan(&u.UserId, &u.Name, &u.Avatar, &u.Email, &u.Status, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}
