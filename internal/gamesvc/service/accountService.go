package service

import (
	"context"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
	"github.com/avvvet/sweeps-services/internal/gamesvc/store"

	"github.com/shopspring/decimal"
)

// AccountService is the account collaborator: user standing plus balances
// derived from the ledger on every read.
type AccountService struct {
	users    *store.UserStore
	balances *store.BalanceStore
}

func NewAccountService(users *store.UserStore, balances *store.BalanceStore) *AccountService {
	return &AccountService{users: users, balances: balances}
}

func (s *AccountService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *AccountService) GetBalance(ctx context.Context, userID int64, currency string) (decimal.Decimal, error) {
	return s.balances.GetBalance(ctx, userID, currency)
}

func (s *AccountService) GetBalances(ctx context.Context, userID int64) (map[string]decimal.Decimal, error) {
	return s.balances.GetBalances(ctx, userID)
}
