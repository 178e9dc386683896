package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
	"github.com/avvvet/sweeps-services/internal/gamesvc/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Store is what the engine needs from the payout persistence layer.
type Store interface {
	CreateProcessing(ctx context.Context, p *models.Payout) error
	Settle(ctx context.Context, p *models.Payout) error
	MarkFailed(ctx context.Context, payoutID int64) error
	GetPayoutByRoundUser(ctx context.Context, roundID, userID int64) (*models.Payout, error)
	ListPayoutsByRound(ctx context.Context, roundID int64, status string) ([]*models.Payout, error)
}

// Notifier receives the post-commit events. Implemented by the broadcaster;
// a nil notifier disables fan-out without touching settlement.
type Notifier interface {
	PublishPayoutProcessed(gameID int64, p *models.Payout)
}

// Request is one winner's settlement instruction.
type Request struct {
	UserID  int64
	WinType string
	Amounts map[string]decimal.Decimal
}

// Engine settles winnings. Settlement is the one operation here that needs
// true transactional atomicity: the ledger credits and the processed flip
// commit together or not at all. Failed settlements stay on the payout row
// as 'failed' for the explicit retry pathway.
type Engine struct {
	store  Store
	notify Notifier
}

func NewEngine(s Store, n Notifier) *Engine {
	return &Engine{store: s, notify: n}
}

// ProcessPayout settles one winner exactly once per (round, user).
// A second call for the same pair is a no-op returning the existing row.
func (e *Engine) ProcessPayout(ctx context.Context, gameID, roundID, resultID int64, req Request) (*models.Payout, error) {
	p := &models.Payout{
		RoundID:  roundID,
		ResultID: resultID,
		UserID:   req.UserID,
		WinType:  req.WinType,
		AmountGC: req.Amounts[models.CurrencyGC],
		AmountSC: req.Amounts[models.CurrencySC],
		TRef:     "payout:" + uuid.New().String(),
	}

	err := e.store.CreateProcessing(ctx, p)
	if errors.Is(err, store.ErrAlreadyPaid) {
		existing, gerr := e.store.GetPayoutByRoundUser(ctx, roundID, req.UserID)
		if gerr != nil {
			return nil, gerr
		}
		if existing == nil || existing.Status != models.PayoutFailed {
			// already settled (or mid-flight elsewhere): idempotent no-op
			return existing, nil
		}
		// a parked failed row: re-attempt its settlement
		p = existing
	} else if err != nil {
		return nil, err
	}

	if err := e.settle(ctx, gameID, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Engine) settle(ctx context.Context, gameID int64, p *models.Payout) error {
	err := e.store.Settle(ctx, p)
	if errors.Is(err, store.ErrAlreadyPaid) {
		return nil
	}
	if err != nil {
		log.Errorf("payout %d settlement failed, parking for retry: %v", p.ID, err)
		if ferr := e.store.MarkFailed(ctx, p.ID); ferr != nil {
			log.Errorf("payout %d could not be marked failed: %v", p.ID, ferr)
		}
		return fmt.Errorf("settle payout %d: %w", p.ID, err)
	}

	if e.notify != nil {
		e.notify.PublishPayoutProcessed(gameID, p)
	}
	return nil
}

// ProcessRoundPayouts settles a batch of winners independently; one failure
// never blocks the rest. It returns the settled payouts plus any errors.
func (e *Engine) ProcessRoundPayouts(ctx context.Context, gameID, roundID, resultID int64, reqs []Request) ([]*models.Payout, []error) {
	var settled []*models.Payout
	var errs []error
	for _, req := range reqs {
		p, err := e.ProcessPayout(ctx, gameID, roundID, resultID, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", req.UserID, err))
			continue
		}
		if p != nil {
			settled = append(settled, p)
		}
	}
	return settled, errs
}

// RetryFailedPayouts re-attempts every payout of the round still parked as
// 'failed'. Rows in any other status are untouched.
func (e *Engine) RetryFailedPayouts(ctx context.Context, gameID, roundID int64) (int, error) {
	failed, err := e.store.ListPayoutsByRound(ctx, roundID, models.PayoutFailed)
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, p := range failed {
		if err := e.settle(ctx, gameID, p); err != nil {
			log.Errorf("retry of payout %d failed again: %v", p.ID, err)
			continue
		}
		retried++
	}
	return retried, nil
}
