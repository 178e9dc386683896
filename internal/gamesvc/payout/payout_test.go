package payout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
	"github.com/avvvet/sweeps-services/internal/gamesvc/store"
)

// fakeStore mirrors the unique (round_id, user_id) constraint and the
// guarded processed flip of the real payout store.
type fakeStore struct {
	nextID    int64
	rows      map[string]*models.Payout // "roundID:userID"
	byID      map[int64]*models.Payout
	settleErr map[int64]error // user id -> forced settlement error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:      make(map[string]*models.Payout),
		byID:      make(map[int64]*models.Payout),
		settleErr: make(map[int64]error),
	}
}

func key(roundID, userID int64) string {
	return fmt.Sprintf("%d:%d", roundID, userID)
}

func (f *fakeStore) CreateProcessing(ctx context.Context, p *models.Payout) error {
	if _, exists := f.rows[key(p.RoundID, p.UserID)]; exists {
		return store.ErrAlreadyPaid
	}
	f.nextID++
	p.ID = f.nextID
	p.Status = models.PayoutProcessing
	cp := *p
	f.rows[key(p.RoundID, p.UserID)] = &cp
	f.byID[p.ID] = &cp
	return nil
}

func (f *fakeStore) Settle(ctx context.Context, p *models.Payout) error {
	if err := f.settleErr[p.UserID]; err != nil {
		return err
	}
	row, ok := f.byID[p.ID]
	if !ok {
		return errors.New("payout not found")
	}
	if row.Status == models.PayoutProcessed {
		return store.ErrAlreadyPaid
	}
	row.Status = models.PayoutProcessed
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, payoutID int64) error {
	row, ok := f.byID[payoutID]
	if !ok {
		return errors.New("payout not found")
	}
	row.Status = models.PayoutFailed
	return nil
}

func (f *fakeStore) GetPayoutByRoundUser(ctx context.Context, roundID, userID int64) (*models.Payout, error) {
	row, ok := f.rows[key(roundID, userID)]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeStore) ListPayoutsByRound(ctx context.Context, roundID int64, status string) ([]*models.Payout, error) {
	out := make([]*models.Payout, 0)
	for _, row := range f.byID {
		if row.RoundID == roundID && (status == "" || row.Status == status) {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	processed []*models.Payout
}

func (n *fakeNotifier) PublishPayoutProcessed(gameID int64, p *models.Payout) {
	n.processed = append(n.processed, p)
}

func gcWin(userID int64, amount int64) Request {
	return Request{
		UserID:  userID,
		WinType: models.WinPooled,
		Amounts: map[string]decimal.Decimal{models.CurrencyGC: decimal.NewFromInt(amount)},
	}
}

func TestProcessPayoutSettlesOnce(t *testing.T) {
	fs := newFakeStore()
	notify := &fakeNotifier{}
	eng := NewEngine(fs, notify)

	p, err := eng.ProcessPayout(context.Background(), 1, 100, 1000, gcWin(7, 500))
	require.NoError(t, err)
	require.Equal(t, int64(7), p.UserID)
	require.True(t, p.AmountGC.Equal(decimal.NewFromInt(500)))
	require.NotEmpty(t, p.TRef)

	stored := fs.byID[p.ID]
	require.Equal(t, models.PayoutProcessed, stored.Status)
	require.Len(t, notify.processed, 1)
}

func TestProcessPayoutIdempotentSecondCall(t *testing.T) {
	fs := newFakeStore()
	notify := &fakeNotifier{}
	eng := NewEngine(fs, notify)

	first, err := eng.ProcessPayout(context.Background(), 1, 100, 1000, gcWin(7, 500))
	require.NoError(t, err)

	// a second call for the same (round, user) is a no-op returning the row
	second, err := eng.ProcessPayout(context.Background(), 1, 100, 1000, gcWin(7, 500))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, models.PayoutProcessed, second.Status)

	// no double credit, no double notification
	require.Len(t, fs.byID, 1)
	require.Len(t, notify.processed, 1)
}

func TestProcessPayoutParksFailedForRetry(t *testing.T) {
	fs := newFakeStore()
	eng := NewEngine(fs, &fakeNotifier{})

	fs.settleErr[7] = errors.New("ledger unavailable")
	_, err := eng.ProcessPayout(context.Background(), 1, 100, 1000, gcWin(7, 500))
	require.Error(t, err)

	failed, err := fs.ListPayoutsByRound(context.Background(), 100, models.PayoutFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	// once the fault clears, the same call re-settles the parked row
	delete(fs.settleErr, 7)
	p, err := eng.ProcessPayout(context.Background(), 1, 100, 1000, gcWin(7, 500))
	require.NoError(t, err)
	require.Equal(t, failed[0].ID, p.ID)
	require.Equal(t, models.PayoutProcessed, fs.byID[p.ID].Status)
}

func TestProcessRoundPayoutsIndependentFailures(t *testing.T) {
	fs := newFakeStore()
	eng := NewEngine(fs, &fakeNotifier{})

	fs.settleErr[2] = errors.New("ledger unavailable")
	reqs := []Request{gcWin(1, 100), gcWin(2, 100), gcWin(3, 100)}

	settled, errs := eng.ProcessRoundPayouts(context.Background(), 1, 100, 1000, reqs)
	require.Len(t, settled, 2)
	require.Len(t, errs, 1)

	processed, err := fs.ListPayoutsByRound(context.Background(), 100, models.PayoutProcessed)
	require.NoError(t, err)
	require.Len(t, processed, 2)
}

func TestRetryFailedPayouts(t *testing.T) {
	fs := newFakeStore()
	notify := &fakeNotifier{}
	eng := NewEngine(fs, notify)

	fs.settleErr[1] = errors.New("ledger unavailable")
	fs.settleErr[2] = errors.New("ledger unavailable")
	eng.ProcessRoundPayouts(context.Background(), 1, 100, 1000,
		[]Request{gcWin(1, 100), gcWin(2, 100), gcWin(3, 100)})

	// user 3 settled, users 1 and 2 parked
	require.Len(t, notify.processed, 1)

	delete(fs.settleErr, 1)
	delete(fs.settleErr, 2)
	retried, err := eng.RetryFailedPayouts(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Equal(t, 2, retried)

	processed, err := fs.ListPayoutsByRound(context.Background(), 100, models.PayoutProcessed)
	require.NoError(t, err)
	require.Len(t, processed, 3)

	// retry touches only failed rows; nothing new appears on a second pass
	retried, err = eng.RetryFailedPayouts(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Equal(t, 0, retried)
}
