package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
	"github.com/avvvet/sweeps-services/internal/gamesvc/payout"
	"github.com/avvvet/sweeps-services/internal/gamesvc/rng"
	"github.com/avvvet/sweeps-services/internal/gamesvc/validation"
)

// memStore is the in-memory stand-in for the pgx stores. It mirrors the
// guarded transitions the real store performs so engine semantics are
// exercised against the same rules.
type memStore struct {
	mu         sync.Mutex
	nextRound  int64
	nextEntry  int64
	nextResult int64
	rounds     map[int64]*models.Round
	entries    map[int64]*models.Entry
	results    []*models.Result
	payouts    []*models.Payout
}

func newMemStore() *memStore {
	return &memStore{
		rounds:  make(map[int64]*models.Round),
		entries: make(map[int64]*models.Entry),
	}
}

func (m *memStore) CreateRound(ctx context.Context, r *models.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRound++
	r.ID = m.nextRound
	r.CreatedAt = time.Now()
	cp := *r
	m.rounds[r.ID] = &cp
	return nil
}

func (m *memStore) GetRoundByID(ctx context.Context, roundID int64) (*models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("round %d not found", roundID)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) TransitionStatus(ctx context.Context, roundID int64, to string, from ...string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return false, fmt.Errorf("round %d not found", roundID)
	}
	for _, f := range from {
		if r.Status == f {
			r.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) MarkCompleted(ctx context.Context, roundID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return fmt.Errorf("round %d not found", roundID)
	}
	if r.Status == models.RoundDrawing {
		now := time.Now()
		r.Status = models.RoundCompleted
		r.CompletedAt = &now
	}
	return nil
}

func (m *memStore) CancelWithRefunds(ctx context.Context, roundID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return 0, fmt.Errorf("round %d not found", roundID)
	}
	switch r.Status {
	case models.RoundRegistering, models.RoundLive, models.RoundPaused:
	default:
		return 0, nil
	}
	r.Status = models.RoundCancelled

	cancelled := 0
	for _, e := range m.entries {
		if e.RoundID == roundID && e.Status == models.EntryActive {
			e.Status = models.EntryCancelled
			cancelled++
		}
	}
	return cancelled, nil
}

func (m *memStore) GetOpenRoundByGame(ctx context.Context, gameID int64) (*models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open *models.Round
	for _, r := range m.rounds {
		if r.GameID == gameID && r.Accepting() {
			if open == nil || r.ID > open.ID {
				open = r
			}
		}
	}
	if open == nil {
		return nil, nil
	}
	cp := *open
	return &cp, nil
}

func (m *memStore) ListDueRounds(ctx context.Context, now time.Time, limit int) ([]*models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*models.Round
	for _, r := range m.rounds {
		if r.DrawAt != nil && !r.DrawAt.After(now) && r.Accepting() && len(due) < limit {
			cp := *r
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (m *memStore) CreateEntry(ctx context.Context, e *models.Entry) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[e.RoundID]
	if !ok {
		return nil, fmt.Errorf("round %d not found", e.RoundID)
	}
	if !r.Accepting() {
		return nil, ErrRoundClosed
	}
	m.nextEntry++
	e.ID = m.nextEntry
	e.Nonce = r.EntryCount
	e.Status = models.EntryActive
	e.CreatedAt = time.Now()
	r.EntryCount++
	r.PrizePool = r.PrizePool.Add(e.Stake)
	cp := *e
	m.entries[e.ID] = &cp
	return e, nil
}

func (m *memStore) ListActiveEntries(ctx context.Context, roundID int64) ([]*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Entry, 0)
	for id := int64(1); id <= m.nextEntry; id++ { // nonce order
		e, ok := m.entries[id]
		if ok && e.RoundID == roundID && e.Status == models.EntryActive {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ListEntriesByUser(ctx context.Context, roundID, userID int64) ([]*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Entry, 0)
	for id := int64(1); id <= m.nextEntry; id++ {
		e, ok := m.entries[id]
		if ok && e.RoundID == roundID && e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) SettleEntry(ctx context.Context, entryID int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok {
		return fmt.Errorf("entry %d not found", entryID)
	}
	if e.Status == models.EntryActive {
		e.Status = status
	}
	return nil
}

func (m *memStore) SettleRound(ctx context.Context, roundID int64, winnerEntryIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	won := make(map[int64]bool, len(winnerEntryIDs))
	for _, id := range winnerEntryIDs {
		won[id] = true
	}
	for _, e := range m.entries {
		if e.RoundID != roundID || e.Status != models.EntryActive {
			continue
		}
		if won[e.ID] {
			e.Status = models.EntryWon
		} else {
			e.Status = models.EntryLost
		}
	}
	return nil
}

func (m *memStore) CreateResult(ctx context.Context, r *models.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextResult++
	r.ID = m.nextResult
	r.CreatedAt = time.Now()
	cp := *r
	m.results = append(m.results, &cp)
	return nil
}

func (m *memStore) GetLatestResult(ctx context.Context, roundID int64) (*models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.results) - 1; i >= 0; i-- {
		if m.results[i].RoundID == roundID {
			cp := *m.results[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no result for round %d", roundID)
}

func (m *memStore) ListPayoutsByRound(ctx context.Context, roundID int64, status string) ([]*models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Payout, 0)
	for _, p := range m.payouts {
		if p.RoundID == roundID && (status == "" || p.Status == status) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeSettler records settlement requests and writes processed payout rows
// into the shared store so GetWinners sees them.
type fakeSettler struct {
	store    *memStore
	failUser int64 // settlement for this user fails, others succeed
	requests []payout.Request
}

func (s *fakeSettler) ProcessPayout(ctx context.Context, gameID, roundID, resultID int64, req payout.Request) (*models.Payout, error) {
	s.requests = append(s.requests, req)
	if s.failUser != 0 && req.UserID == s.failUser {
		return nil, fmt.Errorf("settlement for user %d failed", req.UserID)
	}
	p := &models.Payout{
		RoundID:  roundID,
		ResultID: resultID,
		UserID:   req.UserID,
		WinType:  req.WinType,
		AmountGC: req.Amounts[models.CurrencyGC],
		AmountSC: req.Amounts[models.CurrencySC],
		Status:   models.PayoutProcessed,
	}
	s.store.mu.Lock()
	p.ID = int64(len(s.store.payouts) + 1)
	s.store.payouts = append(s.store.payouts, p)
	s.store.mu.Unlock()
	return p, nil
}

func (s *fakeSettler) ProcessRoundPayouts(ctx context.Context, gameID, roundID, resultID int64, reqs []payout.Request) ([]*models.Payout, []error) {
	var settled []*models.Payout
	var errs []error
	for _, req := range reqs {
		p, err := s.ProcessPayout(ctx, gameID, roundID, resultID, req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		settled = append(settled, p)
	}
	return settled, errs
}

type fakeValidator struct {
	result validation.Result
}

func (v *fakeValidator) Validate(ctx context.Context, req validation.Request) (validation.Result, error) {
	return v.result, nil
}

// fakeRNG derives through the real functions without the audit trail.
type fakeRNG struct {
	seedCounter int
}

func (f *fakeRNG) GenerateSeed() (string, error) {
	f.seedCounter++
	return fmt.Sprintf("server-seed-%d", f.seedCounter), nil
}

func (f *fakeRNG) HashSeed(seed string) string {
	return rng.HashSeed(seed)
}

func (f *fakeRNG) Derive(ctx context.Context, gameID, roundID int64, serverSeed, clientSeed string, nonce int, max int64) (int64, error) {
	return rng.DeriveOutcome(serverSeed, clientSeed, nonce, max)
}

type fakeNotifier struct {
	mu         sync.Mutex
	entries    int
	statuses   int
	winners    []int64 // user ids announced
	winAmounts []decimal.Decimal
}

func (n *fakeNotifier) PublishEntrySubmitted(round *models.Round, entry *models.Entry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries++
}

func (n *fakeNotifier) PublishRoundStatus(round *models.Round) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses++
}

func (n *fakeNotifier) PublishWinnerAnnounced(gameID, roundID, userID int64, winType string, amount decimal.Decimal, currency string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.winners = append(n.winners, userID)
	n.winAmounts = append(n.winAmounts, amount)
}

func testDeps(store *memStore, settler *fakeSettler, notify *fakeNotifier) Deps {
	return Deps{
		Rounds:    store,
		Entries:   store,
		Results:   store,
		Payouts:   store,
		Validator: &fakeValidator{result: validation.Result{Valid: true}},
		Settler:   settler,
		RNG:       &fakeRNG{},
		Notify:    notify,
	}
}

func pooledGame() *models.Game {
	return &models.Game{
		ID:              1,
		Name:            "hourly pool",
		Mechanic:        models.MechanicPooledDraw,
		Currency:        models.CurrencyGC,
		EntryCost:       decimal.NewFromInt(100),
		WinnerCount:     3,
		DrawIntervalSec: 3600,
	}
}

func instantGame() *models.Game {
	return &models.Game{
		ID:            2,
		Name:          "instant scratch",
		Mechanic:      models.MechanicInstantWin,
		Currency:      models.CurrencyGC,
		EntryCost:     decimal.NewFromInt(10),
		RTPPercent:    85.0,
		WinMultiplier: decimal.NewFromInt(2),
	}
}

func jackpotGame() *models.Game {
	return &models.Game{
		ID:               3,
		Name:             "mega pot",
		Mechanic:         models.MechanicProgressiveJackpot,
		Currency:         models.CurrencySC,
		EntryCost:        decimal.NewFromInt(50),
		JackpotFloor:     decimal.NewFromInt(10000),
		JackpotIncrement: decimal.NewFromInt(1000),
		JackpotCap:       decimal.NewFromInt(500000),
	}
}

func scheduledGame() *models.Game {
	return &models.Game{
		ID:              4,
		Name:            "daily draw",
		Mechanic:        models.MechanicScheduledDraw,
		Currency:        models.CurrencyGC,
		EntryCost:       decimal.NewFromInt(25),
		WinnerCount:     1,
		DrawIntervalSec: 86400,
	}
}

func submitEntries(t *testing.T, eng RoundEngine, roundID int64, users ...int64) {
	t.Helper()
	for _, u := range users {
		out, err := eng.ProcessEntry(context.Background(), EntryRequest{
			RoundID:    roundID,
			UserID:     u,
			ClientSeed: fmt.Sprintf("seed-user-%d", u),
		})
		require.NoError(t, err)
		require.Nil(t, out.Rejected)
		require.NotNil(t, out.Entry)
	}
}

func TestCreateRoundCommitsSeedHash(t *testing.T) {
	store := newMemStore()
	notify := &fakeNotifier{}
	eng := NewPooledEngine(pooledGame(), testDeps(store, &fakeSettler{store: store}, notify))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.RoundRegistering, round.Status)
	require.NotEmpty(t, round.ServerSeed)
	require.Equal(t, rng.HashSeed(round.ServerSeed), round.ServerSeedHash)
	require.NotNil(t, round.DrawAt)
	require.Equal(t, 1, notify.statuses)
}

func TestProcessEntryAssignsSequentialNonces(t *testing.T) {
	store := newMemStore()
	eng := NewPooledEngine(pooledGame(), testDeps(store, &fakeSettler{store: store}, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := eng.ProcessEntry(context.Background(), EntryRequest{
			RoundID:    round.ID,
			UserID:     int64(i + 1),
			ClientSeed: fmt.Sprintf("cs-%d", i),
		})
		require.NoError(t, err)
		require.Equal(t, i, out.Entry.Nonce)
	}
}

func TestProcessEntryRejectedByValidation(t *testing.T) {
	store := newMemStore()
	deps := testDeps(store, &fakeSettler{store: store}, &fakeNotifier{})
	deps.Validator = &fakeValidator{result: validation.Result{
		Valid:  false,
		Reason: validation.ReasonInsufficientFunds,
	}}
	eng := NewPooledEngine(pooledGame(), deps)

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)

	out, err := eng.ProcessEntry(context.Background(), EntryRequest{RoundID: round.ID, UserID: 1})
	require.NoError(t, err)
	require.NotNil(t, out.Rejected)
	require.Equal(t, validation.ReasonInsufficientFunds, out.Rejected.Reason)
	require.Nil(t, out.Entry)
	require.Empty(t, store.entries)
}

func TestProcessEntryClosedRound(t *testing.T) {
	store := newMemStore()
	eng := NewPooledEngine(pooledGame(), testDeps(store, &fakeSettler{store: store}, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	_, err = store.TransitionStatus(context.Background(), round.ID, models.RoundCompleted, models.RoundRegistering)
	require.NoError(t, err)

	_, err = eng.ProcessEntry(context.Background(), EntryRequest{RoundID: round.ID, UserID: 1})
	require.ErrorIs(t, err, ErrRoundClosed)
}

func TestPooledDrawSelectsDistinctWinners(t *testing.T) {
	store := newMemStore()
	settler := &fakeSettler{store: store}
	notify := &fakeNotifier{}
	eng := NewPooledEngine(pooledGame(), testDeps(store, settler, notify))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	submitEntries(t, eng, round.ID, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	result, err := eng.DrawRound(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, 3, result.WinnerCount)
	require.Equal(t, int64(10), result.Range)

	// three distinct winners were settled
	require.Len(t, settler.requests, 3)
	seen := make(map[int64]bool)
	for _, req := range settler.requests {
		require.False(t, seen[req.UserID], "winner selected twice")
		seen[req.UserID] = true
		// pool of 1000 split three ways
		require.True(t, req.Amounts[models.CurrencyGC].Equal(decimal.RequireFromString("333.33")))
	}

	// every entry reached a terminal status
	won, lost := 0, 0
	for _, e := range store.entries {
		switch e.Status {
		case models.EntryWon:
			won++
		case models.EntryLost:
			lost++
		default:
			t.Fatalf("entry %d left in status %s", e.ID, e.Status)
		}
	}
	require.Equal(t, 3, won)
	require.Equal(t, 7, lost)

	final, err := store.GetRoundByID(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoundCompleted, final.Status)
	require.Len(t, notify.winners, 3)
}

func TestPooledDrawIsIdempotent(t *testing.T) {
	store := newMemStore()
	eng := NewPooledEngine(pooledGame(), testDeps(store, &fakeSettler{store: store}, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	submitEntries(t, eng, round.ID, 1, 2, 3)

	_, err = eng.DrawRound(context.Background(), round.ID)
	require.NoError(t, err)

	statuses := make(map[int64]string)
	for id, e := range store.entries {
		statuses[id] = e.Status
	}

	// a second draw on the completed round stops at the claim: no new
	// result row, no settled entry disturbed, no resurrected round
	_, err = eng.DrawRound(context.Background(), round.ID)
	require.ErrorIs(t, err, ErrAlreadyDrawn)

	require.Len(t, store.results, 1)
	for id, e := range store.entries {
		require.Equal(t, statuses[id], e.Status)
	}
	final, err := store.GetRoundByID(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoundCompleted, final.Status)
}

func TestPooledDrawReproducible(t *testing.T) {
	store := newMemStore()
	settler := &fakeSettler{store: store}
	eng := NewPooledEngine(pooledGame(), testDeps(store, settler, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	submitEntries(t, eng, round.ID, 1, 2, 3, 4, 5)

	result, err := eng.DrawRound(context.Background(), round.ID)
	require.NoError(t, err)

	// the published artifact re-derives to the committed outcome using
	// the nonce it carries, so anyone holding the result row can check it
	require.Equal(t, rng.HashSeed(result.ServerSeed), result.ServerSeedHash)
	require.EqualValues(t, 0, result.Nonce)
	require.True(t, rng.Verify(result.ServerSeed, result.ClientSeed, result.Nonce, result.Range, result.Value))
}

func TestPooledMultiWinnerArtifactVerifies(t *testing.T) {
	store := newMemStore()
	settler := &fakeSettler{store: store}
	eng := NewPooledEngine(pooledGame(), testDeps(store, settler, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	submitEntries(t, eng, round.ID, 1, 2, 3, 4, 5, 6, 7, 8)

	// three winners drawn; the stored row still has to be self-consistent
	result, err := eng.DrawRound(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, 3, result.WinnerCount)
	require.True(t, rng.Verify(result.ServerSeed, result.ClientSeed, result.Nonce, result.Range, result.Value))
}

func TestPooledDrawZeroEntriesCancels(t *testing.T) {
	store := newMemStore()
	settler := &fakeSettler{store: store}
	eng := NewPooledEngine(pooledGame(), testDeps(store, settler, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)

	result, err := eng.DrawRound(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, 0, result.WinnerCount)
	require.Empty(t, settler.requests)

	final, err := store.GetRoundByID(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoundCancelled, final.Status)

	// redrawing the cancelled round writes nothing
	_, err = eng.DrawRound(context.Background(), round.ID)
	require.ErrorIs(t, err, ErrAlreadyDrawn)
	require.Len(t, store.results, 1)
}

func TestPooledDrawOneSettlementFailureDoesNotBlockRest(t *testing.T) {
	store := newMemStore()
	settler := &fakeSettler{store: store, failUser: 2}
	eng := NewPooledEngine(pooledGame(), testDeps(store, settler, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	submitEntries(t, eng, round.ID, 1, 2, 3)

	// every entrant wins here (3 entries, 3 winners); user 2 fails to settle
	result, err := eng.DrawRound(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, 3, result.WinnerCount)

	paid, err := store.ListPayoutsByRound(context.Background(), round.ID, models.PayoutProcessed)
	require.NoError(t, err)
	require.Len(t, paid, 2)

	// the draw itself stands
	final, err := store.GetRoundByID(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoundCompleted, final.Status)
}

func TestCancelRoundRefundsActiveEntries(t *testing.T) {
	store := newMemStore()
	eng := NewPooledEngine(pooledGame(), testDeps(store, &fakeSettler{store: store}, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	submitEntries(t, eng, round.ID, 1, 2, 3, 4, 5)

	cancelled, err := eng.CancelRound(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, 5, cancelled)

	for _, e := range store.entries {
		require.Equal(t, models.EntryCancelled, e.Status)
	}

	// cancelling again is a no-op
	cancelled, err = eng.CancelRound(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, 0, cancelled)
}

func TestInstantEntrySettlesSynchronously(t *testing.T) {
	store := newMemStore()
	settler := &fakeSettler{store: store}
	notify := &fakeNotifier{}
	game := instantGame()
	eng := NewInstantEngine(game, testDeps(store, settler, notify))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.RoundLive, round.Status)

	out, err := eng.ProcessEntry(context.Background(), EntryRequest{
		RoundID:    round.ID,
		UserID:     7,
		ClientSeed: "player-seed",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Result)

	// the recorded result must re-derive to the same value
	expected, err := rng.DeriveOutcome(round.ServerSeed, "player-seed", 0, instantRange)
	require.NoError(t, err)
	require.Equal(t, expected, out.Result.Value)

	threshold := int64(game.RTPPercent * 100)
	entry := store.entries[out.Entry.ID]
	if expected < threshold {
		require.True(t, out.Won)
		require.Equal(t, 1, out.Result.WinnerCount)
		require.Equal(t, models.EntryWon, entry.Status)
		require.Len(t, settler.requests, 1)
		require.True(t, out.Prize.Equal(decimal.NewFromInt(20))) // stake 10 x2
		require.Len(t, notify.winners, 1)
	} else {
		require.False(t, out.Won)
		require.Equal(t, 0, out.Result.WinnerCount)
		require.Equal(t, models.EntryLost, entry.Status)
		require.Empty(t, settler.requests)
	}
}

func TestInstantWinRateTracksRTP(t *testing.T) {
	store := newMemStore()
	settler := &fakeSettler{store: store}
	eng := NewInstantEngine(instantGame(), testDeps(store, settler, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)

	const n = 10000
	wins := 0
	for i := 0; i < n; i++ {
		out, err := eng.ProcessEntry(context.Background(), EntryRequest{
			RoundID:    round.ID,
			UserID:     int64(i + 1),
			ClientSeed: fmt.Sprintf("cs-%d", i),
		})
		require.NoError(t, err)
		if out.Won {
			wins++
		}
	}

	rate := float64(wins) / float64(n)
	require.InDelta(t, 0.85, rate, 0.02)
}

func TestJackpotAmountGrowsToCap(t *testing.T) {
	store := newMemStore()
	eng := NewJackpotEngine(jackpotGame(), testDeps(store, &fakeSettler{store: store}, &fakeNotifier{}))

	require.True(t, eng.Jackpot(0).Equal(decimal.NewFromInt(10000)))
	require.True(t, eng.Jackpot(5).Equal(decimal.NewFromInt(15000)))
	require.True(t, eng.Jackpot(490).Equal(decimal.NewFromInt(500000)))
	// capped past 490 entries
	require.True(t, eng.Jackpot(1000).Equal(decimal.NewFromInt(500000)))
}

func TestJackpotDrawSingleWinnerTakesPot(t *testing.T) {
	store := newMemStore()
	settler := &fakeSettler{store: store}
	eng := NewJackpotEngine(jackpotGame(), testDeps(store, settler, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	submitEntries(t, eng, round.ID, 1, 2, 3, 4)

	result, err := eng.DrawRound(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.WinnerCount)

	require.Len(t, settler.requests, 1)
	// floor 10000 + 4 x 1000
	require.True(t, settler.requests[0].Amounts[models.CurrencySC].Equal(decimal.NewFromInt(14000)))
	require.Equal(t, models.WinJackpot, settler.requests[0].WinType)
}

func TestScheduledDrawOpensNextRound(t *testing.T) {
	store := newMemStore()
	eng := NewScheduledEngine(scheduledGame(), testDeps(store, &fakeSettler{store: store}, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	submitEntries(t, eng, round.ID, 1, 2)

	_, err = eng.DrawRound(context.Background(), round.ID)
	require.NoError(t, err)

	next, err := store.GetOpenRoundByGame(context.Background(), eng.Game().ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.NotEqual(t, round.ID, next.ID)
	require.Equal(t, models.RoundRegistering, next.Status)
}

func TestEnsureOpenRoundIsIdempotent(t *testing.T) {
	store := newMemStore()
	eng := NewScheduledEngine(scheduledGame(), testDeps(store, &fakeSettler{store: store}, &fakeNotifier{}))

	require.NoError(t, eng.EnsureOpenRound(context.Background()))
	require.NoError(t, eng.EnsureOpenRound(context.Background()))

	open := 0
	for _, r := range store.rounds {
		if r.Accepting() {
			open++
		}
	}
	require.Equal(t, 1, open)
}

func TestGetRoundStats(t *testing.T) {
	store := newMemStore()
	settler := &fakeSettler{store: store}
	eng := NewJackpotEngine(jackpotGame(), testDeps(store, settler, &fakeNotifier{}))

	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	submitEntries(t, eng, round.ID, 1, 2, 3)

	stats, err := eng.GetRoundStats(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stats.EntryCount)
	require.True(t, stats.PrizePool.Equal(decimal.NewFromInt(150)))
	require.True(t, stats.Jackpot.Equal(decimal.NewFromInt(13000)))
	require.Equal(t, 0, stats.WinnerCount)

	_, err = eng.DrawRound(context.Background(), round.ID)
	require.NoError(t, err)

	stats, err = eng.GetRoundStats(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.WinnerCount)
	require.True(t, stats.PaidSC.Equal(decimal.NewFromInt(13000)))
}

func TestRegistryBuildsOneEnginePerGame(t *testing.T) {
	store := newMemStore()
	deps := testDeps(store, &fakeSettler{store: store}, &fakeNotifier{})

	lister := &fakeGameLister{games: []*models.Game{
		pooledGame(), instantGame(), jackpotGame(), scheduledGame(),
	}}
	registry, err := BuildRegistry(context.Background(), lister, deps)
	require.NoError(t, err)
	require.Len(t, registry.All(), 4)

	eng, err := registry.Get(2)
	require.NoError(t, err)
	require.IsType(t, &InstantEngine{}, eng)

	_, err = registry.Get(99)
	require.Error(t, err)
}

func TestRegistryRejectsUnknownMechanic(t *testing.T) {
	store := newMemStore()
	deps := testDeps(store, &fakeSettler{store: store}, &fakeNotifier{})

	lister := &fakeGameLister{games: []*models.Game{
		{ID: 9, Mechanic: "roulette"},
	}}
	_, err := BuildRegistry(context.Background(), lister, deps)
	require.Error(t, err)
}

type fakeGameLister struct {
	games []*models.Game
}

func (f *fakeGameLister) ListActiveGames(ctx context.Context) ([]*models.Game, error) {
	return f.games, nil
}

func TestSweepDrawsDueRounds(t *testing.T) {
	store := newMemStore()
	deps := testDeps(store, &fakeSettler{store: store}, &fakeNotifier{})

	game := scheduledGame()
	lister := &fakeGameLister{games: []*models.Game{game}}
	registry, err := BuildRegistry(context.Background(), lister, deps)
	require.NoError(t, err)

	eng, err := registry.Get(game.ID)
	require.NoError(t, err)
	round, err := eng.CreateRound(context.Background())
	require.NoError(t, err)
	submitEntries(t, eng, round.ID, 1, 2)

	// force the round due
	past := time.Now().Add(-time.Minute)
	store.mu.Lock()
	store.rounds[round.ID].DrawAt = &past
	store.mu.Unlock()

	sweep := NewSweep(registry, store, time.Second)
	sweep.Tick(context.Background())

	final, err := store.GetRoundByID(context.Background(), round.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoundCompleted, final.Status)

	// cadence continues: a fresh round is open
	next, err := store.GetOpenRoundByGame(context.Background(), game.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
}
