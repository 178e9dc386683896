package validation

import (
	"context"
	"time"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Typed rejection codes. Callers branch UX on these and tests assert them
// exactly, so they are part of the public surface.
const (
	ReasonAccountNotFound    = "account_not_found"
	ReasonAccountSuspended   = "account_suspended"
	ReasonIdentityUnverified = "identity_unverified"
	ReasonInsufficientFunds  = "insufficient_balance"
	ReasonRateLimitMinute    = "rate_limit_minute"
	ReasonRateLimitHour      = "rate_limit_hour"
	ReasonRateLimitDay       = "rate_limit_day"
	ReasonMaxEntriesExceeded = "max_entries_exceeded"
	ReasonRoundFull          = "round_full"
	ReasonAbuseRapidEntries  = "abuse_detected_rapid_entries"
)

// Sliding-window entry limits per user.
const (
	limitPerMinute = 10
	limitPerHour   = 100
	limitPerDay    = 500
)

// Abuse heuristic: among the last <=20 entries in a trailing 5 minute
// window, >=15 entries with a mean inter-arrival under 100ms reads as a bot.
const (
	abuseWindow       = 5 * time.Minute
	abuseSampleLimit  = 20
	abuseCountTrigger = 15
	abuseMeanGapMs    = 100.0
)

type Request struct {
	UserID             int64
	GameID             int64
	RoundID            int64
	Stake              decimal.Decimal
	Currency           string
	MaxEntriesPerUser  int
	MaxEntriesPerRound int
}

// Result carries the first failed check. Details hold machine-readable
// numbers the caller renders (shortfall, window counts).
type Result struct {
	Valid   bool           `json:"valid"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func ok() Result {
	return Result{Valid: true}
}

func reject(reason string, details map[string]any) Result {
	return Result{Valid: false, Reason: reason, Details: details}
}

// AccountReader is the account collaborator: standing and balances.
type AccountReader interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetBalance(ctx context.Context, userID int64, currency string) (decimal.Decimal, error)
}

// EntryCounter exposes the durable entry history the windows run over.
type EntryCounter interface {
	CountEntriesByUser(ctx context.Context, roundID, userID int64) (int, error)
	CountEntriesByRound(ctx context.Context, roundID int64) (int, error)
	CountUserEntriesSince(ctx context.Context, userID int64, since time.Time) (int, error)
	RecentEntryTimes(ctx context.Context, userID int64, since time.Time, limit int) ([]time.Time, error)
}

// Service runs the gatekeeper checks in order, short-circuiting on the
// first failure. Only infrastructure problems surface as errors; every
// user-correctable condition comes back as a typed Result.
type Service struct {
	accounts AccountReader
	entries  EntryCounter
	now      func() time.Time
}

func NewService(accounts AccountReader, entries EntryCounter) *Service {
	return &Service{accounts: accounts, entries: entries, now: time.Now}
}

func (s *Service) Validate(ctx context.Context, req Request) (Result, error) {
	if r, err := s.checkAccount(ctx, req); err != nil || !r.Valid {
		return r, err
	}
	if r, err := s.checkBalance(ctx, req); err != nil || !r.Valid {
		return r, err
	}
	if r, err := s.checkRateLimits(ctx, req); err != nil || !r.Valid {
		return r, err
	}
	if r, err := s.checkRoundCap(ctx, req); err != nil || !r.Valid {
		return r, err
	}
	if r, err := s.checkRoundCapacity(ctx, req); err != nil || !r.Valid {
		return r, err
	}
	return s.checkAbuse(ctx, req), nil
}

func (s *Service) checkAccount(ctx context.Context, req Request) (Result, error) {
	user, err := s.accounts.GetUser(ctx, req.UserID)
	if err != nil {
		return Result{}, err
	}
	if user == nil {
		return reject(ReasonAccountNotFound, nil), nil
	}
	if user.Status != "" && user.Status != "active" {
		return reject(ReasonAccountSuspended, map[string]any{"status": user.Status}), nil
	}
	// redeemable currency play requires a verified identity
	if models.IsRedeemable(req.Currency) && !user.Verified {
		return reject(ReasonIdentityUnverified, map[string]any{"currency": req.Currency}), nil
	}
	return ok(), nil
}

func (s *Service) checkBalance(ctx context.Context, req Request) (Result, error) {
	balance, err := s.accounts.GetBalance(ctx, req.UserID, req.Currency)
	if err != nil {
		return Result{}, err
	}
	if balance.LessThan(req.Stake) {
		shortfall := req.Stake.Sub(balance)
		return reject(ReasonInsufficientFunds, map[string]any{
			"required":  req.Stake.InexactFloat64(),
			"available": balance.InexactFloat64(),
			"shortfall": shortfall.InexactFloat64(),
		}), nil
	}
	return ok(), nil
}

func (s *Service) checkRateLimits(ctx context.Context, req Request) (Result, error) {
	now := s.now()
	windows := []struct {
		reason string
		span   time.Duration
		limit  int
	}{
		{ReasonRateLimitMinute, time.Minute, limitPerMinute},
		{ReasonRateLimitHour, time.Hour, limitPerHour},
		{ReasonRateLimitDay, 24 * time.Hour, limitPerDay},
	}
	for _, w := range windows {
		count, err := s.entries.CountUserEntriesSince(ctx, req.UserID, now.Add(-w.span))
		if err != nil {
			return Result{}, err
		}
		if count >= w.limit {
			return reject(w.reason, map[string]any{
				"window_seconds": int(w.span.Seconds()),
				"count":          count,
				"limit":          w.limit,
			}), nil
		}
	}
	return ok(), nil
}

func (s *Service) checkRoundCap(ctx context.Context, req Request) (Result, error) {
	if req.MaxEntriesPerUser <= 0 {
		return ok(), nil
	}
	count, err := s.entries.CountEntriesByUser(ctx, req.RoundID, req.UserID)
	if err != nil {
		return Result{}, err
	}
	if count >= req.MaxEntriesPerUser {
		return reject(ReasonMaxEntriesExceeded, map[string]any{
			"count": count,
			"max":   req.MaxEntriesPerUser,
		}), nil
	}
	return ok(), nil
}

// checkRoundCapacity enforces the round-total entry cap.
func (s *Service) checkRoundCapacity(ctx context.Context, req Request) (Result, error) {
	if req.MaxEntriesPerRound <= 0 {
		return ok(), nil
	}
	count, err := s.entries.CountEntriesByRound(ctx, req.RoundID)
	if err != nil {
		return Result{}, err
	}
	if count >= req.MaxEntriesPerRound {
		return reject(ReasonRoundFull, map[string]any{
			"count": count,
			"max":   req.MaxEntriesPerRound,
		}), nil
	}
	return ok(), nil
}

// checkAbuse fails open: a broken heuristic must never block a player.
func (s *Service) checkAbuse(ctx context.Context, req Request) Result {
	times, err := s.entries.RecentEntryTimes(ctx, req.UserID, s.now().Add(-abuseWindow), abuseSampleLimit)
	if err != nil {
		log.Errorf("abuse heuristic lookup failed for user %d: %v", req.UserID, err)
		return ok()
	}
	if len(times) < abuseCountTrigger {
		return ok()
	}

	// times come back newest first; gaps in milliseconds
	gaps := make([]float64, 0, len(times)-1)
	for i := 0; i < len(times)-1; i++ {
		gaps = append(gaps, float64(times[i].Sub(times[i+1]).Milliseconds()))
	}
	mean, err := stats.Mean(gaps)
	if err != nil {
		log.Errorf("abuse heuristic mean failed for user %d: %v", req.UserID, err)
		return ok()
	}
	if mean < abuseMeanGapMs {
		return reject(ReasonAbuseRapidEntries, map[string]any{
			"count":       len(times),
			"mean_gap_ms": mean,
		})
	}
	return ok()
}
