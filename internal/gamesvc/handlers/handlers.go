package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/avvvet/sweeps-services/internal/gamesvc/engine"
	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
	"github.com/avvvet/sweeps-services/internal/gamesvc/payout"
	"github.com/avvvet/sweeps-services/internal/gamesvc/rng"
	"github.com/avvvet/sweeps-services/internal/gamesvc/service"
	"github.com/avvvet/sweeps-services/internal/gamesvc/store"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	registry  *engine.Registry
	rounds    *store.RoundStore
	payouts   *payout.Engine
	accounts  *service.AccountService
}

func NewHandler(registry *engine.Registry, rounds *store.RoundStore,
	payouts *payout.Engine, accounts *service.AccountService) *Handler {
	return &Handler{
		registry: registry,
		rounds:   rounds,
		payouts:  payouts,
		accounts: accounts,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (rs *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "game service is running at port " + os.Getenv("GAME_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	json.NewEncoder(w).Encode(rsp)
}

// engineForRound resolves the round's game engine; round-scoped routes only
// carry the round id.
func (h *Handler) engineForRound(r *http.Request) (engine.RoundEngine, int64, error) {
	roundID, err := strconv.ParseInt(chi.URLParam(r, "roundID"), 10, 64)
	if err != nil {
		return nil, 0, err
	}
	round, err := h.rounds.GetRoundByID(r.Context(), roundID)
	if err != nil {
		return nil, 0, err
	}
	eng, err := h.registry.Get(round.GameID)
	if err != nil {
		return nil, 0, err
	}
	return eng, roundID, nil
}

// VerifyHandler is the public fairness contract: anyone can re-derive an
// outcome from the published seeds and confirm the claimed value.
func (h *Handler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	nonce, err1 := strconv.Atoi(q.Get("nonce"))
	max, err2 := strconv.ParseInt(q.Get("range"), 10, 64)
	claimed, err3 := strconv.ParseInt(q.Get("value"), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "nonce, range and value must be integers"})
		return
	}

	valid := rng.Verify(q.Get("server_seed"), q.Get("client_seed"), nonce, max, claimed)
	derived, _ := rng.DeriveOutcome(q.Get("server_seed"), q.Get("client_seed"), nonce, max)

	h.CreateResponse(w, Response{
		Message: "verification result",
		Code:    200,
		Data: map[string]any{
			"valid":   valid,
			"derived": derived,
		},
	})
}

func (h *Handler) CreateRoundHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid game id"})
		return
	}
	eng, err := h.registry.Get(gameID)
	if err != nil {
		h.CreateResponse(w, Response{Code: 404, Error: err.Error()})
		return
	}

	round, err := eng.CreateRound(r.Context())
	if err != nil {
		log.Errorf("create round for game %d: %v", gameID, err)
		h.CreateResponse(w, Response{Code: 500, Error: "could not create round"})
		return
	}
	h.CreateResponse(w, Response{Message: "round created", Code: 201, Data: round})
}

type entryRequest struct {
	UserID     int64  `json:"user_id"`
	ClientSeed string `json:"client_seed"`
}

func (h *Handler) ProcessEntryHandler(w http.ResponseWriter, r *http.Request) {
	eng, roundID, err := h.engineForRound(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: 404, Error: err.Error()})
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "malformed entry payload"})
		return
	}

	outcome, err := eng.ProcessEntry(r.Context(), engine.EntryRequest{
		RoundID:    roundID,
		UserID:     req.UserID,
		ClientSeed: req.ClientSeed,
	})
	if err != nil {
		if err == store.ErrRoundClosed || err == engine.ErrRoundClosed {
			h.CreateResponse(w, Response{Code: 409, Error: "round is not accepting entries"})
			return
		}
		log.Errorf("process entry round %d user %d: %v", roundID, req.UserID, err)
		h.CreateResponse(w, Response{Code: 500, Error: "could not process entry"})
		return
	}
	if outcome.Rejected != nil {
		// user-correctable: typed code, not a system failure
		h.CreateResponse(w, Response{
			Message: "entry rejected",
			Code:    422,
			Data:    outcome,
			Error:   outcome.Rejected.Reason,
		})
		return
	}
	h.CreateResponse(w, Response{Message: "entry accepted", Code: 201, Data: outcome})
}

func (h *Handler) DrawRoundHandler(w http.ResponseWriter, r *http.Request) {
	eng, roundID, err := h.engineForRound(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: 404, Error: err.Error()})
		return
	}

	result, err := eng.DrawRound(r.Context(), roundID)
	if err != nil {
		if err == engine.ErrAlreadyDrawn {
			h.CreateResponse(w, Response{Code: 409, Error: "round already drawn"})
			return
		}
		log.Errorf("draw round %d: %v", roundID, err)
		h.CreateResponse(w, Response{Code: 500, Error: "could not draw round"})
		return
	}
	h.CreateResponse(w, Response{Message: "round drawn", Code: 200, Data: result})
}

func (h *Handler) CancelRoundHandler(w http.ResponseWriter, r *http.Request) {
	eng, roundID, err := h.engineForRound(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: 404, Error: err.Error()})
		return
	}

	cancelled, err := eng.CancelRound(r.Context(), roundID)
	if err != nil {
		log.Errorf("cancel round %d: %v", roundID, err)
		h.CreateResponse(w, Response{Code: 500, Error: "could not cancel round"})
		return
	}
	h.CreateResponse(w, Response{
		Message: "round cancelled",
		Code:    200,
		Data:    map[string]any{"entries_cancelled": cancelled},
	})
}

// PauseRoundHandler / ResumeRoundHandler are the admin-only reversible edge
// of the state machine: registering <-> paused.
func (h *Handler) PauseRoundHandler(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(w, r, models.RoundPaused, models.RoundRegistering)
}

func (h *Handler) ResumeRoundHandler(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(w, r, models.RoundRegistering, models.RoundPaused)
}

func (h *Handler) transitionHandler(w http.ResponseWriter, r *http.Request, to, from string) {
	roundID, err := strconv.ParseInt(chi.URLParam(r, "roundID"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid round id"})
		return
	}
	moved, err := h.rounds.TransitionStatus(r.Context(), roundID, to, from)
	if err != nil {
		log.Errorf("transition round %d to %s: %v", roundID, to, err)
		h.CreateResponse(w, Response{Code: 500, Error: "could not update round"})
		return
	}
	if !moved {
		h.CreateResponse(w, Response{Code: 409, Error: "round is not in " + from})
		return
	}
	h.CreateResponse(w, Response{Message: "round " + to, Code: 200})
}

func (h *Handler) GetRoundStatusHandler(w http.ResponseWriter, r *http.Request) {
	eng, roundID, err := h.engineForRound(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: 404, Error: err.Error()})
		return
	}
	round, err := eng.GetRoundStatus(r.Context(), roundID)
	if err != nil {
		h.CreateResponse(w, Response{Code: 500, Error: "could not load round"})
		return
	}
	h.CreateResponse(w, Response{Message: "round status", Code: 200, Data: round})
}

func (h *Handler) GetRoundStatsHandler(w http.ResponseWriter, r *http.Request) {
	eng, roundID, err := h.engineForRound(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: 404, Error: err.Error()})
		return
	}
	stats, err := eng.GetRoundStats(r.Context(), roundID)
	if err != nil {
		h.CreateResponse(w, Response{Code: 500, Error: "could not load stats"})
		return
	}
	h.CreateResponse(w, Response{Message: "round stats", Code: 200, Data: stats})
}

func (h *Handler) GetWinnersHandler(w http.ResponseWriter, r *http.Request) {
	eng, roundID, err := h.engineForRound(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: 404, Error: err.Error()})
		return
	}
	winners, err := eng.GetWinners(r.Context(), roundID)
	if err != nil {
		h.CreateResponse(w, Response{Code: 500, Error: "could not load winners"})
		return
	}
	h.CreateResponse(w, Response{Message: "round winners", Code: 200, Data: winners})
}

func (h *Handler) GetPlayerEntriesHandler(w http.ResponseWriter, r *http.Request) {
	eng, roundID, err := h.engineForRound(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: 404, Error: err.Error()})
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "user_id required"})
		return
	}
	entries, err := eng.GetPlayerEntries(r.Context(), roundID, userID)
	if err != nil {
		h.CreateResponse(w, Response{Code: 500, Error: "could not load entries"})
		return
	}
	h.CreateResponse(w, Response{Message: "player entries", Code: 200, Data: entries})
}

func (h *Handler) RetryPayoutsHandler(w http.ResponseWriter, r *http.Request) {
	eng, roundID, err := h.engineForRound(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: 404, Error: err.Error()})
		return
	}
	retried, err := h.payouts.RetryFailedPayouts(r.Context(), eng.Game().ID, roundID)
	if err != nil {
		log.Errorf("retry payouts for round %d: %v", roundID, err)
		h.CreateResponse(w, Response{Code: 500, Error: "could not retry payouts"})
		return
	}
	h.CreateResponse(w, Response{
		Message: "payout retry complete",
		Code:    200,
		Data:    map[string]any{"retried": retried},
	})
}

func (h *Handler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid user id"})
		return
	}
	balances, err := h.accounts.GetBalances(r.Context(), userID)
	if err != nil {
		log.Errorf("balances for user %d: %v", userID, err)
		h.CreateResponse(w, Response{Code: 500, Error: "could not load balances"})
		return
	}
	out := map[string]string{}
	for currency, amount := range balances {
		out[currency] = amount.StringFixed(2)
	}
	h.CreateResponse(w, Response{Message: "balances", Code: 200, Data: out})
}
