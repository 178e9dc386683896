package handlers

import (
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes: the fairness verifier and round reads
		r.Get("/verify", h.VerifyHandler)
		r.Get("/rounds/{roundID}/status", h.GetRoundStatusHandler)
		r.Get("/rounds/{roundID}/stats", h.GetRoundStatsHandler)
		r.Get("/rounds/{roundID}/winners", h.GetWinnersHandler)
		r.Get("/rounds/{roundID}/entries", h.GetPlayerEntriesHandler)
		r.Get("/users/{userID}/balances", h.GetBalanceHandler)
		r.Post("/rounds/{roundID}/entries", h.ProcessEntryHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/health", h.HealthHandler)

			r.Post("/games/{gameID}/rounds", h.CreateRoundHandler)
			r.Post("/rounds/{roundID}/draw", h.DrawRoundHandler)
			r.Post("/rounds/{roundID}/cancel", h.CancelRoundHandler)
			r.Post("/rounds/{roundID}/pause", h.PauseRoundHandler)
			r.Post("/rounds/{roundID}/resume", h.ResumeRoundHandler)
			r.Post("/rounds/{roundID}/payouts/retry", h.RetryPayoutsHandler)
		})
	})
}

func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"service_id": 8003022,
		"exp":        expirationTime,
	})

	// For debugging only, comment it out in production
	log.Infof("DEBUG: JWT for testing expires soon : %s", tokenString)
}
