package rng

import (
	"context"
	"time"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
	log "github.com/sirupsen/logrus"
)

// AuditStore appends derivation records. The mongo-backed implementation
// lives in the store package; tests swap in a recorder.
type AuditStore interface {
	Append(ctx context.Context, entry models.RNGAuditLog) error
}

// Engine wraps the pure derivation functions with best-effort audit
// logging. A failed audit write is logged and the derivation still returned.
type Engine struct {
	audit AuditStore
}

func NewEngine(audit AuditStore) *Engine {
	return &Engine{audit: audit}
}

func (e *Engine) GenerateSeed() (string, error) {
	return GenerateSeed()
}

func (e *Engine) HashSeed(seed string) string {
	return HashSeed(seed)
}

// Derive computes one outcome and appends an audit record for it.
func (e *Engine) Derive(ctx context.Context, gameID, roundID int64, serverSeed, clientSeed string, nonce int, max int64) (int64, error) {
	v, err := DeriveOutcome(serverSeed, clientSeed, nonce, max)
	if err != nil {
		return 0, err
	}
	e.logDerivation(ctx, gameID, roundID, serverSeed, clientSeed, nonce, max, v)
	return v, nil
}

func (e *Engine) logDerivation(ctx context.Context, gameID, roundID int64, serverSeed, clientSeed string, nonce int, max, value int64) {
	if e.audit == nil {
		return
	}
	entry := models.RNGAuditLog{
		GameID:         gameID,
		RoundID:        roundID,
		ServerSeedHash: HashSeed(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          nonce,
		Range:          max,
		Value:          value,
		CreatedAt:      time.Now(),
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		// audit is fail-open: the derivation already happened and stands
		log.Errorf("rng audit append failed for round %d nonce %d: %v", roundID, nonce, err)
	}
}
