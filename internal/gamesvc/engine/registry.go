package engine

import (
	"context"
	"fmt"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
)

// Registry is the directory mapping game ids to their configured engines.
// It is built once at startup from the persisted game configuration and
// injected where needed; there is no process-wide mutable map.
type Registry struct {
	engines map[int64]RoundEngine
}

// GameLister is the slice of the game store the registry needs.
type GameLister interface {
	ListActiveGames(ctx context.Context) ([]*models.Game, error)
}

// BuildRegistry constructs one engine per active game. A game with an
// unknown mechanic is a configuration error and aborts startup.
func BuildRegistry(ctx context.Context, games GameLister, deps Deps) (*Registry, error) {
	list, err := games.ListActiveGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load games for registry: %w", err)
	}

	r := &Registry{engines: make(map[int64]RoundEngine, len(list))}
	for _, g := range list {
		eng, err := NewEngineForGame(g, deps)
		if err != nil {
			return nil, err
		}
		r.engines[g.ID] = eng
	}
	return r, nil
}

// NewEngineForGame picks the engine implementation for a game's mechanic.
func NewEngineForGame(game *models.Game, deps Deps) (RoundEngine, error) {
	switch game.Mechanic {
	case models.MechanicInstantWin:
		return NewInstantEngine(game, deps), nil
	case models.MechanicPooledDraw:
		return NewPooledEngine(game, deps), nil
	case models.MechanicProgressiveJackpot:
		return NewJackpotEngine(game, deps), nil
	case models.MechanicScheduledDraw:
		return NewScheduledEngine(game, deps), nil
	default:
		return nil, fmt.Errorf("game %d has unknown mechanic %q", game.ID, game.Mechanic)
	}
}

// Get returns the engine for a game id.
func (r *Registry) Get(gameID int64) (RoundEngine, error) {
	eng, ok := r.engines[gameID]
	if !ok {
		return nil, fmt.Errorf("no engine registered for game %d", gameID)
	}
	return eng, nil
}

// All returns every registered engine; the sweep iterates these.
func (r *Registry) All() []RoundEngine {
	engines := make([]RoundEngine, 0, len(r.engines))
	for _, eng := range r.engines {
		engines = append(engines, eng)
	}
	return engines
}
