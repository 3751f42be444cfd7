package action

import (
	"github.com/louisbranch/dragondice/internal/services/engine/domain/dice"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/terrain"
)

// Stores is what the engine reads to build a roll.
type Stores interface {
	game.ArmyStore
	game.TerrainStore
}

// Engine resolves rolls against the current board and ledger.
type Engine struct {
	stores Stores
	ledger *effects.Ledger
}

// NewEngine returns an engine over stores and ledger.
func NewEngine(stores Stores, ledger *effects.Ledger) *Engine {
	return &Engine{stores: stores, ledger: ledger}
}

// Request describes one submitted roll.
type Request struct {
	Army        game.ArmyID
	Action      game.ActionType
	Dice        dice.Result
	Constraints Constraints
	NoID        bool
}

// Resolve builds the roll context for req, resolves it and buries any minor
// placement whose negative face was consumed.
func (e *Engine) Resolve(req Request) (Outcome, error) {
	army, err := e.stores.Army(req.Army)
	if err != nil {
		return Outcome{}, err
	}
	r := Roll{
		Army:        army,
		Action:      req.Action,
		Dice:        req.Dice,
		Constraints: req.Constraints,
		NoID:        req.NoID,
	}
	if army.Location != game.ReserveArea {
		t, err := e.stores.Terrain(army.Location)
		if err != nil {
			return Outcome{}, err
		}
		r.ControlsEighthFace = t.Face == game.ControlFace && t.Controller == army.Owner()
		r.Minor = e.stores.MinorPlacements(t.Name)
	}
	if e.ledger != nil {
		r.Modifiers = e.ledger.ResolveModifiers(army.Owner(), army.ID, req.Action)
	}

	out := Resolve(r)
	if err := terrain.Bury(e.stores, army.Location, out.Bury); err != nil {
		return Outcome{}, err
	}
	return out, nil
}
