// Package terrain evaluates per-terrain control, the eighth-face effects a
// controller earns and the majority-terrain victory condition.
package terrain

import (
	"sort"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// Strength counts living units per player across armies.
func Strength(armies []game.Army) map[string]int {
	out := map[string]int{}
	for _, a := range armies {
		if n := len(a.Alive()); n > 0 {
			out[a.Owner()] += n
		}
	}
	return out
}

// Controller returns the unique strict-maximum player when face is the
// eighth face, or "" otherwise. Ties yield "".
func Controller(face int, strength map[string]int) string {
	if face != game.ControlFace {
		return ""
	}
	best, leader, tied := 0, "", false
	for player, n := range strength {
		switch {
		case n > best:
			best, leader, tied = n, player, false
		case n == best && n > 0:
			tied = true
		}
	}
	if tied {
		return ""
	}
	return leader
}

// VictoryThreshold is the number of terrains that makes a strict majority.
func VictoryThreshold(total int) int {
	return total/2 + 1
}

// CheckVictory returns the player controlling a strict majority of terrains.
func CheckVictory(terrains []game.Terrain) (string, bool) {
	if len(terrains) == 0 {
		return "", false
	}
	held := map[string]int{}
	for _, t := range terrains {
		if t.Controller != "" {
			held[t.Controller]++
		}
	}
	threshold := VictoryThreshold(len(terrains))
	players := make([]string, 0, len(held))
	for p := range held {
		players = append(players, p)
	}
	sort.Strings(players)
	for _, p := range players {
		if held[p] >= threshold {
			return p, true
		}
	}
	return "", false
}

// Stores is what the evaluator reads and writes.
type Stores interface {
	game.TerrainStore
	game.ArmyStore
}

// Evaluator keeps terrain controllers current.
type Evaluator struct {
	stores Stores
	ledger *effects.Ledger
}

// NewEvaluator returns an evaluator. ledger may be nil when no effects are
// tracked.
func NewEvaluator(stores Stores, ledger *effects.Ledger) *Evaluator {
	return &Evaluator{stores: stores, ledger: ledger}
}

// Change records a terrain whose controller moved.
type Change struct {
	Terrain string
	From    string
	To      string
}

// Evaluate recomputes every controller and returns the terrains that changed.
func (e *Evaluator) Evaluate() ([]Change, error) {
	var changes []Change
	for _, t := range e.stores.Terrains() {
		next := Controller(t.Face, Strength(e.stores.ArmiesAt(t.Name)))
		if next == t.Controller {
			continue
		}
		changes = append(changes, Change{Terrain: t.Name, From: t.Controller, To: next})
		t.Controller = next
		if err := e.stores.PutTerrain(t); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

// Controlled returns the terrains player currently controls.
func (e *Evaluator) Controlled(player string) []game.Terrain {
	var out []game.Terrain
	for _, t := range e.stores.Terrains() {
		if t.Controller == player && player != "" {
			out = append(out, t)
		}
	}
	return out
}

// Victory checks the stored controllers for a majority holder.
func (e *Evaluator) Victory() (string, bool) {
	return CheckVictory(e.stores.Terrains())
}

// Turn rotates the terrain die by delta (+1 up, -1 down). Effects attached
// to the terrain end with the old face and are returned.
func (e *Evaluator) Turn(name string, delta int) (game.Terrain, []effects.Effect, error) {
	if delta != 1 && delta != -1 {
		return game.Terrain{}, nil, apperrors.WithMetadata(apperrors.CodeDirectionInvalid, "terrain turns one face at a time", apperrors.Field("direction", name))
	}
	t, err := e.stores.Terrain(name)
	if err != nil {
		return game.Terrain{}, nil, err
	}
	t.Face = game.StepFace(t.Face, delta)
	t.Controller = Controller(t.Face, Strength(e.stores.ArmiesAt(t.Name)))
	if err := e.stores.PutTerrain(t); err != nil {
		return game.Terrain{}, nil, err
	}
	var removed []effects.Effect
	if e.ledger != nil {
		removed = e.ledger.RemoveForTerrain(name)
	}
	return t, removed, nil
}
