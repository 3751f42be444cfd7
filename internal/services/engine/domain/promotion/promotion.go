// Package promotion exchanges army units for same-species units one health
// larger from the DUA or, for Dragonkin, the Summoning Pool.
package promotion

import (
	"strings"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// Source names where a promotion candidate comes from.
type Source string

const (
	SourceDUA  Source = "DUA"
	SourcePool Source = "SUMMONING_POOL"
)

// Option pairs an army unit with a candidate one health larger.
type Option struct {
	Unit      game.Unit
	Candidate game.Unit
	Source    Source
}

// Result lists what an executed promotion moved.
type Result struct {
	Promoted []game.Unit
	// Returned holds displaced army units, now in the DUA or Pool.
	Returned []game.Unit
	FromDUA  []game.Unit
	FromPool []game.Unit
}

func (r *Result) merge(o Result) {
	r.Promoted = append(r.Promoted, o.Promoted...)
	r.Returned = append(r.Returned, o.Returned...)
	r.FromDUA = append(r.FromDUA, o.FromDUA...)
	r.FromPool = append(r.FromPool, o.FromPool...)
}

// Stores is what promotion reads and writes.
type Stores interface {
	game.ArmyStore
	game.AreaStore
}

// Engine finds and executes promotions.
type Engine struct {
	stores Stores
}

// New returns an engine over stores.
func New(stores Stores) *Engine {
	return &Engine{stores: stores}
}

func isDragonkin(u game.Unit) bool {
	return strings.EqualFold(u.Species, game.SpeciesDragonkin)
}

// Options lists every promotion available to army given the owner's areas.
// Candidates match species and have MaxHealth exactly one above the unit's.
func Options(army game.Army, areas game.Areas) []Option {
	var out []Option
	for _, u := range army.Alive() {
		for _, c := range areas.DUA {
			if matches(u, c) {
				out = append(out, Option{Unit: u, Candidate: c, Source: SourceDUA})
			}
		}
		if !isDragonkin(u) {
			continue
		}
		for _, c := range areas.Pool {
			if matches(u, c) {
				out = append(out, Option{Unit: u, Candidate: c, Source: SourcePool})
			}
		}
	}
	return out
}

func matches(u, candidate game.Unit) bool {
	return u.Species == candidate.Species && candidate.MaxHealth == u.MaxHealth+1
}

// Options returns the promotions available to armyID.
func (e *Engine) Options(armyID game.ArmyID) ([]Option, error) {
	army, err := e.stores.Army(armyID)
	if err != nil {
		return nil, err
	}
	areas, err := e.stores.Areas(armyID.Player)
	if err != nil {
		return nil, err
	}
	return Options(army, areas), nil
}

// ExecuteSingle promotes unitID in armyID using candidateID.
func (e *Engine) ExecuteSingle(armyID game.ArmyID, unitID, candidateID string) (Result, error) {
	if unitID == "" {
		return Result{}, apperrors.WithMetadata(apperrors.CodeFieldRequired, "unit id is required", apperrors.Field("unit_id", armyID.String()))
	}
	if candidateID == "" {
		return Result{}, apperrors.WithMetadata(apperrors.CodeFieldRequired, "candidate id is required", apperrors.Field("candidate_id", armyID.String()))
	}
	army, err := e.stores.Army(armyID)
	if err != nil {
		return Result{}, err
	}
	areas, err := e.stores.Areas(armyID.Player)
	if err != nil {
		return Result{}, err
	}
	if _, _, ok := army.Unit(unitID); !ok {
		return Result{}, apperrors.WithMetadata(apperrors.CodeUnitNotFound, "unit not in army", apperrors.Field("unit_id", unitID))
	}

	for _, opt := range Options(army, areas) {
		if opt.Unit.ID != unitID || opt.Candidate.ID != candidateID {
			continue
		}
		res := exchange(&army, &areas, opt)
		if err := e.save(army, areas); err != nil {
			return Result{}, err
		}
		return res, nil
	}
	return Result{}, apperrors.WithMetadata(apperrors.CodePromotionUnavailable,
		"candidate "+candidateID+" cannot promote "+unitID, apperrors.Field("candidate_id", candidateID))
}

// ExecuteMass promotes as many units as possible, each at most once.
// limit caps the number of promotions; zero or less means no cap.
func (e *Engine) ExecuteMass(armyID game.ArmyID, limit int) (Result, error) {
	army, err := e.stores.Army(armyID)
	if err != nil {
		return Result{}, err
	}
	areas, err := e.stores.Areas(armyID.Player)
	if err != nil {
		return Result{}, err
	}

	var res Result
	done := map[string]bool{}
	for limit <= 0 || len(res.Promoted) < limit {
		var next *Option
		for _, opt := range Options(army, areas) {
			if !done[opt.Unit.ID] {
				next = &opt
				break
			}
		}
		if next == nil {
			break
		}
		step := exchange(&army, &areas, *next)
		done[step.Promoted[0].ID] = true
		res.merge(step)
	}

	if len(res.Promoted) == 0 {
		return res, nil
	}
	if err := e.save(army, areas); err != nil {
		return Result{}, err
	}
	return res, nil
}

// exchange swaps opt.Unit out of army for opt.Candidate at full health.
func exchange(army *game.Army, areas *game.Areas, opt Option) Result {
	promoted := opt.Candidate
	promoted.Health = promoted.MaxHealth

	_, idx, _ := army.Unit(opt.Unit.ID)
	army.Units[idx] = promoted

	displaced := opt.Unit
	res := Result{Promoted: []game.Unit{promoted}}
	switch opt.Source {
	case SourcePool:
		areas.Pool = without(areas.Pool, opt.Candidate.ID)
		displaced.Health = displaced.MaxHealth
		areas.Pool = append(areas.Pool, displaced)
		res.FromPool = []game.Unit{opt.Candidate}
	default:
		areas.DUA = without(areas.DUA, opt.Candidate.ID)
		displaced.Health = 0
		areas.DUA = append(areas.DUA, displaced)
		res.FromDUA = []game.Unit{opt.Candidate}
	}
	res.Returned = []game.Unit{displaced}
	return res
}

func without(units []game.Unit, unitID string) []game.Unit {
	out := make([]game.Unit, 0, len(units))
	for _, u := range units {
		if u.ID != unitID {
			out = append(out, u)
		}
	}
	return out
}

func (e *Engine) save(army game.Army, areas game.Areas) error {
	if err := e.stores.PutArmy(army); err != nil {
		return err
	}
	return e.stores.PutAreas(army.ID.Player, areas)
}
