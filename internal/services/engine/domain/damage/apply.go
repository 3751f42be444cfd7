package damage

import (
	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// Stores is what applying damage reads and writes.
type Stores interface {
	game.ArmyStore
	game.AreaStore
}

// Outcome reports the army after damage and the units that died.
type Outcome struct {
	Army   game.Army
	Killed []game.Unit
	Dealt  int
}

// Apply subtracts each allocation from its unit. Units reaching zero health
// leave the army and are appended to the owner's DUA in the same step. The
// whole allocation is validated before anything is written.
func Apply(stores Stores, armyID game.ArmyID, allocs []Allocation) (Outcome, error) {
	army, err := stores.Army(armyID)
	if err != nil {
		return Outcome{}, err
	}
	areas, err := stores.Areas(armyID.Player)
	if err != nil {
		return Outcome{}, err
	}

	byUnit := map[string]int{}
	for _, a := range allocs {
		u, _, ok := army.Unit(a.UnitID)
		if !ok {
			return Outcome{}, apperrors.WithMetadata(apperrors.CodeUnitNotFound, "allocation names unknown unit", apperrors.Field("unit_id", a.UnitID))
		}
		if a.Damage < 0 {
			return Outcome{}, apperrors.WithMetadata(apperrors.CodeAllocationInvalid, "allocation is negative", apperrors.Field("damage", a.UnitID))
		}
		byUnit[a.UnitID] += a.Damage
		if byUnit[a.UnitID] > u.Health {
			return Outcome{}, apperrors.WithMetadata(apperrors.CodeNegativeHealth, "damage would drop health below zero", apperrors.Field("damage", a.UnitID))
		}
	}

	out := Outcome{}
	survivors := make([]game.Unit, 0, len(army.Units))
	for _, u := range army.Units {
		d := byUnit[u.ID]
		u.Health -= d
		out.Dealt += d
		if u.Health == 0 {
			out.Killed = append(out.Killed, u)
			areas.DUA = append(areas.DUA, u)
			continue
		}
		survivors = append(survivors, u)
	}
	army.Units = survivors
	out.Army = army

	if err := stores.PutArmy(army); err != nil {
		return Outcome{}, err
	}
	if len(out.Killed) > 0 {
		if err := stores.PutAreas(armyID.Player, areas); err != nil {
			return Outcome{}, err
		}
	}
	return out, nil
}

// Kill removes the given units from the army outright, sending them to the
// DUA. It serves effects that slay by health-worth rather than damage.
func Kill(stores Stores, armyID game.ArmyID, unitIDs []string) (Outcome, error) {
	army, err := stores.Army(armyID)
	if err != nil {
		return Outcome{}, err
	}
	allocs := make([]Allocation, 0, len(unitIDs))
	for _, unitID := range unitIDs {
		u, _, ok := army.Unit(unitID)
		if !ok {
			return Outcome{}, apperrors.WithMetadata(apperrors.CodeUnitNotFound, "unit not in army", apperrors.Field("unit_id", unitID))
		}
		allocs = append(allocs, Allocation{UnitID: unitID, Damage: u.Health})
	}
	return Apply(stores, armyID, allocs)
}

// KillHealthWorth slays up to worth health of units, weakest first, without
// splitting a unit: a unit is only taken when its whole health fits.
func KillHealthWorth(stores Stores, armyID game.ArmyID, worth int) (Outcome, error) {
	army, err := stores.Army(armyID)
	if err != nil {
		return Outcome{}, err
	}
	alive := army.Alive()
	order, _ := Allocate(alive, army.TotalHealth(), WeakestFirst)
	var ids []string
	for _, a := range order {
		if a.Damage > worth {
			break
		}
		worth -= a.Damage
		ids = append(ids, a.UnitID)
	}
	return Kill(stores, armyID, ids)
}
