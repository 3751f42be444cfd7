// Package damage distributes incoming damage across an army's units and
// moves units that die into their owner's DUA.
package damage

import (
	"fmt"
	"sort"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// Strategy selects how damage is spread.
type Strategy string

const (
	WeakestFirst   Strategy = "weakest_first"
	StrongestFirst Strategy = "strongest_first"
	Equal          Strategy = "equal"
)

// ParseStrategy validates a strategy name. Empty selects weakest-first.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return WeakestFirst, nil
	case WeakestFirst, StrongestFirst, Equal:
		return Strategy(s), nil
	}
	return "", apperrors.WithMetadata(apperrors.CodeStrategyInvalid, fmt.Sprintf("unknown damage strategy %q", s),
		map[string]string{"Field": "strategy", "Value": s})
}

// Allocation assigns damage to one unit.
type Allocation struct {
	UnitID string
	Damage int
}

// Sum totals a set of allocations.
func Sum(allocs []Allocation) int {
	total := 0
	for _, a := range allocs {
		total += a.Damage
	}
	return total
}

// Allocate spreads amount over the living units using strategy. Each unit
// receives at most its current health, so the total allocated is
// min(amount, total health). Units that receive nothing are omitted.
func Allocate(units []game.Unit, amount int, strategy Strategy) ([]Allocation, error) {
	if amount < 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeAllocationInvalid, "damage amount is negative", apperrors.Field("amount", ""))
	}
	alive := make([]game.Unit, 0, len(units))
	for _, u := range units {
		if u.Alive() {
			alive = append(alive, u)
		}
	}

	switch strategy {
	case WeakestFirst:
		sort.SliceStable(alive, func(i, j int) bool { return alive[i].Health < alive[j].Health })
		return fill(alive, amount), nil
	case StrongestFirst:
		sort.SliceStable(alive, func(i, j int) bool { return alive[i].Health > alive[j].Health })
		return fill(alive, amount), nil
	case Equal:
		return spread(alive, amount), nil
	}
	_, err := ParseStrategy(string(strategy))
	return nil, err
}

func fill(units []game.Unit, remaining int) []Allocation {
	var out []Allocation
	for _, u := range units {
		if remaining == 0 {
			break
		}
		d := min(u.Health, remaining)
		out = append(out, Allocation{UnitID: u.ID, Damage: d})
		remaining -= d
	}
	return out
}

// spread gives every unit a base share plus one extra to the first
// remainder units, capped at health, and repeats over units with capacity
// left until the damage or the health runs out.
func spread(units []game.Unit, remaining int) []Allocation {
	given := make([]int, len(units))
	for remaining > 0 {
		var open []int
		for i, u := range units {
			if given[i] < u.Health {
				open = append(open, i)
			}
		}
		if len(open) == 0 {
			break
		}
		base, extra := remaining/len(open), remaining%len(open)
		for n, i := range open {
			share := base
			if n < extra {
				share++
			}
			share = min(share, units[i].Health-given[i])
			given[i] += share
			remaining -= share
		}
	}

	var out []Allocation
	for i, u := range units {
		if given[i] > 0 {
			out = append(out, Allocation{UnitID: u.ID, Damage: given[i]})
		}
	}
	return out
}

// Validate checks a manual allocation against army: every unit exists and is
// alive, no damage is negative or above the unit's health, and the total
// equals min(amount, army health).
func Validate(army game.Army, allocs []Allocation, amount int) error {
	seen := map[string]bool{}
	total := 0
	for _, a := range allocs {
		u, _, ok := army.Unit(a.UnitID)
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeUnitNotFound, "allocation names unknown unit", apperrors.Field("unit_id", a.UnitID))
		}
		if seen[a.UnitID] {
			return apperrors.WithMetadata(apperrors.CodeAllocationInvalid, "unit allocated twice", apperrors.Field("unit_id", a.UnitID))
		}
		seen[a.UnitID] = true
		if a.Damage < 0 {
			return apperrors.WithMetadata(apperrors.CodeAllocationInvalid, "allocation is negative", apperrors.Field("damage", a.UnitID))
		}
		if a.Damage > u.Health {
			return apperrors.WithMetadata(apperrors.CodeNegativeHealth, "allocation exceeds unit health", apperrors.Field("damage", a.UnitID))
		}
		total += a.Damage
	}
	if want := min(amount, army.TotalHealth()); total != want {
		return apperrors.WithMetadata(apperrors.CodeAllocationInvalid,
			fmt.Sprintf("allocated %d, want %d", total, want), apperrors.Field("damage", army.ID.String()))
	}
	return nil
}

// Optimal returns the built-in strategy allocation that kills the most units,
// breaking ties on total damage dealt. Score is kills*10 + damage.
func Optimal(units []game.Unit, amount int) []Allocation {
	var best []Allocation
	bestScore := -1
	for _, s := range []Strategy{WeakestFirst, StrongestFirst, Equal} {
		allocs, err := Allocate(units, amount, s)
		if err != nil {
			continue
		}
		if score := Score(units, allocs); score > bestScore {
			best, bestScore = allocs, score
		}
	}
	return best
}

// Score rates an allocation: ten points per unit killed plus damage dealt.
func Score(units []game.Unit, allocs []Allocation) int {
	health := make(map[string]int, len(units))
	for _, u := range units {
		health[u.ID] = u.Health
	}
	score := 0
	for _, a := range allocs {
		if a.Damage >= health[a.UnitID] && health[a.UnitID] > 0 {
			score += 10
		}
		score += a.Damage
	}
	return score
}
