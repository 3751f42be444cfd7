package damage

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

func units(health ...int) []game.Unit {
	out := make([]game.Unit, len(health))
	for i, h := range health {
		out[i] = game.Unit{ID: fmt.Sprintf("u%d", i+1), Health: h, MaxHealth: max(h, 1)}
	}
	return out
}

func damageOf(allocs []Allocation) map[string]int {
	out := map[string]int{}
	for _, a := range allocs {
		out[a.UnitID] = a.Damage
	}
	return out
}

func TestAllocateStrategies(t *testing.T) {
	tests := []struct {
		name     string
		health   []int
		amount   int
		strategy Strategy
		want     map[string]int
	}{
		{"weakest first", []int{3, 1, 2}, 4, WeakestFirst, map[string]int{"u2": 1, "u3": 2, "u1": 1}},
		{"strongest first", []int{3, 1, 2}, 4, StrongestFirst, map[string]int{"u1": 3, "u3": 1}},
		{"equal with remainder", []int{4, 4, 4}, 7, Equal, map[string]int{"u1": 3, "u2": 2, "u3": 2}},
		{"equal redistributes capped units", []int{1, 4, 4}, 7, Equal, map[string]int{"u1": 1, "u2": 3, "u3": 3}},
		{"overkill caps at health", []int{1, 2}, 10, WeakestFirst, map[string]int{"u1": 1, "u2": 2}},
		{"dead units skipped", []int{0, 2}, 2, Equal, map[string]int{"u2": 2}},
		{"zero damage", []int{2}, 0, StrongestFirst, map[string]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allocs, err := Allocate(units(tt.health...), tt.amount, tt.strategy)
			if err != nil {
				t.Fatalf("allocate: %v", err)
			}
			got := damageOf(allocs)
			if len(got) != len(tt.want) {
				t.Fatalf("allocations = %v, want %v", got, tt.want)
			}
			for id, d := range tt.want {
				if got[id] != d {
					t.Fatalf("allocations = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestAllocateRejectsBadInput(t *testing.T) {
	if _, err := Allocate(units(1), -1, WeakestFirst); !apperrors.HasClass(err, apperrors.CodeValidation) {
		t.Fatalf("negative amount err = %v", err)
	}
	if _, err := Allocate(units(1), 1, "random"); apperrors.CodeOf(err) != apperrors.CodeStrategyInvalid {
		t.Fatalf("bad strategy err = %v", err)
	}
	if s, err := ParseStrategy(""); err != nil || s != WeakestFirst {
		t.Fatalf("default strategy = %q, %v", s, err)
	}
}

func TestAllocationSumProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		health := rapid.SliceOfN(rapid.IntRange(0, 6), 0, 8).Draw(t, "health")
		amount := rapid.IntRange(0, 40).Draw(t, "amount")
		strategy := rapid.SampledFrom([]Strategy{WeakestFirst, StrongestFirst, Equal}).Draw(t, "strategy")

		us := units(health...)
		allocs, err := Allocate(us, amount, strategy)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		total := 0
		for _, h := range health {
			total += h
		}
		if got, want := Sum(allocs), min(amount, total); got != want {
			t.Fatalf("sum = %d, want %d", got, want)
		}
		byID := map[string]int{}
		for _, u := range us {
			byID[u.ID] = u.Health
		}
		for _, a := range allocs {
			if a.Damage <= 0 || a.Damage > byID[a.UnitID] {
				t.Fatalf("allocation %+v outside (0, %d]", a, byID[a.UnitID])
			}
		}
	})
}

func TestValidate(t *testing.T) {
	army := game.Army{ID: game.ArmyID{Player: "ana", Type: game.ArmyHome}, Units: units(2, 3)}
	tests := []struct {
		name   string
		allocs []Allocation
		amount int
		code   apperrors.Code
	}{
		{"exact", []Allocation{{"u1", 2}, {"u2", 1}}, 3, ""},
		{"capped at army health", []Allocation{{"u1", 2}, {"u2", 3}}, 9, ""},
		{"short", []Allocation{{"u1", 1}}, 3, apperrors.CodeAllocationInvalid},
		{"over health", []Allocation{{"u1", 3}}, 3, apperrors.CodeNegativeHealth},
		{"unknown unit", []Allocation{{"u9", 1}}, 1, apperrors.CodeUnitNotFound},
		{"duplicate", []Allocation{{"u1", 1}, {"u1", 1}}, 2, apperrors.CodeAllocationInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(army, tt.allocs, tt.amount)
			if tt.code == "" {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			if apperrors.CodeOf(err) != tt.code {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestOptimalPrefersKills(t *testing.T) {
	// Weakest first kills both 1-health units; strongest first kills none.
	allocs := Optimal(units(1, 1, 4), 2)
	if got := Score(units(1, 1, 4), allocs); got != 22 {
		t.Fatalf("score = %d, want 22 (%v)", got, allocs)
	}
}

func newStore(t *testing.T) *game.Memory {
	t.Helper()
	m := game.NewMemory()
	for _, p := range []string{"ana", "bo"} {
		if err := m.PutPlayer(game.Player{Name: p}); err != nil {
			t.Fatalf("put player: %v", err)
		}
	}
	army := game.Army{ID: game.ArmyID{Player: "bo", Type: game.ArmyHome}, Location: "Swampland", Units: []game.Unit{
		{ID: "b1", Health: 1, MaxHealth: 1},
		{ID: "b2", Health: 3, MaxHealth: 3},
	}}
	if err := m.PutArmy(army); err != nil {
		t.Fatalf("put army: %v", err)
	}
	return m
}

func TestApplyMovesDeadUnitsToDUA(t *testing.T) {
	m := newStore(t)
	armyID := game.ArmyID{Player: "bo", Type: game.ArmyHome}

	out, err := Apply(m, armyID, []Allocation{{"b1", 1}, {"b2", 1}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Dealt != 2 || len(out.Killed) != 1 || out.Killed[0].ID != "b1" {
		t.Fatalf("outcome = %+v", out)
	}
	army, _ := m.Army(armyID)
	if len(army.Units) != 1 || army.Units[0].Health != 2 {
		t.Fatalf("army after damage = %+v", army.Units)
	}
	areas, _ := m.Areas("bo")
	if len(areas.DUA) != 1 || areas.DUA[0].ID != "b1" {
		t.Fatalf("dua = %+v", areas.DUA)
	}
}

func TestApplyRejectsBeforeMutating(t *testing.T) {
	m := newStore(t)
	armyID := game.ArmyID{Player: "bo", Type: game.ArmyHome}

	_, err := Apply(m, armyID, []Allocation{{"b2", 1}, {"b1", 2}})
	if !apperrors.HasClass(err, apperrors.CodeInvariantViolation) {
		t.Fatalf("err = %v, want invariant violation", err)
	}
	army, _ := m.Army(armyID)
	if army.TotalHealth() != 4 {
		t.Fatalf("army mutated: %+v", army.Units)
	}
	if _, err := Apply(m, game.ArmyID{Player: "bo", Type: game.ArmyHorde}, nil); !apperrors.HasClass(err, apperrors.CodeNotFound) {
		t.Fatalf("missing army err = %v", err)
	}
}

func TestKillHealthWorth(t *testing.T) {
	m := newStore(t)
	armyID := game.ArmyID{Player: "bo", Type: game.ArmyHome}

	out, err := KillHealthWorth(m, armyID, 3)
	if err != nil {
		t.Fatalf("kill: %v", err)
	}
	// b1 (1) fits, b2 (3) does not fit in the remaining 2.
	if len(out.Killed) != 1 || out.Killed[0].ID != "b1" {
		t.Fatalf("killed = %+v", out.Killed)
	}
}
