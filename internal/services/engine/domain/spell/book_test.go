package spell

import (
	"testing"

	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

func TestLookupNormalizesNames(t *testing.T) {
	for _, name := range []string{"Wind Walk", "wind_walk", "  WIND WALK "} {
		s, ok := Lookup(name)
		if !ok || s.Key != "WIND_WALK" || s.Cost != 4 {
			t.Fatalf("Lookup(%q) = %+v, %v", name, s, ok)
		}
	}
	if _, ok := Lookup("fireball"); ok {
		t.Fatalf("unknown spell should not resolve")
	}
}

func TestBookIsConsistent(t *testing.T) {
	all := Book()
	if len(all) != len(book) {
		t.Fatalf("book lists %d of %d spells", len(all), len(book))
	}
	for i, s := range all {
		if i > 0 && all[i-1].Key >= s.Key {
			t.Fatalf("book not sorted at %s", s.Key)
		}
		if s.Cost <= 0 || s.Name == "" || s.Target == "" {
			t.Fatalf("incomplete spell %+v", s)
		}
		if len(s.Modifiers) == 0 && s.Damage == 0 && s.Target != TargetOwnDUA {
			t.Fatalf("%s does nothing", s.Key)
		}
	}
}

func TestCastBy(t *testing.T) {
	goblins := game.Army{Location: "Highland", Units: []game.Unit{{ID: "g1", Species: "Goblin", Health: 1, MaxHealth: 1}}}
	reserve := goblins.Clone()
	reserve.Location = game.ReserveArea
	dead := goblins.Clone()
	dead.Units[0].Health = 0

	tests := []struct {
		name  string
		spell string
		army  game.Army
		want  bool
	}{
		{"any species on terrain", "Palsy", goblins, true},
		{"species match", "Decay", goblins, true},
		{"species mismatch", "Evil Eye", goblins, false},
		{"species dead", "Decay", dead, false},
		{"reserves allowed", "Stone Skin", reserve, true},
		{"reserves forbidden", "Palsy", reserve, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := Lookup(tt.spell)
			if got := s.CastBy(tt.army); got != tt.want {
				t.Fatalf("CastBy = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaidWith(t *testing.T) {
	available := []game.Element{game.ElementDeath, game.ElementEarth}
	palsy, _ := Lookup("Palsy")
	if el, ok := palsy.PaidWith(game.ElementFire, available); !ok || el != game.ElementDeath {
		t.Fatalf("palsy paid with %s, %v", el, ok)
	}
	hail, _ := Lookup("Hailstorm")
	if _, ok := hail.PaidWith("", available); ok {
		t.Fatalf("air spell paid without air magic")
	}
	raise, _ := Lookup("Resurrect Dead")
	if el, ok := raise.PaidWith(game.ElementEarth, available); !ok || el != game.ElementEarth {
		t.Fatalf("elemental spell paid with %s, %v", el, ok)
	}
	if _, ok := raise.PaidWith("", available); ok {
		t.Fatalf("elemental spell needs a chosen element")
	}
}

func TestEffects(t *testing.T) {
	fiery, _ := Lookup("Fiery Weapon")
	got := fiery.Effects("ana", game.ElementFire, effects.TargetArmy, "ana:home", "ana")
	if len(got) != 2 {
		t.Fatalf("effects = %+v", got)
	}
	want := []effects.Kind{effects.KindMeleeBonus, effects.KindMissileBonus}
	for i, e := range got {
		if e.Kind != want[i] || e.Magnitude != 2 || e.Duration != effects.NextTurnCaster || e.Element != game.ElementFire || e.Description != "Fiery Weapon" {
			t.Fatalf("effect %d = %+v", i, e)
		}
	}

	ash, _ := Lookup("Ash Storm")
	if got := ash.Effects("bo", game.ElementFire, effects.TargetTerrain, "Highland", ""); len(got) != 5 {
		t.Fatalf("ash storm should touch every action, got %d effects", len(got))
	}
}
