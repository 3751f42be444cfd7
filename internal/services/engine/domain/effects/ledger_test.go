package effects

import (
	"testing"

	"pgregory.net/rapid"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/platform/id"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

type fakeArmies map[game.ArmyID]game.Army

func (f fakeArmies) Army(armyID game.ArmyID) (game.Army, error) {
	a, ok := f[armyID]
	if !ok {
		return game.Army{}, apperrors.New(apperrors.CodeArmyNotFound, "missing")
	}
	return a, nil
}

var (
	anaHome = game.ArmyID{Player: "ana", Type: game.ArmyHome}
	boHorde = game.ArmyID{Player: "bo", Type: game.ArmyHorde}
)

func newTestLedger() *Ledger {
	armies := fakeArmies{
		anaHome: {ID: anaHome, Location: "Highland"},
		boHorde: {ID: boHorde, Location: "Coastland"},
	}
	return NewLedger(&MemoryStore{}, armies, id.Sequence("eff"))
}

func mustAdd(t *testing.T, l *Ledger, e Effect) Effect {
	t.Helper()
	added, err := l.Add(e)
	if err != nil {
		t.Fatalf("add effect: %v", err)
	}
	return added
}

func TestAddValidatesAndDefaultsAffected(t *testing.T) {
	l := newTestLedger()
	e := mustAdd(t, l, Effect{Kind: KindMeleeBonus, TargetType: TargetPlayer, TargetID: "ana", Duration: Permanent, Caster: "ana", Magnitude: 1})
	if e.ID != "eff-1" {
		t.Fatalf("id = %q", e.ID)
	}
	if e.Affected != "ana" {
		t.Fatalf("affected = %q, want caster", e.Affected)
	}

	bad := []Effect{
		{TargetType: TargetPlayer, TargetID: "ana", Duration: Permanent, Caster: "ana"},
		{Kind: KindIgnoreID, TargetType: "WORLD", TargetID: "ana", Duration: Permanent, Caster: "ana"},
		{Kind: KindIgnoreID, TargetType: TargetPlayer, TargetID: "ana", Duration: CounterBased, Caster: "ana"},
		{Kind: KindIgnoreID, TargetType: TargetPlayer, TargetID: "ana", Duration: Permanent},
	}
	for i, e := range bad {
		if _, err := l.Add(e); !apperrors.HasClass(err, apperrors.CodeValidation) {
			t.Fatalf("case %d: err = %v, want validation", i, err)
		}
	}
	if got := len(l.All()); got != 1 {
		t.Fatalf("ledger size = %d, want 1", got)
	}
}

func TestExpireForActingPlayer(t *testing.T) {
	l := newTestLedger()
	caster := mustAdd(t, l, Effect{Kind: KindIgnoreID, TargetType: TargetArmy, TargetID: boHorde.String(), Duration: NextTurnCaster, Caster: "ana", Affected: "bo"})
	target := mustAdd(t, l, Effect{Kind: KindHalveResults, TargetType: TargetArmy, TargetID: boHorde.String(), Duration: NextTurnTarget, Caster: "ana", Affected: "bo"})
	endOfTurn := mustAdd(t, l, Effect{Kind: KindSaveBonus, TargetType: TargetPlayer, TargetID: "ana", Duration: EndOfTurn, Caster: "ana", Magnitude: 2})
	counter := mustAdd(t, l, Effect{Kind: KindMagicBonus, TargetType: TargetPlayer, TargetID: "ana", Duration: CounterBased, DurationValue: 2, Caster: "ana", Magnitude: 1})
	permanent := mustAdd(t, l, Effect{Kind: KindMeleeBonus, TargetType: TargetPlayer, TargetID: "ana", Duration: Permanent, Caster: "ana", Magnitude: 1})

	expired := l.ExpireForActingPlayer("bo")
	if !sameIDs(expired, target, endOfTurn) {
		t.Fatalf("bo checkpoint expired %v", ids(expired))
	}

	expired = l.ExpireForActingPlayer("ana")
	if !sameIDs(expired, caster, counter) {
		t.Fatalf("ana checkpoint expired %v", ids(expired))
	}

	remaining := l.All()
	if len(remaining) != 1 || remaining[0].ID != permanent.ID {
		t.Fatalf("remaining = %v", ids(remaining))
	}
}

func TestNextTurnCasterExpiresExactlyOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		players := []string{"ana", "bo", "cy"}
		l := NewLedger(&MemoryStore{}, nil, id.Sequence("eff"))
		caster := rapid.SampledFrom(players).Draw(t, "caster")
		if _, err := l.Add(Effect{Kind: KindIgnoreID, TargetType: TargetPlayer, TargetID: "x", Duration: NextTurnCaster, Caster: caster}); err != nil {
			t.Fatalf("add: %v", err)
		}

		sequence := rapid.SliceOfN(rapid.SampledFrom(players), 1, 12).Draw(t, "checkpoints")
		expiredAt := -1
		for i, player := range sequence {
			expired := l.ExpireForActingPlayer(player)
			if len(expired) == 0 {
				continue
			}
			if expiredAt >= 0 {
				t.Fatalf("expired twice at %d and %d", expiredAt, i)
			}
			if player != caster {
				t.Fatalf("expired on %s's checkpoint, caster %s", player, caster)
			}
			expiredAt = i
		}
		for i := 0; i < len(sequence); i++ {
			if sequence[i] == caster {
				if expiredAt != i {
					t.Fatalf("expired at %d, want first caster checkpoint %d", expiredAt, i)
				}
				return
			}
		}
		if expiredAt != -1 {
			t.Fatalf("expired without a caster checkpoint")
		}
	})
}

func TestResolveModifiers(t *testing.T) {
	l := newTestLedger()
	mustAdd(t, l, Effect{Kind: KindMeleeBonus, TargetType: TargetArmy, TargetID: anaHome.String(), Duration: Permanent, Caster: "ana", Magnitude: 2})
	mustAdd(t, l, Effect{Kind: KindMeleeBonus, TargetType: TargetPlayer, TargetID: "ana", Duration: Permanent, Caster: "ana", Magnitude: 1})
	mustAdd(t, l, Effect{Kind: KindMeleeBonus, TargetType: TargetTerrain, TargetID: "Highland", Duration: Permanent, Caster: "bo", Magnitude: -3})
	mustAdd(t, l, Effect{Kind: KindHalveResults, Action: game.ActionMissile, TargetType: TargetArmy, TargetID: anaHome.String(), Duration: Permanent, Caster: "bo", Affected: "ana"})
	mustAdd(t, l, Effect{Kind: KindMissileBonus, TargetType: TargetArmy, TargetID: boHorde.String(), Duration: Permanent, Caster: "bo", Magnitude: 5})
	mustAdd(t, l, Effect{Kind: KindConvertMagic, Detail: "FIRE,EARTH", TargetType: TargetTerrain, TargetID: "Highland", Duration: Permanent, Caster: "ana"})

	melee := l.ResolveModifiers("ana", anaHome, game.ActionMelee)
	if melee.Bonus != 0 || melee.Halve {
		t.Fatalf("melee modifiers = %+v, want bonus 0 no halve", melee)
	}
	missile := l.ResolveModifiers("ana", anaHome, game.ActionMissile)
	if !missile.Halve || missile.Bonus != 0 {
		t.Fatalf("missile modifiers = %+v", missile)
	}
	magic := l.ResolveModifiers("ana", anaHome, game.ActionMagic)
	if len(magic.ConvertMagic) != 2 {
		t.Fatalf("magic conversion = %v", magic.ConvertMagic)
	}
	boMagic := l.ResolveModifiers("bo", boHorde, game.ActionMagic)
	if len(boMagic.ConvertMagic) != 0 {
		t.Fatalf("standing stones leaked to non-controller: %v", boMagic.ConvertMagic)
	}
}

func TestModifiersApply(t *testing.T) {
	tests := []struct {
		name string
		mods Modifiers
		in   int
		want int
	}{
		{"none", Modifiers{}, 5, 5},
		{"bonus then halve floors", Modifiers{Bonus: 2, Halve: true}, 5, 3},
		{"bonus then double", Modifiers{Bonus: 1, Double: true}, 2, 6},
		{"halve and double cancel", Modifiers{Halve: true, Double: true}, 5, 5},
		{"negative clamps", Modifiers{Bonus: -9}, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mods.Apply(tt.in); got != tt.want {
				t.Fatalf("Apply(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestRemoveAndTerrainCleanup(t *testing.T) {
	l := newTestLedger()
	a := mustAdd(t, l, Effect{Kind: KindVortexReroll, TargetType: TargetTerrain, TargetID: "Highland", Duration: Permanent, Caster: "ana"})
	b := mustAdd(t, l, Effect{Kind: KindIgnoreID, TargetType: TargetArmy, TargetID: boHorde.String(), Duration: Permanent, Caster: "ana", Affected: "bo"})

	if got := l.OnTerrain("Highland", KindVortexReroll); len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("on terrain = %v", ids(got))
	}
	if removed := l.RemoveForTerrain("Highland"); len(removed) != 1 {
		t.Fatalf("removed = %v", ids(removed))
	}
	if _, err := l.Remove("nope"); apperrors.CodeOf(err) != apperrors.CodeEffectNotFound {
		t.Fatalf("err = %v", err)
	}
	if _, err := l.Remove(b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := l.Displayable(); len(got) != 1 || got[0] != "No active effects" {
		t.Fatalf("displayable = %v", got)
	}
}

func ids(effects []Effect) []string {
	out := make([]string, len(effects))
	for i, e := range effects {
		out[i] = e.ID
	}
	return out
}

func sameIDs(got []Effect, want ...Effect) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].ID != want[i].ID {
			return false
		}
	}
	return true
}

func TestDeathMagicImmunity(t *testing.T) {
	l := newTestLedger()
	mustAdd(t, l, Effect{Kind: KindDeathMagicImmunity, TargetType: TargetTerrain, TargetID: "Highland", Duration: Permanent, Caster: "ana"})
	mustAdd(t, l, Effect{Kind: KindMeleeBonus, Element: game.ElementDeath, TargetType: TargetArmy, TargetID: anaHome.String(), Duration: NextTurnCaster, Caster: "bo", Affected: "ana", Magnitude: -2})
	mustAdd(t, l, Effect{Kind: KindMeleeBonus, Element: game.ElementFire, TargetType: TargetArmy, TargetID: anaHome.String(), Duration: NextTurnCaster, Caster: "bo", Affected: "ana", Magnitude: -1})
	mustAdd(t, l, Effect{Kind: KindMissileBonus, Element: game.ElementDeath, TargetType: TargetArmy, TargetID: boHorde.String(), Duration: NextTurnCaster, Caster: "ana", Affected: "bo", Magnitude: -2})

	if !l.DeathMagicImmune("ana", "Highland") {
		t.Fatalf("ana should be immune at the temple")
	}
	if l.DeathMagicImmune("bo", "Highland") || l.DeathMagicImmune("ana", "Coastland") || l.DeathMagicImmune("ana", game.ReserveArea) {
		t.Fatalf("immunity leaked past the controller's temple")
	}
	if got := l.ResolveModifiers("ana", anaHome, game.ActionMelee).Bonus; got != -1 {
		t.Fatalf("ana melee bonus = %d, want only the fire penalty", got)
	}
	if got := l.ResolveModifiers("bo", boHorde, game.ActionMissile).Bonus; got != -2 {
		t.Fatalf("bo missile bonus = %d, want the death penalty", got)
	}
}

func TestBonusKind(t *testing.T) {
	for _, at := range []game.ActionType{game.ActionMelee, game.ActionMissile, game.ActionMagic, game.ActionSave, game.ActionManeuver} {
		k, ok := BonusKind(at)
		if !ok || bonusAction[k] != at {
			t.Fatalf("BonusKind(%s) = %s, %v", at, k, ok)
		}
	}
	if _, ok := BonusKind("DANCE"); ok {
		t.Fatalf("unknown action should have no bonus kind")
	}
}
