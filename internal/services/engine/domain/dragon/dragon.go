// Package dragon resolves dragon attacks: who each dragon targets, what its
// die faces do, breath effects and when a dragon dies.
package dragon

import (
	"slices"

	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// Category is the targeting class derived from a dragon's elements.
type Category string

const (
	Elemental   Category = "Elemental"
	Hybrid      Category = "Hybrid"
	Ivory       Category = "Ivory"
	IvoryHybrid Category = "Ivory Hybrid"
	White       Category = "White"
)

// CategoryOf classifies an element set.
func CategoryOf(elements []game.Element) Category {
	switch {
	case len(elements) == 0:
		return Ivory
	case len(elements) == 1:
		switch elements[0] {
		case game.ElementWhite:
			return White
		case game.ElementIvory:
			return Ivory
		}
		return Elemental
	case len(elements) == 2:
		if slices.Contains(elements, game.ElementIvory) {
			return IvoryHybrid
		}
		return Hybrid
	}
	return White
}

// IsWhite reports whether d is a White dragon.
func IsWhite(d game.Dragon) bool {
	return CategoryOf(d.Elements) == White
}

type rule int

const (
	never rule = iota
	always
	unlessShares
	unlessSame
)

// matrix[attacker][defender] decides dragon-on-dragon attacks.
var matrix = map[Category]map[Category]rule{
	Elemental: {
		Elemental:   unlessShares,
		Hybrid:      always,
		Ivory:       never,
		IvoryHybrid: unlessShares,
		White:       always,
	},
	Hybrid: {
		Elemental:   always,
		Hybrid:      unlessSame,
		Ivory:       never,
		IvoryHybrid: unlessShares,
		White:       always,
	},
	White: {
		Elemental:   always,
		Hybrid:      always,
		Ivory:       never,
		IvoryHybrid: always,
		White:       never,
	},
}

// WillAttack reports whether attacker attacks defender.
func WillAttack(attacker, defender game.Dragon) bool {
	switch matrix[CategoryOf(attacker.Elements)][CategoryOf(defender.Elements)] {
	case always:
		return true
	case unlessShares:
		return !game.SharesElement(attacker.Elements, defender.Elements)
	case unlessSame:
		return !game.SameElements(attacker.Elements, defender.Elements)
	}
	return false
}

// TargetKind says what a dragon attacks.
type TargetKind string

const (
	TargetNone   TargetKind = "none"
	TargetDragon TargetKind = "dragon"
	TargetArmy   TargetKind = "army"
)

// Target is a dragon's selected target.
type Target struct {
	Kind   TargetKind
	Dragon game.Dragon
	Army   game.ArmyID
}

// SelectTarget tests every other dragon in present before falling back to
// army. Every category attacks an army when no dragon qualifies; a zero
// army id means there is no army to attack.
func SelectTarget(attacker game.Dragon, present []game.Dragon, army game.ArmyID) Target {
	for _, d := range present {
		if d.ID == attacker.ID {
			continue
		}
		if WillAttack(attacker, d) {
			return Target{Kind: TargetDragon, Dragon: d}
		}
	}
	if army.IsZero() {
		return Target{Kind: TargetNone}
	}
	return Target{Kind: TargetArmy, Army: army}
}

// DeathThreshold is the effective damage that kills d.
func DeathThreshold(d game.Dragon) int {
	if IsWhite(d) {
		return 10
	}
	return 5
}

// EffectiveDamage doubles damage against a vulnerable dragon.
func EffectiveDamage(damage int, vulnerable bool) int {
	if vulnerable {
		return damage * 2
	}
	return damage
}

// Killed reports whether damage kills d.
func Killed(d game.Dragon, damage int, vulnerable bool) bool {
	return EffectiveDamage(damage, vulnerable) >= DeathThreshold(d)
}
