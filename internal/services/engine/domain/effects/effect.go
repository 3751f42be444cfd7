// Package effects keeps the ledger of time-scoped modifiers created by
// spells, SAIs, dragon breath and terrain effects.
package effects

import (
	"fmt"

	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// TargetType is what an effect attaches to.
type TargetType string

const (
	TargetArmy    TargetType = "ARMY"
	TargetTerrain TargetType = "TERRAIN"
	TargetPlayer  TargetType = "PLAYER"
)

// DurationType controls when an effect expires.
type DurationType string

const (
	NextTurnCaster DurationType = "NEXT_TURN_CASTER"
	NextTurnTarget DurationType = "NEXT_TURN_TARGET"
	EndOfTurn      DurationType = "END_OF_TURN"
	Permanent      DurationType = "PERMANENT"
	CounterBased   DurationType = "COUNTER_BASED"
)

// Kind is the structured modifier an effect carries.
type Kind string

const (
	KindMeleeBonus    Kind = "MELEE_BONUS"
	KindMissileBonus  Kind = "MISSILE_BONUS"
	KindMagicBonus    Kind = "MAGIC_BONUS"
	KindSaveBonus     Kind = "SAVE_BONUS"
	KindManeuverBonus Kind = "MANEUVER_BONUS"
	// KindHalveResults and KindDoubleResults apply to Effect.Action, or to
	// every action when Action is empty.
	KindHalveResults    Kind = "HALVE_RESULTS"
	KindDoubleResults   Kind = "DOUBLE_RESULTS"
	KindIgnoreID        Kind = "IGNORE_ID"
	KindPreventManeuver Kind = "PREVENT_MANEUVER"
	// Terrain eighth-face effects that last until the terrain face changes.
	KindConvertMagic       Kind = "CONVERT_MAGIC"
	KindDeathMagicImmunity Kind = "DEATH_MAGIC_IMMUNITY"
	KindVortexReroll       Kind = "VORTEX_REROLL"
	KindEmulateTerrain     Kind = "EMULATE_TERRAIN"
)

var bonusAction = map[Kind]game.ActionType{
	KindMeleeBonus:    game.ActionMelee,
	KindMissileBonus:  game.ActionMissile,
	KindMagicBonus:    game.ActionMagic,
	KindSaveBonus:     game.ActionSave,
	KindManeuverBonus: game.ActionManeuver,
}

// BonusKind returns the bonus kind that adds results to action.
func BonusKind(action game.ActionType) (Kind, bool) {
	for k, a := range bonusAction {
		if a == action {
			return k, true
		}
	}
	return "", false
}

// Effect is one ledger entry.
type Effect struct {
	ID          string
	Kind        Kind
	Description string
	Source      string
	TargetType  TargetType
	// TargetID is an army id ("player:type"), terrain name or player name.
	TargetID      string
	Duration      DurationType
	DurationValue int
	Caster        string
	// Affected defaults to Caster when empty.
	Affected  string
	Magnitude int
	// Action scopes halve/double kinds; empty means every action.
	Action game.ActionType
	// Detail carries kind-specific data such as the emulated terrain face.
	Detail string
	// Element is the magic that created the effect, empty for non-spells.
	Element game.Element
}

func (e Effect) validate() error {
	switch {
	case e.Kind == "":
		return fmt.Errorf("kind")
	case e.TargetID == "":
		return fmt.Errorf("target_id")
	case e.Caster == "":
		return fmt.Errorf("caster")
	}
	switch e.TargetType {
	case TargetArmy, TargetTerrain, TargetPlayer:
	default:
		return fmt.Errorf("target_type")
	}
	switch e.Duration {
	case NextTurnCaster, NextTurnTarget, EndOfTurn, Permanent:
	case CounterBased:
		if e.DurationValue <= 0 {
			return fmt.Errorf("duration_value")
		}
	default:
		return fmt.Errorf("duration")
	}
	return nil
}

// Display renders the effect for a status list.
func (e Effect) Display() string {
	var until string
	switch e.Duration {
	case NextTurnCaster:
		until = fmt.Sprintf("until %s's turn", e.Caster)
	case NextTurnTarget:
		until = fmt.Sprintf("until %s's turn", e.Affected)
	case CounterBased:
		until = fmt.Sprintf("%d turns left", e.DurationValue)
	case Permanent:
		until = "permanent"
	case EndOfTurn:
		until = "end of turn"
	}
	return fmt.Sprintf("%s on %s (%s) [by %s]", e.Description, e.TargetID, until, e.Caster)
}

// Modifiers is the aggregate of every active effect matching one roll.
type Modifiers struct {
	Bonus           int
	Halve           bool
	Double          bool
	IgnoreID        bool
	PreventManeuver bool
	ConvertMagic    []game.Element
	VortexReroll    bool
}

// Apply adds the bonus, then halves (floor) or doubles. When both flags are
// set they cancel and neither applies. Results never go below zero.
func (m Modifiers) Apply(n int) int {
	n += m.Bonus
	if n < 0 {
		n = 0
	}
	switch {
	case m.Halve && m.Double:
	case m.Halve:
		n /= 2
	case m.Double:
		n *= 2
	}
	return n
}
