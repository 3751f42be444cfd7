// Package action turns a parsed roll into results for one action type:
// direct icons, ID conversion, multiplier SAIs, ledger modifiers and minor
// terrain faces, in that order.
package action

import (
	"slices"

	"github.com/louisbranch/dragondice/internal/services/engine/domain/dice"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/terrain"
)

// Flat results granted by single SAIs.
const (
	smiteDamage      = 4
	bullseyeDamage   = 4
	bullseyeManeuver = 4
	magicBoltResults = 4
	chokePerSAI      = 4
)

var actionIcon = map[game.ActionType]dice.Icon{
	game.ActionMelee:    dice.IconMelee,
	game.ActionMissile:  dice.IconMissile,
	game.ActionMagic:    dice.IconMagic,
	game.ActionManeuver: dice.IconManeuver,
	game.ActionSave:     dice.IconSave,
}

// Constraints limit an opposing save roll. They come from melee SAIs.
type Constraints struct {
	// SuppressIDSaves stops ID icons converting to saves.
	SuppressIDSaves bool
	// Choke removes up to this many ID-converted saves.
	Choke int
}

// Roll is everything that shapes one action's result.
type Roll struct {
	Army   game.Army
	Action game.ActionType
	Dice   dice.Result
	// ControlsEighthFace doubles ID contributions.
	ControlsEighthFace bool
	Modifiers          effects.Modifiers
	Minor              []game.MinorPlacement
	// Constraints apply when Action is a save roll.
	Constraints Constraints
	// NoID counts only non-ID results, as for Tower attacks on a reserve army.
	NoID bool
}

// IDClaim records one unit converting an ID icon.
type IDClaim struct {
	UnitID  string
	Results int
}

// Outcome is a resolved action.
type Outcome struct {
	Action         game.ActionType
	Direct         int
	IDContribution int
	IDClaims       []IDClaim
	Multiplier     int
	Total          int
	// Unsavable damage bypasses the defender's saves.
	Unsavable int
	// Constraints bind the defender's save roll against this melee.
	Constraints   Constraints
	Recruit       int
	MagicElements []game.Element
	// Bury lists minor placements consumed by a negative face.
	Bury         []string
	VortexReroll bool
	Warnings     int
}

// Resolve computes the outcome of r. It does not mutate anything.
func Resolve(r Roll) Outcome {
	out := Outcome{Action: r.Action, Multiplier: 1, Warnings: len(r.Dice.Warnings)}
	if r.Action == game.ActionManeuver && r.Modifiers.PreventManeuver {
		return out
	}

	out.Direct = r.Dice.Count(actionIcon[r.Action])
	switch r.Action {
	case game.ActionMagic:
		out.Direct += magicBoltResults * r.Dice.SAICount(dice.SAIMagicBolt)
	case game.ActionManeuver:
		out.Direct += bullseyeManeuver * r.Dice.SAICount(dice.SAIBullseye)
	case game.ActionMelee:
		out.Unsavable = smiteDamage * r.Dice.SAICount(dice.SAISmite)
	case game.ActionMissile:
		out.Unsavable = bullseyeDamage * r.Dice.SAICount(dice.SAIBullseye)
	}

	doubleID, halve, bury := terrain.MinorFor(r.Minor, r.Army.Owner(), r.Action)
	out.IDClaims = claimID(r, doubleID)
	for _, c := range out.IDClaims {
		out.IDContribution += c.Results
	}
	if r.Action == game.ActionSave && r.Constraints.Choke > 0 {
		out.IDContribution = max(0, out.IDContribution-chokePerSAI*r.Constraints.Choke)
	}

	switch {
	case r.Dice.SAICount(dice.SAITripler) > 0:
		out.Multiplier = 3
	case r.Dice.SAICount(dice.SAIDoubler) > 0:
		out.Multiplier = 2
	}

	out.Total = r.Modifiers.Apply((out.Direct + out.IDContribution) * out.Multiplier)
	if halve {
		out.Total /= 2
		out.Bury = bury
	}

	if r.Action == game.ActionMelee {
		out.Constraints = Constraints{
			SuppressIDSaves: r.Dice.SAICount(dice.SAIHypnoticGlare) > 0,
			Choke:           r.Dice.SAICount(dice.SAIChoke),
		}
	}
	out.Recruit = r.Dice.SAICount(dice.SAIRecruit)
	if r.Action == game.ActionMagic {
		out.MagicElements = magicElements(r)
	}
	out.VortexReroll = r.Modifiers.VortexReroll && r.Action != game.ActionManeuver
	return out
}

// claimID gives each ID icon to the first living unit that can convert and
// has not claimed yet. A claim is worth the unit's health.
func claimID(r Roll, doubleID bool) []IDClaim {
	n := r.Dice.Count(dice.IconID)
	if n == 0 || r.NoID || r.Modifiers.IgnoreID {
		return nil
	}
	if r.Action == game.ActionSave && r.Constraints.SuppressIDSaves {
		return nil
	}
	scale := 1
	if r.ControlsEighthFace {
		scale *= 2
	}
	if doubleID {
		scale *= 2
	}
	var claims []IDClaim
	for _, u := range r.Army.Units {
		if len(claims) == n {
			break
		}
		if !u.Alive() || !u.IDConverts {
			continue
		}
		claims = append(claims, IDClaim{UnitID: u.ID, Results: u.Health * scale})
	}
	return claims
}

// magicElements are the elements magic results may be spent as: the
// terrain's when converted by Standing Stones, otherwise the army's own.
func magicElements(r Roll) []game.Element {
	if len(r.Modifiers.ConvertMagic) > 0 {
		return slices.Clone(r.Modifiers.ConvertMagic)
	}
	var out []game.Element
	for _, u := range r.Army.Alive() {
		for _, el := range u.Elements {
			if !slices.Contains(out, el) {
				out = append(out, el)
			}
		}
	}
	return out
}

// Damage is what gets through the defender's saves.
func Damage(hits, saves int) int {
	return max(0, hits-saves)
}

// CounterAttackEligible reports whether the defender may strike back after
// a melee: some hits were saved, the save roll showed melee icons and a
// defending unit survived.
func CounterAttackEligible(hits, damage int, saveRoll dice.Result, survivors int) bool {
	return damage < hits && saveRoll.Count(dice.IconMelee) > 0 && survivors > 0
}
