// Package spell holds the spell book and turns paid-for casts into ledger
// effects, damage and resurrections.
package spell

import (
	"slices"
	"strings"

	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// Target is what a spell is aimed at.
type Target string

const (
	TargetOpposingArmy Target = "opposing_army"
	TargetAnyArmy      Target = "any_army"
	TargetTerrain      Target = "terrain"
	// TargetOwnDUA returns units from the caster's DUA to the casting army.
	TargetOwnDUA Target = "own_dua"
)

// Modifier adds (or with a negative amount subtracts) results from one
// action type until the caster's next turn.
type Modifier struct {
	Action game.ActionType
	Amount int
}

// Spell is one entry of the spell book.
type Spell struct {
	Key  string
	Name string
	// Element is empty for elemental spells, which any element may pay for.
	Element game.Element
	Cost    int
	// Species restricts casting to armies with a living unit of it.
	Species   string
	Reserves  bool
	Cantrip   bool
	Target    Target
	Modifiers []Modifier
	// Damage is dealt to the target army, which saves against it unless
	// Unsavable.
	Damage    int
	Unsavable bool
}

// Elemental reports whether magic of any element pays for s.
func (s Spell) Elemental() bool {
	return s.Element == ""
}

func nonManeuver(amount int) []Modifier {
	return []Modifier{
		{Action: game.ActionMelee, Amount: amount},
		{Action: game.ActionMissile, Amount: amount},
		{Action: game.ActionMagic, Amount: amount},
		{Action: game.ActionSave, Amount: amount},
	}
}

var book = map[string]Spell{
	// Air
	"HAILSTORM": {Name: "Hailstorm", Element: game.ElementAir, Cost: 2, Cantrip: true, Target: TargetOpposingArmy, Damage: 1},
	"LIGHTNING": {Name: "Lightning", Element: game.ElementAir, Cost: 3, Target: TargetOpposingArmy, Damage: 2},
	"BLIZZARD":  {Name: "Blizzard", Element: game.ElementAir, Cost: 3, Species: "Coral Elf", Target: TargetTerrain, Modifiers: []Modifier{{game.ActionMelee, -3}}},
	"WIND_WALK": {Name: "Wind Walk", Element: game.ElementAir, Cost: 4, Reserves: true, Target: TargetAnyArmy, Modifiers: []Modifier{{game.ActionManeuver, 4}}},
	"TEMPEST":   {Name: "Tempest", Element: game.ElementAir, Cost: 5, Target: TargetOpposingArmy, Damage: 3},

	// Death
	"PALSY":           {Name: "Palsy", Element: game.ElementDeath, Cost: 2, Cantrip: true, Target: TargetOpposingArmy, Modifiers: nonManeuver(-1)},
	"DECAY":           {Name: "Decay", Element: game.ElementDeath, Cost: 3, Species: "Goblin", Target: TargetOpposingArmy, Modifiers: []Modifier{{game.ActionMelee, -2}}},
	"EVIL_EYE":        {Name: "Evil Eye", Element: game.ElementDeath, Cost: 3, Species: "Undead", Target: TargetOpposingArmy, Modifiers: []Modifier{{game.ActionSave, -2}}},
	"MAGIC_DRAIN":     {Name: "Magic Drain", Element: game.ElementDeath, Cost: 3, Species: "Frostwing", Target: TargetTerrain, Modifiers: []Modifier{{game.ActionMagic, -2}}},
	"RESTLESS_DEAD":   {Name: "Restless Dead", Element: game.ElementDeath, Cost: 3, Species: "Undead", Reserves: true, Cantrip: true, Target: TargetAnyArmy, Modifiers: []Modifier{{game.ActionManeuver, 3}}},
	"FINGER_OF_DEATH": {Name: "Finger of Death", Element: game.ElementDeath, Cost: 4, Target: TargetOpposingArmy, Damage: 1, Unsavable: true},

	// Earth
	"STONE_SKIN":            {Name: "Stone Skin", Element: game.ElementEarth, Cost: 2, Reserves: true, Cantrip: true, Target: TargetAnyArmy, Modifiers: []Modifier{{game.ActionSave, 1}}},
	"HIGHER_GROUND":         {Name: "Higher Ground", Element: game.ElementEarth, Cost: 5, Species: "Dwarf", Target: TargetOpposingArmy, Modifiers: []Modifier{{game.ActionMelee, -5}}},
	"TRANSMUTE_ROCK_TO_MUD": {Name: "Transmute Rock to Mud", Element: game.ElementEarth, Cost: 6, Target: TargetOpposingArmy, Modifiers: []Modifier{{game.ActionManeuver, -6}}},

	// Fire
	"ASH_STORM":      {Name: "Ash Storm", Element: game.ElementFire, Cost: 2, Cantrip: true, Target: TargetTerrain, Modifiers: append(nonManeuver(-1), Modifier{game.ActionManeuver, -1})},
	"FIREBOLT":       {Name: "Firebolt", Element: game.ElementFire, Cost: 3, Species: "Dwarf", Target: TargetOpposingArmy, Damage: 1},
	"FIERY_WEAPON":   {Name: "Fiery Weapon", Element: game.ElementFire, Cost: 4, Reserves: true, Target: TargetAnyArmy, Modifiers: []Modifier{{game.ActionMelee, 2}, {game.ActionMissile, 2}}},
	"DANCING_LIGHTS": {Name: "Dancing Lights", Element: game.ElementFire, Cost: 6, Target: TargetOpposingArmy, Modifiers: []Modifier{{game.ActionMelee, -6}}},

	// Water
	"WATERY_DOUBLE": {Name: "Watery Double", Element: game.ElementWater, Cost: 2, Reserves: true, Cantrip: true, Target: TargetAnyArmy, Modifiers: []Modifier{{game.ActionSave, 1}}},
	"DELUGE":        {Name: "Deluge", Element: game.ElementWater, Cost: 5, Species: "Coral Elf", Target: TargetTerrain, Modifiers: []Modifier{{game.ActionManeuver, -3}, {game.ActionMissile, -3}}},

	// Elemental
	"RESURRECT_DEAD": {Name: "Resurrect Dead", Cost: 3, Reserves: true, Target: TargetOwnDUA},
}

func init() {
	for k, s := range book {
		s.Key = k
		book[k] = s
	}
}

// Key normalizes a spell name: "Wind Walk" and "wind_walk" both become
// WIND_WALK.
func Key(name string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), " ", "_")
}

// Lookup returns the spell called name.
func Lookup(name string) (Spell, bool) {
	s, ok := book[Key(name)]
	return s, ok
}

// Book lists every spell sorted by key.
func Book() []Spell {
	out := make([]Spell, 0, len(book))
	for _, s := range book {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Spell) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// CastBy reports whether army may cast s: a unit of the spell's species is
// alive, and the army stands on a terrain unless the spell may be cast from
// reserves.
func (s Spell) CastBy(army game.Army) bool {
	if army.Location == game.ReserveArea && !s.Reserves {
		return false
	}
	if s.Species == "" {
		return true
	}
	return slices.ContainsFunc(army.Alive(), func(u game.Unit) bool {
		return strings.EqualFold(u.Species, s.Species)
	})
}

// PaidWith returns the element of magic a cast spends. Elemental spells
// spend the element chosen by the caster; others their own. ok is false
// when the roll did not produce that element.
func (s Spell) PaidWith(chosen game.Element, available []game.Element) (game.Element, bool) {
	el := s.Element
	if s.Elemental() {
		el = chosen
	}
	return el, el != "" && slices.Contains(available, el)
}

// Effects builds the ledger entries a modifier spell leaves. They expire at
// the start of the caster's next turn.
func (s Spell) Effects(caster string, el game.Element, targetType effects.TargetType, targetID, affected string) []effects.Effect {
	out := make([]effects.Effect, 0, len(s.Modifiers))
	for _, m := range s.Modifiers {
		kind, ok := effects.BonusKind(m.Action)
		if !ok {
			continue
		}
		out = append(out, effects.Effect{
			Kind:        kind,
			Description: s.Name,
			Source:      "spell",
			TargetType:  targetType,
			TargetID:    targetID,
			Duration:    effects.NextTurnCaster,
			Caster:      caster,
			Affected:    affected,
			Magnitude:   m.Amount,
			Element:     el,
		})
	}
	return out
}
