package dragon

import (
	"github.com/louisbranch/dragondice/internal/services/engine/domain/dice"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// BreathHealthWorth is the health-worth a breath kills in an army; White
// dragons double it through Terrain Empathy.
const BreathHealthWorth = 5

// Breath is the elemental status a breath leaves on an army.
type Breath struct {
	Element game.Element
	Name    string
	// Kind is empty for breaths with no lasting modifier.
	Kind   effects.Kind
	Action game.ActionType
	// Burial asks the killed units for burial saves.
	Burial bool
}

var breaths = map[game.Element]Breath{
	game.ElementAir:   {Element: game.ElementAir, Name: "Lightning Bolt", Kind: effects.KindHalveResults, Action: game.ActionMelee},
	game.ElementDeath: {Element: game.ElementDeath, Name: "Dragon Plague", Kind: effects.KindIgnoreID},
	game.ElementEarth: {Element: game.ElementEarth, Name: "Petrify", Kind: effects.KindHalveResults, Action: game.ActionManeuver},
	game.ElementFire:  {Element: game.ElementFire, Name: "Dragon Fire", Burial: true},
	game.ElementWater: {Element: game.ElementWater, Name: "Poisonous Cloud", Kind: effects.KindHalveResults, Action: game.ActionMissile},
	game.ElementIvory: {Element: game.ElementIvory, Name: "Life Drain"},
}

// BreathOf returns the breath of element.
func BreathOf(element game.Element) Breath {
	if b, ok := breaths[element]; ok {
		return b
	}
	return breaths[game.ElementIvory]
}

// BreathsFor returns the breaths d inflicts on an army at t. Dragons use
// their first element; White dragons apply both elements of the terrain.
func BreathsFor(d game.Dragon, t game.Terrain) []Breath {
	if IsWhite(d) {
		out := make([]Breath, 0, len(t.Elements))
		for _, el := range t.Elements {
			out = append(out, BreathOf(el))
		}
		return out
	}
	if len(d.Elements) == 0 {
		return []Breath{BreathOf(game.ElementIvory)}
	}
	return []Breath{BreathOf(d.Elements[0])}
}

// Effect builds the ledger entry a breath leaves on army, expiring at the
// start of the army owner's next turn. ok is false for breaths with no
// lasting modifier.
func (b Breath) Effect(d game.Dragon, army game.ArmyID) (effects.Effect, bool) {
	if b.Kind == "" {
		return effects.Effect{}, false
	}
	caster := d.Owner
	if caster == "" {
		caster = d.ID
	}
	return effects.Effect{
		Kind:        b.Kind,
		Action:      b.Action,
		Description: b.Name,
		Source:      d.Name,
		TargetType:  effects.TargetArmy,
		TargetID:    army.String(),
		Duration:    effects.NextTurnTarget,
		Caster:      caster,
		Affected:    army.Player,
	}, true
}

// Attack is the outcome of one dragon's faces against its target.
type Attack struct {
	Dragon game.Dragon
	Target Target
	Faces  []dice.Roll
	// Damage is dealt to a dragon target, or to an army target before saves.
	Damage int
	// KillHealthWorth is slain outright in an army target by breath.
	KillHealthWorth int
	Breaths         []Breath
	Vulnerable      bool
	WingsRolled     bool
	Treasure        bool
	// NeedsReroll is set when the last face reported grants a reroll that
	// was not supplied.
	NeedsReroll bool
}

// Resolve applies faces in order: the first roll, then one reroll for each
// Breath (against a dragon) or Tail face. Faces beyond the granted rerolls
// are ignored.
func Resolve(d game.Dragon, target Target, at game.Terrain, faces []dice.Roll) Attack {
	a := Attack{Dragon: d, Target: target}
	if target.Kind == TargetNone {
		return a
	}
	pending := 1
	for _, f := range faces {
		if pending == 0 {
			break
		}
		pending--
		a.Faces = append(a.Faces, f)

		switch f.Face {
		case dice.DragonJaws:
			a.Damage += 12
		case dice.DragonClaw:
			a.Damage += 6
		case dice.DragonWing:
			a.Damage += 5
			a.WingsRolled = true
		case dice.DragonBelly:
			a.Vulnerable = true
		case dice.DragonTail:
			a.Damage += 3
			pending++
		case dice.DragonTreasure:
			if target.Kind == TargetArmy {
				a.Treasure = true
			}
		case dice.DragonBreath:
			worth := BreathHealthWorth
			if IsWhite(d) {
				worth *= 2
			}
			if target.Kind == TargetDragon {
				a.Damage += worth
				pending++
				break
			}
			a.KillHealthWorth += worth
			a.Breaths = append(a.Breaths, BreathsFor(d, at)...)
		}
	}
	a.NeedsReroll = pending > 0 && len(a.Faces) > 0
	return a
}

// TerrainOutcome gathers every dragon attack at one terrain.
type TerrainOutcome struct {
	Attacks []Attack
	// DragonDamage is damage taken per dragon id from other dragons and the army.
	DragonDamage map[string]int
	Killed       []game.Dragon
	// Fled are dragons that rolled wings and leave the terrain.
	Fled            []game.Dragon
	ArmyDamage      int
	KillHealthWorth int
	Breaths         []Attack
	Treasure        bool
	// Struck is the dragon the army's strike landed on.
	Struck string
}

// ArmyStrike is the marching army's counter roll against the dragons.
type ArmyStrike struct {
	// Target is the dragon the army strikes; empty picks the first dragon
	// attacking the army.
	Target string
	Damage int
}

// ResolveTerrain resolves all dragons present against each other and army.
// faces maps dragon id to its reported faces. The army's strike lands after
// the dragons roll so Belly vulnerability counts.
func ResolveTerrain(present []game.Dragon, army game.ArmyID, at game.Terrain, faces map[string][]dice.Roll, strike ArmyStrike) TerrainOutcome {
	out := TerrainOutcome{DragonDamage: map[string]int{}}
	vulnerable := map[string]bool{}
	for _, d := range present {
		target := SelectTarget(d, present, army)
		a := Resolve(d, target, at, faces[d.ID])
		out.Attacks = append(out.Attacks, a)
		vulnerable[d.ID] = a.Vulnerable

		switch target.Kind {
		case TargetDragon:
			out.DragonDamage[target.Dragon.ID] += a.Damage
		case TargetArmy:
			out.ArmyDamage += a.Damage
			out.KillHealthWorth += a.KillHealthWorth
			out.Treasure = out.Treasure || a.Treasure
			if len(a.Breaths) > 0 {
				out.Breaths = append(out.Breaths, a)
			}
		}
	}

	if strike.Damage > 0 {
		targetID := strike.Target
		if targetID == "" {
			for _, a := range out.Attacks {
				if a.Target.Kind == TargetArmy {
					targetID = a.Dragon.ID
					break
				}
			}
		}
		if targetID != "" {
			out.DragonDamage[targetID] += strike.Damage
			out.Struck = targetID
		}
	}

	for _, a := range out.Attacks {
		d := a.Dragon
		if Killed(d, out.DragonDamage[d.ID], vulnerable[d.ID]) {
			out.Killed = append(out.Killed, d)
			continue
		}
		if a.WingsRolled {
			out.Fled = append(out.Fled, d)
		}
	}
	return out
}

// ArmyKills counts dragons the army's strike took part in killing; each
// earns one promotion.
func (o TerrainOutcome) ArmyKills() int {
	n := 0
	for _, d := range o.Killed {
		if d.ID == o.Struck {
			n++
		}
	}
	return n
}
