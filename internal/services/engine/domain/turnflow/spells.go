package turnflow

import (
	"maps"
	"slices"
	"strconv"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/spell"
)

// SpellCast spends magic results on one spell. Casting a spell twice takes
// two entries.
type SpellCast struct {
	Spell string
	// Element pays for elemental spells; other spells use their own.
	Element game.Element
	// Army is the target of army spells.
	Army game.ArmyID
	// Terrain is the target of terrain spells.
	Terrain string
	// Unit is the DUA unit Resurrect Dead returns.
	Unit string
}

func spellErr(code apperrors.Code, msg, name string) error {
	return apperrors.WithMetadata(code, msg, apperrors.Field("spell", name))
}

// CastSpells spends the acting army's magic results. Modifier spells go to
// the ledger at once; damage spells then wait for each target's saves in
// cast order. An empty list ends the magic action. Unspent results are lost.
func (c *Controller) CastSpells(player string, casts []SpellCast) error {
	return c.run(func() error {
		a, err := c.expectRoll(player, attackerOf, AwaitingSpellCasts)
		if err != nil {
			return err
		}
		caster, err := c.store.Army(a.Attacker)
		if err != nil {
			return err
		}
		budget := a.Magic
		raised := map[string]int{}
		for _, in := range casts {
			s, ok := spell.Lookup(in.Spell)
			if !ok {
				return spellErr(apperrors.CodeSpellUnknown, "unknown spell", in.Spell)
			}
			if !s.CastBy(caster) {
				return spellErr(apperrors.CodeSpellNotCastable, "army cannot cast "+s.Name, s.Name)
			}
			el, ok := s.PaidWith(in.Element, a.Elements)
			if !ok {
				return spellErr(apperrors.CodeSpellNotCastable, "roll produced no magic of the spell's element", s.Name)
			}
			if budget -= s.Cost; budget < 0 {
				return spellErr(apperrors.CodeSpellNotCastable, "not enough magic results", s.Name)
			}
			if err := c.cast(a, caster, s, el, in, raised); err != nil {
				return err
			}
			c.emit(event.TypeSpellCast, map[string]string{
				"spell":   s.Name,
				"element": string(el),
				"caster":  caster.ID.String(),
				"target":  castTarget(s, in),
			})
		}
		if err := c.resurrect(caster, raised); err != nil {
			return err
		}
		c.note("magic_left", budget)
		return c.finishAttack()
	})
}

func castTarget(s spell.Spell, in SpellCast) string {
	switch s.Target {
	case spell.TargetTerrain:
		return in.Terrain
	case spell.TargetOwnDUA:
		return in.Unit
	}
	return in.Army.String()
}

func (c *Controller) cast(a *inflight, caster game.Army, s spell.Spell, el game.Element, in SpellCast, raised map[string]int) error {
	switch s.Target {
	case spell.TargetTerrain:
		t, err := c.store.Terrain(in.Terrain)
		if err != nil {
			return err
		}
		if !inRange(caster, t.Name) {
			return spellErr(apperrors.CodeSpellNotCastable, "terrain is out of range", s.Name)
		}
		return c.addSpellEffects(s.Effects(caster.Owner(), el, effects.TargetTerrain, t.Name, ""))

	case spell.TargetOwnDUA:
		areas, err := c.store.Areas(caster.Owner())
		if err != nil {
			return err
		}
		i := slices.IndexFunc(areas.DUA, func(u game.Unit) bool { return u.ID == in.Unit })
		if i < 0 {
			return apperrors.WithMetadata(apperrors.CodeUnitNotFound, "unit is not in the DUA", apperrors.Field("unit_id", in.Unit))
		}
		if !slices.Contains(areas.DUA[i].Elements, el) {
			return spellErr(apperrors.CodeSpellNotCastable, in.Unit+" does not share the element paid", s.Name)
		}
		raised[in.Unit]++
		return nil
	}

	target, err := c.store.Army(in.Army)
	if err != nil {
		return err
	}
	if len(target.Alive()) == 0 || (s.Target == spell.TargetOpposingArmy && target.Owner() == caster.Owner()) {
		return apperrors.WithMetadata(apperrors.CodeArmyNotFound, s.Name+" cannot target this army", apperrors.Field("army", in.Army.String()))
	}
	if !inRange(caster, target.Location) {
		return spellErr(apperrors.CodeSpellNotCastable, "target army is out of range", s.Name)
	}
	if el == game.ElementDeath && c.ledger.DeathMagicImmune(target.Owner(), target.Location) {
		return spellErr(apperrors.CodeSpellNotCastable, "target army is immune to death magic", s.Name)
	}
	if s.Damage > 0 {
		a.queueHit(target.ID, s)
		return nil
	}
	return c.addSpellEffects(s.Effects(caster.Owner(), el, effects.TargetArmy, target.ID.String(), target.Owner()))
}

// inRange reports whether caster reaches location: its own terrain, or any
// terrain from reserves.
func inRange(caster game.Army, location string) bool {
	if location == game.ReserveArea {
		return false
	}
	return caster.Location == game.ReserveArea || caster.Location == location
}

func (c *Controller) addSpellEffects(list []effects.Effect) error {
	for _, e := range list {
		added, err := c.ledger.Add(e)
		if err != nil {
			return err
		}
		c.emitEffect(event.TypeEffectAdded, added)
	}
	return nil
}

// queueHit adds s's damage to the pending hit on army, opening one when
// the army has none yet.
func (a *inflight) queueHit(army game.ArmyID, s spell.Spell) {
	i := 0
	for i < len(a.Queue) && a.Queue[i].Defender != army {
		i++
	}
	if i == len(a.Queue) {
		a.Queue = append(a.Queue, spellHit{Defender: army})
	}
	if s.Unsavable {
		a.Queue[i].Unsavable += s.Damage
	} else {
		a.Queue[i].Hits += s.Damage
	}
}

// resurrect returns DUA units to the casting army. A unit needs one cast
// per point of health.
func (c *Controller) resurrect(caster game.Army, raised map[string]int) error {
	if len(raised) == 0 {
		return nil
	}
	areas, err := c.store.Areas(caster.Owner())
	if err != nil {
		return err
	}
	for _, unitID := range slices.Sorted(maps.Keys(raised)) {
		n := raised[unitID]
		u, rest, _ := take(areas.DUA, unitID)
		if n != u.MaxHealth {
			return apperrors.WithMetadata(apperrors.CodeSpellNotCastable,
				"resurrecting "+u.ID+" takes "+strconv.Itoa(u.MaxHealth)+" casts", apperrors.Field("spell", "Resurrect Dead"))
		}
		areas.DUA = rest
		u.Health = u.MaxHealth
		caster.Units = append(caster.Units, u)
		c.note("resurrected:"+u.ID, caster.ID.String())
	}
	return c.putArmyAndAreas(caster, caster.Owner(), areas)
}
