package turnflow

import (
	"slices"
	"strings"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/action"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/damage"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// expectRoll checks the controller waits for step and that player owns the
// army expected to roll.
func (c *Controller) expectRoll(player string, roller func(*inflight) game.ArmyID, steps ...ActionStep) (*inflight, error) {
	a := c.st.attack
	if a == nil || !slices.Contains(steps, c.st.turn.ActionStep) {
		return nil, sequenceErr("no roll of this kind expected", string(c.st.turn.ActionStep))
	}
	if roller(a).Player != player {
		return nil, apperrors.WithMetadata(apperrors.CodeStateSequence, "another player rolls now", apperrors.Field("player", player))
	}
	return a, nil
}

func attackerOf(a *inflight) game.ArmyID { return a.Attacker }
func defenderOf(a *inflight) game.ArmyID { return a.Defender }

// SubmitMeleeResults reports the acting army's melee roll.
func (c *Controller) SubmitMeleeResults(player, roll string) error {
	return c.run(func() error {
		a, err := c.expectRoll(player, attackerOf, AwaitingMeleeRoll)
		if err != nil {
			return err
		}
		return c.resolveAttack(a, roll)
	})
}

// SubmitMissileResults reports a missile roll, from a march or a Tower.
func (c *Controller) SubmitMissileResults(player, roll string) error {
	return c.run(func() error {
		a, err := c.expectRoll(player, attackerOf, AwaitingMissileRoll)
		if err != nil {
			return err
		}
		return c.resolveAttack(a, roll)
	})
}

// SubmitMagicResults reports a magic roll. The total and the elements it
// may be spent as then wait for CastSpells; a roll without magic ends the
// action.
func (c *Controller) SubmitMagicResults(player, roll string) error {
	return c.run(func() error {
		a, err := c.expectRoll(player, attackerOf, AwaitingMagicRoll)
		if err != nil {
			return err
		}
		out, err := c.actions.Resolve(action.Request{Army: a.Attacker, Action: game.ActionMagic, Dice: c.parse(roll)})
		if err != nil {
			return err
		}
		c.noteOutcome(out)
		elements := make([]string, len(out.MagicElements))
		for i, el := range out.MagicElements {
			elements[i] = string(el)
		}
		c.note("elements", strings.Join(elements, ","))
		if out.Total == 0 {
			return c.finishAttack()
		}
		a.Magic, a.Elements = out.Total, out.MagicElements
		c.st.turn.ActionStep = AwaitingSpellCasts
		return nil
	})
}

func (c *Controller) resolveAttack(a *inflight, roll string) error {
	out, err := c.actions.Resolve(action.Request{Army: a.Attacker, Action: a.Type, Dice: c.parse(roll), NoID: a.NoID})
	if err != nil {
		return err
	}
	c.noteOutcome(out)
	a.Hits, a.Unsavable, a.Constraints = out.Total, out.Unsavable, out.Constraints
	if a.Hits+a.Unsavable == 0 {
		return c.finishAttack()
	}
	if a.Counter {
		c.st.turn.ActionStep = AwaitingCounterAttackSaves
	} else {
		c.st.turn.ActionStep = AwaitingDefenderSaves
	}
	return nil
}

func (c *Controller) noteOutcome(out action.Outcome) {
	c.note("total", out.Total)
	if out.Unsavable > 0 {
		c.note("unsavable", out.Unsavable)
	}
	if out.Recruit > 0 {
		c.note("recruit", out.Recruit)
	}
	if out.VortexReroll {
		c.note("vortex_reroll", true)
	}
	if len(out.Bury) > 0 {
		c.note("buried", strings.Join(out.Bury, ","))
	}
}

// SubmitDefenderSaveResults reports the defending army's saves and applies
// the damage that gets through. allocs assigns damage by hand; nil picks
// the allocation that kills the most. After a melee the defender may then
// counter-attack.
func (c *Controller) SubmitDefenderSaveResults(player, roll string, allocs []damage.Allocation) error {
	return c.run(func() error {
		a, err := c.expectRoll(player, defenderOf, AwaitingDefenderSaves, AwaitingCounterAttackSaves)
		if err != nil {
			return err
		}
		saveRoll := c.parse(roll)
		saves, err := c.actions.Resolve(action.Request{Army: a.Defender, Action: game.ActionSave, Dice: saveRoll, Constraints: a.Constraints})
		if err != nil {
			return err
		}
		through := action.Damage(a.Hits, saves.Total)
		total := through + a.Unsavable
		c.note("saves", saves.Total)
		c.note("damage", total)

		killed, survivors, err := c.dealDamage(a.Defender, total, allocs)
		if err != nil {
			return err
		}
		if len(killed) > 0 {
			c.grantPromotion(a.Attacker, "kills")
		}
		if a.Type == game.ActionMelee && !a.Counter && action.CounterAttackEligible(a.Hits, through, saveRoll, survivors) {
			c.note("counter_attack", true)
			c.st.turn.ActionStep = AwaitingCounterAttackRoll
			return nil
		}
		return c.finishAttack()
	})
}

// SubmitCounterAttackResults reports the defender's counter-attack melee
// roll, or SKIP to decline it. The original attacker then rolls saves.
func (c *Controller) SubmitCounterAttackResults(player, roll string) error {
	return c.run(func() error {
		a, err := c.expectRoll(player, defenderOf, AwaitingCounterAttackRoll)
		if err != nil {
			return err
		}
		if strings.EqualFold(strings.TrimSpace(roll), SkipAction) {
			c.note("counter_attack", SkipAction)
			return c.finishAttack()
		}
		a.Attacker, a.Defender = a.Defender, a.Attacker
		a.Counter = true
		a.Constraints = action.Constraints{}
		return c.resolveAttack(a, roll)
	})
}

// dealDamage allocates and applies amount to army, then re-evaluates
// terrain control. It returns the killed units and how many survived.
func (c *Controller) dealDamage(id game.ArmyID, amount int, allocs []damage.Allocation) ([]game.Unit, int, error) {
	army, err := c.store.Army(id)
	if err != nil {
		return nil, 0, err
	}
	if amount <= 0 {
		return nil, len(army.Alive()), nil
	}
	if allocs == nil {
		allocs = damage.Optimal(army.Alive(), amount)
	} else if err := damage.Validate(army, allocs, amount); err != nil {
		return nil, 0, err
	}
	out, err := damage.Apply(c.store, id, allocs)
	if err != nil {
		return nil, 0, err
	}
	c.emitKilled(id, out.Killed)
	changes, err := c.control.Evaluate()
	if err != nil {
		return nil, 0, err
	}
	c.noteControl(changes)
	return out.Killed, len(out.Army.Alive()), nil
}

// finishAttack closes the attack in flight and returns control to the
// march or to the remaining eighth-face choices. Queued spell damage is
// saved against first.
func (c *Controller) finishAttack() error {
	a := c.st.attack
	if a != nil && len(a.Queue) > 0 {
		next := a.Queue[0]
		a.Queue = a.Queue[1:]
		a.Defender, a.Hits, a.Unsavable = next.Defender, next.Hits, next.Unsavable
		a.Constraints = action.Constraints{}
		c.st.turn.ActionStep = AwaitingDefenderSaves
		return nil
	}
	c.st.attack = nil
	c.st.turn.ActionStep = ActionNone
	if a != nil && a.Source == sourceTower {
		return c.afterChoice()
	}
	return c.finishMarch()
}
