package turnflow

import (
	"slices"
	"strconv"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/action"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/damage"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/dice"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/dragon"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// DragonAttackInput reports everything rolled at one terrain during the
// dragon attack phase.
type DragonAttackInput struct {
	Terrain string
	// Faces maps dragon id to its reported faces in order, rerolls included,
	// e.g. "Tail_Front, Jaws".
	Faces map[string]string
	// ArmyRoll is the marching army's melee and missile roll at the dragons.
	ArmyRoll string
	// StrikeTarget is the dragon the army's results land on; empty picks
	// the first dragon attacking the army.
	StrikeTarget string
	// Saves is the army's save roll against dragon damage.
	Saves string
	// Allocations assigns the damage that gets through; nil picks the
	// allocation that kills the most.
	Allocations []damage.Allocation
}

// marchingArmyAt returns the acting player's first living army at location.
func (c *Controller) marchingArmyAt(location string) (game.Army, bool) {
	for _, a := range c.store.ArmiesAt(location) {
		if a.Owner() == c.st.turn.Player && len(a.Alive()) > 0 {
			return a, true
		}
	}
	return game.Army{}, false
}

func (c *Controller) enterDragonAttack() error {
	c.st.dragonAt = nil
	for _, t := range c.store.Terrains() {
		if len(c.store.DragonsAt(t.Name)) == 0 {
			continue
		}
		if _, ok := c.marchingArmyAt(t.Name); ok {
			c.st.dragonAt = append(c.st.dragonAt, t.Name)
		}
	}
	if len(c.st.dragonAt) == 0 {
		return c.nextPhase()
	}
	return nil
}

// SubmitDragonAttackResults resolves the dragons at one pending terrain.
// Killed and fled dragons return to their owner's Summoning Pool; the army
// takes breath kills and saved damage; each dragon the army helped kill
// earns one mass promotion.
func (c *Controller) SubmitDragonAttackResults(player string, in DragonAttackInput) error {
	return c.run(func() error {
		if err := c.expectPhase(player, PhaseDragonAttack); err != nil {
			return err
		}
		idx := slices.Index(c.st.dragonAt, in.Terrain)
		if idx < 0 {
			return apperrors.WithMetadata(apperrors.CodeStateSequence, "no dragon attack pending at terrain", apperrors.Field("terrain", in.Terrain))
		}
		at, err := c.store.Terrain(in.Terrain)
		if err != nil {
			return err
		}
		army, ok := c.marchingArmyAt(at.Name)
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeArmyNotFound, "no army facing the dragons", apperrors.Field("terrain", at.Name))
		}
		present := c.store.DragonsAt(at.Name)
		for id := range in.Faces {
			if !slices.ContainsFunc(present, func(d game.Dragon) bool { return d.ID == id }) {
				return apperrors.WithMetadata(apperrors.CodeDragonNotFound, "faces reported for a dragon not at terrain", apperrors.Field("faces", id))
			}
		}
		if in.StrikeTarget != "" && !slices.ContainsFunc(present, func(d game.Dragon) bool { return d.ID == in.StrikeTarget }) {
			return apperrors.WithMetadata(apperrors.CodeDragonNotFound, "strike target is not at terrain", apperrors.Field("strike_target", in.StrikeTarget))
		}
		faces := make(map[string][]dice.Roll, len(present))
		for _, d := range present {
			raw, ok := in.Faces[d.ID]
			if !ok {
				return apperrors.WithMetadata(apperrors.CodeFieldRequired, "missing faces for dragon", apperrors.Field("faces", d.ID))
			}
			rolls, warnings := dice.ParseDragonFaces(raw)
			c.warn(warnings)
			faces[d.ID] = rolls
		}

		strike, err := c.armyStrike(army.ID, in.ArmyRoll)
		if err != nil {
			return err
		}
		out := dragon.ResolveTerrain(present, army.ID, at, faces, dragon.ArmyStrike{Target: in.StrikeTarget, Damage: strike})
		for _, a := range out.Attacks {
			if a.NeedsReroll {
				return apperrors.WithMetadata(apperrors.CodeFieldRequired, "dragon reroll not reported", apperrors.Field("faces", a.Dragon.ID))
			}
		}

		if err := c.returnDragons(out); err != nil {
			return err
		}
		if err := c.breathe(army.ID, out); err != nil {
			return err
		}
		if out.ArmyDamage > 0 {
			saves, err := c.actions.Resolve(action.Request{Army: army.ID, Action: game.ActionSave, Dice: c.parse(in.Saves)})
			if err != nil {
				return err
			}
			through := action.Damage(out.ArmyDamage, saves.Total)
			c.note("dragon_damage", through)
			if _, _, err := c.dealDamage(army.ID, through, in.Allocations); err != nil {
				return err
			}
		}
		if kills := out.ArmyKills(); kills > 0 {
			c.st.massPromos[army.ID] += kills
			c.emit(event.TypePromotionAvailable, map[string]string{
				"army":   army.ID.String(),
				"kind":   "mass",
				"reason": "dragon_kill",
				"count":  strconv.Itoa(c.st.massPromos[army.ID]),
			})
		}
		if out.Treasure {
			c.grantPromotion(army.ID, "treasure")
		}

		c.st.dragonAt = slices.Delete(c.st.dragonAt, idx, idx+1)
		if len(c.st.dragonAt) == 0 {
			return c.nextPhase()
		}
		return nil
	})
}

// armyStrike totals the army's melee and missile results from one roll.
// ID icons are claimed once, on the melee pass.
func (c *Controller) armyStrike(army game.ArmyID, roll string) (int, error) {
	if roll == "" {
		return 0, nil
	}
	r := c.parse(roll)
	total := 0
	for _, req := range []action.Request{
		{Army: army, Action: game.ActionMelee, Dice: r},
		{Army: army, Action: game.ActionMissile, Dice: r, NoID: true},
	} {
		out, err := c.actions.Resolve(req)
		if err != nil {
			return 0, err
		}
		total += out.Total
	}
	return total, nil
}

func (c *Controller) returnDragons(out dragon.TerrainOutcome) error {
	for _, d := range out.Killed {
		d.Location = ""
		if err := c.store.PutDragon(d); err != nil {
			return err
		}
		c.emit(event.TypeDragonKilled, map[string]string{"dragon": d.ID, "name": d.Name})
	}
	for _, d := range out.Fled {
		d.Location = ""
		if err := c.store.PutDragon(d); err != nil {
			return err
		}
		c.note("fled:"+d.ID, true)
	}
	return nil
}

// breathe slays the breath's health-worth, buries units Dragon Fire killed
// and leaves each breath's lasting effect on the army.
func (c *Controller) breathe(army game.ArmyID, out dragon.TerrainOutcome) error {
	if out.KillHealthWorth == 0 {
		return nil
	}
	killed, err := damage.KillHealthWorth(c.store, army, out.KillHealthWorth)
	if err != nil {
		return err
	}
	c.emitKilled(army, killed.Killed)

	burial := false
	for _, a := range out.Breaths {
		for _, b := range a.Breaths {
			burial = burial || b.Burial
			e, ok := b.Effect(a.Dragon, army)
			if !ok {
				continue
			}
			added, err := c.ledger.Add(e)
			if err != nil {
				return err
			}
			c.emitEffect(event.TypeEffectAdded, added)
		}
	}
	if burial && len(killed.Killed) > 0 {
		areas, err := c.store.Areas(army.Player)
		if err != nil {
			return err
		}
		for _, u := range killed.Killed {
			var ok bool
			var moved game.Unit
			if moved, areas.DUA, ok = take(areas.DUA, u.ID); ok {
				areas.BUA = append(areas.BUA, moved)
			}
		}
		if err := c.store.PutAreas(army.Player, areas); err != nil {
			return err
		}
	}
	changes, err := c.control.Evaluate()
	if err != nil {
		return err
	}
	c.noteControl(changes)
	return nil
}
