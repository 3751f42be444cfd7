package turnflow

import (
	"strings"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/terrain"
)

// ChoiceInput answers one pending eighth-face choice.
type ChoiceInput struct {
	Type terrain.ChoiceType
	// Terrain disambiguates when several terrains raised the same choice.
	Terrain string
	Option  terrain.Option
	// Unit is the DUA, BUA or army unit the option acts on.
	Unit string
	// Candidate is the DUA unit a promote_unit option brings in.
	Candidate string
	// Owner is the player whose area holds Unit, for Grove and Temple.
	Owner  string
	Dragon string
	// Target is the army a Tower fires on.
	Target game.ArmyID
	// Face is the face a Castle emulates.
	Face game.EighthFace
}

func (c *Controller) enterEighthFace() error {
	changes, err := c.control.Evaluate()
	if err != nil {
		return err
	}
	c.noteControl(changes)
	if c.checkVictory() {
		return nil
	}
	res, err := c.eighth.Process(c.st.turn.Player)
	if err != nil {
		return err
	}
	c.absorb(res)
	return c.afterChoice()
}

func (c *Controller) absorb(res terrain.Result) {
	for _, e := range res.Added {
		c.emitEffect(event.TypeEffectAdded, e)
	}
	c.st.choices = append(c.st.choices, res.Choices...)
}

// afterChoice leaves the phase once nothing is pending.
func (c *Controller) afterChoice() error {
	if len(c.st.choices) > 0 || c.st.attack != nil {
		return nil
	}
	return c.nextPhase()
}

// ApplyEighthFacePlayerChoice answers a pending eighth-face choice.
func (c *Controller) ApplyEighthFacePlayerChoice(player string, in ChoiceInput) error {
	return c.run(func() error {
		if err := c.expectPhase(player, PhaseEighthFace); err != nil {
			return err
		}
		if c.st.attack != nil {
			return sequenceErr("tower attack under way", string(c.st.turn.ActionStep))
		}
		idx := -1
		for i, ch := range c.st.choices {
			if ch.Type == in.Type && (in.Terrain == "" || ch.Terrain == in.Terrain) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperrors.WithMetadata(apperrors.CodeStateSequence, "no such eighth face choice pending", apperrors.Field("choice_type", string(in.Type)))
		}
		ch := c.st.choices[idx]
		if !ch.Allows(in.Option) {
			return apperrors.WithMetadata(apperrors.CodeChoiceTypeInvalid, "option does not answer this choice", apperrors.Field("option", string(in.Option)))
		}
		c.st.choices = append(c.st.choices[:idx:idx], c.st.choices[idx+1:]...)
		c.note("choice", string(ch.Type))
		c.note("option", string(in.Option))

		if err := c.applyOption(ch, in); err != nil {
			return err
		}
		return c.afterChoice()
	})
}

func (c *Controller) applyOption(ch terrain.Choice, in ChoiceInput) error {
	player := ch.Player
	switch in.Option {
	case terrain.OptionDecline:
		return nil

	case terrain.OptionRecruitUnit:
		army, ok := c.eighth.ControllingArmy(player, ch.Terrain)
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeArmyNotFound, "no army at terrain to recruit into", apperrors.Field("terrain", ch.Terrain))
		}
		areas, err := c.store.Areas(player)
		if err != nil {
			return err
		}
		u, rest, ok := take(areas.DUA, in.Unit)
		if !ok || u.MaxHealth != 1 {
			return apperrors.WithMetadata(apperrors.CodeUnitNotFound, "unit cannot be recruited", apperrors.Field("unit_id", in.Unit))
		}
		areas.DUA = rest
		u.Health = u.MaxHealth
		army.Units = append(army.Units, u)
		return c.putArmyAndAreas(army, player, areas)

	case terrain.OptionPromoteUnit:
		army, ok := c.eighth.ControllingArmy(player, ch.Terrain)
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeArmyNotFound, "no army at terrain to promote", apperrors.Field("terrain", ch.Terrain))
		}
		res, err := c.promo.ExecuteSingle(army.ID, in.Unit, in.Candidate)
		if err != nil {
			return err
		}
		c.note("promoted", len(res.Promoted))
		return nil

	case terrain.OptionSummonDragon:
		t, err := c.store.Terrain(ch.Terrain)
		if err != nil {
			return err
		}
		for _, d := range c.eighth.SummonableDragons(player, t) {
			if d.ID == in.Dragon {
				d.Location = t.Name
				c.note("summoned", d.ID)
				return c.store.PutDragon(d)
			}
		}
		return apperrors.WithMetadata(apperrors.CodeDragonNotFound, "dragon cannot be summoned here", apperrors.Field("dragon", in.Dragon))

	case terrain.OptionMoveBUAToDUA, terrain.OptionMoveBUAToSummoning, terrain.OptionMoveBUAToArmy:
		return c.groveMove(ch, in)

	case terrain.OptionForceBurial:
		for _, bt := range c.eighth.BurialTargets(player) {
			if bt.Player != in.Owner || bt.Unit.ID != in.Unit {
				continue
			}
			areas, err := c.store.Areas(bt.Player)
			if err != nil {
				return err
			}
			u, rest, _ := take(areas.DUA, bt.Unit.ID)
			areas.DUA, areas.BUA = rest, append(areas.BUA, u)
			c.note("buried", u.ID)
			return c.store.PutAreas(bt.Player, areas)
		}
		return apperrors.WithMetadata(apperrors.CodeUnitNotFound, "unit is not in an opponent's DUA", apperrors.Field("unit_id", in.Unit))

	case terrain.OptionMissileAttack:
		attacker, ok := c.eighth.ControllingArmy(player, ch.Terrain)
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeArmyNotFound, "no army at the tower", apperrors.Field("terrain", ch.Terrain))
		}
		target, err := c.store.Army(in.Target)
		if err != nil {
			return err
		}
		if target.Owner() == player || len(target.Alive()) == 0 {
			return apperrors.WithMetadata(apperrors.CodeArmyNotFound, "army cannot be attacked", apperrors.Field("target", in.Target.String()))
		}
		c.st.attack = &inflight{
			Type:     game.ActionMissile,
			Source:   sourceTower,
			Attacker: attacker.ID,
			Defender: target.ID,
			NoID:     target.Location == game.ReserveArea,
		}
		c.st.turn.ActionStep = AwaitingMissileRoll
		return nil

	case terrain.OptionChooseTerrainType:
		res, err := c.eighth.Emulate(player, ch.Terrain, in.Face)
		if err != nil {
			return err
		}
		c.absorb(res)
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeChoiceTypeInvalid, "unsupported option", apperrors.Field("option", string(in.Option)))
}

// groveMove relocates one BUA record for a Grove option.
func (c *Controller) groveMove(ch terrain.Choice, in ChoiceInput) error {
	owner := in.Owner
	if owner == "" {
		owner = ch.Player
	}
	found := false
	for _, gm := range c.eighth.GroveCandidates(ch.Player, in.Option) {
		if gm.Player == owner && gm.Unit.ID == in.Unit {
			found = true
			break
		}
	}
	if !found {
		return apperrors.WithMetadata(apperrors.CodeUnitNotFound, "unit cannot be moved by the grove", apperrors.Field("unit_id", in.Unit))
	}
	areas, err := c.store.Areas(owner)
	if err != nil {
		return err
	}
	u, rest, _ := take(areas.BUA, in.Unit)
	areas.BUA = rest

	switch in.Option {
	case terrain.OptionMoveBUAToDUA:
		areas.DUA = append(areas.DUA, u)
	case terrain.OptionMoveBUAToSummoning:
		u.Health = u.MaxHealth
		areas.Pool = append(areas.Pool, u)
	case terrain.OptionMoveBUAToArmy:
		army, ok := c.eighth.ControllingArmy(ch.Player, ch.Terrain)
		if !ok {
			return apperrors.WithMetadata(apperrors.CodeArmyNotFound, "no army at the grove", apperrors.Field("terrain", ch.Terrain))
		}
		u.Health = u.MaxHealth
		army.Units = append(army.Units, u)
		return c.putArmyAndAreas(army, owner, areas)
	}
	c.note("moved", strings.ToLower(string(in.Option))+":"+u.ID)
	return c.store.PutAreas(owner, areas)
}

func (c *Controller) putArmyAndAreas(army game.Army, player string, areas game.Areas) error {
	if err := c.store.PutArmy(army); err != nil {
		return err
	}
	if err := c.store.PutAreas(player, areas); err != nil {
		return err
	}
	changes, err := c.control.Evaluate()
	if err != nil {
		return err
	}
	c.noteControl(changes)
	return nil
}

// take removes the unit with id from units.
func take(units []game.Unit, id string) (game.Unit, []game.Unit, bool) {
	for i, u := range units {
		if u.ID == id {
			rest := append(units[:i:i], units[i+1:]...)
			return u, rest, true
		}
	}
	return game.Unit{}, units, false
}
