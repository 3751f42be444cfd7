package turnflow

import (
	"slices"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/action"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// faceActions is the action a terrain face allows below the eighth face.
var faceActions = map[int]game.ActionType{
	1: game.ActionMelee,
	2: game.ActionMissile,
	3: game.ActionMagic,
	4: game.ActionMelee,
	5: game.ActionMissile,
	6: game.ActionMagic,
	7: game.ActionMelee,
}

func (c *Controller) marchableArmies() []game.Army {
	var out []game.Army
	for _, a := range c.store.Armies() {
		if a.Owner() == c.st.turn.Player && !c.st.marched[a.ID] && len(a.Alive()) > 0 {
			out = append(out, a)
		}
	}
	return out
}

func (c *Controller) actingArmy() (game.Army, error) {
	return c.store.Army(c.st.turn.ActingArmy)
}

// opponentsAt lists, in seat order, players other than player with a living
// army at location.
func (c *Controller) opponentsAt(location, player string) []string {
	var out []string
	for _, a := range c.store.ArmiesAt(location) {
		owner := a.Owner()
		if owner == player || len(a.Alive()) == 0 {
			continue
		}
		if len(out) == 0 || out[len(out)-1] != owner {
			out = append(out, owner)
		}
	}
	return out
}

// AvailableActions lists what army may do at its current location. Armies
// in reserve may only cast magic; on the eighth face the controller picks
// freely while others may only melee.
func (c *Controller) AvailableActions(army game.Army) ([]game.ActionType, error) {
	if army.Location == game.ReserveArea {
		return []game.ActionType{game.ActionMagic}, nil
	}
	t, err := c.store.Terrain(army.Location)
	if err != nil {
		return nil, err
	}
	if t.Face == game.ControlFace {
		if t.Controller == army.Owner() {
			return []game.ActionType{game.ActionMelee, game.ActionMissile, game.ActionMagic}, nil
		}
		return []game.ActionType{game.ActionMelee}, nil
	}
	return []game.ActionType{faceActions[t.Face]}, nil
}

// ChooseActingArmy starts a march with one of the player's armies. An army
// marches at most once per turn; armies in reserve skip the maneuver step.
func (c *Controller) ChooseActingArmy(player string, armyType game.ArmyType) error {
	return c.run(func() error {
		if err := c.expectMarch(player, StepChooseArmy); err != nil {
			return err
		}
		id := game.ArmyID{Player: player, Type: armyType}
		army, err := c.store.Army(id)
		if err != nil {
			return err
		}
		if c.st.marched[id] {
			return apperrors.WithMetadata(apperrors.CodeStateSequence, "army already marched this turn", apperrors.Field("army", id.String()))
		}
		if len(army.Alive()) == 0 {
			return apperrors.WithMetadata(apperrors.CodeStateSequence, "army has no living units", apperrors.Field("army", id.String()))
		}
		p, err := c.store.Player(player)
		if err != nil {
			return err
		}
		p.ActiveArmy = armyType
		if err := c.store.PutPlayer(p); err != nil {
			return err
		}

		c.st.marched[id] = true
		c.st.turn.ActingArmy = id
		c.note("army", id.String())
		if army.Location == game.ReserveArea {
			c.st.turn.MarchStep = StepSelectAction
			return nil
		}
		c.st.turn.MarchStep = StepDecideManeuver
		return nil
	})
}

// DecideManeuver declares whether the acting army tries to turn its terrain.
func (c *Controller) DecideManeuver(player string, attempt bool) error {
	return c.run(func() error {
		if err := c.expectMarch(player, StepDecideManeuver); err != nil {
			return err
		}
		if !attempt {
			c.st.turn.MarchStep = StepSelectAction
			return nil
		}
		army, err := c.actingArmy()
		if err != nil {
			return err
		}
		if c.ledger.ResolveModifiers(player, army.ID, game.ActionManeuver).PreventManeuver {
			return apperrors.WithMetadata(apperrors.CodeStateSequence, "army is prevented from maneuvering", apperrors.Field("army", army.ID.String()))
		}
		opponents := c.opponentsAt(army.Location, player)
		if len(opponents) == 0 {
			c.note("maneuver", "unopposed")
			c.st.turn.MarchStep = StepChooseDirection
			return nil
		}
		c.st.maneuver = &maneuver{
			Location:  army.Location,
			Opponents: opponents,
			Decisions: map[string]bool{},
			Rolls:     map[string]int{},
		}
		c.note("opponents", strings.Join(opponents, ","))
		c.st.turn.MarchStep = StepCounterManeuver
		return nil
	})
}

// SubmitCounterManeuverDecision records one opposing player's answer. Once
// everyone has answered, all "no" lets the maneuver succeed outright and
// any "yes" asks for maneuver rolls.
func (c *Controller) SubmitCounterManeuverDecision(player string, counter bool) error {
	return c.run(func() error {
		if err := c.expectArbitration(StepCounterManeuver); err != nil {
			return err
		}
		m := c.st.maneuver
		if !slices.Contains(m.Opponents, player) {
			return apperrors.WithMetadata(apperrors.CodeStateSequence, "player has no army opposing the maneuver", apperrors.Field("player", player))
		}
		if _, done := m.Decisions[player]; done {
			return apperrors.WithMetadata(apperrors.CodeStateSequence, "counter-maneuver already answered", apperrors.Field("player", player))
		}
		m.Decisions[player] = counter
		if !m.decided() {
			return nil
		}
		if len(m.countering()) == 0 {
			c.note("maneuver", "uncontested")
			c.st.maneuver = nil
			c.st.turn.MarchStep = StepChooseDirection
			return nil
		}
		c.st.turn.MarchStep = StepManeuverRolls
		c.st.turn.ActionStep = AwaitingManeuverRoll
		return nil
	})
}

// SubmitManeuverRollResults settles a contested maneuver in one call with
// the maneuvering roll and one roll per countering player.
func (c *Controller) SubmitManeuverRollResults(maneuverRoll string, counterRolls map[string]string) error {
	return c.run(func() error {
		if err := c.expectArbitration(StepManeuverRolls); err != nil {
			return err
		}
		if c.st.turn.ActionStep != AwaitingManeuverRoll {
			return sequenceErr("maneuver rolls already being reported one by one", string(c.st.turn.ActionStep))
		}
		m := c.st.maneuver
		for _, p := range m.countering() {
			if _, ok := counterRolls[p]; !ok {
				return apperrors.WithMetadata(apperrors.CodeFieldRequired, "missing counter-maneuver roll", apperrors.Field("counter_rolls", p))
			}
		}
		total, err := c.maneuverTotal(c.st.turn.ActingArmy, maneuverRoll)
		if err != nil {
			return err
		}
		m.Rolls[c.st.turn.Player] = total
		for _, p := range m.countering() {
			if m.Rolls[p], err = c.counterTotal(p, m.Location, counterRolls[p]); err != nil {
				return err
			}
		}
		return c.settleManeuver()
	})
}

// SubmitManeuverTotals settles a contested maneuver from totals the table
// already counted, modifiers included. counterTotal is the sum over every
// countering army.
func (c *Controller) SubmitManeuverTotals(maneuverTotal, counterTotal int) error {
	return c.run(func() error {
		if err := c.expectArbitration(StepManeuverRolls); err != nil {
			return err
		}
		if c.st.turn.ActionStep != AwaitingManeuverRoll {
			return sequenceErr("maneuver rolls already being reported one by one", string(c.st.turn.ActionStep))
		}
		if maneuverTotal < 0 || counterTotal < 0 {
			return apperrors.WithMetadata(apperrors.CodeValidation, "maneuver totals cannot be negative", apperrors.Field("totals", strconv.Itoa(min(maneuverTotal, counterTotal))))
		}
		m := c.st.maneuver
		clear(m.Rolls)
		m.Rolls[c.st.turn.Player] = maneuverTotal
		if countering := m.countering(); len(countering) > 0 {
			m.Rolls[countering[0]] = counterTotal
		}
		return c.settleManeuver()
	})
}

// SubmitManeuverResults reports one side's maneuver roll: the maneuvering
// player first, then each countering player.
func (c *Controller) SubmitManeuverResults(player, roll string) error {
	return c.run(func() error {
		if err := c.expectArbitration(StepManeuverRolls); err != nil {
			return err
		}
		m := c.st.maneuver
		switch c.st.turn.ActionStep {
		case AwaitingManeuverRoll:
			if player != c.st.turn.Player {
				return apperrors.WithMetadata(apperrors.CodeStateSequence, "maneuvering player rolls first", apperrors.Field("player", player))
			}
			total, err := c.maneuverTotal(c.st.turn.ActingArmy, roll)
			if err != nil {
				return err
			}
			m.Rolls[player] = total
			c.st.turn.ActionStep = AwaitingCounterManeuverRoll
			return nil
		case AwaitingCounterManeuverRoll:
			if !slices.Contains(m.countering(), player) {
				return apperrors.WithMetadata(apperrors.CodeStateSequence, "player is not counter-maneuvering", apperrors.Field("player", player))
			}
			if _, done := m.Rolls[player]; done {
				return apperrors.WithMetadata(apperrors.CodeStateSequence, "counter-maneuver roll already reported", apperrors.Field("player", player))
			}
			total, err := c.counterTotal(player, m.Location, roll)
			if err != nil {
				return err
			}
			m.Rolls[player] = total
			for _, p := range m.countering() {
				if _, ok := m.Rolls[p]; !ok {
					return nil
				}
			}
			return c.settleManeuver()
		}
		return sequenceErr("no maneuver roll expected", string(c.st.turn.ActionStep))
	})
}

// expectArbitration checks a maneuver is being arbitrated at step. Any
// player may answer, so the acting seat is not checked here.
func (c *Controller) expectArbitration(step MarchStep) error {
	if !c.st.turn.Phase.march() || c.st.turn.MarchStep != step || c.st.maneuver == nil {
		return sequenceErr("no maneuver awaiting this input", string(c.st.turn.MarchStep))
	}
	return nil
}

func (c *Controller) maneuverTotal(army game.ArmyID, roll string) (int, error) {
	out, err := c.actions.Resolve(action.Request{Army: army, Action: game.ActionManeuver, Dice: c.parse(roll)})
	if err != nil {
		return 0, err
	}
	return out.Total, nil
}

// counterTotal resolves a countering player's roll for their first living
// army at location.
func (c *Controller) counterTotal(player, location, roll string) (int, error) {
	for _, a := range c.store.ArmiesAt(location) {
		if a.Owner() == player && len(a.Alive()) > 0 {
			return c.maneuverTotal(a.ID, roll)
		}
	}
	return 0, apperrors.WithMetadata(apperrors.CodeArmyNotFound, "countering player has no army here", apperrors.Field("army", player))
}

// settleManeuver compares the maneuvering total with the combined counter
// totals. Ties go to the maneuvering army.
func (c *Controller) settleManeuver() error {
	m := c.st.maneuver
	counter := 0
	for _, p := range m.countering() {
		counter += m.Rolls[p]
	}
	own := m.Rolls[c.st.turn.Player]
	c.note("maneuver_total", own)
	c.note("counter_total", counter)
	c.st.maneuver = nil
	c.st.turn.ActionStep = ActionNone
	if own >= counter {
		c.note("maneuver", "succeeded")
		c.st.turn.MarchStep = StepChooseDirection
		return nil
	}
	c.note("maneuver", "failed")
	c.st.turn.MarchStep = StepSelectAction
	return nil
}

// ChooseTerrainDirection turns the acting army's terrain one face up (+1)
// or down (-1) after a successful maneuver.
func (c *Controller) ChooseTerrainDirection(player string, direction int) error {
	return c.run(func() error {
		if err := c.expectMarch(player, StepChooseDirection); err != nil {
			return err
		}
		army, err := c.actingArmy()
		if err != nil {
			return err
		}
		t, removed, err := c.control.Turn(army.Location, direction)
		if err != nil {
			return err
		}
		for _, e := range removed {
			c.emitEffect(event.TypeEffectExpired, e)
		}
		c.note("terrain", t.Name)
		c.note("face", t.Face)
		if t.Controller != "" {
			c.note("control:"+t.Name, t.Controller)
		}
		c.st.turn.MarchStep = StepSelectAction
		return nil
	})
}

// SelectAction picks the acting army's action, or SKIP to end the march.
// target optionally names the defender as "player:type" or a player name;
// empty picks the first opposing army at the same terrain.
func (c *Controller) SelectAction(player, name, target string) error {
	return c.run(func() error {
		if err := c.expectMarch(player, StepSelectAction); err != nil {
			return err
		}
		if strings.EqualFold(strings.TrimSpace(name), SkipAction) {
			c.note("action", SkipAction)
			return c.finishMarch()
		}
		at, ok := game.ParseActionType(name)
		if !ok || at == game.ActionSave || at == game.ActionManeuver {
			return apperrors.WithMetadata(apperrors.CodeActionTypeInvalid, "unknown action "+name, apperrors.Field("action", name))
		}
		army, err := c.actingArmy()
		if err != nil {
			return err
		}
		allowed, err := c.AvailableActions(army)
		if err != nil {
			return err
		}
		if !slices.Contains(allowed, at) {
			return apperrors.WithMetadata(apperrors.CodeActionTypeInvalid, "action not available at this face", apperrors.Field("action", string(at)))
		}

		c.note("action", string(at))
		c.st.turn.MarchStep = StepResolveAction
		switch at {
		case game.ActionMelee, game.ActionMissile:
			defender, err := c.selectDefender(army, at, target)
			if err != nil {
				return err
			}
			c.note("defender", defender.ID.String())
			c.st.attack = &inflight{Type: at, Source: sourceMarch, Attacker: army.ID, Defender: defender.ID}
			c.st.turn.ActionStep = AwaitingMeleeRoll
			if at == game.ActionMissile {
				c.st.turn.ActionStep = AwaitingMissileRoll
			}
		case game.ActionMagic:
			c.st.attack = &inflight{Type: at, Source: sourceMarch, Attacker: army.ID}
			c.st.turn.ActionStep = AwaitingMagicRoll
		}
		return nil
	})
}

// selectDefender resolves target into an opposing living army. Melee needs
// the same terrain; missiles reach any terrain but not the reserve area.
func (c *Controller) selectDefender(attacker game.Army, at game.ActionType, target string) (game.Army, error) {
	reachable := func(a game.Army) bool {
		if a.Owner() == attacker.Owner() || len(a.Alive()) == 0 || a.Location == game.ReserveArea {
			return false
		}
		return at == game.ActionMissile || a.Location == attacker.Location
	}
	target = strings.TrimSpace(target)
	if strings.Contains(target, ":") {
		id, err := game.ParseArmyID(target)
		if err != nil {
			return game.Army{}, apperrors.Wrap(apperrors.CodeFieldRequired, "target is not an army id", err)
		}
		a, err := c.store.Army(id)
		if err != nil {
			return game.Army{}, err
		}
		if !reachable(a) {
			return game.Army{}, apperrors.WithMetadata(apperrors.CodeArmyNotFound, "army cannot be attacked", apperrors.Field("target", target))
		}
		return a, nil
	}
	// Default targets stay on the attacker's terrain; home, campaign then
	// horde within each player.
	for _, a := range c.store.ArmiesAt(attacker.Location) {
		if reachable(a) && (target == "" || a.Owner() == target) {
			return a, nil
		}
	}
	return game.Army{}, apperrors.WithMetadata(apperrors.CodeArmyNotFound, "no opposing army to attack", apperrors.Field("target", target))
}

func (c *Controller) finishMarch() error {
	c.st.turn.MarchStep = StepNone
	c.st.turn.ActionStep = ActionNone
	c.st.turn.ActingArmy = game.ArmyID{}
	c.st.attack = nil
	return c.nextPhase()
}
