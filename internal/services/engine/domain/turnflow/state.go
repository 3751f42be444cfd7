package turnflow

import (
	"maps"
	"slices"

	"github.com/louisbranch/dragondice/internal/services/engine/domain/action"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/terrain"
)

// Phase is one step of a player's turn.
type Phase string

const (
	PhaseExpireEffects    Phase = "EXPIRE_EFFECTS"
	PhaseEighthFace       Phase = "EIGHTH_FACE"
	PhaseDragonAttack     Phase = "DRAGON_ATTACK"
	PhaseSpeciesAbilities Phase = "SPECIES_ABILITIES"
	PhaseFirstMarch       Phase = "FIRST_MARCH"
	PhaseSecondMarch      Phase = "SECOND_MARCH"
	PhaseReserves         Phase = "RESERVES"
)

// Phases is the order phases run in every turn.
var Phases = []Phase{
	PhaseExpireEffects,
	PhaseEighthFace,
	PhaseDragonAttack,
	PhaseSpeciesAbilities,
	PhaseFirstMarch,
	PhaseSecondMarch,
	PhaseReserves,
}

func (p Phase) march() bool {
	return p == PhaseFirstMarch || p == PhaseSecondMarch
}

// MarchStep is the position inside a march phase.
type MarchStep string

const (
	StepNone            MarchStep = ""
	StepChooseArmy      MarchStep = "CHOOSE_ACTING_ARMY"
	StepDecideManeuver  MarchStep = "DECIDE_MANEUVER"
	StepCounterManeuver MarchStep = "AWAITING_COUNTER_MANEUVER_DECISION"
	StepManeuverRolls   MarchStep = "AWAITING_MANEUVER_INPUT"
	StepChooseDirection MarchStep = "CHOOSE_TERRAIN_DIRECTION"
	StepSelectAction    MarchStep = "SELECT_ACTION"
	StepResolveAction   MarchStep = "RESOLVING_ACTION"
)

// ActionStep is the roll the controller is waiting for.
type ActionStep string

const (
	ActionNone                  ActionStep = ""
	AwaitingManeuverRoll        ActionStep = "AWAITING_MANEUVER_ROLL"
	AwaitingCounterManeuverRoll ActionStep = "AWAITING_COUNTER_MANEUVER_ROLL"
	AwaitingMeleeRoll           ActionStep = "AWAITING_ATTACKER_MELEE_ROLL"
	AwaitingMissileRoll         ActionStep = "AWAITING_ATTACKER_MISSILE_ROLL"
	AwaitingMagicRoll           ActionStep = "AWAITING_MAGIC_ROLL"
	AwaitingSpellCasts          ActionStep = "AWAITING_SPELL_SELECTION"
	AwaitingDefenderSaves       ActionStep = "AWAITING_DEFENDER_SAVES"
	AwaitingCounterAttackRoll   ActionStep = "AWAITING_COUNTER_ATTACK_ROLL"
	AwaitingCounterAttackSaves  ActionStep = "AWAITING_ATTACKER_SAVES"
)

// TurnState is the externally visible position of the game.
type TurnState struct {
	Turn        int
	PlayerIndex int
	Player      string
	Phase       Phase
	MarchStep   MarchStep
	ActionStep  ActionStep
	// ActingArmy is set once a march has chosen its army.
	ActingArmy game.ArmyID
	Winner     string
}

// Over reports whether a player has won.
func (s TurnState) Over() bool {
	return s.Winner != ""
}

// maneuver tracks an arbitration in flight.
type maneuver struct {
	Location  string
	Opponents []string
	Decisions map[string]bool
	// Rolls holds reported maneuver totals by player; the maneuvering
	// player's total is keyed under their own name.
	Rolls map[string]int
}

func (m *maneuver) countering() []string {
	var out []string
	for _, p := range m.Opponents {
		if m.Decisions[p] {
			out = append(out, p)
		}
	}
	return out
}

func (m *maneuver) decided() bool {
	return len(m.Decisions) == len(m.Opponents)
}

// source says why an attack is being resolved.
type source string

const (
	sourceMarch source = "march"
	sourceTower source = "tower"
)

// inflight is the attack currently being resolved.
type inflight struct {
	Type     game.ActionType
	Source   source
	Attacker game.ArmyID
	Defender game.ArmyID
	// Hits is the attacker's total before saves.
	Hits        int
	Unsavable   int
	Constraints action.Constraints
	// Counter is set while the defender strikes back.
	Counter bool
	// NoID drops ID results, used when a Tower fires on a reserve army.
	NoID bool
	// Magic and Elements are the results a magic roll may spend on spells.
	Magic    int
	Elements []game.Element
	// Queue holds spell damage still waiting for its target's saves.
	Queue []spellHit
}

// spellHit is damage spells dealt to one army in a magic action.
type spellHit struct {
	Defender  game.ArmyID
	Hits      int
	Unsavable int
}

// state is everything the controller mutates, cloned for rollback.
type state struct {
	turn       TurnState
	marched    map[game.ArmyID]bool
	maneuver   *maneuver
	attack     *inflight
	choices    []terrain.Choice
	dragonAt   []string
	promotions map[game.ArmyID]int
	massPromos map[game.ArmyID]int
	// reinforced lists units that joined a terrain this reserves phase and
	// may not retreat; retreated closes reinforcement.
	reinforced []string
	retreated  bool
}

func (s state) clone() state {
	out := s
	out.marched = maps.Clone(s.marched)
	out.choices = slices.Clone(s.choices)
	out.dragonAt = slices.Clone(s.dragonAt)
	out.promotions = maps.Clone(s.promotions)
	out.massPromos = maps.Clone(s.massPromos)
	out.reinforced = slices.Clone(s.reinforced)
	if s.maneuver != nil {
		m := *s.maneuver
		m.Opponents = slices.Clone(s.maneuver.Opponents)
		m.Decisions = maps.Clone(s.maneuver.Decisions)
		m.Rolls = maps.Clone(s.maneuver.Rolls)
		out.maneuver = &m
	}
	if s.attack != nil {
		a := *s.attack
		a.Elements = slices.Clone(s.attack.Elements)
		a.Queue = slices.Clone(s.attack.Queue)
		out.attack = &a
	}
	return out
}
