// Package turnflow drives a game session through phases, march steps and
// action steps. Every entry point is one synchronous human decision: it is
// checked against the step the controller expects, applied atomically and
// announced to observers only after it succeeds.
package turnflow

import (
	"log"
	"maps"
	"slices"
	"strconv"
	"time"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/action"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/dice"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/promotion"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/terrain"
)

// SkipAction ends a march without acting, or declines a counter-attack.
const SkipAction = "SKIP"

// Stores is the session state the controller drives. It must support
// rollback so a rejected call leaves nothing behind.
type Stores interface {
	game.Store
	game.Snapshotter
}

// EffectStore backs the effect ledger with rollback support.
type EffectStore interface {
	effects.Store
	game.Snapshotter
}

// Config wires a controller.
type Config struct {
	Session string
	Store   Stores
	Effects EffectStore
	// Bus receives notifications; nil drops them.
	Bus *event.Bus
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID generates effect ids; nil uses the platform generator.
	NewID func() (string, error)
}

// Controller is the turn state machine of one session. It is not safe for
// concurrent use; hosts serialize calls per session.
type Controller struct {
	session     string
	store       Stores
	effectStore EffectStore
	ledger      *effects.Ledger
	actions     *action.Engine
	control     *terrain.Evaluator
	eighth      *terrain.Processor
	promo       *promotion.Engine
	bus         *event.Bus
	now         func() time.Time

	st      state
	pending []event.Notification
	summary map[string]string
}

// New validates cfg and returns a controller that has not started yet.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil || cfg.Effects == nil {
		return nil, apperrors.WithMetadata(apperrors.CodeFieldRequired, "controller needs a store and an effect store", apperrors.Field("store", cfg.Session))
	}
	if len(cfg.Store.Players()) < 2 {
		return nil, apperrors.WithMetadata(apperrors.CodeRosterInvalid, "at least two players are required", apperrors.Field("players", cfg.Session))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ledger := effects.NewLedger(cfg.Effects, cfg.Store, cfg.NewID)
	return &Controller{
		session:     cfg.Session,
		store:       cfg.Store,
		effectStore: cfg.Effects,
		ledger:      ledger,
		actions:     action.NewEngine(cfg.Store, ledger),
		control:     terrain.NewEvaluator(cfg.Store, ledger),
		eighth:      terrain.NewProcessor(cfg.Store, ledger),
		promo:       promotion.New(cfg.Store),
		bus:         cfg.Bus,
		now:         cfg.Now,
		st: state{
			marched:    map[game.ArmyID]bool{},
			promotions: map[game.ArmyID]int{},
			massPromos: map[game.ArmyID]int{},
		},
	}, nil
}

// State returns the current turn position.
func (c *Controller) State() TurnState {
	return c.st.turn
}

// Ledger exposes the session's effects for display.
func (c *Controller) Ledger() *effects.Ledger {
	return c.ledger
}

// Choices returns the eighth-face decisions still pending.
func (c *Controller) Choices() []terrain.Choice {
	return slices.Clone(c.st.choices)
}

// PendingDragonTerrains lists terrains still waiting for dragon results.
func (c *Controller) PendingDragonTerrains() []string {
	return slices.Clone(c.st.dragonAt)
}

// Promotions returns single promotions owed per army.
func (c *Controller) Promotions() map[game.ArmyID]int {
	return maps.Clone(c.st.promotions)
}

// MassPromotions returns mass promotions owed per army.
func (c *Controller) MassPromotions() map[game.ArmyID]int {
	return maps.Clone(c.st.massPromos)
}

// Start seats the first player and runs the opening phases.
func (c *Controller) Start() error {
	if c.st.turn.Turn != 0 {
		return sequenceErr("game already started", "")
	}
	return c.run(func() error {
		first := c.store.Players()[0]
		c.st.turn = TurnState{Turn: 1, PlayerIndex: 0, Player: first.Name}
		c.emit(event.TypePlayerChanged, map[string]string{"player": first.Name})
		return c.enterPhase(PhaseExpireEffects)
	})
}

// AdvancePhase ends a phase that waits for the player: species abilities,
// reserves, an unstarted march, or eighth-face choices that may be declined.
func (c *Controller) AdvancePhase(player string) error {
	return c.run(func() error {
		if err := c.expectPlayer(player); err != nil {
			return err
		}
		t := &c.st.turn
		switch t.Phase {
		case PhaseSpeciesAbilities, PhaseReserves:
		case PhaseFirstMarch, PhaseSecondMarch:
			if t.MarchStep != StepChooseArmy {
				return sequenceErr("march already under way", string(t.MarchStep))
			}
		case PhaseEighthFace:
			if t.ActionStep != ActionNone {
				return sequenceErr("tower attack under way", string(t.ActionStep))
			}
			for _, ch := range c.st.choices {
				if ch.Mandatory {
					return sequenceErr("mandatory eighth face choice pending", string(ch.Type))
				}
			}
			c.st.choices = nil
		default:
			return sequenceErr("phase cannot be advanced by hand", string(t.Phase))
		}
		return c.nextPhase()
	})
}

// run applies fn atomically. On error every store and the controller state
// are restored and no notification escapes.
func (c *Controller) run(fn func() error) error {
	if c.st.turn.Over() {
		return apperrors.WithMetadata(apperrors.CodeGameOver, "game is over", apperrors.Field("winner", c.st.turn.Winner))
	}
	snap, effSnap, st := c.store.Snapshot(), c.effectStore.Snapshot(), c.st.clone()
	c.pending, c.summary = nil, map[string]string{}

	if err := fn(); err != nil {
		c.store.Restore(snap)
		c.effectStore.Restore(effSnap)
		c.st = st
		c.pending, c.summary = nil, nil
		return err
	}

	c.summary["phase"] = string(c.st.turn.Phase)
	if c.st.turn.MarchStep != StepNone {
		c.summary["march_step"] = string(c.st.turn.MarchStep)
	}
	if c.st.turn.ActionStep != ActionNone {
		c.summary["action_step"] = string(c.st.turn.ActionStep)
	}
	c.emit(event.TypeStateUpdated, c.summary)
	out := c.pending
	c.pending, c.summary = nil, nil
	if c.bus != nil {
		c.bus.Publish(out...)
	}
	return nil
}

func (c *Controller) emit(typ event.Type, payload map[string]string) {
	c.pending = append(c.pending, event.Notification{
		Session:   c.session,
		Timestamp: c.now().UTC(),
		Type:      typ,
		Turn:      c.st.turn.Turn,
		Player:    c.st.turn.Player,
		Phase:     string(c.st.turn.Phase),
		Payload:   payload,
	})
}

func (c *Controller) emitEffect(typ event.Type, e effects.Effect) {
	c.emit(typ, map[string]string{
		"effect_id": e.ID,
		"kind":      string(e.Kind),
		"target":    e.TargetID,
		"display":   e.Display(),
	})
}

func (c *Controller) emitKilled(army game.ArmyID, units []game.Unit) {
	for _, u := range units {
		c.emit(event.TypeUnitKilled, map[string]string{"army": army.String(), "unit_id": u.ID, "name": u.Name})
	}
}

// note adds a key to the state-updated payload of the current call.
func (c *Controller) note(key string, value any) {
	switch v := value.(type) {
	case string:
		c.summary[key] = v
	case int:
		c.summary[key] = strconv.Itoa(v)
	case bool:
		c.summary[key] = strconv.FormatBool(v)
	}
}

// parse reads a roll report. Dropped tokens are logged and echoed back as
// warnings; they never fail the call.
func (c *Controller) parse(roll string) dice.Result {
	r := dice.Parse(roll)
	c.warn(r.Warnings)
	return r
}

func (c *Controller) warn(warnings []*apperrors.Error) {
	for _, w := range warnings {
		log.Printf("session %s: %v", c.session, w)
		c.emit(event.TypeWarning, map[string]string{"code": string(w.Code), "message": w.Message, "token": w.Metadata["Token"]})
	}
}

func sequenceErr(msg, step string) error {
	return apperrors.WithMetadata(apperrors.CodeStateSequence, msg, apperrors.Field("step", step))
}

func (c *Controller) expectPlayer(player string) error {
	if c.st.turn.Turn == 0 {
		return sequenceErr("game has not started", "")
	}
	if player != c.st.turn.Player {
		return apperrors.WithMetadata(apperrors.CodeStateSequence, "not this player's turn", apperrors.Field("player", player))
	}
	return nil
}

func (c *Controller) expectPhase(player string, phases ...Phase) error {
	if err := c.expectPlayer(player); err != nil {
		return err
	}
	if !slices.Contains(phases, c.st.turn.Phase) {
		return sequenceErr("call not valid in this phase", string(c.st.turn.Phase))
	}
	return nil
}

func (c *Controller) expectMarch(player string, step MarchStep) error {
	if err := c.expectPhase(player, PhaseFirstMarch, PhaseSecondMarch); err != nil {
		return err
	}
	if c.st.turn.MarchStep != step {
		return sequenceErr("expected "+string(c.st.turn.MarchStep), string(step))
	}
	return nil
}

func (c *Controller) enterPhase(p Phase) error {
	t := &c.st.turn
	t.Phase, t.MarchStep, t.ActionStep, t.ActingArmy = p, StepNone, ActionNone, game.ArmyID{}
	c.st.maneuver, c.st.attack = nil, nil
	c.emit(event.TypePhaseChanged, map[string]string{"phase": string(p)})

	switch p {
	case PhaseExpireEffects:
		for _, e := range c.ledger.ExpireForActingPlayer(t.Player) {
			c.emitEffect(event.TypeEffectExpired, e)
		}
		return c.nextPhase()
	case PhaseEighthFace:
		return c.enterEighthFace()
	case PhaseDragonAttack:
		return c.enterDragonAttack()
	case PhaseFirstMarch, PhaseSecondMarch:
		if len(c.marchableArmies()) == 0 {
			return c.nextPhase()
		}
		t.MarchStep = StepChooseArmy
	}
	return nil
}

func (c *Controller) nextPhase() error {
	t := &c.st.turn
	if t.Phase == PhaseEighthFace && c.checkVictory() {
		return nil
	}
	i := slices.Index(Phases, t.Phase)
	if i == len(Phases)-1 {
		return c.nextPlayer()
	}
	return c.enterPhase(Phases[i+1])
}

func (c *Controller) nextPlayer() error {
	players := c.store.Players()
	t := &c.st.turn
	t.PlayerIndex = (t.PlayerIndex + 1) % len(players)
	if t.PlayerIndex == 0 {
		t.Turn++
	}
	t.Player = players[t.PlayerIndex].Name
	c.st.marched = map[game.ArmyID]bool{}
	c.st.promotions = map[game.ArmyID]int{}
	c.st.massPromos = map[game.ArmyID]int{}
	c.st.reinforced, c.st.retreated = nil, false
	c.emit(event.TypePlayerChanged, map[string]string{"player": t.Player, "turn": strconv.Itoa(t.Turn)})
	return c.enterPhase(PhaseExpireEffects)
}

// checkVictory ends the game when a player holds a majority of terrains.
func (c *Controller) checkVictory() bool {
	winner, ok := c.control.Victory()
	if !ok {
		return false
	}
	c.st.turn.Winner = winner
	c.st.turn.MarchStep, c.st.turn.ActionStep = StepNone, ActionNone
	c.emit(event.TypeVictoryAchieved, map[string]string{
		"winner":   winner,
		"terrains": strconv.Itoa(len(c.control.Controlled(winner))),
	})
	return true
}

func (c *Controller) noteControl(changes []terrain.Change) {
	for _, ch := range changes {
		c.note("control:"+ch.Terrain, ch.To)
	}
}

// grantPromotion owes army one single promotion.
func (c *Controller) grantPromotion(army game.ArmyID, reason string) {
	c.st.promotions[army]++
	c.emit(event.TypePromotionAvailable, map[string]string{
		"army":   army.String(),
		"kind":   "single",
		"reason": reason,
		"count":  strconv.Itoa(c.st.promotions[army]),
	})
}
