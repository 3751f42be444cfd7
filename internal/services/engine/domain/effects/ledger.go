package effects

import (
	"slices"
	"strings"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/platform/id"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// Store persists ledger entries in insertion order.
type Store interface {
	Effects() []Effect
	ReplaceEffects(effects []Effect)
}

// ArmyLocator resolves where an army stands so terrain-targeted effects can
// be matched.
type ArmyLocator interface {
	Army(id game.ArmyID) (game.Army, error)
}

// Ledger adds, expires and aggregates effects.
type Ledger struct {
	store  Store
	armies ArmyLocator
	newID  func() (string, error)
}

// NewLedger returns a ledger backed by store. newID defaults to id.NewID.
func NewLedger(store Store, armies ArmyLocator, newID func() (string, error)) *Ledger {
	if newID == nil {
		newID = id.NewID
	}
	return &Ledger{store: store, armies: armies, newID: newID}
}

// Add validates e, assigns an id and appends it.
func (l *Ledger) Add(e Effect) (Effect, error) {
	if err := e.validate(); err != nil {
		return Effect{}, apperrors.WithMetadata(apperrors.CodeFieldRequired,
			"effect field "+err.Error()+" is missing or invalid", apperrors.Field(err.Error(), e.TargetID))
	}
	if e.Affected == "" {
		e.Affected = e.Caster
	}
	effectID, err := l.newID()
	if err != nil {
		return Effect{}, apperrors.Wrap(apperrors.CodeUnknown, "generate effect id", err)
	}
	e.ID = effectID
	l.store.ReplaceEffects(append(l.store.Effects(), e))
	return e, nil
}

// Remove deletes the effect with id.
func (l *Ledger) Remove(effectID string) (Effect, error) {
	all := l.store.Effects()
	for i, e := range all {
		if e.ID == effectID {
			l.store.ReplaceEffects(slices.Delete(all, i, i+1))
			return e, nil
		}
	}
	return Effect{}, apperrors.WithMetadata(apperrors.CodeEffectNotFound, "effect not found", apperrors.Field("effect", effectID))
}

// RemoveForTerrain drops every terrain-targeted effect on terrain. It runs
// whenever the terrain's face changes.
func (l *Ledger) RemoveForTerrain(terrain string) []Effect {
	return l.removeWhere(func(e Effect) bool {
		return e.TargetType == TargetTerrain && e.TargetID == terrain
	})
}

// RemoveForArmy drops every effect targeting army.
func (l *Ledger) RemoveForArmy(army game.ArmyID) []Effect {
	return l.removeWhere(func(e Effect) bool {
		return e.TargetType == TargetArmy && e.TargetID == army.String()
	})
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.store.ReplaceEffects(nil)
}

// All returns every active effect.
func (l *Ledger) All() []Effect {
	return l.store.Effects()
}

// ByPlayer returns effects whose affected player is player.
func (l *Ledger) ByPlayer(player string) []Effect {
	return l.filter(func(e Effect) bool { return e.Affected == player })
}

// ByCaster returns effects cast by player.
func (l *Ledger) ByCaster(player string) []Effect {
	return l.filter(func(e Effect) bool { return e.Caster == player })
}

// OnTerrain returns effects targeting terrain with the given kind.
func (l *Ledger) OnTerrain(terrain string, kind Kind) []Effect {
	return l.filter(func(e Effect) bool {
		return e.TargetType == TargetTerrain && e.TargetID == terrain && e.Kind == kind
	})
}

// Displayable renders every effect for a status list.
func (l *Ledger) Displayable() []string {
	all := l.store.Effects()
	if len(all) == 0 {
		return []string{"No active effects"}
	}
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.Display()
	}
	return out
}

// ExpireForActingPlayer runs at each phase-entry checkpoint for player and
// returns the expired effects. Counter-based effects tick down by one.
func (l *Ledger) ExpireForActingPlayer(player string) []Effect {
	var kept, expired []Effect
	for _, e := range l.store.Effects() {
		switch e.Duration {
		case NextTurnCaster:
			if player == e.Caster {
				expired = append(expired, e)
				continue
			}
		case NextTurnTarget:
			if player == e.Affected {
				expired = append(expired, e)
				continue
			}
		case EndOfTurn:
			expired = append(expired, e)
			continue
		case CounterBased:
			e.DurationValue--
			if e.DurationValue <= 0 {
				expired = append(expired, e)
				continue
			}
		}
		kept = append(kept, e)
	}
	l.store.ReplaceEffects(kept)
	return expired
}

// ResolveModifiers aggregates every active effect that applies to a roll of
// action by army, owned by player.
func (l *Ledger) ResolveModifiers(player string, army game.ArmyID, action game.ActionType) Modifiers {
	location := ""
	if l.armies != nil && !army.IsZero() {
		if a, err := l.armies.Army(army); err == nil {
			location = a.Location
		}
	}

	immune := l.DeathMagicImmune(player, location)
	var m Modifiers
	for _, e := range l.store.Effects() {
		if !applies(e, player, army, location) {
			continue
		}
		if immune && e.Element == game.ElementDeath {
			continue
		}
		switch e.Kind {
		case KindHalveResults:
			if e.Action == "" || e.Action == action {
				m.Halve = true
			}
		case KindDoubleResults:
			if e.Action == "" || e.Action == action {
				m.Double = true
			}
		case KindIgnoreID:
			m.IgnoreID = true
		case KindPreventManeuver:
			m.PreventManeuver = true
		case KindConvertMagic:
			if action == game.ActionMagic {
				for _, raw := range strings.Split(e.Detail, ",") {
					if el, ok := game.ParseElement(raw); ok && !slices.Contains(m.ConvertMagic, el) {
						m.ConvertMagic = append(m.ConvertMagic, el)
					}
				}
			}
		case KindVortexReroll:
			if action != game.ActionManeuver {
				m.VortexReroll = true
			}
		default:
			if bonusAction[e.Kind] == action {
				m.Bonus += e.Magnitude
			}
		}
	}
	return m
}

// DeathMagicImmune reports whether player's armies at location ignore
// death magic, as granted by a Temple they control there.
func (l *Ledger) DeathMagicImmune(player, location string) bool {
	if location == "" || location == game.ReserveArea {
		return false
	}
	for _, e := range l.OnTerrain(location, KindDeathMagicImmunity) {
		if e.Affected == player {
			return true
		}
	}
	return false
}

// applies matches an effect to a roll. Army effects need the affected
// player and, when army is given, the same army. Terrain effects apply to
// armies standing on the terrain; eighth-face kinds only to the controller's.
// Player effects need the affected player.
func applies(e Effect, player string, army game.ArmyID, location string) bool {
	switch e.TargetType {
	case TargetArmy:
		return e.Affected == player && (army.IsZero() || e.TargetID == army.String())
	case TargetTerrain:
		if location == "" || e.TargetID != location {
			return false
		}
		switch e.Kind {
		case KindConvertMagic, KindDeathMagicImmunity, KindVortexReroll, KindEmulateTerrain:
			return e.Affected == player
		}
		return true
	case TargetPlayer:
		return e.Affected == player
	}
	return false
}

func (l *Ledger) filter(keep func(Effect) bool) []Effect {
	var out []Effect
	for _, e := range l.store.Effects() {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (l *Ledger) removeWhere(drop func(Effect) bool) []Effect {
	var kept, removed []Effect
	for _, e := range l.store.Effects() {
		if drop(e) {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	if len(removed) > 0 {
		l.store.ReplaceEffects(kept)
	}
	return removed
}

// MemoryStore is the in-process effect Store.
type MemoryStore struct {
	effects []Effect
}

func (s *MemoryStore) Effects() []Effect {
	return slices.Clone(s.effects)
}

func (s *MemoryStore) ReplaceEffects(effects []Effect) {
	s.effects = slices.Clone(effects)
}

// Snapshot implements game.Snapshotter.
func (s *MemoryStore) Snapshot() any {
	return slices.Clone(s.effects)
}

// Restore implements game.Snapshotter.
func (s *MemoryStore) Restore(snapshot any) {
	if effects, ok := snapshot.([]Effect); ok {
		s.effects = effects
	}
}
