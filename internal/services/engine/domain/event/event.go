// Package event defines the notifications a game session emits and the bus
// that delivers them to observers.
//
// Notifications are buffered by the turn controller while a call runs and
// published only after the call succeeds, so observers never see state that
// was rolled back.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies a notification.
type Type string

const (
	// TypePhaseChanged is emitted on entry to a new phase.
	TypePhaseChanged Type = "PHASE_CHANGED"
	// TypePlayerChanged is emitted when the marching player changes.
	TypePlayerChanged Type = "PLAYER_CHANGED"
	// TypeStateUpdated is emitted after every successful mutating call.
	TypeStateUpdated Type = "STATE_UPDATED"
	// TypePromotionAvailable is emitted when kills grant promotions.
	TypePromotionAvailable Type = "PROMOTION_OPPORTUNITY_AVAILABLE"
	// TypeVictoryAchieved is emitted once a player holds a majority of terrains.
	TypeVictoryAchieved Type = "VICTORY_ACHIEVED"
	TypeEffectAdded     Type = "EFFECT_ADDED"
	TypeEffectExpired   Type = "EFFECT_EXPIRED"
	TypeUnitKilled      Type = "UNIT_KILLED"
	TypeDragonKilled    Type = "DRAGON_KILLED"
	TypeSpellCast       Type = "SPELL_CAST"
	// TypeUnitsMoved is emitted for reinforcements and retreats.
	TypeUnitsMoved Type = "UNITS_MOVED"
	// TypeWarning carries dropped dice tokens back to the reporting player.
	TypeWarning Type = "WARNING"
)

// IsValid reports whether the notification type is supported.
func (t Type) IsValid() bool {
	switch t {
	case TypePhaseChanged,
		TypePlayerChanged,
		TypeStateUpdated,
		TypePromotionAvailable,
		TypeVictoryAchieved,
		TypeEffectAdded,
		TypeEffectExpired,
		TypeUnitKilled,
		TypeDragonKilled,
		TypeSpellCast,
		TypeUnitsMoved,
		TypeWarning:
		return true
	default:
		return false
	}
}

// Notification is one immutable fact about a session.
type Notification struct {
	Session   string            `json:"session,omitempty"`
	Seq       uint64            `json:"seq,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Type      Type              `json:"type"`
	Turn      int               `json:"turn"`
	Player    string            `json:"player,omitempty"`
	Phase     string            `json:"phase,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// PayloadJSON encodes the payload for storage.
func (n Notification) PayloadJSON() ([]byte, error) {
	if len(n.Payload) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(n.Payload)
}

// DecodePayload parses a stored payload.
func DecodePayload(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
