package ws

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"github.com/louisbranch/dragondice/internal/platform/i18n/catalog"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/storage/filter"
)

var messageKeys = map[event.Type]string{
	event.TypePhaseChanged:       "event.phase_changed",
	event.TypePlayerChanged:      "event.player_changed",
	event.TypeStateUpdated:       "event.state_updated",
	event.TypePromotionAvailable: "event.promotion_available",
	event.TypeVictoryAchieved:    "event.victory_achieved",
	event.TypeEffectAdded:        "event.effect_added",
	event.TypeEffectExpired:      "event.effect_expired",
	event.TypeUnitKilled:         "event.unit_killed",
	event.TypeDragonKilled:       "event.dragon_killed",
	event.TypeSpellCast:          "event.spell_cast",
	event.TypeUnitsMoved:         "event.units_moved",
}

// messages renders notification text per locale. Templates are parsed once.
type messages struct {
	bundle *catalog.Bundle
	mu     sync.Mutex
	parsed map[string]map[string]*template.Template
}

func newMessages(bundle *catalog.Bundle) *messages {
	if bundle == nil {
		bundle = catalog.Default()
	}
	return &messages{bundle: bundle, parsed: map[string]map[string]*template.Template{}}
}

// resolveLocale returns locale when the bundle carries it, else the base.
func (m *messages) resolveLocale(locale string) string {
	locale = strings.TrimSpace(locale)
	if m.bundle.HasLocale(locale) {
		return locale
	}
	return catalog.BaseLocale
}

func (m *messages) templates(locale string) map[string]*template.Template {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts, ok := m.parsed[locale]; ok {
		return ts
	}
	_, raw := m.bundle.NamespaceMessagesWithFallback(locale, "events")
	ts := make(map[string]*template.Template, len(raw))
	for key, text := range raw {
		t, err := template.New(key).Option("missingkey=zero").Parse(text)
		if err != nil {
			continue
		}
		ts[key] = t
	}
	m.parsed[locale] = ts
	return ts
}

// Render returns the localized line for n, or "" for notifications that
// carry no message.
func (m *messages) Render(locale string, n event.Notification) string {
	key, ok := messageKeys[n.Type]
	if !ok {
		return ""
	}
	t, ok := m.templates(locale)[key]
	if !ok {
		return ""
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, templateData(n)); err != nil {
		return ""
	}
	return buf.String()
}

func templateData(n event.Notification) map[string]string {
	p := n.Payload
	data := map[string]string{
		"Player":      first(p["winner"], p["player"], n.Player),
		"Phase":       first(p["phase"], n.Phase),
		"Description": p["display"],
		"Unit":        first(p["name"], p["unit_id"]),
		"Dragon":      first(p["name"], p["dragon"]),
		"Spell":       p["spell"],
		"Target":      first(p["target"], p["to"]),
	}
	if n.Type == event.TypePromotionAvailable {
		if army, err := game.ParseArmyID(p["army"]); err == nil {
			data["Player"] = army.Player
		}
	}
	return data
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (m *messages) envelope(locale string, n event.Notification) eventEnvelope {
	return eventEnvelope{
		Seq:       n.Seq,
		Type:      string(n.Type),
		Turn:      n.Turn,
		Player:    n.Player,
		Phase:     n.Phase,
		Timestamp: filter.FormatTime(n.Timestamp),
		Payload:   n.Payload,
		Message:   m.Render(locale, n),
	}
}
