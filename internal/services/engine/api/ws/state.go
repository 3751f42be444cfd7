package ws

import (
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/turnflow"
)

type stateView struct {
	Session               string                `json:"session"`
	Turn                  int                   `json:"turn"`
	Player                string                `json:"player"`
	Phase                 string                `json:"phase"`
	MarchStep             string                `json:"march_step,omitempty"`
	ActionStep            string                `json:"action_step,omitempty"`
	ActingArmy            string                `json:"acting_army,omitempty"`
	AvailableActions      []game.ActionType     `json:"available_actions,omitempty"`
	Winner                string                `json:"winner,omitempty"`
	Terrains              []terrainView         `json:"terrains"`
	Armies                []armyView            `json:"armies"`
	Dragons               []game.Dragon         `json:"dragons,omitempty"`
	Areas                 map[string]game.Areas `json:"areas"`
	Effects               []string              `json:"effects,omitempty"`
	Choices               []choiceView          `json:"choices,omitempty"`
	PendingDragonTerrains []string              `json:"pending_dragon_terrains,omitempty"`
	Promotions            map[string]int        `json:"promotions,omitempty"`
	MassPromotions        map[string]int        `json:"mass_promotions,omitempty"`
}

type terrainView struct {
	game.Terrain
	Minor []game.MinorPlacement `json:"minor_terrains,omitempty"`
}

type armyView struct {
	ID       string      `json:"id"`
	Location string      `json:"location"`
	Units    []game.Unit `json:"units"`
}

type choiceView struct {
	Type      string   `json:"type"`
	Player    string   `json:"player"`
	Terrain   string   `json:"terrain"`
	Options   []string `json:"options"`
	Mandatory bool     `json:"mandatory"`
}

// buildState captures the table as the acting client sees it. Callers hold
// the session lock.
func buildState(session string, ctrl *turnflow.Controller, store game.Store) stateView {
	st := ctrl.State()
	v := stateView{
		Session:               session,
		Turn:                  st.Turn,
		Player:                st.Player,
		Phase:                 string(st.Phase),
		MarchStep:             string(st.MarchStep),
		ActionStep:            string(st.ActionStep),
		Winner:                st.Winner,
		Dragons:               store.Dragons(),
		Areas:                 map[string]game.Areas{},
		Effects:               ctrl.Ledger().Displayable(),
		PendingDragonTerrains: ctrl.PendingDragonTerrains(),
		Promotions:            byArmy(ctrl.Promotions()),
		MassPromotions:        byArmy(ctrl.MassPromotions()),
	}
	if !st.ActingArmy.IsZero() {
		v.ActingArmy = st.ActingArmy.String()
		if army, err := store.Army(st.ActingArmy); err == nil {
			v.AvailableActions, _ = ctrl.AvailableActions(army)
		}
	}
	for _, t := range store.Terrains() {
		v.Terrains = append(v.Terrains, terrainView{Terrain: t, Minor: store.MinorPlacements(t.Name)})
	}
	for _, a := range store.Armies() {
		v.Armies = append(v.Armies, armyView{ID: a.ID.String(), Location: a.Location, Units: a.Units})
	}
	for _, p := range store.Players() {
		if areas, err := store.Areas(p.Name); err == nil {
			v.Areas[p.Name] = areas
		}
	}
	for _, ch := range ctrl.Choices() {
		cv := choiceView{Type: string(ch.Type), Player: ch.Player, Terrain: ch.Terrain, Mandatory: ch.Mandatory}
		for _, o := range ch.Options {
			cv.Options = append(cv.Options, string(o))
		}
		v.Choices = append(v.Choices, cv)
	}
	return v
}

func byArmy(in map[game.ArmyID]int) map[string]int {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]int, len(in))
	for id, n := range in {
		out[id.String()] = n
	}
	return out
}
