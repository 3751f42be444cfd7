package game

import (
	"encoding/json"
	"fmt"
	"io"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
)

// Roster is the initial table supplied by the setup collaborator: players,
// their three armies, every terrain with its already-rolled face, dragons and
// any units that start in the Summoning Pool.
type Roster struct {
	Players  []RosterPlayer   `json:"players"`
	Terrains []Terrain        `json:"terrains"`
	Dragons  []Dragon         `json:"dragons,omitempty"`
	Minor    []MinorPlacement `json:"minor_terrains,omitempty"`
}

// RosterPlayer is one seat with its armies keyed by army type.
type RosterPlayer struct {
	Name        string            `json:"name"`
	HomeTerrain string            `json:"home_terrain"`
	Armies      map[ArmyType]Army `json:"armies"`
	Pool        []Unit            `json:"pool,omitempty"`
}

// DecodeRoster reads a JSON roster.
func DecodeRoster(r io.Reader) (Roster, error) {
	var roster Roster
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&roster); err != nil {
		return Roster{}, apperrors.Wrap(apperrors.CodeRosterInvalid, "decode roster", err)
	}
	return roster, nil
}

func rosterErr(field, entity, format string, args ...any) error {
	return apperrors.WithMetadata(apperrors.CodeRosterInvalid, fmt.Sprintf(format, args...), apperrors.Field(field, entity))
}

// Load validates roster and returns a populated Memory store.
func Load(roster Roster) (*Memory, error) {
	if len(roster.Players) < 2 {
		return nil, rosterErr("players", "", "at least two players are required")
	}
	if len(roster.Terrains) == 0 {
		return nil, rosterErr("terrains", "", "at least one terrain is required")
	}

	m := NewMemory()
	for _, rp := range roster.Players {
		if rp.Name == "" {
			return nil, rosterErr("players.name", "", "player name is required")
		}
		if _, err := m.Player(rp.Name); err == nil {
			return nil, rosterErr("players.name", rp.Name, "duplicate player %s", rp.Name)
		}
		if err := m.PutPlayer(Player{Name: rp.Name, HomeTerrain: rp.HomeTerrain}); err != nil {
			return nil, err
		}
	}

	for _, t := range roster.Terrains {
		if t.Face == 0 {
			t.Face = 1
		}
		if err := m.PutTerrain(t); err != nil {
			return nil, err
		}
	}

	seen := map[string]bool{}
	for _, rp := range roster.Players {
		if _, err := m.Terrain(rp.HomeTerrain); err != nil {
			return nil, rosterErr("players.home_terrain", rp.Name, "home terrain %q is not on the table", rp.HomeTerrain)
		}
		for armyType, army := range rp.Armies {
			switch armyType {
			case ArmyHome, ArmyCampaign, ArmyHorde:
			default:
				return nil, rosterErr("armies", rp.Name, "unknown army type %q", armyType)
			}
			army.ID = ArmyID{Player: rp.Name, Type: armyType}
			if army.Location == "" {
				return nil, rosterErr("armies.location", army.ID.String(), "army location is required")
			}
			if army.Location != ReserveArea {
				if _, err := m.Terrain(army.Location); err != nil {
					return nil, rosterErr("armies.location", army.ID.String(), "unknown location %q", army.Location)
				}
			}
			for i, u := range army.Units {
				if u.ID == "" {
					return nil, rosterErr("units.id", army.ID.String(), "unit %d has no id", i)
				}
				if seen[u.ID] {
					return nil, rosterErr("units.id", u.ID, "duplicate unit id %s", u.ID)
				}
				seen[u.ID] = true
				if u.MaxHealth <= 0 {
					return nil, rosterErr("units.max_health", u.ID, "unit max health must be positive")
				}
				if u.Health == 0 {
					army.Units[i].Health = u.MaxHealth
				}
			}
			if err := m.PutArmy(army); err != nil {
				return nil, err
			}
		}
		if err := m.PutAreas(rp.Name, Areas{Pool: rp.Pool}); err != nil {
			return nil, err
		}
	}

	for _, d := range roster.Dragons {
		if d.Owner != "" {
			if _, err := m.Player(d.Owner); err != nil {
				return nil, rosterErr("dragons.owner", d.ID, "unknown dragon owner %q", d.Owner)
			}
		}
		if err := m.PutDragon(d); err != nil {
			return nil, err
		}
	}
	for _, p := range roster.Minor {
		if err := m.PutMinorPlacement(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}
