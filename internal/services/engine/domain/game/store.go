package game

import (
	"slices"
	"sort"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
)

// TerrainStore reads and writes major and minor terrains.
type TerrainStore interface {
	Terrain(name string) (Terrain, error)
	Terrains() []Terrain
	PutTerrain(t Terrain) error
	MinorPlacements(terrain string) []MinorPlacement
	PutMinorPlacement(p MinorPlacement) error
}

// ArmyStore reads and writes armies.
type ArmyStore interface {
	Army(id ArmyID) (Army, error)
	Armies() []Army
	ArmiesAt(location string) []Army
	PutArmy(a Army) error
}

// AreaStore reads and writes each player's DUA, BUA and Summoning Pool.
type AreaStore interface {
	Areas(player string) (Areas, error)
	PutAreas(player string, a Areas) error
}

// DragonStore reads and writes dragons on terrains or in Summoning Pools.
type DragonStore interface {
	Dragon(id string) (Dragon, error)
	Dragons() []Dragon
	DragonsAt(location string) []Dragon
	PutDragon(d Dragon) error
}

// PlayerStore reads seat order.
type PlayerStore interface {
	Players() []Player
	Player(name string) (Player, error)
	PutPlayer(p Player) error
}

// Store bundles every per-session store.
type Store interface {
	TerrainStore
	ArmyStore
	AreaStore
	DragonStore
	PlayerStore
}

// Snapshotter is implemented by stores that can roll back a failed call.
type Snapshotter interface {
	Snapshot() any
	Restore(snapshot any)
}

// Memory is the in-process Store backing one game session.
type Memory struct {
	state memoryState
}

type memoryState struct {
	players  []Player
	terrains map[string]Terrain
	minors   map[string]MinorPlacement
	armies   map[ArmyID]Army
	areas    map[string]Areas
	dragons  map[string]Dragon
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{state: memoryState{
		terrains: map[string]Terrain{},
		minors:   map[string]MinorPlacement{},
		armies:   map[ArmyID]Army{},
		areas:    map[string]Areas{},
		dragons:  map[string]Dragon{},
	}}
}

func notFound(code apperrors.Code, field, id string) error {
	return apperrors.WithMetadata(code, field+" "+id+" not found", apperrors.Field(field, id))
}

func (m *Memory) Terrain(name string) (Terrain, error) {
	t, ok := m.state.terrains[name]
	if !ok {
		return Terrain{}, notFound(apperrors.CodeTerrainNotFound, "terrain", name)
	}
	t.Elements = slices.Clone(t.Elements)
	return t, nil
}

// Terrains returns every terrain sorted by name.
func (m *Memory) Terrains() []Terrain {
	out := make([]Terrain, 0, len(m.state.terrains))
	for _, t := range m.state.terrains {
		t.Elements = slices.Clone(t.Elements)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Memory) PutTerrain(t Terrain) error {
	if t.Name == "" {
		return apperrors.WithMetadata(apperrors.CodeFieldRequired, "terrain name is required", apperrors.Field("name", ""))
	}
	if t.Face < 1 || t.Face > ControlFace {
		return apperrors.WithMetadata(apperrors.CodeTerrainFaceInvalid, "terrain face out of range", apperrors.Field("face", t.Name))
	}
	t.Elements = slices.Clone(t.Elements)
	m.state.terrains[t.Name] = t
	return nil
}

// MinorPlacements returns unburied placements on terrain sorted by id.
func (m *Memory) MinorPlacements(terrain string) []MinorPlacement {
	var out []MinorPlacement
	for _, p := range m.state.minors {
		if p.Terrain == terrain && !p.Buried {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) PutMinorPlacement(p MinorPlacement) error {
	if p.ID == "" {
		return apperrors.WithMetadata(apperrors.CodeFieldRequired, "minor placement id is required", apperrors.Field("id", ""))
	}
	if _, ok := m.state.terrains[p.Terrain]; !ok {
		return notFound(apperrors.CodeTerrainNotFound, "terrain", p.Terrain)
	}
	m.state.minors[p.ID] = p
	return nil
}

func (m *Memory) Army(id ArmyID) (Army, error) {
	a, ok := m.state.armies[id]
	if !ok {
		return Army{}, notFound(apperrors.CodeArmyNotFound, "army", id.String())
	}
	return a.Clone(), nil
}

// Armies returns every army in seat order then home, campaign, horde.
func (m *Memory) Armies() []Army {
	var out []Army
	for _, p := range m.state.players {
		for _, t := range []ArmyType{ArmyHome, ArmyCampaign, ArmyHorde} {
			if a, ok := m.state.armies[ArmyID{Player: p.Name, Type: t}]; ok {
				out = append(out, a.Clone())
			}
		}
	}
	return out
}

func (m *Memory) ArmiesAt(location string) []Army {
	var out []Army
	for _, a := range m.Armies() {
		if a.Location == location {
			out = append(out, a)
		}
	}
	return out
}

func (m *Memory) PutArmy(a Army) error {
	if _, err := m.Player(a.ID.Player); err != nil {
		return err
	}
	for _, u := range a.Units {
		if u.Health < 0 {
			return apperrors.WithMetadata(apperrors.CodeNegativeHealth, "unit health below zero", apperrors.Field("health", u.ID))
		}
		if u.Health > u.MaxHealth {
			return apperrors.WithMetadata(apperrors.CodeHealthAboveMax, "unit health above max", apperrors.Field("health", u.ID))
		}
	}
	m.state.armies[a.ID] = a.Clone()
	return nil
}

func (m *Memory) Areas(player string) (Areas, error) {
	if _, err := m.Player(player); err != nil {
		return Areas{}, err
	}
	return m.state.areas[player].Clone(), nil
}

func (m *Memory) PutAreas(player string, a Areas) error {
	if _, err := m.Player(player); err != nil {
		return err
	}
	m.state.areas[player] = a.Clone()
	return nil
}

func (m *Memory) Dragon(id string) (Dragon, error) {
	d, ok := m.state.dragons[id]
	if !ok {
		return Dragon{}, notFound(apperrors.CodeDragonNotFound, "dragon", id)
	}
	d.Elements = slices.Clone(d.Elements)
	return d, nil
}

// Dragons returns every dragon sorted by id.
func (m *Memory) Dragons() []Dragon {
	out := make([]Dragon, 0, len(m.state.dragons))
	for _, d := range m.state.dragons {
		d.Elements = slices.Clone(d.Elements)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) DragonsAt(location string) []Dragon {
	var out []Dragon
	for _, d := range m.Dragons() {
		if location != "" && d.Location == location {
			out = append(out, d)
		}
	}
	return out
}

func (m *Memory) PutDragon(d Dragon) error {
	if d.ID == "" {
		return apperrors.WithMetadata(apperrors.CodeFieldRequired, "dragon id is required", apperrors.Field("id", ""))
	}
	d.Elements = slices.Clone(d.Elements)
	m.state.dragons[d.ID] = d
	return nil
}

func (m *Memory) Players() []Player {
	return slices.Clone(m.state.players)
}

func (m *Memory) Player(name string) (Player, error) {
	for _, p := range m.state.players {
		if p.Name == name {
			return p, nil
		}
	}
	return Player{}, notFound(apperrors.CodePlayerNotFound, "player", name)
}

// PutPlayer updates a seat in place or appends a new seat.
func (m *Memory) PutPlayer(p Player) error {
	if p.Name == "" {
		return apperrors.WithMetadata(apperrors.CodeFieldRequired, "player name is required", apperrors.Field("name", ""))
	}
	for i := range m.state.players {
		if m.state.players[i].Name == p.Name {
			m.state.players[i] = p
			return nil
		}
	}
	m.state.players = append(m.state.players, p)
	return nil
}

// Snapshot deep-copies the whole session state.
func (m *Memory) Snapshot() any {
	s := memoryState{
		players:  slices.Clone(m.state.players),
		terrains: make(map[string]Terrain, len(m.state.terrains)),
		minors:   make(map[string]MinorPlacement, len(m.state.minors)),
		armies:   make(map[ArmyID]Army, len(m.state.armies)),
		areas:    make(map[string]Areas, len(m.state.areas)),
		dragons:  make(map[string]Dragon, len(m.state.dragons)),
	}
	for k, v := range m.state.terrains {
		v.Elements = slices.Clone(v.Elements)
		s.terrains[k] = v
	}
	for k, v := range m.state.minors {
		s.minors[k] = v
	}
	for k, v := range m.state.armies {
		s.armies[k] = v.Clone()
	}
	for k, v := range m.state.areas {
		s.areas[k] = v.Clone()
	}
	for k, v := range m.state.dragons {
		v.Elements = slices.Clone(v.Elements)
		s.dragons[k] = v
	}
	return s
}

// Restore replaces state with a value returned by Snapshot.
func (m *Memory) Restore(snapshot any) {
	if s, ok := snapshot.(memoryState); ok {
		m.state = s
	}
}
