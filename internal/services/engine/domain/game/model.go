package game

import (
	"fmt"
	"slices"
	"strings"
)

// Element is one of the five magical elements plus the two dragon-only
// pseudo elements.
type Element string

const (
	ElementAir   Element = "AIR"
	ElementDeath Element = "DEATH"
	ElementEarth Element = "EARTH"
	ElementFire  Element = "FIRE"
	ElementWater Element = "WATER"
	ElementIvory Element = "IVORY"
	ElementWhite Element = "WHITE"
)

// ParseElement normalizes an element name.
func ParseElement(s string) (Element, bool) {
	e := Element(strings.ToUpper(strings.TrimSpace(s)))
	switch e {
	case ElementAir, ElementDeath, ElementEarth, ElementFire, ElementWater, ElementIvory, ElementWhite:
		return e, true
	}
	return "", false
}

// SharesElement reports whether a and b have at least one element in common.
func SharesElement(a, b []Element) bool {
	for _, e := range a {
		if slices.Contains(b, e) {
			return true
		}
	}
	return false
}

// SameElements reports whether a and b hold exactly the same element set.
func SameElements(a, b []Element) bool {
	if len(a) != len(b) {
		return false
	}
	for _, e := range a {
		if !slices.Contains(b, e) {
			return false
		}
	}
	return true
}

// ArmyType distinguishes a player's three armies.
type ArmyType string

const (
	ArmyHome     ArmyType = "home"
	ArmyCampaign ArmyType = "campaign"
	ArmyHorde    ArmyType = "horde"
)

// ArmyID is the stable (player, army type) identifier of an army.
type ArmyID struct {
	Player string
	Type   ArmyType
}

func (id ArmyID) String() string {
	return id.Player + ":" + string(id.Type)
}

// IsZero reports whether id is unset.
func (id ArmyID) IsZero() bool {
	return id.Player == "" && id.Type == ""
}

// ParseArmyID parses the "player:type" form produced by ArmyID.String.
func ParseArmyID(s string) (ArmyID, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return ArmyID{}, fmt.Errorf("army id %q: want player:type", s)
	}
	t := ArmyType(s[i+1:])
	switch t {
	case ArmyHome, ArmyCampaign, ArmyHorde:
	default:
		return ArmyID{}, fmt.Errorf("army id %q: unknown army type %q", s, t)
	}
	return ArmyID{Player: s[:i], Type: t}, nil
}

// ReserveArea is the location value of an army waiting in reserves.
const ReserveArea = "reserve"

// SpeciesDragonkin may promote from the Summoning Pool instead of the DUA.
const SpeciesDragonkin = "Dragonkin"

// Unit is a single die in an army or one of the player's areas.
type Unit struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	Elements  []Element `json:"elements,omitempty"`
	Health    int       `json:"health"`
	MaxHealth int       `json:"max_health"`
	// IDConverts is false for units whose ID icon has no conversion ability.
	IDConverts bool `json:"id_converts"`
}

// Alive reports whether the unit still has health.
func (u Unit) Alive() bool {
	return u.Health > 0
}

// Army is an ordered group of units at one location.
type Army struct {
	ID       ArmyID `json:"-"`
	Location string `json:"location"`
	Units    []Unit `json:"units"`
}

// Owner returns the controlling player.
func (a Army) Owner() string {
	return a.ID.Player
}

// Alive returns units with remaining health in army order.
func (a Army) Alive() []Unit {
	out := make([]Unit, 0, len(a.Units))
	for _, u := range a.Units {
		if u.Alive() {
			out = append(out, u)
		}
	}
	return out
}

// TotalHealth sums current health of living units.
func (a Army) TotalHealth() int {
	total := 0
	for _, u := range a.Units {
		if u.Alive() {
			total += u.Health
		}
	}
	return total
}

// Unit returns the unit with id and its index.
func (a Army) Unit(id string) (Unit, int, bool) {
	for i, u := range a.Units {
		if u.ID == id {
			return u, i, true
		}
	}
	return Unit{}, -1, false
}

// Clone returns a deep copy safe to mutate.
func (a Army) Clone() Army {
	out := a
	out.Units = cloneUnits(a.Units)
	return out
}

// TerrainType distinguishes home terrains from the frontier terrain.
type TerrainType string

const (
	TerrainHome     TerrainType = "home"
	TerrainFrontier TerrainType = "frontier"
)

// EighthFace is the terrain-specific effect shown on a terrain's face 8.
type EighthFace string

const (
	FaceCity           EighthFace = "City"
	FaceDragonLair     EighthFace = "Dragon Lair"
	FaceGrove          EighthFace = "Grove"
	FaceStandingStones EighthFace = "Standing Stones"
	FaceTemple         EighthFace = "Temple"
	FaceTower          EighthFace = "Tower"
	FaceVortex         EighthFace = "Vortex"
	FaceCastle         EighthFace = "Castle"
)

// ParseEighthFace matches an eighth-face name case-insensitively, ignoring
// spaces and underscores.
func ParseEighthFace(s string) (EighthFace, bool) {
	norm := func(v string) string {
		return strings.NewReplacer(" ", "", "_", "").Replace(strings.ToLower(v))
	}
	for _, f := range []EighthFace{FaceCity, FaceDragonLair, FaceGrove, FaceStandingStones, FaceTemple, FaceTower, FaceVortex, FaceCastle} {
		if norm(string(f)) == norm(s) {
			return f, true
		}
	}
	return "", false
}

// ControlFace is the terrain die face on which control applies.
const ControlFace = 8

// Terrain is a major terrain die.
type Terrain struct {
	Name       string      `json:"name"`
	Type       TerrainType `json:"type"`
	Subtype    EighthFace  `json:"subtype"`
	Elements   []Element   `json:"elements"`
	Face       int         `json:"face"`
	Controller string      `json:"controller,omitempty"`
	// Owner is the player whose home terrain this is; empty for frontier.
	Owner string `json:"owner,omitempty"`
}

// StepFace turns the terrain die one face up (+1) or down (-1), wrapping 1<->8.
func StepFace(face, delta int) int {
	f := (face-1+delta)%ControlFace + 1
	if f <= 0 {
		f += ControlFace
	}
	return f
}

// MinorFace is the face showing on a minor terrain die.
type MinorFace string

const (
	MinorFaceID              MinorFace = "ID"
	MinorFaceMelee           MinorFace = "Melee"
	MinorFaceMissile         MinorFace = "Missile"
	MinorFaceMagic           MinorFace = "Magic"
	MinorFaceDoubleSaves     MinorFace = "Double Saves"
	MinorFaceDoubleManeuvers MinorFace = "Double Maneuvers"
	MinorFaceFlood           MinorFace = "Flood"
	MinorFaceLandslide       MinorFace = "Landslide"
	MinorFaceRevolt          MinorFace = "Revolt"
	MinorFaceLost            MinorFace = "Lost"
	MinorFaceFlanked         MinorFace = "Flanked"
)

// MinorPlacement is a minor terrain attached to a major terrain.
type MinorPlacement struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Terrain    string    `json:"terrain"`
	Face       MinorFace `json:"face"`
	Controller string    `json:"controller"`
	Buried     bool      `json:"buried,omitempty"`
}

// Dragon is a dragon die. Owner is empty for neutral dragons.
type Dragon struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Owner    string    `json:"owner,omitempty"`
	Elements []Element `json:"elements"`
	// Location is a terrain name, or empty while the dragon waits in the
	// owner's Summoning Pool.
	Location string `json:"location,omitempty"`
}

// Player is a seat at the table.
type Player struct {
	Name        string   `json:"name"`
	HomeTerrain string   `json:"home_terrain"`
	ActiveArmy  ArmyType `json:"active_army,omitempty"`
}

// Areas holds the off-board zones of one player.
type Areas struct {
	DUA  []Unit `json:"dua"`
	BUA  []Unit `json:"bua"`
	Pool []Unit `json:"pool"`
	// Reserves holds units retreated off the terrains.
	Reserves []Unit `json:"reserves,omitempty"`
}

// Clone returns a deep copy safe to mutate.
func (a Areas) Clone() Areas {
	return Areas{DUA: cloneUnits(a.DUA), BUA: cloneUnits(a.BUA), Pool: cloneUnits(a.Pool), Reserves: cloneUnits(a.Reserves)}
}

// ActionType is the kind of roll being resolved.
type ActionType string

const (
	ActionMelee    ActionType = "MELEE"
	ActionMissile  ActionType = "MISSILE"
	ActionMagic    ActionType = "MAGIC"
	ActionManeuver ActionType = "MANEUVER"
	ActionSave     ActionType = "SAVE"
)

// ParseActionType normalizes an action type name.
func ParseActionType(s string) (ActionType, bool) {
	t := ActionType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case ActionMelee, ActionMissile, ActionMagic, ActionManeuver, ActionSave:
		return t, true
	}
	return "", false
}

func cloneUnits(in []Unit) []Unit {
	if in == nil {
		return nil
	}
	out := make([]Unit, len(in))
	for i, u := range in {
		u.Elements = slices.Clone(u.Elements)
		out[i] = u
	}
	return out
}
