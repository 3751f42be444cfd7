package terrain

import (
	"slices"
	"strings"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/promotion"
)

// ChoiceType names a decision an eighth face asks its controller to make.
type ChoiceType string

const (
	ChoiceCity       ChoiceType = "city_eighth_face"
	ChoiceDragonLair ChoiceType = "dragon_lair_eighth_face"
	ChoiceGrove      ChoiceType = "grove_eighth_face"
	ChoiceTemple     ChoiceType = "temple_eighth_face"
	ChoiceTower      ChoiceType = "tower_eighth_face"
	ChoiceCastle     ChoiceType = "castle_eighth_face"
)

// ParseChoiceType validates a choice type name.
func ParseChoiceType(s string) (ChoiceType, error) {
	switch c := ChoiceType(strings.ToLower(strings.TrimSpace(s))); c {
	case ChoiceCity, ChoiceDragonLair, ChoiceGrove, ChoiceTemple, ChoiceTower, ChoiceCastle:
		return c, nil
	}
	return "", apperrors.WithMetadata(apperrors.CodeChoiceTypeInvalid, "unknown eighth face choice", map[string]string{"Field": "choice_type", "Value": s})
}

// Option is one answer to a choice.
type Option string

const (
	OptionRecruitUnit        Option = "recruit_unit"
	OptionPromoteUnit        Option = "promote_unit"
	OptionSummonDragon       Option = "summon_dragon"
	OptionMoveBUAToDUA       Option = "move_bua_to_dua"
	OptionMoveBUAToSummoning Option = "move_bua_to_summoning"
	OptionMoveBUAToArmy      Option = "move_bua_to_army"
	OptionForceBurial        Option = "force_burial"
	OptionMissileAttack      Option = "missile_attack"
	OptionChooseTerrainType  Option = "choose_terrain_type"
	// OptionDecline passes on an optional choice.
	OptionDecline Option = "decline"
)

// SpeciesItem marks BUA records that Grove can return to an army.
const SpeciesItem = "Item"

// Choice is a pending eighth-face decision.
type Choice struct {
	Type    ChoiceType
	Player  string
	Terrain string
	Options []Option
	// Mandatory choices cannot be declined.
	Mandatory bool
}

// Allows reports whether o answers c.
func (c Choice) Allows(o Option) bool {
	if o == OptionDecline {
		return !c.Mandatory
	}
	return slices.Contains(c.Options, o)
}

// CastleFaces are the eighth faces a Castle may emulate.
var CastleFaces = []game.EighthFace{game.FaceCity, game.FaceStandingStones, game.FaceTemple, game.FaceTower}

// Processor turns control of an eighth face into choices and ledger effects.
type Processor struct {
	store  game.Store
	ledger *effects.Ledger
}

// NewProcessor returns a processor over store and ledger.
func NewProcessor(store game.Store, ledger *effects.Ledger) *Processor {
	return &Processor{store: store, ledger: ledger}
}

// Result lists what processing a player's eighth faces produced.
type Result struct {
	Choices []Choice
	Added   []effects.Effect
}

func (r *Result) merge(o Result) {
	r.Choices = append(r.Choices, o.Choices...)
	r.Added = append(r.Added, o.Added...)
}

// Process runs the eighth-face effect of every terrain player controls.
func (p *Processor) Process(player string) (Result, error) {
	var res Result
	for _, t := range p.store.Terrains() {
		if t.Controller != player || player == "" {
			continue
		}
		step, err := p.processFace(player, t, p.EffectiveFace(t))
		if err != nil {
			return Result{}, err
		}
		res.merge(step)
	}
	return res, nil
}

// EffectiveFace is the terrain's subtype, or the emulated subtype of a
// Castle that has chosen one.
func (p *Processor) EffectiveFace(t game.Terrain) game.EighthFace {
	if t.Subtype != game.FaceCastle || p.ledger == nil {
		return t.Subtype
	}
	for _, e := range p.ledger.OnTerrain(t.Name, effects.KindEmulateTerrain) {
		if f, ok := game.ParseEighthFace(e.Detail); ok {
			return f
		}
	}
	return t.Subtype
}

// Emulate records a Castle's chosen face and immediately processes it.
func (p *Processor) Emulate(player, terrainName string, face game.EighthFace) (Result, error) {
	t, err := p.store.Terrain(terrainName)
	if err != nil {
		return Result{}, err
	}
	if t.Subtype != game.FaceCastle || t.Controller != player {
		return Result{}, apperrors.WithMetadata(apperrors.CodeStateSequence, "terrain is not a castle held by player", apperrors.Field("terrain", terrainName))
	}
	if !slices.Contains(CastleFaces, face) {
		return Result{}, apperrors.WithMetadata(apperrors.CodeChoiceTypeInvalid, "castle cannot emulate "+string(face), apperrors.Field("face", terrainName))
	}
	e, err := p.ledger.Add(effects.Effect{
		Kind:        effects.KindEmulateTerrain,
		Description: "Castle acts as " + string(face),
		Source:      string(game.FaceCastle),
		TargetType:  effects.TargetTerrain,
		TargetID:    terrainName,
		Duration:    effects.Permanent,
		Caster:      player,
		Detail:      string(face),
	})
	if err != nil {
		return Result{}, err
	}
	res, err := p.processFace(player, t, face)
	if err != nil {
		return Result{}, err
	}
	res.Added = append([]effects.Effect{e}, res.Added...)
	return res, nil
}

func (p *Processor) processFace(player string, t game.Terrain, face game.EighthFace) (Result, error) {
	choice := func(ct ChoiceType, mandatory bool, opts ...Option) Result {
		if len(opts) == 0 {
			return Result{}
		}
		return Result{Choices: []Choice{{Type: ct, Player: player, Terrain: t.Name, Options: opts, Mandatory: mandatory}}}
	}

	switch face {
	case game.FaceCity:
		var opts []Option
		if len(p.RecruitableUnits(player)) > 0 && len(p.armiesOf(player, t.Name)) > 0 {
			opts = append(opts, OptionRecruitUnit)
		}
		if p.hasPromotion(player, t.Name) {
			opts = append(opts, OptionPromoteUnit)
		}
		return choice(ChoiceCity, false, opts...), nil

	case game.FaceDragonLair:
		if len(p.SummonableDragons(player, t)) == 0 {
			return Result{}, nil
		}
		return choice(ChoiceDragonLair, false, OptionSummonDragon), nil

	case game.FaceGrove:
		var opts []Option
		if len(p.GroveCandidates(player, OptionMoveBUAToDUA)) > 0 {
			opts = append(opts, OptionMoveBUAToDUA)
		}
		if len(p.GroveCandidates(player, OptionMoveBUAToSummoning)) > 0 {
			opts = append(opts, OptionMoveBUAToSummoning)
		}
		if len(p.GroveCandidates(player, OptionMoveBUAToArmy)) > 0 && len(p.armiesOf(player, t.Name)) > 0 {
			opts = append(opts, OptionMoveBUAToArmy)
		}
		return choice(ChoiceGrove, true, opts...), nil

	case game.FaceStandingStones:
		elements := make([]string, len(t.Elements))
		for i, el := range t.Elements {
			elements[i] = string(el)
		}
		return p.persist(player, t, effects.KindConvertMagic, "Magic converts to "+strings.Join(elements, "/"), strings.Join(elements, ","))

	case game.FaceTemple:
		res, err := p.persist(player, t, effects.KindDeathMagicImmunity, "Death magic immunity", "")
		if err != nil {
			return Result{}, err
		}
		if len(p.BurialTargets(player)) > 0 {
			res.merge(choice(ChoiceTemple, false, OptionForceBurial))
		}
		return res, nil

	case game.FaceTower:
		for _, a := range p.store.Armies() {
			if a.Owner() != player && len(a.Alive()) > 0 {
				return choice(ChoiceTower, false, OptionMissileAttack), nil
			}
		}
		return Result{}, nil

	case game.FaceVortex:
		return p.persist(player, t, effects.KindVortexReroll, "Reroll one unit per non-maneuver roll", "")

	case game.FaceCastle:
		return choice(ChoiceCastle, true, OptionChooseTerrainType), nil
	}
	return Result{}, nil
}

// persist adds a terrain effect for player unless an identical one is
// already active.
func (p *Processor) persist(player string, t game.Terrain, kind effects.Kind, desc, detail string) (Result, error) {
	for _, e := range p.ledger.OnTerrain(t.Name, kind) {
		if e.Affected == player {
			return Result{}, nil
		}
	}
	e, err := p.ledger.Add(effects.Effect{
		Kind:        kind,
		Description: desc,
		Source:      string(t.Subtype),
		TargetType:  effects.TargetTerrain,
		TargetID:    t.Name,
		Duration:    effects.Permanent,
		Caster:      player,
		Detail:      detail,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Added: []effects.Effect{e}}, nil
}

func (p *Processor) armiesOf(player, location string) []game.Army {
	var out []game.Army
	for _, a := range p.store.ArmiesAt(location) {
		if a.Owner() == player && len(a.Alive()) > 0 {
			out = append(out, a)
		}
	}
	return out
}

// ControllingArmy returns player's first army at terrain in home, campaign,
// horde order.
func (p *Processor) ControllingArmy(player, terrain string) (game.Army, bool) {
	armies := p.armiesOf(player, terrain)
	if len(armies) == 0 {
		return game.Army{}, false
	}
	return armies[0], true
}

func (p *Processor) hasPromotion(player, location string) bool {
	areas, err := p.store.Areas(player)
	if err != nil {
		return false
	}
	for _, a := range p.armiesOf(player, location) {
		if len(promotion.Options(a, areas)) > 0 {
			return true
		}
	}
	return false
}

// RecruitableUnits lists 1-health units in player's DUA.
func (p *Processor) RecruitableUnits(player string) []game.Unit {
	areas, err := p.store.Areas(player)
	if err != nil {
		return nil
	}
	var out []game.Unit
	for _, u := range areas.DUA {
		if u.MaxHealth == 1 {
			out = append(out, u)
		}
	}
	return out
}

// SummonableDragons lists dragons waiting in player's Summoning Pool that
// share an element with t or are Ivory. White dragons never qualify.
func (p *Processor) SummonableDragons(player string, t game.Terrain) []game.Dragon {
	var out []game.Dragon
	for _, d := range p.store.Dragons() {
		if d.Owner != player || d.Location != "" {
			continue
		}
		if slices.Contains(d.Elements, game.ElementWhite) || len(d.Elements) >= 5 {
			continue
		}
		if slices.Contains(d.Elements, game.ElementIvory) || game.SharesElement(d.Elements, t.Elements) {
			out = append(out, d)
		}
	}
	return out
}

// BurialTarget is a unit in an opponent's DUA that Temple can bury.
type BurialTarget struct {
	Player string
	Unit   game.Unit
}

// BurialTargets lists every unit in opponents' DUAs.
func (p *Processor) BurialTargets(player string) []BurialTarget {
	var out []BurialTarget
	for _, pl := range p.store.Players() {
		if pl.Name == player {
			continue
		}
		areas, err := p.store.Areas(pl.Name)
		if err != nil {
			continue
		}
		for _, u := range areas.DUA {
			out = append(out, BurialTarget{Player: pl.Name, Unit: u})
		}
	}
	return out
}

// GroveMove is one BUA record Grove can relocate.
type GroveMove struct {
	Player string
	Unit   game.Unit
}

// GroveCandidates lists the BUA records a Grove option can move: any
// player's non-Dragonkin units to their DUA, the controller's own Dragonkin
// to the Summoning Pool, or the controller's own items to the army.
func (p *Processor) GroveCandidates(player string, opt Option) []GroveMove {
	var out []GroveMove
	for _, pl := range p.store.Players() {
		if opt != OptionMoveBUAToDUA && pl.Name != player {
			continue
		}
		areas, err := p.store.Areas(pl.Name)
		if err != nil {
			continue
		}
		for _, u := range areas.BUA {
			dragonkin := strings.EqualFold(u.Species, game.SpeciesDragonkin)
			item := strings.EqualFold(u.Species, SpeciesItem)
			switch {
			case opt == OptionMoveBUAToDUA && !dragonkin && !item,
				opt == OptionMoveBUAToSummoning && dragonkin,
				opt == OptionMoveBUAToArmy && item:
				out = append(out, GroveMove{Player: pl.Name, Unit: u})
			}
		}
	}
	return out
}
