package terrain

import (
	"testing"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

func control(t *testing.T, m *game.Memory, name, player string) {
	t.Helper()
	tr, err := m.Terrain(name)
	if err != nil {
		t.Fatalf("terrain: %v", err)
	}
	tr.Face, tr.Controller = 8, player
	if err := m.PutTerrain(tr); err != nil {
		t.Fatalf("put terrain: %v", err)
	}
}

func TestStandingStonesAddsEffectOnce(t *testing.T) {
	m, ledger := newWorld(t)
	control(t, m, "Highland", "ana")
	p := NewProcessor(m, ledger)

	res, err := p.Process("ana")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.Added) != 1 || res.Added[0].Kind != effects.KindConvertMagic || res.Added[0].Detail != "FIRE,EARTH" {
		t.Fatalf("added = %+v", res.Added)
	}
	if len(res.Choices) != 0 {
		t.Fatalf("choices = %+v", res.Choices)
	}

	res, err = p.Process("ana")
	if err != nil {
		t.Fatalf("process again: %v", err)
	}
	if len(res.Added) != 0 {
		t.Fatalf("duplicate effect added: %+v", res.Added)
	}
	if mods := ledger.ResolveModifiers("ana", game.ArmyID{Player: "ana", Type: game.ArmyHome}, game.ActionMagic); len(mods.ConvertMagic) != 2 {
		t.Fatalf("convert = %v", mods.ConvertMagic)
	}
}

func TestCastleEmulation(t *testing.T) {
	m, ledger := newWorld(t)
	control(t, m, "Coastland", "bo")
	p := NewProcessor(m, ledger)

	res, err := p.Process("bo")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.Choices) != 1 || res.Choices[0].Type != ChoiceCastle || !res.Choices[0].Mandatory {
		t.Fatalf("choices = %+v", res.Choices)
	}
	if res.Choices[0].Allows(OptionDecline) {
		t.Fatal("castle choice must not be declinable")
	}

	if _, err := p.Emulate("bo", "Coastland", game.FaceVortex); apperrors.CodeOf(err) != apperrors.CodeChoiceTypeInvalid {
		t.Fatalf("vortex emulation err = %v", err)
	}
	if _, err := p.Emulate("ana", "Coastland", game.FaceTemple); !apperrors.HasClass(err, apperrors.CodeStateSequence) {
		t.Fatalf("non-controller err = %v", err)
	}

	res, err = p.Emulate("bo", "Coastland", game.FaceTemple)
	if err != nil {
		t.Fatalf("emulate: %v", err)
	}
	if len(res.Added) != 2 || res.Added[1].Kind != effects.KindDeathMagicImmunity {
		t.Fatalf("added = %+v", res.Added)
	}
	tr, _ := m.Terrain("Coastland")
	if got := p.EffectiveFace(tr); got != game.FaceTemple {
		t.Fatalf("effective face = %q", got)
	}
}

func TestDragonLairAndTempleChoices(t *testing.T) {
	m, ledger := newWorld(t)
	tr, _ := m.Terrain("Highland")
	tr.Subtype = game.FaceDragonLair
	if err := m.PutTerrain(tr); err != nil {
		t.Fatalf("put terrain: %v", err)
	}
	control(t, m, "Highland", "ana")
	dragons := []game.Dragon{
		{ID: "red", Owner: "ana", Elements: []game.Element{game.ElementFire}},
		{ID: "blue", Owner: "ana", Elements: []game.Element{game.ElementWater}},
		{ID: "ivory", Owner: "ana", Elements: []game.Element{game.ElementIvory}},
		{ID: "white", Owner: "ana", Elements: []game.Element{game.ElementWhite}},
		{ID: "placed", Owner: "ana", Elements: []game.Element{game.ElementEarth}, Location: "Coastland"},
	}
	for _, d := range dragons {
		if err := m.PutDragon(d); err != nil {
			t.Fatalf("put dragon: %v", err)
		}
	}
	p := NewProcessor(m, ledger)

	summonable := p.SummonableDragons("ana", tr)
	if len(summonable) != 2 || summonable[0].ID != "ivory" || summonable[1].ID != "red" {
		t.Fatalf("summonable = %+v", summonable)
	}
	res, err := p.Process("ana")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.Choices) != 1 || res.Choices[0].Type != ChoiceDragonLair || !res.Choices[0].Allows(OptionDecline) {
		t.Fatalf("choices = %+v", res.Choices)
	}

	tr, _ = m.Terrain("Highland")
	tr.Subtype = game.FaceTemple
	if err := m.PutTerrain(tr); err != nil {
		t.Fatalf("put terrain: %v", err)
	}
	res, err = p.Process("ana")
	if err != nil {
		t.Fatalf("process temple: %v", err)
	}
	if len(res.Choices) != 0 || len(res.Added) != 1 {
		t.Fatalf("temple without burial targets = %+v", res)
	}
	if err := m.PutAreas("bo", game.Areas{DUA: []game.Unit{{ID: "dead", MaxHealth: 2}}}); err != nil {
		t.Fatalf("put areas: %v", err)
	}
	res, err = p.Process("ana")
	if err != nil {
		t.Fatalf("process temple: %v", err)
	}
	if len(res.Choices) != 1 || res.Choices[0].Type != ChoiceTemple || len(res.Added) != 0 {
		t.Fatalf("temple with burial targets = %+v", res)
	}
}

func TestParseChoiceType(t *testing.T) {
	if c, err := ParseChoiceType(" Tower_Eighth_Face "); err != nil || c != ChoiceTower {
		t.Fatalf("parse = %q, %v", c, err)
	}
	if _, err := ParseChoiceType("moat"); !apperrors.HasClass(err, apperrors.CodeValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestMinorFor(t *testing.T) {
	placements := []game.MinorPlacement{
		{ID: "m1", Face: game.MinorFaceRevolt, Controller: "ana"},
		{ID: "m2", Face: game.MinorFaceDoubleSaves, Controller: "ana"},
		{ID: "m3", Face: game.MinorFaceLost, Controller: "bo"},
		{ID: "m4", Face: game.MinorFaceFlanked, Controller: "ana", Buried: true},
	}
	if doubleID, halve, bury := MinorFor(placements, "ana", game.ActionMelee); doubleID || !halve || len(bury) != 1 || bury[0] != "m1" {
		t.Fatalf("melee = %v %v %v", doubleID, halve, bury)
	}
	if doubleID, halve, bury := MinorFor(placements, "ana", game.ActionSave); !doubleID || halve || len(bury) != 0 {
		t.Fatalf("save = %v %v %v", doubleID, halve, bury)
	}
	if !Negative(game.MinorFaceFlood) || Negative(game.MinorFaceMagic) {
		t.Fatal("negative faces misclassified")
	}
}
