package game

import "testing"

func TestStepFaceWraps(t *testing.T) {
	tests := []struct {
		name  string
		face  int
		delta int
		want  int
	}{
		{"up from middle", 4, 1, 5},
		{"down from middle", 4, -1, 3},
		{"up wraps 8 to 1", 8, 1, 1},
		{"down wraps 1 to 8", 1, -1, 8},
		{"up to eighth face", 7, 1, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StepFace(tt.face, tt.delta); got != tt.want {
				t.Fatalf("StepFace(%d, %d) = %d, want %d", tt.face, tt.delta, got, tt.want)
			}
		})
	}
}

func TestParseArmyIDRoundTrip(t *testing.T) {
	id := ArmyID{Player: "ana:b", Type: ArmyHorde}
	got, err := ParseArmyID(id.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != id {
		t.Fatalf("got %+v, want %+v", got, id)
	}
	for _, bad := range []string{"", "ana", "ana:", ":home", "ana:navy"} {
		if _, err := ParseArmyID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestElementSets(t *testing.T) {
	if !SharesElement([]Element{ElementAir, ElementFire}, []Element{ElementFire}) {
		t.Fatal("expected shared fire")
	}
	if SharesElement([]Element{ElementAir}, []Element{ElementWater}) {
		t.Fatal("expected no shared element")
	}
	if !SameElements([]Element{ElementAir, ElementFire}, []Element{ElementFire, ElementAir}) {
		t.Fatal("expected same set")
	}
	if SameElements([]Element{ElementAir}, []Element{ElementAir, ElementFire}) {
		t.Fatal("expected different sets")
	}
}

func TestParseEighthFace(t *testing.T) {
	for in, want := range map[string]EighthFace{
		"standing_stones": FaceStandingStones,
		"Dragon Lair":     FaceDragonLair,
		"TOWER":           FaceTower,
	} {
		got, ok := ParseEighthFace(in)
		if !ok || got != want {
			t.Fatalf("ParseEighthFace(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseEighthFace("Moat"); ok {
		t.Fatal("expected unknown face")
	}
}

func TestArmyAliveAndHealth(t *testing.T) {
	a := Army{Units: []Unit{
		{ID: "a", Health: 2, MaxHealth: 2},
		{ID: "b", Health: 0, MaxHealth: 1},
		{ID: "c", Health: 3, MaxHealth: 4},
	}}
	if got := len(a.Alive()); got != 2 {
		t.Fatalf("alive = %d, want 2", got)
	}
	if got := a.TotalHealth(); got != 5 {
		t.Fatalf("total health = %d, want 5", got)
	}
	clone := a.Clone()
	clone.Units[0].Health = 0
	if a.Units[0].Health != 2 {
		t.Fatal("clone mutated original")
	}
}
