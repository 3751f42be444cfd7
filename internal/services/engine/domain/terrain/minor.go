package terrain

import "github.com/louisbranch/dragondice/internal/services/engine/domain/game"

// MinorModifier is how a minor terrain face changes one action's roll.
type MinorModifier struct {
	Action game.ActionType
	// DoubleID doubles ID contributions for the action.
	DoubleID bool
	// Halve floors the action's total by half and buries the placement.
	Halve bool
}

var minorModifiers = map[game.MinorFace]MinorModifier{
	game.MinorFaceDoubleSaves:     {Action: game.ActionSave, DoubleID: true},
	game.MinorFaceDoubleManeuvers: {Action: game.ActionManeuver, DoubleID: true},
	game.MinorFaceRevolt:          {Action: game.ActionMelee, Halve: true},
	game.MinorFaceLandslide:       {Action: game.ActionMissile, Halve: true},
	game.MinorFaceLost:            {Action: game.ActionSave, Halve: true},
	game.MinorFaceFlanked:         {Action: game.ActionSave, Halve: true},
	game.MinorFaceFlood:           {Action: game.ActionManeuver, Halve: true},
}

// MinorEffect returns the modifier face applies, if any.
func MinorEffect(face game.MinorFace) (MinorModifier, bool) {
	m, ok := minorModifiers[face]
	return m, ok
}

// Negative reports whether face is a negative face that buries its
// placement once applied.
func Negative(face game.MinorFace) bool {
	m, ok := minorModifiers[face]
	return ok && m.Halve
}

// MinorFor returns the modifiers the placements controlled by player apply
// to action, plus the ids of placements to bury.
func MinorFor(placements []game.MinorPlacement, player string, action game.ActionType) (doubleID, halve bool, bury []string) {
	for _, pl := range placements {
		if pl.Buried || pl.Controller != player {
			continue
		}
		m, ok := minorModifiers[pl.Face]
		if !ok || m.Action != action {
			continue
		}
		if m.DoubleID {
			doubleID = true
		}
		if m.Halve {
			halve = true
			bury = append(bury, pl.ID)
		}
	}
	return doubleID, halve, bury
}

// Bury marks placements as buried so they stop applying.
func Bury(store game.TerrainStore, terrain string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, pl := range store.MinorPlacements(terrain) {
		for _, id := range ids {
			if pl.ID == id {
				pl.Buried = true
				if err := store.PutMinorPlacement(pl); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
