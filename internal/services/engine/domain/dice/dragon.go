package dice

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
)

// DragonFace groups the named faces of a dragon die by effect.
type DragonFace string

const (
	DragonJaws     DragonFace = "Jaws"
	DragonBreath   DragonFace = "Breath"
	DragonClaw     DragonFace = "Claw"
	DragonWing     DragonFace = "Wing"
	DragonBelly    DragonFace = "Belly"
	DragonTail     DragonFace = "Tail"
	DragonTreasure DragonFace = "Treasure"
)

// Roll is one face reported for a dragon, keeping the exact name given.
type Roll struct {
	Face DragonFace
	Name string
}

// ParseDragonFace maps a face name such as "Wing_Left", "Claw_Front_Right"
// or "Dragon_Breath" to its effect group.
func ParseDragonFace(s string) (Roll, error) {
	name := strings.TrimSpace(s)
	key := strings.ToLower(strings.NewReplacer(" ", "_", "-", "_").Replace(name))
	key = strings.TrimPrefix(key, "dragon_")

	var face DragonFace
	switch {
	case key == "jaws" || key == "bite":
		face = DragonJaws
	case key == "breath":
		face = DragonBreath
	case key == "treasure":
		face = DragonTreasure
	case key == "claw" || strings.HasPrefix(key, "claw_"):
		face = DragonClaw
	case key == "wing" || strings.HasPrefix(key, "wing_"):
		face = DragonWing
	case key == "belly" || strings.HasPrefix(key, "belly_"):
		face = DragonBelly
	case key == "tail" || strings.HasPrefix(key, "tail_"):
		face = DragonTail
	default:
		return Roll{}, apperrors.WithMetadata(apperrors.CodeDragonFaceUnknown,
			fmt.Sprintf("unknown dragon face %q", s),
			map[string]string{"Field": "face", "Token": s})
	}
	return Roll{Face: face, Name: name}, nil
}

// ParseDragonFaces parses a comma-separated face sequence, the first face
// followed by any rerolls. Unknown faces are dropped with a warning.
func ParseDragonFaces(s string) ([]Roll, []*apperrors.Error) {
	var rolls []Roll
	var warnings []*apperrors.Error
	for _, raw := range strings.Split(s, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		roll, err := ParseDragonFace(raw)
		if err != nil {
			warnings = append(warnings, err.(*apperrors.Error))
			continue
		}
		rolls = append(rolls, roll)
	}
	return rolls, warnings
}
