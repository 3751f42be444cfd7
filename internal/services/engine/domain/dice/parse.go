// Package dice parses human-reported roll strings into icon tallies.
//
// A roll string is a comma-separated list of tokens of the form
//
//	<count>? <icon> (":" <sai>)?
//
// where count defaults to 1. Tokens that cannot be interpreted are dropped
// and reported as warnings; parsing never fails outright.
package dice

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
)

// Icon is a die result type.
type Icon string

const (
	IconMelee    Icon = "melee"
	IconMissile  Icon = "missile"
	IconMagic    Icon = "magic"
	IconSave     Icon = "save"
	IconID       Icon = "id"
	IconSAI      Icon = "sai"
	IconManeuver Icon = "maneuver"
	// Dragon-only icons.
	IconClaw   Icon = "claw"
	IconJaws   Icon = "jaws"
	IconTail   Icon = "tail"
	IconBreath Icon = "breath"
)

var iconAliases = map[string]Icon{
	"m": IconMelee, "melee": IconMelee,
	"mi": IconMissile, "missile": IconMissile,
	"mg": IconMagic, "magic": IconMagic,
	"s": IconSave, "save": IconSave, "saves": IconSave,
	"id": IconID,
	"sai": IconSAI,
	"ma": IconManeuver, "maneuver": IconManeuver,
	"claw": IconClaw,
	"jaws": IconJaws, "bite": IconJaws,
	"tail": IconTail,
	"breath": IconBreath,
}

// SAI is a Special Action Icon subtype.
type SAI string

const (
	SAIUnspecified   SAI = ""
	SAIBullseye      SAI = "bullseye"
	SAIDoubler       SAI = "doubler"
	SAITripler       SAI = "tripler"
	SAIRecruit       SAI = "recruit"
	SAIMagicBolt     SAI = "magic_bolt"
	SAISmite         SAI = "smite"
	SAIHypnoticGlare SAI = "hypnotic_glare"
	SAIChoke         SAI = "choke"
)

func parseSAI(s string) (SAI, bool) {
	v := SAI(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
	switch v {
	case SAIBullseye, SAIDoubler, SAITripler, SAIRecruit, SAIMagicBolt, SAISmite, SAIHypnoticGlare, SAIChoke:
		return v, true
	}
	return "", false
}

// Token is one interpreted entry of a roll string.
type Token struct {
	Icon  Icon
	Count int
	SAI   SAI
}

func (t Token) String() string {
	if t.SAI != SAIUnspecified {
		return fmt.Sprintf("%d %s:%s", t.Count, t.Icon, t.SAI)
	}
	return fmt.Sprintf("%d %s", t.Count, t.Icon)
}

// Result is the tally of a parsed roll string.
type Result struct {
	Tokens   []Token
	Warnings []*apperrors.Error
	icons    map[Icon]int
	sais     map[SAI]int
}

// Count returns the total of icon across all tokens. SAI tokens count
// toward IconSAI whatever their subtype.
func (r Result) Count(icon Icon) int {
	return r.icons[icon]
}

// SAICount returns the number of SAIs of the given subtype.
func (r Result) SAICount(sai SAI) int {
	return r.sais[sai]
}

// Empty reports whether no token was interpreted.
func (r Result) Empty() bool {
	return len(r.Tokens) == 0
}

// String renders the tally in canonical form, icons in name order.
func (r Result) String() string {
	keys := make([]string, 0, len(r.icons)+len(r.sais))
	for icon, n := range r.icons {
		if icon == IconSAI {
			continue
		}
		keys = append(keys, fmt.Sprintf("%d %s", n, icon))
	}
	for sai, n := range r.sais {
		if sai == SAIUnspecified {
			keys = append(keys, fmt.Sprintf("%d sai", n))
			continue
		}
		keys = append(keys, fmt.Sprintf("%d sai:%s", n, sai))
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.SplitN(keys[i], " ", 2)[1] < strings.SplitN(keys[j], " ", 2)[1]
	})
	return strings.Join(keys, ", ")
}

// Parse interprets a roll string. It is pure: the same input always yields
// the same tally.
func Parse(s string) Result {
	r := Result{icons: map[Icon]int{}, sais: map[SAI]int{}}
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		tok, warn := parseToken(raw)
		if warn != nil {
			r.Warnings = append(r.Warnings, warn)
			continue
		}
		r.Tokens = append(r.Tokens, tok)
		r.icons[tok.Icon] += tok.Count
		if tok.Icon == IconSAI {
			r.sais[tok.SAI] += tok.Count
		}
	}
	return r
}

func parseToken(raw string) (Token, *apperrors.Error) {
	lower := strings.ToLower(raw)
	i := 0
	for i < len(lower) && lower[i] >= '0' && lower[i] <= '9' {
		i++
	}
	count := 1
	if i > 0 {
		n, err := strconv.Atoi(lower[:i])
		if err != nil || n <= 0 {
			return Token{}, tokenWarning(apperrors.CodeDiceCountInvalid, raw)
		}
		count = n
	}

	name := strings.TrimSpace(lower[i:])
	subtype := ""
	if j := strings.Index(name, ":"); j >= 0 {
		name, subtype = strings.TrimSpace(name[:j]), name[j+1:]
	}
	icon, ok := iconAliases[name]
	if !ok {
		return Token{}, tokenWarning(apperrors.CodeDiceTokenUnknown, raw)
	}

	tok := Token{Icon: icon, Count: count}
	if subtype == "" {
		return tok, nil
	}
	if icon != IconSAI {
		return Token{}, tokenWarning(apperrors.CodeDiceTokenUnknown, raw)
	}
	sai, ok := parseSAI(subtype)
	if !ok {
		return Token{}, tokenWarning(apperrors.CodeDiceTokenUnknown, raw)
	}
	tok.SAI = sai
	return tok, nil
}

func tokenWarning(code apperrors.Code, raw string) *apperrors.Error {
	return apperrors.WithMetadata(code, fmt.Sprintf("dropped dice token %q", raw), map[string]string{
		"Field": "dice",
		"Token": raw,
	})
}
