package domain

import (
	"fmt"
	"strings"
)

// Concern keywords matched against an ingredient's documented concern
const (
	ConcernSebum     = "피지"
	ConcernDryness   = "건조"
	ConcernSensitive = "민감"
	ConcernWrinkle   = "주름"
	ConcernDullness  = "칙칙함"
)

// concernFlags maps skin-type code characters to the concern they activate
var concernFlags = map[rune]string{
	'O': ConcernSebum,
	'D': ConcernDryness,
	'S': ConcernSensitive,
	'W': ConcernWrinkle,
	'P': ConcernDullness,
}

// skinTypeAxes are the four Baumann axes in code order
var skinTypeAxes = [4]string{"OD", "SR", "PN", "WT"}

// SkinType is a four-letter Baumann code such as "OSNW"
type SkinType string

// ParseSkinType validates a four-letter code with one letter per axis
func ParseSkinType(code string) (SkinType, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != len(skinTypeAxes) {
		return "", fmt.Errorf("%w: %q must have %d letters", ErrInvalidSkinType, code, len(skinTypeAxes))
	}
	for i, axis := range skinTypeAxes {
		if !strings.ContainsRune(axis, rune(code[i])) {
			return "", fmt.Errorf("%w: %q position %d must be one of %s", ErrInvalidSkinType, code, i+1, axis)
		}
	}
	return SkinType(code), nil
}

// ActiveConcerns derives the user's concerns from a skin-type code.
// Characters are read independently; unknown ones are ignored.
func ActiveConcerns(code string) map[string]bool {
	concerns := make(map[string]bool)
	for _, r := range strings.ToUpper(code) {
		if c, ok := concernFlags[r]; ok {
			concerns[c] = true
		}
	}
	return concerns
}

// IsOily reports whether the code flags oily skin
func IsOily(code string) bool {
	return strings.ContainsRune(strings.ToUpper(code), 'O')
}
