package domain

import "strings"

// Category is the component type of a canonical ingredient
type Category string

const (
	CategoryMoisturizer  Category = "Moisturizer"
	CategoryCalming      Category = "Calming"
	CategoryActive       Category = "Active"
	CategoryPreservative Category = "Preservative"
	CategorySolvent      Category = "Solvent"
	CategorySunscreen    Category = "Sunscreen"
	CategoryBase         Category = "Base"
	CategoryOthers       Category = "Others"
)

// Categories lists every category in histogram order
var Categories = []Category{
	CategoryMoisturizer,
	CategoryCalming,
	CategoryActive,
	CategoryPreservative,
	CategorySolvent,
	CategorySunscreen,
	CategoryBase,
	CategoryOthers,
}

// ParseCategory maps a label onto the fixed enumeration (case-insensitive).
// Empty labels map to Others.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryOthers, true
	}
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return CategoryOthers, false
}

// TimeOfUse is the recommended time of day for applying an ingredient
type TimeOfUse string

const (
	TimeAny   TimeOfUse = "Any"
	TimeDay   TimeOfUse = "Day"
	TimeNight TimeOfUse = "Night"
)

// ParseTimeOfUse maps a label onto Any, Day or Night. Empty labels map to Any.
func ParseTimeOfUse(s string) (TimeOfUse, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return TimeAny, true
	case "day":
		return TimeDay, true
	case "night":
		return TimeNight, true
	}
	return TimeAny, false
}

// CanonicalIngredient is a registry entry keyed by its canonical name
type CanonicalIngredient struct {
	Name        string    `json:"name" yaml:"name"`
	NameEn      string    `json:"nameEn,omitempty" yaml:"nameEn"`
	NameKo      string    `json:"nameKo,omitempty" yaml:"nameKo"`
	Effect      string    `json:"effect,omitempty" yaml:"effect"`
	Concern     string    `json:"concern,omitempty" yaml:"concern"` // "/"-separated concern keywords
	SkinType    string    `json:"skinType,omitempty" yaml:"skinType"`
	Category    Category  `json:"category" yaml:"category"`
	TimeOfUse   TimeOfUse `json:"timeOfUse" yaml:"timeOfUse"`
	Conflicts   []string  `json:"conflicts,omitempty" yaml:"conflicts"`
	Description string    `json:"description,omitempty" yaml:"description"`
	GoodFor     []string  `json:"goodFor,omitempty" yaml:"goodFor"`
	Cautions    []string  `json:"cautions,omitempty" yaml:"cautions"`
}

// LocalizedName returns the Korean display name, falling back to the key
func (c CanonicalIngredient) LocalizedName() string {
	if c.NameKo != "" {
		return c.NameKo
	}
	return c.Name
}

// Concerns splits the concern field into its keywords
func (c CanonicalIngredient) Concerns() []string {
	var out []string
	for _, part := range strings.Split(c.Concern, "/") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CanonicalRecord is the minimal record returned by a remote ingredient lookup
type CanonicalRecord struct {
	IngdName          string `json:"ingdName"`
	IngdEngName       string `json:"ingdEngName,omitempty"`
	CasNo             string `json:"casNo,omitempty"`
	OriginMjrKoraNm   string `json:"originMjrKoraNm,omitempty"`
	OriginDefntKoraNm string `json:"originDefntKoraNm,omitempty"`
}

// CorrectionSource records which correction step produced a result
type CorrectionSource string

const (
	SourceExact       CorrectionSource = "exact"
	SourceFuzzy       CorrectionSource = "fuzzy"
	SourceRemote      CorrectionSource = "remote"
	SourcePassthrough CorrectionSource = "passthrough"
)

// CorrectedIngredient is the output of token correction
type CorrectedIngredient struct {
	Input      string           `json:"input"`
	Name       string           `json:"name"`
	Matched    bool             `json:"matched"`
	Source     CorrectionSource `json:"source"`
	Similarity float64          `json:"similarity"`
}

// EnrichedIngredient is a corrected ingredient joined with registry metadata
type EnrichedIngredient struct {
	Name            string   `json:"name"`
	NameKo          string   `json:"nameKo"`
	Benefit         string   `json:"benefit"`
	Type            Category `json:"type"`
	MatchedConcerns []string `json:"matchedConcerns,omitempty"`
}

// FitHighlight is a labeled 0-100 value derived from the composition
type FitHighlight struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// UsageGuide aggregates time-of-use, conflicts and cautions across a product
type UsageGuide struct {
	Time      TimeOfUse `json:"time"`
	Conflicts []string  `json:"conflicts"`
	Cautions  []string  `json:"caution"`
}

// CompatibilityResult is the scored assessment of an ingredient list for a skin type
type CompatibilityResult struct {
	Score          int                  `json:"matchingScore"`
	SkinType       string               `json:"skinType"`
	Badge          string               `json:"badge"`
	FitHighlights  []FitHighlight       `json:"fitHighlights"`
	Ingredients    []EnrichedIngredient `json:"ingredients"`
	Description    string               `json:"description"`
	TopIngredients []string             `json:"topIngredients"`
	Composition    map[Category]int     `json:"composition"`
	UsageGuide     UsageGuide           `json:"usageGuide"`
}

// AnalysisReport is the output of the combined segment, correct and score pipeline
type AnalysisReport struct {
	Tokens    []string              `json:"tokens"`
	Corrected []CorrectedIngredient `json:"corrected"`
	Result    CompatibilityResult   `json:"result"`
}

// SearchHit is one result of an ingredient dictionary search
type SearchHit struct {
	Name        string   `json:"name"`
	NameEn      string   `json:"nameEn,omitempty"`
	CasNo       string   `json:"casNo,omitempty"`
	Effect      string   `json:"effect,omitempty"`
	Description string   `json:"description,omitempty"`
	GoodFor     []string `json:"goodFor,omitempty"`
	Caution     string   `json:"caution,omitempty"`
	Similarity  float64  `json:"similarity"`
	Source      string   `json:"source"` // "remote" or "local"
}
