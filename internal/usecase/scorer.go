package usecase

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/clony/backend/internal/domain"
)

// Score bounds and badge thresholds
const (
	baseScore         = 100
	minScore          = 60
	maxScore          = 100
	concernMatchBonus = 2
	oilPenalty        = 1

	bestMatchThreshold = 90
	cautionThreshold   = 70

	maxTopIngredients = 3
	maxFitHighlights  = 3
	maxSummaryEffects = 3
)

// Badge labels
const (
	BadgeBestMatch    = "찰떡궁합"
	BadgeSafeToUse    = "안심사용"
	BadgeNeedsCaution = "주의필요"
)

// Fit highlight labels
const (
	HighlightSoothing  = "자극 진정"
	HighlightHydration = "수분 공급"
	HighlightPoreCare  = "모공 케어"
)

// defaultEffectSummary stands in for the effect list when no ingredient documents one
const defaultEffectSummary = "전반적인 피부 컨디션"

// likelyIngredientSuffixes mark unmatched tokens that still read like an ingredient
var likelyIngredientSuffixes = []string{"extract", "oil", "acid", "water", "glycerin", "diol"}

// oilMarkers flag oil-based ingredients by localized or raw name
var oilMarkers = []string{"오일", "oil"}

// exposedCategories are the composition counts returned to callers
var exposedCategories = []domain.Category{
	domain.CategoryActive,
	domain.CategoryMoisturizer,
	domain.CategoryCalming,
}

// Catalog resolves a corrected name to registry metadata
type Catalog interface {
	Get(name string) (domain.CanonicalIngredient, bool)
	Find(token string) (domain.CanonicalIngredient, bool)
}

// Scorer rates an ingredient list against a skin-type code
type Scorer struct {
	catalog Catalog
}

// NewScorer creates a scorer backed by catalog
func NewScorer(catalog Catalog) *Scorer {
	return &Scorer{catalog: catalog}
}

// Score builds the compatibility result for ingredients and skinType.
// Unknown skin-type characters are ignored; the score is clamped to [60, 100].
func (s *Scorer) Score(ingredients []string, skinType string) domain.CompatibilityResult {
	concerns := domain.ActiveConcerns(skinType)
	oily := domain.IsOily(skinType)

	score := baseScore
	composition := make(map[domain.Category]int, len(domain.Categories))
	guide := domain.UsageGuide{Time: domain.TimeAny}
	var conflicts, cautions []string
	enriched := []domain.EnrichedIngredient{}
	var effects []string

	for _, ing := range ingredients {
		token := strings.TrimSpace(norm.NFC.String(ing))
		if token == "" {
			continue
		}
		clean := strings.ToLower(token)
		info, found := s.lookup(token, clean)

		nameKo := clean
		category := domain.CategoryOthers
		timeOfUse := domain.TimeAny
		if found {
			nameKo = info.LocalizedName()
			category = info.Category
			timeOfUse = info.TimeOfUse
		}

		// Composition
		composition[category]++

		// Score: concern match bonus, oil penalty for oily skin
		matched := matchedConcerns(info.Concerns(), concerns)
		if len(matched) > 0 {
			score += concernMatchBonus
		}
		if oily && containsAny(strings.ToLower(nameKo), oilMarkers) {
			score -= oilPenalty
		}

		// Usage guide: Night always wins over Day
		switch timeOfUse {
		case domain.TimeNight:
			guide.Time = domain.TimeNight
			cautions = append(cautions, fmt.Sprintf("%s: 햇빛에 민감할 수 있어 밤 사용 권장", nameKo))
		case domain.TimeDay:
			if guide.Time != domain.TimeNight {
				guide.Time = domain.TimeDay
			}
		}
		conflicts = append(conflicts, info.Conflicts...)

		if !isLikelyIngredient(clean, info.Effect, category) {
			continue
		}
		enriched = append(enriched, domain.EnrichedIngredient{
			Name:            ing,
			NameKo:          nameKo,
			Benefit:         info.Effect,
			Type:            category,
			MatchedConcerns: matched,
		})
		if info.Effect != "" {
			effects = append(effects, info.Effect)
		}
	}

	score = max(minScore, min(maxScore, score))

	guide.Conflicts = dedupe(conflicts)
	slices.Sort(guide.Conflicts)
	guide.Cautions = dedupe(cautions)

	top := topIngredients(enriched)
	effectSummary := summarizeEffects(effects)

	exposed := make(map[domain.Category]int, len(exposedCategories))
	for _, c := range exposedCategories {
		exposed[c] = composition[c]
	}

	return domain.CompatibilityResult{
		Score:          score,
		SkinType:       skinType,
		Badge:          badgeFor(score),
		FitHighlights:  fitHighlights(composition, effectSummary),
		Ingredients:    enriched,
		Description:    describe(composition, top, effects, effectSummary),
		TopIngredients: top,
		Composition:    exposed,
		UsageGuide:     guide,
	}
}

// lookup resolves an ingredient exactly as written, then by its lowercase
// form, and only then by substring in the same order. Keys are case sensitive.
func (s *Scorer) lookup(token, lower string) (domain.CanonicalIngredient, bool) {
	if info, ok := s.catalog.Get(token); ok {
		return info, true
	}
	if info, ok := s.catalog.Get(lower); ok {
		return info, true
	}
	if info, ok := s.catalog.Find(token); ok {
		return info, true
	}
	return s.catalog.Find(lower)
}

// matchedConcerns returns the ingredient concerns active for the user
func matchedConcerns(ingredientConcerns []string, active map[string]bool) []string {
	var matched []string
	for _, c := range ingredientConcerns {
		if active[c] {
			matched = append(matched, c)
		}
	}
	return matched
}

// isLikelyIngredient keeps documented ingredients and tokens with an
// ingredient-like suffix, dropping segmentation noise
func isLikelyIngredient(clean, benefit string, category domain.Category) bool {
	if benefit != "" || category != domain.CategoryOthers {
		return true
	}
	for _, suffix := range likelyIngredientSuffixes {
		if strings.HasSuffix(clean, suffix) {
			return true
		}
	}
	return false
}

// topIngredients ranks Active, then Calming, then the rest, stable within each
// tier, and returns the first three distinct localized names
func topIngredients(enriched []domain.EnrichedIngredient) []string {
	ranked := slices.Clone(enriched)
	slices.SortStableFunc(ranked, func(a, b domain.EnrichedIngredient) int {
		return tier(a.Type) - tier(b.Type)
	})

	top := []string{}
	for _, ing := range ranked {
		if len(top) == maxTopIngredients {
			break
		}
		if !slices.Contains(top, ing.NameKo) {
			top = append(top, ing.NameKo)
		}
	}
	return top
}

func tier(c domain.Category) int {
	switch c {
	case domain.CategoryActive:
		return 0
	case domain.CategoryCalming:
		return 1
	}
	return 2
}

// summarizeEffects joins the first three distinct effects
func summarizeEffects(effects []string) string {
	unique := dedupe(effects)
	if len(unique) == 0 {
		return defaultEffectSummary
	}
	if len(unique) > maxSummaryEffects {
		unique = unique[:maxSummaryEffects]
	}
	return strings.Join(unique, ", ")
}

func describe(composition map[domain.Category]int, top, effects []string, effectSummary string) string {
	switch {
	case composition[domain.CategoryActive] > 0:
		return fmt.Sprintf("핵심 성분으로 %s 등이 포함되어 있어 %s에 도움을 줍니다.", strings.Join(top, ", "), effectSummary)
	case len(effects) > 0:
		return fmt.Sprintf("주요 성분이 %s 효과를 제공합니다.", effectSummary)
	}
	return ""
}

func badgeFor(score int) string {
	switch {
	case score >= bestMatchThreshold:
		return BadgeBestMatch
	case score < cautionThreshold:
		return BadgeNeedsCaution
	}
	return BadgeSafeToUse
}

// fitHighlights derives up to three highlights in fixed order: soothing,
// hydration, pore care. Values saturate and depend only on the tallies.
func fitHighlights(composition map[domain.Category]int, effectSummary string) []domain.FitHighlight {
	calming := composition[domain.CategoryCalming]
	moisturizer := composition[domain.CategoryMoisturizer]
	active := composition[domain.CategoryActive]

	highlights := []domain.FitHighlight{}
	if calming > 0 || strings.Contains(effectSummary, "진정") {
		highlights = append(highlights, domain.FitHighlight{Label: HighlightSoothing, Value: min(100, 70+10*calming)})
	}
	if moisturizer > 0 || strings.Contains(effectSummary, "보습") {
		highlights = append(highlights, domain.FitHighlight{Label: HighlightHydration, Value: min(100, 75+5*moisturizer)})
	}
	if strings.Contains(effectSummary, "피지") || strings.Contains(effectSummary, "트러블") {
		highlights = append(highlights, domain.FitHighlight{Label: HighlightPoreCare, Value: min(95, 80+5*active)})
	}
	if len(highlights) > maxFitHighlights {
		highlights = highlights[:maxFitHighlights]
	}
	return highlights
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// dedupe drops repeated strings, keeping first occurrences in order.
// The result is never nil.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
