package usecase

import (
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/clony/backend/internal/domain"
)

// DefaultOCRMinConfidence is the block confidence a structured OCR block must exceed
const DefaultOCRMinConfidence = 0.35

// minTokenRunes is the shortest token worth correcting
const minTokenRunes = 2

// Compiled patterns for label segmentation
var (
	// Matches a leading label header like "전성분:" or "Ingredients."
	headerPattern = regexp.MustCompile(`(?i)^(전성분|진성분|성분|ingredients)[\s:.]*`)

	// Matches URLs and bare domains like "brand.co.kr"
	urlPattern = regexp.MustCompile(`(?i)https?://|www\.|[a-z0-9-]+\.(com|net|org|co\.kr|kr)\b`)

	// Matches phone numbers like "080-123-4567"
	phonePattern = regexp.MustCompile(`\d{2,}-\d{3,}-\d{4}`)

	lineBreakReplacer  = strings.NewReplacer("\r\n", ",", "\r", ",", "\n", ",")
	blockSplitReplacer = strings.NewReplacer("·", ",", "/", ",")
)

// residualPunctuation is trimmed from both ends of a fragment
const residualPunctuation = ".,-•·[]() \t"

// boilerplateWords mark usage directions, storage warnings and seller labels
var boilerplateWords = []string{
	"사용", "주의", "보관", "반품", "교환", "소비자", "전문의", "상담", "어린이",
	"직사광선", "도포", "씻어", "경우", "화장품", "책임", "판매", "제조",
}

// Segmenter splits recognized label text into candidate ingredient tokens
type Segmenter struct {
	minConfidence float64
	logger        *zap.Logger
}

// NewSegmenter creates a segmenter. Blocks at or below minConfidence are
// discarded; a negative value selects DefaultOCRMinConfidence.
func NewSegmenter(minConfidence float64, logger *zap.Logger) *Segmenter {
	if minConfidence < 0 {
		minConfidence = DefaultOCRMinConfidence
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Segmenter{
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// Segment yields cleaned, deduplicated tokens from a flat OCR transcription.
// The sequence is lazy and can be ranged over more than once.
func (s *Segmenter) Segment(raw string) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		for _, fragment := range strings.Split(lineBreakReplacer.Replace(raw), ",") {
			if !s.emit(fragment, seen, yield) {
				return
			}
		}
	}
}

// SegmentBlocks yields tokens from structured OCR blocks. Low-confidence
// blocks are dropped before any text filtering, and each kept block is
// further split on middle dots and slashes.
func (s *Segmenter) SegmentBlocks(blocks []domain.OCRBlock) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		for _, block := range blocks {
			if block.Confidence <= s.minConfidence {
				s.logger.Debug("dropped low-confidence block",
					zap.String("text", block.Text),
					zap.Float64("confidence", block.Confidence))
				continue
			}
			text := blockSplitReplacer.Replace(lineBreakReplacer.Replace(block.Text))
			for _, fragment := range strings.Split(text, ",") {
				if !s.emit(fragment, seen, yield) {
					return
				}
			}
		}
	}
}

// SegmentAll collects Segment into a slice
func (s *Segmenter) SegmentAll(raw string) []string {
	return collect(s.Segment(raw))
}

// emit cleans one fragment and yields it unless it was filtered or already
// seen. It reports whether iteration should continue.
func (s *Segmenter) emit(fragment string, seen map[string]struct{}, yield func(string) bool) bool {
	token, ok := cleanFragment(fragment)
	if !ok {
		return true
	}
	if _, dup := seen[token]; dup {
		return true
	}
	seen[token] = struct{}{}
	return yield(token)
}

// cleanFragment applies the per-fragment filters and returns the cleaned token
func cleanFragment(fragment string) (string, bool) {
	// Step 1: Normalize and trim, then enforce the length floor
	clean := strings.TrimSpace(norm.NFC.String(fragment))
	if utf8.RuneCountInString(clean) < minTokenRunes {
		return "", false
	}

	// Step 2: Strip a leading header like "전성분:" and re-check length
	clean = strings.TrimSpace(headerPattern.ReplaceAllString(clean, ""))
	if utf8.RuneCountInString(clean) < minTokenRunes {
		return "", false
	}

	// Step 3: Drop usage directions and regulatory boilerplate
	for _, word := range boilerplateWords {
		if strings.Contains(clean, word) {
			return "", false
		}
	}

	// Step 4: Drop contact info
	if urlPattern.MatchString(clean) || phonePattern.MatchString(clean) {
		return "", false
	}

	// Step 5: Strip residual punctuation left by the split
	clean = strings.Trim(clean, residualPunctuation)
	if utf8.RuneCountInString(clean) < minTokenRunes {
		return "", false
	}

	return clean, true
}

// collect drains a sequence into a non-nil slice
func collect(seq iter.Seq[string]) []string {
	out := []string{}
	for v := range seq {
		out = append(out, v)
	}
	return out
}
