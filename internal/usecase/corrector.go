package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/clony/backend/internal/domain"
	"github.com/clony/backend/internal/metrics"
)

// Correction defaults
const (
	DefaultMatchCutoff   = 0.7
	DefaultLookupTimeout = 5 * time.Second
)

// confusables maps characters OCR commonly misreads onto the letter intended
var confusables = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'2': 'z',
	'5': 's',
	'8': 'b',
	'|': 'i',
	'[': 'i',
	']': 'i',
	'{': '(',
	'}': ')',
	'!': 'i',
}

// Vocabulary is the growable key set tokens are corrected against
type Vocabulary interface {
	Keys() []string
	Contains(name string) bool
	Learn(name string) bool
}

// CorrectorConfig holds configuration for the token corrector
type CorrectorConfig struct {
	MatchCutoff   float64
	LookupTimeout time.Duration
}

// Corrector resolves noisy tokens to canonical ingredient names
type Corrector struct {
	vocab         Vocabulary
	lookup        domain.IngredientLookup
	matchCutoff   float64
	lookupTimeout time.Duration
	logger        *zap.Logger
}

// NewCorrector creates a corrector. A nil lookup disables the remote fallback.
func NewCorrector(vocab Vocabulary, lookup domain.IngredientLookup, config CorrectorConfig, logger *zap.Logger) *Corrector {
	cutoff := config.MatchCutoff
	if cutoff <= 0 || cutoff > 1 {
		cutoff = DefaultMatchCutoff
	}

	timeout := config.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Corrector{
		vocab:         vocab,
		lookup:        lookup,
		matchCutoff:   cutoff,
		lookupTimeout: timeout,
		logger:        logger,
	}
}

// Correct returns the best canonical name for token. It never fails and
// never returns an empty string for non-empty input.
func (c *Corrector) Correct(ctx context.Context, token string) string {
	return c.CorrectDetailed(ctx, token).Name
}

// CorrectDetailed runs remap, local fuzzy match and remote lookup in order,
// stopping at the first step that resolves the token.
func (c *Corrector) CorrectDetailed(ctx context.Context, token string) domain.CorrectedIngredient {
	remapped := remapConfusables(token)
	if remapped == "" {
		remapped = strings.TrimSpace(token)
	}
	if remapped == "" {
		remapped = token
	}

	result := c.resolve(ctx, token, remapped)
	metrics.CorrectionsTotal.WithLabelValues(string(result.Source)).Inc()

	c.logger.Debug("corrected token",
		zap.String("input", token),
		zap.String("name", result.Name),
		zap.String("source", string(result.Source)),
		zap.Float64("similarity", result.Similarity))

	return result
}

func (c *Corrector) resolve(ctx context.Context, token, remapped string) domain.CorrectedIngredient {
	result := domain.CorrectedIngredient{Input: token, Name: remapped, Source: domain.SourcePassthrough}

	// Step 1: Exact key, as written first since keys are case sensitive
	if written := strings.TrimSpace(norm.NFC.String(token)); written != "" && c.vocab.Contains(written) {
		result.Name = written
		result.Matched = true
		result.Source = domain.SourceExact
		result.Similarity = 1
		return result
	}
	if c.vocab.Contains(remapped) {
		result.Matched = true
		result.Source = domain.SourceExact
		result.Similarity = 1
		return result
	}

	// Step 2: Closest key above the cutoff
	if match, ok := bestMatch(remapped, c.vocab.Keys(), c.matchCutoff); ok {
		result.Name = match.name
		result.Matched = true
		result.Source = domain.SourceFuzzy
		result.Similarity = match.score
		return result
	}

	// Step 3: Remote lookup for anything that is not a stray character
	if c.lookup != nil && utf8.RuneCountInString(strings.TrimSpace(token)) >= minTokenRunes {
		if name, ok := c.lookupRemote(ctx, remapped); ok {
			result.Name = name
			result.Matched = true
			result.Source = domain.SourceRemote
			result.Similarity = similarity(remapped, name)
			return result
		}
	}

	// Step 4: Pass the remapped text through
	return result
}

// lookupRemote queries the remote service under a timeout and learns the
// resolved name. Failures are logged and reported as no match.
func (c *Corrector) lookupRemote(ctx context.Context, query string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	record, err := c.lookup.Lookup(ctx, query)
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, domain.ErrIngredientNotFound):
			reason = "not_found"
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		case errors.Is(err, domain.ErrRateLimited):
			reason = "rate_limited"
		}
		metrics.LookupFailuresTotal.WithLabelValues(reason).Inc()

		if reason == "not_found" {
			c.logger.Debug("remote lookup found nothing", zap.String("query", query))
		} else {
			c.logger.Warn("remote lookup failed, passing token through",
				zap.String("query", query),
				zap.Error(err))
		}
		return "", false
	}

	if record == nil {
		return "", false
	}
	name := norm.NFC.String(strings.TrimSpace(record.IngdName))
	if name == "" {
		metrics.LookupFailuresTotal.WithLabelValues("malformed").Inc()
		return "", false
	}

	if c.vocab.Learn(name) {
		c.logger.Info("learned ingredient name from remote lookup",
			zap.String("query", query),
			zap.String("name", name))
	}
	return name, true
}

// remapConfusables lowercases token and replaces visually confusable characters
func remapConfusables(token string) string {
	lowered := strings.ToLower(norm.NFC.String(strings.TrimSpace(token)))
	return strings.Map(func(r rune) rune {
		if repl, ok := confusables[r]; ok {
			return repl
		}
		return r
	}, lowered)
}
