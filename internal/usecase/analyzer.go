package usecase

import (
	"context"
	"iter"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clony/backend/internal/domain"
	"github.com/clony/backend/internal/metrics"
)

// DefaultCorrectionConcurrency bounds parallel token corrections per analysis
const DefaultCorrectionConcurrency = 8

// Analyzer threads recognized text through segmentation, correction and scoring
type Analyzer struct {
	segmenter   *Segmenter
	corrector   *Corrector
	scorer      *Scorer
	concurrency int
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewAnalyzer creates an analyzer. A non-positive concurrency selects the default.
func NewAnalyzer(segmenter *Segmenter, corrector *Corrector, scorer *Scorer, concurrency int, logger *zap.Logger) *Analyzer {
	if concurrency <= 0 {
		concurrency = DefaultCorrectionConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		segmenter:   segmenter,
		corrector:   corrector,
		scorer:      scorer,
		concurrency: concurrency,
		tracer:      otel.Tracer("github.com/clony/backend/internal/usecase"),
		logger:      logger,
	}
}

// AnalyzeText segments a flat transcription, corrects every token and scores the result
func (a *Analyzer) AnalyzeText(ctx context.Context, raw, skinType string) domain.AnalysisReport {
	ctx, span := a.tracer.Start(ctx, "analyzer.AnalyzeText")
	defer span.End()

	return a.analyze(ctx, span, a.segmenter.Segment(raw), skinType)
}

// AnalyzeBlocks is AnalyzeText for structured OCR output with per-block confidence
func (a *Analyzer) AnalyzeBlocks(ctx context.Context, blocks []domain.OCRBlock, skinType string) domain.AnalysisReport {
	ctx, span := a.tracer.Start(ctx, "analyzer.AnalyzeBlocks",
		trace.WithAttributes(attribute.Int("ocr.blocks", len(blocks))))
	defer span.End()

	return a.analyze(ctx, span, a.segmenter.SegmentBlocks(blocks), skinType)
}

func (a *Analyzer) analyze(ctx context.Context, span trace.Span, tokens iter.Seq[string], skinType string) domain.AnalysisReport {
	segmented := collect(tokens)
	corrected := a.Correct(ctx, segmented)

	names := make([]string, len(corrected))
	for i, c := range corrected {
		names[i] = c.Name
	}
	result := a.Score(ctx, names, skinType)

	span.SetAttributes(
		attribute.Int("tokens", len(segmented)),
		attribute.Int("score", result.Score),
		attribute.String("badge", result.Badge),
	)
	metrics.TokensPerAnalysis.Observe(float64(len(segmented)))

	a.logger.Info("analysis completed",
		zap.String("skin_type", skinType),
		zap.Int("tokens", len(segmented)),
		zap.Int("enriched", len(result.Ingredients)),
		zap.Int("score", result.Score),
		zap.String("badge", result.Badge))

	return domain.AnalysisReport{
		Tokens:    segmented,
		Corrected: corrected,
		Result:    result,
	}
}

// Segment returns the cleaned tokens of a flat transcription
func (a *Analyzer) Segment(raw string) []string {
	return a.segmenter.SegmentAll(raw)
}

// Correct resolves tokens concurrently. Output order matches input order.
func (a *Analyzer) Correct(ctx context.Context, tokens []string) []domain.CorrectedIngredient {
	ctx, span := a.tracer.Start(ctx, "analyzer.Correct",
		trace.WithAttributes(attribute.Int("tokens", len(tokens))))
	defer span.End()

	out := make([]domain.CorrectedIngredient, len(tokens))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, token := range tokens {
		g.Go(func() error {
			out[i] = a.corrector.CorrectDetailed(ctx, token)
			return nil
		})
	}
	// Corrections never fail
	_ = g.Wait()
	return out
}

// Score rates corrected names against a skin-type code
func (a *Analyzer) Score(ctx context.Context, names []string, skinType string) domain.CompatibilityResult {
	_, span := a.tracer.Start(ctx, "analyzer.Score")
	defer span.End()

	result := a.scorer.Score(names, skinType)
	metrics.AnalysesTotal.WithLabelValues(result.Badge).Inc()
	metrics.CompatibilityScore.Observe(float64(result.Score))
	return result
}
