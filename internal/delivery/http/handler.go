package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clony/backend/internal/domain"
)

const (
	serviceName    = "clony-backend"
	serviceVersion = "1.0.0"

	// maxTokensPerRequest bounds the correct endpoint; each token may cost a remote lookup
	maxTokensPerRequest = 300
)

// AnalysisService is the ingredient pipeline the handlers expose
type AnalysisService interface {
	AnalyzeText(ctx context.Context, raw, skinType string) domain.AnalysisReport
	AnalyzeBlocks(ctx context.Context, blocks []domain.OCRBlock, skinType string) domain.AnalysisReport
	Segment(raw string) []string
	Correct(ctx context.Context, tokens []string) []domain.CorrectedIngredient
}

// SearchService answers ingredient dictionary queries
type SearchService interface {
	Search(ctx context.Context, query string) []domain.SearchHit
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	analysis AnalysisService
	search   SearchService
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. Nil services make their endpoints
// answer 503.
func NewHandler(analysis AnalysisService, search SearchService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		analysis: analysis,
		search:   search,
		logger:   logger,
	}
}

// SegmentRequest is the body of POST /ingredients/segment
type SegmentRequest struct {
	Text string `json:"text" binding:"required"`
}

// CorrectRequest is the body of POST /ingredients/correct
type CorrectRequest struct {
	Tokens []string `json:"tokens" binding:"required"`
}

// AnalyzeTextRequest is the body of POST /analysis/text
type AnalyzeTextRequest struct {
	Text     string `json:"text" binding:"required"`
	SkinType string `json:"skinType" binding:"required"`
}

// AnalyzeBlocksRequest is the body of POST /analysis/blocks
type AnalyzeBlocksRequest struct {
	Blocks   []domain.OCRBlock `json:"blocks" binding:"required,dive"`
	SkinType string            `json:"skinType" binding:"required"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// SegmentText splits raw OCR text into candidate ingredient tokens
func (h *Handler) SegmentText(c *gin.Context) {
	if h.analysis == nil {
		notConfigured(c, "ingredient analysis")
		return
	}

	var req SegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tokens": h.analysis.Segment(req.Text),
	})
}

// CorrectTokens maps each token to its canonical ingredient name
func (h *Handler) CorrectTokens(c *gin.Context) {
	if h.analysis == nil {
		notConfigured(c, "ingredient analysis")
		return
	}

	var req CorrectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if len(req.Tokens) > maxTokensPerRequest {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "too many tokens",
			"limit": maxTokensPerRequest,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ingredients": h.analysis.Correct(c.Request.Context(), req.Tokens),
	})
}

// AnalyzeText runs the full pipeline over raw OCR text
func (h *Handler) AnalyzeText(c *gin.Context) {
	if h.analysis == nil {
		notConfigured(c, "ingredient analysis")
		return
	}

	var req AnalyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	skinType, ok := parseSkinType(c, req.SkinType)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.analysis.AnalyzeText(c.Request.Context(), req.Text, skinType))
}

// AnalyzeBlocks runs the full pipeline over OCR blocks with confidences
func (h *Handler) AnalyzeBlocks(c *gin.Context) {
	if h.analysis == nil {
		notConfigured(c, "ingredient analysis")
		return
	}

	var req AnalyzeBlocksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	skinType, ok := parseSkinType(c, req.SkinType)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.analysis.AnalyzeBlocks(c.Request.Context(), req.Blocks, skinType))
}

// SearchIngredients looks an ingredient up by free text
func (h *Handler) SearchIngredients(c *gin.Context) {
	if h.search == nil {
		notConfigured(c, "ingredient search")
		return
	}

	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "query parameter is required",
		})
		return
	}

	hits := h.search.Search(c.Request.Context(), query)
	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"count":   len(hits),
		"results": hits,
	})
}

// parseSkinType validates the code and writes a 400 when it is malformed
func parseSkinType(c *gin.Context, code string) (string, bool) {
	skinType, err := domain.ParseSkinType(code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid skin type",
			"details": err.Error(),
		})
		return "", false
	}
	return string(skinType), true
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.logger.Debug("rejected request body",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   domain.ErrInvalidRequest.Error(),
		"details": err.Error(),
	})
}

func notConfigured(c *gin.Context, feature string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error": feature + " not configured",
	})
}
