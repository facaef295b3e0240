package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/clony/backend/internal/domain"
)

// Local search fallback limits
const (
	searchMaxResults = 5
	searchCutoff     = 0.5
)

// Search hit sources
const (
	SearchSourceRemote = "remote"
	SearchSourceLocal  = "local"
)

// Dictionary is the read side of the registry used for search
type Dictionary interface {
	Keys() []string
	Get(name string) (domain.CanonicalIngredient, bool)
}

// IngredientSearch answers free-text dictionary queries, remote source first
type IngredientSearch struct {
	dictionary Dictionary
	lookup     domain.IngredientLookup
	logger     *zap.Logger
}

// NewIngredientSearch creates a search service. A nil lookup searches locally only.
func NewIngredientSearch(dictionary Dictionary, lookup domain.IngredientLookup, logger *zap.Logger) *IngredientSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngredientSearch{
		dictionary: dictionary,
		lookup:     lookup,
		logger:     logger,
	}
}

// Search returns the remote record for query if there is one, otherwise up to
// five local names scoring at least 0.5, best first. An empty query yields no hits.
func (s *IngredientSearch) Search(ctx context.Context, query string) []domain.SearchHit {
	query = strings.TrimSpace(norm.NFC.String(query))
	if query == "" {
		return []domain.SearchHit{}
	}

	if s.lookup != nil {
		record, err := s.lookup.Lookup(ctx, query)
		if err == nil && record != nil && record.IngdName != "" {
			return []domain.SearchHit{remoteHit(query, record)}
		}
		if err != nil {
			s.logger.Debug("remote search had no result, using local dictionary",
				zap.String("query", query),
				zap.Error(err))
		}
	}

	matches := closeMatches(query, s.dictionary.Keys(), searchMaxResults, searchCutoff)
	hits := make([]domain.SearchHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, s.localHit(m))
	}
	return hits
}

func remoteHit(query string, record *domain.CanonicalRecord) domain.SearchHit {
	return domain.SearchHit{
		Name:        record.IngdName,
		NameEn:      record.IngdEngName,
		CasNo:       record.CasNo,
		Effect:      record.OriginMjrKoraNm,
		Description: record.OriginDefntKoraNm,
		Similarity:  similarity(query, record.IngdName),
		Source:      SearchSourceRemote,
	}
}

func (s *IngredientSearch) localHit(m scoredName) domain.SearchHit {
	hit := domain.SearchHit{
		Name:       m.name,
		Similarity: m.score,
		Source:     SearchSourceLocal,
	}
	// Learned names have no metadata
	if info, ok := s.dictionary.Get(m.name); ok {
		hit.NameEn = info.NameEn
		hit.Effect = info.Effect
		hit.Description = info.Description
		hit.GoodFor = info.GoodFor
		hit.Caution = strings.Join(info.Cautions, " ")
	}
	return hit
}
