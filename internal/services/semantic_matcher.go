package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"safeshipper/manifests/internal/models"
)

const semanticConfidenceFactor = 0.75

// SemanticMatcher resolves lines the lexical passes missed by nearest catalog term.
type SemanticMatcher interface {
	MatchEntries(ctx context.Context, entries []models.TextRegion, catalog map[string]*models.DangerousGood, known map[string]bool) ([]models.DangerousGoodMatch, error)
}

type semanticMatcher struct {
	gemini   GeminiService
	store    CatalogVectorStore
	minScore float64
	log      *zap.Logger
}

func NewSemanticMatcher(gemini GeminiService, store CatalogVectorStore, minScore float64, log *zap.Logger) SemanticMatcher {
	return &semanticMatcher{
		gemini:   gemini,
		store:    store,
		minScore: minScore,
		log:      log.Named("semantic"),
	}
}

// MatchEntries embeds each entry and keeps the best hit at or above minScore.
// UN numbers in known are skipped and newly matched ones are added to it.
func (s *semanticMatcher) MatchEntries(ctx context.Context, entries []models.TextRegion, catalog map[string]*models.DangerousGood, known map[string]bool) ([]models.DangerousGoodMatch, error) {
	var matches []models.DangerousGoodMatch

	for _, entry := range entries {
		embedding, err := s.gemini.GenerateEmbedding(ctx, entry.Text)
		if err != nil {
			return matches, fmt.Errorf("failed to embed entry: %w", err)
		}

		results, err := s.store.SearchSimilar(ctx, embedding, 1)
		if err != nil {
			return matches, err
		}
		if len(results) == 0 {
			continue
		}

		best := results[0]
		if float64(best.Score) < s.minScore || known[best.UNNumber] {
			continue
		}
		dg, ok := catalog[best.UNNumber]
		if !ok {
			s.log.Warn("vector hit not in catalog", zap.String("un_number", best.UNNumber))
			continue
		}

		known[best.UNNumber] = true
		matches = append(matches, NewMatch(dg, entry, best.Text, float64(best.Score)*semanticConfidenceFactor, models.MatchSynonym))
	}

	return matches, nil
}
