package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeshipper/manifests/internal/models"
	"safeshipper/manifests/internal/repositories"
)

type AnalyzerService interface {
	AnalyzeManifest(ctx context.Context, manifestID uuid.UUID) error
}

type analyzerService struct {
	manifestRepo repositories.ManifestRepository
	dgRepo       repositories.DangerousGoodRepository
	parser       DocumentParser
	splitter     RegionSplitter
	matcher      DGMatcher
	semantic     SemanticMatcher
	extractor    QuantityExtractor
	log          *zap.Logger
}

// AnalyzerOption enables the optional Gemini-backed passes.
type AnalyzerOption func(*analyzerService)

func WithSemanticMatcher(m SemanticMatcher) AnalyzerOption {
	return func(a *analyzerService) { a.semantic = m }
}

func WithQuantityExtractor(e QuantityExtractor) AnalyzerOption {
	return func(a *analyzerService) { a.extractor = e }
}

func NewAnalyzerService(
	manifestRepo repositories.ManifestRepository,
	dgRepo repositories.DangerousGoodRepository,
	parser DocumentParser,
	log *zap.Logger,
	opts ...AnalyzerOption,
) AnalyzerService {
	a := &analyzerService{
		manifestRepo: manifestRepo,
		dgRepo:       dgRepo,
		parser:       parser,
		splitter:     NewRegionSplitter(0),
		matcher:      NewDGMatcher(),
		log:          log.Named("analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeManifest runs one manifest from UPLOADED to AWAITING_CONFIRMATION.
// A manifest already claimed by another worker is skipped without error.
func (a *analyzerService) AnalyzeManifest(ctx context.Context, manifestID uuid.UUID) error {
	claimed, err := a.manifestRepo.StartAnalysis(manifestID)
	if err != nil {
		return fmt.Errorf("failed to start analysis: %w", err)
	}
	if !claimed {
		a.log.Debug("manifest already claimed", zap.Stringer("manifest_id", manifestID))
		return nil
	}

	started := time.Now()
	log := a.log.With(zap.Stringer("manifest_id", manifestID))
	log.Info("analysis started")

	manifest, err := a.manifestRepo.FindByID(manifestID)
	if err != nil {
		return a.fail(manifestID, "manifest not found", err)
	}

	parsed, err := a.parser.ExtractPages(manifest.Document.FilePath)
	if err != nil {
		return a.fail(manifestID, "text extraction failed", err)
	}

	catalog, err := a.dgRepo.FindAll()
	if err != nil {
		return a.fail(manifestID, "dangerous goods catalog unavailable", err)
	}

	regions := a.splitter.Split(parsed.Pages)
	outcome := a.matcher.Match(regions, catalog)
	method := parsed.Method

	if a.semantic != nil && len(outcome.Unmatched) > 0 {
		if a.semanticPass(ctx, outcome, catalog, log) {
			method += "+semantic_search"
		}
	}

	if a.extractor != nil && missingQuantities(outcome.Matches) {
		if a.quantityPass(ctx, outcome, regions, log) {
			method += "+ai_extraction"
		}
	}

	SortMatches(outcome.Matches)

	results := models.AnalysisResults{
		TextRegions:        regions,
		PageCount:          parsed.PageCount,
		TextLength:         parsed.TextLength(),
		ProcessingMethod:   method,
		UnmatchedEntries:   make([]string, 0, len(outcome.Unmatched)),
		Warnings:           outcome.Warnings,
		TotalDGsIdentified: len(outcome.Matches),
	}
	for _, r := range outcome.Unmatched {
		results.UnmatchedEntries = append(results.UnmatchedEntries, r.Text)
	}
	if results.Warnings == nil {
		results.Warnings = []string{}
	}
	if results.TextRegions == nil {
		results.TextRegions = []models.TextRegion{}
	}

	payload, err := json.Marshal(results)
	if err != nil {
		return a.fail(manifestID, "failed to encode analysis results", err)
	}

	docStatus := models.DocumentValidatedOK
	if len(results.Warnings) > 0 || len(results.UnmatchedEntries) > 0 {
		docStatus = models.DocumentValidatedWithErrors
	}

	if err := a.manifestRepo.CompleteAnalysis(manifestID, &repositories.AnalysisUpdateData{
		Matches:        outcome.Matches,
		Results:        payload,
		DocumentStatus: docStatus,
	}); err != nil {
		return a.fail(manifestID, "failed to save analysis", err)
	}

	log.Info("analysis completed",
		zap.Int("matches", len(outcome.Matches)),
		zap.Int("unmatched", len(results.UnmatchedEntries)),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (a *analyzerService) fail(manifestID uuid.UUID, reason string, cause error) error {
	msg := fmt.Sprintf("%s: %v", reason, cause)
	if err := a.manifestRepo.MarkFailed(manifestID, msg); err != nil {
		a.log.Error("failed to record analysis failure", zap.Stringer("manifest_id", manifestID), zap.Error(err))
	}
	return fmt.Errorf("%s: %w", reason, cause)
}

func (a *analyzerService) semanticPass(ctx context.Context, outcome *MatchOutcome, catalog []models.DangerousGood, log *zap.Logger) bool {
	byUN := make(map[string]*models.DangerousGood, len(catalog))
	for i := range catalog {
		byUN[catalog[i].UNNumber] = &catalog[i]
	}
	known := make(map[string]bool, len(outcome.Matches))
	for _, m := range outcome.Matches {
		known[m.UNNumber] = true
	}

	found, err := a.semantic.MatchEntries(ctx, outcome.Unmatched, byUN, known)
	if err != nil {
		log.Warn("semantic search failed", zap.Error(err))
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("semantic search unavailable: %v", err))
	}
	if len(found) == 0 {
		return err == nil
	}

	resolved := make(map[string]bool, len(found))
	for _, m := range found {
		resolved[m.FoundText] = true
	}
	remaining := outcome.Unmatched[:0]
	for _, r := range outcome.Unmatched {
		if !resolved[r.Text] {
			remaining = append(remaining, r)
		}
	}
	outcome.Unmatched = remaining
	outcome.Matches = append(outcome.Matches, found...)
	return true
}

func (a *analyzerService) quantityPass(ctx context.Context, outcome *MatchOutcome, regions []models.TextRegion, log *zap.Logger) bool {
	var unNumbers []string
	for _, m := range outcome.Matches {
		if m.Quantity == nil || m.WeightKg == nil {
			unNumbers = append(unNumbers, m.UNNumber)
		}
	}

	extracted, err := a.extractor.Extract(ctx, regions, unNumbers)
	if err != nil {
		log.Warn("quantity extraction failed", zap.Error(err))
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("AI quantity extraction unavailable: %v", err))
		return false
	}

	ApplyQuantities(outcome.Matches, extracted)
	return true
}

// ApplyQuantities fills only the values the lexical pass left empty.
func ApplyQuantities(matches []models.DangerousGoodMatch, extracted []ExtractedQuantity) {
	byUN := make(map[string]ExtractedQuantity, len(extracted))
	for _, e := range extracted {
		byUN[e.UNNumber] = e
	}
	for i := range matches {
		e, ok := byUN[matches[i].UNNumber]
		if !ok {
			continue
		}
		if matches[i].Quantity == nil && e.Quantity != nil {
			q := *e.Quantity
			matches[i].Quantity = &q
		}
		if matches[i].WeightKg == nil && e.WeightKg != nil {
			w := *e.WeightKg
			matches[i].WeightKg = &w
		}
	}
}

func missingQuantities(matches []models.DangerousGoodMatch) bool {
	for _, m := range matches {
		if m.Quantity == nil || m.WeightKg == nil {
			return true
		}
	}
	return false
}
