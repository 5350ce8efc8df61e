package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"safeshipper/manifests/internal/config"
	"safeshipper/manifests/internal/models"
	"safeshipper/manifests/internal/repositories"
	"safeshipper/manifests/internal/services"
)

// Usage: go run ./scripts/ingest_catalog.go [catalog.json]
//
// Upserts the dangerous goods catalog into the database and indexes every
// name and synonym in Qdrant for the semantic matching pass.
func main() {
	cfg, _ := config.Load()

	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	entries := services.DefaultCatalog()
	if len(os.Args) > 1 {
		entries, err = readCatalog(os.Args[1])
		if err != nil {
			log.Fatal("failed to read catalog file", zap.Error(err))
		}
	}

	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	dgRepo := repositories.NewDangerousGoodRepository(db)

	if err := dgRepo.UpsertCatalog(entries); err != nil {
		log.Fatal("failed to upsert catalog", zap.Error(err))
	}
	log.Info("catalog stored", zap.Int("entries", len(entries)))

	ctx := context.Background()

	gemini, err := services.NewGeminiService(ctx, cfg.Gemini.APIKey, cfg.Worker.RetryInitialDelay, log)
	if err != nil {
		log.Fatal("failed to initialize gemini", zap.Error(err))
	}

	store, err := services.NewQdrantService(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection, log)
	if err != nil {
		log.Fatal("failed to initialize qdrant", zap.Error(err))
	}
	if err := store.InitCollection(ctx); err != nil {
		log.Fatal("failed to initialize collection", zap.Error(err))
	}

	successCount, failCount := 0, 0
	for _, dg := range entries {
		if err := store.DeleteUNNumber(ctx, dg.UNNumber); err != nil {
			log.Warn("failed to clear previous points", zap.String("un_number", dg.UNNumber), zap.Error(err))
		}

		for i, term := range catalogTerms(dg) {
			embedding, err := gemini.GenerateEmbedding(ctx, term)
			if err != nil {
				log.Error("failed to embed term", zap.String("un_number", dg.UNNumber), zap.String("term", term), zap.Error(err))
				failCount++
				continue
			}
			if err := store.UpsertTerm(ctx, dg.UNNumber, i, term, embedding); err != nil {
				log.Error("failed to store term", zap.String("un_number", dg.UNNumber), zap.String("term", term), zap.Error(err))
				failCount++
				continue
			}
			successCount++
		}
	}

	log.Info("ingestion completed", zap.Int("indexed", successCount), zap.Int("failed", failCount))
	if failCount > 0 {
		os.Exit(1)
	}
}

func catalogTerms(dg models.DangerousGood) []string {
	terms := []string{dg.ProperShippingName}
	if dg.SimplifiedName != "" {
		terms = append(terms, dg.SimplifiedName)
	}
	for _, s := range dg.Synonyms {
		terms = append(terms, s.Synonym)
	}
	return terms
}

func readCatalog(path string) ([]models.DangerousGood, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []models.DangerousGood
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return entries, nil
}
