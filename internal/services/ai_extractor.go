package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"safeshipper/manifests/internal/models"
)

var quantitySchema = map[string]any{
	"type":     "object",
	"required": []string{"items"},
	"properties": map[string]any{
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"un_number"},
				"properties": map[string]any{
					"un_number": map[string]any{"type": "string", "pattern": "^UN\\d{4}$"},
					"quantity":  map[string]any{"type": []string{"integer", "null"}, "minimum": 0},
					"weight_kg": map[string]any{"type": []string{"number", "null"}, "minimum": 0},
				},
			},
		},
	},
}

type ExtractedQuantity struct {
	UNNumber string   `json:"un_number"`
	Quantity *int     `json:"quantity"`
	WeightKg *float64 `json:"weight_kg"`
}

// QuantityExtractor fills package counts and weights the regex pass missed.
type QuantityExtractor interface {
	Extract(ctx context.Context, regions []models.TextRegion, unNumbers []string) ([]ExtractedQuantity, error)
}

type aiQuantityExtractor struct {
	gemini        GeminiService
	promptBuilder *PromptBuilder
	schema        *jsonschema.Schema
	limiter       *rate.Limiter
	maxRetries    int
	log           *zap.Logger
}

func NewQuantityExtractor(gemini GeminiService, requestsPerMinute, maxRetries int, log *zap.Logger) (QuantityExtractor, error) {
	schema, err := compileSchema(quantitySchema)
	if err != nil {
		return nil, err
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}

	return &aiQuantityExtractor{
		gemini:        gemini,
		promptBuilder: NewPromptBuilder(),
		schema:        schema,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		maxRetries:    maxRetries,
		log:           log.Named("ai_extractor"),
	}, nil
}

func (a *aiQuantityExtractor) Extract(ctx context.Context, regions []models.TextRegion, unNumbers []string) ([]ExtractedQuantity, error) {
	if len(unNumbers) == 0 {
		return nil, nil
	}

	prompt := a.promptBuilder.BuildQuantityExtractionPrompt(FormatRegions(regions), unNumbers)

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	response, err := a.gemini.GenerateJSONWithRetry(ctx, prompt, 0.1, a.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to extract quantities: %w", err)
	}

	return ParseQuantityResponse(a.schema, response)
}

// ParseQuantityResponse validates the model output and decodes it.
func ParseQuantityResponse(schema *jsonschema.Schema, response string) ([]ExtractedQuantity, error) {
	raw := []byte(extractJSON(response))

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}

	var out struct {
		Items []ExtractedQuantity `json:"items"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return out.Items, nil
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("quantities.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("quantities.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// extractJSON strips markdown fences and surrounding prose from model output.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}
