package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"safeshipper/manifests/internal/models"
)

func TestParseQuantityResponse(t *testing.T) {
	schema, err := compileSchema(quantitySchema)
	require.NoError(t, err)

	items, err := ParseQuantityResponse(schema, "Here you go:\n```json\n{\"items\":[{\"un_number\":\"UN1203\",\"quantity\":5,\"weight_kg\":null},{\"un_number\":\"UN1090\",\"quantity\":null,\"weight_kg\":12.5}]}\n```")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Quantity)
	assert.Equal(t, 5, *items[0].Quantity)
	assert.Nil(t, items[0].WeightKg)
	assert.Nil(t, items[1].Quantity)
	assert.Equal(t, 12.5, *items[1].WeightKg)

	for _, bad := range []string{
		`{"items":[{"un_number":"1203","quantity":5}]}`,
		`{"items":[{"un_number":"UN1203","quantity":-1}]}`,
		`{"items":[{"un_number":"UN1203","quantity":1.5}]}`,
		`{"results":[]}`,
		`not json at all`,
	} {
		_, err := ParseQuantityResponse(schema, bad)
		assert.Error(t, err, bad)
	}
}

func TestQuantityExtractor(t *testing.T) {
	gemini := &fakeGemini{response: `{"items":[{"un_number":"UN1203","quantity":3,"weight_kg":60}]}`}
	extractor, err := NewQuantityExtractor(gemini, 600, 1, zaptest.NewLogger(t))
	require.NoError(t, err)

	items, err := extractor.Extract(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, items)
	assert.Empty(t, gemini.prompts)

	regs := []models.TextRegion{{PageNumber: 2, Text: "Gasoline three jerry cans, 60 kilos"}}
	items, err = extractor.Extract(context.Background(), regs, []string{"UN1203"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, *items[0].Quantity)

	require.Len(t, gemini.prompts, 1)
	assert.True(t, containsAll(gemini.prompts[0], "UN1203", "[page 2] Gasoline three jerry cans, 60 kilos"))

	gemini.err = errors.New("quota exceeded")
	_, err = extractor.Extract(context.Background(), regs, []string{"UN1203"})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestApplyQuantities(t *testing.T) {
	qty := 2
	matches := []models.DangerousGoodMatch{
		{UNNumber: "UN1203", Quantity: &qty},
		{UNNumber: "UN1090"},
	}
	three, sixty, ten := 3, 60.0, 10.0
	ApplyQuantities(matches, []ExtractedQuantity{
		{UNNumber: "UN1203", Quantity: &three, WeightKg: &sixty},
		{UNNumber: "UN1090", WeightKg: &ten},
		{UNNumber: "UN9999", Quantity: &three},
	})

	assert.Equal(t, 2, *matches[0].Quantity)
	assert.Equal(t, 60.0, *matches[0].WeightKg)
	assert.Nil(t, matches[1].Quantity)
	assert.Equal(t, 10.0, *matches[1].WeightKg)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, extractJSON(`Sure! {"a":{"b":2}} Hope this helps.`))
	assert.Equal(t, "plain", extractJSON("  plain  "))
}
