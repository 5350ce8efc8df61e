package services

import (
	"fmt"
	"strings"

	"safeshipper/manifests/internal/models"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildQuantityExtractionPrompt asks for per-UN-number quantities from manifest lines.
func (pb *PromptBuilder) BuildQuantityExtractionPrompt(manifestText string, unNumbers []string) string {
	return fmt.Sprintf(`You are a dangerous goods compliance assistant reading a shipping manifest.

DANGEROUS GOODS ALREADY IDENTIFIED:
%s

MANIFEST LINES:
%s

For each identified UN number, find the number of packages and the gross weight in kilograms stated
in the manifest lines. Convert pounds and grams to kilograms. If a value is not stated, use null.
Do not add UN numbers that are not in the identified list.

Return your response in the following JSON format:
{
  "items": [
    {"un_number": "UN1234", "quantity": <integer or null>, "weight_kg": <number or null>}
  ]
}`,
		strings.Join(unNumbers, ", "), manifestText)
}

// FormatRegions renders regions as "[page N] text" lines for prompts.
func FormatRegions(regions []models.TextRegion) string {
	var b strings.Builder
	for _, r := range regions {
		fmt.Fprintf(&b, "[page %d] %s\n", r.PageNumber, strings.TrimSpace(r.Text))
	}
	return b.String()
}
