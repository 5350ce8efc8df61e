package services

import (
	"strings"
	"unicode/utf8"

	"safeshipper/manifests/internal/models"
)

const defaultMaxRegionSize = 240

// RegionSplitter breaks page text into the text regions the matcher scans.
type RegionSplitter interface {
	Split(pages []string) []models.TextRegion
}

type regionSplitter struct {
	maxRegionSize int
}

func NewRegionSplitter(maxRegionSize int) RegionSplitter {
	if maxRegionSize <= 0 {
		maxRegionSize = defaultMaxRegionSize
	}
	return &regionSplitter{maxRegionSize: maxRegionSize}
}

// Split emits one region per non-blank line. Lines longer than the maximum
// region size are cut at sentence boundaries.
func (s *regionSplitter) Split(pages []string) []models.TextRegion {
	var regions []models.TextRegion

	for i, page := range pages {
		pageNumber := i + 1
		for _, line := range strings.Split(CleanText(page), "\n") {
			if line == "" {
				continue
			}
			if utf8.RuneCountInString(line) <= s.maxRegionSize {
				regions = append(regions, models.TextRegion{PageNumber: pageNumber, Text: line})
				continue
			}
			for _, chunk := range s.chunkLine(line) {
				regions = append(regions, models.TextRegion{PageNumber: pageNumber, Text: chunk})
			}
		}
	}

	return regions
}

func (s *regionSplitter) chunkLine(line string) []string {
	var chunks []string
	var current strings.Builder

	for _, sentence := range splitIntoSentences(line) {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > s.maxRegionSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitIntoSentences splits on terminal punctuation followed by whitespace so
// abbreviations such as "n.o.s." stay intact.
func splitIntoSentences(text string) []string {
	var result []string
	var current strings.Builder
	runes := []rune(text)

	for i, r := range runes {
		current.WriteRune(r)
		atBoundary := r == '.' || r == '!' || r == '?' || r == ';'
		if atBoundary && (i+1 == len(runes) || runes[i+1] == ' ') {
			if s := strings.TrimSpace(current.String()); s != "" {
				result = append(result, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		result = append(result, s)
	}
	return result
}
