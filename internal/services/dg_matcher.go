package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agext/levenshtein"

	"safeshipper/manifests/internal/models"
)

const (
	confidenceUNNumber       = 1.0
	confidenceSynonym        = 0.95
	confidenceProperName     = 0.9
	confidenceSimplifiedName = 0.85
	fuzzySynonymFactor       = 0.8
	fuzzyNameFactor          = 0.7
	fuzzyThreshold           = 0.8
	fuzzyMinTermLength       = 4
)

var (
	unNumberPattern = regexp.MustCompile(`(?i)\bUN\s*(\d{4})\b`)
	quantityPattern = regexp.MustCompile(`(?i)\b(\d+)\s*(?:×|(?:x|pieces?|units?|bottles?|containers?|drums?|bags?|boxes|cylinders?|pallets?)\b)`)
	qtyLabelPattern = regexp.MustCompile(`(?i)\b(?:qty|quantity)\s*[:=]?\s*(\d+)\b`)
	weightPattern   = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(kgs?|kilograms?|lbs?|pounds?|g|grams?)\b`)
)

// chemicalIndicators flag lines worth a second look when no catalog term matched.
var chemicalIndicators = []string{
	"acid", "oxide", "alcohol", "ether", "benzene", "acetone", "methanol",
	"ethanol", "gasoline", "petrol", "diesel", "flammable", "corrosive",
	"toxic", "poison", "explosive", "oxidizer", "hazardous",
}

// MatchOutcome is the result of scanning a manifest's text regions.
type MatchOutcome struct {
	Matches   []models.DangerousGoodMatch
	Unmatched []models.TextRegion
	Warnings  []string
}

// DGMatcher detects catalog dangerous goods in text regions.
type DGMatcher interface {
	Match(regions []models.TextRegion, catalog []models.DangerousGood) *MatchOutcome
}

type dgMatcher struct{}

func NewDGMatcher() DGMatcher {
	return &dgMatcher{}
}

type termEntry struct {
	term string
	dg   *models.DangerousGood
}

type matchState struct {
	regions []models.TextRegion
	lowered []string
	matched map[string]*models.DangerousGoodMatch
	order   []string
	hit     map[int]bool
}

func (st *matchState) has(unNumber string) bool {
	_, ok := st.matched[unNumber]
	return ok
}

func (st *matchState) add(dg *models.DangerousGood, regionIdx int, term string, confidence float64, matchType models.MatchType) {
	region := st.regions[regionIdx]
	m := NewMatch(dg, region, term, confidence, matchType)
	st.matched[dg.UNNumber] = &m
	st.order = append(st.order, dg.UNNumber)
	st.hit[regionIdx] = true
}

// Match runs the passes strongest first. A UN number found by an earlier pass
// is never re-reported by a weaker one.
func (d *dgMatcher) Match(regions []models.TextRegion, catalog []models.DangerousGood) *MatchOutcome {
	st := &matchState{
		regions: regions,
		lowered: make([]string, len(regions)),
		matched: make(map[string]*models.DangerousGoodMatch),
		hit:     make(map[int]bool),
	}
	for i, r := range regions {
		st.lowered[i] = strings.ToLower(r.Text)
	}

	byUN := make(map[string]*models.DangerousGood, len(catalog))
	var synonyms, properNames, simplifiedNames []termEntry
	for i := range catalog {
		dg := &catalog[i]
		byUN[dg.UNNumber] = dg
		properNames = append(properNames, termEntry{term: dg.ProperShippingName, dg: dg})
		if dg.SimplifiedName != "" {
			simplifiedNames = append(simplifiedNames, termEntry{term: dg.SimplifiedName, dg: dg})
		}
		for _, syn := range dg.Synonyms {
			synonyms = append(synonyms, termEntry{term: syn.Synonym, dg: dg})
		}
	}

	outcome := &MatchOutcome{}

	// Pass 1: explicit UN numbers.
	unknown := make(map[string]bool)
	for i, r := range regions {
		for _, sub := range unNumberPattern.FindAllStringSubmatch(r.Text, -1) {
			unNumber := "UN" + sub[1]
			if st.has(unNumber) {
				continue
			}
			dg, ok := byUN[unNumber]
			if !ok {
				if !unknown[unNumber] {
					unknown[unNumber] = true
					outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("%s found on page %d is not in the dangerous goods catalog", unNumber, r.PageNumber))
				}
				st.hit[i] = true
				continue
			}
			st.add(dg, i, unNumber, confidenceUNNumber, models.MatchUNNumber)
		}
	}

	d.exactPass(st, synonyms, confidenceSynonym, models.MatchSynonym)
	d.exactPass(st, properNames, confidenceProperName, models.MatchProperName)
	d.exactPass(st, simplifiedNames, confidenceSimplifiedName, models.MatchSimplifiedName)
	d.fuzzyPass(st, synonyms, fuzzySynonymFactor, models.MatchSynonym)
	d.fuzzyPass(st, properNames, fuzzyNameFactor, models.MatchProperName)

	for _, unNumber := range st.order {
		outcome.Matches = append(outcome.Matches, *st.matched[unNumber])
	}
	SortMatches(outcome.Matches)

	for i, r := range regions {
		if st.hit[i] {
			continue
		}
		if hasChemicalIndicator(st.lowered[i]) {
			outcome.Unmatched = append(outcome.Unmatched, r)
		}
	}

	return outcome
}

func (d *dgMatcher) exactPass(st *matchState, terms []termEntry, confidence float64, matchType models.MatchType) {
	for _, t := range terms {
		if st.has(t.dg.UNNumber) {
			continue
		}
		needle := strings.ToLower(strings.TrimSpace(t.term))
		if needle == "" {
			continue
		}
		for i, text := range st.lowered {
			if containsTerm(text, needle) {
				st.add(t.dg, i, t.term, confidence, matchType)
				break
			}
		}
	}
}

func (d *dgMatcher) fuzzyPass(st *matchState, terms []termEntry, factor float64, matchType models.MatchType) {
	for _, t := range terms {
		if st.has(t.dg.UNNumber) {
			continue
		}
		needle := strings.ToLower(strings.TrimSpace(t.term))
		if len([]rune(needle)) < fuzzyMinTermLength {
			continue
		}

		best, bestIdx := 0.0, -1
		for i, text := range st.lowered {
			if st.hit[i] {
				continue
			}
			if sim := levenshtein.Similarity(needle, text, nil); sim > fuzzyThreshold && sim > best {
				best, bestIdx = sim, i
			}
		}
		if bestIdx >= 0 {
			st.add(t.dg, bestIdx, t.term, best*factor, matchType)
		}
	}
}

// containsTerm reports whether needle occurs in text delimited by non-word
// characters or the ends of the string.
func containsTerm(text, needle string) bool {
	from := 0
	for {
		idx := strings.Index(text[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		from = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func hasChemicalIndicator(lowered string) bool {
	for _, indicator := range chemicalIndicators {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}
	return false
}

// NewMatch builds an unconfirmed match with quantities read from the region.
func NewMatch(dg *models.DangerousGood, region models.TextRegion, term string, confidence float64, matchType models.MatchType) models.DangerousGoodMatch {
	m := models.DangerousGoodMatch{
		UNNumber:           dg.UNNumber,
		ProperShippingName: dg.ProperShippingName,
		HazardClass:        dg.HazardClass,
		FoundText:          region.Text,
		PageNumber:         region.PageNumber,
		ConfidenceScore:    confidence,
		MatchType:          matchType,
	}
	if dg.PackingGroup != "" {
		pg := dg.PackingGroup
		m.PackingGroup = &pg
	}
	if term != "" {
		t := term
		m.MatchedTerm = &t
	}
	m.Quantity, m.WeightKg = ExtractQuantities(region.Text)
	return m
}

// ExtractQuantities reads a piece count and a weight in kilograms from text.
func ExtractQuantities(text string) (*int, *float64) {
	var quantity *int
	var weight *float64

	sub := qtyLabelPattern.FindStringSubmatch(text)
	if sub == nil {
		sub = quantityPattern.FindStringSubmatch(text)
	}
	if sub != nil {
		if n, err := strconv.Atoi(sub[1]); err == nil {
			quantity = &n
		}
	}

	if sub := weightPattern.FindStringSubmatch(text); sub != nil {
		if v, err := strconv.ParseFloat(sub[1], 64); err == nil {
			kg := toKilograms(v, strings.ToLower(sub[2]))
			weight = &kg
		}
	}

	return quantity, weight
}

func toKilograms(value float64, unit string) float64 {
	switch {
	case strings.HasPrefix(unit, "k"):
		return value
	case strings.HasPrefix(unit, "lb"), strings.HasPrefix(unit, "pound"):
		return value * 0.453592
	default:
		return value / 1000
	}
}

// SortMatches orders by confidence descending, then found text.
func SortMatches(matches []models.DangerousGoodMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].ConfidenceScore != matches[j].ConfidenceScore {
			return matches[i].ConfidenceScore > matches[j].ConfidenceScore
		}
		return matches[i].FoundText < matches[j].FoundText
	})
}
