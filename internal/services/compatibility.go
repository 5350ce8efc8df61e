package services

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"safeshipper/manifests/internal/models"
)

var (
	fireRiskClasses      = []string{"2.1", "3", "4.1", "4.2", "4.3"}
	oxidizerClasses      = []string{"5.1", "5.2"}
	foodSensitiveClasses = []string{"6.1", "6.2", "8"}
	toxicSensitiveGroups = []string{"foodstuffs", "pharmaceuticals", "medical supplies"}
)

// segregationRule reports why item may not travel with other, or "".
type segregationRule func(item, other *models.DangerousGood) string

var segregationRules = []segregationRule{
	fireRiskWithOxidizer,
	waterReactive,
	foodSensitivity,
	toxicity,
	explosives,
}

type CompatibilityChecker interface {
	Check(goods []models.DangerousGood) models.CompatibilityResult
}

type compatibilityChecker struct{}

func NewCompatibilityChecker() CompatibilityChecker {
	return &compatibilityChecker{}
}

// Check evaluates every unordered pair once, in both directions.
func (c *compatibilityChecker) Check(goods []models.DangerousGood) models.CompatibilityResult {
	result := models.CompatibilityResult{
		IsCompatible:     true,
		Conflicts:        []string{},
		Warnings:         []string{},
		CheckedUNNumbers: make([]string, 0, len(goods)),
	}
	for _, dg := range goods {
		result.CheckedUNNumbers = append(result.CheckedUNNumbers, dg.UNNumber)
	}
	sort.Strings(result.CheckedUNNumbers)

	for i := 0; i < len(goods); i++ {
		for j := i + 1; j < len(goods); j++ {
			a, b := &goods[i], &goods[j]
			if a.UNNumber == b.UNNumber {
				continue
			}

			var reasons []string
			for _, rule := range segregationRules {
				if reason := rule(a, b); reason != "" && !slices.Contains(reasons, reason) {
					reasons = append(reasons, reason)
				}
				if reason := rule(b, a); reason != "" && !slices.Contains(reasons, reason) {
					reasons = append(reasons, reason)
				}
			}
			if len(reasons) > 0 {
				result.Conflicts = append(result.Conflicts,
					fmt.Sprintf("%s and %s: %s", a.UNNumber, b.UNNumber, strings.Join(reasons, "; ")))
			}

			if w := acidAlkaliWarning(a, b); w != "" {
				result.Warnings = append(result.Warnings, w)
			}
		}
	}

	result.IsCompatible = len(result.Conflicts) == 0
	return result
}

func fireRiskWithOxidizer(item, other *models.DangerousGood) string {
	if !hasAnyClass(item, fireRiskClasses) || !hasAnyClass(other, oxidizerClasses) {
		return ""
	}
	return fmt.Sprintf("%s (Class %s) cannot be transported with oxidizing substance %s (Class %s)",
		item.UNNumber, item.HazardClass, other.UNNumber, other.HazardClass)
}

func waterReactive(item, other *models.DangerousGood) string {
	if !hasAnyClass(item, []string{"4.3"}) {
		return ""
	}
	if !hasAnyClass(other, []string{"8"}) && !inGroupContaining(other, "water") {
		return ""
	}
	return fmt.Sprintf("%s (Class 4.3, dangerous when wet) cannot be transported with water-bearing item %s", item.UNNumber, other.UNNumber)
}

func foodSensitivity(item, other *models.DangerousGood) string {
	if !hasAnyClass(item, foodSensitiveClasses) || !inGroupContaining(other, "food") {
		return ""
	}
	return fmt.Sprintf("%s (Class %s) cannot be transported with foodstuffs %s", item.UNNumber, item.HazardClass, other.UNNumber)
}

func toxicity(item, other *models.DangerousGood) string {
	if !hasAnyClass(item, []string{"6.1"}) {
		return ""
	}
	for _, g := range other.Groups() {
		if slices.Contains(toxicSensitiveGroups, strings.ToLower(g)) {
			return fmt.Sprintf("%s (Class 6.1) cannot be transported with sensitive item %s (%s)", item.UNNumber, other.UNNumber, g)
		}
	}
	return ""
}

func explosives(item, other *models.DangerousGood) string {
	if !isExplosive(item) || isExplosive(other) {
		return ""
	}
	return fmt.Sprintf("%s (Class %s explosive) must not be loaded with non-explosive %s", item.UNNumber, item.HazardClass, other.UNNumber)
}

func acidAlkaliWarning(a, b *models.DangerousGood) string {
	if (inGroupContaining(a, "acid") && inGroupContaining(b, "alkali")) ||
		(inGroupContaining(a, "alkali") && inGroupContaining(b, "acid")) {
		return fmt.Sprintf("%s and %s: acids and alkalis should be stowed apart", a.UNNumber, b.UNNumber)
	}
	return ""
}

func hasAnyClass(dg *models.DangerousGood, classes []string) bool {
	for _, c := range dg.HazardClasses() {
		if slices.Contains(classes, c) {
			return true
		}
	}
	return false
}

func isExplosive(dg *models.DangerousGood) bool {
	return dg.HazardClass == "1" || strings.HasPrefix(dg.HazardClass, "1.")
}

func inGroupContaining(dg *models.DangerousGood, needle string) bool {
	for _, g := range dg.Groups() {
		if strings.Contains(strings.ToLower(g), needle) {
			return true
		}
	}
	return false
}
