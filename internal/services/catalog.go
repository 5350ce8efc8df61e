package services

import (
	"fmt"
	"strings"

	"safeshipper/manifests/internal/models"
)

// DefaultCatalog is the dangerous goods seed loaded when the catalog table is
// empty. Segregation groups are comma separated.
func DefaultCatalog() []models.DangerousGood {
	return []models.DangerousGood{
		entry("UN1203", "Gasoline", "Petrol", "3", "", "II", "", "petrol", "motor spirit", "benzin"),
		entry("UN1090", "Acetone", "", "3", "", "II", "", "dimethyl ketone", "propanone"),
		entry("UN1170", "Ethanol", "Ethyl alcohol", "3", "", "II", "", "grain alcohol"),
		entry("UN1230", "Methanol", "Methyl alcohol", "3", "6.1", "II", "", "wood alcohol"),
		entry("UN1202", "Diesel fuel", "Diesel", "3", "", "III", "", "gas oil"),
		entry("UN1993", "Flammable liquid, n.o.s.", "Flammable liquid", "3", "", "III", ""),
		entry("UN1263", "Paint", "", "3", "", "II", "", "lacquer", "varnish"),
		entry("UN1950", "Aerosols", "Aerosol", "2.1", "", "", "", "spray can"),
		entry("UN1072", "Oxygen, compressed", "Oxygen", "2.2", "5.1", "", ""),
		entry("UN1005", "Ammonia, anhydrous", "Ammonia", "2.3", "8", "", ""),
		entry("UN1479", "Oxidizing solid, n.o.s.", "Oxidizing solid", "5.1", "", "II", "", "oxidiser"),
		entry("UN1942", "Ammonium nitrate", "", "5.1", "", "III", ""),
		entry("UN2014", "Hydrogen peroxide, aqueous solution", "Hydrogen peroxide", "5.1", "8", "II", "water"),
		entry("UN1428", "Sodium", "Sodium metal", "4.3", "", "I", ""),
		entry("UN1402", "Calcium carbide", "", "4.3", "", "II", ""),
		entry("UN1350", "Sulphur", "Sulfur", "4.1", "", "III", ""),
		entry("UN1830", "Sulphuric acid", "Sulfuric acid", "8", "", "II", "acids,water", "battery acid", "oil of vitriol"),
		entry("UN1789", "Hydrochloric acid", "", "8", "", "II", "acids,water", "muriatic acid"),
		entry("UN1719", "Caustic alkali liquid, n.o.s.", "Caustic alkali liquid", "8", "", "II", "alkalis,water"),
		entry("UN1760", "Corrosive liquid, n.o.s.", "Corrosive liquid", "8", "", "II", ""),
		entry("UN2811", "Toxic solid, organic, n.o.s.", "Toxic solid", "6.1", "", "II", "", "pesticide"),
		entry("UN3373", "Biological substance, category B", "Biological substance", "6.2", "", "", "Medical Supplies", "diagnostic specimens"),
		entry("UN1845", "Carbon dioxide, solid", "Dry ice", "9", "", "", "food"),
		entry("UN3480", "Lithium ion batteries", "Lithium battery", "9", "", "", "", "li-ion battery", "lithium-ion battery"),
		entry("UN3077", "Environmentally hazardous substance, solid, n.o.s.", "Environmentally hazardous substance", "9", "", "III", ""),
		entry("UN0336", "Fireworks", "", "1.4", "", "", "", "pyrotechnics"),
	}
}

func entry(unNumber, properName, simplifiedName, hazardClass, subsidiary, packingGroup, groups string, synonyms ...string) models.DangerousGood {
	dg := models.DangerousGood{
		UNNumber:           unNumber,
		ProperShippingName: properName,
		SimplifiedName:     simplifiedName,
		HazardClass:        hazardClass,
		SubsidiaryRisks:    subsidiary,
		PackingGroup:       packingGroup,
		SegregationGroups:  groups,
	}
	for _, s := range synonyms {
		dg.Synonyms = append(dg.Synonyms, models.DGSynonym{Synonym: s})
	}
	return dg
}

// NormalizeUNNumber accepts "1203", "un1203" or "UN 1203" and returns "UN1203".
func NormalizeUNNumber(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "UN")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return "UN" + s
}

type catalogSeeder interface {
	Count() (int64, error)
	UpsertCatalog(entries []models.DangerousGood) error
}

// SeedCatalog loads DefaultCatalog into an empty catalog table. It reports
// whether anything was written.
func SeedCatalog(repo catalogSeeder) (bool, error) {
	count, err := repo.Count()
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := repo.UpsertCatalog(DefaultCatalog()); err != nil {
		return false, fmt.Errorf("failed to seed catalog: %w", err)
	}
	return true, nil
}
