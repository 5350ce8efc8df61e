package models

import (
	"strings"
	"time"
)

// DangerousGood is a catalog entry keyed by UN number (e.g. "UN1203").
type DangerousGood struct {
	ID                 uint        `gorm:"primaryKey" json:"id"`
	UNNumber           string      `gorm:"type:text;uniqueIndex;not null" json:"un_number"`
	ProperShippingName string      `gorm:"type:text;not null" json:"proper_shipping_name"`
	SimplifiedName     string      `gorm:"type:text" json:"simplified_name,omitempty"`
	HazardClass        string      `gorm:"type:text;not null;index" json:"hazard_class"`
	SubsidiaryRisks    string      `gorm:"type:text" json:"subsidiary_risks,omitempty"`
	PackingGroup       string      `gorm:"type:text" json:"packing_group,omitempty"`
	SegregationGroups  string      `gorm:"type:text" json:"segregation_groups,omitempty"`
	Synonyms           []DGSynonym `gorm:"foreignKey:DangerousGoodID;constraint:OnDelete:CASCADE" json:"synonyms,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func (DangerousGood) TableName() string {
	return "dangerous_goods"
}

// HazardClasses returns the primary class followed by any subsidiary risks.
func (d DangerousGood) HazardClasses() []string {
	classes := []string{d.HazardClass}
	for _, risk := range splitList(d.SubsidiaryRisks) {
		if risk != d.HazardClass {
			classes = append(classes, risk)
		}
	}
	return classes
}

func (d DangerousGood) Groups() []string {
	return splitList(d.SegregationGroups)
}

type DGSynonym struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	DangerousGoodID uint   `gorm:"not null;index" json:"dangerous_good_id"`
	Synonym         string `gorm:"type:text;not null" json:"synonym"`
}

func (DGSynonym) TableName() string {
	return "dg_product_synonyms"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
