package models

// AnalysisResults is stored as JSON on Manifest.AnalysisResults.
type AnalysisResults struct {
	TextRegions        []TextRegion `json:"text_regions"`
	PageCount          int          `json:"page_count"`
	TextLength         int          `json:"text_length"`
	ProcessingMethod   string       `json:"processing_method"`
	UnmatchedEntries   []string     `json:"unmatched_entries"`
	Warnings           []string     `json:"warnings"`
	TotalDGsIdentified int          `json:"total_dgs_identified"`
}

type TextRegion struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}
