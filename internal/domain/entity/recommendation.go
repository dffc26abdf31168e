package entity

// RepairerRecommendation is one ranked candidate returned by the recommendation service
type RepairerRecommendation struct {
	RepairerID    string   `json:"repairer_id"`
	RepairerName  string   `json:"repairer_name"`
	Rank          int      `json:"rank"`
	Score         float64  `json:"score"`
	Reasoning     string   `json:"reasoning"`
	KeyAdvantages []string `json:"key_advantages"`
}

// EligibleRepairer is a repairer the service considered
type EligibleRepairer struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	ConnectivityType string   `json:"connectivity_type"`
	SLAs             []string `json:"slas"`
}

// RecommendationResult is the full response of the recommendation service
type RecommendationResult struct {
	Recommendations   []RepairerRecommendation `json:"recommendations"`
	OverallAnalysis   string                   `json:"overall_analysis"`
	EligibleRepairers []EligibleRepairer       `json:"eligibleRepairers"`
}
