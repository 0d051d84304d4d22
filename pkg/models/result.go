package models

import "encoding/json"

// AnalysisResult is the single normalized result type the rest of the app
// operates on. Raw backend payloads are parsed into it at the ingestion
// boundary; no optional legacy fields leak past that point.
type AnalysisResult struct {
	DamageType     string          `json:"damage_type"`
	Confidence     float64         `json:"confidence"`
	Severity       Severity        `json:"severity"`
	RepairEstimate string          `json:"repair_estimate"`
	RawResult      json.RawMessage `json:"raw_result,omitempty"`

	// IsDemoMode marks a placeholder result, either embedded by the server
	// or synthesized locally after quota exhaustion.
	IsDemoMode    bool `json:"is_demo_mode,omitempty"`
	QuotaExceeded bool `json:"quota_exceeded,omitempty"`
}

// AggregatedStats is derived from the record list and never persisted.
type AggregatedStats struct {
	TotalAnalyses    int                `json:"total_analyses"`
	AvgConfidence    float64            `json:"avg_confidence"`
	DamageTypeCounts map[string]int     `json:"damage_type_counts"`
	SeverityCounts   map[Severity]int   `json:"severity_counts"`
	MonthlyTrend     []TrendBucket      `json:"monthly_trend"`
}

// TrendBucket is one calendar month of the trend window. Buckets are always
// present, oldest first, even when empty.
type TrendBucket struct {
	Month   string  `json:"month"` // formatted as YYYY-MM
	Count   int     `json:"count"`
	AvgCost float64 `json:"avg_cost"`
}

// EmptyStats returns a zero-valued stats object with every severity bucket
// and trendMonths zeroed trend buckets present, anchored at the month of now
// counting backwards. It doubles as the degraded payload when an aggregate
// read fails with no cached value.
func EmptyStats(trend []TrendBucket) AggregatedStats {
	sev := make(map[Severity]int, len(Severities))
	for _, s := range Severities {
		sev[s] = 0
	}
	return AggregatedStats{
		DamageTypeCounts: map[string]int{},
		SeverityCounts:   sev,
		MonthlyTrend:     trend,
	}
}
