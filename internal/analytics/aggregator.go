package analytics

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-damage-sync/pkg/models"
)

// Aggregator derives dashboard statistics from raw history records. It is a
// pure computation: no I/O, no clock reads (the reference time is injected).
type Aggregator struct {
	trendMonths int
}

func NewAggregator(trendMonths int) *Aggregator {
	if trendMonths <= 0 {
		trendMonths = 6
	}
	return &Aggregator{trendMonths: trendMonths}
}

// TrendMonths returns the configured trend window length.
func (a *Aggregator) TrendMonths() int {
	return a.trendMonths
}

// Compute aggregates records into dashboard statistics. An empty input
// yields zeroed stats with every severity bucket and a full window of
// zeroed trend buckets, so chart consumers never special-case emptiness.
func (a *Aggregator) Compute(records []models.AnalysisRecord, now time.Time) models.AggregatedStats {
	stats := models.EmptyStats(a.emptyTrend(now))
	stats.TotalAnalyses = len(records)
	if len(records) == 0 {
		return stats
	}

	var confidenceSum float64
	type trendAccum struct {
		count   int
		costSum float64
	}
	trend := make(map[string]*trendAccum, a.trendMonths)
	for _, b := range stats.MonthlyTrend {
		trend[b.Month] = &trendAccum{}
	}

	for _, rec := range records {
		confidenceSum += rec.Confidence

		damageType := strings.TrimSpace(rec.DamageType)
		if damageType == "" {
			damageType = "Unknown"
		}
		stats.DamageTypeCounts[damageType]++

		stats.SeverityCounts[NormalizeSeverity(string(rec.Severity))]++

		month := rec.CreatedAt.Format("2006-01")
		if acc, ok := trend[month]; ok {
			acc.count++
			acc.costSum += ParseCost(rec.RepairEstimate)
		}
	}

	stats.AvgConfidence = confidenceSum / float64(len(records))

	for i := range stats.MonthlyTrend {
		acc := trend[stats.MonthlyTrend[i].Month]
		stats.MonthlyTrend[i].Count = acc.count
		if acc.count > 0 {
			stats.MonthlyTrend[i].AvgCost = acc.costSum / float64(acc.count)
		}
	}

	return stats
}

// emptyTrend builds the fixed window of the most recent trendMonths
// calendar months, oldest first, current month last.
func (a *Aggregator) emptyTrend(now time.Time) []models.TrendBucket {
	buckets := make([]models.TrendBucket, a.trendMonths)
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := 0; i < a.trendMonths; i++ {
		month := anchor.AddDate(0, i-(a.trendMonths-1), 0)
		buckets[i] = models.TrendBucket{Month: month.Format("2006-01")}
	}
	return buckets
}

var costPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParseCost extracts a numeric cost from a currency-formatted estimate such
// as "$1,200 - $1,500" (the first figure wins). Garbled or non-numeric text
// contributes zero rather than poisoning the average.
func ParseCost(estimate string) float64 {
	match := costPattern.FindString(estimate)
	if match == "" {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}
	return value
}
