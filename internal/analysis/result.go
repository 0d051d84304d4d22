package analysis

import (
	"encoding/json"
	"fmt"

	"go-damage-sync/internal/analytics"
	"go-damage-sync/pkg/models"
)

// The backend has shipped three payload generations. Rather than carrying
// dozens of optional fields through the app, raw payloads are classified
// into one of these variants right here and normalized into
// models.AnalysisResult before anything else sees them.
type resultVariant int

const (
	variantFull resultVariant = iota
	variantLegacy
	variantDemo
)

// resultFields is the current structured result shape.
type resultFields struct {
	DamageType     string  `json:"damage_type"`
	Confidence     float64 `json:"confidence"`
	Severity       string  `json:"severity"`
	RepairEstimate string  `json:"repair_estimate"`
}

// envelope is the superset of every payload generation the backend emits.
type envelope struct {
	Result     *resultFields `json:"result,omitempty"`
	DemoResult *resultFields `json:"demo_result,omitempty"`

	QuotaExceeded bool   `json:"quota_exceeded,omitempty"`
	DemoMode      bool   `json:"demo_mode,omitempty"`
	Error         string `json:"error,omitempty"`

	// First-generation payloads carried the fields flat in camelCase with
	// the estimate named repairCost.
	LegacyDamageType string  `json:"damageType,omitempty"`
	LegacyConfidence float64 `json:"confidence,omitempty"`
	LegacySeverity   string  `json:"severity,omitempty"`
	LegacyRepairCost string  `json:"repairCost,omitempty"`
}

func (e *envelope) classify() (resultVariant, *resultFields, bool) {
	switch {
	case e.DemoResult != nil:
		return variantDemo, e.DemoResult, true
	case e.Result != nil:
		if e.DemoMode {
			return variantDemo, e.Result, true
		}
		return variantFull, e.Result, true
	case e.LegacyDamageType != "":
		return variantLegacy, &resultFields{
			DamageType:     e.LegacyDamageType,
			Confidence:     e.LegacyConfidence,
			Severity:       e.LegacySeverity,
			RepairEstimate: e.LegacyRepairCost,
		}, true
	default:
		return 0, nil, false
	}
}

// parseResult ingests a raw backend payload and returns the normalized
// result, or an error when no known variant matches.
func parseResult(body []byte) (*models.AnalysisResult, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode analysis payload: %w", err)
	}

	variant, fields, ok := env.classify()
	if !ok {
		return nil, fmt.Errorf("analysis payload matches no known result variant")
	}

	result := &models.AnalysisResult{
		DamageType:     fields.DamageType,
		Confidence:     clampConfidence(fields.Confidence),
		Severity:       analytics.NormalizeSeverity(fields.Severity),
		RepairEstimate: fields.RepairEstimate,
		RawResult:      json.RawMessage(body),
		IsDemoMode:     variant == variantDemo,
		QuotaExceeded:  env.QuotaExceeded,
	}
	return result, nil
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
