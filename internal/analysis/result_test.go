package analysis

import (
	"testing"

	"go-damage-sync/pkg/models"
)

func TestParseResult_Variants(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected models.AnalysisResult
	}{
		{
			name: "full structured payload",
			body: `{"result": {"damage_type": "Door Dent", "confidence": 0.9, "severity": "moderate", "repair_estimate": "$500"}}`,
			expected: models.AnalysisResult{
				DamageType:     "Door Dent",
				Confidence:     0.9,
				Severity:       models.SeverityModerate,
				RepairEstimate: "$500",
			},
		},
		{
			name: "legacy flat camelCase payload",
			body: `{"damageType": "Hood Scratch", "confidence": 0.6, "severity": "minor", "repairCost": "$150"}`,
			expected: models.AnalysisResult{
				DamageType:     "Hood Scratch",
				Confidence:     0.6,
				Severity:       models.SeverityMinor,
				RepairEstimate: "$150",
			},
		},
		{
			name: "demo payload",
			body: `{"quota_exceeded": true, "demo_result": {"damage_type": "Demo Dent", "confidence": 0.75, "severity": "minor", "repair_estimate": "$250"}}`,
			expected: models.AnalysisResult{
				DamageType:     "Demo Dent",
				Confidence:     0.75,
				Severity:       models.SeverityMinor,
				RepairEstimate: "$250",
				IsDemoMode:     true,
				QuotaExceeded:  true,
			},
		},
		{
			name: "demo flag on structured payload",
			body: `{"demo_mode": true, "result": {"damage_type": "Demo Dent", "confidence": 0.75, "severity": "minor", "repair_estimate": "$250"}}`,
			expected: models.AnalysisResult{
				DamageType:     "Demo Dent",
				Confidence:     0.75,
				Severity:       models.SeverityMinor,
				RepairEstimate: "$250",
				IsDemoMode:     true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseResult([]byte(tt.body))
			if err != nil {
				t.Fatalf("Expected result, got error: %v", err)
			}
			if result.DamageType != tt.expected.DamageType {
				t.Errorf("DamageType: got %q, want %q", result.DamageType, tt.expected.DamageType)
			}
			if result.Confidence != tt.expected.Confidence {
				t.Errorf("Confidence: got %v, want %v", result.Confidence, tt.expected.Confidence)
			}
			if result.Severity != tt.expected.Severity {
				t.Errorf("Severity: got %q, want %q", result.Severity, tt.expected.Severity)
			}
			if result.RepairEstimate != tt.expected.RepairEstimate {
				t.Errorf("RepairEstimate: got %q, want %q", result.RepairEstimate, tt.expected.RepairEstimate)
			}
			if result.IsDemoMode != tt.expected.IsDemoMode {
				t.Errorf("IsDemoMode: got %v, want %v", result.IsDemoMode, tt.expected.IsDemoMode)
			}
			if result.QuotaExceeded != tt.expected.QuotaExceeded {
				t.Errorf("QuotaExceeded: got %v, want %v", result.QuotaExceeded, tt.expected.QuotaExceeded)
			}
			if len(result.RawResult) == 0 {
				t.Errorf("Expected the raw payload to be retained")
			}
		})
	}
}

func TestParseResult_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>nope</html>`},
		{name: "no known variant", body: `{"error": "something else entirely"}`},
		{name: "empty object", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseResult([]byte(tt.body)); err == nil {
				t.Errorf("Expected error for %q", tt.body)
			}
		})
	}
}

func TestParseResult_ClampsConfidence(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected float64
	}{
		{name: "above one", body: `{"result": {"damage_type": "Dent", "confidence": 1.7, "severity": "minor"}}`, expected: 1},
		{name: "below zero", body: `{"result": {"damage_type": "Dent", "confidence": -0.2, "severity": "minor"}}`, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseResult([]byte(tt.body))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result.Confidence != tt.expected {
				t.Errorf("Confidence: got %v, want %v", result.Confidence, tt.expected)
			}
		})
	}
}
