package models

import (
	"encoding/json"
	"time"
)

// Severity is the fixed damage severity domain used across the app.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
	SeverityUnknown  Severity = "unknown"
)

// Severities lists every severity bucket. Aggregation always emits all of
// them, even when a bucket is empty.
var Severities = []Severity{
	SeverityMinor,
	SeverityModerate,
	SeveritySevere,
	SeverityCritical,
	SeverityUnknown,
}

// AnalysisRecord is one completed damage assessment as stored per user.
// Content fields are immutable after creation; only the media reference
// fields are touched, and only by legacy migration.
type AnalysisRecord struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	CreatedAt      time.Time       `json:"created_at"`
	DamageType     string          `json:"damage_type"`
	Confidence     float64         `json:"confidence"`
	Severity       Severity        `json:"severity"`
	RepairEstimate string          `json:"repair_estimate"`
	ImagePath      string          `json:"image_path,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
	ThumbnailPath  string          `json:"thumbnail_path,omitempty"`
	ThumbnailURL   string          `json:"thumbnail_url,omitempty"`

	// LegacyImageData holds the inline base64 payload written by the old
	// storage scheme. Migration clears it once references exist.
	LegacyImageData string `json:"legacy_image_data,omitempty"`

	RawResult json.RawMessage `json:"raw_result,omitempty"`

	// LocalOnly marks a record that failed durable persistence and lives
	// only in the in-memory list.
	LocalOnly bool `json:"local_only,omitempty"`
}

// HasMediaReferences reports whether the record carries the minimal set of
// media reference fields. Records without them and with an inline payload
// qualify for migration.
func (r *AnalysisRecord) HasMediaReferences() bool {
	return r.ImagePath != "" && r.ImageURL != "" && r.ThumbnailPath != "" && r.ThumbnailURL != ""
}

// MediaReference points at a persisted blob: a storage path plus a
// resolvable URL. It never embeds pixel data.
type MediaReference struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// AuthToken is the credential cached to durable local storage so a restart
// does not require re-authentication before the first network call.
type AuthToken struct {
	Value  string `json:"value"`
	Holder string `json:"holder,omitempty"`
}
