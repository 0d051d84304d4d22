package media

import (
	"context"
	"encoding/base64"
	"strings"

	apperrors "go-damage-sync/internal/errors"
	"go-damage-sync/internal/logger"
	"go-damage-sync/internal/observer"
	"go-damage-sync/internal/repository"
	"go-damage-sync/pkg/models"

	"github.com/sirupsen/logrus"
)

// Report summarizes one migration batch.
type Report struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// Migrator backfills media references for records created before the
// reference-based storage scheme existed.
type Migrator struct {
	pipeline *Pipeline
	records  repository.RecordStore
	events   *observer.Publisher
}

func NewMigrator(pipeline *Pipeline, records repository.RecordStore, events *observer.Publisher) *Migrator {
	return &Migrator{pipeline: pipeline, records: records, events: events}
}

// MigrateLegacy converts up to limit qualifying records in one bounded
// batch. A record qualifies only when it still carries an inline-encoded
// image and lacks any media reference field; that makes re-runs after a
// partial failure idempotent, since migrated records no longer qualify.
// Per-record failures are counted and never halt the batch.
func (m *Migrator) MigrateLegacy(ctx context.Context, userID string, limit int) (Report, error) {
	report := Report{}

	records, err := m.records.List(ctx, userID, 0)
	if err != nil {
		return report, apperrors.NewPersistenceError("failed to list records for migration", err)
	}

	for _, rec := range records {
		if report.Migrated+report.Errors >= limit {
			break
		}
		if !qualifies(rec) {
			report.Skipped++
			continue
		}

		if err := m.migrateRecord(ctx, userID, rec); err != nil {
			report.Errors++
			logger.WithError(err).WithFields(logrus.Fields{
				"user_id":   userID,
				"record_id": rec.ID,
			}).Error("Failed to migrate record")
			continue
		}
		report.Migrated++
	}

	m.events.Notify(ctx, observer.Event{
		Type:    observer.MigrationBatchDone,
		UserID:  userID,
		Success: report.Errors == 0,
		Metadata: map[string]interface{}{
			"migrated": report.Migrated,
			"skipped":  report.Skipped,
			"errors":   report.Errors,
		},
	})

	return report, nil
}

func (m *Migrator) migrateRecord(ctx context.Context, userID string, rec models.AnalysisRecord) error {
	data, err := decodeInline(rec.LegacyImageData)
	if err != nil {
		return apperrors.NewMigrationError("inline payload is not decodable", err)
	}

	persisted, err := m.pipeline.Persist(ctx, userID, data)
	if err != nil {
		return apperrors.NewMigrationError("failed to persist migrated media", err)
	}

	// Patch references in place and clear the inline payload. Record
	// content is otherwise immutable.
	fields := map[string]interface{}{
		"image_path":        persisted.Original.Path,
		"image_url":         persisted.Original.URL,
		"thumbnail_path":    persisted.Thumbnail.Path,
		"thumbnail_url":     persisted.Thumbnail.URL,
		"legacy_image_data": "",
	}
	if err := m.records.Patch(ctx, userID, rec.ID, fields); err != nil {
		return apperrors.NewMigrationError("failed to patch migrated record", err)
	}
	return nil
}

// qualifies: inline payload present and at least one reference field missing.
func qualifies(rec models.AnalysisRecord) bool {
	return rec.LegacyImageData != "" && !rec.HasMediaReferences()
}

// decodeInline accepts both bare base64 and data-URL encoded payloads.
func decodeInline(inline string) ([]byte, error) {
	if idx := strings.Index(inline, ";base64,"); idx >= 0 {
		inline = inline[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(inline))
}
