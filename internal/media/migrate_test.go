package media

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"go-damage-sync/internal/observer"
	"go-damage-sync/pkg/models"
)

type fakeRecordStore struct {
	records     []models.AnalysisRecord
	patchFailID string
	patched     map[string]map[string]interface{}
}

func newFakeRecordStore(records ...models.AnalysisRecord) *fakeRecordStore {
	return &fakeRecordStore{records: records, patched: map[string]map[string]interface{}{}}
}

func (f *fakeRecordStore) List(ctx context.Context, userID string, limit int) ([]models.AnalysisRecord, error) {
	out := make([]models.AnalysisRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeRecordStore) Create(ctx context.Context, userID string, record models.AnalysisRecord) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeRecordStore) Patch(ctx context.Context, userID, recordID string, fields map[string]interface{}) error {
	if recordID == f.patchFailID {
		return errors.New("patch rejected")
	}
	f.patched[recordID] = fields
	for i := range f.records {
		if f.records[i].ID == recordID {
			f.records[i].ImagePath, _ = fields["image_path"].(string)
			f.records[i].LegacyImageData, _ = fields["legacy_image_data"].(string)
		}
	}
	return nil
}

func (f *fakeRecordStore) Delete(ctx context.Context, userID, recordID string) error {
	return nil
}

func (f *fakeRecordStore) DeleteAll(ctx context.Context, userID string) error {
	return nil
}

func legacyRecord(t *testing.T, id string) models.AnalysisRecord {
	t.Helper()
	return models.AnalysisRecord{
		ID:              id,
		LegacyImageData: base64.StdEncoding.EncodeToString(encodePNG(t, 8, 8)),
	}
}

func newTestMigrator(records *fakeRecordStore) *Migrator {
	pipeline := NewPipeline(newFakeBlobStore(), Options{})
	return NewMigrator(pipeline, records, observer.NewPublisher())
}

func TestMigrateLegacy_ConvertsQualifyingRecords(t *testing.T) {
	records := newFakeRecordStore(
		legacyRecord(t, "a"),
		models.AnalysisRecord{ID: "b", ImagePath: "users/u/analyses/1.png"}, // already migrated
		legacyRecord(t, "c"),
	)

	report, err := newTestMigrator(records).MigrateLegacy(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("Expected report, got error: %v", err)
	}

	if report.Migrated != 2 || report.Skipped != 1 || report.Errors != 0 {
		t.Errorf("Unexpected report: %+v", report)
	}
	for _, id := range []string{"a", "c"} {
		fields, ok := records.patched[id]
		if !ok {
			t.Errorf("Record %q was not patched", id)
			continue
		}
		if fields["legacy_image_data"] != "" {
			t.Errorf("Record %q kept its inline payload", id)
		}
		if fields["image_path"] == "" || fields["thumbnail_path"] == "" {
			t.Errorf("Record %q is missing reference fields: %v", id, fields)
		}
	}
}

func TestMigrateLegacy_RespectsBatchLimit(t *testing.T) {
	records := newFakeRecordStore(
		legacyRecord(t, "a"),
		legacyRecord(t, "b"),
		legacyRecord(t, "c"),
	)

	report, err := newTestMigrator(records).MigrateLegacy(context.Background(), "user-1", 2)
	if err != nil {
		t.Fatalf("Expected report, got error: %v", err)
	}
	if report.Migrated != 2 {
		t.Errorf("Expected 2 migrations in a batch of 2, got %d", report.Migrated)
	}
	if _, ok := records.patched["c"]; ok {
		t.Errorf("Record beyond the batch limit was touched")
	}
}

func TestMigrateLegacy_SecondRunIsIdempotent(t *testing.T) {
	records := newFakeRecordStore(legacyRecord(t, "a"), legacyRecord(t, "b"))
	migrator := newTestMigrator(records)

	first, err := migrator.MigrateLegacy(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if first.Migrated != 2 {
		t.Fatalf("Expected 2 migrations on first run, got %d", first.Migrated)
	}

	second, err := migrator.MigrateLegacy(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if second.Migrated != 0 || second.Skipped != 2 {
		t.Errorf("Second run must skip migrated records, got %+v", second)
	}
}

func TestMigrateLegacy_IsolatesPerRecordFailures(t *testing.T) {
	bad := models.AnalysisRecord{ID: "bad", LegacyImageData: "%%% not base64 %%%"}
	records := newFakeRecordStore(legacyRecord(t, "a"), bad, legacyRecord(t, "c"))
	records.patchFailID = "c"

	report, err := newTestMigrator(records).MigrateLegacy(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("Per-record failures must not fail the batch: %v", err)
	}

	if report.Migrated != 1 || report.Errors != 2 {
		t.Errorf("Expected 1 migrated and 2 errors, got %+v", report)
	}
	if _, ok := records.patched["a"]; !ok {
		t.Errorf("Healthy record should have been migrated despite sibling failures")
	}
}
