package repository

import (
	"context"

	"go-damage-sync/pkg/models"
)

// RecordStore defines record CRUD against the durable per-user store.
// Records are keyed by {userID, recordID}; the store assigns IDs on create.
type RecordStore interface {
	// List retrieves up to limit records for the user (0 means no limit)
	List(ctx context.Context, userID string, limit int) ([]models.AnalysisRecord, error)

	// Create persists a new record and returns the store-assigned ID
	Create(ctx context.Context, userID string, record models.AnalysisRecord) (string, error)

	// Patch updates only the given fields of an existing record
	Patch(ctx context.Context, userID, recordID string, fields map[string]interface{}) error

	// Delete removes a single record
	Delete(ctx context.Context, userID, recordID string) error

	// DeleteAll removes every record for the user
	DeleteAll(ctx context.Context, userID string) error
}
