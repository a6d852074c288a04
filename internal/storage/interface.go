package storage

import (
	"inkflow-backend/internal/model"
)

// Store persists the externally visible result set under a well-known key so
// other browsing contexts can read it across navigation and reloads.
type Store interface {
	// Save overwrites the snapshot, preferring a non-blocking write path.
	// Suitable for throttled mid-run flushes.
	Save(results []model.StreamResult) error

	// SaveNow overwrites the snapshot synchronously. Used at handoff moments
	// (run end, cancellation, shutdown) where another context is expected to
	// read the result immediately.
	SaveNow(results []model.StreamResult) error

	// Load returns the last saved snapshot. A missing or corrupt snapshot
	// yields an empty result set, never an error the caller must handle.
	Load() ([]model.StreamResult, error)

	Init() error
	Close() error
}
