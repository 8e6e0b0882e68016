package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magidandrew/tg-persona/internal/models"
)

// ApprovalStore is the durable keyed store of in-flight drafts.
// Both PostgresStore and SQLiteStore implement this interface.
type ApprovalStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// PutDraft inserts or replaces a draft, keyed by id.
	PutDraft(ctx context.Context, draft *models.Draft) error

	// GetDrafts returns every stored draft keyed by id. Called once at
	// startup so an in-progress review session survives a restart.
	GetDrafts(ctx context.Context) (map[string]*models.Draft, error)

	// DeleteDraft removes a draft. Deleting an absent id is not an error.
	DeleteDraft(ctx context.Context, id string) error
}

// contextVersion identifies the stored context layout. Bump when the
// entry shape changes so old rows stay decodable.
const contextVersion = 1

// contextPayload wraps the ordered context entries with a version tag.
// The entries are stored as explicit structure, not an opaque blob, so
// the reviewer UI can re-display the transcript verbatim on edit.
type contextPayload struct {
	Version int                   `json:"v"`
	Entries []models.ContextEntry `json:"entries"`
}

func encodeContext(entries []models.ContextEntry) (string, error) {
	raw, err := json.Marshal(contextPayload{Version: contextVersion, Entries: entries})
	if err != nil {
		return "", fmt.Errorf("store: encode context: %w", err)
	}
	return string(raw), nil
}

func decodeContext(raw string) ([]models.ContextEntry, error) {
	var payload contextPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("store: decode context: %w", err)
	}
	if payload.Version != contextVersion {
		return nil, fmt.Errorf("store: unsupported context version %d", payload.Version)
	}
	return payload.Entries, nil
}
