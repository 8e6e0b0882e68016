package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/magidandrew/tg-persona/internal/metrics"
	"github.com/magidandrew/tg-persona/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/tg-persona.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/tg-persona.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		response TEXT NOT NULL,
		context TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		urgency TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_drafts_conversation ON drafts(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_drafts_urgency ON drafts(urgency);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// PutDraft inserts or replaces a draft, keyed by id.
func (s *SQLiteStore) PutDraft(ctx context.Context, draft *models.Draft) error {
	start := time.Now()
	defer func() { metrics.StoreLatency.Observe(time.Since(start).Seconds()) }()

	contextJSON, err := encodeContext(draft.Context)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (id, conversation_id, response, context, confidence, urgency, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			response = excluded.response,
			context = excluded.context,
			confidence = excluded.confidence,
			urgency = excluded.urgency,
			state = excluded.state
	`, draft.ID, draft.ConversationID, draft.Response, contextJSON,
		draft.Confidence, string(draft.Urgency), string(draft.State), draft.CreatedAt)
	return err
}

// GetDrafts returns every stored draft keyed by id.
func (s *SQLiteStore) GetDrafts(ctx context.Context) (map[string]*models.Draft, error) {
	start := time.Now()
	defer func() { metrics.StoreLatency.Observe(time.Since(start).Seconds()) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, response, context, confidence, urgency, state, created_at
		FROM drafts
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drafts := make(map[string]*models.Draft)
	for rows.Next() {
		draft := &models.Draft{}
		var contextJSON, urgency, state string

		err := rows.Scan(
			&draft.ID,
			&draft.ConversationID,
			&draft.Response,
			&contextJSON,
			&draft.Confidence,
			&urgency,
			&state,
			&draft.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		draft.Context, err = decodeContext(contextJSON)
		if err != nil {
			return nil, err
		}
		draft.Urgency = models.Urgency(urgency)
		draft.State = models.DraftState(state)
		drafts[draft.ID] = draft
	}

	return drafts, rows.Err()
}

// DeleteDraft removes a draft by id.
func (s *SQLiteStore) DeleteDraft(ctx context.Context, id string) error {
	start := time.Now()
	defer func() { metrics.StoreLatency.Observe(time.Since(start).Seconds()) }()

	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	return err
}
