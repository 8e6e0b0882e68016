package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/magidandrew/tg-persona/internal/metrics"
	"github.com/magidandrew/tg-persona/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS drafts (
		id UUID PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		response TEXT NOT NULL,
		context JSONB NOT NULL,
		confidence INTEGER NOT NULL,
		urgency TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_drafts_conversation ON drafts(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_drafts_urgency ON drafts(urgency);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PutDraft inserts or replaces a draft, keyed by id.
func (s *PostgresStore) PutDraft(ctx context.Context, draft *models.Draft) error {
	start := time.Now()
	defer func() { metrics.StoreLatency.Observe(time.Since(start).Seconds()) }()

	contextJSON, err := encodeContext(draft.Context)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO drafts (id, conversation_id, response, context, confidence, urgency, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			response = EXCLUDED.response,
			context = EXCLUDED.context,
			confidence = EXCLUDED.confidence,
			urgency = EXCLUDED.urgency,
			state = EXCLUDED.state
	`, draft.ID, draft.ConversationID, draft.Response, contextJSON,
		draft.Confidence, string(draft.Urgency), string(draft.State), draft.CreatedAt)
	return err
}

// GetDrafts returns every stored draft keyed by id.
func (s *PostgresStore) GetDrafts(ctx context.Context) (map[string]*models.Draft, error) {
	start := time.Now()
	defer func() { metrics.StoreLatency.Observe(time.Since(start).Seconds()) }()

	rows, err := s.pool.Query(ctx, `
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
func (s *PostgresStore) DeleteDraft(ctx context.Context, id string) error {
	start := time.Now()
	defer func() { metrics.StoreLatency.Observe(time.Since(start).Seconds()) }()

	_, err := s.pool.Exec(ctx, `DELETE FROM drafts WHERE id = $1`, id)
	return err
}
