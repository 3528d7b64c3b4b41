package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camilo-ai/camilo/rag/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mudler/xlog"
	"github.com/pgvector/pgvector-go"
)

// maxIndexedDimensions is the largest vector pgvector can build an HNSW
// index for.
const maxIndexedDimensions = 2000

var tableNames = map[types.Collection]string{
	types.CollectionSegments:      "blog_segments",
	types.CollectionQA:            "question_answers",
	types.CollectionConversations: "conversations",
}

// PostgresIndex stores the three collections and the answered questions in
// PostgreSQL with the pgvector extension.
type PostgresIndex struct {
	pool          *pgxpool.Pool
	embeddingDims int
}

// NewPostgresIndex connects to databaseURL and creates the tables when
// missing. embeddingDims must match the embedding model in use.
func NewPostgresIndex(ctx context.Context, databaseURL string, embeddingDims int) (*PostgresIndex, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres engine")
	}
	if embeddingDims <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", embeddingDims)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &PostgresIndex{
		pool:          pool,
		embeddingDims: embeddingDims,
	}

	if err := p.setupDatabase(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	return p, nil
}

func (p *PostgresIndex) Close() {
	p.pool.Close()
}

func (p *PostgresIndex) setupDatabase(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}

	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS blog_segments (
			id BIGSERIAL PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT,
			content TEXT NOT NULL,
			segment INTEGER,
			embedding VECTOR(%d) NOT NULL
		)`, p.embeddingDims),
		`CREATE INDEX IF NOT EXISTS idx_blog_segments_url ON blog_segments (url)`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS question_answers (
			id BIGSERIAL PRIMARY KEY,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL
		)`, p.embeddingDims),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS conversations (
			id BIGSERIAL PRIMARY KEY,
			conversation JSONB NOT NULL,
			embedding VECTOR(%d) NOT NULL
		)`, p.embeddingDims),
		`
		CREATE TABLE IF NOT EXISTS messages_received (
			id UUID PRIMARY KEY,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	if p.embeddingDims > maxIndexedDimensions {
		xlog.Warn("Embeddings too large for an HNSW index, searches will scan", "dimensions", p.embeddingDims)
		return nil
	}
	for _, table := range tableNames {
		_, err := p.pool.Exec(ctx, fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s
			USING hnsw(embedding vector_cosine_ops)
		`, table, table))
		if err != nil {
			xlog.Warn("Failed to create HNSW index", "table", table, "error", err)
		}
	}
	return nil
}

// Search returns the items of collection whose cosine similarity to query is
// above threshold, most similar first.
func (p *PostgresIndex) Search(ctx context.Context, collection types.Collection, query []float32, threshold float64, limit int) ([]types.RetrievedItem, error) {
	table, ok := tableNames[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %s", collection)
	}

	var columns string
	switch collection {
	case types.CollectionSegments:
		columns = "id, url, COALESCE(title, ''), content, COALESCE(segment, 0)"
	case types.CollectionQA:
		columns = "id, question, answer"
	case types.CollectionConversations:
		columns = "id, conversation"
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`, columns, table), pgvector.NewVector(query), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", table, err)
	}
	defer rows.Close()

	results := []types.RetrievedItem{}
	for rows.Next() {
		item, err := scanItem(collection, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func scanItem(collection types.Collection, rows pgx.Rows) (types.RetrievedItem, error) {
	switch collection {
	case types.CollectionSegments:
		s := &types.Segment{}
		err := rows.Scan(&s.ID, &s.URL, &s.Title, &s.Content, &s.Position, &s.Similarity)
		return s, err
	case types.CollectionQA:
		q := &types.QuestionAnswer{}
		err := rows.Scan(&q.ID, &q.Question, &q.Answer, &q.Similarity)
		return q, err
	default:
		c := &types.ConversationExample{}
		var conversation []byte
		if err := rows.Scan(&c.ID, &conversation, &c.Similarity); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(conversation, &c.Messages); err != nil {
			return nil, fmt.Errorf("invalid conversation %d: %w", c.ID, err)
		}
		return c, nil
	}
}

// RecordTurn stores an answered question in messages_received.
func (p *PostgresIndex) RecordTurn(ctx context.Context, question, answer string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO messages_received (id, question, answer)
		VALUES ($1, $2, $3)
	`, uuid.New(), question, answer)
	if err != nil {
		return fmt.Errorf("failed to record turn: %w", err)
	}
	return nil
}

// StorePost inserts the segments of one post in a single transaction.
func (p *PostgresIndex) StorePost(ctx context.Context, segments []types.Segment, embeddings [][]float32) ([]int64, error) {
	if len(segments) != len(embeddings) {
		return nil, fmt.Errorf("got %d segments and %d embeddings", len(segments), len(embeddings))
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, len(segments))
	for i, segment := range segments {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO blog_segments (url, title, content, segment, embedding)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, segment.URL, segment.Title, segment.Content, segment.Position, pgvector.NewVector(embeddings[i])).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to insert segment %d of %s: %w", segment.Position, segment.URL, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit segments: %w", err)
	}
	return ids, nil
}

func (p *PostgresIndex) StoreQuestion(ctx context.Context, qa types.QuestionAnswer, embedding []float32) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO question_answers (question, answer, embedding)
		VALUES ($1, $2, $3)
		RETURNING id
	`, qa.Question, qa.Answer, pgvector.NewVector(embedding)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert question: %w", err)
	}
	return id, nil
}

func (p *PostgresIndex) StoreConversation(ctx context.Context, conversation types.ConversationExample, embedding []float32) (int64, error) {
	messages, err := json.Marshal(conversation.Messages)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal conversation: %w", err)
	}

	var id int64
	err = p.pool.QueryRow(ctx, `
		INSERT INTO conversations (conversation, embedding)
		VALUES ($1::jsonb, $2)
		RETURNING id
	`, string(messages), pgvector.NewVector(embedding)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return id, nil
}

func (p *PostgresIndex) HasSegmentsFor(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM blog_segments WHERE url = $1)", url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", url, err)
	}
	return exists, nil
}

// Count returns the number of items stored in collection.
func (p *PostgresIndex) Count(ctx context.Context, collection types.Collection) (int, error) {
	table, ok := tableNames[collection]
	if !ok {
		return 0, fmt.Errorf("unknown collection %s", collection)
	}
	var count int
	if err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
