package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/floats"

	_ "modernc.org/sqlite"
)

// SQLiteVectorStore is the default dev/production-lite adapter behind
// VectorStore, realizing the "vector-DB wire protocol is out of scope,
// named interface only" boundary from spec §1 / SPEC_FULL §4.6a. Vectors
// are msgpack-encoded (matching the teacher's compact-encoding
// convention) into a flat sqlite table; similarity search loads the
// metadata-filtered candidate set and ranks by cosine similarity computed
// with gonum, the same library the teacher's portfolio-math packages use.
//
// This is adequate for single-instance deployments and for tests; a
// production deployment with a real ANN index swaps in a different
// VectorStore implementation without internal/memory noticing.
type SQLiteVectorStore struct {
	db *sql.DB
}

// NewSQLiteVectorStore opens (and migrates) the memory_vectors table on db.
func NewSQLiteVectorStore(db *sql.DB) (*SQLiteVectorStore, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS memory_vectors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	page_content TEXT NOT NULL,
	vector BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_vectors_scope
	ON memory_vectors(tenant_id, user_id, conversation_id);
`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("memory: migrating memory_vectors: %w", err)
	}
	return &SQLiteVectorStore{db: db}, nil
}

// Upsert inserts a new embedded document. Memory documents are append-only
// (a turn is never edited after the fact), so this is always an insert.
func (s *SQLiteVectorStore) Upsert(ctx context.Context, vector []float32, doc Document) error {
	encoded, err := msgpack.Marshal(vector)
	if err != nil {
		return fmt.Errorf("memory: encoding vector: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_vectors (tenant_id, user_id, conversation_id, page_content, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.Metadata.TenantID, doc.Metadata.UserID, doc.Metadata.ConversationID,
		doc.PageContent, encoded, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("memory: inserting vector: %w", err)
	}
	return nil
}

type scored struct {
	doc   Document
	score float64
}

// Search returns the top-k documents by cosine similarity among the rows
// matching filter. TenantID and UserID, when set, are always applied —
// never widened (spec §4.6's "never returns partial hits from other
// tenants" invariant); ConversationID is applied only when set, per the
// caller's already-widened filter.
func (s *SQLiteVectorStore) Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Document, error) {
	query := `SELECT tenant_id, user_id, conversation_id, page_content, vector, created_at FROM memory_vectors WHERE 1=1`
	args := []any{}

	if filter.TenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, filter.TenantID)
	}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.ConversationID != "" {
		query += " AND conversation_id = ?"
		args = append(args, filter.ConversationID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: querying candidates: %w", err)
	}
	defer rows.Close()

	var candidates []scored
	for rows.Next() {
		var doc Document
		var encoded []byte
		var createdAt time.Time
		if err := rows.Scan(&doc.Metadata.TenantID, &doc.Metadata.UserID, &doc.Metadata.ConversationID,
			&doc.PageContent, &encoded, &createdAt); err != nil {
			return nil, fmt.Errorf("memory: scanning candidate: %w", err)
		}
		doc.CreatedAt = createdAt

		var candVec []float32
		if err := msgpack.Unmarshal(encoded, &candVec); err != nil {
			return nil, fmt.Errorf("memory: decoding vector: %w", err)
		}

		candidates = append(candidates, scored{doc: doc, score: cosineSimilarity(vector, candVec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]Document, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.doc)
	}
	return out, nil
}

// cosineSimilarity computes cosine distance's complement between two
// equal-length vectors using gonum's floats package; mismatched lengths
// (shouldn't happen against one embedding model) score zero rather than
// panicking.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	af := make([]float64, len(a))
	bf := make([]float64, len(b))
	for i := range a {
		af[i] = float64(a[i])
		bf[i] = float64(b[i])
	}

	dot := floats.Dot(af, bf)
	normA := floats.Norm(af, 2)
	normB := floats.Norm(bf, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (normA * normB)
}
