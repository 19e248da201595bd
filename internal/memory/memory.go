// Package memory implements the embedding-backed conversational memory of
// spec §4.6: save truncates and persists one document per turn;
// get_relevant_context applies the strictest available scope filter and
// widens gracefully (drop conversation_id, retry once) on an empty hit.
package memory

import (
	"context"
	"fmt"
	"time"
)

const (
	maxUserChars  = 500
	maxAgentChars = 1800
)

// Metadata scopes a stored document (spec §3, §4.6).
type Metadata struct {
	TenantID       string
	UserID         string
	ConversationID string
}

// Document is one persisted memory entry.
type Document struct {
	PageContent string
	Metadata    Metadata
	CreatedAt   time.Time
}

// Embedder turns text into a vector. The concrete embedding model is an
// external collaborator (spec §1); this interface is all internal/memory
// depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists embedded documents and answers similarity-search
// queries scoped by metadata filters. The wire protocol to the actual
// vector DB is out of scope (spec §1); VectorStore is the named-interface
// boundary spec.md describes, with a default adapter in store_sqlite.go.
type VectorStore interface {
	Upsert(ctx context.Context, vector []float32, doc Document) error
	Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Document, error)
}

// Filter is a metadata scope for similarity search. Zero-value fields are
// not applied (spec §4.6: "applies the strictest available filter").
type Filter struct {
	TenantID       string
	UserID         string
	ConversationID string
}

// empty returns true if f constrains no field at all.
func (f Filter) empty() bool {
	return f.TenantID == "" && f.UserID == "" && f.ConversationID == ""
}

// withoutConversation returns a copy of f with ConversationID cleared, for
// the graceful-widening retry (spec §4.6).
func (f Filter) withoutConversation() Filter {
	f.ConversationID = ""
	return f
}

// Manager is the process-wide singleton memory manager (spec §5: "Memory-
// manager ... process-global singletons initialized once"). It is safe
// for concurrent use; the embedder and vector store it wraps are expected
// to be thread-safe themselves.
type Manager struct {
	embedder Embedder
	store    VectorStore
}

// NewManager wires a Manager. Call once at process start and share the
// instance; do not lazily construct one per request.
func NewManager(embedder Embedder, store VectorStore) *Manager {
	return &Manager{embedder: embedder, store: store}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Save truncates and embeds one conversational turn, persisting it as a
// single document scoped by metadata (spec §4.6).
func (m *Manager) Save(ctx context.Context, userInput, agentOutput string, meta Metadata) error {
	content := fmt.Sprintf("User: %s\nAssistant: %s", truncate(userInput, maxUserChars), truncate(agentOutput, maxAgentChars))

	vec, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("memory: embedding turn: %w", err)
	}

	doc := Document{PageContent: content, Metadata: meta, CreatedAt: time.Now()}
	if err := m.store.Upsert(ctx, vec, doc); err != nil {
		return fmt.Errorf("memory: persisting turn: %w", err)
	}
	return nil
}

// GetRelevantContext returns the top-k documents matching query, scoped by
// the strictest filter available. If a conversation-scoped search returns
// zero hits, it retries once with ConversationID dropped (spec §4.6). It
// never returns documents outside the requested TenantID/UserID scope —
// those two fields are never widened.
func (m *Manager) GetRelevantContext(ctx context.Context, query string, k int, filter Filter) ([]Document, error) {
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: embedding query: %w", err)
	}

	docs, err := m.store.Search(ctx, vec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("memory: searching: %w", err)
	}

	if len(docs) == 0 && filter.ConversationID != "" {
		docs, err = m.store.Search(ctx, vec, k, filter.withoutConversation())
		if err != nil {
			return nil, fmt.Errorf("memory: widened search: %w", err)
		}
	}

	return docs, nil
}
