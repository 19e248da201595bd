// Package store defines the persistence-interface boundary spec.md names
// but leaves as a named external interface: one Store per aggregate
// (ReportStore, ThreadStore, PromptOverrideStore, BrokerAuditStore,
// TradeAuditStore), each satisfied by both a modernc.org/sqlite adapter
// (sqlitestore, the default for cmd/server) and a jackc/pgx/v5 adapter
// (pgstore, for production Postgres deployments), grounded on the
// teacher's sqlite-per-module layout and nevindra-oasis's
// externally-owned-pool pgx adapter convention.
package store

import (
	"context"
	"time"
)

// ReportRun is one persisted report_runs row (spec §6).
type ReportRun struct {
	ID          string
	ReportType  string
	PayloadJSON []byte
	ReportJSON  []byte
	GeneratedAt time.Time
}

// ThreadMessage is one report_thread_messages row.
type ThreadMessage struct {
	ThreadID     string
	Role         string
	Content      string
	MetadataJSON []byte
	CreatedAt    time.Time
}

// ReportThread is one report_threads row plus its message log (spec §3
// ReportThread, §6 report_threads/report_thread_messages).
type ReportThread struct {
	ThreadID         string
	OwnerKey         string
	ReportType       string
	BasePayloadJSON  []byte
	EffectivePrompt  string
	LatestReportJSON []byte
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Messages         []ThreadMessage
}

// PromptOverride is one report_prompt_overrides row, keyed by
// (owner_key, report_type).
type PromptOverride struct {
	OwnerKey   string
	ReportType string
	PromptText string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BrokerAuditRecord is a durable copy of a BrokerEvent evicted from the
// in-memory ring (spec §3 addendum: "persisted via the Object Archive on
// ring eviction").
type BrokerAuditRecord struct {
	Timestamp time.Time
	App       string
	Provider  string
	Endpoint  string
	Status    int
	Success   bool
	Error     string
	RequestID string
}

// TradeAuditRecord is one redacted trade-control audit entry (spec
// §4.14a: allow-list enforced at the call site, never in the store).
type TradeAuditRecord struct {
	Timestamp time.Time
	Symbol    string
	Side      string
	Quantity  float64
	OrderType string
	TicketID  string
	Approved  bool
	Actor     string
}

// ReportStore persists completed report runs.
type ReportStore interface {
	SaveReportRun(ctx context.Context, run ReportRun) error
	GetReportRun(ctx context.Context, id string) (ReportRun, error)
}

// ThreadStore persists report threads and their message logs (spec
// §4.12 step 6's thread lifecycle).
type ThreadStore interface {
	GetThread(ctx context.Context, threadID, ownerKey string) (ReportThread, bool, error)
	CreateThread(ctx context.Context, thread ReportThread) error
	UpdateLatestReport(ctx context.Context, threadID string, latestReportJSON []byte, updatedAt time.Time) error
	AppendMessage(ctx context.Context, msg ThreadMessage) error
	RecentMessages(ctx context.Context, threadID string, limit int) ([]ThreadMessage, error)

	// CompactThreadMessages deletes messages older than olderThan, except
	// the most recent keepPerThread messages of each thread, returning
	// the number of rows removed. This is the nightly report-thread
	// compaction job's persistence hook (SPEC_FULL §20).
	CompactThreadMessages(ctx context.Context, olderThan time.Time, keepPerThread int) (int64, error)
}

// PromptOverrideStore persists per-owner report prompt overrides (spec
// §4.12 step 1's "per-owner saved override" precedence tier).
type PromptOverrideStore interface {
	GetOverride(ctx context.Context, ownerKey, reportType string) (PromptOverride, bool, error)
	UpsertOverride(ctx context.Context, override PromptOverride) error
	DeleteOverride(ctx context.Context, ownerKey, reportType string) error
}

// BrokerAuditStore persists evicted BrokerEvents for durable observability.
type BrokerAuditStore interface {
	SaveBrokerEvent(ctx context.Context, rec BrokerAuditRecord) error
}

// TradeAuditStore persists trade-control audit entries (spec §4.14a).
type TradeAuditStore interface {
	SaveTradeAudit(ctx context.Context, rec TradeAuditRecord) error
}

// Store bundles every aggregate's persistence boundary so cmd/server's DI
// wiring can construct and pass around one handle.
type Store interface {
	ReportStore
	ThreadStore
	PromptOverrideStore
	BrokerAuditStore
	TradeAuditStore
	Close() error
}
