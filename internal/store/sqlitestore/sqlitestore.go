// Package sqlitestore is the default store.Store adapter, backed by
// modernc.org/sqlite (pure Go, cgo-free, matching internal/memory's
// store_sqlite.go adapter choice). Grounded on the teacher's
// migrate-on-open convention: every table is created with
// CREATE TABLE IF NOT EXISTS at construction time rather than through a
// separate migration runner.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/finresearch/orchestrator/internal/store"
)

// Store implements store.Store over a single *sql.DB.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a sqlite database at dsn and migrates
// every table this package owns.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening %s: %w", dsn, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS report_runs (
			id TEXT PRIMARY KEY,
			report_type TEXT NOT NULL,
			payload_json BLOB NOT NULL,
			report_json BLOB NOT NULL,
			generated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS report_threads (
			id TEXT PRIMARY KEY,
			owner_key TEXT NOT NULL,
			report_type TEXT NOT NULL,
			base_payload_json BLOB NOT NULL,
			effective_prompt TEXT NOT NULL,
			latest_report_json BLOB NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_report_threads_owner ON report_threads(owner_key, report_type)`,
		`CREATE TABLE IF NOT EXISTS report_thread_messages (
			thread_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata_json BLOB,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_thread_messages_thread ON report_thread_messages(thread_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS report_prompt_overrides (
			owner_key TEXT NOT NULL,
			report_type TEXT NOT NULL,
			prompt_text TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (owner_key, report_type)
		)`,
		`CREATE TABLE IF NOT EXISTS broker_audit (
			timestamp DATETIME NOT NULL,
			app TEXT NOT NULL,
			provider TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			status INTEGER NOT NULL,
			success BOOLEAN NOT NULL,
			error TEXT,
			request_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS trade_audit (
			timestamp DATETIME NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity REAL NOT NULL,
			order_type TEXT NOT NULL,
			ticket_id TEXT NOT NULL,
			approved BOOLEAN NOT NULL,
			actor TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlitestore: migrating: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) SaveReportRun(ctx context.Context, run store.ReportRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO report_runs (id, report_type, payload_json, report_json, generated_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.ReportType, run.PayloadJSON, run.ReportJSON, run.GeneratedAt)
	if err != nil {
		return fmt.Errorf("sqlitestore: saving report run: %w", err)
	}
	return nil
}

func (s *Store) GetReportRun(ctx context.Context, id string) (store.ReportRun, error) {
	var run store.ReportRun
	row := s.db.QueryRowContext(ctx,
		`SELECT id, report_type, payload_json, report_json, generated_at FROM report_runs WHERE id = ?`, id)
	if err := row.Scan(&run.ID, &run.ReportType, &run.PayloadJSON, &run.ReportJSON, &run.GeneratedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ReportRun{}, fmt.Errorf("sqlitestore: report run %s not found", id)
		}
		return store.ReportRun{}, fmt.Errorf("sqlitestore: getting report run: %w", err)
	}
	return run, nil
}

func (s *Store) GetThread(ctx context.Context, threadID, ownerKey string) (store.ReportThread, bool, error) {
	var t store.ReportThread
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_key, report_type, base_payload_json, effective_prompt, latest_report_json, created_at, updated_at
		 FROM report_threads WHERE id = ? AND owner_key = ?`, threadID, ownerKey)
	err := row.Scan(&t.ThreadID, &t.OwnerKey, &t.ReportType, &t.BasePayloadJSON, &t.EffectivePrompt, &t.LatestReportJSON, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ReportThread{}, false, nil
	}
	if err != nil {
		return store.ReportThread{}, false, fmt.Errorf("sqlitestore: getting thread: %w", err)
	}

	msgs, err := s.RecentMessages(ctx, threadID, 0)
	if err != nil {
		return store.ReportThread{}, false, err
	}
	t.Messages = msgs
	return t, true, nil
}

func (s *Store) CreateThread(ctx context.Context, thread store.ReportThread) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO report_threads (id, owner_key, report_type, base_payload_json, effective_prompt, latest_report_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		thread.ThreadID, thread.OwnerKey, thread.ReportType, thread.BasePayloadJSON, thread.EffectivePrompt,
		thread.LatestReportJSON, thread.CreatedAt, thread.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlitestore: creating thread: %w", err)
	}
	return nil
}

func (s *Store) UpdateLatestReport(ctx context.Context, threadID string, latestReportJSON []byte, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE report_threads SET latest_report_json = ?, updated_at = ? WHERE id = ?`,
		latestReportJSON, updatedAt, threadID)
	if err != nil {
		return fmt.Errorf("sqlitestore: updating thread latest report: %w", err)
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, msg store.ThreadMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO report_thread_messages (thread_id, role, content, metadata_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ThreadID, msg.Role, msg.Content, msg.MetadataJSON, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlitestore: appending thread message: %w", err)
	}
	return nil
}

// RecentMessages returns a thread's messages oldest-first. limit <= 0
// returns the full log; a positive limit returns at most the most recent
// `limit` messages (spec §4.12's follow-up "last ~40 thread messages").
func (s *Store) RecentMessages(ctx context.Context, threadID string, limit int) ([]store.ThreadMessage, error) {
	query := `SELECT thread_id, role, content, metadata_json, created_at FROM report_thread_messages WHERE thread_id = ? ORDER BY created_at ASC`
	args := []any{threadID}
	if limit > 0 {
		query = `SELECT * FROM (
			SELECT thread_id, role, content, metadata_json, created_at FROM report_thread_messages
			WHERE thread_id = ? ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: listing thread messages: %w", err)
	}
	defer rows.Close()

	var out []store.ThreadMessage
	for rows.Next() {
		var m store.ThreadMessage
		if err := rows.Scan(&m.ThreadID, &m.Role, &m.Content, &m.MetadataJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlitestore: scanning thread message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CompactThreadMessages deletes messages older than olderThan, keeping
// the most recent keepPerThread messages of every thread regardless of
// age (spec §4.12's follow-up window must always have something to read
// from even for a dormant thread).
func (s *Store) CompactThreadMessages(ctx context.Context, olderThan time.Time, keepPerThread int) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM report_thread_messages
		WHERE created_at < ?
		AND rowid NOT IN (
			SELECT rowid FROM (
				SELECT rowid, ROW_NUMBER() OVER (PARTITION BY thread_id ORDER BY created_at DESC) AS rn
				FROM report_thread_messages
			) WHERE rn <= ?
		)`, olderThan, keepPerThread)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: compacting thread messages: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) GetOverride(ctx context.Context, ownerKey, reportType string) (store.PromptOverride, bool, error) {
	var o store.PromptOverride
	row := s.db.QueryRowContext(ctx,
		`SELECT owner_key, report_type, prompt_text, created_at, updated_at FROM report_prompt_overrides WHERE owner_key = ? AND report_type = ?`,
		ownerKey, reportType)
	err := row.Scan(&o.OwnerKey, &o.ReportType, &o.PromptText, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.PromptOverride{}, false, nil
	}
	if err != nil {
		return store.PromptOverride{}, false, fmt.Errorf("sqlitestore: getting prompt override: %w", err)
	}
	return o, true, nil
}

func (s *Store) UpsertOverride(ctx context.Context, override store.PromptOverride) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO report_prompt_overrides (owner_key, report_type, prompt_text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(owner_key, report_type) DO UPDATE SET prompt_text = excluded.prompt_text, updated_at = excluded.updated_at`,
		override.OwnerKey, override.ReportType, override.PromptText, override.CreatedAt, override.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlitestore: upserting prompt override: %w", err)
	}
	return nil
}

func (s *Store) DeleteOverride(ctx context.Context, ownerKey, reportType string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM report_prompt_overrides WHERE owner_key = ? AND report_type = ?`, ownerKey, reportType)
	if err != nil {
		return fmt.Errorf("sqlitestore: deleting prompt override: %w", err)
	}
	return nil
}

func (s *Store) SaveBrokerEvent(ctx context.Context, rec store.BrokerAuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO broker_audit (timestamp, app, provider, endpoint, status, success, error, request_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.App, rec.Provider, rec.Endpoint, rec.Status, rec.Success, rec.Error, rec.RequestID)
	if err != nil {
		return fmt.Errorf("sqlitestore: saving broker audit event: %w", err)
	}
	return nil
}

func (s *Store) SaveTradeAudit(ctx context.Context, rec store.TradeAuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trade_audit (timestamp, symbol, side, quantity, order_type, ticket_id, approved, actor) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Symbol, rec.Side, rec.Quantity, rec.OrderType, rec.TicketID, rec.Approved, rec.Actor)
	if err != nil {
		return fmt.Errorf("sqlitestore: saving trade audit record: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
