// Package pgstore is the production store.Store adapter backed by
// PostgreSQL via jackc/pgx/v5, grounded on nevindra-oasis's
// externally-owned-pool convention: the caller constructs and closes the
// *pgxpool.Pool, this package only runs queries against it. Table DDL
// mirrors sqlitestore's schema with Postgres-native types (uuid, jsonb,
// timestamptz).
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finresearch/orchestrator/internal/store"
)

// Store implements store.Store over an externally-owned pgxpool.Pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool and migrates every table this package owns.
// The caller owns the pool and is responsible for closing it; Close is a
// no-op here precisely so a shared pool outlives one Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS report_runs (
			id uuid PRIMARY KEY,
			report_type text NOT NULL,
			payload_jsonb jsonb NOT NULL,
			report_jsonb jsonb NOT NULL,
			generated_at timestamptz NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS report_threads (
			id uuid PRIMARY KEY,
			owner_key text NOT NULL,
			report_type text NOT NULL,
			base_payload_jsonb jsonb NOT NULL,
			effective_prompt text NOT NULL,
			latest_report_jsonb jsonb NOT NULL,
			created_at timestamptz NOT NULL,
			updated_at timestamptz NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_report_threads_owner ON report_threads(owner_key, report_type)`,
		`CREATE TABLE IF NOT EXISTS report_thread_messages (
			thread_id uuid NOT NULL,
			role text NOT NULL,
			content text NOT NULL,
			metadata_jsonb jsonb,
			created_at timestamptz NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_thread_messages_thread ON report_thread_messages(thread_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS report_prompt_overrides (
			owner_key text NOT NULL,
			report_type text NOT NULL,
			prompt_text text NOT NULL,
			created_at timestamptz NOT NULL,
			updated_at timestamptz NOT NULL,
			PRIMARY KEY (owner_key, report_type)
		)`,
		`CREATE TABLE IF NOT EXISTS broker_audit (
			"timestamp" timestamptz NOT NULL,
			app text NOT NULL,
			provider text NOT NULL,
			endpoint text NOT NULL,
			status int NOT NULL,
			success boolean NOT NULL,
			error text,
			request_id text
		)`,
		`CREATE TABLE IF NOT EXISTS trade_audit (
			"timestamp" timestamptz NOT NULL,
			symbol text NOT NULL,
			side text NOT NULL,
			quantity double precision NOT NULL,
			order_type text NOT NULL,
			ticket_id text NOT NULL,
			approved boolean NOT NULL,
			actor text NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgstore: migrating: %w", err)
		}
	}
	return nil
}

// Close is a no-op: the pool is externally owned (see New's doc comment).
func (s *Store) Close() error { return nil }

func (s *Store) SaveReportRun(ctx context.Context, run store.ReportRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO report_runs (id, report_type, payload_jsonb, report_jsonb, generated_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.ReportType, run.PayloadJSON, run.ReportJSON, run.GeneratedAt)
	if err != nil {
		return fmt.Errorf("pgstore: saving report run: %w", err)
	}
	return nil
}

func (s *Store) GetReportRun(ctx context.Context, id string) (store.ReportRun, error) {
	var run store.ReportRun
	row := s.pool.QueryRow(ctx,
		`SELECT id, report_type, payload_jsonb, report_jsonb, generated_at FROM report_runs WHERE id = $1`, id)
	if err := row.Scan(&run.ID, &run.ReportType, &run.PayloadJSON, &run.ReportJSON, &run.GeneratedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ReportRun{}, fmt.Errorf("pgstore: report run %s not found", id)
		}
		return store.ReportRun{}, fmt.Errorf("pgstore: getting report run: %w", err)
	}
	return run, nil
}

func (s *Store) GetThread(ctx context.Context, threadID, ownerKey string) (store.ReportThread, bool, error) {
	var t store.ReportThread
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_key, report_type, base_payload_jsonb, effective_prompt, latest_report_jsonb, created_at, updated_at
		 FROM report_threads WHERE id = $1 AND owner_key = $2`, threadID, ownerKey)
	err := row.Scan(&t.ThreadID, &t.OwnerKey, &t.ReportType, &t.BasePayloadJSON, &t.EffectivePrompt, &t.LatestReportJSON, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ReportThread{}, false, nil
	}
	if err != nil {
		return store.ReportThread{}, false, fmt.Errorf("pgstore: getting thread: %w", err)
	}

	msgs, err := s.RecentMessages(ctx, threadID, 0)
	if err != nil {
		return store.ReportThread{}, false, err
	}
	t.Messages = msgs
	return t, true, nil
}

func (s *Store) CreateThread(ctx context.Context, thread store.ReportThread) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO report_threads (id, owner_key, report_type, base_payload_jsonb, effective_prompt, latest_report_jsonb, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		thread.ThreadID, thread.OwnerKey, thread.ReportType, thread.BasePayloadJSON, thread.EffectivePrompt,
		thread.LatestReportJSON, thread.CreatedAt, thread.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: creating thread: %w", err)
	}
	return nil
}

func (s *Store) UpdateLatestReport(ctx context.Context, threadID string, latestReportJSON []byte, updatedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE report_threads SET latest_report_jsonb = $1, updated_at = $2 WHERE id = $3`,
		latestReportJSON, updatedAt, threadID)
	if err != nil {
		return fmt.Errorf("pgstore: updating thread latest report: %w", err)
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, msg store.ThreadMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO report_thread_messages (thread_id, role, content, metadata_jsonb, created_at) VALUES ($1, $2, $3, $4, $5)`,
		msg.ThreadID, msg.Role, msg.Content, msg.MetadataJSON, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: appending thread message: %w", err)
	}
	return nil
}

func (s *Store) RecentMessages(ctx context.Context, threadID string, limit int) ([]store.ThreadMessage, error) {
	query := `SELECT thread_id, role, content, metadata_jsonb, created_at FROM report_thread_messages WHERE thread_id = $1 ORDER BY created_at ASC`
	args := []any{threadID}
	if limit > 0 {
		query = `SELECT * FROM (
			SELECT thread_id, role, content, metadata_jsonb, created_at FROM report_thread_messages
			WHERE thread_id = $1 ORDER BY created_at DESC LIMIT $2
		) sub ORDER BY created_at ASC`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: listing thread messages: %w", err)
	}
	defer rows.Close()

	var out []store.ThreadMessage
	for rows.Next() {
		var m store.ThreadMessage
		if err := rows.Scan(&m.ThreadID, &m.Role, &m.Content, &m.MetadataJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgstore: scanning thread message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CompactThreadMessages mirrors sqlitestore's policy using Postgres's
// ctid system column in place of sqlite's rowid.
func (s *Store) CompactThreadMessages(ctx context.Context, olderThan time.Time, keepPerThread int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM report_thread_messages
		WHERE created_at < $1
		AND ctid NOT IN (
			SELECT ctid FROM (
				SELECT ctid, ROW_NUMBER() OVER (PARTITION BY thread_id ORDER BY created_at DESC) AS rn
				FROM report_thread_messages
			) sub WHERE rn <= $2
		)`, olderThan, keepPerThread)
	if err != nil {
		return 0, fmt.Errorf("pgstore: compacting thread messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) GetOverride(ctx context.Context, ownerKey, reportType string) (store.PromptOverride, bool, error) {
	var o store.PromptOverride
	row := s.pool.QueryRow(ctx,
		`SELECT owner_key, report_type, prompt_text, created_at, updated_at FROM report_prompt_overrides WHERE owner_key = $1 AND report_type = $2`,
		ownerKey, reportType)
	err := row.Scan(&o.OwnerKey, &o.ReportType, &o.PromptText, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.PromptOverride{}, false, nil
	}
	if err != nil {
		return store.PromptOverride{}, false, fmt.Errorf("pgstore: getting prompt override: %w", err)
	}
	return o, true, nil
}

func (s *Store) UpsertOverride(ctx context.Context, override store.PromptOverride) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO report_prompt_overrides (owner_key, report_type, prompt_text, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (owner_key, report_type) DO UPDATE SET prompt_text = excluded.prompt_text, updated_at = excluded.updated_at`,
		override.OwnerKey, override.ReportType, override.PromptText, override.CreatedAt, override.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: upserting prompt override: %w", err)
	}
	return nil
}

func (s *Store) DeleteOverride(ctx context.Context, ownerKey, reportType string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM report_prompt_overrides WHERE owner_key = $1 AND report_type = $2`, ownerKey, reportType)
	if err != nil {
		return fmt.Errorf("pgstore: deleting prompt override: %w", err)
	}
	return nil
}

func (s *Store) SaveBrokerEvent(ctx context.Context, rec store.BrokerAuditRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO broker_audit ("timestamp", app, provider, endpoint, status, success, error, request_id) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.Timestamp, rec.App, rec.Provider, rec.Endpoint, rec.Status, rec.Success, rec.Error, rec.RequestID)
	if err != nil {
		return fmt.Errorf("pgstore: saving broker audit event: %w", err)
	}
	return nil
}

func (s *Store) SaveTradeAudit(ctx context.Context, rec store.TradeAuditRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trade_audit ("timestamp", symbol, side, quantity, order_type, ticket_id, approved, actor) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.Timestamp, rec.Symbol, rec.Side, rec.Quantity, rec.OrderType, rec.TicketID, rec.Approved, rec.Actor)
	if err != nil {
		return fmt.Errorf("pgstore: saving trade audit record: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
