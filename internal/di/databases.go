package di

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finresearch/orchestrator/internal/config"
	"github.com/finresearch/orchestrator/internal/store"
	"github.com/finresearch/orchestrator/internal/store/pgstore"
	"github.com/finresearch/orchestrator/internal/store/sqlitestore"
)

// openStore picks the store.Store adapter named by cfg.DBDriver (spec
// §1's externally-owned persistence boundary, concretely realized per
// SPEC_FULL §18). The second return value is the raw *pgxpool.Pool when
// one was opened, so the caller can close it after the store itself
// (pgstore.Close is a no-op over an externally-owned pool).
func openStore(ctx context.Context, cfg *config.Config) (store.Store, *pgxpool.Pool, error) {
	switch cfg.DBDriver {
	case "pgx":
		pool, err := pgxpool.New(ctx, cfg.DBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("di: connecting to postgres: %w", err)
		}
		s, err := pgstore.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("di: migrating postgres store: %w", err)
		}
		return s, pool, nil

	default:
		s, err := sqlitestore.Open(cfg.DBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("di: opening sqlite store: %w", err)
		}
		return s, nil, nil
	}
}
