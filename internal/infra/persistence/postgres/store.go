// Package postgres persists the in-memory content store to PostgreSQL via the
// pgx stdlib driver. Mirrors the sqlite wrapper: memory is authoritative, the
// snapshot is written to a bucket table after each commit.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"termcore/internal/infra/persistence/memory"
	"termcore/pkg/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS termcore_state (
	bucket TEXT PRIMARY KEY,
	payload JSONB NOT NULL
)`

var sqlOpen = sql.Open

// OverrideSQLOpen swaps the database opener for tests and returns a restore
// function.
func OverrideSQLOpen(open func(driver, dsn string) (*sql.DB, error)) func() {
	prev := sqlOpen
	sqlOpen = open
	return func() { sqlOpen = prev }
}

// Store wraps the memory store with postgres snapshot durability.
type Store struct {
	mem *memory.Store
	db  *sql.DB

	persistMu sync.Mutex
}

// Open connects with the given DSN, ensures the state table exists, and loads
// any persisted snapshot.
func Open(ctx context.Context, dsn string, opts ...memory.Option) (*Store, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{mem: memory.NewStore(opts...), db: db}
	if err := s.load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetRules installs the rules engine on the underlying memory store.
func (s *Store) SetRules(rules *domain.RulesEngine) { s.mem.SetRules(rules) }

// RunInTransaction delegates to the memory store and persists the resulting
// snapshot when the transaction commits.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) ([]domain.Change, error) {
	changes, err := s.mem.RunInTransaction(ctx, fn)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	return changes, nil
}

// View delegates to the memory store.
func (s *Store) View(ctx context.Context, fn func(v domain.TransactionView) error) error {
	return s.mem.View(ctx, fn)
}

// ExportState delegates to the memory store.
func (s *Store) ExportState(ctx context.Context) (domain.Snapshot, error) {
	return s.mem.ExportState(ctx)
}

// ImportState replaces the memory state and persists it.
func (s *Store) ImportState(ctx context.Context, snapshot domain.Snapshot) error {
	if err := s.mem.ImportState(ctx, snapshot); err != nil {
		return err
	}
	if err := s.persist(ctx); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM termcore_state`)
	if err != nil {
		return fmt.Errorf("read state table: %w", err)
	}
	defer rows.Close()
	buckets := map[string]json.RawMessage{}
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state row: %w", err)
		}
		buckets[bucket] = json.RawMessage(payload)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state rows: %w", err)
	}
	if len(buckets) == 0 {
		return nil
	}
	return s.mem.ImportState(ctx, domain.Snapshot{Version: 1, Buckets: buckets})
}

func (s *Store) persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	snapshot, err := s.mem.ExportState(ctx)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for bucket, payload := range snapshot.Buckets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO termcore_state (bucket, payload) VALUES ($1, $2)
			 ON CONFLICT (bucket) DO UPDATE SET payload = EXCLUDED.payload`,
			bucket, []byte(payload)); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert bucket %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var _ domain.PersistentStore = (*Store)(nil)
