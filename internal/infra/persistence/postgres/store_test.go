package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"termcore/pkg/domain"
)

// stubData backs a fake postgres: a bucket table plus a statement log.
type stubData struct {
	mu      sync.Mutex
	buckets map[string][]byte
	execs   []string
}

func newStubData() *stubData {
	return &stubData{buckets: map[string][]byte{}}
}

type stubConnector struct{ data *stubData }

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn{data: c.data}, nil
}

func (c stubConnector) Driver() driver.Driver { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("use the connector")
}

type stubConn struct{ data *stubData }

func (stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (stubConn) Close() error { return nil }

func (stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

func (c stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return stubTx{}, nil
}

func (c stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.data.mu.Lock()
	defer c.data.mu.Unlock()
	c.data.execs = append(c.data.execs, query)
	if strings.HasPrefix(strings.TrimSpace(query), "INSERT") {
		bucket := args[0].Value.(string)
		payload := append([]byte(nil), args[1].Value.([]byte)...)
		c.data.buckets[bucket] = payload
	}
	return driver.RowsAffected(1), nil
}

func (c stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(query, "termcore_state") {
		return nil, fmt.Errorf("unexpected query %q", query)
	}
	c.data.mu.Lock()
	defer c.data.mu.Unlock()
	rows := &stubRows{}
	for bucket, payload := range c.data.buckets {
		rows.rows = append(rows.rows, [2]driver.Value{bucket, append([]byte(nil), payload...)})
	}
	return rows, nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubRows struct {
	rows [][2]driver.Value
	pos  int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	dest[0] = r.rows[r.pos][0]
	dest[1] = r.rows[r.pos][1]
	r.pos++
	return nil
}

func openStub(t *testing.T, data *stubData) func() {
	t.Helper()
	return OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("unexpected driver %q", driverName)
		}
		return sql.OpenDB(stubConnector{data: data}), nil
	})
}

func TestOpenAppliesSchema(t *testing.T) {
	data := newStubData()
	restore := openStub(t, data)
	defer restore()

	store, err := Open(context.Background(), "postgres://ignored")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	sawDDL := false
	for _, stmt := range data.execs {
		if strings.Contains(stmt, "CREATE TABLE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("schema not applied, execs: %v", data.execs)
	}
}

func TestRunInTransactionPersistsAndReloads(t *testing.T) {
	data := newStubData()
	restore := openStub(t, data)
	defer restore()
	ctx := context.Background()

	store, err := Open(ctx, "postgres://ignored")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.PutConcept(domain.Concept{Name: "heart"})
		return err
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	store.Close()

	if len(data.buckets) == 0 {
		t.Fatalf("snapshot not written to the bucket table")
	}

	reopened, err := Open(ctx, "postgres://ignored")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.View(ctx, func(v domain.TransactionView) error {
		concepts := v.ListConcepts()
		if len(concepts) != 1 || concepts[0].Name != "heart" {
			return fmt.Errorf("state not reloaded: %+v", concepts)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestOpenConnectionFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return nil, errors.New("connection refused")
	})
	defer restore()

	if _, err := Open(context.Background(), "postgres://down"); err == nil {
		t.Fatalf("expected open error")
	}
}
