package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// fakeRow scans canned values. Supports *int64, *bool, *string and **string.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("fakeRow: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *bool:
			*p = r.values[i].(bool)
		case *string:
			*p = r.values[i].(string)
		case **string:
			if v, ok := r.values[i].(string); ok {
				*p = &v
			} else {
				*p = nil
			}
		default:
			return fmt.Errorf("fakeRow: unsupported destination %T", d)
		}
	}
	return nil
}

// fakeDB records every statement and answers by SQL substring.
// Substrings in failOn and rows must not overlap.
type fakeDB struct {
	mu sync.Mutex

	execs   []string
	queries []string

	failOn map[string]error
	rows   map[string]fakeRow

	beginErr  error
	commitErr error

	begins    int
	commits   int
	rollbacks int
}

func newFakeDB() *fakeDB {
	return &fakeDB{failOn: map[string]error{}, rows: map[string]fakeRow{}}
}

func (d *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execs = append(d.execs, sql)
	for sub, err := range d.failOn {
		if strings.Contains(sql, sub) {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (d *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) stageswap.Row {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, sql)
	for sub, row := range d.rows {
		if strings.Contains(sql, sub) {
			return row
		}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (d *fakeDB) Begin(_ context.Context) (stageswap.Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	d.begins++
	return &fakeTx{db: d}, nil
}

// executed reports whether any statement containing sub was executed.
func (d *fakeDB) executed(sub string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sql := range d.execs {
		if strings.Contains(sql, sub) {
			return true
		}
	}
	return false
}

func (d *fakeDB) countExecs(sub string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, sql := range d.execs {
		if strings.Contains(sql, sub) {
			n++
		}
	}
	return n
}

func (d *fakeDB) queried(sub string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sql := range d.queries {
		if strings.Contains(sql, sub) {
			return true
		}
	}
	return false
}

type fakeTx struct {
	db   *fakeDB
	done bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) stageswap.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.db.commitErr != nil {
		t.done = true
		t.db.rollbacks++
		return t.db.commitErr
	}
	t.done = true
	t.db.commits++
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.db.rollbacks++
	return nil
}

type mockScopeOpener struct {
	db     *fakeDB
	err    error
	opened int
	closed int
}

func (m *mockScopeOpener) OpenScope(_ context.Context, _ *stageswap.ConnectionConfig) (*stageswap.Scope, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.opened++
	return stageswap.NewScope(m.db, func() { m.closed++ }), nil
}

type mockStore struct {
	lockAcquired bool
	lockErr      error
	unlocks      int
	targetExists bool
	rowCount     int64
	countErr     error
	dropped      []stageswap.TableRef
	dropErr      error
}

func newMockStore() *mockStore {
	return &mockStore{lockAcquired: true, targetExists: true}
}

func (m *mockStore) TryLock(_ context.Context, _ stageswap.Querier, _ stageswap.TableRef) (bool, error) {
	return m.lockAcquired, m.lockErr
}

func (m *mockStore) Unlock(_ context.Context, _ stageswap.Querier, _ stageswap.TableRef) error {
	m.unlocks++
	return nil
}

func (m *mockStore) TableExists(_ context.Context, _ stageswap.Querier, _ stageswap.TableRef) (bool, error) {
	return m.targetExists, nil
}

func (m *mockStore) CountRows(_ context.Context, _ stageswap.Querier, _ stageswap.TableRef) (int64, error) {
	return m.rowCount, m.countErr
}

func (m *mockStore) DropTable(_ context.Context, _ stageswap.Querier, table stageswap.TableRef) error {
	m.dropped = append(m.dropped, table)
	return m.dropErr
}

type mockExtractor struct {
	window stageswap.RunWindow
	err    error
	calls  int
	limit  int
}

func (m *mockExtractor) FetchDaily(_ context.Context, _ string, limit int) (stageswap.RunWindow, error) {
	m.calls++
	m.limit = limit
	return m.window, m.err
}

type mockArchiver struct {
	err   error
	calls int
	runID uuid.UUID
}

func (m *mockArchiver) Archive(_ context.Context, runID uuid.UUID, _ stageswap.RunWindow) error {
	m.calls++
	m.runID = runID
	return m.err
}
