package utils

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
)

// Minimal driver that records transaction outcomes; enough surface for
// BeginTx/Exec/Commit/Rollback.
type txRecorder struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
	execs     int
}

func (r *txRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits, r.rollbacks, r.execs = 0, 0, 0
}

func (r *txRecorder) counts() (commits, rollbacks, execs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits, r.rollbacks, r.execs
}

type stubDriver struct{ rec *txRecorder }

func (d *stubDriver) Open(string) (driver.Conn, error) { return &stubConn{rec: d.rec}, nil }

type stubConn struct{ rec *txRecorder }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return &stubStmt{rec: c.rec}, nil }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return &stubTx{rec: c.rec}, nil }

type stubTx struct{ rec *txRecorder }

func (t *stubTx) Commit() error {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.commits++
	return nil
}

func (t *stubTx) Rollback() error {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.rollbacks++
	return nil
}

type stubStmt struct{ rec *txRecorder }

func (s *stubStmt) Close() error  { return nil }
func (s *stubStmt) NumInput() int { return -1 }

func (s *stubStmt) Exec([]driver.Value) (driver.Result, error) {
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.rec.execs++
	return driver.ResultNoRows, nil
}

func (s *stubStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("query not supported")
}

var (
	stubRec      = &txRecorder{}
	registerOnce sync.Once
)

func openStubDB(t *testing.T) *sql.DB {
	t.Helper()
	registerOnce.Do(func() { sql.Register("txstub", &stubDriver{rec: stubRec}) })
	stubRec.reset()

	db, err := sql.Open("txstub", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := openStubDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT 1"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "UPDATE 1")
		return err
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	commits, rollbacks, execs := stubRec.counts()
	if commits != 1 || rollbacks != 0 {
		t.Fatalf("expected 1 commit 0 rollbacks, got %d/%d", commits, rollbacks)
	}
	if execs != 2 {
		t.Fatalf("expected both statements to run, got %d", execs)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openStubDB(t)
	boom := errors.New("second write failed")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT 1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fn error, got %v", err)
	}

	commits, rollbacks, _ := stubRec.counts()
	if commits != 0 || rollbacks != 1 {
		t.Fatalf("expected 0 commits 1 rollback, got %d/%d", commits, rollbacks)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := openStubDB(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
			panic("mid-transaction panic")
		})
	}()

	commits, rollbacks, _ := stubRec.counts()
	if commits != 0 || rollbacks != 1 {
		t.Fatalf("expected 0 commits 1 rollback, got %d/%d", commits, rollbacks)
	}
}
