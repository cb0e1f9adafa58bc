package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
)

// stubReply is what the stub database answers to one statement.
type stubReply struct {
	columns  []string
	rows     [][]driver.Value
	affected int64
	err      error
}

// stubDB records every statement it sees and answers with reply.
type stubDB struct {
	mu      sync.Mutex
	queries []string
	reply   func(query string, args []driver.NamedValue) stubReply
}

func (s *stubDB) answer(query string, args []driver.NamedValue) stubReply {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return s.reply(query, args)
}

func (s *stubDB) lastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return ""
	}
	return s.queries[len(s.queries)-1]
}

var (
	stubRegister sync.Once
	stubMu       sync.Mutex
	stubDBs      = map[string]*stubDB{}
)

type stubDriver struct{}

func (stubDriver) Open(name string) (driver.Conn, error) {
	stubMu.Lock()
	defer stubMu.Unlock()
	db, ok := stubDBs[name]
	if !ok {
		return nil, errors.New("unknown stub database " + name)
	}
	return &stubConn{db: db}, nil
}

type stubConn struct{ db *stubDB }

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("stub: prepared statements are not supported")
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	return nil, errors.New("stub: transactions are not supported")
}

func (c *stubConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	reply := c.db.answer(query, args)
	if reply.err != nil {
		return nil, reply.err
	}
	return &stubRows{columns: reply.columns, rows: reply.rows}, nil
}

func (c *stubConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	reply := c.db.answer(query, args)
	if reply.err != nil {
		return nil, reply.err
	}
	return driver.RowsAffected(reply.affected), nil
}

type stubRows struct {
	columns []string
	rows    [][]driver.Value
}

func (r *stubRows) Columns() []string { return r.columns }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if len(r.rows) == 0 {
		return io.EOF
	}
	copy(dest, r.rows[0])
	r.rows = r.rows[1:]
	return nil
}

// openStub returns a *sql.DB whose statements are answered by reply.
func openStub(t *testing.T, reply func(query string, args []driver.NamedValue) stubReply) (*sql.DB, *stubDB) {
	t.Helper()
	stubRegister.Do(func() { sql.Register("repostub", stubDriver{}) })

	stub := &stubDB{reply: reply}
	stubMu.Lock()
	stubDBs[t.Name()] = stub
	stubMu.Unlock()

	db, err := sql.Open("repostub", t.Name())
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		stubMu.Lock()
		delete(stubDBs, t.Name())
		stubMu.Unlock()
	})
	return db, stub
}
