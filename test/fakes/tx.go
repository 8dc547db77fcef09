// Package fakes holds pgx test doubles shared by package-level unit tests.
package fakes

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool hands out Tx values. OnCommit and OnRollback run once per tx with
// the finished tx so in-memory stores can apply or drop staged writes.
type Pool struct {
	mu         sync.Mutex
	BeginErr   error
	CommitErr  error
	OnCommit   func(tx *Tx)
	OnRollback func(tx *Tx)
	Txs        []*Tx
}

func (p *Pool) Begin(ctx context.Context) (pgx.Tx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.BeginErr != nil {
		return nil, p.BeginErr
	}
	tx := &Tx{pool: p}
	p.Txs = append(p.Txs, tx)
	return tx, nil
}

// Last returns the most recently started tx, or nil.
func (p *Pool) Last() *Tx {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Txs) == 0 {
		return nil
	}
	return p.Txs[len(p.Txs)-1]
}

// Tx records whether it was committed or rolled back.
type Tx struct {
	pool       *Pool
	mu         sync.Mutex
	Committed  bool
	RolledBack bool
}

func (t *Tx) done() bool {
	return t.Committed || t.RolledBack
}

func (t *Tx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakes: nested transactions not supported")
}

func (t *Tx) Commit(context.Context) error {
	t.mu.Lock()
	if t.done() {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	if t.pool.CommitErr != nil {
		t.RolledBack = true
		t.mu.Unlock()
		if t.pool.OnRollback != nil {
			t.pool.OnRollback(t)
		}
		return t.pool.CommitErr
	}
	t.Committed = true
	t.mu.Unlock()
	if t.pool.OnCommit != nil {
		t.pool.OnCommit(t)
	}
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	t.mu.Lock()
	if t.done() {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	t.RolledBack = true
	t.mu.Unlock()
	if t.pool.OnRollback != nil {
		t.pool.OnRollback(t)
	}
	return nil
}

func (t *Tx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (t *Tx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (t *Tx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (t *Tx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (t *Tx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (t *Tx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (t *Tx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (t *Tx) Conn() *pgx.Conn {
	return nil
}
