package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bankaixyz/mmr/store"
)

// Tx is a host-supplied transaction handle that routes store reads and
// writes through a single Postgres transaction, for callers that need the
// MMR update to commit or roll back atomically alongside other writes.
type Tx struct {
	tx        pgx.Tx
	tableName string
}

// BeginWriteTx starts a transaction against the store's pool. The caller
// owns the transaction's lifetime: it must call Commit or Rollback.
func (s *Store) BeginWriteTx(ctx context.Context) (*Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin_write_tx: %s", store.ErrInternal, err)
	}
	return &Tx{tx: tx, tableName: s.tableName}, nil
}

// Commit commits the underlying transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %s", store.ErrInternal, err)
	}
	return nil
}

// Rollback rolls back the underlying transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("%w: rollback: %s", store.ErrInternal, err)
	}
	return nil
}

// GetManyInTx reads keys within t's transaction.
func (t *Tx) GetManyInTx(ctx context.Context, keys []store.Key) (map[store.Key]store.Value, error) {
	s := &Store{tableName: t.tableName}
	return s.getManyWith(ctx, t.tx, keys)
}

// SetManyInTx writes entries within t's transaction. The write becomes
// visible to other transactions only once the caller commits t.
func (t *Tx) SetManyInTx(ctx context.Context, entries map[store.Key]store.Value) error {
	s := &Store{tableName: t.tableName}
	return s.setManyWith(ctx, t.tx, entries)
}
