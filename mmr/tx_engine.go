package mmr

import (
	"context"

	"github.com/bankaixyz/mmr/hasher"
	"github.com/bankaixyz/mmr/store"
	"github.com/bankaixyz/mmr/store/pgstore"
)

// txStoreAdapter satisfies store.Store by routing every read and write
// through a single pgstore.Tx, so TxEngine can drive the ordinary Mmr
// append/proof logic unchanged inside a caller-owned Postgres transaction.
type txStoreAdapter struct {
	tx *pgstore.Tx
}

func (a *txStoreAdapter) Get(ctx context.Context, key store.Key) (store.Value, bool, error) {
	values, err := a.tx.GetManyInTx(ctx, []store.Key{key})
	if err != nil {
		return store.Value{}, false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (a *txStoreAdapter) Set(ctx context.Context, key store.Key, value store.Value) error {
	return a.tx.SetManyInTx(ctx, map[store.Key]store.Value{key: value})
}

func (a *txStoreAdapter) SetMany(ctx context.Context, entries map[store.Key]store.Value) error {
	return a.tx.SetManyInTx(ctx, entries)
}

func (a *txStoreAdapter) GetMany(ctx context.Context, keys []store.Key) (map[store.Key]store.Value, error) {
	return a.tx.GetManyInTx(ctx, keys)
}

// TxEngine is an Mmr bound to a single pgstore.Tx, for callers that need an
// append to commit or roll back atomically alongside other writes in the
// same database transaction. The embedded Mmr's read-only operations
// (GetProof, GetPeaks, BagThePeaks, ...) work unchanged against the
// transaction's view.
type TxEngine struct {
	*Mmr
	tx *pgstore.Tx
}

// NewTxEngine returns a TxEngine for mmrID, reading and writing through tx.
func NewTxEngine(tx *pgstore.Tx, h hasher.Hasher, mmrID uint32, opts ...Option) *TxEngine {
	cfg := newEngineConfig(opts)
	return &TxEngine{
		Mmr: &Mmr{MmrID: mmrID, store: &txStoreAdapter{tx: tx}, hasher: h, log: cfg.log},
		tx:  tx,
	}
}

// AppendInTx appends a single value within the bound transaction. The
// engine's count cache is invalidated both before and after: other
// statements may have touched this mmr_id earlier in the same transaction,
// and nothing outside the transaction should see a cache primed from
// readings that are only visible until commit.
func (e *TxEngine) AppendInTx(ctx context.Context, value hasher.H) (AppendResult, error) {
	e.logDebugf("mmr %d: append_in_tx start", e.MmrID)
	e.cache = cachedCounts{}
	result, err := e.Mmr.Append(ctx, value)
	e.cache = cachedCounts{}
	e.logDebugf("mmr %d: append_in_tx end, err=%v", e.MmrID, err)
	return result, err
}

// BatchAppendInTx appends values within the bound transaction, with the same
// cache-invalidation behavior as AppendInTx.
func (e *TxEngine) BatchAppendInTx(ctx context.Context, values []hasher.H) (BatchAppendResult, error) {
	e.logDebugf("mmr %d: batch_append_in_tx start, %d values", e.MmrID, len(values))
	e.cache = cachedCounts{}
	result, err := e.Mmr.BatchAppend(ctx, values)
	e.cache = cachedCounts{}
	e.logDebugf("mmr %d: batch_append_in_tx end, err=%v", e.MmrID, err)
	return result, err
}
