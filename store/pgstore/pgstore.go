// Package pgstore implements store.Store over a Postgres table, using pgx's
// native array binding to express batch reads and writes as single
// statements over unnest'd parameters.
package pgstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bankaixyz/mmr/hasher"
	"github.com/bankaixyz/mmr/store"
)

const (
	defaultTableName      = "mmr_nodes"
	defaultMaxConnections = int32(20)
)

// Option configures a Store at construction time.
type Option func(*config)

type config struct {
	tableName        string
	maxConnections   int32
	initializeSchema bool
}

// WithTableName overrides the default "mmr_nodes" table name.
func WithTableName(name string) Option {
	return func(c *config) { c.tableName = name }
}

// WithMaxConnections overrides the connection pool's upper bound.
func WithMaxConnections(n int32) Option {
	return func(c *config) { c.maxConnections = n }
}

// WithoutSchemaInitialization skips the CREATE TABLE IF NOT EXISTS step run
// by default on Connect.
func WithoutSchemaInitialization() Option {
	return func(c *config) { c.initializeSchema = false }
}

// Store is a Postgres-backed store.Store.
type Store struct {
	pool      *pgxpool.Pool
	tableName string
}

// Connect opens a pool against connString and, unless
// WithoutSchemaInitialization is given, ensures the backing table exists.
func Connect(ctx context.Context, connString string, opts ...Option) (*Store, error) {
	cfg := config{
		tableName:        defaultTableName,
		maxConnections:   defaultMaxConnections,
		initializeSchema: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing connection string: %s", store.ErrInternal, err)
	}
	poolCfg.MaxConns = cfg.maxConnections

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to postgres: %s", store.ErrInternal, err)
	}

	s := &Store{pool: pool, tableName: pgx.Identifier{cfg.tableName}.Sanitize()}

	if cfg.initializeSchema {
		if err := s.InitSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// InitSchema runs CREATE TABLE IF NOT EXISTS against the configured table.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, s.createTableSQL())
	if err != nil {
		return fmt.Errorf("%w: creating table %s: %s", store.ErrInternal, s.tableName, err)
	}
	return nil
}

func (s *Store) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		mmr_id INT4 NOT NULL,
		kind INT2 NOT NULL,
		idx INT8 NOT NULL,
		value BYTEA NOT NULL,
		PRIMARY KEY (mmr_id, kind, idx),
		CHECK (kind BETWEEN 0 AND 3),
		CHECK (
			(kind IN (0, 1) AND octet_length(value) = 8)
			OR
			(kind IN (2, 3) AND octet_length(value) = 32)
		)
	)`, s.tableName)
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key store.Key) (store.Value, bool, error) {
	return s.getWith(ctx, s.pool, key)
}

func (s *Store) getWith(ctx context.Context, q queryer, key store.Key) (store.Value, bool, error) {
	idx, err := toPgIdx(key.Index)
	if err != nil {
		return store.Value{}, false, err
	}

	query := fmt.Sprintf("SELECT value FROM %s WHERE mmr_id = $1 AND kind = $2 AND idx = $3", s.tableName)
	var raw []byte
	err = q.QueryRow(ctx, query, key.MmrID, kindToI16(key.Kind), idx).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.Value{}, false, nil
		}
		return store.Value{}, false, fmt.Errorf("%w: get: %s", store.ErrInternal, err)
	}

	v, err := decodeValue(key, raw)
	if err != nil {
		return store.Value{}, false, err
	}
	return v, true, nil
}

// Set implements store.Store.
func (s *Store) Set(ctx context.Context, key store.Key, value store.Value) error {
	return s.setWith(ctx, s.pool, key, value)
}

func (s *Store) setWith(ctx context.Context, q queryer, key store.Key, value store.Value) error {
	idx, err := toPgIdx(key.Index)
	if err != nil {
		return err
	}
	encoded, err := encodeValue(key, value)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (mmr_id, kind, idx, value)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (mmr_id, kind, idx) DO UPDATE SET value = EXCLUDED.value`,
		s.tableName,
	)
	_, err = q.Exec(ctx, query, key.MmrID, kindToI16(key.Kind), idx, encoded)
	if err != nil {
		return fmt.Errorf("%w: set: %s", store.ErrInternal, err)
	}
	return nil
}

// SetMany implements store.Store, writing every entry in a single statement
// built over unnest'd parameter arrays so the write is atomic.
func (s *Store) SetMany(ctx context.Context, entries map[store.Key]store.Value) error {
	return s.setManyWith(ctx, s.pool, entries)
}

func (s *Store) setManyWith(ctx context.Context, q queryer, entries map[store.Key]store.Value) error {
	if len(entries) == 0 {
		return nil
	}

	mmrIDs := make([]int32, 0, len(entries))
	kinds := make([]int16, 0, len(entries))
	indices := make([]int64, 0, len(entries))
	values := make([][]byte, 0, len(entries))

	for key, value := range entries {
		idx, err := toPgIdx(key.Index)
		if err != nil {
			return err
		}
		encoded, err := encodeValue(key, value)
		if err != nil {
			return err
		}
		mmrIDs = append(mmrIDs, int32(key.MmrID))
		kinds = append(kinds, kindToI16(key.Kind))
		indices = append(indices, idx)
		values = append(values, encoded)
	}

	query := fmt.Sprintf(
		`WITH input AS (
			SELECT * FROM unnest($1::int4[], $2::int2[], $3::int8[], $4::bytea[])
			AS t(mmr_id, kind, idx, value)
		)
		INSERT INTO %s (mmr_id, kind, idx, value)
		SELECT mmr_id, kind, idx, value FROM input
		ON CONFLICT (mmr_id, kind, idx) DO UPDATE SET value = EXCLUDED.value`,
		s.tableName,
	)

	_, err := q.Exec(ctx, query, mmrIDs, kinds, indices, values)
	if err != nil {
		return fmt.Errorf("%w: set_many: %s", store.ErrInternal, err)
	}
	return nil
}

// GetMany implements store.Store, reading every key in a single statement
// and recovering request order via WITH ORDINALITY.
func (s *Store) GetMany(ctx context.Context, keys []store.Key) (map[store.Key]store.Value, error) {
	return s.getManyWith(ctx, s.pool, keys)
}

func (s *Store) getManyWith(ctx context.Context, q queryer, keys []store.Key) (map[store.Key]store.Value, error) {
	out := make(map[store.Key]store.Value, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	mmrIDs := make([]int32, len(keys))
	kinds := make([]int16, len(keys))
	indices := make([]int64, len(keys))
	for i, key := range keys {
		idx, err := toPgIdx(key.Index)
		if err != nil {
			return nil, err
		}
		mmrIDs[i] = int32(key.MmrID)
		kinds[i] = kindToI16(key.Kind)
		indices[i] = idx
	}

	query := fmt.Sprintf(
		`WITH requested AS (
			SELECT * FROM unnest($1::int4[], $2::int2[], $3::int8[])
			WITH ORDINALITY AS req(mmr_id, kind, idx, ord)
		)
		SELECT req.ord, store.value
		FROM requested req
		LEFT JOIN %s store
			ON store.mmr_id = req.mmr_id
		   AND store.kind = req.kind
		   AND store.idx = req.idx
		ORDER BY req.ord`,
		s.tableName,
	)

	rows, err := q.Query(ctx, query, mmrIDs, kinds, indices)
	if err != nil {
		return nil, fmt.Errorf("%w: get_many: %s", store.ErrInternal, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ord int64
		var raw []byte
		if err := rows.Scan(&ord, &raw); err != nil {
			return nil, fmt.Errorf("%w: get_many scan: %s", store.ErrInternal, err)
		}
		if raw == nil {
			continue
		}
		position := ord - 1
		if position < 0 || position >= int64(len(keys)) {
			return nil, fmt.Errorf("%w: get_many: ordinality %d out of range", store.ErrInternal, ord)
		}
		key := keys[position]
		v, err := decodeValue(key, raw)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: get_many rows: %s", store.ErrInternal, err)
	}

	return out, nil
}

// queryer is the subset of pgxpool.Pool/pgx.Tx this store needs, letting the
// same query-building code run against either a pool connection or a
// transaction (see Tx in tx.go).
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func kindToI16(kind store.KeyKind) int16 {
	return int16(kind)
}

func toPgIdx(index uint64) (int64, error) {
	if index > uint64(math.MaxInt64) {
		return 0, fmt.Errorf("%w: index %d out of int8 range", store.ErrInternal, index)
	}
	return int64(index), nil
}

func encodeValue(key store.Key, value store.Value) ([]byte, error) {
	switch key.Kind {
	case store.KindLeafCount, store.KindElementsCount:
		u, err := value.ExpectU64(key)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, u)
		return buf, nil
	case store.KindRootHash, store.KindNodeHash:
		h, err := value.ExpectHash(key)
		if err != nil {
			return nil, err
		}
		return h[:], nil
	default:
		return nil, fmt.Errorf("%w: unknown key kind %s", store.ErrInternal, key.Kind)
	}
}

func decodeValue(key store.Key, raw []byte) (store.Value, error) {
	switch key.Kind {
	case store.KindLeafCount, store.KindElementsCount:
		if len(raw) != 8 {
			return store.Value{}, fmt.Errorf("%w: expected 8 bytes for %s, got %d", store.ErrInternal, key.Kind, len(raw))
		}
		return store.U64Value(binary.BigEndian.Uint64(raw)), nil
	case store.KindRootHash, store.KindNodeHash:
		if len(raw) != hasher.Size {
			return store.Value{}, fmt.Errorf("%w: expected %d bytes for %s, got %d", store.ErrInternal, hasher.Size, key.Kind, len(raw))
		}
		var h hasher.H
		copy(h[:], raw)
		return store.HashValue(h), nil
	default:
		return store.Value{}, fmt.Errorf("%w: unknown key kind %s", store.ErrInternal, key.Kind)
	}
}
