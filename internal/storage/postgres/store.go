package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityPool/internal/model"
)

// Schema creates the tables used by the store.
const Schema = `
CREATE TABLE IF NOT EXISTS pools (
	pool_address    TEXT PRIMARY KEY,
	token_a         TEXT NOT NULL,
	token_b         TEXT NOT NULL,
	fee_numerator   BIGINT NOT NULL,
	fee_denominator BIGINT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pool_events (
	pool_address TEXT NOT NULL,
	seq          BIGINT NOT NULL,
	op           TEXT NOT NULL,
	caller       TEXT NOT NULL,
	ts           BIGINT NOT NULL,
	decoded      JSONB,
	reserve_a    NUMERIC NOT NULL,
	reserve_b    NUMERIC NOT NULL,
	total_shares NUMERIC NOT NULL,
	error        TEXT,
	PRIMARY KEY (pool_address, seq)
);
CREATE TABLE IF NOT EXISTS pool_op_errors (
	pool_address TEXT NOT NULL,
	line         BIGINT NOT NULL,
	op           TEXT NOT NULL,
	caller       TEXT NOT NULL,
	fatal        BOOLEAN NOT NULL,
	error        TEXT NOT NULL,
	PRIMARY KEY (pool_address, line)
);
CREATE TABLE IF NOT EXISTS pool_window_metrics (
	pool_address        TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT NOT NULL,
	deposit_count       BIGINT NOT NULL,
	withdraw_count      BIGINT NOT NULL,
	failed_count        BIGINT NOT NULL,
	volume_a            NUMERIC NOT NULL,
	volume_b            NUMERIC NOT NULL,
	fee_a               NUMERIC NOT NULL,
	fee_b               NUMERIC NOT NULL,
	fee_rate_a          NUMERIC,
	fee_rate_b          NUMERIC,
	reserve_a           NUMERIC NOT NULL,
	reserve_b           NUMERIC NOT NULL,
	total_shares        NUMERIC NOT NULL,
	apr                 NUMERIC,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_address, window_size_seconds, window_start_ts)
);
CREATE TABLE IF NOT EXISTS pool_state (
	name       TEXT PRIMARY KEY,
	snapshot   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS aggregate_state (
	name              TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for pool events, metrics and snapshots.
type Store struct {
	pool     *pgxpool.Pool
	poolAddr string
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// ForPool scopes operation errors written through PutErrorBatch to a pool address.
func (s *Store) ForPool(address string) *Store {
	return &Store{pool: s.pool, poolAddr: address}
}

// UpsertPools inserts or updates pool parameters.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolInfo) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_address, token_a, token_b, fee_numerator, fee_denominator, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				token_a = EXCLUDED.token_a,
				token_b = EXCLUDED.token_b,
				fee_numerator = EXCLUDED.fee_numerator,
				fee_denominator = EXCLUDED.fee_denominator,
				updated_at = now()
		`,
			p.Address,
			p.TokenA,
			p.TokenB,
			int64(p.FeeNumerator),
			int64(p.FeeDenominator),
		)
	}
	return s.sendBatch(ctx, batch, len(pools))
}

// PutEventBatch inserts replayed events. Re-inserting a seq is a no-op so a
// resumed replay can overlap the last uncommitted batch.
func (s *Store) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		var decoded *string
		if e.Decoded != nil {
			raw, err := json.Marshal(e.Decoded)
			if err != nil {
				return fmt.Errorf("marshal decoded: %w", err)
			}
			text := string(raw)
			decoded = &text
		}
		var errText *string
		if e.Error != "" {
			errText = &e.Error
		}
		batch.Queue(`
			INSERT INTO pool_events (
				pool_address, seq, op, caller, ts, decoded, reserve_a, reserve_b, total_shares, error
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (pool_address, seq) DO NOTHING
		`,
			e.Pool,
			int64(e.Seq),
			e.Op,
			e.Caller,
			int64(e.Timestamp),
			decoded,
			e.ReserveA,
			e.ReserveB,
			e.TotalShares,
			errText,
		)
	}
	return s.sendBatch(ctx, batch, len(events))
}

// PutErrorBatch records rejected operations for the scoped pool.
func (s *Store) PutErrorBatch(ctx context.Context, errs []model.OperationError) error {
	if len(errs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range errs {
		batch.Queue(`
			INSERT INTO pool_op_errors (pool_address, line, op, caller, fatal, error)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (pool_address, line)
			DO UPDATE SET error = EXCLUDED.error, fatal = EXCLUDED.fatal
		`,
			s.poolAddr,
			int64(rec.Line),
			rec.Op,
			rec.Caller,
			rec.Fatal,
			rec.Error,
		)
	}
	return s.sendBatch(ctx, batch, len(errs))
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, deposit_count, withdraw_count, failed_count,
				volume_a, volume_b, fee_a, fee_b, fee_rate_a, fee_rate_b,
				reserve_a, reserve_b, total_shares, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				failed_count = EXCLUDED.failed_count,
				volume_a = EXCLUDED.volume_a,
				volume_b = EXCLUDED.volume_b,
				fee_a = EXCLUDED.fee_a,
				fee_b = EXCLUDED.fee_b,
				fee_rate_a = EXCLUDED.fee_rate_a,
				fee_rate_b = EXCLUDED.fee_rate_b,
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				total_shares = EXCLUDED.total_shares,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			int64(m.FailedCount),
			m.VolumeA,
			m.VolumeB,
			m.FeeA,
			m.FeeB,
			m.FeeRateA,
			m.FeeRateB,
			m.ReserveA,
			m.ReserveB,
			m.TotalShares,
			m.APR,
		)
	}
	return s.sendBatch(ctx, batch, len(metrics))
}

// LoadSnapshot returns the last saved pool snapshot for a name.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (model.PoolSnapshot, bool, error) {
	if name == "" {
		return model.PoolSnapshot{}, false, fmt.Errorf("state name required")
	}
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM pool_state WHERE name=$1`, name)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolSnapshot{}, false, nil
		}
		return model.PoolSnapshot{}, false, err
	}
	var snap model.PoolSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.PoolSnapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

// SaveSnapshot upserts the pool snapshot for a name.
func (s *Store) SaveSnapshot(ctx context.Context, name string, snap model.PoolSnapshot) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	if snap.UpdatedAt == "" {
		snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pool_state (name, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = now()
	`, name, string(data))
	return err
}

// LoadCursor returns last_processed_ts for an aggregation name.
func (s *Store) LoadCursor(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregate_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveCursor upserts last_processed_ts for an aggregation name.
func (s *Store) SaveCursor(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregate_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
