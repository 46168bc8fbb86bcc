package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"omikuji-bot/internal/model"
)

// Schema creates the table used by PostgresStore.
const Schema = `
	CREATE TABLE IF NOT EXISTS omikuji_users (
		user_id TEXT PRIMARY KEY,
		last_draw_date TEXT NOT NULL DEFAULT '',
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore keeps user records in PostgreSQL, one row per user.
// Records are upserted on save and never deleted.
type PostgresStore struct {
	pool *pgxpool.Pool
	mu   sync.Mutex
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if needed.
func (r *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create omikuji_users table: %w", err)
	}
	return nil
}

// Load reads every user record.
func (r *PostgresStore) Load(ctx context.Context) (model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return loadSnapshot(ctx, r.pool)
}

// Save upserts every record in snap inside one transaction.
func (r *PostgresStore) Save(ctx context.Context, snap model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrStoreWrite, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := saveSnapshot(ctx, tx, snap); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", ErrStoreWrite, err)
	}
	return nil
}

// Update runs fn against a table-locked snapshot so that draws from other
// processes sharing the database are serialized too.
func (r *PostgresStore) Update(ctx context.Context, fn UpdateFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrStoreRead, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `LOCK TABLE omikuji_users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("%w: failed to lock table: %w", ErrStoreRead, err)
	}

	snap, err := loadSnapshot(ctx, tx)
	if err != nil {
		return err
	}
	persist, err := fn(snap)
	if err != nil {
		return err
	}
	if !persist {
		return nil
	}
	if err := saveSnapshot(ctx, tx, snap); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", ErrStoreWrite, err)
	}
	return nil
}

// Get retrieves a single user's record.
func (r *PostgresStore) Get(ctx context.Context, userID string) (*model.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	const query = `
		SELECT user_id, last_draw_date, balance
		FROM omikuji_users
		WHERE user_id = $1
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get user: %w", ErrStoreRead, err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[model.UserRecord])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.UserRecord{UserID: userID}, nil
		}
		return nil, fmt.Errorf("%w: failed to scan user: %w", ErrStoreRead, err)
	}
	return rec, nil
}

func loadSnapshot(ctx context.Context, q querier) (model.Snapshot, error) {
	const query = `
		SELECT user_id, last_draw_date, balance
		FROM omikuji_users
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query users: %w", ErrStoreRead, err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[model.UserRecord])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan users: %w", ErrStoreRead, err)
	}

	snap := make(model.Snapshot, len(records))
	for _, rec := range records {
		snap[rec.UserID] = rec
	}
	return snap, nil
}

func saveSnapshot(ctx context.Context, q querier, snap model.Snapshot) error {
	const upsert = `
		INSERT INTO omikuji_users (user_id, last_draw_date, balance, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET last_draw_date = EXCLUDED.last_draw_date,
			balance = EXCLUDED.balance,
			updated_at = NOW()
		WHERE omikuji_users.last_draw_date IS DISTINCT FROM EXCLUDED.last_draw_date
			OR omikuji_users.balance IS DISTINCT FROM EXCLUDED.balance
	`

	if len(snap) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for id, rec := range snap {
		if rec == nil {
			continue
		}
		batch.Queue(upsert, id, rec.LastDrawDate, rec.Balance)
	}

	results := q.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("%w: failed to upsert user: %w", ErrStoreWrite, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("%w: failed to flush batch: %w", ErrStoreWrite, err)
	}
	return nil
}
