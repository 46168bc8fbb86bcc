// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"omikuji-bot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a migrated store.
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return store, cleanup
}

func TestPostgresStore_LoadEmpty(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestPostgresStore_SaveLoad(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	in := model.Snapshot{
		"42":  {LastDrawDate: "2024-01-01", Balance: 10000},
		"100": {LastDrawDate: "", Balance: 0},
	}
	require.NoError(t, store.Save(ctx, in))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2024-01-01", out["42"].LastDrawDate)
	assert.Equal(t, int64(10000), out["42"].Balance)
	assert.Equal(t, "42", out["42"].UserID)

	// Saving a smaller snapshot never deletes rows.
	require.NoError(t, store.Save(ctx, model.Snapshot{"42": {LastDrawDate: "2024-01-02", Balance: 10000}}))
	out, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "2024-01-02", out["42"].LastDrawDate)
}

func TestPostgresStore_Get(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	rec, err := store.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, "unknown", rec.UserID)
	assert.Equal(t, "", rec.LastDrawDate)
	assert.Equal(t, int64(0), rec.Balance)

	require.NoError(t, store.Save(ctx, model.Snapshot{"7": {LastDrawDate: "2024-03-03", Balance: 5}}))
	rec, err = store.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-03", rec.LastDrawDate)
	assert.Equal(t, int64(5), rec.Balance)
}

func TestPostgresStore_NegativeBalanceRejected(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	err := store.Save(context.Background(), model.Snapshot{"1": {Balance: -1}})
	assert.ErrorIs(t, err, ErrStoreWrite)
}

func TestPostgresStore_ConcurrentUpdates(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			err := store.Update(ctx, func(snap model.Snapshot) (bool, error) {
				snap.Ensure("42").Balance += 10
				return true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), rec.Balance)
}
