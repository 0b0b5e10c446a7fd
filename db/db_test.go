package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vmget/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *BoltDB {
	t.Helper()

	cfg, err := config.NewConfigBuilder().
		WithDBPath(t.TempDir()).
		WithDBFile("test.db").
		WithBucket("test").
		Build()
	require.NoError(t, err)

	database, err := NewBoltDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

// TestBoltDB_Integration tests BoltDB with a real database file
func TestBoltDB_Integration(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	bucket := database.Bucket(SettingsBucket)

	key := []byte("test-key")
	value := []byte("test-value")

	require.NoError(t, database.PutKV(ctx, bucket, key, value))

	retrievedValue, err := database.GetKV(ctx, bucket, key)
	assert.NoError(t, err)
	assert.Equal(t, value, retrievedValue)

	require.NoError(t, database.DeleteKV(ctx, bucket, key))

	retrievedValue, err = database.GetKV(ctx, bucket, key)
	assert.NoError(t, err)
	assert.Nil(t, retrievedValue)
}

func TestBoltDB_BucketsCreated(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	for _, suffix := range []string{SettingsBucket, SessionsBucket} {
		all, err := database.GetAllKV(ctx, database.Bucket(suffix))
		assert.NoError(t, err)
		assert.Empty(t, all)
	}

	_, err := database.GetKV(ctx, "missing", []byte("k"))
	assert.Error(t, err)
}

func TestBoltDB_DeleteAll(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	bucket := database.Bucket(SessionsBucket)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, database.PutKV(ctx, bucket, []byte(k), []byte(k)))
	}
	require.NoError(t, database.DeleteAllKV(ctx, bucket))

	all, err := database.GetAllKV(ctx, bucket)
	assert.NoError(t, err)
	assert.Empty(t, all)
}

func TestBoltDB_CancelledContext(t *testing.T) {
	database := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := database.PutKV(ctx, database.Bucket(SettingsBucket), []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, context.Canceled)
}

// TestGenericRepository tests the generic repository
func TestGenericRepository(t *testing.T) {
	database := newTestDB(t)

	type TestEntity struct {
		ID   string    `json:"id"`
		Name string    `json:"name"`
		Time time.Time `json:"time"`
	}

	repo := NewGenericRepository[*TestEntity](database, database.Bucket(SessionsBucket), nil)
	ctx := context.Background()

	entity := &TestEntity{ID: "test-1", Name: "Test Entity", Time: time.Now()}
	require.NoError(t, repo.Save(ctx, entity.ID, entity))

	retrieved, err := repo.Get(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ID, retrieved.ID)
	assert.Equal(t, entity.Name, retrieved.Name)

	entity2 := &TestEntity{ID: "test-2", Name: "Test Entity 2", Time: time.Now()}
	require.NoError(t, repo.Save(ctx, entity2.ID, entity2))

	all, err := repo.GetAll(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.Delete(ctx, entity.ID))

	_, err = repo.Get(ctx, entity.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGenericRepository_SkipsCorruptRecords(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	bucket := database.Bucket(SessionsBucket)

	repo := NewGenericRepository[map[string]int](database, bucket, nil)
	require.NoError(t, repo.Save(ctx, "good", map[string]int{"n": 1}))
	require.NoError(t, database.PutKV(ctx, bucket, []byte("bad"), []byte("{not json")))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 1, all["good"]["n"])
}

func TestBoltDB_UpdateKV(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	bucket := database.Bucket(SettingsBucket)
	key := []byte("counter")

	incr := func(current []byte) ([]byte, error) {
		return append(current, 'x'), nil
	}
	require.NoError(t, database.UpdateKV(ctx, bucket, key, incr))
	require.NoError(t, database.UpdateKV(ctx, bucket, key, incr))

	value, err := database.GetKV(ctx, bucket, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("xx"), value)

	// An error leaves the value alone
	boom := errors.New("boom")
	err = database.UpdateKV(ctx, bucket, key, func([]byte) ([]byte, error) { return []byte("lost"), boom })
	assert.ErrorIs(t, err, boom)
	value, _ = database.GetKV(ctx, bucket, key)
	assert.Equal(t, []byte("xx"), value)

	// nil deletes
	require.NoError(t, database.UpdateKV(ctx, bucket, key, func([]byte) ([]byte, error) { return nil, nil }))
	value, err = database.GetKV(ctx, bucket, key)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestBoltDB_SchemaVersion(t *testing.T) {
	cfg, err := config.NewConfigBuilder().
		WithDBPath(t.TempDir()).
		WithDBFile("test.db").
		WithBucket("test").
		Build()
	require.NoError(t, err)

	database, err := NewBoltDB(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	v, err := database.GetKV(ctx, database.Bucket(MetaBucket), schemaKey)
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	// Reopening an existing file is fine
	require.NoError(t, database.Close())
	database, err = NewBoltDB(cfg)
	require.NoError(t, err)

	require.NoError(t, database.PutKV(ctx, database.Bucket(MetaBucket), schemaKey, []byte("99")))
	require.NoError(t, database.Close())

	_, err = NewBoltDB(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestGenericRepository_Update(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	type Counter struct {
		N int `json:"n"`
	}
	repo := NewGenericRepository[Counter](database, database.Bucket(SettingsBucket), nil)

	var sawMissing bool
	require.NoError(t, repo.Update(ctx, "c", func(c *Counter, found bool) error {
		sawMissing = !found
		c.N++
		return nil
	}))
	assert.True(t, sawMissing)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Update(ctx, "c", func(c *Counter, found bool) error {
				c.N++
				return nil
			}))
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 21, got.N)
}
