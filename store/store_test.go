package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmget/config"
	"vmget/db"
)

func newTestDB(t *testing.T) *db.BoltDB {
	t.Helper()

	cfg, err := config.NewConfigBuilder().
		WithDBPath(t.TempDir()).
		WithDBFile("store.db").
		WithBucket("test").
		Build()
	require.NoError(t, err)

	database, err := db.NewBoltDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSettingsRepository(t *testing.T) {
	database := newTestDB(t)
	repo := NewSettingsRepository(database, database.Bucket(db.SettingsBucket), nil)
	ctx := context.Background()

	s, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.DefaultDir)
	assert.Empty(t, s.KnownConfigs)

	require.NoError(t, repo.SetDefaultDir(ctx, "/vms"))
	require.NoError(t, repo.AppendConfig(ctx, "/vms/a.conf"))
	require.NoError(t, repo.AppendConfig(ctx, "/vms/a.conf"))
	require.NoError(t, repo.Remember(ctx, "/data", "/data/b.conf"))

	s, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/data", s.DefaultDir)
	assert.Equal(t, []string{"/vms/a.conf", "/vms/a.conf", "/data/b.conf"}, s.KnownConfigs)
}

func TestSettingsRepository_ConcurrentAppends(t *testing.T) {
	database := newTestDB(t)
	repo := NewSettingsRepository(database, database.Bucket(db.SettingsBucket), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AppendConfig(ctx, "/vms/x.conf"))
		}()
	}
	wg.Wait()

	s, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, s.KnownConfigs, 10)
}

func TestSessionRepository(t *testing.T) {
	database := newTestDB(t)
	repo := NewSessionRepository(database, database.Bucket(db.SessionsBucket), nil)
	ctx := context.Background()

	older := &SessionRecord{OS: "alpine", Status: StatusCompleted, StartedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, repo.Save(ctx, older))
	assert.NotEmpty(t, older.ID)

	newer := &SessionRecord{
		OS:     "debian",
		Status: StatusDownloading,
		Files:  []FileRecord{{Name: "debian.iso", Received: 10, Total: 100}},
	}
	require.NoError(t, repo.Save(ctx, newer))
	assert.False(t, newer.StartedAt.IsZero())

	got, err := repo.Get(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, "debian", got.OS)
	assert.Equal(t, uint64(10), got.Files[0].Received)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, newer.ID, active[0].ID)

	require.NoError(t, repo.Delete(ctx, older.ID))
	_, err = repo.Get(ctx, older.ID)
	assert.True(t, errors.Is(err, db.ErrNotFound))

	require.NoError(t, repo.DeleteAll(ctx))
	all, err = repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSettingsRepository_Reset(t *testing.T) {
	database := newTestDB(t)
	repo := NewSettingsRepository(database, database.Bucket(db.SettingsBucket), nil)
	ctx := context.Background()

	require.NoError(t, repo.Reset(ctx))
	require.NoError(t, repo.Remember(ctx, "/vms", "/vms/a.conf"))
	require.NoError(t, repo.Reset(ctx))

	s, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.DefaultDir)
	assert.Empty(t, s.KnownConfigs)
}

func TestSessionRecord_Finished(t *testing.T) {
	for status, want := range map[string]bool{
		StatusSelecting:   false,
		StatusDownloading: false,
		StatusFinalizing:  false,
		StatusCompleted:   true,
		StatusFailed:      true,
		StatusCancelled:   true,
	} {
		r := &SessionRecord{Status: status}
		assert.Equal(t, want, r.Finished(), status)
	}
}

func TestSessionRepository_MarkInterrupted(t *testing.T) {
	database := newTestDB(t)
	repo := NewSessionRepository(database, database.Bucket(db.SessionsBucket), nil)
	ctx := context.Background()

	done := &SessionRecord{OS: "alpine", Status: StatusCompleted}
	running := &SessionRecord{OS: "debian", Status: StatusDownloading}
	require.NoError(t, repo.Save(ctx, done))
	require.NoError(t, repo.Save(ctx, running))

	n, err := repo.MarkInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "interrupted")
	assert.NotNil(t, got.CompletedAt)

	got, err = repo.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestSessionRepository_Prune(t *testing.T) {
	database := newTestDB(t)
	repo := NewSessionRepository(database, database.Bucket(db.SessionsBucket), nil)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 5; i++ {
		r := &SessionRecord{OS: "alpine", Status: StatusCompleted, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, repo.Save(ctx, r))
		ids = append(ids, r.ID)
	}
	oldRunning := &SessionRecord{OS: "debian", Status: StatusDownloading, StartedAt: base.Add(-time.Hour)}
	require.NoError(t, repo.Save(ctx, oldRunning))

	n, err := repo.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[4], all[0].ID)
	assert.Equal(t, ids[3], all[1].ID)
	assert.Equal(t, oldRunning.ID, all[2].ID)
}
