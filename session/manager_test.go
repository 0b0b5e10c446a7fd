package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vmget/catalog"
	"vmget/internal/errors"
	"vmget/selection"
	"vmget/store"
)

func TestManager_CreateAndGet(t *testing.T) {
	f := newFixture(t, testCatalog("alpine.iso"))
	m := NewManager(*f.deps)
	defer m.Close()

	s, err := m.Create(context.Background(), "alpine")
	require.NoError(t, err)
	assert.Equal(t, PageOptions, s.Page())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("nope")
	assert.True(t, errors.IsType(err, errors.NotFoundError))

	bare, err := m.Create(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, PageSelectOS, bare.Page())

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, s.ID(), list[0].ID)
	assert.Equal(t, bare.ID(), list[1].ID)

	require.NoError(t, m.Remove(bare.ID()))
	assert.Len(t, m.List(), 1)
	assert.Error(t, m.Remove(bare.ID()))
}

func TestManager_CreateErrors(t *testing.T) {
	f := newFixture(t, failingProvider{err: fmt.Errorf("offline")})
	m := NewManager(*f.deps)

	_, err := m.Create(context.Background(), "alpine")
	assert.True(t, errors.IsType(err, errors.CatalogError))

	_, err = m.Catalog(context.Background())
	assert.True(t, errors.IsType(err, errors.CatalogError))

	f = newFixture(t, testCatalog("alpine.iso"))
	m = NewManager(*f.deps)
	_, err = m.Create(context.Background(), "plan9")
	assert.True(t, errors.IsType(err, errors.NotFoundError))
	assert.Empty(t, m.List())
}

func TestManager_HistoryAndSettings(t *testing.T) {
	f := newFixture(t, testCatalog("alpine.iso"))
	now := time.Now()
	f.history.On("GetAll", mock.Anything).Return([]*store.SessionRecord{
		{ID: "old", StartedAt: now.Add(-time.Hour)},
		{ID: "new", StartedAt: now},
	}, nil)
	m := NewManager(*f.deps)

	records, err := m.History(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].ID)

	settings, err := m.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/vms", settings.DefaultDir)

	f.deps.Settings = nil
	f.deps.History = nil
	m = NewManager(*f.deps)
	settings, err = m.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/home/user", settings.DefaultDir)
	records, err = m.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestManager_CloseCancelsDownloads(t *testing.T) {
	f := newFixture(t, testCatalog("slow.iso"))
	m := NewManager(*f.deps)

	s, err := m.Create(context.Background(), "alpine")
	require.NoError(t, err)
	require.NoError(t, s.Edit(func(sel *selection.State) error {
		if err := sel.SelectArch(catalog.X86_64); err != nil {
			return err
		}
		return sel.SelectRelease("3.19")
	}))
	require.NoError(t, s.Start(""))
	assert.Equal(t, PageDownloading, s.Page())

	m.Close()
	assert.Equal(t, PageSelectOS, s.Page())
}

func startedSession(t *testing.T, m *Manager) *Session {
	t.Helper()
	s, err := m.Create(context.Background(), "alpine")
	require.NoError(t, err)
	require.NoError(t, s.Edit(func(sel *selection.State) error {
		if err := sel.SelectArch(catalog.X86_64); err != nil {
			return err
		}
		return sel.SelectRelease("3.19")
	}))
	require.NoError(t, s.Start(""))
	return s
}

func TestManager_RemoveStopsSiblingsAfterFailure(t *testing.T) {
	f := newFixture(t, testCatalog("slow.iso", "bad.iso"))
	m := NewManager(*f.deps)
	defer m.Close()

	s := startedSession(t, m)
	require.Eventually(t, func() bool { return s.Page() == PageError }, 5*time.Second, 10*time.Millisecond)

	s.mu.Lock()
	h := s.run.handle
	s.mu.Unlock()
	require.False(t, h.Cancelled(), "slow.iso keeps running after bad.iso failed")

	require.NoError(t, m.Remove(s.ID()))
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("slow.iso still downloading after the session was removed")
	}

	_, err := m.Get(s.ID())
	assert.True(t, errors.IsType(err, errors.NotFoundError))
}

func TestManager_CloseStopsSiblingsAfterFailure(t *testing.T) {
	f := newFixture(t, testCatalog("slow.iso", "bad.iso"))
	m := NewManager(*f.deps)

	s := startedSession(t, m)
	require.Eventually(t, func() bool { return s.Page() == PageError }, 5*time.Second, 10*time.Millisecond)

	s.mu.Lock()
	h := s.run.handle
	s.mu.Unlock()

	m.Close()
	assert.True(t, h.Cancelled())
}

func TestManager_CloseWaitsForFinalize(t *testing.T) {
	f := newFixture(t, testCatalog("alpine.iso"))
	release := make(chan struct{})
	w := &MockWriter{}
	w.On("Write", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return("/vms/alpine-3.19-x86_64.conf", nil)
	f.deps.Writer = w
	m := NewManager(*f.deps)

	s := startedSession(t, m)
	require.Eventually(t, func() bool { return s.Page() == PageFinalizing }, 5*time.Second, 10*time.Millisecond)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	m.Close()

	assert.Equal(t, PageComplete, s.Page())
	f.history.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(r *store.SessionRecord) bool {
		return r.Status == store.StatusCompleted
	}))
}
