package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vmget/catalog"
	"vmget/internal/errors"
	"vmget/store"
)

// Manager owns every live session
type Manager struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

// NewManager creates a manager whose sessions live until Close
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		logger:   deps.Logger.With(slog.String("component", "sessions")),
		sessions: make(map[string]*Session),
	}
}

// Catalog fetches the OS list
func (m *Manager) Catalog(ctx context.Context) ([]catalog.OS, error) {
	list, err := m.deps.Catalog.Fetch(ctx)
	if err != nil {
		return nil, errors.NewCatalogError("sessions.Catalog", err)
	}
	return list, nil
}

// Create starts a session, loads the catalog and, when osName is set,
// chooses that OS.
func (m *Manager) Create(ctx context.Context, osName string) (*Session, error) {
	deps := m.deps
	s := New(m.ctx, uuid.New().String(), &deps)

	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	if osName != "" {
		if err := s.ChooseOS(ctx, osName); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.order = append(m.order, s.ID())
	m.mu.Unlock()

	m.logger.Info("Session created", slog.String("session", s.ID()), slog.String("os", osName))
	return s, nil
}

// Get returns a live session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.NewNotFoundError("sessions.Get", fmt.Errorf("session %s not found", id))
	}
	return s, nil
}

// List returns snapshots of every live session in creation order
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id].Snapshot())
	}
	return out
}

// Remove cancels a session and forgets it
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		for i, o := range m.order {
			if o == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	if !ok {
		return errors.NewNotFoundError("sessions.Remove", fmt.Errorf("session %s not found", id))
	}
	s.stop()
	return nil
}

// History returns persisted session records, newest first
func (m *Manager) History(ctx context.Context) ([]*store.SessionRecord, error) {
	if m.deps.History == nil {
		return nil, nil
	}
	records, err := m.deps.History.GetAll(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("sessions.History", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// Settings returns the remembered directory and known configs
func (m *Manager) Settings(ctx context.Context) (*store.Settings, error) {
	if m.deps.Settings == nil {
		return &store.Settings{DefaultDir: m.deps.DefaultDir}, nil
	}
	s, err := m.deps.Settings.Load(ctx)
	if err != nil {
		return nil, errors.NewDatabaseError("sessions.Settings", err)
	}
	if s.DefaultDir == "" {
		s.DefaultDir = m.deps.DefaultDir
	}
	return s, nil
}

// closeTimeout bounds how long Close waits for sessions to record their
// outcome
const closeTimeout = 10 * time.Second

// Close cancels every running download, including the siblings still
// running after a failed transfer, and waits for each session to record its
// outcome. Stores can be closed once it returns.
func (m *Manager) Close() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.stop()
	}
	m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	for _, s := range sessions {
		if _, err := s.Wait(ctx); err != nil {
			m.logger.Warn("Session still running at close", slog.String("session", s.ID()), slog.String("error", err.Error()))
		}
	}
}
