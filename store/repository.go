package store

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"vmget/db"
)

const settingsKey = "settings"

// SettingsRepositoryImpl implements SettingsRepository using BoltDB
type SettingsRepositoryImpl struct {
	*db.GenericRepository[Settings]
}

// NewSettingsRepository creates a settings repository over bucket
func NewSettingsRepository(database db.Database, bucket string, logger *slog.Logger) SettingsRepository {
	return &SettingsRepositoryImpl{
		GenericRepository: db.NewGenericRepository[Settings](database, bucket, logger),
	}
}

// Load returns the stored settings, or empty settings if none were saved
func (r *SettingsRepositoryImpl) Load(ctx context.Context) (*Settings, error) {
	s, err := r.GenericRepository.Get(ctx, settingsKey)
	if stderrors.Is(err, db.ErrNotFound) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SetDefaultDir remembers dir as the directory to offer next time
func (r *SettingsRepositoryImpl) SetDefaultDir(ctx context.Context, dir string) error {
	return r.update(ctx, func(s *Settings) { s.DefaultDir = dir })
}

// AppendConfig adds a written config path to the known list
func (r *SettingsRepositoryImpl) AppendConfig(ctx context.Context, path string) error {
	return r.update(ctx, func(s *Settings) { s.KnownConfigs = append(s.KnownConfigs, path) })
}

// Remember records a successful session's directory and config in one write
func (r *SettingsRepositoryImpl) Remember(ctx context.Context, dir, configPath string) error {
	return r.update(ctx, func(s *Settings) {
		s.DefaultDir = dir
		s.KnownConfigs = append(s.KnownConfigs, configPath)
	})
}

// Reset forgets the directory and every known config
func (r *SettingsRepositoryImpl) Reset(ctx context.Context) error {
	return r.GenericRepository.Delete(ctx, settingsKey)
}

// update is a read-modify-write in one transaction, so sessions finishing
// together never drop each other's configs.
func (r *SettingsRepositoryImpl) update(ctx context.Context, fn func(*Settings)) error {
	return r.GenericRepository.Update(ctx, settingsKey, func(s *Settings, _ bool) error {
		fn(s)
		return nil
	})
}

// SessionRepositoryImpl implements SessionRepository using BoltDB
type SessionRepositoryImpl struct {
	*db.GenericRepository[SessionRecord]
}

// NewSessionRepository creates a session history repository over bucket
func NewSessionRepository(database db.Database, bucket string, logger *slog.Logger) SessionRepository {
	return &SessionRepositoryImpl{
		GenericRepository: db.NewGenericRepository[SessionRecord](database, bucket, logger),
	}
}

// Save stores a session record
func (r *SessionRepositoryImpl) Save(ctx context.Context, record *SessionRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now()
	}

	return r.GenericRepository.Save(ctx, record.ID, *record)
}

// Get retrieves a session record by ID
func (r *SessionRepositoryImpl) Get(ctx context.Context, id string) (*SessionRecord, error) {
	record, err := r.GenericRepository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetAll retrieves all session records, newest first
func (r *SessionRepositoryImpl) GetAll(ctx context.Context) ([]*SessionRecord, error) {
	recordMap, err := r.GenericRepository.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*SessionRecord, 0, len(recordMap))
	for _, record := range recordMap {
		recordCopy := record
		records = append(records, &recordCopy)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// GetActive retrieves sessions that have not finished
func (r *SessionRepositoryImpl) GetActive(ctx context.Context) ([]*SessionRecord, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var active []*SessionRecord
	for _, record := range all {
		if !record.Finished() {
			active = append(active, record)
		}
	}
	return active, nil
}

// MarkInterrupted fails every unfinished record. Records are only left
// unfinished when a previous process exited mid-download.
func (r *SessionRepositoryImpl) MarkInterrupted(ctx context.Context) (int, error) {
	active, err := r.GetActive(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for _, record := range active {
		record.Status = StatusFailed
		record.ErrorMessage = "interrupted: vmget exited before the session finished"
		record.CompletedAt = &now
		if err := r.Save(ctx, record); err != nil {
			return 0, err
		}
	}
	return len(active), nil
}

// Prune deletes the oldest finished records beyond the newest keep.
// Unfinished records are never pruned and keep <= 0 disables pruning.
func (r *SessionRepositoryImpl) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	all, err := r.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	pruned, kept := 0, 0
	for _, record := range all {
		if !record.Finished() {
			continue
		}
		if kept < keep {
			kept++
			continue
		}
		if err := r.Delete(ctx, record.ID); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// Delete removes a session record by ID
func (r *SessionRepositoryImpl) Delete(ctx context.Context, id string) error {
	return r.GenericRepository.Delete(ctx, id)
}
