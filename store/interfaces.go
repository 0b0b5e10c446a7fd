package store

import "context"

// SettingsRepository persists the remembered directory and config list
type SettingsRepository interface {
	// Load returns the stored settings, or empty settings if none were saved
	Load(ctx context.Context) (*Settings, error)

	// SetDefaultDir remembers dir as the directory to offer next time
	SetDefaultDir(ctx context.Context, dir string) error

	// AppendConfig adds a written config path to the known list
	AppendConfig(ctx context.Context, path string) error

	// Remember records a successful session's directory and config in one write
	Remember(ctx context.Context, dir, configPath string) error

	// Reset forgets the directory and every known config
	Reset(ctx context.Context) error
}

// SessionRepository persists session history
type SessionRepository interface {
	// Save stores a session record, assigning an ID if it has none
	Save(ctx context.Context, record *SessionRecord) error

	// Get retrieves a session record by ID
	Get(ctx context.Context, id string) (*SessionRecord, error)

	// GetAll retrieves all session records, newest first
	GetAll(ctx context.Context) ([]*SessionRecord, error)

	// GetActive retrieves sessions that have not finished
	GetActive(ctx context.Context) ([]*SessionRecord, error)

	// MarkInterrupted fails every unfinished record and returns how many
	MarkInterrupted(ctx context.Context) (int, error)

	// Prune deletes finished records beyond the newest keep
	Prune(ctx context.Context, keep int) (int, error)

	// Delete removes a session record by ID
	Delete(ctx context.Context, id string) error

	// DeleteAll removes every session record
	DeleteAll(ctx context.Context) error
}
