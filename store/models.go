package store

import (
	"time"
)

// Settings is what vmget remembers between sessions
type Settings struct {
	DefaultDir   string   `json:"default_dir"`   // Last directory a VM was created in
	KnownConfigs []string `json:"known_configs"` // Every config written, oldest first; may repeat
}

// Session statuses
const (
	StatusSelecting   = "selecting"
	StatusDownloading = "downloading"
	StatusFinalizing  = "finalizing"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusCancelled   = "cancelled"
)

// SessionRecord is the persisted history of one session
type SessionRecord struct {
	ID           string       `json:"id"`
	OS           string       `json:"os"`      // alpine, ubuntu
	Release      string       `json:"release"` // 3.18, 24.04
	Edition      string       `json:"edition,omitempty"`
	Arch         string       `json:"arch"` // x86_64, Legacy x86_64
	Name         string       `json:"name"`
	Directory    string       `json:"directory"`
	Status       string       `json:"status"`
	Files        []FileRecord `json:"files"`
	ConfigPath   string       `json:"config_path,omitempty"` // Set once finalized
	ErrorMessage string       `json:"error_message,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// FileRecord is the last known state of one transfer
type FileRecord struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Received uint64 `json:"received"`
	Total    uint64 `json:"total"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Finished reports whether the session reached a terminal status
func (r *SessionRecord) Finished() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
