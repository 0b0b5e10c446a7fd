package testdata

import (
	"context"
	"path/filepath"
	"time"

	"vmget/store"
)

// MockDataService provides methods to populate the database with test data
type MockDataService struct {
	settings store.SettingsRepository
	history  store.SessionRepository
}

// NewMockDataService creates a new mock data service
func NewMockDataService(settings store.SettingsRepository, history store.SessionRepository) *MockDataService {
	return &MockDataService{
		settings: settings,
		history:  history,
	}
}

// PopulateMockData records a few finished sessions under dir for API testing
func (m *MockDataService) PopulateMockData(ctx context.Context, dir string) error {
	now := time.Now()
	ago := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	records := []*store.SessionRecord{
		{
			OS:        "alpine",
			Release:   "3.19",
			Arch:      "x86_64",
			Name:      "alpine-3.19-x86_64",
			Directory: dir,
			Status:    store.StatusCompleted,
			Files: []store.FileRecord{{
				Name:     "alpine-virt-3.19.1-x86_64.iso",
				URL:      "https://dl-cdn.alpinelinux.org/alpine/v3.19/releases/x86_64/alpine-virt-3.19.1-x86_64.iso",
				Received: 60817408,
				Total:    60817408,
				Done:     true,
			}},
			ConfigPath:  filepath.Join(dir, "alpine-3.19-x86_64.conf"),
			StartedAt:   now.Add(-3 * time.Hour),
			CompletedAt: ago(3*time.Hour - 2*time.Minute),
		},
		{
			OS:        "debian",
			Release:   "12.5.0",
			Edition:   "standard",
			Arch:      "aarch64",
			Name:      "debian-12.5.0-standard-aarch64",
			Directory: dir,
			Status:    store.StatusFailed,
			Files: []store.FileRecord{{
				Name:     "debian-live-12.5.0-arm64-standard.iso",
				URL:      "https://cdimage.debian.org/debian-cd/current-live/arm64/iso-hybrid/debian-live-12.5.0-arm64-standard.iso",
				Received: 12582912,
				Total:    1468006400,
				Error:    "error while downloading: download failed: 503 Service Unavailable",
			}},
			ErrorMessage: "debian-live-12.5.0-arm64-standard.iso: error while downloading: download failed: 503 Service Unavailable",
			StartedAt:    now.Add(-2 * time.Hour),
			CompletedAt:  ago(2*time.Hour - 30*time.Second),
		},
		{
			OS:          "ubuntu",
			Release:     "24.04",
			Arch:        "x86_64",
			Name:        "ubuntu-24.04-x86_64",
			Directory:   dir,
			Status:      store.StatusCancelled,
			Files:       []store.FileRecord{{Name: "ubuntu-24.04-desktop-amd64.iso", Received: 1048576}},
			StartedAt:   now.Add(-time.Hour),
			CompletedAt: ago(time.Hour - time.Minute),
		},
	}

	for _, record := range records {
		if err := m.history.Save(ctx, record); err != nil {
			return err
		}
	}
	return m.settings.Remember(ctx, dir, records[0].ConfigPath)
}

// ClearAllData removes all session history and remembered settings
func (m *MockDataService) ClearAllData(ctx context.Context) error {
	if err := m.history.DeleteAll(ctx); err != nil {
		return err
	}
	return m.settings.Reset(ctx)
}
