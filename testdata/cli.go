package testdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config holds the data operation flags of the serve command
type Config struct {
	MockData  bool
	ClearData bool
}

// HandleDataOperations clears and then populates the database as requested.
// dir is the directory mock sessions are recorded under.
func HandleDataOperations(config *Config, svc *MockDataService, dir string, logger *slog.Logger) error {
	if !config.ClearData && !config.MockData {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if config.ClearData {
		logger.Info("Clearing all data from database")
		if err := svc.ClearAllData(ctx); err != nil {
			return fmt.Errorf("failed to clear data: %w", err)
		}
	}

	if config.MockData {
		logger.Info("Populating database with mock data")
		if err := svc.PopulateMockData(ctx, dir); err != nil {
			return fmt.Errorf("failed to populate mock data: %w", err)
		}
	}
	return nil
}
