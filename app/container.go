package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/afero"

	"vmget/catalog"
	"vmget/config"
	"vmget/db"
	"vmget/finalize"
	"vmget/orchestrator"
	"vmget/session"
	"vmget/store"
	"vmget/transfer"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *slog.Logger
	Database     *db.BoltDB
	Fs           afero.Fs
	SettingsRepo store.SettingsRepository
	SessionRepo  store.SessionRepository
	Catalog      catalog.Provider
	Orchestrator *orchestrator.Orchestrator
	Writer       finalize.Writer
	Sessions     *session.Manager
}

// Option adjusts the session dependencies before the manager is built
type Option func(*session.Deps)

// WithProgress reports every folded transfer event to fn
func WithProgress(fn func(sessionID string, index int, st transfer.State)) Option {
	return func(d *session.Deps) { d.OnProgress = fn }
}

// WithCancelOnError overrides download.cancel_on_error
func WithCancelOnError(cancel bool) Option {
	return func(d *session.Deps) { d.CancelOnError = cancel }
}

// NewContainer creates and wires up all dependencies
func NewContainer(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Initialize database
	database, err := db.NewBoltDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Debug("Database opened", slog.String("path", cfg.DBFilePath()), slog.String("bucket", cfg.DB.Bucket))

	fs := afero.NewOsFs()

	// Create repositories
	settingsRepo := store.NewSettingsRepository(database, database.Bucket(db.SettingsBucket), logger)
	sessionRepo := store.NewSessionRepository(database, database.Bucket(db.SessionsBucket), logger)
	tidyHistory(sessionRepo, cfg.DB.MaxHistory, logger)

	// Create services
	provider := NewCatalogProvider(cfg, fs, logger)
	orch := orchestrator.New(orchestrator.Options{
		Providers:   transfer.DefaultProviders(cfg.Download.UserAgent, http.DefaultClient),
		Fs:          fs,
		Logger:      logger,
		MaxParallel: cfg.Download.MaxParallel,
	})
	writer := finalize.NewQuickemuWriter(fs, logger)

	deps := session.Deps{
		Catalog:       provider,
		Orchestrator:  orch,
		Writer:        writer,
		Settings:      settingsRepo,
		History:       sessionRepo,
		Fs:            fs,
		Logger:        logger,
		DefaultDir:    cfg.Download.Dir,
		DefaultRAM:    cfg.Download.RAM,
		CancelOnError: cfg.Download.CancelOnError,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	sessions := session.NewManager(deps)

	return &Container{
		Config:       cfg,
		Logger:       logger,
		Database:     database,
		Fs:           fs,
		SettingsRepo: settingsRepo,
		SessionRepo:  sessionRepo,
		Catalog:      provider,
		Orchestrator: orch,
		Writer:       writer,
		Sessions:     sessions,
	}, nil
}

// tidyHistory fails sessions a previous process left unfinished and trims
// the history to keep entries. Failures are logged, never fatal.
func tidyHistory(repo store.SessionRepository, keep int, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if n, err := repo.MarkInterrupted(ctx); err != nil {
		logger.Warn("Could not check for interrupted sessions", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("Marked interrupted sessions as failed", slog.Int("count", n))
	}

	if n, err := repo.Prune(ctx, keep); err != nil {
		logger.Warn("Could not prune session history", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Debug("Pruned session history", slog.Int("removed", n), slog.Int("kept", keep))
	}
}

// NewCatalogProvider reads the catalog file when one is configured and
// fetches the catalog URL otherwise.
func NewCatalogProvider(cfg *config.Config, fs afero.Fs, logger *slog.Logger) catalog.Provider {
	if cfg.Catalog.File != "" {
		return catalog.NewFileProvider(fs, cfg.Catalog.File)
	}
	return catalog.NewHTTPProvider(cfg.Catalog.URL, cfg.Download.UserAgent, nil, logger)
}

// Close cancels running sessions and closes the database
func (c *Container) Close() error {
	if c.Sessions != nil {
		c.Sessions.Close()
	}
	if c.Database != nil {
		return c.Database.Close()
	}
	return nil
}
