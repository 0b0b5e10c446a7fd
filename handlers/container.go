package handlers

import (
	"log/slog"

	"vmget/config"
	"vmget/session"
)

// Container holds dependencies for handlers
type Container struct {
	Sessions *session.Manager
	Config   *config.Config
	Logger   *slog.Logger
}

// Handlers serves the JSON control API
type Handlers struct {
	container *Container
	logger    *slog.Logger
}

// NewHandlers creates handlers over container
func NewHandlers(container *Container) *Handlers {
	logger := container.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		container: container,
		logger:    logger.With(slog.String("component", "api")),
	}
}

func (h *Handlers) sessions() *session.Manager {
	return h.container.Sessions
}
