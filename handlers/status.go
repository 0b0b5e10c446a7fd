package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ServiceStatus represents the status of a single dependency
type ServiceStatus struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	LastCheck   time.Time `json:"last_check"`
	Address     string    `json:"address,omitempty"`
	Details     string    `json:"details,omitempty"`
}

// SystemStatus represents the overall system status
type SystemStatus struct {
	Title         string         `json:"title"`
	LastUpdated   time.Time      `json:"last_updated"`
	Catalog       ServiceStatus  `json:"catalog"`
	Sessions      map[string]int `json:"sessions"` // Live sessions per page
	OverallStatus string         `json:"overall_status"`
}

// Status reports catalog reachability and session counts
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	status := &SystemStatus{
		Title:       "vmget status",
		LastUpdated: time.Now(),
		Catalog:     h.checkCatalogStatus(r.Context()),
		Sessions:    map[string]int{},
	}
	for _, snap := range h.sessions().List() {
		status.Sessions[snap.Page.String()]++
	}

	status.OverallStatus = "healthy"
	if status.Catalog.Status != "running" {
		status.OverallStatus = "degraded"
	}

	SetNoCacheHeaders(w)
	writeJSON(w, h.logger, http.StatusOK, status)
}

// checkCatalogStatus fetches the catalog with a short deadline
func (h *Handlers) checkCatalogStatus(ctx context.Context) ServiceStatus {
	status := ServiceStatus{
		Name:      "OS catalog",
		LastCheck: time.Now(),
	}
	if cfg := h.container.Config; cfg != nil {
		status.Address = cfg.Catalog.URL
		if cfg.Catalog.File != "" {
			status.Address = cfg.Catalog.File
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	list, err := h.sessions().Catalog(ctx)
	if err != nil {
		status.Status = "unreachable"
		status.Description = "OS catalog could not be loaded"
		status.Details = fmt.Sprintf("Error: %v", err)
		return status
	}

	status.Status = "running"
	status.Description = "OS catalog is available"
	status.Details = fmt.Sprintf("%d operating systems", len(list))
	return status
}
