package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"vmget/internal/errors"
	"vmget/selection"
	"vmget/session"
)

// lookup resolves the {id} route variable, writing the error response when
// the session does not exist.
func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := mux.Vars(r)["id"]
	s, err := h.sessions().Get(id)
	if err != nil {
		SendError(w, r, h.logger, WrapError(err))
		return nil, false
	}
	return s, true
}

// ListSessions returns a snapshot of every live session
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	SetNoCacheHeaders(w)
	writeJSON(w, h.logger, http.StatusOK, h.sessions().List())
}

// CreateSession starts a session and chooses the requested OS
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		SendError(w, r, h.logger, apiErr)
		return
	}

	s, err := h.sessions().Create(r.Context(), req.OS)
	if err != nil {
		SendError(w, r, h.logger, WrapError(err))
		return
	}

	h.logger.Info("Session created via API", slog.String("session", s.ID()), slog.String("os", req.OS))
	writeJSON(w, h.logger, http.StatusCreated, s.Snapshot())
}

// GetSession returns one session snapshot
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	SetNoCacheHeaders(w)
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

// ChooseOS picks the OS of a session sitting on the OS selection page
func (h *Handlers) ChooseOS(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req ChooseOSRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		SendError(w, r, h.logger, apiErr)
		return
	}
	if req.OS == "" {
		errs := ValidationErrors{}
		errs.Add("os", "is required")
		SendError(w, r, h.logger, errs.ToAPIError())
		return
	}

	if err := s.ChooseOS(r.Context(), req.OS); err != nil {
		SendError(w, r, h.logger, WrapError(err))
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

// Select edits release, edition, arch and VM options
func (h *Handlers) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req SelectRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		SendError(w, r, h.logger, apiErr)
		return
	}
	if errs := req.Validate(); errs.HasErrors() {
		SendError(w, r, h.logger, errs.ToAPIError())
		return
	}

	err := s.Edit(func(sel *selection.State) error {
		if err := req.Apply(sel); err != nil {
			return errors.NewValidationError("handlers.Select", err)
		}
		return nil
	})
	if err != nil {
		SendError(w, r, h.logger, WrapError(err))
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

// Start commits the selection and begins downloading
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req StartRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		SendError(w, r, h.logger, apiErr)
		return
	}

	if err := s.Start(req.Name); err != nil {
		SendError(w, r, h.logger, WrapError(err))
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, s.Snapshot())
}

// Cancel aborts every transfer and returns the session to OS selection
func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := s.Cancel(); err != nil {
		SendError(w, r, h.logger, WrapError(err))
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

// DeleteSession cancels and forgets a session
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.sessions().Remove(id); err != nil {
		SendError(w, r, h.logger, WrapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
