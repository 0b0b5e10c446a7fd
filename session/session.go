package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"vmget/catalog"
	"vmget/finalize"
	"vmget/internal/errors"
	"vmget/internal/validation"
	"vmget/orchestrator"
	"vmget/selection"
	"vmget/store"
	"vmget/transfer"
)

// Starter launches a set of transfers
type Starter interface {
	Start(ctx context.Context, descs []transfer.Descriptor) (*orchestrator.Handle, []transfer.State, error)
}

// Deps are the collaborators a session drives
type Deps struct {
	Catalog      catalog.Provider
	Orchestrator Starter
	Writer       finalize.Writer
	Settings     store.SettingsRepository // Optional
	History      store.SessionRepository  // Optional
	Fs           afero.Fs
	Logger       *slog.Logger

	DefaultDir    string // Used when no directory is remembered
	DefaultRAM    uint64
	CancelOnError bool // Cancel the remaining transfers on the first failure

	// OnProgress is called after every folded transfer event
	OnProgress func(sessionID string, index int, st transfer.State)
}

// run is one download attempt
type run struct {
	handle   *orchestrator.Handle
	finished chan struct{}
	once     sync.Once
}

func (r *run) finish() {
	r.once.Do(func() { close(r.finished) })
}

// Session drives one pass from OS choice to a written VM config. All
// methods are safe for concurrent use.
type Session struct {
	id     string
	deps   *Deps
	ctx    context.Context
	logger *slog.Logger

	mu           sync.Mutex
	page         Page
	errMsg       string
	oses         []catalog.OS
	sel          *selection.State
	resolved     *selection.Resolved
	descs        []transfer.Descriptor
	states       []transfer.State
	run          *run
	transferErrs *multierror.Error
	configPath   string
	record       *store.SessionRecord
}

// New creates a session on the loading page. ctx bounds every transfer and
// write the session performs.
func New(ctx context.Context, id string, deps *Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	return &Session{
		id:     id,
		deps:   deps,
		ctx:    ctx,
		logger: deps.Logger.With(slog.String("component", "session"), slog.String("session", id)),
		page:   PageLoading,
	}
}

func (s *Session) ID() string { return s.id }

// Page returns the current page
func (s *Session) Page() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Err returns the display string of the error page
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Catalog returns the loaded OS entries
func (s *Session) Catalog() []catalog.OS {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oses
}

// Load fetches the catalog and moves to OS selection. A fetch failure ends
// the session on the error page with the provider's message.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	s.page = PageLoading
	s.mu.Unlock()

	list, err := s.deps.Catalog.Fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		appErr := errors.NewCatalogError("session.Load", err)
		s.failLocked(appErr)
		return appErr
	}
	s.oses = list
	s.page = PageSelectOS
	s.logger.Debug("Catalog loaded", slog.Int("entries", len(list)))
	return nil
}

// ChooseOS starts a selection for the named entry. The remembered
// directory is offered first and the host architecture is preselected
// when available.
func (s *Session) ChooseOS(ctx context.Context, name string) error {
	const op = "session.ChooseOS"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expectLocked(op, PageSelectOS); err != nil {
		return err
	}
	os, ok := catalog.Find(s.oses, name)
	if !ok {
		return errors.NewNotFoundError(op, fmt.Errorf("no OS named %q", name))
	}

	dir := s.deps.DefaultDir
	if s.deps.Settings != nil {
		settings, err := s.deps.Settings.Load(ctx)
		if err != nil {
			s.logger.Warn("Could not load settings", slog.String("error", err.Error()))
		} else if settings.DefaultDir != "" {
			dir = settings.DefaultDir
		}
	}

	s.sel = selection.New(os, selection.Options{Directory: dir, RAM: s.deps.DefaultRAM})
	s.sel.TrySelectArch(catalog.HostArch())
	s.page = PageOptions
	return nil
}

// Edit applies fn to the selection while on the options page
func (s *Session) Edit(fn func(sel *selection.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expectLocked("session.Edit", PageOptions); err != nil {
		return err
	}
	return fn(s.sel)
}

// Start commits the selection under name (the default name when empty) and
// begins downloading. Commit preconditions leave the session on the
// options page; a selection that cannot be resolved ends it.
func (s *Session) Start(name string) error {
	const op = "session.Start"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expectLocked(op, PageOptions); err != nil {
		return err
	}
	if name != "" {
		s.sel.SetName(name)
	}
	name = s.sel.FinalizeName()

	if err := s.sel.CanCommit(s.deps.Fs, name); err != nil {
		return err
	}

	r, err := s.sel.Resolve(name)
	if err != nil {
		s.failLocked(err)
		return err
	}

	descs, err := descriptors(r)
	if err != nil {
		s.failLocked(err)
		return err
	}
	if err := s.deps.Fs.MkdirAll(r.VMDir(), 0755); err != nil {
		appErr := errors.NewFileSystemError(op, err)
		s.failLocked(appErr)
		return appErr
	}

	h, states, err := s.deps.Orchestrator.Start(s.ctx, descs)
	if err != nil {
		s.deps.Fs.Remove(r.VMDir())
		s.failLocked(err)
		return err
	}

	s.resolved = &r
	s.descs = descs
	s.states = states
	s.transferErrs = nil
	s.configPath = ""
	s.run = &run{handle: h, finished: make(chan struct{})}
	s.page = PageDownloading
	s.record = &store.SessionRecord{
		OS:        r.OS,
		Release:   r.Config.Release,
		Edition:   r.Config.Edition,
		Arch:      r.Config.Arch.String(),
		Name:      r.Name,
		Directory: r.Directory,
		Status:    store.StatusDownloading,
	}
	s.saveRecordLocked()

	s.logger.Info("Downloads started", slog.String("name", r.Name), slog.Int("files", len(descs)))
	go s.pump(s.run)
	return nil
}

// descriptors maps every source of r to a file under r.VMDir()
func descriptors(r selection.Resolved) ([]transfer.Descriptor, error) {
	const op = "session.descriptors"

	vmDir := r.VMDir()
	descs := make([]transfer.Descriptor, 0, len(r.Config.Sources))
	for _, src := range r.Config.Sources {
		p, err := validation.ValidateFilePath(vmDir, src.Name())
		if err != nil {
			return nil, errors.NewValidationError(op, err)
		}
		descs = append(descs, transfer.Descriptor{
			URL:      src.URL,
			Headers:  src.Headers,
			Path:     p,
			Checksum: src.Checksum,
		})
	}
	return descs, nil
}

func (s *Session) pump(r *run) {
	for {
		u, ok := r.handle.Next(s.ctx)
		if !ok {
			break
		}
		s.handleUpdate(r, u)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != r {
		return
	}

	switch {
	case s.page == PageError:
		s.saveRecordLocked()
		r.finish()
	case s.page == PageDownloading:
		// Only reachable when the session context ended mid-download.
		r.handle.CancelAll()
		s.record.Status = store.StatusCancelled
		s.saveRecordLocked()
		r.finish()
	}
}

func (s *Session) handleUpdate(r *run, u orchestrator.Update) {
	s.mu.Lock()
	if s.run != r {
		s.mu.Unlock()
		return
	}

	s.states[u.Event.Index] = u.State
	cancelRest := false
	var finalizing *selection.Resolved

	switch {
	case u.Event.Kind == transfer.EventError:
		s.transferErrs = multierror.Append(s.transferErrs, fmt.Errorf("%s: %s", u.State.Name, u.Event.Err))
		s.transferErrs.ErrorFormat = joinErrors
		s.failLocked(errors.NewTransferError("session.transfer", s.transferErrs))
		cancelRest = s.deps.CancelOnError
	case u.Complete:
		s.page = PageFinalizing
		s.record.Status = store.StatusFinalizing
		s.saveRecordLocked()
		resolved := *s.resolved
		finalizing = &resolved
	}

	onProgress := s.deps.OnProgress
	s.mu.Unlock()

	if cancelRest {
		r.handle.CancelAll()
	}
	if onProgress != nil {
		onProgress(s.id, u.Event.Index, u.State)
	}
	// After the last progress report, so waiters see every event first
	if finalizing != nil {
		go s.finalize(r, *finalizing)
	}
}

func joinErrors(es []error) string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (s *Session) finalize(r *run, resolved selection.Resolved) {
	const op = "session.finalize"

	path, err := s.deps.Writer.Write(s.ctx, resolved)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer r.finish()

	if s.run != r {
		return
	}
	if err != nil {
		if !errors.IsType(err, errors.FinalizationError) {
			err = errors.NewFinalizationError(op, err)
		}
		s.failLocked(err)
		return
	}

	s.configPath = path
	s.page = PageComplete
	if s.deps.Settings != nil {
		if err := s.deps.Settings.Remember(s.ctx, resolved.Directory, path); err != nil {
			s.logger.Warn("Could not remember VM config", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	now := time.Now()
	s.record.Status = store.StatusCompleted
	s.record.ConfigPath = path
	s.record.CompletedAt = &now
	s.saveRecordLocked()
	s.logger.Info("Session complete", slog.String("config", path))
}

// Cancel stops any running transfers and returns to OS selection.
// Partially downloaded files stay on disk.
func (s *Session) Cancel() error {
	const op = "session.Cancel"

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.page {
	case PageOptions, PageDownloading, PageError, PageComplete:
	default:
		return errors.NewValidationError(op, fmt.Errorf("cannot cancel while %s", s.page))
	}

	s.cancelLocked()
	return nil
}

// stop cancels transfers still running on the Downloading or Error page.
// After a failure the siblings of the failed file may still be running. A
// session writing its config is left to finish.
func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil || (s.page != PageDownloading && s.page != PageError) {
		return
	}
	s.cancelLocked()
}

func (s *Session) cancelLocked() {
	if r := s.run; r != nil {
		r.handle.CancelAll()
		if s.page == PageDownloading {
			s.record.Status = store.StatusCancelled
			s.saveRecordLocked()
		}
		r.finish()
	}

	s.run = nil
	s.sel = nil
	s.resolved = nil
	s.descs = nil
	s.states = nil
	s.errMsg = ""
	s.page = PageSelectOS
	if len(s.oses) == 0 {
		s.page = PageLoading
	}
}

// Wait blocks until the current download attempt has finished, failed or
// been cancelled, and returns the page it ended on.
func (s *Session) Wait(ctx context.Context) (Page, error) {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()

	if r != nil {
		select {
		case <-r.finished:
		case <-ctx.Done():
			return s.Page(), ctx.Err()
		}
	}
	return s.Page(), nil
}

func (s *Session) expectLocked(op string, want Page) error {
	if s.page != want {
		return errors.NewValidationError(op, fmt.Errorf("session is on page %s, not %s", s.page, want))
	}
	return nil
}

// failLocked moves to the error page with err's display string
func (s *Session) failLocked(err error) {
	msg := err.Error()
	var appErr *errors.AppError
	if errors.IsAppError(err, &appErr) {
		if appErr.Message != "" {
			msg = appErr.Message
		}
		errors.LogError(s.logger, appErr)
	} else {
		s.logger.Error("Session failed", slog.String("error", msg))
	}

	s.page = PageError
	s.errMsg = msg

	if s.record != nil && !s.record.Finished() {
		now := time.Now()
		s.record.Status = store.StatusFailed
		s.record.CompletedAt = &now
	}
	if s.record != nil {
		s.record.ErrorMessage = msg
		s.saveRecordLocked()
	}
}

func (s *Session) saveRecordLocked() {
	if s.deps.History == nil || s.record == nil {
		return
	}
	s.record.Files = s.record.Files[:0]
	for i, st := range s.states {
		s.record.Files = append(s.record.Files, store.FileRecord{
			Name:     st.Name,
			URL:      s.descs[i].URL,
			Received: st.Received,
			Total:    st.Total,
			Done:     st.Done,
			Error:    st.Err,
		})
	}
	if err := s.deps.History.Save(s.ctx, s.record); err != nil {
		s.logger.Warn("Could not save session record", slog.String("error", err.Error()))
	}
}

// Snapshot is a point-in-time view of a session
type Snapshot struct {
	ID         string         `json:"id"`
	Page       Page           `json:"page"`
	Error      string         `json:"error,omitempty"`
	OS         string         `json:"os,omitempty"`
	Selection  *SelectionView `json:"selection,omitempty"`
	Transfers  []TransferView `json:"transfers,omitempty"`
	ConfigPath string         `json:"config_path,omitempty"`
}

// SelectionView is the options page
type SelectionView struct {
	Selected    selection.Selections `json:"selected"`
	Candidates  selection.Candidates `json:"candidates"`
	DefaultName string               `json:"default_name,omitempty"`
	Name        string               `json:"name,omitempty"`
	Directory   string               `json:"directory"`
	CPUCores    int                  `json:"cpu_cores"`
	RAM         uint64               `json:"ram"`
	RAMText     string               `json:"ram_text"`
}

// TransferView is one transfer and its progress line
type TransferView struct {
	transfer.State
	Progress string `json:"progress"`
}

// Snapshot returns the current view of the session
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.id,
		Page:       s.page,
		Error:      s.errMsg,
		ConfigPath: s.configPath,
	}
	if s.sel != nil {
		def, _ := s.sel.DefaultName()
		snap.OS = s.sel.OS().Name
		snap.Selection = &SelectionView{
			Selected:    s.sel.Selections(),
			Candidates:  s.sel.Candidates(),
			DefaultName: def,
			Name:        s.sel.Name(),
			Directory:   s.sel.Directory(),
			CPUCores:    s.sel.CPUCores(),
			RAM:         s.sel.RAM(),
			RAMText:     humanize.IBytes(s.sel.RAM()),
		}
	}
	for _, st := range s.states {
		snap.Transfers = append(snap.Transfers, TransferView{State: st, Progress: st.String()})
	}
	return snap
}
