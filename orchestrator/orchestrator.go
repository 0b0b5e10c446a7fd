package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"vmget/internal/errors"
	"vmget/transfer"
)

// Update is one folded event
type Update struct {
	Event    transfer.Event
	State    transfer.State // State of Event.Index after folding
	Complete bool           // Set on the update that completed the whole set
}

// Options tune an orchestrator run
type Options struct {
	Providers   transfer.Providers
	Fs          afero.Fs
	Logger      *slog.Logger
	MaxParallel int // 0 runs every transfer at once
}

// Orchestrator starts sets of transfers
type Orchestrator struct {
	providers   transfer.Providers
	fs          afero.Fs
	logger      *slog.Logger
	maxParallel int
}

func New(opts Options) *Orchestrator {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Providers == nil {
		opts.Providers = transfer.DefaultProviders("", nil)
	}
	return &Orchestrator{
		providers:   opts.Providers,
		fs:          opts.Fs,
		logger:      opts.Logger.With(slog.String("component", "orchestrator")),
		maxParallel: opts.MaxParallel,
	}
}

// Handle controls one running set of transfers. Next must be called from a
// single goroutine; it is the only place states change.
type Handle struct {
	events    chan transfer.Event
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
	logger    *slog.Logger

	mu       sync.RWMutex
	states   []transfer.State
	complete bool
}

// Start validates descs and spawns one transfer per descriptor. It returns
// the handle along with the initial state of every transfer.
func (o *Orchestrator) Start(ctx context.Context, descs []transfer.Descriptor) (*Handle, []transfer.State, error) {
	const op = "orchestrator.Start"

	if len(descs) == 0 {
		return nil, nil, errors.NewConfigurationError(op, fmt.Errorf("nothing to download"))
	}

	getters := make([]transfer.Getter, len(descs))
	seen := make(map[string]int, len(descs))
	for i, d := range descs {
		p := filepath.Clean(d.Path)
		if j, dup := seen[p]; dup {
			return nil, nil, errors.NewConfigurationError(op, fmt.Errorf("transfers %d and %d both write %s", j, i, p))
		}
		seen[p] = i

		g, err := o.providers.ForURL(d.URL)
		if err != nil {
			return nil, nil, errors.NewConfigurationError(op, fmt.Errorf("%s: %w", d.URL, err))
		}
		getters[i] = g
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		events: make(chan transfer.Event, 16*len(descs)),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: o.logger,
		states: make([]transfer.State, len(descs)),
	}
	for i, d := range descs {
		h.states[i] = transfer.NewState(d)
	}

	var g errgroup.Group
	if o.maxParallel > 0 {
		g.SetLimit(o.maxParallel)
	}

	go func() {
		for i, d := range descs {
			task := transfer.NewTask(i, d, getters[i], o.fs, o.logger)
			if ctx.Err() != nil {
				break
			}
			// Transfer errors are reported as events, never through the group.
			g.Go(func() error {
				task.Run(ctx, h.events)
				return nil
			})
		}
		g.Wait()
		close(h.events)
		close(h.done)
	}()

	o.logger.Info("Transfers started", slog.Int("count", len(descs)))
	return h, h.States(), nil
}

// Next blocks until the next event arrives and folds it. It returns false
// once every transfer has finished, after CancelAll, or when ctx ends.
func (h *Handle) Next(ctx context.Context) (Update, bool) {
	if h.cancelled.Load() {
		return Update{}, false
	}

	select {
	case ev, ok := <-h.events:
		if !ok || h.cancelled.Load() {
			return Update{}, false
		}
		return h.fold(ev), true
	case <-ctx.Done():
		return Update{}, false
	}
}

func (h *Handle) fold(ev transfer.Event) Update {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.states[ev.Index].Apply(ev)
	h.states[ev.Index] = st

	if ev.Kind == transfer.EventError {
		h.logger.Warn("Transfer error", slog.String("file", st.Name), slog.String("error", ev.Err))
	}

	u := Update{Event: ev, State: st}
	if !h.complete && allDone(h.states) {
		h.complete = true
		u.Complete = true
	}
	return u
}

func allDone(states []transfer.State) bool {
	for _, s := range states {
		if !s.Done || s.Errored() {
			return false
		}
	}
	return true
}

// CancelAll asks every transfer to stop. Partially written files are left
// on disk. Next reports no further events afterwards.
func (h *Handle) CancelAll() {
	if h.cancelled.Swap(true) {
		return
	}
	h.logger.Info("Cancelling transfers")
	h.cancel()
}

// Cancelled reports whether CancelAll has been called
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// States returns a copy of the current states
func (h *Handle) States() []transfer.State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]transfer.State, len(h.states))
	copy(out, h.states)
	return out
}

// Complete reports whether every transfer is done and none errored
func (h *Handle) Complete() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.complete
}

// Wait blocks until every transfer goroutine has returned
func (h *Handle) Wait() {
	<-h.done
	h.cancel()
}

// Done is closed once every transfer goroutine has returned
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
