package transfer

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// Descriptor describes one file to download
type Descriptor struct {
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers,omitempty"`
	Path     string            `json:"path"`               // Destination file, truncated on start
	Checksum string            `json:"checksum,omitempty"` // Expected hex SHA-256
}

// Name is the destination file name used for display
func (d Descriptor) Name() string {
	return filepath.Base(d.Path)
}

// EventKind identifies what happened to a transfer
type EventKind int

const (
	EventSizeKnown EventKind = iota
	EventProgress
	EventDone
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventSizeKnown:
		return "size-known"
	case EventProgress:
		return "progress"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is an immutable report from a running transfer. N is the total
// size for EventSizeKnown (0 when unknown) and the chunk length for
// EventProgress.
type Event struct {
	Index int
	Kind  EventKind
	N     uint64
	Err   string
}

func SizeKnown(index int, n uint64) Event { return Event{Index: index, Kind: EventSizeKnown, N: n} }
func Progress(index int, n uint64) Event  { return Event{Index: index, Kind: EventProgress, N: n} }
func Done(index int) Event                { return Event{Index: index, Kind: EventDone} }
func Failed(index int, msg string) Event  { return Event{Index: index, Kind: EventError, Err: msg} }

// State is the receiver side view of one transfer. It only changes by
// folding that transfer's events with Apply.
type State struct {
	Name      string `json:"name"`
	Received  uint64 `json:"received"`
	Total     uint64 `json:"total"`      // 0 with SizeKnown means the server did not say
	SizeKnown bool   `json:"size_known"` // A size-known event has been seen
	Done      bool   `json:"done"`
	Err       string `json:"error,omitempty"`
}

// NewState returns the initial state for d
func NewState(d Descriptor) State {
	return State{Name: d.Name()}
}

// Apply folds ev into s. Progress before size-known is fine.
func (s State) Apply(ev Event) State {
	switch ev.Kind {
	case EventSizeKnown:
		s.Total = ev.N
		s.SizeKnown = true
	case EventProgress:
		s.Received += ev.N
	case EventDone:
		s.Done = true
	case EventError:
		s.Err = ev.Err
	}
	return s
}

// Errored reports whether the transfer ended with an error
func (s State) Errored() bool {
	return s.Err != ""
}

// Finished reports whether no more events are expected
func (s State) Finished() bool {
	return s.Done || s.Errored()
}

// Percent returns completion in percent, or 0 when the size is unknown
func (s State) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Received) / float64(s.Total) * 100
}

// String renders the progress line shown next to the file name
func (s State) String() string {
	switch {
	case s.Errored():
		return s.Err
	case !s.SizeKnown:
		return "Download starting"
	case s.Total == 0:
		return fmt.Sprintf("%s / ??", humanize.IBytes(s.Received))
	default:
		return fmt.Sprintf("%s / %s (%.2f%%)", humanize.IBytes(s.Received), humanize.IBytes(s.Total), s.Percent())
	}
}
