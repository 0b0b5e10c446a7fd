package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
)

const chunkSize = 32 * 1024

// Task streams one Descriptor to disk and reports what happens as events
type Task struct {
	index  int
	desc   Descriptor
	getter Getter
	fs     afero.Fs
	logger *slog.Logger
}

// NewTask creates the transfer for desc. index is copied into every event.
func NewTask(index int, desc Descriptor, getter Getter, fs afero.Fs, logger *slog.Logger) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{
		index:  index,
		desc:   desc,
		getter: getter,
		fs:     fs,
		logger: logger.With(slog.String("component", "transfer"), slog.String("file", desc.Name())),
	}
}

// Run performs the transfer, sending size-known, progress and done events,
// or a single error event, on events. Once ctx is cancelled nothing more
// is sent. The returned error is the one reported in the error event.
func (t *Task) Run(ctx context.Context, events chan<- Event) error {
	err := t.run(ctx, events)
	switch {
	case ctx.Err() != nil:
		t.logger.Debug("Transfer cancelled", slog.String("url", t.desc.URL))
		return ctx.Err()
	case err != nil:
		t.logger.Error("Transfer failed", slog.String("url", t.desc.URL), slog.String("error", err.Error()))
		t.send(ctx, events, Failed(t.index, err.Error()))
		return err
	}
	t.send(ctx, events, Done(t.index))
	return nil
}

func (t *Task) run(ctx context.Context, events chan<- Event) error {
	resp, err := t.getter.Open(ctx, t.desc)
	if err != nil {
		return fmt.Errorf("error while downloading: %w", err)
	}
	defer resp.Body.Close()

	file, err := t.fs.Create(t.desc.Path)
	if err != nil {
		return fmt.Errorf("error while writing to file: %w", err)
	}
	defer file.Close()

	var total uint64
	if resp.Size > 0 {
		total = uint64(resp.Size)
	}
	if !t.send(ctx, events, SizeKnown(t.index, total)) {
		return nil
	}

	hash := sha256.New()
	w := io.MultiWriter(file, hash)
	buf := make([]byte, chunkSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("error while writing to file: %w", err)
			}
			if !t.send(ctx, events, Progress(t.index, uint64(n))) {
				return nil
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("error while downloading: %w", rerr)
		}
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("error while writing to file: %w", err)
	}

	if t.desc.Checksum != "" {
		sum := hex.EncodeToString(hash.Sum(nil))
		if !strings.EqualFold(sum, t.desc.Checksum) {
			return fmt.Errorf("checksum mismatch for %s: expected %s, got %s", t.desc.Name(), t.desc.Checksum, sum)
		}
	}

	t.logger.Info("Transfer finished", slog.String("path", t.desc.Path))
	return nil
}

func (t *Task) send(ctx context.Context, events chan<- Event, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
