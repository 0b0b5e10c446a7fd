package finalize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"vmget/catalog"
	"vmget/internal/errors"
	"vmget/selection"
)

// Writer creates the VM definition for a resolved selection once all its
// files are downloaded, returning the definition's path.
type Writer interface {
	Write(ctx context.Context, r selection.Resolved) (string, error)
}

// QuickemuWriter writes <dir>/<name>.conf in quickemu's format
type QuickemuWriter struct {
	fs     afero.Fs
	logger *slog.Logger
}

func NewQuickemuWriter(fs afero.Fs, logger *slog.Logger) *QuickemuWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuickemuWriter{
		fs:     fs,
		logger: logger.With(slog.String("component", "finalize")),
	}
}

// ConfigPath is where Write puts the definition for r
func ConfigPath(r selection.Resolved) string {
	return r.ConfigFile()
}

func (w *QuickemuWriter) Write(ctx context.Context, r selection.Resolved) (string, error) {
	const op = "finalize.Write"

	if err := ctx.Err(); err != nil {
		return "", errors.NewFinalizationError(op, err)
	}

	p := ConfigPath(r)
	if err := w.fs.MkdirAll(r.Directory, 0755); err != nil {
		return "", errors.NewFinalizationError(op, err)
	}
	if err := w.create(p, Render(r)); err != nil {
		if os.IsExist(err) {
			return "", errors.NewNameCollisionError(op, p)
		}
		appErr := errors.NewFinalizationError(op, err).WithContext("path", p)
		errors.LogError(w.logger, appErr)
		return "", appErr
	}

	w.logger.Info("VM config written", slog.String("path", p), slog.String("os", r.OS))
	return p, nil
}

// create writes a new file at p. An existing definition is never replaced.
func (w *QuickemuWriter) create(p, content string) error {
	f, err := w.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0755)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Render returns the quickemu definition for r. File references are
// relative to the definition's directory.
func Render(r selection.Resolved) string {
	var b strings.Builder
	line := func(k, v string) { fmt.Fprintf(&b, "%s=%q\n", k, v) }

	b.WriteString("#!/usr/bin/quickemu --vm\n")

	guest := r.GuestOS
	if guest == "" {
		guest = "linux"
	}
	line("guest_os", guest)

	disk := path.Join(r.Name, "disk.qcow2")
	written := map[string]bool{}
	for _, src := range r.Config.Sources {
		key := quickemuKey(src)
		if written[key] {
			continue
		}
		written[key] = true
		ref := path.Join(r.Name, src.Name())
		if key == "disk_img" {
			disk = ref
			continue
		}
		line(key, ref)
	}
	line("disk_img", disk)

	if r.Config.Arch.Family != catalog.FamilyX86_64 {
		line("arch", string(r.Config.Arch.Family))
	}
	if r.CPUCores > 0 {
		line("cpu_cores", fmt.Sprint(r.CPUCores))
	}
	if r.RAM > 0 {
		line("ram", ramSize(r.RAM))
	}
	return b.String()
}

func quickemuKey(src catalog.Source) string {
	switch src.Kind {
	case catalog.KindISO:
		return "iso"
	case catalog.KindFixedISO:
		return "fixed_iso"
	case catalog.KindFloppy:
		return "floppy"
	case catalog.KindDisk:
		return "disk_img"
	case catalog.KindImage:
		return "img"
	}
	if strings.EqualFold(path.Ext(src.Name()), ".iso") {
		return "iso"
	}
	return "img"
}

func ramSize(bytes uint64) string {
	const mib = 1024 * 1024
	if bytes%(1024*mib) == 0 {
		return fmt.Sprintf("%dG", bytes/(1024*mib))
	}
	return fmt.Sprintf("%dM", bytes/mib)
}
