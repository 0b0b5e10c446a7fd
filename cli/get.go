package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vmget/app"
	"vmget/catalog"
	"vmget/selection"
	"vmget/session"
	"vmget/transfer"
)

var getHelp = `
Get downloads every file of one OS configuration and writes the quickemu
VM definition next to it.

Release, edition and architecture narrow the choice the same way the API
does. The architecture defaults to the host's when the OS offers it, and
an edition may be left out when the release has only one:

    $ vmget get alpine --release 3.19
    $ vmget get debian --release 12.5.0 --edition xfce --arch aarch64 --name desk --ram 8GiB

Progress is printed as each file advances. The first failed file cancels
the others unless --keep-going is set. Interrupting the command cancels
the remaining transfers and leaves partial files on disk.
`

type getOptions struct {
	release   string
	edition   string
	arch      string
	name      string
	dir       string
	cores     int
	ram       string
	keepGoing bool

	out  io.Writer
	mu   sync.Mutex
	last map[int]string
}

func newGetCmd(g *globalOptions, out io.Writer) *cobra.Command {
	o := &getOptions{out: out}

	cmd := &cobra.Command{
		Use:   "get OS",
		Short: "download an OS and create its VM definition",
		Long:  getHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.run(ctx, g, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.release, "release", "", "release to download")
	f.StringVar(&o.edition, "edition", "", "edition, when the release has several")
	f.StringVar(&o.arch, "arch", "", "architecture such as x86_64 or aarch64 (default: host)")
	f.StringVar(&o.name, "name", "", "VM name (default: <os>-<release>[-<edition>]-<arch>)")
	f.StringVar(&o.dir, "dir", "", "directory the VM is created in (default: the last one used)")
	f.IntVar(&o.cores, "cores", 0, "guest CPU cores (default: half the host's)")
	f.StringVar(&o.ram, "ram", "", "guest memory such as 4GiB")
	f.BoolVar(&o.keepGoing, "keep-going", false, "keep downloading the other files after one fails")
	return cmd
}

func (o *getOptions) run(ctx context.Context, g *globalOptions, osName string) error {
	var ram uint64
	if o.ram != "" {
		parsed, err := humanize.ParseBytes(o.ram)
		if err != nil {
			return fmt.Errorf("invalid --ram: %w", err)
		}
		ram = parsed
	}

	opts := []app.Option{app.WithProgress(o.progress)}
	if !o.keepGoing {
		opts = append(opts, app.WithCancelOnError(true))
	}
	c, err := g.container(opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	s, err := c.Sessions.Create(ctx, osName)
	if err != nil {
		return err
	}

	err = s.Edit(func(sel *selection.State) error {
		return o.apply(sel, ram)
	})
	if err != nil {
		return err
	}

	if err := s.Start(o.name); err != nil {
		if s.Page() == session.PageOptions {
			return o.incomplete(s, err)
		}
		return err
	}

	snap := s.Snapshot()
	name := snap.Selection.Name
	if name == "" {
		name = snap.Selection.DefaultName
	}
	o.printf("Downloading %d file(s) for %s into %s\n", len(snap.Transfers), name, snap.Selection.Directory)

	page, err := s.Wait(ctx)
	if err != nil {
		if cancelErr := s.Cancel(); cancelErr != nil {
			g.logger.Warn("Cancel failed", "error", cancelErr)
		}
		return fmt.Errorf("download cancelled")
	}

	switch page {
	case session.PageComplete:
		o.printf("VM config written to %s\n", s.Snapshot().ConfigPath)
		return nil
	case session.PageError:
		return stderrors.New(s.Err())
	default:
		return fmt.Errorf("session ended on page %s", page)
	}
}

// apply copies the flags onto the selection: release, edition and arch
// first, then resources.
func (o *getOptions) apply(sel *selection.State, ram uint64) error {
	if o.arch != "" {
		arch, err := catalog.ParseArch(o.arch)
		if err != nil {
			return err
		}
		if err := sel.SelectArch(arch); err != nil {
			return err
		}
	}
	if o.release != "" {
		if err := sel.SelectRelease(o.release); err != nil {
			return err
		}
	}
	if o.edition != "" {
		if err := sel.SelectEdition(o.edition); err != nil {
			return err
		}
	}
	if o.cores > 0 {
		sel.SetCPUCores(o.cores)
	}
	if ram > 0 {
		if err := sel.SetRAM(ram); err != nil {
			return err
		}
	}
	if o.dir != "" {
		sel.SetDirectory(o.dir)
	}
	return nil
}

// incomplete explains which flags are still needed
func (o *getOptions) incomplete(s *session.Session, err error) error {
	snap := s.Snapshot()
	if snap.Selection == nil || snap.Selection.DefaultName != "" {
		return err
	}

	cand := snap.Selection.Candidates
	sel := snap.Selection.Selected
	switch {
	case sel.Release == "":
		return fmt.Errorf("%w: choose --release from %v", err, cand.Releases)
	case sel.Arch.IsZero():
		return fmt.Errorf("%w: choose --arch from %v", err, cand.Archs)
	default:
		return fmt.Errorf("%w: choose --edition from %v", err, cand.Editions)
	}
}

// progress prints a line whenever a file moves to a new whole percent,
// learns its size, finishes or fails.
func (o *getOptions) progress(_ string, index int, st transfer.State) {
	line := st.String()
	key := line
	if st.SizeKnown && st.Total > 0 && !st.Finished() {
		key = fmt.Sprintf("%d", int(st.Percent()))
	}

	o.mu.Lock()
	if o.last == nil {
		o.last = make(map[int]string)
	}
	changed := o.last[index] != key
	o.last[index] = key
	o.mu.Unlock()
	if !changed {
		return
	}

	switch {
	case st.Errored():
		o.printf("%s: failed: %s\n", st.Name, line)
	case st.Done:
		o.printf("%s: done (%s)\n", st.Name, humanize.IBytes(st.Received))
	default:
		o.printf("%s: %s\n", st.Name, line)
	}
}

// printf serializes writes from the progress callback and the command
func (o *getOptions) printf(format string, args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, format, args...)
}
