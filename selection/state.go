package selection

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"vmget/catalog"
	"vmget/config"
)

// numCPU is swapped out in tests
var numCPU = runtime.NumCPU

// DirectoryChooser asks the user for a destination directory. ok is false
// when the user dismissed the prompt.
type DirectoryChooser func(ctx context.Context) (dir string, ok bool)

// Options seeds a new State
type Options struct {
	Directory string
	RAM       uint64
	CPUCores  int
}

// State is the in-progress selection for one OS entry
type State struct {
	os          catalog.OS
	sel         Selections
	cand        Candidates
	cores       int
	ram         uint64
	dir         string
	name        string
	defaultName string
}

// New creates a selection for os with nothing chosen yet
func New(os catalog.OS, opts Options) *State {
	s := &State{
		os:  os,
		dir: opts.Directory,
		ram: opts.RAM,
	}
	if s.ram < config.MinRAM {
		s.ram = config.MinRAM
	}
	if opts.CPUCores > 0 {
		s.SetCPUCores(opts.CPUCores)
	} else {
		s.cores = RecommendedCores()
	}
	s.apply(DimNone)
	return s
}

// RecommendedCores is half the host's logical CPUs, at least one
func RecommendedCores() int {
	return max(1, numCPU()/2)
}

func (s *State) OS() catalog.OS              { return s.os }
func (s *State) Selections() Selections      { return s.sel }
func (s *State) Candidates() Candidates      { return s.cand }
func (s *State) CPUCores() int               { return s.cores }
func (s *State) RAM() uint64                 { return s.ram }
func (s *State) Directory() string           { return s.dir }
func (s *State) Name() string                { return s.name }
func (s *State) DefaultName() (string, bool) { return s.defaultName, s.defaultName != "" }

// SelectRelease sets the release and reconciles the other dimensions. An
// empty release clears the selection.
func (s *State) SelectRelease(release string) error {
	if release != "" && !slices.Contains(Projection(s.os.Releases).Releases, release) {
		return fmt.Errorf("%s has no release %q", s.os.Name, release)
	}
	s.sel.Release = release
	s.apply(DimRelease)
	return nil
}

// SelectEdition sets the edition and reconciles the other dimensions. An
// empty edition clears the selection.
func (s *State) SelectEdition(edition string) error {
	if edition != "" && !slices.Contains(Projection(s.os.Releases).Editions, edition) {
		return fmt.Errorf("%s has no edition %q", s.os.Name, edition)
	}
	s.sel.Edition = edition
	s.apply(DimEdition)
	return nil
}

// SelectArch sets the architecture and reconciles the other dimensions. The
// zero Arch clears the selection.
func (s *State) SelectArch(arch catalog.Arch) error {
	if !arch.IsZero() && !slices.Contains(Projection(s.os.Releases).Archs, arch) {
		return fmt.Errorf("%s is not available for %s", s.os.Name, arch)
	}
	s.sel.Arch = arch
	s.apply(DimArch)
	return nil
}

// TrySelectArch selects arch only if it is currently a candidate
func (s *State) TrySelectArch(arch catalog.Arch) bool {
	if !slices.Contains(s.cand.Archs, arch) {
		return false
	}
	s.sel.Arch = arch
	s.apply(DimArch)
	return true
}

func (s *State) apply(pinned Dimension) {
	s.cand, s.sel = Recompute(s.os.Releases, s.sel, pinned)
	s.defaultName = ""
	if s.sel.Complete(s.cand) {
		s.defaultName = DefaultName(s.os.Name, s.sel.Release, s.sel.Edition, s.sel.Arch)
	}
}

// SetCPUCores stores n clamped to the host's CPU count and returns the
// stored value.
func (s *State) SetCPUCores(n int) int {
	s.cores = min(max(n, 1), numCPU())
	return s.cores
}

// SetRAM stores the guest memory size in bytes
func (s *State) SetRAM(bytes uint64) error {
	if bytes < config.MinRAM {
		return fmt.Errorf("RAM must be at least %d bytes", config.MinRAM)
	}
	s.ram = bytes
	return nil
}

// SetDirectory sets the destination directory
func (s *State) SetDirectory(dir string) {
	s.dir = dir
}

// PickDirectory asks chooser for a directory. A dismissed prompt leaves the
// current directory unchanged.
func (s *State) PickDirectory(ctx context.Context, chooser DirectoryChooser) bool {
	if chooser == nil {
		return false
	}
	dir, ok := chooser(ctx)
	if !ok || dir == "" {
		return false
	}
	s.dir = dir
	return true
}

// SetName stores the user supplied name. An empty name reverts to the default.
func (s *State) SetName(name string) {
	s.name = name
}

// FinalizeName returns the user supplied name, or the default name if none
func (s *State) FinalizeName() string {
	if s.name != "" {
		return s.name
	}
	return s.defaultName
}
