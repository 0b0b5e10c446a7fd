package selection

import (
	stderrors "errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"vmget/catalog"
	"vmget/internal/errors"
	"vmget/internal/validation"
)

// ErrNoMatchingConfig is returned by Resolve when no ReleaseConfig matches
// the release, edition and arch together.
var ErrNoMatchingConfig = stderrors.New("no matching configuration")

// Resolved is a committed selection: exactly one ReleaseConfig plus where
// and how to create the VM.
type Resolved struct {
	OS        string                `json:"os"`
	GuestOS   string                `json:"guest_os,omitempty"`
	Config    catalog.ReleaseConfig `json:"config"`
	Directory string                `json:"directory"`
	Name      string                `json:"name"`
	CPUCores  int                   `json:"cpu_cores"`
	RAM       uint64                `json:"ram"`
}

// VMDir is the directory the VM's files are downloaded into
func (r Resolved) VMDir() string {
	return filepath.Join(r.Directory, r.Name)
}

// ConfigFile is where the VM definition for r is written
func (r Resolved) ConfigFile() string {
	return filepath.Join(r.Directory, r.Name+".conf")
}

// CanCommit reports whether a session may start with name. The selection
// must be fully specified, the directory must exist, and neither
// directory/name nor directory/name.conf may.
func (s *State) CanCommit(fs afero.Fs, name string) error {
	const op = "selection.CanCommit"

	if err := validation.ValidateVMName(name); err != nil {
		return errors.NewValidationError(op, err)
	}
	if s.defaultName == "" {
		return errors.NewConfigurationError(op, fmt.Errorf("selection for %s is incomplete", s.os.Name))
	}
	if err := validation.ValidateDirectory(fs, s.dir); err != nil {
		return errors.NewValidationError(op, err)
	}

	r := Resolved{Directory: s.dir, Name: name}
	for _, target := range []string{r.VMDir(), r.ConfigFile()} {
		if _, err := fs.Stat(target); err == nil {
			return errors.NewNameCollisionError(op, target)
		}
	}
	return nil
}

// Resolve picks the single ReleaseConfig matching the selection. An unset
// edition is filled in when the release/arch pair offers exactly one, and
// is an error when it offers several.
func (s *State) Resolve(name string) (Resolved, error) {
	const op = "selection.Resolve"

	if s.sel.Release == "" || s.sel.Arch.IsZero() {
		return Resolved{}, errors.NewConfigurationError(op, fmt.Errorf("release and architecture must be selected"))
	}

	edition := s.sel.Edition
	if edition == "" {
		editions := Selections{Release: s.sel.Release, Arch: s.sel.Arch}.Candidates(s.os.Releases).Editions
		switch len(editions) {
		case 0:
		case 1:
			edition = editions[0]
		default:
			return Resolved{}, errors.NewConfigurationError(op, fmt.Errorf("%s %s %s: choose one of %d editions", s.os.Name, s.sel.Release, s.sel.Arch, len(editions)))
		}
	}

	for _, rc := range s.os.Releases {
		if rc.Release == s.sel.Release && rc.Edition == edition && rc.Arch == s.sel.Arch {
			return Resolved{
				OS:        s.os.Name,
				GuestOS:   s.os.GuestOS,
				Config:    rc,
				Directory: s.dir,
				Name:      name,
				CPUCores:  s.cores,
				RAM:       s.ram,
			}, nil
		}
	}

	return Resolved{}, errors.NewConfigurationError(op, fmt.Errorf("%s %s %s %s: %w", s.os.Name, s.sel.Release, edition, s.sel.Arch, ErrNoMatchingConfig))
}
