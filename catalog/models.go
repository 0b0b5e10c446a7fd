package catalog

import (
	"net/url"
	"path"
)

// OS is one catalog entry and all of its acquirable configurations
type OS struct {
	Name       string          `json:"name" yaml:"name"`                             // alpine, ubuntu
	PrettyName string          `json:"pretty_name" yaml:"pretty_name"`               // Alpine Linux
	Homepage   string          `json:"homepage,omitempty" yaml:"homepage,omitempty"` // Project homepage
	GuestOS    string          `json:"guest_os,omitempty" yaml:"guest_os,omitempty"` // linux, windows, macos
	Releases   []ReleaseConfig `json:"releases" yaml:"releases"`
}

// ReleaseConfig is one (release, edition, architecture) combination
type ReleaseConfig struct {
	Release string   `json:"release" yaml:"release"`
	Edition string   `json:"edition,omitempty" yaml:"edition,omitempty"` // Empty when the release has no editions
	Arch    Arch     `json:"arch" yaml:"arch"`
	Sources []Source `json:"sources" yaml:"sources"`
}

// SourceKind says what a downloaded file is used for in the VM definition
type SourceKind string

const (
	KindISO      SourceKind = "iso"
	KindFixedISO SourceKind = "fixed_iso"
	KindImage    SourceKind = "img"
	KindFloppy   SourceKind = "floppy"
	KindDisk     SourceKind = "disk"
)

// Source is one file a configuration needs
type Source struct {
	URL      string            `json:"url" yaml:"url"`
	FileName string            `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	Kind     SourceKind        `json:"kind,omitempty" yaml:"kind,omitempty"`
	Checksum string            `json:"checksum,omitempty" yaml:"checksum,omitempty"` // Hex SHA-256
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Name returns the file name to store the source under, falling back to the
// last element of the URL path.
func (s Source) Name() string {
	if s.FileName != "" {
		return s.FileName
	}
	if u, err := url.Parse(s.URL); err == nil && u.Path != "" {
		if base := path.Base(u.Path); base != "/" && base != "." {
			return base
		}
	}
	return "download"
}

// HasEdition reports whether the configuration carries an edition label
func (r ReleaseConfig) HasEdition() bool {
	return r.Edition != ""
}

// Find returns the entry with the given identifier
func Find(list []OS, name string) (OS, bool) {
	for _, os := range list {
		if os.Name == name {
			return os, true
		}
	}
	return OS{}, false
}
