package selection

import (
	"slices"

	"vmget/catalog"
)

// Dimension names one of the three filterable selection axes
type Dimension int

const (
	DimNone Dimension = iota
	DimRelease
	DimEdition
	DimArch
)

func (d Dimension) String() string {
	switch d {
	case DimRelease:
		return "release"
	case DimEdition:
		return "edition"
	case DimArch:
		return "arch"
	default:
		return "none"
	}
}

// Selections holds the three optional choices. Empty strings and the zero
// Arch mean "not selected".
type Selections struct {
	Release string       `json:"release,omitempty"`
	Edition string       `json:"edition,omitempty"`
	Arch    catalog.Arch `json:"arch,omitempty"`
}

// Candidates are the values each dimension may take given the other two
type Candidates struct {
	Releases []string       `json:"releases"`
	Editions []string       `json:"editions"`
	Archs    []catalog.Arch `json:"archs"`
}

// Candidates computes the candidate sets for sel without changing it.
// Each dimension is filtered by the other two; editions only collect
// configurations that carry one.
func (sel Selections) Candidates(configs []catalog.ReleaseConfig) Candidates {
	c := Candidates{
		Releases: []string{},
		Editions: []string{},
		Archs:    []catalog.Arch{},
	}
	for _, rc := range configs {
		relOK := sel.Release == "" || rc.Release == sel.Release
		edOK := sel.Edition == "" || rc.Edition == sel.Edition
		archOK := sel.Arch.IsZero() || rc.Arch == sel.Arch

		if edOK && archOK && !slices.Contains(c.Releases, rc.Release) {
			c.Releases = append(c.Releases, rc.Release)
		}
		if relOK && archOK && rc.HasEdition() && !slices.Contains(c.Editions, rc.Edition) {
			c.Editions = append(c.Editions, rc.Edition)
		}
		if relOK && edOK && !slices.Contains(c.Archs, rc.Arch) {
			c.Archs = append(c.Archs, rc.Arch)
		}
	}
	return c
}

// Recompute brings sel back to a consistent state after a change to the
// pinned dimension. The other dimensions are then checked in release,
// edition, arch order, each against its candidates under the current
// selections, and cleared when absent. A cleared value is already gone when
// the next dimension is checked. A pinned value no configuration carries is
// dropped first. The returned selections never hold a value absent from the
// returned candidates.
func Recompute(configs []catalog.ReleaseConfig, sel Selections, pinned Dimension) (Candidates, Selections) {
	if pinned != DimNone && !sel.only(pinned).matchesAny(configs) {
		sel = sel.clear(pinned)
	}
	for _, d := range []Dimension{DimRelease, DimEdition, DimArch} {
		if d == pinned || sel.only(d) == (Selections{}) {
			continue
		}
		if !sel.matchesAny(configs) {
			sel = sel.clear(d)
		}
	}
	return sel.Candidates(configs), sel
}

// only keeps the value of d
func (sel Selections) only(d Dimension) Selections {
	switch d {
	case DimRelease:
		return Selections{Release: sel.Release}
	case DimEdition:
		return Selections{Edition: sel.Edition}
	case DimArch:
		return Selections{Arch: sel.Arch}
	}
	return Selections{}
}

func (sel Selections) clear(d Dimension) Selections {
	switch d {
	case DimRelease:
		sel.Release = ""
	case DimEdition:
		sel.Edition = ""
	case DimArch:
		sel.Arch = catalog.Arch{}
	}
	return sel
}

func (sel Selections) matches(rc catalog.ReleaseConfig) bool {
	return (sel.Release == "" || rc.Release == sel.Release) &&
		(sel.Edition == "" || rc.Edition == sel.Edition) &&
		(sel.Arch.IsZero() || rc.Arch == sel.Arch)
}

// matchesAny reports whether some configuration carries every selected
// value. For a set dimension this is the same as finding its value among
// the candidates filtered by the other two.
func (sel Selections) matchesAny(configs []catalog.ReleaseConfig) bool {
	return slices.ContainsFunc(configs, sel.matches)
}

// Complete reports whether the selection is fully specified: release and
// arch set, and an edition chosen unless the pair offers none.
func (sel Selections) Complete(c Candidates) bool {
	if sel.Release == "" || sel.Arch.IsZero() {
		return false
	}
	return sel.Edition != "" || len(c.Editions) == 0
}

// Projection returns the unfiltered candidate sets of configs
func Projection(configs []catalog.ReleaseConfig) Candidates {
	return Selections{}.Candidates(configs)
}
