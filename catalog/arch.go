package catalog

import (
	"fmt"
	"runtime"
	"strings"
)

// Family is the CPU architecture family of a guest image
type Family string

const (
	FamilyX86_64  Family = "x86_64"
	FamilyAArch64 Family = "aarch64"
	FamilyRiscv64 Family = "riscv64"
)

// Machine is the machine-type sub-variant of an architecture
type Machine string

const MachineStandard Machine = "standard"

// Arch identifies an architecture together with its machine type.
// The zero value means "no architecture".
type Arch struct {
	Family  Family
	Machine Machine
}

var (
	X86_64  = Arch{Family: FamilyX86_64, Machine: MachineStandard}
	AArch64 = Arch{Family: FamilyAArch64, Machine: MachineStandard}
	Riscv64 = Arch{Family: FamilyRiscv64, Machine: MachineStandard}
)

// IsZero reports whether a is unset
func (a Arch) IsZero() bool {
	return a.Family == ""
}

// String returns the display form: the family alone for standard machines,
// "<Machine> <family>" otherwise.
func (a Arch) String() string {
	if a.Machine == "" || a.Machine == MachineStandard {
		return string(a.Family)
	}
	m := string(a.Machine)
	return strings.ToUpper(m[:1]) + m[1:] + " " + string(a.Family)
}

// MarshalText encodes a as "family" or "family:machine"
func (a Arch) MarshalText() ([]byte, error) {
	if a.Machine == "" || a.Machine == MachineStandard {
		return []byte(a.Family), nil
	}
	return []byte(string(a.Family) + ":" + string(a.Machine)), nil
}

// UnmarshalText accepts anything ParseArch does
func (a *Arch) UnmarshalText(text []byte) error {
	parsed, err := ParseArch(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseArch parses "x86_64", "aarch64:virt" and the Go/Debian aliases
// amd64 and arm64. The machine defaults to standard.
func ParseArch(s string) (Arch, error) {
	family, machine, _ := strings.Cut(strings.TrimSpace(s), ":")

	var a Arch
	switch strings.ToLower(family) {
	case "x86_64", "amd64", "x86-64":
		a.Family = FamilyX86_64
	case "aarch64", "arm64":
		a.Family = FamilyAArch64
	case "riscv64":
		a.Family = FamilyRiscv64
	default:
		return Arch{}, fmt.Errorf("unknown architecture %q", s)
	}

	a.Machine = Machine(strings.ToLower(machine))
	if a.Machine == "" {
		a.Machine = MachineStandard
	}
	return a, nil
}

// HostArch returns the standard architecture matching the running binary
func HostArch() Arch {
	switch runtime.GOARCH {
	case "arm64":
		return AArch64
	case "riscv64":
		return Riscv64
	default:
		return X86_64
	}
}
