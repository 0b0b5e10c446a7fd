package selection

import (
	"strings"
	"unicode"

	"vmget/catalog"
)

// DefaultName derives the canonical VM name for a fully specified selection:
// <os>-<release>[-<edition>]-<arch>.
func DefaultName(osName, release, edition string, arch catalog.Arch) string {
	parts := []string{osName, release}
	if edition != "" {
		parts = append(parts, edition)
	}
	parts = append(parts, NormalizeArchLabel(arch.String()))
	return strings.Join(parts, "-")
}

// NormalizeArchLabel turns an architecture display label into a name
// fragment: spaces become underscores, everything is lower-cased and any
// rune that is not a letter, digit or underscore is dropped.
func NormalizeArchLabel(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.ReplaceAll(label, " ", "_")) {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
