// Package version parses and orders semantic version strings as they appear
// in Maven-style artifact coordinates and Gradle version catalogs.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned when a string cannot be parsed as a version.
var ErrInvalidVersion = errors.New("invalid version format")

// versionRgx matches MAJOR[.MINOR[.PATCH]][-PRERELEASE][+BUILD].
// Numeric components are digits only; missing minor/patch default to 0.
var versionRgx = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:-([0-9A-Za-z][0-9A-Za-z.\-]*))?(?:\+([0-9A-Za-z][0-9A-Za-z.\-]*))?$`)

// unstableRgx matches a single pre-release identifier that marks a build as
// not yet stable. The set is closed: alpha, beta, rc (with optional trailing
// number), Maven milestones (M1, M2, ...) and snapshots.
var unstableRgx = regexp.MustCompile(`^(?:alpha\d*|beta\d*|rc\d*|m\d+|snapshot)$`)

// Version is a parsed semantic version. Build metadata is retained for
// serialization but ignored by comparison.
type Version struct {
	Major int
	Minor int
	Patch int
	Pre   []string // dot-separated pre-release identifiers, nil for releases
	Build string
	Raw   string
}

// Parse converts a version string into a Version. It fails with
// ErrInvalidVersion for anything that does not match
// MAJOR[.MINOR[.PATCH]][-PRERELEASE][+BUILD].
func Parse(s string) (*Version, error) {
	m := versionRgx.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	v := &Version{Raw: s, Build: m[5]}
	v.Major, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		v.Minor, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		v.Patch, _ = strconv.Atoi(m[3])
	}
	if m[4] != "" {
		v.Pre = strings.Split(m[4], ".")
	}
	return v, nil
}

// MustParse is Parse for known-good literals, panicking on error.
// Intended for tests and package-level defaults.
func MustParse(s string) *Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the normalized form: numeric triple, pre-release tag and
// build metadata. The original input is available in Raw.
func (v *Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if len(v.Pre) > 0 {
		b.WriteByte('-')
		b.WriteString(strings.Join(v.Pre, "."))
	}
	if v.Build != "" {
		b.WriteByte('+')
		b.WriteString(v.Build)
	}
	return b.String()
}

// IsStable reports whether the version is a stable release: either it has no
// pre-release tag, or none of the tag's identifiers is one of the closed set
// of unstable markers (alpha, beta, rc, m<digits>, snapshot), compared
// case-insensitively. Qualifiers like "jre" or "android" are stable.
func (v *Version) IsStable() bool {
	for _, id := range v.Pre {
		if unstableRgx.MatchString(strings.ToLower(id)) {
			return false
		}
	}
	return true
}

// Compare orders v against o, returning -1, 0 or 1. Numeric fields are
// compared highest-significance first. A pre-release sorts below the same
// numeric release. Pre-release identifiers compare field by field: numeric
// identifiers numerically, alphanumeric identifiers lexically, and a numeric
// identifier always orders below an alphanumeric one. Build metadata and the
// raw form are ignored.
func (v *Version) Compare(o *Version) int {
	if c := cmpInt(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmpInt(v.Minor, o.Minor); c != 0 {
		return c
	}
	if c := cmpInt(v.Patch, o.Patch); c != 0 {
		return c
	}

	switch {
	case len(v.Pre) == 0 && len(o.Pre) == 0:
		return 0
	case len(v.Pre) == 0:
		return 1
	case len(o.Pre) == 0:
		return -1
	}

	for i := 0; i < len(v.Pre) && i < len(o.Pre); i++ {
		if c := cmpIdentifier(v.Pre[i], o.Pre[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(v.Pre), len(o.Pre))
}

// Equal reports whether two versions compare equal, regardless of build
// metadata or raw form.
func (v *Version) Equal(o *Version) bool {
	return v.Compare(o) == 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpIdentifier(a, b string) int {
	an, aNum := parseNumeric(a)
	bn, bNum := parseNumeric(b)

	switch {
	case aNum && bNum:
		return cmpInt(an, bn)
	case aNum:
		// Numeric identifiers order below alphanumeric ones.
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(a, b)
}

func parseNumeric(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// Max returns the greatest version in vs, or nil for an empty slice.
func Max(vs []*Version) *Version {
	var best *Version
	for _, v := range vs {
		if best == nil || v.Compare(best) > 0 {
			best = v
		}
	}
	return best
}
