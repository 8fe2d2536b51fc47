package policy

import (
	"fmt"

	"github.com/upcat-dev/upcat/internal/version"
)

// IsBreaking reports whether moving from current to candidate crosses a
// compatibility boundary: a major increase, a stable build moving to a
// pre-release, or, when breakZeroMinor is set, a minor increase under major 0
// since pre-1.0 projects commonly treat the minor as their breaking axis.
// Downgrades are never breaking.
func IsBreaking(current, candidate *version.Version, breakZeroMinor bool) (bool, string) {
	if candidate.Major > current.Major {
		return true, fmt.Sprintf("major version change: %d.x to %d.x", current.Major, candidate.Major)
	}
	if current.IsStable() && !candidate.IsStable() {
		return true, fmt.Sprintf("stable to pre-release: %s to %s", current.Raw, candidate.Raw)
	}
	if breakZeroMinor && current.Major == 0 && candidate.Major == 0 && candidate.Minor > current.Minor {
		return true, fmt.Sprintf("pre-1.0 minor change: 0.%d to 0.%d", current.Minor, candidate.Minor)
	}
	return false, ""
}
