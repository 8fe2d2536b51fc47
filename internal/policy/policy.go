// Package policy decides, per tracked library, whether an update should be
// adopted: it reconciles the structured constraint, the legacy update policy
// and the registry's candidate list into a single classified result.
package policy

import (
	"fmt"

	"github.com/upcat-dev/upcat/internal/constraint"
	"github.com/upcat-dev/upcat/internal/version"
)

// Status classifies one library's resolution outcome. The set is exhaustive
// and mutually exclusive.
type Status string

const (
	StatusUpdate  Status = "UPDATE"
	StatusCurrent Status = "CURRENT"
	StatusPinned  Status = "PINNED"
	StatusSkip    Status = "SKIP"
	StatusViolate Status = "VIOLATE"
	StatusNoAPI   Status = "NO_API"
)

// Legacy is the coarse update policy used where no structured constraint is
// declared.
type Legacy string

const (
	LegacyNone       Legacy = ""
	LegacyPinned     Legacy = "pinned"
	LegacyLastStable Legacy = "last-stable"
	LegacyLatest     Legacy = "latest"
	LegacyMajorOnly  Legacy = "major-only"
	LegacyMinorOnly  Legacy = "minor-only"
)

// ParseLegacy converts a configured update_policy / compatibility_mode value
// into the closed enum, rejecting unknown values at config-load time.
func ParseLegacy(s string) (Legacy, error) {
	switch Legacy(s) {
	case LegacyNone, LegacyPinned, LegacyLastStable, LegacyLatest, LegacyMajorOnly, LegacyMinorOnly:
		return Legacy(s), nil
	}
	return LegacyNone, fmt.Errorf("unknown update policy %q", s)
}

// Input carries everything known about one library at resolution time.
type Input struct {
	Group    string
	Artifact string

	// Current is the version currently recorded in the catalog.
	Current *version.Version

	// Constraint is the structured constraint from the catalog comment,
	// nil when none is declared. When present it is authoritative and the
	// legacy policy is ignored.
	Constraint *constraint.Constraint

	// Legacy is the blanket policy from configuration; LegacyNone when
	// unset.
	Legacy Legacy

	// SourceURL is the registry source for the library; an empty value
	// means the entry is not tracked against any registry.
	SourceURL string

	// Candidates is the raw registry answer; RegistryErr is set instead
	// when the query failed.
	Candidates  []string
	RegistryErr error
}

// Result is the classified decision for one library.
type Result struct {
	Library     string `json:"library"`
	Status      Status `json:"status"`
	Current     string `json:"current"`
	Recommended string `json:"recommended,omitempty"`
	Breaking    bool   `json:"breaking"`
	Reason      string `json:"reason,omitempty"`
}

// Resolver applies the resolution algorithm. BreakZeroMinor controls whether
// a minor bump under major 0 counts as breaking (on by default in config).
type Resolver struct {
	BreakZeroMinor bool
}

// Resolve classifies one library. It never returns an error: every failure
// mode is captured in the result so sibling libraries are unaffected.
func (r *Resolver) Resolve(in Input) Result {
	res := Result{Library: in.Group + ":" + in.Artifact}
	if in.Current != nil {
		res.Current = in.Current.Raw
	}

	if in.SourceURL == "" {
		res.Status = StatusSkip
		res.Reason = "no source configured"
		return res
	}

	if in.Current == nil {
		res.Status = StatusSkip
		res.Reason = "current version is not a valid semantic version"
		return res
	}

	if in.RegistryErr != nil {
		res.Status = StatusNoAPI
		res.Reason = in.RegistryErr.Error()
		return res
	}

	eligible := parseCandidates(in.Candidates)
	if len(eligible) == 0 {
		res.Status = StatusNoAPI
		res.Reason = "registry returned no usable versions"
		return res
	}

	// Pre-releases are out unless the legacy policy explicitly asks for
	// the absolute latest.
	if in.Legacy != LegacyLatest {
		eligible = filter(eligible, func(v *version.Version) bool { return v.IsStable() })
	}

	// The structured constraint is authoritative; the legacy policy only
	// filters when no constraint is declared.
	switch {
	case in.Constraint != nil:
		if in.Constraint.Op == constraint.Pin {
			return r.pinned(res, in)
		}
		eligible = filter(eligible, func(v *version.Version) bool {
			return in.Constraint.Satisfied(v, in.Current)
		})

	case in.Legacy == LegacyPinned:
		return r.pinned(res, in)

	case in.Legacy == LegacyMajorOnly:
		eligible = filter(eligible, func(v *version.Version) bool {
			return v.Major > in.Current.Major
		})

	case in.Legacy == LegacyMinorOnly:
		eligible = filter(eligible, func(v *version.Version) bool {
			return v.Major == in.Current.Major
		})

	case in.Legacy == LegacyLastStable, in.Legacy == LegacyLatest:
		// Pass the stage-3 set through unchanged.

	default:
		// Neither a constraint nor a legacy policy: the declaration
		// defaults to pin.
		return r.pinned(res, in)
	}

	if len(eligible) == 0 {
		res.Status = StatusViolate
		res.Reason = "no candidate satisfies the declared constraint"
		return res
	}

	recommended := version.Max(eligible)
	res.Recommended = recommended.Raw

	breaking, why := IsBreaking(in.Current, recommended, r.BreakZeroMinor)
	res.Breaking = breaking

	if recommended.Equal(in.Current) {
		res.Status = StatusCurrent
		res.Breaking = false
		return res
	}

	res.Status = StatusUpdate
	if breaking {
		res.Reason = why
	}
	return res
}

func (r *Resolver) pinned(res Result, in Input) Result {
	res.Status = StatusPinned
	res.Recommended = in.Current.Raw
	return res
}

func parseCandidates(raw []string) []*version.Version {
	out := make([]*version.Version, 0, len(raw))
	for _, s := range raw {
		v, err := version.Parse(s)
		if err != nil {
			// Registries publish the odd unparseable tag; skip it
			// rather than failing the library.
			continue
		}
		out = append(out, v)
	}
	return out
}

func filter(vs []*version.Version, keep func(*version.Version) bool) []*version.Version {
	out := vs[:0:0]
	for _, v := range vs {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
