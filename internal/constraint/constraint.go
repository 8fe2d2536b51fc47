// Package constraint implements the update-constraint DSL attached to version
// catalog entries: pin, *, ^X.Y.Z, ~X.Y.Z, comparison bounds, two-sided
// ranges, X.x wildcards and exact pins.
package constraint

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/upcat-dev/upcat/internal/version"
)

// ErrInvalidConstraint is returned when an expression does not match the
// constraint grammar.
var ErrInvalidConstraint = errors.New("invalid constraint syntax")

// Op identifies the constraint variant.
type Op int

const (
	// Pin accepts only the current version; it is the default when no
	// constraint is declared.
	Pin Op = iota
	// AnyStable (`*`) accepts any stable version.
	AnyStable
	// Caret (`^X.Y.Z`) accepts compatible upgrades within the leading
	// nonzero component.
	Caret
	// Tilde (`~X.Y.Z`) accepts patch-level upgrades within X.Y.
	Tilde
	// Gte, Lte, Gt, Lt are one-sided bounds.
	Gte
	Lte
	Gt
	Lt
	// Range is the conjunction of a >= lower bound and a < upper bound.
	Range
	// MajorWildcard (`X.x`) accepts any version with major X.
	MajorWildcard
	// Exact (`==X` or a bare version) accepts only that version.
	Exact
)

var opNames = map[Op]string{
	Pin: "pin", AnyStable: "*", Caret: "^", Tilde: "~",
	Gte: ">=", Lte: "<=", Gt: ">", Lt: "<",
	Range: "range", MajorWildcard: ".x", Exact: "==",
}

// Constraint is a parsed constraint expression.
type Constraint struct {
	Op    Op
	Base  *version.Version // Caret, Tilde, Gte, Lte, Gt, Lt, Exact
	High  *version.Version // Range upper bound (Base holds the lower)
	Major int              // MajorWildcard
	Raw   string
}

var wildcardRgx = regexp.MustCompile(`^(\d+)\.x$`)

// Parse converts a constraint expression into a Constraint, failing with
// ErrInvalidConstraint for anything outside the grammar.
func Parse(expr string) (*Constraint, error) {
	s := strings.TrimSpace(expr)
	c := &Constraint{Raw: expr}

	switch {
	case s == "":
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidConstraint)

	case s == "pin":
		c.Op = Pin
		return c, nil

	case s == "*":
		c.Op = AnyStable
		return c, nil

	case strings.HasPrefix(s, "^"):
		return parseBase(c, Caret, s[1:])

	case strings.HasPrefix(s, "~"):
		return parseBase(c, Tilde, s[1:])

	case strings.HasPrefix(s, ">="):
		// Either a one-sided bound or the lower half of `>=X <Y`.
		fields := strings.Fields(s)
		if len(fields) == 2 && strings.HasPrefix(fields[1], "<") && !strings.HasPrefix(fields[1], "<=") {
			low, err := version.Parse(strings.TrimPrefix(fields[0], ">="))
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidConstraint, expr)
			}
			high, err := version.Parse(strings.TrimPrefix(fields[1], "<"))
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidConstraint, expr)
			}
			c.Op, c.Base, c.High = Range, low, high
			return c, nil
		}
		if len(fields) != 1 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidConstraint, expr)
		}
		return parseBase(c, Gte, s[2:])

	case strings.HasPrefix(s, "<="):
		return parseBase(c, Lte, s[2:])

	case strings.HasPrefix(s, ">"):
		return parseBase(c, Gt, s[1:])

	case strings.HasPrefix(s, "<"):
		return parseBase(c, Lt, s[1:])
	}

	if m := wildcardRgx.FindStringSubmatch(s); m != nil {
		c.Op = MajorWildcard
		c.Major, _ = strconv.Atoi(m[1])
		return c, nil
	}

	return parseBase(c, Exact, strings.TrimPrefix(s, "=="))
}

func parseBase(c *Constraint, op Op, rest string) (*Constraint, error) {
	v, err := version.Parse(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidConstraint, c.Raw)
	}
	c.Op, c.Base = op, v
	return c, nil
}

// Satisfied reports whether candidate is acceptable under the constraint.
// current is the currently adopted version; it only participates for Pin,
// which accepts nothing but the current version itself.
func (c *Constraint) Satisfied(candidate, current *version.Version) bool {
	switch c.Op {
	case Pin:
		return current != nil && candidate.Equal(current)

	case AnyStable:
		return candidate.IsStable()

	case Caret:
		if candidate.Compare(c.Base) < 0 {
			return false
		}
		return caretCompatible(candidate, c.Base)

	case Tilde:
		return candidate.Major == c.Base.Major &&
			candidate.Minor == c.Base.Minor &&
			candidate.Compare(c.Base) >= 0

	case Gte:
		return candidate.Compare(c.Base) >= 0
	case Lte:
		return candidate.Compare(c.Base) <= 0
	case Gt:
		return candidate.Compare(c.Base) > 0
	case Lt:
		return candidate.Compare(c.Base) < 0

	case Range:
		return candidate.Compare(c.Base) >= 0 && candidate.Compare(c.High) < 0

	case MajorWildcard:
		return candidate.Major == c.Major

	case Exact:
		return candidate.Equal(c.Base)
	}
	return false
}

// caretCompatible applies caret semantics: same major, or when major is 0 the
// leading nonzero component must match.
func caretCompatible(candidate, base *version.Version) bool {
	if base.Major != 0 {
		return candidate.Major == base.Major
	}
	if base.Minor != 0 {
		return candidate.Major == 0 && candidate.Minor == base.Minor
	}
	return candidate.Major == 0 && candidate.Minor == 0 && candidate.Patch == base.Patch
}

// String renders a canonical form of the constraint.
func (c *Constraint) String() string {
	switch c.Op {
	case Pin, AnyStable:
		return opNames[c.Op]
	case Caret, Tilde:
		return opNames[c.Op] + c.Base.String()
	case Gte, Lte, Gt, Lt:
		return opNames[c.Op] + c.Base.String()
	case Range:
		return ">=" + c.Base.String() + " <" + c.High.String()
	case MajorWildcard:
		return strconv.Itoa(c.Major) + ".x"
	case Exact:
		return "==" + c.Base.String()
	}
	return c.Raw
}
