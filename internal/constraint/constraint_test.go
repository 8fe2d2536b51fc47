package constraint

import (
	"errors"
	"testing"

	"github.com/upcat-dev/upcat/internal/version"
)

func mustParse(t *testing.T, expr string) *Constraint {
	t.Helper()
	c, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", expr, err)
	}
	return c
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr string
		op   Op
	}{
		{"pin", Pin},
		{"*", AnyStable},
		{"^1.2.0", Caret},
		{"~1.2.0", Tilde},
		{">=1.0.0", Gte},
		{"<=2.0.0", Lte},
		{">1.0.0", Gt},
		{"<2.0.0", Lt},
		{">=1.0.0 <2.0.0", Range},
		{"5.x", MajorWildcard},
		{"==1.2.3", Exact},
		{"1.2.3", Exact},
	}
	for _, tt := range tests {
		if c := mustParse(t, tt.expr); c.Op != tt.op {
			t.Errorf("Parse(%q).Op = %v, want %v", tt.expr, c.Op, tt.op)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, expr := range []string{"", "^^1.0.0", "^abc", ">=", ">=1.0.0 <=2.0.0 <3.0.0", "x.5", "pinny", "== 1.0 extra"} {
		if _, err := Parse(expr); !errors.Is(err, ErrInvalidConstraint) {
			t.Errorf("Parse(%q) = %v, want ErrInvalidConstraint", expr, err)
		}
	}
}

func TestTilde(t *testing.T) {
	c := mustParse(t, "~1.2.0")
	tests := []struct {
		candidate string
		want      bool
	}{
		{"1.2.5", true},
		{"1.2.0", true},
		{"1.3.0", false},
		{"1.1.9", false},
		{"2.2.0", false},
	}
	for _, tt := range tests {
		if got := c.Satisfied(version.MustParse(tt.candidate), nil); got != tt.want {
			t.Errorf("~1.2.0 Satisfied(%q) = %v, want %v", tt.candidate, got, tt.want)
		}
	}
}

func TestCaret(t *testing.T) {
	c := mustParse(t, "^1.2.0")
	tests := []struct {
		candidate string
		want      bool
	}{
		{"1.9.9", true},
		{"1.2.0", true},
		{"2.0.0", false},
		{"1.1.9", false},
	}
	for _, tt := range tests {
		if got := c.Satisfied(version.MustParse(tt.candidate), nil); got != tt.want {
			t.Errorf("^1.2.0 Satisfied(%q) = %v, want %v", tt.candidate, got, tt.want)
		}
	}
}

func TestCaretZeroMajor(t *testing.T) {
	c := mustParse(t, "^0.3.1")
	tests := []struct {
		candidate string
		want      bool
	}{
		{"0.3.9", true},
		{"0.4.0", false},
		{"1.0.0", false},
		{"0.3.0", false}, // below base
	}
	for _, tt := range tests {
		if got := c.Satisfied(version.MustParse(tt.candidate), nil); got != tt.want {
			t.Errorf("^0.3.1 Satisfied(%q) = %v, want %v", tt.candidate, got, tt.want)
		}
	}
}

func TestRange(t *testing.T) {
	c := mustParse(t, ">=1.0.0 <2.0.0")
	tests := []struct {
		candidate string
		want      bool
	}{
		{"1.0.0", true},
		{"1.9.9", true},
		{"2.0.0", false},
		{"0.9.9", false},
	}
	for _, tt := range tests {
		if got := c.Satisfied(version.MustParse(tt.candidate), nil); got != tt.want {
			t.Errorf("range Satisfied(%q) = %v, want %v", tt.candidate, got, tt.want)
		}
	}
}

func TestMajorWildcard(t *testing.T) {
	c := mustParse(t, "5.x")
	if !c.Satisfied(version.MustParse("5.13.4"), nil) {
		t.Error("5.x should accept 5.13.4")
	}
	if c.Satisfied(version.MustParse("6.0.0"), nil) {
		t.Error("5.x should reject 6.0.0")
	}
}

func TestPinAndExact(t *testing.T) {
	pin := mustParse(t, "pin")
	cur := version.MustParse("1.2.3")
	if !pin.Satisfied(version.MustParse("1.2.3"), cur) {
		t.Error("pin should accept the current version")
	}
	if pin.Satisfied(version.MustParse("1.2.4"), cur) {
		t.Error("pin should reject anything but the current version")
	}
	if pin.Satisfied(version.MustParse("1.2.3"), nil) {
		t.Error("pin with no current version accepts nothing")
	}

	exact := mustParse(t, "==1.2.3")
	if !exact.Satisfied(version.MustParse("1.2.3+meta"), nil) {
		t.Error("exact comparison ignores build metadata")
	}
	if exact.Satisfied(version.MustParse("1.2.4"), nil) {
		t.Error("==1.2.3 should reject 1.2.4")
	}
}

func TestAnyStable(t *testing.T) {
	c := mustParse(t, "*")
	if !c.Satisfied(version.MustParse("3.0.0"), nil) {
		t.Error("* should accept stable versions")
	}
	if c.Satisfied(version.MustParse("3.0.0-rc1"), nil) {
		t.Error("* should reject pre-releases")
	}
}

func TestString(t *testing.T) {
	for _, expr := range []string{"pin", "*", "^1.2.0", "~1.2.0", ">=1.0.0", ">=1.0.0 <2.0.0", "5.x", "==1.2.3"} {
		c := mustParse(t, expr)
		rt, err := Parse(c.String())
		if err != nil {
			t.Fatalf("reparsing %q (from %q) failed: %v", c.String(), expr, err)
		}
		if rt.Op != c.Op {
			t.Errorf("round trip of %q changed op: %v vs %v", expr, c.Op, rt.Op)
		}
	}
}
