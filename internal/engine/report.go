package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/upcat-dev/upcat/internal/ansi"
	"github.com/upcat-dev/upcat/internal/bom"
	"github.com/upcat-dev/upcat/internal/catalog"
	"github.com/upcat-dev/upcat/internal/policy"
)

// Result pairs one library's policy decision with the catalog key it backs.
// Key is empty for libraries tracked in configuration but absent from the
// catalog.
type Result struct {
	Key string `json:"key,omitempty"`
	policy.Result
}

// Report is the outcome of one check run. Results keep the declaration order
// of the configuration and catalog regardless of completion order. Degraded
// sources appear as error strings, never abort the run.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`

	Results []Result `json:"results"`

	CatalogDelta *catalog.Delta `json:"catalog_delta,omitempty"`
	CatalogError string         `json:"catalog_error,omitempty"`

	BOMChanges []bom.Change `json:"bom_changes,omitempty"`
	BOMError   string       `json:"bom_error,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// HasViolations reports whether any library resolved to VIOLATE; the check
// command exits non-zero on it.
func (r *Report) HasViolations() bool {
	for _, res := range r.Results {
		if res.Status == policy.StatusViolate {
			return true
		}
	}
	return false
}

// Updatable returns the results that can actually be applied.
func (r *Report) Updatable() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == policy.StatusUpdate && res.Key != "" {
			out = append(out, res)
		}
	}
	return out
}

func statusColor(s policy.Status) string {
	switch s {
	case policy.StatusUpdate:
		return ansi.Green
	case policy.StatusCurrent:
		return ansi.Cyan
	case policy.StatusPinned:
		return ansi.Dim
	case policy.StatusViolate:
		return ansi.Red
	case policy.StatusNoAPI, policy.StatusSkip:
		return ansi.Yellow
	}
	return ""
}

// Render writes a human-readable report. Colors are emitted only when color
// is set.
func (r *Report) Render(w io.Writer, color bool) {
	fmt.Fprintf(w, "%s\n", ansi.Paint(ansi.Bold, "Dependency updates", color))

	for _, res := range r.Results {
		status := ansi.Paint(statusColor(res.Status), string(res.Status), color)
		fmt.Fprintf(w, "  %-8s %s %s", status, res.Library, res.Current)
		if res.Recommended != "" && res.Recommended != res.Current {
			fmt.Fprintf(w, " -> %s", res.Recommended)
		}
		if res.Breaking {
			fmt.Fprintf(w, " %s", ansi.Paint(ansi.Red, "[breaking]", color))
		}
		if res.Reason != "" {
			fmt.Fprintf(w, " (%s)", res.Reason)
		}
		fmt.Fprintln(w)
	}

	if r.CatalogError != "" {
		fmt.Fprintf(w, "\nshared catalog: %s\n", ansi.Paint(ansi.Yellow, r.CatalogError, color))
	} else if r.CatalogDelta != nil && !r.CatalogDelta.Empty() {
		fmt.Fprintf(w, "\n%s\n", ansi.Paint(ansi.Bold, "Shared catalog", color))
		for _, c := range r.CatalogDelta.Added {
			fmt.Fprintf(w, "  + [%s] %s = %s\n", c.Section, c.Key, c.Shared)
		}
		for _, c := range r.CatalogDelta.Changed {
			fmt.Fprintf(w, "  ~ [%s] %s: %s -> %s\n", c.Section, c.Key, c.Local, c.Shared)
		}
	}

	if r.BOMError != "" {
		fmt.Fprintf(w, "\nspring boot bom: %s\n", ansi.Paint(ansi.Yellow, r.BOMError, color))
	} else if len(r.BOMChanges) > 0 {
		fmt.Fprintf(w, "\n%s\n", ansi.Paint(ansi.Bold, "Spring Boot BOM", color))
		for _, c := range r.BOMChanges {
			if c.From == "" {
				fmt.Fprintf(w, "  + %s = %s\n", c.Key, c.To)
			} else {
				fmt.Fprintf(w, "  ~ %s: %s -> %s\n", c.Key, c.From, c.To)
			}
		}
	}

	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "\n%s %s\n", ansi.Paint(ansi.Yellow, "warning:", color), warning)
	}
}
