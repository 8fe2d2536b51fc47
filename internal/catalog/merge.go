package catalog

import "fmt"

// Namespaces merged from a shared catalog. Anything else in the shared file
// is ignored.
var mergeSections = []string{"versions", "libraries", "plugins"}

// Change records one key's fate during a merge.
type Change struct {
	Section string `json:"section"`
	Key     string `json:"key"`
	Local   string `json:"local,omitempty"`
	Shared  string `json:"shared"`
}

// Delta summarizes a merge, covering every key of both catalogs. Added
// entries did not exist locally, Changed entries took the shared value over a
// differing local one, Kept entries stayed local (identical on both sides,
// protected by overrideLocal, or declared only locally; Shared is empty for
// the last group).
type Delta struct {
	Added   []Change `json:"added"`
	Changed []Change `json:"changed"`
	Kept    []Change `json:"kept"`
}

// Empty reports whether the merge would not modify the local catalog.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0
}

// Merge folds a shared catalog into a copy of local and returns the merged
// document with its delta. overrideLocal keeps the local value wherever both
// catalogs declare a key; otherwise the shared value wins. The local document
// passed in is never modified, and any failure returns it untouched with a
// nil merged document.
func Merge(local, shared *Document, overrideLocal bool) (*Document, Delta, error) {
	merged := local.Clone()
	var delta Delta

	for _, section := range mergeSections {
		inShared := make(map[string]bool)
		for _, key := range shared.Keys(section) {
			inShared[key] = true
			sharedRaw, _ := shared.Raw(section, key)
			localRaw, exists := merged.Raw(section, key)

			switch {
			case !exists:
				if err := merged.Add(section, key, sharedRaw); err != nil {
					return nil, Delta{}, fmt.Errorf("merging [%s] %s: %w", section, key, err)
				}
				delta.Added = append(delta.Added, Change{Section: section, Key: key, Shared: sharedRaw})

			case localRaw == sharedRaw:
				delta.Kept = append(delta.Kept, Change{Section: section, Key: key, Local: localRaw, Shared: sharedRaw})

			case overrideLocal:
				delta.Kept = append(delta.Kept, Change{Section: section, Key: key, Local: localRaw, Shared: sharedRaw})

			default:
				if err := merged.setRaw(section, key, sharedRaw); err != nil {
					return nil, Delta{}, fmt.Errorf("merging [%s] %s: %w", section, key, err)
				}
				delta.Changed = append(delta.Changed, Change{Section: section, Key: key, Local: localRaw, Shared: sharedRaw})
			}
		}

		// Keys only the local catalog declares are untouched but still
		// accounted for.
		for _, key := range local.Keys(section) {
			if inShared[key] {
				continue
			}
			localRaw, _ := local.Raw(section, key)
			delta.Kept = append(delta.Kept, Change{Section: section, Key: key, Local: localRaw})
		}
	}

	if err := Validate(merged.Bytes()); err != nil {
		return nil, Delta{}, err
	}
	return merged, delta, nil
}
