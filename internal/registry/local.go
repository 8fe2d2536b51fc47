package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/upcat-dev/upcat/internal/fetch"
)

const localKind = "local"

func init() {
	Register(localKind, "", func(baseURL string, client *fetch.Client) Resolver {
		return NewLocal(baseURL)
	})
}

// Local serves versions from a JSON index file on disk, keyed by
// "group:artifact". Used for air-gapped setups and tests:
//
//	{
//	  "com.google.guava:guava": ["32.1.0-jre", "33.0.0-jre"],
//	  "org.slf4j:slf4j-api":    ["2.0.9", "2.0.12"]
//	}
type Local struct {
	path string
}

// NewLocal creates a Local resolver reading the index at path.
func NewLocal(path string) *Local {
	return &Local{path: path}
}

func (l *Local) Kind() string {
	return localKind
}

// FetchVersions re-reads the index on every call; the caching layer above
// keeps the hot path off disk.
func (l *Local) FetchVersions(ctx context.Context, group, artifact string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading index %s: %v", ErrNetwork, l.path, err)
	}

	var index map[string][]string
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("%w: parsing index %s: %v", ErrNetwork, l.path, err)
	}

	versions, ok := index[group+":"+artifact]
	if !ok || len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, group, artifact)
	}

	candidates := make([]Candidate, len(versions))
	for i, v := range versions {
		candidates[i] = Candidate{Version: v, PublishedAt: time.Time{}}
	}
	return candidates, nil
}
