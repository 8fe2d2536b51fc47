// Package registry resolves candidate version lists for Maven-style
// coordinates from a closed set of registry kinds: a remote search API, a
// mirror pair, and a local file index. Kinds are selected by configuration
// through a factory, never by runtime type inspection.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upcat-dev/upcat/internal/fetch"
)

var (
	// ErrNotFound is returned when a registry has no versions for the
	// requested coordinates.
	ErrNotFound = errors.New("artifact not found")
	// ErrNetwork is re-exported so callers can classify resolver failures
	// without importing the fetch package.
	ErrNetwork = fetch.ErrNetwork
)

// Candidate is one version a registry knows about. PublishedAt is zero when
// the registry does not report timestamps.
type Candidate struct {
	Version     string
	PublishedAt time.Time
}

// Resolver is the capability interface over version registries.
type Resolver interface {
	// Kind returns the configured registry kind ("central", "mirror",
	// "local").
	Kind() string

	// FetchVersions returns every version the registry knows for the
	// coordinates. It fails with ErrNetwork on timeout or upstream
	// failure and ErrNotFound for unknown artifacts.
	FetchVersions(ctx context.Context, group, artifact string) ([]Candidate, error)
}

// Factory creates a resolver for a given base URL.
type Factory func(baseURL string, client *fetch.Client) Resolver

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
	defaults  = make(map[string]string)
)

// Register adds a resolver factory for a registry kind. Called from package
// init functions of the kind implementations.
func Register(kind, defaultURL string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = factory
	defaults[kind] = defaultURL
}

// New creates a resolver for the given kind. If baseURL is empty the kind's
// default URL is used; if client is nil a default client is created.
func New(kind, baseURL string, client *fetch.Client) (Resolver, error) {
	mu.RLock()
	factory, ok := factories[kind]
	defaultURL := defaults[kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown registry kind: %s", kind)
	}
	if baseURL == "" {
		baseURL = defaultURL
	}
	if client == nil {
		client = fetch.NewClient()
	}
	return factory(baseURL, client), nil
}

// Kinds returns all registered registry kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	return kinds
}
