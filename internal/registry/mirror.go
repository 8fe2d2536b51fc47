package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/upcat-dev/upcat/internal/fetch"
)

const mirrorKind = "mirror"

func init() {
	// The factory baseURL carries both endpoints as "primary|mirror";
	// NewMirror is the typed constructor for direct use.
	Register(mirrorKind, "", func(baseURL string, client *fetch.Client) Resolver {
		primary, fallback, _ := strings.Cut(baseURL, "|")
		return NewMirror(primary, fallback, client)
	})
}

// Mirror resolves against a primary registry and falls back to a mirror
// endpoint when the primary is unreachable. A NotFound answer from the
// primary is authoritative and does not trigger failover.
type Mirror struct {
	primary  Resolver
	fallback Resolver
}

// NewMirror creates a Mirror over two Central-style endpoints.
func NewMirror(primaryURL, mirrorURL string, client *fetch.Client) *Mirror {
	return &Mirror{
		primary:  NewCentral(primaryURL, client),
		fallback: NewCentral(mirrorURL, client),
	}
}

func (m *Mirror) Kind() string {
	return mirrorKind
}

func (m *Mirror) FetchVersions(ctx context.Context, group, artifact string) ([]Candidate, error) {
	candidates, err := m.primary.FetchVersions(ctx, group, artifact)
	if err == nil {
		return candidates, nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return m.fallback.FetchVersions(ctx, group, artifact)
}
