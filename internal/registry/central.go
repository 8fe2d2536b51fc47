package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/upcat-dev/upcat/internal/fetch"
)

const (
	// DefaultCentralURL is the Maven Central search endpoint.
	DefaultCentralURL = "https://search.maven.org"

	centralKind = "central"
)

func init() {
	Register(centralKind, DefaultCentralURL, func(baseURL string, client *fetch.Client) Resolver {
		return NewCentral(baseURL, client)
	})
}

// Central queries the Maven Central solr search API for artifact versions.
type Central struct {
	baseURL string
	client  *fetch.Client
}

// NewCentral creates a Central resolver against baseURL.
func NewCentral(baseURL string, client *fetch.Client) *Central {
	if baseURL == "" {
		baseURL = DefaultCentralURL
	}
	return &Central{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

func (c *Central) Kind() string {
	return centralKind
}

type searchResponse struct {
	Response struct {
		NumFound int         `json:"numFound"`
		Docs     []searchDoc `json:"docs"`
	} `json:"response"`
}

type searchDoc struct {
	ID        string `json:"id"`
	Group     string `json:"g"`
	Artifact  string `json:"a"`
	Version   string `json:"v"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
}

// FetchVersions queries the GAV core for every published version of the
// artifact, newest first as returned by the API.
func (c *Central) FetchVersions(ctx context.Context, group, artifact string) ([]Candidate, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("g:%s AND a:%s", group, artifact))
	query.Set("core", "gav")
	query.Set("rows", "50")
	query.Set("wt", "json")
	endpoint := fmt.Sprintf("%s/solrsearch/select?%s", c.baseURL, query.Encode())

	var resp searchResponse
	if err := c.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("querying %s:%s: %w", group, artifact, err)
	}

	if resp.Response.NumFound == 0 || len(resp.Response.Docs) == 0 {
		return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, group, artifact)
	}

	candidates := make([]Candidate, 0, len(resp.Response.Docs))
	for _, doc := range resp.Response.Docs {
		if doc.Version == "" {
			continue
		}
		var published time.Time
		if doc.Timestamp > 0 {
			published = time.UnixMilli(doc.Timestamp)
		}
		candidates = append(candidates, Candidate{
			Version:     doc.Version,
			PublishedAt: published,
		})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, group, artifact)
	}
	return candidates, nil
}
