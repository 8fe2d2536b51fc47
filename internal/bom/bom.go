// Package bom syncs catalog entries against the Spring Boot dependency BOM,
// a Maven POM whose <properties> block pins the versions Spring Boot was
// tested with.
package bom

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/upcat-dev/upcat/internal/catalog"
	"github.com/upcat-dev/upcat/internal/fetch"
)

// DefaultBaseURL is the Maven repository the BOM POM is served from.
const DefaultBaseURL = "https://repo.maven.apache.org/maven2"

// ErrUnavailable reports a BOM that could not be downloaded or parsed.
var ErrUnavailable = errors.New("bom unavailable")

// mappedKeys are the catalog keys the BOM governs, in report order. The BOM
// declares hundreds of properties; only these have a conventional catalog
// counterpart.
var mappedKeys = []string{
	"jackson",
	"hibernate",
	"netty",
	"reactor",
	"slf4j",
	"logback",
	"junit-jupiter",
	"mockito",
	"assertj",
}

// Client downloads and decodes BOM POMs.
type Client struct {
	fetch   *fetch.Client
	baseURL string
}

func NewClient(f *fetch.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{fetch: f, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) pomURL(version string) string {
	return fmt.Sprintf("%s/org/springframework/boot/spring-boot-dependencies/%s/spring-boot-dependencies-%s.pom",
		c.baseURL, version, version)
}

type pomProperty struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type pomFile struct {
	Properties struct {
		Props []pomProperty `xml:",any"`
	} `xml:"properties"`
}

// Properties fetches the BOM for a Spring Boot version and returns its
// managed versions keyed by library name, i.e. the "<lib>.version" POM
// properties with the suffix stripped.
func (c *Client) Properties(ctx context.Context, version string) (map[string]string, error) {
	data, err := c.fetch.GetBytes(ctx, c.pomURL(version))
	if err != nil {
		return nil, fmt.Errorf("%w: spring boot %s: %v", ErrUnavailable, version, err)
	}

	var pom pomFile
	if err := xml.Unmarshal(data, &pom); err != nil {
		return nil, fmt.Errorf("%w: spring boot %s: %v", ErrUnavailable, version, err)
	}

	out := make(map[string]string)
	for _, p := range pom.Properties.Props {
		tag := p.XMLName.Local
		if v, ok := strings.CutSuffix(tag, ".version"); ok {
			out[v] = strings.TrimSpace(p.Value)
		}
	}
	return out, nil
}

// Change records one catalog key moved by a BOM sync. From is empty for keys
// the sync introduced.
type Change struct {
	Key  string `json:"key"`
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

// Sync writes the BOM's mapped versions into doc, returning the changes in
// mapping order. When only is non-empty the sync is restricted to those
// catalog keys. Keys already at the BOM version are left alone; keys the
// catalog lacks are added.
func Sync(doc *catalog.Document, versions map[string]string, only []string) ([]Change, error) {
	wanted := make(map[string]bool, len(only))
	for _, k := range only {
		wanted[k] = true
	}

	var changes []Change
	for _, key := range mappedKeys {
		if len(only) > 0 && !wanted[key] {
			continue
		}
		target, ok := versions[key]
		if !ok {
			continue
		}

		if cur, exists := doc.Version(key); exists {
			if cur.Value == target {
				continue
			}
			if err := doc.SetVersion(key, target); err != nil {
				return nil, err
			}
			changes = append(changes, Change{Key: key, From: cur.Value, To: target})
			continue
		}

		if err := doc.Add("versions", key, fmt.Sprintf("%q", target)); err != nil {
			return nil, err
		}
		changes = append(changes, Change{Key: key, To: target})
	}
	return changes, nil
}
