// Package engine orchestrates a full update run: it resolves every tracked
// library against the configured registry, merges shared catalog and BOM
// sources, assembles a deterministic report and applies selected updates
// transactionally.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/git-pkgs/purl"

	"github.com/upcat-dev/upcat/internal/bom"
	"github.com/upcat-dev/upcat/internal/catalog"
	"github.com/upcat-dev/upcat/internal/config"
	"github.com/upcat-dev/upcat/internal/constraint"
	"github.com/upcat-dev/upcat/internal/fetch"
	"github.com/upcat-dev/upcat/internal/policy"
	"github.com/upcat-dev/upcat/internal/registry"
	"github.com/upcat-dev/upcat/internal/version"
)

// Coordinator runs checks and applies updates for one project.
type Coordinator struct {
	cfg      config.Config
	fetch    *fetch.Client
	resolver registry.Resolver
	cache    *registry.Cached
	bom      *bom.Client
	verifier Verifier
	policy   *policy.Resolver
	sm       *stateMachine

	mu  sync.Mutex
	doc *catalog.Document
}

// Option overrides a collaborator, used by tests and by callers with their
// own clients.
type Option func(*Coordinator)

func WithFetchClient(c *fetch.Client) Option {
	return func(co *Coordinator) { co.fetch = c }
}

func WithResolver(r registry.Resolver) Option {
	return func(co *Coordinator) { co.resolver = r }
}

func WithBOMClient(c *bom.Client) Option {
	return func(co *Coordinator) { co.bom = c }
}

func WithVerifier(v Verifier) Option {
	return func(co *Coordinator) { co.verifier = v }
}

// New wires a coordinator from configuration. The registry resolver is
// selected by kind through the factory and wrapped in the TTL cache.
func New(cfg config.Config, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		cfg:      cfg,
		policy:   &policy.Resolver{BreakZeroMinor: cfg.Update.BreakOnZeroMinor},
		verifier: StaticVerifier{Level: TrustLevel(cfg.SharedCatalog.Trust)},
		sm:       newStateMachine(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.fetch == nil {
		c.fetch = fetch.NewClient(fetch.WithTimeout(cfg.Registry.Timeout))
	}
	if c.resolver == nil {
		r, err := registry.New(cfg.Registry.Kind, registryBaseURL(cfg.Registry), c.fetch)
		if err != nil {
			return nil, err
		}
		c.resolver = r
	}
	c.cache = registry.NewCached(c.resolver, cfg.Registry.CacheTTL)
	if c.bom == nil {
		c.bom = bom.NewClient(c.fetch, "")
	}
	return c, nil
}

func registryBaseURL(r config.Registry) string {
	switch r.Kind {
	case "mirror":
		return r.URL + "|" + r.MirrorURL
	case "local":
		return r.IndexPath
	}
	return r.URL
}

// State returns the coordinator's current run state.
func (c *Coordinator) State() State { return c.sm.current() }

// InvalidateCache drops all cached registry answers.
func (c *Coordinator) InvalidateCache() { c.cache.Invalidate() }

// Cancel abandons a reported or in-flight run.
func (c *Coordinator) Cancel() error { return c.sm.to(StateCancelled) }

// CatalogSnapshot returns a deep copy of the last loaded catalog for callers
// that scaffold projects from it. Edits to the copy never reach the engine.
func (c *Coordinator) CatalogSnapshot() *catalog.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return nil
	}
	return c.doc.Clone()
}

// record is one tracked library flattened out of configuration and catalog.
type record struct {
	key       string
	group     string
	artifact  string
	current   string
	expr      string
	sourceURL string
	legacy    policy.Legacy
}

func (c *Coordinator) buildRecords(doc *catalog.Document) []record {
	var records []record
	seen := make(map[string]bool)

	source := c.sourceDescription()
	for _, lib := range c.cfg.Libraries {
		rec := record{
			key:       lib.Key,
			group:     lib.Group,
			artifact:  lib.Artifact,
			current:   lib.Version,
			sourceURL: source,
			legacy:    lib.Policy,
		}
		if e, ok := doc.Version(lib.Key); ok {
			rec.current = e.Value
			rec.expr = e.Constraint
		}
		seen[lib.Key] = true
		records = append(records, rec)
	}

	// Catalog entries not declared in configuration are tracked through
	// their source hint comment; entries without one are reported as
	// skipped so the report covers the whole catalog.
	for _, e := range doc.Versions() {
		if seen[e.Key] {
			continue
		}
		rec := record{
			key:       e.Key,
			current:   e.Value,
			expr:      e.Constraint,
			sourceURL: e.SourceURL,
		}
		// A pkg: hint carries the coordinates itself; otherwise they
		// come from the libraries entry referencing this key.
		if strings.HasPrefix(e.SourceURL, "pkg:") {
			if p, err := purl.Parse(e.SourceURL); err == nil && p.Type == "maven" {
				rec.group, rec.artifact = p.Namespace, p.Name
			}
		} else {
			rec.group, rec.artifact, _ = doc.Module(e.Key)
		}
		records = append(records, rec)
	}
	return records
}

func (c *Coordinator) sourceDescription() string {
	switch c.cfg.Registry.Kind {
	case "local":
		return c.cfg.Registry.IndexPath
	}
	if c.cfg.Registry.URL != "" {
		return c.cfg.Registry.URL
	}
	return registry.DefaultCentralURL
}

// Check resolves every tracked library and configured source and assembles
// the report. Single-source failures degrade their own entry and never abort
// the run.
func (c *Coordinator) Check(ctx context.Context) (*Report, error) {
	if err := c.sm.to(StateChecking); err != nil {
		return nil, err
	}

	doc, err := catalog.Load(c.cfg.CatalogPath)
	if err != nil {
		c.sm.to(StateIdle)
		return nil, err
	}
	c.mu.Lock()
	c.doc = doc
	c.mu.Unlock()

	records := c.buildRecords(doc)
	report := &Report{
		GeneratedAt: time.Now(),
		Results:     make([]Result, len(records)),
	}

	// Resolutions only share the registry cache, so they fan out over a
	// bounded pool. Each goroutine owns one pre-assigned slot in the
	// results slice, which keeps the report in declaration order no
	// matter the completion order.
	workers := c.cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, rec := range records {
		wg.Add(1)
		go func(i int, rec record) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				report.Results[i] = Result{Key: rec.key, Result: policy.Result{
					Library: rec.key,
					Status:  policy.StatusNoAPI,
					Current: rec.current,
					Reason:  ctx.Err().Error(),
				}}
				return
			}

			report.Results[i] = c.resolveRecord(ctx, rec)
		}(i, rec)
	}
	wg.Wait()

	c.checkSharedCatalog(ctx, doc, report)
	c.checkBOM(ctx, doc, report)

	if err := c.sm.to(StateReported); err != nil {
		return nil, err
	}
	return report, nil
}

func (c *Coordinator) resolveRecord(ctx context.Context, rec record) Result {
	res := Result{Key: rec.key}

	if rec.group == "" || rec.artifact == "" {
		reason := "no source configured"
		if rec.sourceURL != "" {
			reason = "no library module references this version key"
		}
		res.Result = policy.Result{
			Library: rec.key,
			Status:  policy.StatusSkip,
			Current: rec.current,
			Reason:  reason,
		}
		return res
	}

	in := policy.Input{
		Group:     rec.group,
		Artifact:  rec.artifact,
		Legacy:    rec.legacy,
		SourceURL: rec.sourceURL,
	}
	in.Current, _ = version.Parse(rec.current)

	if rec.expr != "" {
		con, err := constraint.Parse(rec.expr)
		if err != nil {
			res.Result = policy.Result{
				Library: rec.group + ":" + rec.artifact,
				Status:  policy.StatusViolate,
				Current: rec.current,
				Reason:  fmt.Sprintf("invalid constraint %q", rec.expr),
			}
			return res
		}
		in.Constraint = con
	}

	if in.SourceURL != "" {
		candidates, err := c.cache.FetchVersions(ctx, rec.group, rec.artifact)
		if err != nil {
			in.RegistryErr = err
		} else {
			in.Candidates = make([]string, len(candidates))
			for i, cand := range candidates {
				in.Candidates[i] = cand.Version
			}
		}
	}

	res.Result = c.policy.Resolve(in)
	return res
}

func (c *Coordinator) checkSharedCatalog(ctx context.Context, doc *catalog.Document, report *Report) {
	sc := c.cfg.SharedCatalog
	if !sc.Enabled || sc.Source == "" {
		return
	}

	if level := c.verifier.Verify(sc.Source); level == TrustUnverified {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("shared catalog source %s is unverified", sc.Source))
	}

	shared, err := catalog.FetchShared(ctx, c.fetch, sc.Source)
	if err != nil {
		report.CatalogError = err.Error()
		return
	}
	_, delta, err := catalog.Merge(doc, shared, sc.OverrideLocal)
	if err != nil {
		report.CatalogError = err.Error()
		return
	}
	report.CatalogDelta = &delta
}

func (c *Coordinator) checkBOM(ctx context.Context, doc *catalog.Document, report *Report) {
	sb := c.cfg.SpringBoot
	if !sb.Enabled || sb.Version == "" || sb.Mode == policy.LegacyPinned {
		return
	}

	props, err := c.bom.Properties(ctx, sb.Version)
	if err != nil {
		report.BOMError = err.Error()
		return
	}
	// The sync runs against a scratch copy; Check never mutates the
	// catalog on disk.
	changes, err := bom.Sync(doc.Clone(), props, sb.Libraries)
	if err != nil {
		report.BOMError = err.Error()
		return
	}
	report.BOMChanges = changes
}
