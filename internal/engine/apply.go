package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/upcat-dev/upcat/internal/bom"
	"github.com/upcat-dev/upcat/internal/catalog"
)

// Apply rewrites the catalog for the selected updates only. keys is the set
// of catalog version keys to apply; nil applies every UPDATE result.
// Unselected entries stay byte-for-byte untouched. The write is
// transactional: the new content is validated in a temporary file first, the
// previous catalog is kept as a timestamped backup, and any failure leaves
// both the catalog and its backup set unchanged. The backup path is returned
// when one was created.
func (c *Coordinator) Apply(report *Report, keys []string) (string, error) {
	if err := c.sm.to(StateApplying); err != nil {
		return "", err
	}

	c.mu.Lock()
	doc := c.doc
	c.mu.Unlock()
	if doc == nil {
		c.sm.to(StateCancelled)
		return "", fmt.Errorf("no catalog loaded; run a check first")
	}

	selected := make(map[string]bool, len(keys))
	for _, k := range keys {
		selected[k] = true
	}

	next := doc.Clone()
	applied := 0
	for _, res := range report.Updatable() {
		if len(keys) > 0 && !selected[res.Key] {
			continue
		}
		if err := next.SetVersion(res.Key, res.Recommended); err != nil {
			c.sm.to(StateCancelled)
			return "", err
		}
		applied++
	}
	if applied == 0 {
		c.sm.to(StateApplied)
		return "", nil
	}

	backup, err := c.writeCatalog(next.Bytes())
	if err != nil {
		c.sm.to(StateCancelled)
		return "", err
	}

	c.mu.Lock()
	c.doc = next
	c.mu.Unlock()
	if err := c.sm.to(StateApplied); err != nil {
		return backup, err
	}
	return backup, nil
}

// SyncCatalog merges the shared catalog source into the local catalog and
// persists the result. Returns the merge delta; an empty delta writes
// nothing.
func (c *Coordinator) SyncCatalog(ctx context.Context) (catalog.Delta, error) {
	sc := c.cfg.SharedCatalog
	if !sc.Enabled || sc.Source == "" {
		return catalog.Delta{}, fmt.Errorf("shared catalog is not configured")
	}

	doc, err := catalog.Load(c.cfg.CatalogPath)
	if err != nil {
		return catalog.Delta{}, err
	}
	shared, err := catalog.FetchShared(ctx, c.fetch, sc.Source)
	if err != nil {
		return catalog.Delta{}, err
	}
	merged, delta, err := catalog.Merge(doc, shared, sc.OverrideLocal)
	if err != nil {
		return catalog.Delta{}, err
	}
	if delta.Empty() {
		return delta, nil
	}

	if _, err := c.writeCatalog(merged.Bytes()); err != nil {
		return catalog.Delta{}, err
	}
	return delta, nil
}

// SyncBOM writes the Spring Boot BOM's managed versions into the catalog.
func (c *Coordinator) SyncBOM(ctx context.Context) ([]bom.Change, error) {
	sb := c.cfg.SpringBoot
	if !sb.Enabled || sb.Version == "" {
		return nil, fmt.Errorf("spring boot bom is not configured")
	}

	doc, err := catalog.Load(c.cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	props, err := c.bom.Properties(ctx, sb.Version)
	if err != nil {
		return nil, err
	}
	changes, err := bom.Sync(doc, props, sb.Libraries)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}

	if _, err := c.writeCatalog(doc.Bytes()); err != nil {
		return nil, err
	}
	return changes, nil
}

// writeCatalog installs data as the catalog file: validate, stage to a temp
// file in the same directory, back up the current file, then rename into
// place.
func (c *Coordinator) writeCatalog(data []byte) (string, error) {
	path := c.cfg.CatalogPath
	if err := catalog.Validate(data); err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, base+".tmp-")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	var backup string
	if orig, err := os.ReadFile(path); err == nil {
		backup = filepath.Join(dir, fmt.Sprintf("%s.backup.%s", base, time.Now().Format("20060102_150405")))
		if err := os.WriteFile(backup, orig, mode); err != nil {
			os.Remove(tmpName)
			return "", fmt.Errorf("writing backup: %w", err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	return backup, nil
}
