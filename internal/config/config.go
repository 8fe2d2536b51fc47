// Package config loads and validates the project configuration (.upcat.toml,
// UPCAT_* env vars, CLI flags).
package config

import (
	"fmt"
	"time"

	"github.com/git-pkgs/purl"
	"github.com/spf13/viper"

	"github.com/upcat-dev/upcat/internal/policy"
	"github.com/upcat-dev/upcat/internal/registry"
)

// Library is one tracked Maven coordinate. It is declared either as
// group/artifact or as a single maven PURL; Key names the catalog version
// entry it backs and defaults to the artifact id.
type Library struct {
	Key          string `mapstructure:"key"`
	Group        string `mapstructure:"group"`
	Artifact     string `mapstructure:"artifact"`
	Version      string `mapstructure:"version"`
	PURL         string `mapstructure:"purl"`
	UpdatePolicy string `mapstructure:"update_policy"`

	// Policy is UpdatePolicy parsed into the closed enum.
	Policy policy.Legacy `mapstructure:"-"`
}

// Registry selects and tunes the version source.
type Registry struct {
	Kind      string        `mapstructure:"kind"`
	URL       string        `mapstructure:"url"`
	MirrorURL string        `mapstructure:"mirror_url"`
	IndexPath string        `mapstructure:"index_path"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SharedCatalog configures merging from a team-wide catalog source.
type SharedCatalog struct {
	Enabled       bool   `mapstructure:"enabled"`
	Source        string `mapstructure:"source"`
	OverrideLocal bool   `mapstructure:"override_local"`
	Trust         string `mapstructure:"trust"`
}

// SpringBoot configures BOM sync.
type SpringBoot struct {
	Enabled           bool     `mapstructure:"enabled"`
	Version           string   `mapstructure:"version"`
	CompatibilityMode string   `mapstructure:"compatibility_mode"`
	Libraries         []string `mapstructure:"libraries"`

	Mode policy.Legacy `mapstructure:"-"`
}

// Update holds check/apply behavior flags.
type Update struct {
	AutoCheck        bool `mapstructure:"auto_check"`
	NotifyBreaking   bool `mapstructure:"notify_breaking"`
	BreakOnZeroMinor bool `mapstructure:"break_on_zero_minor"`
}

// Config is the full runtime configuration.
type Config struct {
	Project     string `mapstructure:"project"`
	CatalogPath string `mapstructure:"catalog_path"`
	MaxWorkers  int    `mapstructure:"max_workers"`

	Registry      Registry      `mapstructure:"registry"`
	Libraries     []Library     `mapstructure:"libraries"`
	SharedCatalog SharedCatalog `mapstructure:"shared_catalog"`
	SpringBoot    SpringBoot    `mapstructure:"spring_boot"`
	Update        Update        `mapstructure:"update"`
}

// Load unmarshals configuration out of v, applying defaults and rejecting
// invalid enum values up front so the engine never sees an unparsed policy.
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog_path", "gradle/libs.versions.toml")
	v.SetDefault("max_workers", 4)
	v.SetDefault("registry.kind", "central")
	v.SetDefault("registry.cache_ttl", time.Hour)
	v.SetDefault("registry.timeout", 30*time.Second)
	v.SetDefault("shared_catalog.trust", "unverified")
	v.SetDefault("spring_boot.compatibility_mode", "last-stable")
	v.SetDefault("update.auto_check", true)
	v.SetDefault("update.notify_breaking", true)
	v.SetDefault("update.break_on_zero_minor", true)
}

func (c *Config) finalize() error {
	if !validKind(c.Registry.Kind) {
		return fmt.Errorf("unknown registry kind %q (known: %v)", c.Registry.Kind, registry.Kinds())
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1, got %d", c.MaxWorkers)
	}

	switch c.SharedCatalog.Trust {
	case "official", "verified", "unverified":
	default:
		return fmt.Errorf("unknown shared_catalog.trust %q", c.SharedCatalog.Trust)
	}

	mode, err := policy.ParseLegacy(c.SpringBoot.CompatibilityMode)
	if err != nil {
		return fmt.Errorf("spring_boot.compatibility_mode: %w", err)
	}
	c.SpringBoot.Mode = mode

	for i := range c.Libraries {
		if err := c.Libraries[i].finalize(); err != nil {
			return fmt.Errorf("libraries[%d]: %w", i, err)
		}
	}
	return nil
}

func (l *Library) finalize() error {
	if l.PURL != "" {
		p, err := purl.Parse(l.PURL)
		if err != nil {
			return fmt.Errorf("parsing purl %q: %w", l.PURL, err)
		}
		if p.Type != "maven" {
			return fmt.Errorf("purl %q: only maven coordinates are supported", l.PURL)
		}
		l.Group, l.Artifact = p.Namespace, p.Name
		if l.Version == "" {
			l.Version = p.Version
		}
	}
	if l.Group == "" || l.Artifact == "" {
		return fmt.Errorf("library needs group and artifact (or a maven purl)")
	}
	if l.Key == "" {
		l.Key = l.Artifact
	}

	pol, err := policy.ParseLegacy(l.UpdatePolicy)
	if err != nil {
		return fmt.Errorf("%s:%s: %w", l.Group, l.Artifact, err)
	}
	l.Policy = pol
	return nil
}

func validKind(kind string) bool {
	for _, k := range registry.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
