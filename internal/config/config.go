// Package config loads the engine's tuning knobs from an optional
// YAML file. Every knob has a default; a missing file is not an
// error, so bare deployments run on defaults alone.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "1200ms" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(b []byte) error {
	s := strings.Trim(string(b), `"' `)
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type HealthConfig struct {
	TTL          Duration `yaml:"ttl"`
	ProbeTimeout Duration `yaml:"probe_timeout"`
}

type ResolveConfig struct {
	GoldTimeout     Duration `yaml:"gold_timeout"`
	FallbackTimeout Duration `yaml:"fallback_timeout"`
}

type ProvisionConfig struct {
	GoldCoverageThreshold int      `yaml:"gold_coverage_threshold"`
	PolygonTimeout        Duration `yaml:"polygon_timeout"`
	MaxAddresses          int      `yaml:"max_addresses"`
	MaxBuildings          int      `yaml:"max_buildings"`
}

type LinkerConfig struct {
	CentroidRadiusM float64 `yaml:"centroid_radius_m"`
	StreetRadiusM   float64 `yaml:"street_radius_m"`
	FallbackRadiusM float64 `yaml:"fallback_radius_m"`
	StreetThreshold float64 `yaml:"street_threshold"`
}

type Config struct {
	Health    HealthConfig    `yaml:"health"`
	Resolve   ResolveConfig   `yaml:"resolve"`
	Provision ProvisionConfig `yaml:"provision"`
	Linker    LinkerConfig    `yaml:"linker"`
}

// Defaults returns the built-in configuration. Zero-valued fields are
// deliberate: the consuming constructors substitute their own
// defaults, so this only pins values that differ per deployment.
func Defaults() Config {
	return Config{
		Provision: ProvisionConfig{
			MaxAddresses: 25000,
			MaxBuildings: 25000,
		},
	}
}

// Load reads path and overlays it on the defaults. A missing file
// returns the defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads from CONFIG_PATH, defaulting to config.yaml in
// the working directory.
func LoadFromEnv() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return Load(path)
}
