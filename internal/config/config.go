package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const (
	ExploreQuadrant = "quadrant"
	ExploreFrontier = "frontier"

	FrontierUnknown   = "unknown"
	FrontierReachable = "reachable"

	StopNever        = "never"
	StopAllQuadrants = "all_quadrants"
	StopWorkDone     = "work_done"
)

//go:embed schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Config tunes the agent. Every field has a default; see Defaults.
type Config struct {
	Capacity          int     `yaml:"capacity"`
	CollectThreshold  float64 `yaml:"collect_threshold"`
	GoodEnoughDivisor int     `yaml:"good_enough_divisor"`

	ScanDiameter       int `yaml:"scan_diameter"`
	WanderScanDiameter int `yaml:"wander_scan_diameter"`
	MaxStepFailures    int `yaml:"max_step_failures"`

	ExploreMode     string  `yaml:"explore_mode"`
	FrontierVariant string  `yaml:"frontier_variant"`
	FrontierMargin  int     `yaml:"frontier_margin"`
	FrontierChance  float64 `yaml:"frontier_chance"`

	StopPolicy         string  `yaml:"stop_policy"`
	WorkDoneUnexplored float64 `yaml:"work_done_unexplored"`

	RecentEvents int   `yaml:"recent_events"`
	Seed         int64 `yaml:"seed"`
}

func Defaults() Config {
	return Config{
		Capacity:           20,
		CollectThreshold:   0.6,
		GoodEnoughDivisor:  6,
		MaxStepFailures:    3,
		ExploreMode:        ExploreQuadrant,
		FrontierVariant:    FrontierReachable,
		FrontierMargin:     1,
		FrontierChance:     0.05,
		StopPolicy:         StopAllQuadrants,
		WorkDoneUnexplored: 0.2,
		RecentEvents:       16,
		Seed:               1,
	}
}

// Load reads a YAML config. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := Defaults()
		cfg.Normalize()
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	cfg, err := Parse(raw)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates raw YAML against the embedded schema and decodes it over
// the defaults.
func Parse(raw []byte) (Config, error) {
	cfg := Defaults()

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return cfg, err
	}
	if doc != nil {
		if err := validateDoc(doc); err != nil {
			return cfg, err
		}
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Schema is the JSON schema config files are checked against.
func Schema() string { return schemaJSON }

func validateDoc(doc any) error {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("config.schema.json", schemaJSON)
	})
	if schemaErr != nil {
		return fmt.Errorf("compile schema: %w", schemaErr)
	}
	// Round-trip through JSON so YAML scalars become the types the validator expects.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.ExploreMode = strings.ToLower(strings.TrimSpace(c.ExploreMode))
	c.FrontierVariant = strings.ToLower(strings.TrimSpace(c.FrontierVariant))
	c.StopPolicy = strings.ToLower(strings.TrimSpace(c.StopPolicy))
	if c.ExploreMode == "" {
		c.ExploreMode = ExploreQuadrant
	}
	if c.FrontierVariant == "" {
		c.FrontierVariant = FrontierReachable
	}
	if c.StopPolicy == "" {
		c.StopPolicy = StopAllQuadrants
	}
}

func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be > 0")
	}
	if c.CollectThreshold <= 0 || c.CollectThreshold > 1 {
		return fmt.Errorf("collect_threshold must be in (0, 1]")
	}
	if c.GoodEnoughDivisor < 1 {
		return fmt.Errorf("good_enough_divisor must be >= 1")
	}
	if c.ScanDiameter < 0 || c.WanderScanDiameter < 0 {
		return fmt.Errorf("scan diameters must be >= 0")
	}
	if c.MaxStepFailures < 1 {
		return fmt.Errorf("max_step_failures must be >= 1")
	}
	switch c.ExploreMode {
	case ExploreQuadrant, ExploreFrontier:
	default:
		return fmt.Errorf("unknown explore_mode %q", c.ExploreMode)
	}
	switch c.FrontierVariant {
	case FrontierUnknown, FrontierReachable:
	default:
		return fmt.Errorf("unknown frontier_variant %q", c.FrontierVariant)
	}
	if c.FrontierMargin < 0 {
		return fmt.Errorf("frontier_margin must be >= 0")
	}
	if c.FrontierChance < 0 || c.FrontierChance > 1 {
		return fmt.Errorf("frontier_chance must be in [0, 1]")
	}
	switch c.StopPolicy {
	case StopNever, StopAllQuadrants, StopWorkDone:
	default:
		return fmt.Errorf("unknown stop_policy %q", c.StopPolicy)
	}
	if c.WorkDoneUnexplored < 0 || c.WorkDoneUnexplored > 1 {
		return fmt.Errorf("work_done_unexplored must be in [0, 1]")
	}
	if c.RecentEvents < 0 {
		return fmt.Errorf("recent_events must be >= 0")
	}
	return nil
}

// CollectThresholdItems is the free space needed to start a collect phase.
func (c Config) CollectThresholdItems() int {
	return int(float64(c.Capacity) * c.CollectThreshold)
}

// GoodEnoughItems is the free space below which a collect phase counts as a
// full success.
func (c Config) GoodEnoughItems() int {
	return c.Capacity / c.GoodEnoughDivisor
}
