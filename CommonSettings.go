package softbody

import (
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

func Assert(a bool) {
	if !a {
		panic("softbody: assertion failed")
	}
}

const maxFloat = math.MaxFloat64
const epsilon = math.SmallestNonzeroFloat64

/// Global tuning defaults. Distances are in world units.

/// Maximum number of particles stored in a quadtree leaf before it splits.
const DefaultQuadtreeCapacity = 8

/// Recursion ceiling for the quadtree. A leaf at this depth degrades to a
/// flat bucket instead of splitting further, which bounds the recursion for
/// pathological coincident point clusters.
const DefaultMaxDepth = 16

/// Tolerance for orientation tests. Cross products with magnitude at or
/// below this (after scaling) are treated as collinear.
const DefaultCollinearEpsilon = 1e-9

/// Spring coefficient applied to generated links.
const DefaultStiffness = 40.0

/// Velocity damping coefficient applied to generated links.
const DefaultDamping = 0.5

/// A link breaks when stretched beyond BreakFactor times its rest length.
/// Zero disables breaking.
const DefaultBreakFactor = 0.0

/// Padding applied around the particle cloud when (re)building the spatial
/// index, so that small displacements do not immediately escape the root box.
const aabbExtension = 0.1

/// Configuration for the topology engine. The zero value is not usable;
/// start from MakeDefaultConfig.
type Config struct {
	/// Max points per quadtree leaf before it splits.
	QuadtreeCapacity int `yaml:"quadtree_capacity"`

	/// Quadtree recursion ceiling.
	MaxDepth int `yaml:"max_depth"`

	/// When true, a leaf overflowing at MaxDepth is an insertion error
	/// instead of degrading to a flat bucket.
	StrictDepth bool `yaml:"strict_depth"`

	/// Tolerance for orientation tests.
	CollinearEpsilon float64 `yaml:"collinear_epsilon"`

	/// Spring coefficient for generated links.
	DefaultStiffness float64 `yaml:"default_stiffness"`

	/// Velocity damping coefficient for generated links.
	DefaultDamping float64 `yaml:"default_damping"`

	/// Break threshold as a multiple of rest length. Zero disables breaking.
	BreakFactor float64 `yaml:"break_factor"`
}

func MakeDefaultConfig() Config {
	return Config{
		QuadtreeCapacity: DefaultQuadtreeCapacity,
		MaxDepth:         DefaultMaxDepth,
		StrictDepth:      false,
		CollinearEpsilon: DefaultCollinearEpsilon,
		DefaultStiffness: DefaultStiffness,
		DefaultDamping:   DefaultDamping,
		BreakFactor:      DefaultBreakFactor,
	}
}

/// Clamp nonsensical values back to defaults so a partially filled config
/// file cannot produce a broken engine.
func (cfg Config) Sanitized() Config {
	if cfg.QuadtreeCapacity < 1 {
		cfg.QuadtreeCapacity = DefaultQuadtreeCapacity
	}
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if !(cfg.CollinearEpsilon > 0.0) || !IsValid(cfg.CollinearEpsilon) {
		cfg.CollinearEpsilon = DefaultCollinearEpsilon
	}
	if cfg.DefaultStiffness < 0.0 || !IsValid(cfg.DefaultStiffness) {
		cfg.DefaultStiffness = DefaultStiffness
	}
	if cfg.DefaultDamping < 0.0 || !IsValid(cfg.DefaultDamping) {
		cfg.DefaultDamping = DefaultDamping
	}
	if cfg.BreakFactor < 0.0 || !IsValid(cfg.BreakFactor) {
		cfg.BreakFactor = DefaultBreakFactor
	}
	return cfg
}

/// LoadConfig reads engine tuning from a YAML file. If the file is missing
/// or invalid, returns MakeDefaultConfig() and does not create a file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MakeDefaultConfig(), nil
	}

	cfg := MakeDefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return MakeDefaultConfig(), nil
	}

	return cfg.Sanitized(), nil
}

/// SaveConfig writes engine tuning to a YAML file.
func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
