package exercise

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Fallback values applied to unset configuration sections.
const (
	defaultMaxDelta      = 80.0
	defaultAlpha         = 0.5
	defaultLowConfidence = 0.3
	defaultHoldFrames    = 5
	defaultDecay         = 0.8

	defaultWindowSamples = 120
	defaultWindowAgeMS   = 4000

	defaultROMWeight    = 0.5
	defaultDepthWeight  = 0.5
	defaultFaultsWeight = 1.0
)

// Load reads a YAML exercise definition, applies defaults, resolves named
// conditions against reg, and validates. The returned Config is ready for
// instance creation and immutable from here on.
func Load(path string, reg *Registry) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}

	return Finalize(&cfg, reg)
}

// Finalize prepares an in-memory configuration the same way Load prepares a
// serialized one: defaults, condition resolution, validation.
func Finalize(cfg *Config, reg *Registry) (*Config, error) {
	cfg.ApplyDefaults()
	if err := cfg.Resolve(reg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset sections with safe fallbacks.
func (c *Config) ApplyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Conditioning == (Conditioning{}) {
		c.Conditioning = Conditioning{
			MaxDelta:      defaultMaxDelta,
			Alpha:         defaultAlpha,
			LowConfidence: defaultLowConfidence,
			HoldFrames:    defaultHoldFrames,
			Decay:         defaultDecay,
		}
	}
	if c.Buffers.WindowSamples == 0 {
		c.Buffers.WindowSamples = defaultWindowSamples
	}
	if c.Buffers.WindowAgeMS == 0 {
		c.Buffers.WindowAgeMS = defaultWindowAgeMS
	}
	if c.Weights == (Weights{}) {
		c.Weights = Weights{
			ROM:    defaultROMWeight,
			Depth:  defaultDepthWeight,
			Faults: defaultFaultsWeight,
		}
	}
}
