package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid chunking config")

// Config controls chunking behavior. Sizes are in bytes of section content.
// Start from DefaultConfig and override fields: the zero value has merging
// and splitting turned off, and WithDefaults fills in sizes only.
type Config struct {
	TargetSize     int  `yaml:"target_size" json:"target_size"`         // Flush once the buffer reaches this size.
	MinSize        int  `yaml:"min_size" json:"min_size"`               // Breadcrumb changes flush only above this size.
	MaxSize        int  `yaml:"max_size" json:"max_size"`               // Standalone text above this is split.
	MergingEnabled bool `yaml:"merging_enabled" json:"merging_enabled"` // Merge chunks across page continuations.
	SplitOversized bool `yaml:"split_oversized" json:"-"`               // Split oversized standalone text sections.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TargetSize:     1500,
		MinSize:        800,
		MaxSize:        2500,
		MergingEnabled: true,
		SplitOversized: true,
	}
}

// WithDefaults fills zero sizes from DefaultConfig. Boolean options are
// left as given, so Config{}.WithDefaults() does not merge across pages.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.TargetSize <= 0 {
		c.TargetSize = d.TargetSize
	}
	if c.MinSize <= 0 {
		c.MinSize = d.MinSize
	}
	if c.MaxSize <= 0 {
		c.MaxSize = d.MaxSize
	}
	return c
}

// Validate checks that min_size <= target_size <= max_size.
func (c Config) Validate() error {
	if c.TargetSize <= 0 || c.MinSize <= 0 || c.MaxSize <= 0 {
		return fmt.Errorf("%w: sizes must be positive (target=%d min=%d max=%d)",
			ErrInvalidConfig, c.TargetSize, c.MinSize, c.MaxSize)
	}
	if c.MinSize > c.TargetSize {
		return fmt.Errorf("%w: min_size %d exceeds target_size %d", ErrInvalidConfig, c.MinSize, c.TargetSize)
	}
	if c.TargetSize > c.MaxSize {
		return fmt.Errorf("%w: target_size %d exceeds max_size %d", ErrInvalidConfig, c.TargetSize, c.MaxSize)
	}
	return nil
}
