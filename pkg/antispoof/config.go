package antispoof

import (
	"errors"
	"fmt"
)

// Config holds the tunable gate thresholds.
type Config struct {
	// MinWidth and MinHeight are the minimum frame size in pixels.
	MinWidth  int `yaml:"min_width" validate:"gte=1"`
	MinHeight int `yaml:"min_height" validate:"gte=1"`

	// MinSharpness is the minimum Laplacian variance.
	MinSharpness float64 `yaml:"min_sharpness" validate:"gte=0"`

	// MaxEdgeDensity is the maximum fraction of Canny edge pixels.
	MaxEdgeDensity float64 `yaml:"max_edge_density" validate:"gt=0,lte=1"`
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		MinWidth:       200,
		MinHeight:      200,
		MinSharpness:   100,
		MaxEdgeDensity: 0.3,
	}
}

// Validate checks that thresholds are usable.
func (c Config) Validate() error {
	if c.MinWidth <= 0 || c.MinHeight <= 0 {
		return fmt.Errorf("antispoof: minimum resolution must be positive, got %dx%d", c.MinWidth, c.MinHeight)
	}
	if c.MinSharpness < 0 {
		return errors.New("antispoof: minimum sharpness must not be negative")
	}
	if c.MaxEdgeDensity <= 0 || c.MaxEdgeDensity > 1 {
		return fmt.Errorf("antispoof: maximum edge density must be in (0,1], got %v", c.MaxEdgeDensity)
	}
	return nil
}
