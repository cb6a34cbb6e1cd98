package matrix

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/azybler/pathmatrix/pkg/store"
)

// DefaultHopBound is the maximum number of vertices per path used when no
// hop bound is configured.
const DefaultHopBound = 12

// Config holds the settings of one matrix computation.
type Config struct {
	// HopBound is the maximum number of vertices, endpoints included, of a
	// stored path.
	HopBound int `yaml:"hop_bound"`
	// Threads is the number of origins searched concurrently.
	Threads int `yaml:"threads"`
	// Layout selects the scratch row format.
	Layout store.Layout `yaml:"layout"`
	// TempDir holds scratch and merged files. Defaults to <output>.work.
	TempDir string `yaml:"temp_dir"`
	// AllowUnreachable stores "no path" for pairs farther apart than the
	// hop bound instead of failing the computation.
	AllowUnreachable bool `yaml:"allow_unreachable"`
	// Timeout caps the whole search. Zero derives it from PerVertexTimeout.
	Timeout time.Duration `yaml:"timeout"`
	// PerVertexTimeout is multiplied by the vertex count when Timeout is
	// zero. Zero for both disables the deadline.
	PerVertexTimeout time.Duration `yaml:"per_vertex_timeout"`
	// LockShards is the number of locks guarding the merged store.
	LockShards int `yaml:"lock_shards"`
}

// DefaultConfig returns the settings used by ComputeMatrix.
func DefaultConfig() Config {
	return Config{
		HopBound:         DefaultHopBound,
		Threads:          1,
		Layout:           store.LayoutIndexed,
		PerVertexTimeout: time.Minute,
		LockShards:       store.DefaultLockShards,
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Unknown keys are an
// error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration against a graph of n vertices.
func (c Config) Validate(n uint32) error {
	switch {
	case c.HopBound < 2:
		return fmt.Errorf("%w: hop bound %d, need at least 2", ErrConfiguration, c.HopBound)
	case c.Threads < 1:
		return fmt.Errorf("%w: %d threads", ErrConfiguration, c.Threads)
	case !c.Layout.Valid():
		return fmt.Errorf("%w: unknown layout %q", ErrConfiguration, c.Layout)
	case c.LockShards < 0:
		return fmt.Errorf("%w: %d lock shards", ErrConfiguration, c.LockShards)
	case c.Timeout < 0 || c.PerVertexTimeout < 0:
		return fmt.Errorf("%w: negative timeout", ErrConfiguration)
	case n < 2:
		return fmt.Errorf("%w: graph has %d vertices, need at least 2", ErrConfiguration, n)
	case store.PairCount(n) > math.MaxInt32:
		return fmt.Errorf("%w: %d vertices give %d pairs, limit %d", ErrConfiguration, n, store.PairCount(n), math.MaxInt32)
	}
	return nil
}

// deadline returns the time budget for n origins, or zero for none.
func (c Config) deadline(n uint32) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	if c.PerVertexTimeout <= 0 {
		return 0
	}
	if int64(c.PerVertexTimeout) > math.MaxInt64/int64(n) {
		return 0
	}
	return c.PerVertexTimeout * time.Duration(n)
}
