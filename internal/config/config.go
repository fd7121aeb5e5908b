// Package config loads and validates the kernel configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"sigs.k8s.io/yaml"
)

// Duration is a time.Duration that unmarshals from YAML strings like "250ms"
// as well as bare nanosecond numbers.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*d = Duration(time.Duration(t))
		return nil
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", t, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("duration: unsupported value %v", v)
	}
}

// Config is the full kernel configuration. Zero fields are filled with the
// defaults before validation.
type Config struct {
	// Workers is the execution engine pool size.
	Workers int `json:"workers"`
	// RingCapacity is the receive ring slot count.
	RingCapacity int `json:"ringCapacity"`
	// LogCapacity is the kernel log buffer entry count.
	LogCapacity int `json:"logCapacity"`
	// SlabObjectSize is the slab allocator's object size in bytes.
	SlabObjectSize int `json:"slabObjectSize"`
	// SlabBlockSize is the slab allocator's page size in bytes.
	SlabBlockSize int `json:"slabBlockSize"`
	// MetricsAddr enables the Prometheus listener when non-empty, for
	// example ":9090".
	MetricsAddr string `json:"metricsAddr"`
	// SampleInterval is the host telemetry sampling period.
	SampleInterval Duration `json:"sampleInterval"`
}

// Default returns the configuration the kernel boots with when no file is
// given.
func Default() Config {
	return Config{
		Workers:        runtime.NumCPU(),
		RingCapacity:   2048,
		LogCapacity:    10000,
		SlabObjectSize: 256,
		SlabBlockSize:  4096,
		SampleInterval: Duration(time.Second),
	}
}

// Load reads a YAML config file and merges it over the defaults.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.RingCapacity == 0 {
		c.RingCapacity = d.RingCapacity
	}
	if c.LogCapacity == 0 {
		c.LogCapacity = d.LogCapacity
	}
	if c.SlabObjectSize == 0 {
		c.SlabObjectSize = d.SlabObjectSize
	}
	if c.SlabBlockSize == 0 {
		c.SlabBlockSize = d.SlabBlockSize
	}
	if c.SampleInterval == 0 {
		c.SampleInterval = d.SampleInterval
	}
}

// Validate rejects configurations the kernel cannot boot with.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	if c.RingCapacity < 2 {
		return fmt.Errorf("config: ringCapacity must be at least 2, got %d", c.RingCapacity)
	}
	if c.LogCapacity < 1 {
		return fmt.Errorf("config: logCapacity must be at least 1, got %d", c.LogCapacity)
	}
	if c.SlabObjectSize < 1 {
		return fmt.Errorf("config: slabObjectSize must be at least 1, got %d", c.SlabObjectSize)
	}
	if c.SlabBlockSize < c.SlabObjectSize {
		return fmt.Errorf("config: slabBlockSize %d smaller than slabObjectSize %d",
			c.SlabBlockSize, c.SlabObjectSize)
	}
	if c.SampleInterval.Std() < 10*time.Millisecond {
		return fmt.Errorf("config: sampleInterval %s too short", c.SampleInterval)
	}
	return nil
}
