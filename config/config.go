// Package config loads the device configuration from YAML with defaults
// matching the monitored pack hardware.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"batmon-go/x/mathx"
)

// Config is the constructor-time configuration for the whole pipeline.
// Channel count, persistence and task topology are configuration here, not
// code variants.
type Config struct {
	Channels  ChannelsConfig  `yaml:"channels"`
	Divider   DividerConfig   `yaml:"divider"`
	Sampling  SamplingConfig  `yaml:"sampling"`
	Buffer    BufferConfig    `yaml:"buffer"`
	Persist   PersistConfig   `yaml:"persist"`
	Transport TransportConfig `yaml:"transport"`
	CSV       CSVConfig       `yaml:"csv"`
}

// ChannelsConfig describes the mux address space. Banks are fixed at two by
// the board; per-bank channel count and labels are configurable.
type ChannelsConfig struct {
	PerBank int      `yaml:"per_bank"`
	Labels  []string `yaml:"labels,omitempty"` // defaults to B1..B2N
}

// DividerConfig is the electrical model for the scaled-value conversion.
type DividerConfig struct {
	R1        uint32 `yaml:"r1"`
	R2        uint32 `yaml:"r2"`
	RefCV     uint32 `yaml:"ref_cv"`
	FullScale uint32 `yaml:"full_scale"`
}

type SamplingConfig struct {
	PeriodMs  int  `yaml:"period_ms"`
	SettleUs  int  `yaml:"settle_us"`
	Decoupled bool `yaml:"decoupled"` // dedicated sampling task
}

type BufferConfig struct {
	Capacity int `yaml:"capacity"`
}

type PersistConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type TransportConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	PacingMs  int `yaml:"pacing_ms"`
}

type CSVConfig struct {
	BufSize int `yaml:"buf_size"`
}

// Default mirrors the deployed board: 2×4 channels, 240k/10k divider on a
// 10-bit 3.3 V converter, 128-record buffer, 1 s cycle, 50 µs settle.
func Default() *Config {
	return &Config{
		Channels: ChannelsConfig{PerBank: 4},
		Divider:  DividerConfig{R1: 240000, R2: 10000, RefCV: 330, FullScale: 1024},
		Sampling: SamplingConfig{PeriodMs: 1000, SettleUs: 50},
		Buffer:   BufferConfig{Capacity: 128},
		Persist:  PersistConfig{Enabled: false, Path: "batmon-log"},
		Transport: TransportConfig{
			ChunkSize: 180,
			PacingMs:  20,
		},
		CSV: CSVConfig{BufSize: 4096},
	}
}

// Load reads path over the defaults. A missing file is an error; an empty
// file yields the defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config parse %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize clamps fields to workable bounds so a bad config degrades
// instead of wedging the pipeline.
func (c *Config) Normalize() {
	c.Channels.PerBank = mathx.Clamp(c.Channels.PerBank, 1, 16)
	c.Buffer.Capacity = mathx.Clamp(c.Buffer.Capacity, 1, 1024)
	c.Transport.ChunkSize = mathx.Clamp(c.Transport.ChunkSize, 20, 512)
	c.Transport.PacingMs = mathx.Clamp(c.Transport.PacingMs, 0, 1000)
	c.CSV.BufSize = mathx.Clamp(c.CSV.BufSize, 64, 1<<20)
	c.Sampling.PeriodMs = mathx.Clamp(c.Sampling.PeriodMs, 20, 3600_000)
	c.Sampling.SettleUs = mathx.Clamp(c.Sampling.SettleUs, 0, 10_000)

	c.Divider.RefCV = mathx.Clamp(c.Divider.RefCV, 1, 5000)
	c.Divider.FullScale = mathx.Clamp(c.Divider.FullScale, 2, 1<<16)
	c.Divider.R2 = mathx.Clamp(c.Divider.R2, 1, 10_000_000)
	c.Divider.R1 = mathx.Clamp(c.Divider.R1, 0, 10_000_000)

	// Cap the divider ratio so a full-scale reading still fits the
	// centivolt field: ref_cv * (r1+r2)/r2 must stay under 2^16.
	limit := 65535 * uint64(c.Divider.R2) / uint64(c.Divider.RefCV)
	if uint64(c.Divider.R1)+uint64(c.Divider.R2) > limit {
		c.Divider.R1 = uint32(limit) - c.Divider.R2
	}
}

func (c *Config) Period() time.Duration { return time.Duration(c.Sampling.PeriodMs) * time.Millisecond }
func (c *Config) Settle() time.Duration { return time.Duration(c.Sampling.SettleUs) * time.Microsecond }
func (c *Config) Pacing() time.Duration {
	return time.Duration(c.Transport.PacingMs) * time.Millisecond
}
