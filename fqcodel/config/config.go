// Copyright 2026 The Netqdisc Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config describes the TOML configuration understood by the tools
// that embed a scheduler.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/netqdisc/netqdisc/fqcodel"
	"github.com/netqdisc/netqdisc/pkg/private/serrors"
	"github.com/netqdisc/netqdisc/pkg/private/util"
)

// Config is the top-level configuration.
type Config struct {
	Logging LogConfig     `toml:"log,omitempty"`
	Metrics MetricsConfig `toml:"metrics,omitempty"`
	Sched   SchedConfig   `toml:"sched,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, error.
	Level string `toml:"level,omitempty"`
	// Format is human or json.
	Format string `toml:"format,omitempty"`
}

// MetricsConfig configures the HTTP endpoint serving prometheus metrics
// and the statistics page. Empty Addr disables the server.
type MetricsConfig struct {
	Addr string `toml:"addr,omitempty"`
}

// SchedConfig carries the scheduler knobs. Zero values select the
// scheduler defaults.
type SchedConfig struct {
	Flows       uint32       `toml:"flows,omitempty"`
	Limit       uint32       `toml:"limit,omitempty"`
	MemoryLimit uint32       `toml:"memory_limit,omitempty"`
	Quantum     uint32       `toml:"quantum,omitempty"`
	MTU         uint32       `toml:"mtu,omitempty"`
	DropBatch   uint32       `toml:"drop_batch,omitempty"`
	Target      util.DurWrap `toml:"target,omitempty"`
	Interval    util.DurWrap `toml:"interval,omitempty"`
	CEThreshold util.DurWrap `toml:"ce_threshold,omitempty"`
	DisableECN  bool         `toml:"disable_ecn,omitempty"`
}

// SchedulerConfig converts the TOML view into the scheduler configuration.
func (c SchedConfig) SchedulerConfig() fqcodel.Config {
	return fqcodel.Config{
		Flows:       c.Flows,
		Limit:       c.Limit,
		MemoryLimit: c.MemoryLimit,
		Quantum:     c.Quantum,
		MTU:         c.MTU,
		DropBatch:   c.DropBatch,
		Target:      c.Target.Duration,
		Interval:    c.Interval.Duration,
		CEThreshold: c.CEThreshold.Duration,
		DisableECN:  c.DisableECN,
	}
}

// Validate checks the parts that the scheduler cannot check itself.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return serrors.New("unsupported log format", "format", c.Logging.Format)
	}
	if c.Sched.Flows > fqcodel.MaxFlows {
		return serrors.New("invalid flow count",
			"flows", c.Sched.Flows, "max", fqcodel.MaxFlows)
	}
	return nil
}

// Load reads and decodes the TOML file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.Wrap("reading config file", err, "file", path)
	}
	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, serrors.Wrap("parsing config file", err, "file", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
