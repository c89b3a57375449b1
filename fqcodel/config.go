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

package fqcodel

import (
	"time"

	"github.com/netqdisc/netqdisc/pkg/private/serrors"
)

// Defaults and bounds. The defaults mirror the classic qdisc tuning: a
// 5 ms target with a 100 ms interval, 1024 flows, a 10240 packet limit and
// 32 MiB of buffer memory.
const (
	DefaultFlows       = 1024
	DefaultLimit       = 10 * 1024
	DefaultMemoryLimit = 32 << 20
	DefaultDropBatch   = 64
	DefaultMTU         = 1514
	DefaultTarget      = 5 * time.Millisecond
	DefaultInterval    = 100 * time.Millisecond

	MaxFlows       = 65536
	MinQuantum     = 256
	MaxMemoryLimit = 1 << 31
)

// Clock supplies the timestamps used for sojourn measurement. It must be
// monotonic; the default is the system clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config carries the initial parameters of a scheduler. The zero value of
// every field selects its default; in particular ECN marking is on unless
// DisableECN is set, and CEThreshold zero leaves the standalone CE
// threshold disabled.
type Config struct {
	// Flows is the flow table size F. Fixed for the scheduler lifetime.
	Flows uint32
	// Limit is the total packet capacity.
	Limit uint32
	// MemoryLimit caps the summed packet footprints, at most 2 GiB.
	MemoryLimit uint32
	// Quantum is the deficit refill per round, at least MinQuantum.
	// Defaults to MTU.
	Quantum uint32
	// MTU is the one-packet backlog floor below which CoDel never drops.
	MTU uint32
	// DropBatch is the number of packets shed per overflow event.
	DropBatch uint32
	// Target and Interval are the CoDel parameters; CEThreshold is the
	// optional sojourn bound above which packets are CE-marked without
	// entering the dropping state.
	Target      time.Duration
	Interval    time.Duration
	CEThreshold time.Duration
	// DisableECN turns congestion signalling into plain drops.
	DisableECN bool

	Clock   Clock
	Filter  Filter
	Metrics *Metrics
}

func (c *Config) initDefaults() {
	if c.Flows == 0 {
		c.Flows = DefaultFlows
	}
	if c.Limit == 0 {
		c.Limit = DefaultLimit
	}
	if c.MemoryLimit == 0 {
		c.MemoryLimit = DefaultMemoryLimit
	}
	if c.MTU == 0 {
		c.MTU = DefaultMTU
	}
	if c.Quantum == 0 {
		c.Quantum = c.MTU
	}
	if c.Quantum < MinQuantum {
		c.Quantum = MinQuantum
	}
	if c.DropBatch == 0 {
		c.DropBatch = DefaultDropBatch
	}
	if c.MemoryLimit > MaxMemoryLimit {
		c.MemoryLimit = MaxMemoryLimit
	}
	if c.Target == 0 {
		c.Target = DefaultTarget
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Clock == nil {
		c.Clock = systemClock{}
	}
}

func (c *Config) validate() error {
	if c.Flows > MaxFlows {
		return serrors.New("invalid flow count", "flows", c.Flows, "max", MaxFlows)
	}
	if c.Target < 0 || c.Interval < 0 || c.CEThreshold < 0 {
		return serrors.New("negative codel parameter",
			"target", c.Target, "interval", c.Interval, "ce_threshold", c.CEThreshold)
	}
	return nil
}

// Params is a bundle of runtime parameter changes; nil fields are left
// untouched. Flows is write-once: any value other than the current table
// size is rejected.
type Params struct {
	Flows       *uint32
	Limit       *uint32
	MemoryLimit *uint32
	Quantum     *uint32
	DropBatch   *uint32
	Target      *time.Duration
	Interval    *time.Duration
	CEThreshold *time.Duration
	ECN         *bool
}
