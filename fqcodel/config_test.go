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

package fqcodel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netqdisc/netqdisc/fqcodel"
)

func u32(v uint32) *uint32 { return &v }

func dur(d time.Duration) *time.Duration { return &d }

func TestNewAppliesDefaults(t *testing.T) {
	s, err := fqcodel.New(fqcodel.Config{Clock: newClock()})
	require.NoError(t, err)

	cfg := s.Config()
	assert.EqualValues(t, fqcodel.DefaultFlows, cfg.Flows)
	assert.EqualValues(t, fqcodel.DefaultLimit, cfg.Limit)
	assert.EqualValues(t, fqcodel.DefaultMemoryLimit, cfg.MemoryLimit)
	assert.EqualValues(t, fqcodel.DefaultMTU, cfg.Quantum)
	assert.EqualValues(t, fqcodel.DefaultDropBatch, cfg.DropBatch)
	assert.False(t, cfg.DisableECN)
	// The fixed-point representation truncates at tick granularity.
	assert.InDelta(t, fqcodel.DefaultTarget, cfg.Target, 1024)
	assert.InDelta(t, fqcodel.DefaultInterval, cfg.Interval, 1024)
	assert.Zero(t, cfg.CEThreshold)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := fqcodel.New(fqcodel.Config{Flows: 1 << 20})
	assert.Error(t, err)

	_, err = fqcodel.New(fqcodel.Config{Target: -time.Millisecond})
	assert.Error(t, err)
}

func TestNewClampsQuantum(t *testing.T) {
	s, err := fqcodel.New(fqcodel.Config{Quantum: 100, Clock: newClock()})
	require.NoError(t, err)
	assert.EqualValues(t, fqcodel.MinQuantum, s.Config().Quantum)
}

func TestConfigureClamps(t *testing.T) {
	s, err := fqcodel.New(fqcodel.Config{Flows: 4, Clock: newClock()})
	require.NoError(t, err)

	require.NoError(t, s.Configure(fqcodel.Params{
		Quantum:     u32(10),
		DropBatch:   u32(0),
		MemoryLimit: u32(3 << 30), // over the 2 GiB cap
	}))
	cfg := s.Config()
	assert.EqualValues(t, fqcodel.MinQuantum, cfg.Quantum)
	assert.EqualValues(t, 1, cfg.DropBatch)
	assert.EqualValues(t, uint32(fqcodel.MaxMemoryLimit), cfg.MemoryLimit)
}

func TestConfigureFlowsIsWriteOnce(t *testing.T) {
	s, err := fqcodel.New(fqcodel.Config{Flows: 4, Clock: newClock()})
	require.NoError(t, err)

	// Restating the current size is fine, changing it is not.
	assert.NoError(t, s.Configure(fqcodel.Params{Flows: u32(4)}))
	assert.Error(t, s.Configure(fqcodel.Params{Flows: u32(8)}))
	assert.EqualValues(t, 4, s.Config().Flows)
}

func TestConfigureRejectsWithoutMutation(t *testing.T) {
	s, err := fqcodel.New(fqcodel.Config{Flows: 4, Clock: newClock()})
	require.NoError(t, err)
	before := s.Config()

	err = s.Configure(fqcodel.Params{
		Target: dur(-time.Second),
		Limit:  u32(1),
	})
	require.Error(t, err)
	assert.Equal(t, before.Limit, s.Config().Limit)
	assert.Equal(t, before.Target, s.Config().Target)
}

func TestConfigureDrainsToNewLimit(t *testing.T) {
	s, err := fqcodel.New(fqcodel.Config{Flows: 4, Limit: 20, Clock: newClock()})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		s.Enqueue(mk("a", hashA, 1000))
	}

	require.NoError(t, s.Configure(fqcodel.Params{Limit: u32(4)}))
	assert.Equal(t, 4, s.Len())
}

func TestConfigureUpdatesCodelParams(t *testing.T) {
	s, err := fqcodel.New(fqcodel.Config{Flows: 4, Clock: newClock()})
	require.NoError(t, err)

	require.NoError(t, s.Configure(fqcodel.Params{
		Target:      dur(10 * time.Millisecond),
		Interval:    dur(200 * time.Millisecond),
		CEThreshold: dur(2 * time.Millisecond),
	}))
	cfg := s.Config()
	assert.InDelta(t, 10*time.Millisecond, cfg.Target, 1024)
	assert.InDelta(t, 200*time.Millisecond, cfg.Interval, 1024)
	assert.InDelta(t, 2*time.Millisecond, cfg.CEThreshold, 1024)
}
