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

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netqdisc/netqdisc/fqcodel/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fqcodel.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSample(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, config.Sample))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "human", cfg.Logging.Format)
	assert.Equal(t, "127.0.0.1:8000", cfg.Metrics.Addr)
	assert.EqualValues(t, 1024, cfg.Sched.Flows)
	assert.EqualValues(t, 10240, cfg.Sched.Limit)
	assert.EqualValues(t, 32<<20, cfg.Sched.MemoryLimit)
	assert.EqualValues(t, 1514, cfg.Sched.Quantum)
	assert.EqualValues(t, 64, cfg.Sched.DropBatch)
	assert.Equal(t, 5*time.Millisecond, cfg.Sched.Target.Duration)
	assert.Equal(t, 100*time.Millisecond, cfg.Sched.Interval.Duration)
	assert.Zero(t, cfg.Sched.CEThreshold.Duration)
	assert.False(t, cfg.Sched.DisableECN)
}

func TestSchedulerConfigConversion(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
[sched]
flows = 64
target = "2ms"
interval = "40ms"
disable_ecn = true
`))
	require.NoError(t, err)

	sc := cfg.Sched.SchedulerConfig()
	assert.EqualValues(t, 64, sc.Flows)
	assert.Equal(t, 2*time.Millisecond, sc.Target)
	assert.Equal(t, 40*time.Millisecond, sc.Interval)
	assert.True(t, sc.DisableECN)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
[sched]
target = "not a duration"
`))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	_, err := config.Load(writeConfig(t, `
[log]
format = "xml"
`))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, `
[sched]
flows = 100000
`))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
