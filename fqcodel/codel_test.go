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
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodelTimeComparisonsWrap(t *testing.T) {
	var base codelTime = ^codelTime(0) - 5
	later := base + 10 // wraps around zero

	assert.True(t, codelTimeAfter(later, base))
	assert.False(t, codelTimeAfter(base, later))
	assert.True(t, codelTimeBefore(base, later))
	assert.True(t, codelTimeAfterEq(later, later))
	assert.True(t, codelTimeAfterEq(later, base))
}

func TestDurationConversion(t *testing.T) {
	d := 5 * time.Millisecond
	ct := durationToCodel(d)
	back := codelToDuration(ct)
	// The shift loses the low bits; the round trip stays within one
	// tick.
	assert.InDelta(t, d.Nanoseconds(), back.Nanoseconds(), 1<<codelShift)
}

// The Newton iteration must converge to 1/sqrt(count) once a few
// steps have refined the estimate.
func TestNewtonStepConverges(t *testing.T) {
	for _, count := range []uint32{4, 9, 16, 100, 400} {
		v := codelVars{count: 1, recInvSqrt: ^uint16(0)}
		for v.count < count {
			v.count++
			v.newtonStep()
		}
		// A couple of extra steps at the final count settle the
		// estimate.
		v.newtonStep()
		v.newtonStep()

		got := float64(v.recInvSqrt) / float64(1<<recInvSqrtBits)
		want := 1 / math.Sqrt(float64(count))
		assert.InDelta(t, want, got, want*0.02, "count=%d", count)
	}
}

func TestControlLawScalesInterval(t *testing.T) {
	interval := durationToCodel(100 * time.Millisecond)

	// With the estimate at its maximum (count == 1) the next drop is one
	// full interval away, short only of the fixed-point truncation.
	next := controlLaw(0, interval, ^uint16(0))
	require.InDelta(t, float64(interval), float64(next), float64(interval)/1000)

	// A quarter estimate quarters the spacing.
	next = controlLaw(0, interval, 1<<14)
	require.InDelta(t, float64(interval)/4, float64(next), float64(interval)/1000)
}

func TestShouldDropBelowTargetResets(t *testing.T) {
	clk := newTestClock()
	s := mustNew(t, Config{Flows: 4, Target: 5 * time.Millisecond,
		Interval: 100 * time.Millisecond, Clock: clk})
	s.Enqueue(&testPacket{size: 2000, hash: hashFor(0, 4)})
	s.Enqueue(&testPacket{size: 2000, hash: hashFor(0, 4)})
	f := &s.flows[0]
	f.cvars.firstAboveTime = 17

	// Sojourn below target clears firstAboveTime.
	p := f.head
	clk.Advance(time.Millisecond)
	assert.False(t, s.shouldDrop(f, p, s.now()))
	assert.Zero(t, f.cvars.firstAboveTime)

	// Above target it arms firstAboveTime but does not drop yet.
	clk.Advance(10 * time.Millisecond)
	assert.False(t, s.shouldDrop(f, p, s.now()))
	assert.NotZero(t, f.cvars.firstAboveTime)

	// Still inside the interval: no drop.
	clk.Advance(50 * time.Millisecond)
	assert.False(t, s.shouldDrop(f, p, s.now()))

	// A full interval above target: ok to drop.
	clk.Advance(60 * time.Millisecond)
	assert.True(t, s.shouldDrop(f, p, s.now()))
}

// A single-MTU backlog never triggers dropping, whatever the sojourn time.
func TestShouldDropBacklogFloor(t *testing.T) {
	clk := newTestClock()
	s := mustNew(t, Config{Flows: 4, Target: 5 * time.Millisecond,
		Interval: 100 * time.Millisecond, MTU: 1514, Clock: clk})
	s.Enqueue(&testPacket{size: 1000, hash: hashFor(0, 4)})
	f := &s.flows[0]
	clk.Advance(10 * time.Second)
	assert.False(t, s.shouldDrop(f, f.head, s.now()))
	assert.Zero(t, f.cvars.firstAboveTime)
}
