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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyIndexInitiallyFull(t *testing.T) {
	for _, n := range []uint32{1, 63, 64, 65, 1024, 4096, 65536} {
		x := newEmptyIndex(n)
		slot, ok := x.next()
		require.True(t, ok, "n=%d", n)
		assert.EqualValues(t, 0, slot, "n=%d", n)
		for i := uint32(0); i < n; i++ {
			assert.True(t, x.isEmpty(i), "n=%d slot=%d", n, i)
		}
	}
}

func TestEmptyIndexLowestFirst(t *testing.T) {
	x := newEmptyIndex(200)
	for want := uint32(0); want < 200; want++ {
		slot, ok := x.next()
		require.True(t, ok)
		require.Equal(t, want, slot)
		x.markOccupied(slot)
	}
	_, ok := x.next()
	assert.False(t, ok)

	// Freeing out of order: next always returns the lowest empty slot.
	x.markEmpty(130)
	x.markEmpty(7)
	x.markEmpty(64)
	slot, ok := x.next()
	require.True(t, ok)
	assert.EqualValues(t, 7, slot)
	x.markOccupied(7)
	slot, _ = x.next()
	assert.EqualValues(t, 64, slot)
	x.markOccupied(64)
	slot, _ = x.next()
	assert.EqualValues(t, 130, slot)
}

func TestEmptyIndexTailGuard(t *testing.T) {
	// Slots past n must never be reported, even once all real slots are
	// taken.
	x := newEmptyIndex(5)
	for i := uint32(0); i < 5; i++ {
		slot, ok := x.next()
		require.True(t, ok)
		require.Equal(t, i, slot)
		x.markOccupied(slot)
	}
	_, ok := x.next()
	assert.False(t, ok)
}

func TestEmptyIndexSummaryTracksWords(t *testing.T) {
	x := newEmptyIndex(128)
	for i := uint32(0); i < 64; i++ {
		x.markOccupied(i)
	}
	// Word 0 drained; the summary must route next() to word 1.
	slot, ok := x.next()
	require.True(t, ok)
	assert.EqualValues(t, 64, slot)

	x.markEmpty(3)
	slot, _ = x.next()
	assert.EqualValues(t, 3, slot)
}

func TestEmptyIndexFillAfterDrain(t *testing.T) {
	x := newEmptyIndex(70)
	for i := uint32(0); i < 70; i++ {
		x.markOccupied(i)
	}
	x.fill()
	cnt := 0
	for {
		slot, ok := x.next()
		if !ok {
			break
		}
		x.markOccupied(slot)
		cnt++
	}
	assert.Equal(t, 70, cnt)
}
