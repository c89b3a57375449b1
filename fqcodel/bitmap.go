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

import "math/bits"

// emptyIndex is a two-level bitmap over the flow table. A set bit in words
// means the slot is empty; summary bit b is set iff words[b] has at least
// one set bit. next always returns the lowest-numbered empty slot, found
// with two find-first-set steps plus a short scan of the summary for flow
// tables larger than 4096 slots.
type emptyIndex struct {
	summary []uint64
	words   []uint64
	n       uint32
}

func newEmptyIndex(n uint32) emptyIndex {
	nw := (n + 63) / 64
	x := emptyIndex{
		summary: make([]uint64, (nw+63)/64),
		words:   make([]uint64, nw),
		n:       n,
	}
	x.fill()
	return x
}

// fill marks every slot empty.
func (x *emptyIndex) fill() {
	for i := range x.words {
		x.words[i] = ^uint64(0)
	}
	// Bits past n in the last word must stay clear so that next never
	// reports a slot outside the flow table.
	if tail := x.n % 64; tail != 0 {
		x.words[len(x.words)-1] = (uint64(1) << tail) - 1
	}
	for i := range x.summary {
		x.summary[i] = 0
	}
	for w, v := range x.words {
		if v != 0 {
			x.summary[w/64] |= uint64(1) << (uint(w) % 64)
		}
	}
}

// next returns the lowest-numbered empty slot.
func (x *emptyIndex) next() (uint32, bool) {
	for i, s := range x.summary {
		if s == 0 {
			continue
		}
		w := i*64 + bits.TrailingZeros64(s)
		return uint32(w*64 + bits.TrailingZeros64(x.words[w])), true
	}
	return 0, false
}

// markEmpty sets the slot's bit on both levels.
func (x *emptyIndex) markEmpty(slot uint32) {
	w := slot / 64
	x.words[w] |= uint64(1) << (slot % 64)
	x.summary[w/64] |= uint64(1) << (w % 64)
}

// markOccupied clears the slot's bit, and the summary bit once the whole
// word drains.
func (x *emptyIndex) markOccupied(slot uint32) {
	w := slot / 64
	x.words[w] &^= uint64(1) << (slot % 64)
	if x.words[w] == 0 {
		x.summary[w/64] &^= uint64(1) << (w % 64)
	}
}

// isEmpty reports whether the slot is currently marked empty.
func (x *emptyIndex) isEmpty(slot uint32) bool {
	return x.words[slot/64]&(uint64(1)<<(slot%64)) != 0
}
