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

// The cuckoo table maps a packet to its flow slot. It is an array of
// 2*flows cells, logically two tables of flows cells each; a cell holds a
// 1-based flow index, 0 meaning empty. Equality of the head packet's flow
// hash stands in for full flow identity, which admits rare stochastic
// collisions by design of the hashing scheme.

// reciprocalScale maps a 32-bit hash fairly onto [0, ep) without a divide.
func reciprocalScale(val, ep uint32) uint32 {
	return uint32(uint64(val) * uint64(ep) >> 32)
}

// hashSlot returns the packet's candidate cell in the given table half.
func (s *Sched) hashSlot(p Packet, table uint32) uint32 {
	cnt := uint32(len(s.flows))
	return table*cnt + reciprocalScale(p.FlowHashPerturb(s.seeds[table]), cnt)
}

// placeCell writes flow value v (1-based) into the cell and records the
// cell on the flow so that cleanup never rehashes.
func (s *Sched) placeCell(cell, v uint32) {
	s.hashTable[cell] = v
	s.flows[v-1].cells[cell/uint32(len(s.flows))] = int32(cell)
}

// swapCell evicts the resident of the cell, installs v in its place and
// returns the evicted value.
func (s *Sched) swapCell(cell, v uint32) uint32 {
	old := s.hashTable[cell]
	s.flows[old-1].cells[cell/uint32(len(s.flows))] = noCell
	s.placeCell(cell, v)
	return old
}

// reserveFlow picks an unused flow slot off the empty index and returns it
// 1-based. The slot is only marked occupied once enqueue appends a packet.
func (s *Sched) reserveFlow() (uint32, bool) {
	slot, ok := s.empty.next()
	if !ok {
		return 0, false
	}
	return slot + 1, true
}

// cuckooClassify returns the 1-based flow slot owning the packet, creating
// or evicting ownership as needed. It returns 0 only when the table is full
// and neither candidate cell has an incumbent to share.
func (s *Sched) cuckooClassify(p Packet) uint32 {
	h0 := s.hashSlot(p, 0)
	h1 := s.hashSlot(p, 1)
	v0 := s.hashTable[h0]
	v1 := s.hashTable[h1]

	switch {
	case v0 == 0 && v1 == 0:
		v, ok := s.reserveFlow()
		if !ok {
			return 0
		}
		s.placeCell(h0, v)
		return v

	case v0 != 0 && v1 == 0:
		if f := &s.flows[v0-1]; f.head == nil || f.head.FlowHash() == p.FlowHash() {
			return v0
		}
		v, ok := s.reserveFlow()
		if !ok {
			// No free slot; share the incumbent.
			return v0
		}
		s.placeCell(h1, v)
		return v

	case v0 == 0 && v1 != 0:
		if f := &s.flows[v1-1]; f.head == nil || f.head.FlowHash() == p.FlowHash() {
			return v1
		}
		v, ok := s.reserveFlow()
		if !ok {
			return v1
		}
		s.placeCell(h0, v)
		return v

	default:
		if s.flows[v0-1].head == nil {
			return v0
		}
		if s.flows[v1-1].head == nil {
			return v1
		}
		if s.flows[v0-1].head.FlowHash() == p.FlowHash() {
			return v0
		}
		if s.flows[v1-1].head.FlowHash() == p.FlowHash() {
			return v1
		}
		v, ok := s.reserveFlow()
		if !ok {
			return v0
		}
		s.cuckooEvict(p, v)
		return v
	}
}

// cuckooEvict inserts value v for packet p by displacing residents,
// alternating between the two table halves. Rehoming moves only table
// cells around, updating the cells recorded on the flows; no packets
// move. The walk stops when a value
// lands in an empty cell, when an evicted flow turns out to be retiring
// (empty FIFO, so it may simply vanish from the table), or after flows
// attempts, at which point the last evicted value keeps no cell and its
// packets will share slots stochastically.
func (s *Sched) cuckooEvict(p Packet, v uint32) {
	key := p
	table := uint32(0)
	for range s.flows {
		c := s.hashSlot(key, table)
		if s.hashTable[c] == 0 {
			s.placeCell(c, v)
			return
		}
		v = s.swapCell(c, v)
		key = s.flows[v-1].head
		if key == nil {
			return
		}
		table ^= 1
	}
}
