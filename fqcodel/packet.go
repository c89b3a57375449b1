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

// Meta is the per-packet state owned by the scheduler: the intrusive FIFO
// link, the enqueue timestamp and the memory footprint recorded at enqueue
// time. Concrete packet types embed a Meta and hand it out via Meta(), so
// the scheduler queues packets without any allocation of its own.
type Meta struct {
	next        Packet
	enqueueTime codelTime
	memory      uint32
}

// Packet is the contract the scheduler consumes. The packet bytes and their
// lifetime belong to the caller; the scheduler only threads the Meta linkage
// and, when ECN is enabled, asks the packet to mark itself.
type Packet interface {
	// Length returns the wire length in bytes. It is the unit of the
	// deficit round-robin and of all backlog accounting.
	Length() int
	// Footprint returns the memory the packet occupies while queued,
	// including any buffer overhead beyond the wire length.
	Footprint() int
	// FlowHash returns a stable hash of the packet's flow identity.
	FlowHash() uint32
	// FlowHashPerturb returns the flow hash mixed with the given seed.
	FlowHashPerturb(seed uint32) uint32
	// ECNCapable reports whether the packet carries an ECT codepoint and
	// may be CE-marked instead of dropped.
	ECNCapable() bool
	// MarkCE sets the Congestion Experienced codepoint on the packet.
	MarkCE()
	// Meta returns the scheduler-owned slot embedded in the packet.
	Meta() *Meta
}

// ClassHinter is an optional interface. A packet whose hint is a valid
// 1-based class id in [1, flows] is enqueued to that class directly,
// bypassing both the external filter and the internal hash.
type ClassHinter interface {
	ClassHint() uint32
}

// Filter is an optional external classifier. Classify returns a 1-based
// class id; ok == false rejects the packet, which is then discarded without
// being counted against any queue limit.
type Filter interface {
	Classify(p Packet) (class uint32, ok bool)
}

// setCE marks the packet with CE if it is ECN capable and reports whether
// the mark was applied.
func setCE(p Packet) bool {
	if !p.ECNCapable() {
		return false
	}
	p.MarkCE()
	return true
}
