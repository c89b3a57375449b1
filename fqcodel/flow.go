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

// flow is one slot of the flow table: a FIFO of packets threaded through
// their Meta links, the round-robin linkage and deficit, and the per-flow
// CoDel state. A flow is on at most one of the new/old lists; list == nil
// means it is on neither.
type flow struct {
	head Packet
	tail Packet

	next *flow
	prev *flow
	list *flowList

	deficit int32
	dropped uint32
	cvars   codelVars

	// id is the 0-based slot index. cells are the cuckoo table cells
	// (one per half) currently referencing this flow, recorded at
	// placement time so that cleanup never has to rehash a packet;
	// -1 means no cell.
	id    uint32
	cells [2]int32
}

const noCell = -1

// push appends the packet to the flow FIFO.
func (f *flow) push(p Packet) {
	m := p.Meta()
	m.next = nil
	if f.head == nil {
		f.head = p
	} else {
		f.tail.Meta().next = p
	}
	f.tail = p
}

// pop removes and returns the head packet, or nil if the FIFO is empty.
func (f *flow) pop() Packet {
	p := f.head
	if p == nil {
		return nil
	}
	m := p.Meta()
	f.head = m.next
	if f.head == nil {
		f.tail = nil
	}
	m.next = nil
	return p
}

// qlen walks the FIFO and returns the number of queued packets.
func (f *flow) qlen() uint32 {
	var n uint32
	for p := f.head; p != nil; p = p.Meta().next {
		n++
	}
	return n
}

// flowList is a doubly-linked list of flows with O(1) push, detach and
// move-to-tail. Membership is recorded on the flow itself.
type flowList struct {
	head *flow
	tail *flow
}

func (l *flowList) empty() bool {
	return l.head == nil
}

func (l *flowList) pushBack(f *flow) {
	f.prev = l.tail
	f.next = nil
	if l.tail == nil {
		l.head = f
	} else {
		l.tail.next = f
	}
	l.tail = f
	f.list = l
}

func (l *flowList) remove(f *flow) {
	if f.prev != nil {
		f.prev.next = f.next
	} else {
		l.head = f.next
	}
	if f.next != nil {
		f.next.prev = f.prev
	} else {
		l.tail = f.prev
	}
	f.next = nil
	f.prev = nil
	f.list = nil
}

// moveTail detaches f from whatever list it is on and appends it to l.
func moveTail(l *flowList, f *flow) {
	if f.list != nil {
		f.list.remove(f)
	}
	l.pushBack(f)
}

// length walks the list. Only used for statistics snapshots.
func (l *flowList) length() uint32 {
	var n uint32
	for f := l.head; f != nil; f = f.next {
		n++
	}
	return n
}
