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

// Package fqcodel implements a fair-queue CoDel packet scheduler with a
// cuckoo-hashed flow table.
//
// Packets are classified onto a fixed set of per-flow FIFOs. The classifier
// is a two-table cuckoo hash over the packet's perturbed flow hash, backed
// by a two-level bitmap that locates an unused flow slot in constant time.
// Each flow runs its own CoDel controller; flows are serviced in a deficit
// round-robin over two lists so that new flows get priority over
// established ones. Within a flow, packets are never reordered and drops
// are head drops only. ECN marking is on by default.
package fqcodel

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/netqdisc/netqdisc/pkg/private/serrors"
)

// Verdict is the outcome of an enqueue.
type Verdict int

const (
	// VerdictOK: the packet was queued. Packets of another flow may have
	// been shed to make room.
	VerdictOK Verdict = iota
	// VerdictCongestion: the packet was queued, but its own flow was the
	// fattest and lost packets in the process.
	VerdictCongestion
	// VerdictDropped: the packet was not queued.
	VerdictDropped
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictCongestion:
		return "congestion"
	case VerdictDropped:
		return "dropped"
	}
	return "unknown"
}

// Sched is one scheduler instance. All state is preallocated at New; the
// packet path performs no allocation. A single mutex guards the data path
// and the control surface alike, so statistics reads are consistent.
type Sched struct {
	mu sync.Mutex

	flows     []flow
	backlogs  []uint32
	hashTable []uint32
	seeds     [2]uint32
	empty     emptyIndex

	newFlows flowList
	oldFlows flowList

	cparams codelParams
	cstats  codelStats

	limit       uint32
	memoryLimit uint32
	quantum     uint32
	dropBatch   uint32

	qlen        uint32
	backlog     uint32
	memoryUsage uint32

	dropOverlimit  uint32
	dropOvermemory uint32
	dropBypass     uint32
	dropNoFlow     uint32
	newFlowCount   uint32

	peeked Packet

	clock   Clock
	base    time.Time
	filter  Filter
	metrics *Metrics
}

// New creates a scheduler. Zero-valued Config fields take their defaults.
func New(cfg Config) (*Sched, error) {
	cfg.initDefaults()
	if err := cfg.validate(); err != nil {
		return nil, serrors.Wrap("configuring scheduler", err)
	}
	s := &Sched{
		flows:       make([]flow, cfg.Flows),
		backlogs:    make([]uint32, cfg.Flows),
		hashTable:   make([]uint32, 2*cfg.Flows),
		seeds:       [2]uint32{rand.Uint32(), rand.Uint32()},
		empty:       newEmptyIndex(cfg.Flows),
		limit:       cfg.Limit,
		memoryLimit: cfg.MemoryLimit,
		quantum:     cfg.Quantum,
		dropBatch:   cfg.DropBatch,
		clock:       cfg.Clock,
		filter:      cfg.Filter,
		metrics:     cfg.Metrics,
		cparams: codelParams{
			target:      durationToCodel(cfg.Target),
			interval:    durationToCodel(cfg.Interval),
			ceThreshold: durationToCodel(cfg.CEThreshold),
			mtu:         cfg.MTU,
			ecn:         !cfg.DisableECN,
		},
	}
	for i := range s.flows {
		f := &s.flows[i]
		f.id = uint32(i)
		f.cells = [2]int32{noCell, noCell}
	}
	s.base = s.clock.Now()
	return s, nil
}

func (s *Sched) now() codelTime {
	return codelTime(s.clock.Now().Sub(s.base).Nanoseconds() >> codelShift)
}

// flowPull removes the flow's head packet and settles all accounting.
func (s *Sched) flowPull(f *flow) Packet {
	p := f.pop()
	if p == nil {
		return nil
	}
	plen := uint32(p.Length())
	s.backlogs[f.id] -= plen
	s.backlog -= plen
	s.memoryUsage -= p.Meta().memory
	s.qlen--
	return p
}

// releaseSlot returns an emptied flow's slot to the free index and clears
// the cuckoo cells recorded for it at placement time.
func (s *Sched) releaseSlot(f *flow) {
	s.empty.markEmpty(f.id)
	for t, c := range f.cells {
		if c == noCell {
			continue
		}
		if s.hashTable[c] == f.id+1 {
			s.hashTable[c] = 0
		}
		f.cells[t] = noCell
	}
}

func (s *Sched) dropPacket(_ Packet, reason dropReason) {
	if s.metrics != nil {
		s.metrics.drops[reason].Inc()
	}
}

// classify returns the packet's 1-based class: the packet's own hint if it
// names a valid class, else the external filter's answer, else the cuckoo
// classifier's. Zero means the packet has no class and must be discarded.
func (s *Sched) classify(p Packet) (uint32, dropReason) {
	if h, ok := p.(ClassHinter); ok {
		if c := h.ClassHint(); c >= 1 && c <= uint32(len(s.flows)) {
			return c, 0
		}
	}
	if s.filter != nil {
		c, ok := s.filter.Classify(p)
		if !ok || c < 1 || c > uint32(len(s.flows)) {
			return 0, dropReasonBypass
		}
		return c, 0
	}
	if c := s.cuckooClassify(p); c != 0 {
		return c, 0
	}
	return 0, dropReasonCollision
}

// Enqueue classifies and queues the packet. The call is synchronous and
// never blocks; an overflow is resolved inline by shedding a batch from the
// fattest flow before returning.
func (s *Sched) Enqueue(p Packet) Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, reason := s.classify(p)
	if idx == 0 {
		if reason == dropReasonBypass {
			s.dropBypass++
		} else {
			s.dropNoFlow++
		}
		s.dropPacket(p, reason)
		return VerdictDropped
	}
	i := idx - 1
	f := &s.flows[i]

	m := p.Meta()
	m.enqueueTime = s.now()
	m.memory = uint32(p.Footprint())
	f.push(p)
	plen := uint32(p.Length())
	s.backlogs[i] += plen
	s.backlog += plen
	s.empty.markOccupied(i)

	if f.list == nil {
		s.newFlows.pushBack(f)
		s.newFlowCount++
		f.deficit = int32(s.quantum)
		f.dropped = 0
		if s.metrics != nil {
			s.metrics.NewFlows.Inc()
		}
	}
	s.memoryUsage += m.memory
	memoryLimited := s.memoryUsage > s.memoryLimit
	s.qlen++
	if s.metrics != nil {
		s.metrics.EnqueuedPackets.Inc()
		s.metrics.EnqueuedBytes.Add(float64(plen))
		s.syncGauges()
	}
	if s.qlen <= s.limit && !memoryLimited {
		return VerdictOK
	}

	// Queue is full: find the fat flow and shed a batch from its head.
	prevQlen := s.qlen
	victim := s.fatFlowDrop(s.dropBatch, memoryLimited)
	droppedNow := prevQlen - s.qlen
	s.dropOverlimit += droppedNow
	if memoryLimited {
		s.dropOvermemory += droppedNow
	}
	if s.metrics != nil {
		s.syncGauges()
	}
	// If the shed flow is the one we just enqueued into, let the caller
	// know it is the congestion source.
	if victim == i {
		return VerdictCongestion
	}
	return VerdictOK
}

// Dequeue returns the next packet under deficit round-robin with per-flow
// CoDel, or nil when the scheduler is empty.
func (s *Sched) Dequeue() Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dequeueLocked()
}

func (s *Sched) dequeueLocked() Packet {
	if p := s.peeked; p != nil {
		s.peeked = nil
		return p
	}
	for {
		f := s.newFlows.head
		fromNew := true
		if f == nil {
			f = s.oldFlows.head
			fromNew = false
			if f == nil {
				return nil
			}
		}
		if f.deficit <= 0 {
			f.deficit += int32(s.quantum)
			moveTail(&s.oldFlows, f)
			continue
		}

		prevDrop := s.cstats.dropCount
		prevMark := s.cstats.ecnMark
		p := s.codelDequeue(f, s.now())
		f.dropped += s.cstats.dropCount - prevDrop
		f.dropped += s.cstats.ecnMark - prevMark

		if p == nil {
			// Force one pass through old flows before the empty
			// flow retires, so a steadily re-arriving flow cannot
			// starve the old list.
			if fromNew && !s.oldFlows.empty() {
				moveTail(&s.oldFlows, f)
			} else {
				f.list.remove(f)
			}
			// CoDel drops may have emptied the flow.
			if f.head == nil {
				s.releaseSlot(f)
			}
			continue
		}
		f.deficit -= int32(p.Length())
		if f.head == nil {
			s.releaseSlot(f)
		}
		if s.metrics != nil {
			s.metrics.DequeuedPackets.Inc()
			s.metrics.DequeuedBytes.Add(float64(p.Length()))
			s.syncGauges()
		}
		return p
	}
}

// Peek returns the packet the next Dequeue will deliver without consuming
// it. The packet is pulled through the full dequeue machinery once and
// cached.
func (s *Sched) Peek() Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peeked == nil {
		s.peeked = s.dequeueLocked()
	}
	return s.peeked
}

// Len returns the number of queued packets.
func (s *Sched) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.qlen)
}

// Backlog returns the queued bytes.
func (s *Sched) Backlog() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backlog
}

// Configure applies a parameter bundle. Validation happens up front and a
// rejected bundle leaves the scheduler untouched. After the new limits are
// in place the queue is drained down to them through the regular dequeue
// path.
func (s *Sched) Configure(p Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Flows != nil && *p.Flows != uint32(len(s.flows)) {
		return serrors.New("flow count is fixed after initialisation",
			"flows", uint32(len(s.flows)), "requested", *p.Flows)
	}
	if p.Target != nil && *p.Target < 0 {
		return serrors.New("negative target", "target", *p.Target)
	}
	if p.Interval != nil && *p.Interval < 0 {
		return serrors.New("negative interval", "interval", *p.Interval)
	}
	if p.CEThreshold != nil && *p.CEThreshold < 0 {
		return serrors.New("negative ce threshold", "ce_threshold", *p.CEThreshold)
	}

	if p.Target != nil {
		s.cparams.target = durationToCodel(*p.Target)
	}
	if p.Interval != nil {
		s.cparams.interval = durationToCodel(*p.Interval)
	}
	if p.CEThreshold != nil {
		s.cparams.ceThreshold = durationToCodel(*p.CEThreshold)
	}
	if p.ECN != nil {
		s.cparams.ecn = *p.ECN
	}
	if p.Limit != nil {
		s.limit = *p.Limit
	}
	if p.Quantum != nil {
		s.quantum = max(MinQuantum, *p.Quantum)
	}
	if p.DropBatch != nil {
		s.dropBatch = max(1, *p.DropBatch)
	}
	if p.MemoryLimit != nil {
		s.memoryLimit = min(uint32(MaxMemoryLimit), *p.MemoryLimit)
	}

	for s.qlen > s.limit || s.memoryUsage > s.memoryLimit {
		pkt := s.dequeueLocked()
		if pkt == nil {
			break
		}
		s.cstats.dropCount++
		s.cstats.dropLen += uint32(pkt.Length())
		s.dropPacket(pkt, dropReasonReconfig)
	}
	if s.metrics != nil {
		s.syncGauges()
	}
	return nil
}

// Reset purges every flow and returns the scheduler to its
// post-initialisation state, counters included. The hash seeds are kept.
func (s *Sched) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.newFlows = flowList{}
	s.oldFlows = flowList{}
	for i := range s.flows {
		f := &s.flows[i]
		f.head, f.tail = nil, nil
		f.next, f.prev, f.list = nil, nil, nil
		f.deficit = 0
		f.dropped = 0
		f.cvars = codelVars{}
		f.cells = [2]int32{noCell, noCell}
	}
	for i := range s.backlogs {
		s.backlogs[i] = 0
	}
	for i := range s.hashTable {
		s.hashTable[i] = 0
	}
	s.empty.fill()
	s.qlen = 0
	s.backlog = 0
	s.memoryUsage = 0
	s.cstats = codelStats{}
	s.dropOverlimit = 0
	s.dropOvermemory = 0
	s.dropBypass = 0
	s.dropNoFlow = 0
	s.newFlowCount = 0
	s.peeked = nil
	if s.metrics != nil {
		s.syncGauges()
	}
}
