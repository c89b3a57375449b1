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

import "time"

// Stats is a consistent snapshot of the scheduler counters.
type Stats struct {
	// Packets and Bytes are the current occupancy; MemoryUsage the summed
	// footprints of queued packets.
	Packets     uint32
	Bytes       uint32
	MemoryUsage uint32
	// MaxPacket is the largest packet length seen by the CoDel machinery.
	MaxPacket uint32
	// Drop counters by cause. DropOverlimit counts every overflow shed;
	// DropOvermemory the subset shed under memory pressure. DropBypass
	// counts external-classifier rejections, DropNoFlow packets that
	// found a full flow table with nothing to share.
	DropOverlimit  uint32
	DropOvermemory uint32
	DropBypass     uint32
	DropNoFlow     uint32
	CodelDrops     uint32
	ECNMarks       uint32
	CEMarks        uint32
	// NewFlowCount counts flow activations; NewFlowsLen and OldFlowsLen
	// are the current rotation list lengths.
	NewFlowCount uint32
	NewFlowsLen  uint32
	OldFlowsLen  uint32
}

// FlowStats is the per-class view exposed by ClassStats and Walk.
type FlowStats struct {
	Deficit   int32
	LastDelay time.Duration
	Count     uint32
	LastCount uint32
	Dropping  bool
	// DropNext is the time until the next scheduled drop; negative when
	// a drop is overdue. Only meaningful while Dropping.
	DropNext time.Duration
	QueueLen uint32
	Backlog  uint32
	Dropped  uint32
}

// Snapshot copies the scheduler counters.
func (s *Sched) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Packets:        s.qlen,
		Bytes:          s.backlog,
		MemoryUsage:    s.memoryUsage,
		MaxPacket:      s.cstats.maxPacket,
		DropOverlimit:  s.dropOverlimit,
		DropOvermemory: s.dropOvermemory,
		DropBypass:     s.dropBypass,
		DropNoFlow:     s.dropNoFlow,
		CodelDrops:     s.cstats.dropCount,
		ECNMarks:       s.cstats.ecnMark,
		CEMarks:        s.cstats.ceMark,
		NewFlowCount:   s.newFlowCount,
		NewFlowsLen:    s.newFlows.length(),
		OldFlowsLen:    s.oldFlows.length(),
	}
}

// ClassStats returns the state of the 1-based class, or false if the class
// id is out of range.
func (s *Sched) ClassStats(class uint32) (FlowStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if class < 1 || class > uint32(len(s.flows)) {
		return FlowStats{}, false
	}
	return s.flowStats(&s.flows[class-1]), true
}

func (s *Sched) flowStats(f *flow) FlowStats {
	fs := FlowStats{
		Deficit:   f.deficit,
		LastDelay: codelToDuration(f.cvars.lDelay),
		Count:     f.cvars.count,
		LastCount: f.cvars.lastCount,
		Dropping:  f.cvars.dropping,
		QueueLen:  f.qlen(),
		Backlog:   s.backlogs[f.id],
		Dropped:   f.dropped,
	}
	if f.cvars.dropping {
		delta := int32(f.cvars.dropNext - s.now())
		fs.DropNext = time.Duration(delta) << codelShift
	}
	return fs
}

// Walk visits every active flow (one linked on either rotation list) in
// slot order, yielding its 1-based class id. The visitor returns false to
// stop the walk.
func (s *Sched) Walk(visit func(class uint32, fs FlowStats) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.flows {
		f := &s.flows[i]
		if f.list == nil {
			continue
		}
		if !visit(uint32(i)+1, s.flowStats(f)) {
			return
		}
	}
}

// Config returns the scheduler's current configuration.
func (s *Sched) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Config{
		Flows:       uint32(len(s.flows)),
		Limit:       s.limit,
		MemoryLimit: s.memoryLimit,
		Quantum:     s.quantum,
		MTU:         s.cparams.mtu,
		DropBatch:   s.dropBatch,
		Target:      codelToDuration(s.cparams.target),
		Interval:    codelToDuration(s.cparams.interval),
		CEThreshold: codelToDuration(s.cparams.ceThreshold),
		DisableECN:  !s.cparams.ecn,
		Clock:       s.clock,
		Filter:      s.filter,
		Metrics:     s.metrics,
	}
}
