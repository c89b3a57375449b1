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

// fatFlowDrop resolves an overflow by shedding from the flow with the
// largest backlog. The linear scan over the backlog vector is cheap (4 KiB
// at the default table size) and amortised over the whole batch. The goal
// is to drop half of the fat flow's backlog, head first, capped at
// maxPackets per event. Returns the victim slot so the caller can tell a
// self-drop from a cross-drop.
func (s *Sched) fatFlowDrop(maxPackets uint32, memoryLimited bool) uint32 {
	var maxBacklog, idx uint32
	for i, b := range s.backlogs {
		if b > maxBacklog {
			maxBacklog = b
			idx = uint32(i)
		}
	}
	threshold := maxBacklog >> 1

	reason := dropReasonOverlimit
	if memoryLimited {
		reason = dropReasonOvermemory
	}
	f := &s.flows[idx]
	var dropped, bytes, mem uint32
	for f.head != nil {
		p := f.pop()
		bytes += uint32(p.Length())
		mem += p.Meta().memory
		dropped++
		s.dropPacket(p, reason)
		if dropped >= maxPackets || bytes >= threshold {
			break
		}
	}
	f.dropped += dropped
	s.backlogs[idx] -= bytes
	s.backlog -= bytes
	s.memoryUsage -= mem
	s.qlen -= dropped
	if f.head == nil {
		s.releaseSlot(f)
	}
	return idx
}
