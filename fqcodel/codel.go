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

// CoDel time is kept in a wrapping 32-bit counter of nanoseconds shifted
// right by codelShift (about 1 microsecond resolution, wrapping every
// ~4000 seconds). All comparisons go through the signed-difference helpers
// so that wrap-around is harmless.
type codelTime uint32

const (
	codelShift = 10

	// recInvSqrtBits is the width of the reciprocal-square-root estimate;
	// recInvSqrtShift aligns it to a 32-bit fixed-point fraction.
	recInvSqrtBits  = 16
	recInvSqrtShift = 32 - recInvSqrtBits
)

func durationToCodel(d time.Duration) codelTime {
	return codelTime(d.Nanoseconds() >> codelShift)
}

func codelToDuration(t codelTime) time.Duration {
	return time.Duration(int64(t) << codelShift)
}

func codelTimeAfter(a, b codelTime) bool {
	return int32(a-b) > 0
}

func codelTimeAfterEq(a, b codelTime) bool {
	return int32(a-b) >= 0
}

func codelTimeBefore(a, b codelTime) bool {
	return int32(a-b) < 0
}

// codelParams are the knobs shared by every flow of one scheduler.
// ceThreshold == 0 disables the standalone CE-marking threshold.
type codelParams struct {
	target      codelTime
	interval    codelTime
	ceThreshold codelTime
	mtu         uint32
	ecn         bool
}

// codelVars is the per-flow controller state.
type codelVars struct {
	count          uint32
	lastCount      uint32
	dropping       bool
	recInvSqrt     uint16
	firstAboveTime codelTime
	dropNext       codelTime
	lDelay         codelTime
}

// codelStats aggregates controller outcomes across all flows.
type codelStats struct {
	maxPacket uint32
	dropCount uint32
	dropLen   uint32
	ecnMark   uint32
	ceMark    uint32
}

// newtonStep refines 1/sqrt(count) by one Newton-Raphson iteration:
// x' = x/2 * (3 - count * x^2). Plain integer arithmetic in 32-bit
// fixed point; successive steps converge quadratically.
func (v *codelVars) newtonStep() {
	invsqrt := uint32(v.recInvSqrt) << recInvSqrtShift
	invsqrt2 := uint32(uint64(invsqrt) * uint64(invsqrt) >> 32)
	val := (uint64(3) << 32) - uint64(v.count)*uint64(invsqrt2)
	val >>= 2
	val = (val * uint64(invsqrt)) >> (32 - 2 + 1)
	v.recInvSqrt = uint16(val >> recInvSqrtShift)
}

// controlLaw schedules the next drop at t + interval/sqrt(count).
func controlLaw(t, interval codelTime, recInvSqrt uint16) codelTime {
	scaled := uint64(interval) * uint64(uint32(recInvSqrt)<<recInvSqrtShift)
	return t + codelTime(scaled>>32)
}

// shouldDrop evaluates the candidate packet's sojourn time against target.
// It records lDelay and maxPacket as side effects. Returning true means the
// queue has been above target for a full interval and dropping is allowed.
func (s *Sched) shouldDrop(f *flow, p Packet, now codelTime) bool {
	if p == nil {
		f.cvars.firstAboveTime = 0
		return false
	}
	plen := uint32(p.Length())
	f.cvars.lDelay = now - p.Meta().enqueueTime
	if plen > s.cstats.maxPacket {
		s.cstats.maxPacket = plen
	}
	if codelTimeBefore(f.cvars.lDelay, s.cparams.target) || s.backlog <= s.cparams.mtu {
		// Went below target; stay below for at least interval.
		f.cvars.firstAboveTime = 0
		return false
	}
	if f.cvars.firstAboveTime == 0 {
		// Just went above. Only drop if we stay above for a full
		// interval.
		f.cvars.firstAboveTime = now + s.cparams.interval
		return false
	}
	return codelTimeAfter(now, f.cvars.firstAboveTime)
}

// codelDequeue pulls the next deliverable packet from the flow, dropping or
// CE-marking packets according to the CoDel state machine. It returns nil
// once the flow FIFO is exhausted.
func (s *Sched) codelDequeue(f *flow, now codelTime) Packet {
	vars := &f.cvars
	p := s.flowPull(f)
	if p == nil {
		vars.dropping = false
		return nil
	}
	drop := s.shouldDrop(f, p, now)
	if vars.dropping {
		switch {
		case !drop:
			// Sojourn time below target; leave dropping state.
			vars.dropping = false
		case codelTimeAfterEq(now, vars.dropNext):
			// A large backlog can push the drop rate high enough
			// that several scheduled drops are already due.
			for vars.dropping && codelTimeAfterEq(now, vars.dropNext) {
				vars.count++ // wrap is harmless, there is no divide
				vars.newtonStep()
				if p != nil && s.cparams.ecn && setCE(p) {
					s.cstats.ecnMark++
					if s.metrics != nil {
						s.metrics.ECNMarks.Inc()
					}
					vars.dropNext = controlLaw(vars.dropNext,
						s.cparams.interval, vars.recInvSqrt)
					break
				}
				if p != nil {
					s.cstats.dropLen += uint32(p.Length())
					s.cstats.dropCount++
					s.dropPacket(p, dropReasonCodel)
				}
				p = s.flowPull(f)
				if p != nil && !s.shouldDrop(f, p, now) {
					vars.dropping = false
				} else {
					vars.dropNext = controlLaw(vars.dropNext,
						s.cparams.interval, vars.recInvSqrt)
				}
			}
		}
	} else if drop {
		if s.cparams.ecn && setCE(p) {
			s.cstats.ecnMark++
			if s.metrics != nil {
				s.metrics.ECNMarks.Inc()
			}
		} else {
			s.cstats.dropLen += uint32(p.Length())
			s.cstats.dropCount++
			s.dropPacket(p, dropReasonCodel)
			p = s.flowPull(f)
			// Re-evaluate to refresh lDelay for the new candidate.
			s.shouldDrop(f, p, now)
		}
		vars.dropping = true
		// If we went above target close to when we last left the
		// dropping state, the drop rate that controlled the queue on
		// the previous cycle is a good starting point.
		delta := vars.count - vars.lastCount
		if delta > 1 && codelTimeBefore(now-vars.dropNext, 16*s.cparams.interval) {
			vars.count = delta
			vars.newtonStep()
		} else {
			vars.count = 1
			vars.recInvSqrt = ^uint16(0)
		}
		vars.lastCount = vars.count
		vars.dropNext = controlLaw(now, s.cparams.interval, vars.recInvSqrt)
	}
	if p != nil && s.cparams.ceThreshold != 0 &&
		codelTimeAfter(vars.lDelay, s.cparams.ceThreshold) && setCE(p) {
		s.cstats.ceMark++
		if s.metrics != nil {
			s.metrics.CEMarks.Inc()
		}
	}
	return p
}
