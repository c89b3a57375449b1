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

// Package netpkt implements the scheduler's packet contract on top of raw
// Ethernet frames. The flow identity is the transport 5-tuple when the
// frame parses as IPv4/IPv6 with TCP or UDP on top, and the whole frame
// otherwise. CE marking rewrites the ECN bits in place, patching the IPv4
// header checksum incrementally.
package netpkt

import (
	"encoding/binary"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/netqdisc/netqdisc/fqcodel"
	"github.com/netqdisc/netqdisc/pkg/private/serrors"
)

const (
	// queueOverhead approximates the per-packet buffer bookkeeping cost
	// beyond the wire bytes; it feeds the memory footprint accounting.
	queueOverhead = 192

	ethHeaderLen = 14

	ecnNotECT = 0x0
	ecnECT1   = 0x1
	ecnECT0   = 0x2
	ecnCE     = 0x3
)

// Packet is a parsed Ethernet frame. It embeds the scheduler Meta so that
// queueing it allocates nothing.
type Packet struct {
	data []byte
	meta fqcodel.Meta

	// tuple is the canonical flow identity: both addresses, the protocol
	// and both ports, fixed-width so hashing never allocates. tupleLen
	// is 13 for IPv4, 37 for IPv6, and 0 for frames without a 5-tuple,
	// in which case hashing walks the raw frame instead.
	tuple    [37]byte
	tupleLen int

	ipv4 bool
	ipv6 bool
}

// Parse decodes the frame. Frames that are not IPv4/IPv6 with TCP or UDP
// are still accepted; their flow identity is the raw frame content.
func Parse(data []byte) (*Packet, error) {
	if len(data) < ethHeaderLen {
		return nil, serrors.New("truncated ethernet frame", "len", len(data))
	}
	p := &Packet{data: data}

	var (
		eth     layers.Ethernet
		ip4     layers.IPv4
		ip6     layers.IPv6
		tcp     layers.TCP
		udp     layers.UDP
		decoded []gopacket.LayerType
	)
	parser := gopacket.NewDecodingLayerParser(
		layers.LayerTypeEthernet, &eth, &ip4, &ip6, &tcp, &udp)
	parser.IgnoreUnsupported = true
	if err := parser.DecodeLayers(data, &decoded); err != nil {
		return p, nil
	}

	var sport, dport uint16
	var haveL4 bool
	for _, t := range decoded {
		switch t {
		case layers.LayerTypeIPv4:
			p.ipv4 = true
		case layers.LayerTypeIPv6:
			p.ipv6 = true
		case layers.LayerTypeTCP:
			sport, dport = uint16(tcp.SrcPort), uint16(tcp.DstPort)
			haveL4 = true
		case layers.LayerTypeUDP:
			sport, dport = uint16(udp.SrcPort), uint16(udp.DstPort)
			haveL4 = true
		}
	}
	switch {
	case p.ipv4 && haveL4:
		n := copy(p.tuple[:], ip4.SrcIP.To4())
		n += copy(p.tuple[n:], ip4.DstIP.To4())
		p.tuple[n] = uint8(ip4.Protocol)
		binary.BigEndian.PutUint16(p.tuple[n+1:], sport)
		binary.BigEndian.PutUint16(p.tuple[n+3:], dport)
		p.tupleLen = n + 5
	case p.ipv6 && haveL4:
		n := copy(p.tuple[:], ip6.SrcIP.To16())
		n += copy(p.tuple[n:], ip6.DstIP.To16())
		p.tuple[n] = uint8(ip6.NextHeader)
		binary.BigEndian.PutUint16(p.tuple[n+1:], sport)
		binary.BigEndian.PutUint16(p.tuple[n+3:], dport)
		p.tupleLen = n + 5
	default:
		p.ipv4, p.ipv6 = false, false
	}
	return p, nil
}

// Data returns the raw frame.
func (p *Packet) Data() []byte { return p.data }

// Length implements fqcodel.Packet.
func (p *Packet) Length() int { return len(p.data) }

// Footprint implements fqcodel.Packet.
func (p *Packet) Footprint() int { return len(p.data) + queueOverhead }

// Meta implements fqcodel.Packet.
func (p *Packet) Meta() *fqcodel.Meta { return &p.meta }

// FlowHash implements fqcodel.Packet.
func (p *Packet) FlowHash() uint32 {
	return p.hashFrom(fnv1aOffset32)
}

// FlowHashPerturb implements fqcodel.Packet. The seed is folded into the
// hash state before the flow identity.
func (p *Packet) FlowHashPerturb(seed uint32) uint32 {
	state := fnv1aOffset32
	state = hashFNV1a(state, byte(seed))
	state = hashFNV1a(state, byte(seed>>8))
	state = hashFNV1a(state, byte(seed>>16))
	state = hashFNV1a(state, byte(seed>>24))
	return p.hashFrom(state)
}

func (p *Packet) hashFrom(state uint32) uint32 {
	if p.tupleLen > 0 {
		for _, c := range p.tuple[:p.tupleLen] {
			state = hashFNV1a(state, c)
		}
		return state
	}
	for _, c := range p.data {
		state = hashFNV1a(state, c)
	}
	return state
}

func (p *Packet) ecnBits() uint8 {
	switch {
	case p.ipv4:
		return p.data[ethHeaderLen+1] & 0x3
	case p.ipv6:
		return (p.data[ethHeaderLen+1] >> 4) & 0x3
	}
	return ecnNotECT
}

// ECNCapable implements fqcodel.Packet: true iff the packet carries ECT(0)
// or ECT(1).
func (p *Packet) ECNCapable() bool {
	b := p.ecnBits()
	return b == ecnECT0 || b == ecnECT1
}

// MarkCE implements fqcodel.Packet. Marking an IPv4 packet patches the
// header checksum per RFC 1624.
func (p *Packet) MarkCE() {
	switch {
	case p.ipv4:
		tosOff := ethHeaderLen + 1
		old := binary.BigEndian.Uint16(p.data[ethHeaderLen:])
		p.data[tosOff] |= ecnCE
		updateChecksum(p.data, ethHeaderLen+10, old,
			binary.BigEndian.Uint16(p.data[ethHeaderLen:]))
	case p.ipv6:
		p.data[ethHeaderLen+1] |= ecnCE << 4
	}
}

// updateChecksum folds the change of one 16-bit header word into the ones'
// complement checksum at csumOff (RFC 1624, eqn. 3).
func updateChecksum(data []byte, csumOff int, old16, new16 uint16) {
	csum := binary.BigEndian.Uint16(data[csumOff:])
	sum := uint32(^csum) + uint32(^old16) + uint32(new16)
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	binary.BigEndian.PutUint16(data[csumOff:], ^uint16(sum))
}
