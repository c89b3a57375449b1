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

package netpkt

import (
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/netqdisc/netqdisc/pkg/private/serrors"
)

var (
	synthSrcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	synthDstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// SynthUDP builds an Ethernet/IPv4/UDP frame with the given addressing and
// payload size. With ect set, the packet carries ECT(0) and is eligible
// for CE marking.
func SynthUDP(src, dst netip.AddrPort, payloadLen int, ect bool) (*Packet, error) {
	if !src.Addr().Is4() || !dst.Addr().Is4() {
		return nil, serrors.New("synthetic frames are IPv4 only",
			"src", src, "dst", dst)
	}
	var tos uint8
	if ect {
		tos = ecnECT0
	}
	eth := layers.Ethernet{
		SrcMAC:       synthSrcMAC,
		DstMAC:       synthDstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		IHL:      5,
		TOS:      tos,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    src.Addr().AsSlice(),
		DstIP:    dst.Addr().AsSlice(),
	}
	udp := layers.UDP{
		SrcPort: layers.UDPPort(src.Port()),
		DstPort: layers.UDPPort(dst.Port()),
	}
	if err := udp.SetNetworkLayerForChecksum(&ip); err != nil {
		return nil, serrors.Wrap("preparing udp checksum", err)
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	payload := make([]byte, payloadLen)
	if err := gopacket.SerializeLayers(buf, opts,
		&eth, &ip, &udp, gopacket.Payload(payload)); err != nil {
		return nil, serrors.Wrap("serializing frame", err)
	}
	data := make([]byte, len(buf.Bytes()))
	copy(data, buf.Bytes())
	return Parse(data)
}
