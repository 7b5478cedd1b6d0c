// Package capture adapts decoded gopacket frames into the analyzer
// package's read-only PacketView/FlowView handles. It is the boundary the
// runtime sits behind: the capture loop itself (pcap handle, BPF filter,
// live vs offline source) is the caller's concern, not this package's —
// only the per-packet translation lives here.
package capture

import (
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/bgpfix/flowan/analyzer"
)

// FlowKey identifies a bidirectional flow by its canonical (lower IP:port
// first) 5-tuple, so that packets from either direction of the same
// connection hash to the same key.
type FlowKey struct {
	IPLo, IPHi     string
	PortLo, PortHi uint16
	Proto          uint8
}

// Translate decodes one gopacket.Packet into a PacketView and the
// flow-identifying fields of a FlowView. side reports which canonical
// direction this packet travels in, for the caller's flow table to set
// FlowView.Side/Opposite/HasOpposite (those fields are a property of the
// flow, not of a single packet, so they are not filled in here).
//
// ok is false for packets with neither an IPv4 nor IPv6 network layer
// (ARP, pure L2), which this analyzer set has no use for.
func Translate(pkt gopacket.Packet, snapLen int) (view analyzer.PacketView, flow analyzer.FlowView, key FlowKey, ok bool) {
	md := pkt.Metadata()
	if md != nil {
		sec := md.Timestamp.Unix()
		usec := md.Timestamp.Nanosecond() / 1000
		view.Sec = uint32(sec)
		view.USec = uint32(usec)
	}
	view.SnapLen = snapLen

	var srcIP, dstIP net.IP
	switch {
	case pkt.Layer(layers.LayerTypeIPv4) != nil:
		ip4 := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		srcIP, dstIP = ip4.SrcIP, ip4.DstIP
		flow.L4Proto = uint8(ip4.Protocol)
		view.L3Proto = uint16(layers.EthernetTypeIPv4)
		view.Fragment = ip4.FragOffset != 0 || ip4.Flags&layers.IPv4MoreFragments != 0
	case pkt.Layer(layers.LayerTypeIPv6) != nil:
		ip6 := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		srcIP, dstIP = ip6.SrcIP, ip6.DstIP
		flow.L4Proto = uint8(ip6.NextHeader)
		flow.IsIPv6 = true
		view.L3Proto = uint16(layers.EthernetTypeIPv6)
	default:
		return view, flow, key, false
	}
	copyIP(flow.SrcIP[:], srcIP)
	copyIP(flow.DstIP[:], dstIP)
	view.L4Proto = flow.L4Proto

	switch {
	case pkt.Layer(layers.LayerTypeTCP) != nil:
		tcp := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
		flow.SrcPort, flow.DstPort = uint16(tcp.SrcPort), uint16(tcp.DstPort)
		view.L7 = tcp.Payload
	case pkt.Layer(layers.LayerTypeUDP) != nil:
		udp := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
		flow.SrcPort, flow.DstPort = uint16(udp.SrcPort), uint16(udp.DstPort)
		view.L7 = udp.Payload
	}

	if vlan := pkt.Layer(layers.LayerTypeDot1Q); vlan != nil {
		flow.VLAN = vlan.(*layers.Dot1Q).VLANIdentifier
	}

	if md != nil {
		flow.FirstSeen = md.Timestamp
	} else {
		flow.FirstSeen = time.Now().UTC()
	}

	key = canonicalKey(srcIP.String(), dstIP.String(), flow.SrcPort, flow.DstPort, flow.L4Proto)
	return view, flow, key, true
}

// copyIP stores ip right-aligned in dst, matching FlowView's "IPv4 stored
// in the low 4 bytes" convention for 16-byte fields.
func copyIP(dst []byte, ip net.IP) {
	if v4 := ip.To4(); v4 != nil {
		copy(dst[12:16], v4)
		return
	}
	if v6 := ip.To16(); v6 != nil {
		copy(dst, v6)
	}
}

// canonicalKey orders the two endpoints so that both packet directions of
// one connection produce the same FlowKey.
func canonicalKey(ipA, ipB string, portA, portB uint16, proto uint8) FlowKey {
	if ipA < ipB || (ipA == ipB && portA <= portB) {
		return FlowKey{IPLo: ipA, IPHi: ipB, PortLo: portA, PortHi: portB, Proto: proto}
	}
	return FlowKey{IPLo: ipB, IPHi: ipA, PortLo: portB, PortHi: portA, Proto: proto}
}
