package capture

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTCPPacket(t *testing.T, srcIP, dstIP string, srcPort, dstPort uint16, payload []byte) gopacket.Packet {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(srcIP).To4(),
		DstIP:    net.ParseIP(dstIP).To4(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     1,
		ACK:     true,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip4))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip4, tcp, gopacket.Payload(payload)))

	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestTranslate_IPv4TCPFillsPacketAndFlowView(t *testing.T) {
	pkt := buildTCPPacket(t, "198.51.100.1", "203.0.113.1", 179, 54321, []byte("FFFFFFFFFFFFFFFFFFFF\x00\x00\x00\x1d\x01"))

	view, flow, key, ok := Translate(pkt, 65535)
	require.True(t, ok)

	assert.Equal(t, uint8(6), flow.L4Proto) // IPPROTO_TCP
	assert.False(t, flow.IsIPv6)
	assert.Equal(t, uint16(179), flow.SrcPort)
	assert.Equal(t, uint16(54321), flow.DstPort)
	assert.Equal(t, net.ParseIP("198.51.100.1").To4(), net.IP(flow.SrcIP[12:16]))
	assert.Equal(t, net.ParseIP("203.0.113.1").To4(), net.IP(flow.DstIP[12:16]))
	assert.NotEmpty(t, view.L7)
	assert.Equal(t, 65535, view.SnapLen)

	assert.Equal(t, "198.51.100.1", key.IPLo)
	assert.Equal(t, "203.0.113.1", key.IPHi)
	assert.Equal(t, uint16(179), key.PortLo)
	assert.Equal(t, uint16(54321), key.PortHi)
}

func TestTranslate_CanonicalKeyIsDirectionIndependent(t *testing.T) {
	fwd := buildTCPPacket(t, "198.51.100.1", "203.0.113.1", 179, 54321, nil)
	rev := buildTCPPacket(t, "203.0.113.1", "198.51.100.1", 54321, 179, nil)

	_, _, keyFwd, ok := Translate(fwd, 65535)
	require.True(t, ok)
	_, _, keyRev, ok := Translate(rev, 65535)
	require.True(t, ok)

	assert.Equal(t, keyFwd, keyRev)
}

func TestTranslate_NonIPPacketIsRejected(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0x02, 0, 0, 0, 0, 1},
		SourceProtAddress: []byte{198, 51, 100, 1},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{198, 51, 100, 2},
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, arp))
	pkt := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)

	_, _, _, ok := Translate(pkt, 65535)
	assert.False(t, ok)
}
