package bgpflow

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	anomalies []Stat
	moas      []MOASRecord
}

func (s *recordingSink) Anomaly(flow *Flow, stat Stat, detail string) {
	s.anomalies = append(s.anomalies, stat)
}
func (s *recordingSink) MOAS(rec MOASRecord) {
	s.moas = append(s.moas, rec)
}

func appendU16(b []byte, v uint16) []byte { return append(b, byte(v>>8), byte(v)) }

func buildHeader(length uint16, typ byte) []byte {
	buf := make([]byte, 0, 19)
	for i := 0; i < 16; i++ {
		buf = append(buf, 0xff)
	}
	buf = appendU16(buf, length)
	buf = append(buf, typ)
	return buf
}

func buildOpen(asn uint16, routerID [4]byte, hold uint16) []byte {
	body := []byte{4} // version
	body = appendU16(body, asn)
	body = appendU16(body, hold)
	body = append(body, routerID[:]...)
	body = append(body, 0) // no optional parameters
	hdr := buildHeader(uint16(19+len(body)), msgOpen)
	return append(hdr, body...)
}

func attrHeader(flags, code byte, val []byte) []byte {
	out := []byte{flags, code, byte(len(val))}
	return append(out, val...)
}

func buildUpdate(prefix []byte, mask byte, asPath []uint16, nextHop [4]byte, origin byte) []byte {
	var attrs []byte
	attrs = append(attrs, attrHeader(0x40, attrOrigin, []byte{origin})...)

	var asPathVal []byte
	asPathVal = append(asPathVal, asPathSegSequence, byte(len(asPath)))
	for _, a := range asPath {
		asPathVal = appendU16(asPathVal, a)
	}
	attrs = append(attrs, attrHeader(0x40, attrASPath, asPathVal)...)
	attrs = append(attrs, attrHeader(0x40, attrNextHop, nextHop[:])...)

	nlri := append([]byte{mask}, prefix[:(int(mask)+7)/8]...)

	body := appendU16(nil, 0) // no withdrawn routes
	body = appendU16(body, uint16(len(attrs)))
	body = append(body, attrs...)
	body = append(body, nlri...)

	hdr := buildHeader(uint16(19+len(body)), msgUpdate)
	return append(hdr, body...)
}

// Scenario S1 (spec §8): OPEN AS 65000 + UPDATE advertising 10.0.0.0/8 with
// AS-path {65000,65001}, NEXT_HOP 10.0.0.1, ORIGIN IGP.
func TestScenario_S1_BGPOpenAndUpdate(t *testing.T) {
	sink := &recordingSink{}
	flow := NewFlow(sink, NewRoutingTable())

	openPkt := buildOpen(65000, [4]byte{10, 0, 0, 1}, 90)
	flow.Feed(openPkt, time.Unix(0, 0))

	assert.Equal(t, uint32(65000), flow.Local.ASN)
	assert.Equal(t, uint64(1), flow.Opens.Count)

	updatePkt := buildUpdate([]byte{10, 0, 0, 0}, 8, []uint16{65000, 65001}, [4]byte{10, 0, 0, 1}, byte(OriginIGP))
	flow.Feed(updatePkt, time.Unix(1, 0))

	assert.Equal(t, uint64(1), flow.Updates.Count)
	assert.NotZero(t, flow.Stat&StatBGP)

	route, ok := flow.RIB.Lookup(mustPrefix(t, "10.0.0.0/8"))
	require.True(t, ok)
	assert.Equal(t, uint32(65001), route.OriginAS)
}

// Scenario S2 (spec §8): replay S1, then a second UPDATE for the same
// prefix with a different origin AS -> MOAS record + anomaly flag.
func TestScenario_S2_MOASDetected(t *testing.T) {
	sink := &recordingSink{}
	flow := NewFlow(sink, NewRoutingTable())

	flow.Feed(buildOpen(65000, [4]byte{10, 0, 0, 1}, 90), time.Unix(0, 0))
	flow.Feed(buildUpdate([]byte{10, 0, 0, 0}, 8, []uint16{65000, 65001}, [4]byte{10, 0, 0, 1}, byte(OriginIGP)), time.Unix(1, 0))
	flow.Feed(buildUpdate([]byte{10, 0, 0, 0}, 8, []uint16{65000, 65002}, [4]byte{10, 0, 0, 1}, byte(OriginIGP)), time.Unix(2, 0))

	require.Len(t, sink.moas, 1)
	rec := sink.moas[0]
	assert.Equal(t, uint32(65001), rec.OldOrig)
	assert.Equal(t, uint32(65002), rec.NewOrig)
	assert.NotZero(t, flow.Stat&StatMOAS)
}

// TestScenario_CrossFlowMOASDetected proves MOAS detection works across two
// independent BGP sessions (two Flow instances, e.g. two different peers or
// two halves of a capture) that share one process-wide RoutingTable, rather
// than only within a single replayed flow as in S1/S2.
func TestScenario_CrossFlowMOASDetected(t *testing.T) {
	rib := NewRoutingTable()

	sinkA := &recordingSink{}
	flowA := NewFlow(sinkA, rib)
	flowA.FIndex = 1
	flowA.Feed(buildOpen(65000, [4]byte{10, 0, 0, 1}, 90), time.Unix(0, 0))
	flowA.Feed(buildUpdate([]byte{10, 0, 0, 0}, 8, []uint16{65000, 65001}, [4]byte{10, 0, 0, 1}, byte(OriginIGP)), time.Unix(1, 0))
	assert.Empty(t, sinkA.moas)

	sinkB := &recordingSink{}
	flowB := NewFlow(sinkB, rib)
	flowB.FIndex = 2
	flowB.Feed(buildOpen(65099, [4]byte{10, 0, 0, 2}, 90), time.Unix(0, 0))
	flowB.Feed(buildUpdate([]byte{10, 0, 0, 0}, 8, []uint16{65099, 65002}, [4]byte{10, 0, 0, 2}, byte(OriginIGP)), time.Unix(1, 0))

	require.Len(t, sinkB.moas, 1)
	rec := sinkB.moas[0]
	assert.Equal(t, uint32(65001), rec.OldOrig)
	assert.Equal(t, uint32(65002), rec.NewOrig)
	assert.Equal(t, uint64(2), rec.FlowNo)
	assert.NotZero(t, flowB.Stat&StatMOAS)

	route, ok := rib.Lookup(mustPrefix(t, "10.0.0.0/8"))
	require.True(t, ok)
	assert.Equal(t, uint32(65002), route.OriginAS)
}

func TestFeed_MarkerResync(t *testing.T) {
	sink := &recordingSink{}
	flow := NewFlow(sink, NewRoutingTable())

	garbage := []byte{0x01, 0x02, 0x03}
	pkt := append(garbage, buildOpen(100, [4]byte{1, 1, 1, 1}, 90)...)
	flow.Feed(pkt, time.Unix(0, 0))

	assert.NotZero(t, flow.Stat&StatConnSync)
	assert.Equal(t, uint32(100), flow.Local.ASN)
}

func TestFeed_BadLength_AbortsPacketOnly(t *testing.T) {
	sink := &recordingSink{}
	flow := NewFlow(sink, NewRoutingTable())

	hdr := buildHeader(10, msgKeepalive) // below minRecordLen
	flow.Feed(hdr, time.Unix(0, 0))
	assert.NotZero(t, flow.Stat&StatBadLen)

	// the flow keeps working on the next packet
	flow.Feed(buildOpen(200, [4]byte{2, 2, 2, 2}, 90), time.Unix(1, 0))
	assert.Equal(t, uint32(200), flow.Local.ASN)
}

func TestAnalyzeASPath_DetectsPrependLoopAndPrivate(t *testing.T) {
	segs := []ASPathSegment{
		{Type: asPathSegSequence, ASNs: []uint32{65000, 65000, 64512, 100}},
	}
	a := analyzeASPath(segs, 100)
	assert.Equal(t, 1, a.Prepends)
	assert.True(t, a.Loop)
	assert.True(t, a.Private)
}

func TestParseASPath_AutoDetects32Bit(t *testing.T) {
	// a single segment with a 32-bit ASN that would misparse as 2-byte
	val := []byte{asPathSegSequence, 1, 0, 1, 0x86, 0xa0} // AS 65536+34464 = 100000
	segs, is32 := parseASPath(val)
	require.True(t, is32)
	require.Len(t, segs, 1)
	assert.Equal(t, uint32(100000), segs[0].ASNs[0])
}

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	require.NoError(t, err)
	return p
}
