package bgpflow

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileSink_AnomalyWritesTaggedTSVLine(t *testing.T) {
	var anomalies bytes.Buffer
	sink := NewFileSink(&anomalies, nil)

	flow := NewFlow(sink, NewRoutingTable())
	flow.FIndex = 7
	flow.PacketNo = 42
	flow.RecordNo = 3

	flow.flag(StatLoop, "as-path loop: local as present")

	assert.Equal(t, "LOOP\t7\t42\t3\tas-path loop: local as present\n", anomalies.String())
}

func TestFileSink_UnmappedStatUsesGenericTag(t *testing.T) {
	var anomalies bytes.Buffer
	sink := NewFileSink(&anomalies, nil)

	flow := NewFlow(sink, NewRoutingTable())
	flow.flag(StatVersion, "OPEN version != 4")

	assert.Contains(t, anomalies.String(), "STAT\t")
}

func TestFileSink_MOASWritesToSeparateStream(t *testing.T) {
	var anomalies, moas bytes.Buffer
	sink := NewFileSink(&anomalies, &moas)

	sink.MOAS(MOASRecord{
		Network:  netip.MustParseAddr("198.51.100.0"),
		Mask:     24,
		OldOrig:  65001,
		NewOrig:  65002,
		FlowNo:   1,
		PacketNo: 2,
		RecordNo: 3,
	})

	assert.Equal(t, 0, anomalies.Len())
	assert.Equal(t, "MOAS\t1\t2\t3\t198.51.100.0/24\t65001\t65002\n", moas.String())
}

func TestFileSink_NilStreamsAreNoOps(t *testing.T) {
	sink := NewFileSink(nil, nil)
	flow := NewFlow(sink, NewRoutingTable())
	assert.NotPanics(t, func() {
		flow.flag(StatLoop, "detail")
		sink.MOAS(MOASRecord{})
	})
}
