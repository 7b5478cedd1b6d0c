package bgpflow

import (
	"net"
	"time"

	"github.com/bgpfix/flowan/analyzer"
	"github.com/bgpfix/flowan/geo"
	"github.com/bgpfix/flowan/record"
)

// logSink collects anomalies and MOAS events for one flow, implementing
// Sink. Adapter.OnFlowTerminate reads anomalies and moas once.
type logSink struct {
	findex    uint64
	anomalies []Stat
	moas      []MOASRecord
}

func (s *logSink) Anomaly(flow *Flow, stat Stat, detail string) {
	s.anomalies = append(s.anomalies, stat)
}

func (s *logSink) MOAS(rec MOASRecord) {
	rec.FlowNo = s.findex
	s.moas = append(s.moas, rec)
}

// Adapter wires bgpflow.Flow into the analyzer.Analyzer lifecycle contract
// (spec §4.I / §6). Per-flow state is kept in a map rather than a
// runtime-sized dense array: this module does not own the capture
// runtime's flow-table capacity, and a map gives the same amortized O(1)
// access without inventing a configuration knob nothing else needs.
type Adapter struct {
	geo   *geo.Table // optional: enriches bgp_remote_country/bgp_remote_org
	flows map[analyzer.FlowIndex]*flowState
	rib   *RoutingTable // process-wide, shared by every flow (spec §3/§4.F)
}

type flowState struct {
	flow     *Flow
	sink     *logSink
	remoteIP net.IP
}

// NewAdapter returns a ready-to-register Adapter. table may be nil, in
// which case geo-enrichment fields are emitted empty.
func NewAdapter(table *geo.Table) *Adapter {
	return &Adapter{
		geo:   table,
		flows: make(map[analyzer.FlowIndex]*flowState),
		rib:   NewRoutingTable(),
	}
}

func (a *Adapter) Name() string        { return "bgpflow" }
func (a *Adapter) Version() string     { return "1.0.0" }
func (a *Adapter) CoreVersion() string { return "1.0" }
func (a *Adapter) Depends() []string   { return nil }

func (a *Adapter) Init() error { return nil }

func (a *Adapter) PrintHeader() *record.Schema {
	s := record.NewSchema()
	s.Add("bgp_stat", "BGP status/anomaly bitset", record.KindUint64, false)
	s.Add("bgp_local_asn", "local AS number", record.KindUint32, false)
	s.Add("bgp_remote_asn", "remote AS number", record.KindUint32, false)
	s.Add("bgp_hold_time", "negotiated hold time", record.KindUint16, false)
	s.Add("bgp_num_open", "OPEN message count", record.KindUint64, false)
	s.Add("bgp_num_update", "UPDATE message count", record.KindUint64, false)
	s.Add("bgp_num_keepalive", "KEEPALIVE message count", record.KindUint64, false)
	s.Add("bgp_rib_size", "process-wide routing table size when this flow terminated", record.KindUint32, false)
	s.Add("bgp_anomalies", "anomaly stat values observed, one per occurrence", record.KindUint64, true)
	s.AddCompound("bgp_moas", "MOAS records raised by this flow", true,
		record.Leaf("network", "advertised network", record.KindIP4),
		record.Leaf("mask", "prefix length", record.KindUint8),
		record.Leaf("old_orig", "previous origin AS", record.KindUint32),
		record.Leaf("new_orig", "new origin AS", record.KindUint32),
		record.Leaf("pkt", "packet number", record.KindUint64),
		record.Leaf("rec", "record number", record.KindUint64),
	)
	s.Add("bgp_remote_country", "remote peer country, from the geo table", record.KindString, false)
	s.Add("bgp_remote_org", "remote peer organization, from the geo table", record.KindString, false)
	s.Add("bgp_remote_geo_asn", "remote peer ASN, from the geo table (may differ from bgp_remote_asn)", record.KindUint32, false)
	return s
}

func (a *Adapter) OnNewFlow(pkt *analyzer.PacketView, flow *analyzer.FlowView, idx analyzer.FlowIndex) {
	sink := &logSink{findex: uint64(idx)}
	fs := &flowState{flow: NewFlow(sink, a.rib), sink: sink}
	fs.flow.FIndex = uint64(idx)
	if flow.IsIPv6 {
		fs.remoteIP = net.IP(flow.DstIP[:])
	} else {
		fs.remoteIP = net.IP(flow.DstIP[12:16])
	}
	if flow.HasOpposite {
		if opp, ok := a.flows[flow.Opposite]; ok {
			fs.flow.Opposite = opp.flow
			opp.flow.Opposite = fs.flow
			fs.flow.Remote = opp.flow.Local
		}
	}
	a.flows[idx] = fs
}

func (a *Adapter) OnLayer4(pkt *analyzer.PacketView, flow *analyzer.FlowView, idx analyzer.FlowIndex) {
	fs, ok := a.flows[idx]
	if !ok || len(pkt.L7) == 0 {
		return
	}
	now := time.Unix(int64(pkt.Sec), int64(pkt.USec)*1000).UTC()
	fs.flow.Feed(pkt.L7, now)
}

func (a *Adapter) OnFlowTerminate(idx analyzer.FlowIndex, out *record.Buffer) {
	fs, ok := a.flows[idx]
	if !ok {
		return
	}
	defer delete(a.flows, idx)

	f := fs.flow
	out.WriteUint64(uint64(f.Stat))
	out.WriteUint32(f.Local.ASN)
	out.WriteUint32(f.Remote.ASN)
	out.WriteUint16(f.Local.HoldTime)
	out.WriteUint64(f.Opens.Count)
	out.WriteUint64(f.Updates.Count)
	out.WriteUint64(f.Keepalives.Count)

	rib := 0
	if f.RIB != nil {
		rib = f.RIB.Len()
	}
	out.WriteUint32(uint32(rib))

	out.BeginRepeat(uint32(len(fs.sink.anomalies)))
	for _, stat := range fs.sink.anomalies {
		out.WriteUint64(uint64(stat))
	}

	out.BeginRepeat(uint32(len(fs.sink.moas)))
	for _, m := range fs.sink.moas {
		out.WriteIP4(m.Network.As4())
		out.WriteUint8(m.Mask)
		out.WriteUint32(m.OldOrig)
		out.WriteUint32(m.NewOrig)
		out.WriteUint64(m.PacketNo)
		out.WriteUint64(m.RecordNo)
	}

	var country, org string
	var geoASN uint32
	if a.geo != nil && fs.remoteIP != nil {
		if _, entry := a.geo.LookupIPv4(fs.remoteIP); entry.Country != "" || entry.ASN != 0 {
			country = entry.Country
			org = entry.Org
			geoASN = entry.ASN
		}
	}
	out.WriteString(country)
	out.WriteString(org)
	out.WriteUint32(geoASN)
}

func (a *Adapter) Finalize() {}

var _ analyzer.Analyzer = (*Adapter)(nil)
