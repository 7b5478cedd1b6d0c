package quicflow

import (
	"time"

	"github.com/bgpfix/flowan/analyzer"
	"github.com/bgpfix/flowan/record"
)

// Adapter wires quicflow.Flow into the analyzer.Analyzer lifecycle
// contract. It also exposes the last decrypted Initial payload for the
// same on_layer4 call so tlsflow can read it without a direct dependency
// on quicflow's internal types (spec §4.I dependency note).
type Adapter struct {
	flows map[analyzer.FlowIndex]*Flow

	// lastCrypto holds the CRYPTO-frame bytes decrypted during the most
	// recent OnLayer4 call, keyed by flow, consumed by tlsflow.Adapter in
	// the same Runtime.OnLayer4 fan-out.
	lastCrypto map[analyzer.FlowIndex][]byte
}

// NewAdapter returns a ready-to-register Adapter.
func NewAdapter() *Adapter {
	return &Adapter{
		flows:      make(map[analyzer.FlowIndex]*Flow),
		lastCrypto: make(map[analyzer.FlowIndex][]byte),
	}
}

func (a *Adapter) Name() string        { return "quicflow" }
func (a *Adapter) Version() string     { return "1.0.0" }
func (a *Adapter) CoreVersion() string { return "1.0" }
func (a *Adapter) Depends() []string   { return nil }

func (a *Adapter) Init() error { return nil }

func (a *Adapter) PrintHeader() *record.Schema {
	s := record.NewSchema()
	s.Add("quic_stat", "QUIC status/anomaly bitset", record.KindUint64, false)
	s.Add("quic_packet_types", "bitset of long-header packet types observed", record.KindUint32, false)
	s.Add("quic_version", "last observed QUIC version", record.KindUint32, false)
	s.Add("quic_first_client_dcid", "destination CID chosen by the client's first Initial", record.KindString, false)
	return s
}

// LastCrypto returns the CRYPTO-frame payload decrypted for idx during the
// current OnLayer4 call, or nil if no Initial packet was decrypted for it.
// Consumed by tlsflow.Adapter, which is declared dependent on this
// analyzer so it always runs after quicflow in the same Runtime fan-out.
func (a *Adapter) LastCrypto(idx analyzer.FlowIndex) []byte {
	return a.lastCrypto[idx]
}

func (a *Adapter) OnNewFlow(pkt *analyzer.PacketView, flow *analyzer.FlowView, idx analyzer.FlowIndex) {
	f := NewFlow()
	if flow.HasOpposite {
		if opp, ok := a.flows[flow.Opposite]; ok && opp.FirstClientDCID != nil {
			f.FirstClientDCID = opp.FirstClientDCID
		}
	}
	a.flows[idx] = f
}

func (a *Adapter) OnLayer4(pkt *analyzer.PacketView, flow *analyzer.FlowView, idx analyzer.FlowIndex) {
	delete(a.lastCrypto, idx)

	f, ok := a.flows[idx]
	if !ok || len(pkt.L7) == 0 {
		return
	}

	firstSeen := flow.FirstSeen
	if firstSeen.IsZero() {
		firstSeen = time.Unix(int64(pkt.Sec), int64(pkt.USec)*1000).UTC()
	}
	if !LooksLikeQUIC(flow.SrcPort, flow.DstPort, firstSeen, pkt.L7[0]) {
		return
	}
	f.Stat |= StatQUIC

	h, err := ParseLongHeader(pkt.L7)
	if err != nil {
		if err == ErrShortHeader {
			f.Stat |= StatShortHeader
		}
		return
	}
	f.observe(h)

	isClient := flow.Side == analyzer.DirA
	if isClient && f.FirstClientDCID == nil && h.Type == PacketInitial {
		f.FirstClientDCID = append([]byte(nil), h.DCID...)
	}
	if f.FirstClientDCID == nil {
		// no client Initial observed yet on either side; cannot derive keys.
		return
	}

	_, frames, err := ProcessInitial(pkt.L7, f.FirstClientDCID, isClient)
	switch {
	case err == ErrUnsupportedVersion:
		f.Stat |= StatKeyDeriveFail
		return
	case err == ErrShortSample:
		f.Stat |= StatUnprotectFail
		return
	case err == ErrDecryptFailed:
		f.Stat |= StatDecryptFail
		return
	case err != nil:
		return
	}

	if len(frames) > 0 {
		f.DecryptedInitial = frames[0].Data
		a.lastCrypto[idx] = frames[0].Data
	}
}

func (a *Adapter) OnFlowTerminate(idx analyzer.FlowIndex, out *record.Buffer) {
	f, ok := a.flows[idx]
	if !ok {
		return
	}
	defer delete(a.flows, idx)
	defer delete(a.lastCrypto, idx)

	out.WriteUint64(uint64(f.Stat))
	out.WriteUint32(f.PacketTypes)
	out.WriteUint32(f.Version)
	out.WriteString(hexCID(f.FirstClientDCID))
}

func (a *Adapter) Finalize() {}

func hexCID(b []byte) string {
	const hexdig = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexdig[c>>4]
		out[i*2+1] = hexdig[c&0xf]
	}
	return string(out)
}

var _ analyzer.Analyzer = (*Adapter)(nil)
