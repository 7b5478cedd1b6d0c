// Package bgpflow implements the stateful per-flow BGP-4 analyzer: record
// framing over a TCP byte stream, OPEN/UPDATE/NOTIFICATION/KEEPALIVE/
// ROUTE-REFRESH dispatch, AS-path and routing-table anomaly detection.
package bgpflow

import (
	"net/netip"
	"time"

	"github.com/bgpfix/flowan/caps"
)

// Stat is a bitset of per-flow statistics and anomaly flags, OR'd into
// Flow.Stat as they are observed. Naming mirrors the BGP_STAT_* / anomaly
// constants of the analyzer this package reimplements.
type Stat uint64

const (
	StatBGP Stat = 1 << iota // flow classified as BGP (srcPort or dstPort == 179)

	StatConnSync  // resynchronized on a non-aligned marker
	StatBadLen    // record length out of [19,4096]
	StatBadType   // record type not in [1,5]
	StatSnaplen   // truncated read, parse aborted for this packet

	StatVersion    // OPEN version != 4
	StatHoldTime   // OPEN hold time 1 or 2 (RFC4271 invalid-but-tolerated values)
	StatASMismatch // AS4 capability ASN disagrees with 2-byte ASN

	StatInvMask  // withdrawn-route or NLRI mask > 32
	StatPrepend  // AS_PATH contains a prepended (repeated) AS
	StatLoop     // AS_PATH contains the local AS (routing loop)
	StatPrivate  // AS_PATH contains a reserved/private ASN
	StatBlackhole // BLACKHOLE community observed
	StatMOAS     // Multiple-Origin-AS change observed
	StatBogon    // advertised/withdrawn prefix in a reserved range
	StatSpecPref // prefix length > 24
	StatLSpecPref // prefix length < 8
	StatNonIPv4NH // NEXT_HOP attribute not 4 bytes
)

// Peer holds the per-direction OPEN-negotiated state of one BGP speaker.
type Peer struct {
	ASN        uint32
	Use32bit   bool // true once CAP_AS4 has been observed in OPEN
	Identifier netip.Addr
	HoldTime   uint16
	Caps       map[caps.Code]bool
	AddPath    bool
}

// IATStats tracks inter-arrival time for a particular message type.
type IATStats struct {
	Count    uint64
	LastSeen time.Time
	MinIAT   time.Duration
	MaxIAT   time.Duration
	SumIAT   time.Duration
}

func (s *IATStats) Observe(now time.Time) {
	if !s.LastSeen.IsZero() {
		d := now.Sub(s.LastSeen)
		if s.Count == 0 || d < s.MinIAT {
			s.MinIAT = d
		}
		if d > s.MaxIAT {
			s.MaxIAT = d
		}
		s.SumIAT += d
	}
	s.LastSeen = now
	s.Count++
}

// Flow is the per-flow BGP analyzer state, created once a TCP flow is
// classified as BGP (port 179 on either side, spec §4.F).
type Flow struct {
	Stat Stat

	// FIndex identifies this flow to a shared Sink (e.g. FileSink), which
	// logs one combined anomaly/MOAS stream across every flow. Left at its
	// zero value when the caller does not need cross-flow identification.
	FIndex uint64

	Local, Remote Peer

	Updates    IATStats
	Keepalives IATStats
	Opens      IATStats

	// partial record left over from a prior packet, re-prefixed to the
	// next packet's payload before framing resumes
	pending []byte

	PacketNo uint64
	RecordNo uint64

	// Opposite is the analyzer state of the flow running in the reverse
	// direction of the same TCP connection, if seen, used to cross-populate
	// OPEN fields (spec §4.F "If the opposite flow exists...").
	Opposite *Flow

	// RIB is the process-wide routing table (spec §3/§4.F), shared by every
	// Flow the adapter creates; it is never owned by a single flow.
	RIB *RoutingTable

	Sink Sink
}

// Sink receives out-of-band anomaly and MOAS log records (spec §4.F
// "logged to an out-of-band anomalies file" / "MOAS file").
type Sink interface {
	Anomaly(flow *Flow, stat Stat, detail string)
	MOAS(rec MOASRecord)
}

// NewFlow returns a freshly classified BGP flow analyzer backed by rib,
// the process-wide routing table shared across all flows so that MOAS
// detection sees advertisements from every session, not just this one.
func NewFlow(sink Sink, rib *RoutingTable) *Flow {
	return &Flow{
		Stat: StatBGP,
		RIB:  rib,
		Sink: sink,
	}
}

func (f *Flow) flag(s Stat, detail string) {
	f.Stat |= s
	if f.Sink != nil {
		f.Sink.Anomaly(f, s, detail)
	}
}
