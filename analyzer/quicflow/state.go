package quicflow

// Stat is a bitset of per-flow QUIC status/anomaly flags.
type Stat uint64

const (
	StatQUIC Stat = 1 << iota // flow classified as QUIC (LooksLikeQUIC matched)
	StatVersionNegotiation
	StatRetry
	StatKeyDeriveFail
	StatUnprotectFail
	StatDecryptFail
	StatShortHeader // short-header packet seen (1-RTT, not decryptable here)
)

// packetTypeBit returns the bitset bit for a long-header packet type, used
// to build Flow.PacketTypes (spec §3 "packet-type bitset").
func packetTypeBit(t PacketType) uint32 { return 1 << uint(t) }

// Flow is the per-flow QUIC analyzer state (spec §3 "QUIC per-flow
// state"). FirstClientDCID is set exactly once, from the first Initial
// packet observed on the client (first-seen) side, and is shared with the
// opposite-direction Flow by the adapter so either side's Initial packets
// can derive the same secrets (spec invariant: "first_dst_cid is set
// exactly once per connection and shared between A/B sides via the
// opposite-flow reference").
type Flow struct {
	Stat        Stat
	PacketTypes uint32 // bitset over PacketType values observed

	Version uint32

	CurrentDCID, LastDCID []byte
	SCID                  []byte
	OrigDCID              []byte // set on a Retry packet
	FirstClientDCID       []byte

	// DecryptedInitial is valid only for the duration of the on_layer4
	// call that produced it; the TLS analyzer reads it in the same call
	// and must not retain a reference beyond it (spec §3).
	DecryptedInitial []byte
}

// NewFlow returns a fresh per-flow QUIC state.
func NewFlow() *Flow {
	return &Flow{}
}

// observe records a parsed long header's type, version and CIDs.
func (f *Flow) observe(h *Header) {
	f.PacketTypes |= packetTypeBit(h.Type)
	f.Version = h.Version
	f.LastDCID = f.CurrentDCID
	f.CurrentDCID = h.DCID
	f.SCID = h.SCID

	switch h.Type {
	case PacketRetry:
		f.Stat |= StatRetry
		if f.OrigDCID == nil {
			f.OrigDCID = h.DCID
		}
	}
	if h.Version == 0 {
		f.Stat |= StatVersionNegotiation
	}
}
