// Package analyzer defines the plugin/runtime lifecycle contract every
// protocol analyzer (bgpflow, quicflow, tlsflow)
// implements, the per-packet/per-flow views the runtime hands them, and
// the dependency-ordered registry that drives dispatch (spec §4.I / §6
// "Analyzer contract").
package analyzer

import (
	"io"
	"time"

	"github.com/bgpfix/flowan/record"
)

// FlowIndex is a dense, runtime-assigned flow identifier, stable for the
// lifetime of the flow (spec §3 "FlowIndex").
type FlowIndex uint32

// Dir marks which side of a bidirectional flow a packet belongs to.
type Dir uint8

const (
	DirA Dir = iota // first-seen side
	DirB            // opposite side
)

// PacketView is the read-only per-packet handle an analyzer receives in
// OnLayer4/OnLayer2. Valid only for the duration of that call (spec §3
// "PacketView ... Lifetime: one on_layer4 call only").
type PacketView struct {
	L7        []byte // L7 payload, possibly truncated at SnapLen
	SnapLen   int
	L3Proto   uint16 // ethertype
	L4Proto   uint8
	Sec, USec uint32
	Fragment  bool
	Status    uint32 // per-packet status bitset, runtime-defined bits
}

// FlowView is the read-only per-flow handle passed alongside a PacketView,
// carrying the flow tuple and topology (spec §3 "FlowView").
type FlowView struct {
	SrcIP, DstIP     [16]byte // IPv4 stored in the low 4 bytes
	IsIPv6           bool
	SrcPort, DstPort uint16
	VLAN             uint16
	L4Proto          uint8
	FirstSeen        time.Time
	Side             Dir
	Opposite         FlowIndex
	HasOpposite      bool
}

// Analyzer is the lifecycle contract every protocol analyzer implements
// (spec §6 "Analyzer contract"). Implementations keep their own per-flow
// state, keyed by FlowIndex and owned exclusively by the analyzer (spec §5
// "Memory ownership"). The analyzers in this module hold that state in a
// map keyed by FlowIndex, not in a dense array.
type Analyzer interface {
	// Name, Version, CoreVersion identify the analyzer for dependency
	// resolution and diagnostics.
	Name() string
	Version() string
	CoreVersion() string

	// Depends lists the names of analyzers that must run, for the same
	// packet, before this one (e.g. tlsflow depends on quicflow).
	Depends() []string

	// Init prepares process-wide state (subnet/fingerprint table loads,
	// counters). Called exactly once before any flow callback.
	Init() error

	// PrintHeader returns this analyzer's contribution to the shared
	// output schema, published once at startup.
	PrintHeader() *record.Schema

	// OnNewFlow is called exactly once per flow, strictly before any
	// OnLayer4 for that flow (spec §5 "Ordering guarantees").
	OnNewFlow(pkt *PacketView, flow *FlowView, idx FlowIndex)

	// OnLayer4 is called once per packet that carries an L7 payload for
	// this flow, after OnNewFlow and before OnFlowTerminate.
	OnLayer4(pkt *PacketView, flow *FlowView, idx FlowIndex)

	// OnFlowTerminate is called exactly once per flow, after every
	// OnLayer4 for that flow. out is borrowed for this call only (spec
	// §5 "The output buffer is owned by the runtime").
	OnFlowTerminate(idx FlowIndex, out *record.Buffer)

	// Finalize releases process-wide resources acquired in Init.
	Finalize()
}

// Layer2Analyzer is an optional extension for analyzers that also want
// raw L2 frames (spec §6 "optional on_layer2").
type Layer2Analyzer interface {
	OnLayer2(pkt *PacketView, flow *FlowView, idx FlowIndex)
}

// Reporter is an optional extension for analyzers that emit a
// human-readable status report (spec §6 "optional plugin_report").
type Reporter interface {
	PluginReport(w io.Writer) error
}
