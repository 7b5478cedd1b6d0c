package bgpflow

import (
	"net/netip"

	"github.com/puzpuzpuz/xsync/v4"
)

// OriginType mirrors the ORIGIN path attribute (lower is "better" per
// spec §4.F's best-path replacement rule).
type OriginType uint8

const (
	OriginIGP        OriginType = 0
	OriginEGP        OriginType = 1
	OriginIncomplete OriginType = 2
)

// RouteEntry is the best-known route for one prefix.
type RouteEntry struct {
	Prefix    netip.Prefix
	OriginAS  uint32
	ASPath    []uint32
	MED       uint32
	LocalPref uint32
	Origin    OriginType
}

// RoutingTable is the process-wide map of prefix -> best known route,
// shared across every bgpflow.Flow, used to detect MOAS changes and to
// apply the best-path replacement rule (spec §4.F "update the routing
// table"). Keyed by the prefix's string form for a plain comparable key.
// Entries are mutated only from the same serial parser thread (spec §5),
// so a plain Load-then-Store is sufficient; no compare-and-swap is needed.
type RoutingTable struct {
	routes *xsync.Map[string, *RouteEntry]
}

func NewRoutingTable() *RoutingTable {
	return &RoutingTable{routes: xsync.NewMap[string, *RouteEntry]()}
}

// MOASRecord is emitted when a prefix's origin AS changes while the new
// AS_PATH's last segment is a SEQUENCE (spec §4.F).
type MOASRecord struct {
	Network  netip.Addr
	Mask     uint8
	OldOrig  uint32
	NewOrig  uint32
	FlowNo   uint64
	PacketNo uint64
	RecordNo uint64
}

// betterThan reports whether candidate is a strictly better path than
// current for the same prefix (spec §4.F: "longer specific prefix, lower MED,
// shorter AS-path, higher local-pref, lower origin-type").
func betterThan(candidate, current RouteEntry) bool {
	if candidate.Prefix.Bits() != current.Prefix.Bits() {
		return candidate.Prefix.Bits() > current.Prefix.Bits()
	}
	if candidate.MED != current.MED {
		return candidate.MED < current.MED
	}
	if len(candidate.ASPath) != len(current.ASPath) {
		return len(candidate.ASPath) < len(current.ASPath)
	}
	if candidate.LocalPref != current.LocalPref {
		return candidate.LocalPref > current.LocalPref
	}
	return candidate.Origin < current.Origin
}

// Advertise applies a new route for prefix, replacing the existing best
// path unless that path is strictly better than cand (so a re-advertisement
// with equal attributes replaces it), and returns a MOASRecord plus true if
// the origin AS changed as a result and the path segment was a SEQUENCE.
// Because the table is process-wide, cand and the existing entry may come
// from entirely different flows/sessions, which is what makes MOAS
// detection (same prefix, conflicting origin AS, different peers)
// possible at all.
func (rib *RoutingTable) Advertise(cand RouteEntry, lastSegIsSequence bool) (MOASRecord, bool) {
	key := cand.Prefix.String()
	cur, ok := rib.routes.Load(key)
	if !ok {
		entry := cand
		rib.routes.Store(key, &entry)
		return MOASRecord{}, false
	}

	if betterThan(*cur, cand) {
		return MOASRecord{}, false
	}

	entry := cand
	rib.routes.Store(key, &entry)

	if cand.OriginAS != cur.OriginAS && lastSegIsSequence {
		return MOASRecord{
			Network: cand.Prefix.Addr(),
			Mask:    uint8(cand.Prefix.Bits()),
			OldOrig: cur.OriginAS,
			NewOrig: cand.OriginAS,
		}, true
	}
	return MOASRecord{}, false
}

// Withdraw removes prefix's entry unconditionally (spec §4.F "Withdrawn
// prefixes remove entries unconditionally").
func (rib *RoutingTable) Withdraw(p netip.Prefix) {
	rib.routes.Delete(p.String())
}

// Lookup returns the current best path for p, if any.
func (rib *RoutingTable) Lookup(p netip.Prefix) (RouteEntry, bool) {
	e, ok := rib.routes.Load(p.String())
	if !ok {
		return RouteEntry{}, false
	}
	return *e, true
}

// Len reports the number of distinct prefixes held, process-wide.
func (rib *RoutingTable) Len() int { return rib.routes.Size() }
