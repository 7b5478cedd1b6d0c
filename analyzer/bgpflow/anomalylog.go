package bgpflow

import (
	"fmt"
	"io"
	"sync"

	"github.com/bgpfix/flowan/metrics"
)

// tagFor maps a single anomaly Stat bit to the tab-separated log tag it is
// reported under (spec §6 "Anomaly log files"). MSPEC (prefix mask
// widening/narrowing over time) has no corresponding Stat bit: this
// package flags SPEC24/SPEC8/BOGON individually rather than tracking a
// prefix's mask history, the same simplification already recorded for the
// advpref histogram.
var tagFor = map[Stat]string{
	StatPrivate:   "PRIVAS",
	StatLoop:      "LOOP",
	StatPrepend:   "NPREPAS",
	StatBlackhole: "BLACKHOLE",
	StatSpecPref:  "SPEC24",
	StatLSpecPref: "SPEC8",
	StatBogon:     "BOGON",
}

// FileSink writes Anomaly/MOAS callbacks to two tab-separated files (spec
// §6): `<tag> <flow_index> <pkt_no> <record_no> <args...>` for anomalies,
// and the MOAS fields on their own line in the second file. Both writes
// are serialized by mu since several *Flow instances (one per TCP flow)
// share one FileSink across the single-threaded analyzer dispatch.
type FileSink struct {
	mu        sync.Mutex
	anomalies io.Writer
	moas      io.Writer
}

// NewFileSink wraps the two already-open log files. Either may be nil to
// discard that stream.
func NewFileSink(anomalies, moas io.Writer) *FileSink {
	return &FileSink{anomalies: anomalies, moas: moas}
}

func (s *FileSink) Anomaly(flow *Flow, stat Stat, detail string) {
	tag, ok := tagFor[stat]
	if !ok {
		tag = "STAT"
	}
	metrics.Anomalies.WithLabelValues("bgpflow", tag).Inc()

	if s.anomalies == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.anomalies, "%s\t%d\t%d\t%d\t%s\n", tag, flow.FIndex, flow.PacketNo, flow.RecordNo, detail)
}

func (s *FileSink) MOAS(rec MOASRecord) {
	if s.moas == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.moas, "MOAS\t%d\t%d\t%d\t%s/%d\t%d\t%d\n",
		rec.FlowNo, rec.PacketNo, rec.RecordNo, rec.Network, rec.Mask, rec.OldOrig, rec.NewOrig)
}

var _ Sink = (*FileSink)(nil)
