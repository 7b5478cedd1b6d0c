package analyzer

import (
	"testing"

	"github.com/bgpfix/flowan/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalyzer struct {
	name    string
	depends []string
	calls   *[]string
}

func (s *stubAnalyzer) Name() string        { return s.name }
func (s *stubAnalyzer) Version() string     { return "0.0.1" }
func (s *stubAnalyzer) CoreVersion() string { return "1.0" }
func (s *stubAnalyzer) Depends() []string   { return s.depends }
func (s *stubAnalyzer) Init() error         { *s.calls = append(*s.calls, "init:"+s.name); return nil }
func (s *stubAnalyzer) PrintHeader() *record.Schema {
	sc := record.NewSchema()
	sc.Add(s.name, s.name, record.KindUint8, false)
	return sc
}
func (s *stubAnalyzer) OnNewFlow(pkt *PacketView, flow *FlowView, idx FlowIndex) {}
func (s *stubAnalyzer) OnLayer4(pkt *PacketView, flow *FlowView, idx FlowIndex) {
	*s.calls = append(*s.calls, "layer4:"+s.name)
}
func (s *stubAnalyzer) OnFlowTerminate(idx FlowIndex, out *record.Buffer) {}
func (s *stubAnalyzer) Finalize()                                        { *s.calls = append(*s.calls, "finalize:"+s.name) }

func TestRuntime_StartOrdersByDependency(t *testing.T) {
	var calls []string
	tls := &stubAnalyzer{name: "tlsflow", depends: []string{"quicflow"}, calls: &calls}
	quic := &stubAnalyzer{name: "quicflow", calls: &calls}
	bgp := &stubAnalyzer{name: "bgpflow", calls: &calls}

	rt := NewRuntime(nil)
	require.NoError(t, rt.Register(tls))
	require.NoError(t, rt.Register(quic))
	require.NoError(t, rt.Register(bgp))
	require.NoError(t, rt.Start())

	require.Len(t, rt.ordered, 3)
	quicIdx, tlsIdx := -1, -1
	for i, a := range rt.ordered {
		if a.Name() == "quicflow" {
			quicIdx = i
		}
		if a.Name() == "tlsflow" {
			tlsIdx = i
		}
	}
	assert.Less(t, quicIdx, tlsIdx, "quicflow must be initialized before tlsflow")

	assert.Len(t, rt.Schema().Fields, 3)
}

func TestRuntime_DetectsCycle(t *testing.T) {
	var calls []string
	a := &stubAnalyzer{name: "a", depends: []string{"b"}, calls: &calls}
	b := &stubAnalyzer{name: "b", depends: []string{"a"}, calls: &calls}

	rt := NewRuntime(nil)
	require.NoError(t, rt.Register(a))
	require.NoError(t, rt.Register(b))
	assert.Error(t, rt.Start())
}

func TestRuntime_DetectsMissingDependency(t *testing.T) {
	var calls []string
	a := &stubAnalyzer{name: "a", depends: []string{"missing"}, calls: &calls}

	rt := NewRuntime(nil)
	require.NoError(t, rt.Register(a))
	assert.Error(t, rt.Start())
}

func TestRuntime_DispatchesLifecycleInOrder(t *testing.T) {
	var calls []string
	quic := &stubAnalyzer{name: "quicflow", calls: &calls}
	tls := &stubAnalyzer{name: "tlsflow", depends: []string{"quicflow"}, calls: &calls}

	rt := NewRuntime(nil)
	require.NoError(t, rt.Register(tls))
	require.NoError(t, rt.Register(quic))
	require.NoError(t, rt.Start())

	calls = nil
	rt.OnLayer4(&PacketView{}, &FlowView{}, 0)
	assert.Equal(t, []string{"layer4:quicflow", "layer4:tlsflow"}, calls)

	calls = nil
	rt.Finalize()
	assert.Equal(t, []string{"finalize:tlsflow", "finalize:quicflow"}, calls)
}
