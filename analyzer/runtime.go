package analyzer

import (
	"fmt"
	"io"

	"github.com/bgpfix/flowan/metrics"
	"github.com/bgpfix/flowan/record"
	"github.com/rs/zerolog"
)

// Runtime registers analyzers, orders them by declared dependency (spec §6
// "a space-delimited dependency list, e.g. the TLS analyzer depends on the
// QUIC analyzer"), and drives the per-packet/per-flow lifecycle calls in
// that order. Modeled on pipe.Pipe's single logger-carrying driver object,
// simplified to this module's single-threaded, no-channel dispatch model
// (spec §5 "Scheduling model: single-threaded cooperative").
type Runtime struct {
	*zerolog.Logger

	byName  map[string]Analyzer
	ordered []Analyzer // topologically sorted, dependencies first
	schema  *record.Schema
	started bool
}

// NewRuntime returns an empty Runtime ready for Register calls.
func NewRuntime(log *zerolog.Logger) *Runtime {
	return &Runtime{
		Logger: log,
		byName: make(map[string]Analyzer),
	}
}

// Register adds an analyzer. Must be called before Start.
func (rt *Runtime) Register(a Analyzer) error {
	if rt.started {
		return fmt.Errorf("analyzer: cannot register %q after Start", a.Name())
	}
	if _, dup := rt.byName[a.Name()]; dup {
		return fmt.Errorf("analyzer: duplicate name %q", a.Name())
	}
	rt.byName[a.Name()] = a
	return nil
}

// Start resolves the dependency order, calls Init on every analyzer in
// that order, and merges their schemas. Must be called exactly once,
// after every Register.
func (rt *Runtime) Start() error {
	if rt.started {
		return fmt.Errorf("analyzer: Runtime already started")
	}

	ordered, err := topoSort(rt.byName)
	if err != nil {
		return err
	}
	rt.ordered = ordered

	schema := record.NewSchema()
	for _, a := range rt.ordered {
		if err := a.Init(); err != nil {
			metrics.AnalyzerInitErrors.WithLabelValues(a.Name()).Inc()
			return fmt.Errorf("analyzer: %s Init: %w", a.Name(), err)
		}
		schema.Merge(a.PrintHeader())
		if rt.Logger != nil {
			rt.Info().Str("analyzer", a.Name()).Str("version", a.Version()).Msg("analyzer ready")
		}
	}
	rt.schema = schema
	rt.started = true
	return nil
}

// Schema returns the merged output schema published by Start. Call after
// Start.
func (rt *Runtime) Schema() *record.Schema {
	return rt.schema
}

// OnNewFlow fans out to every registered analyzer in dependency order
// (spec §5 "on_new_flow strictly precedes any on_layer4").
func (rt *Runtime) OnNewFlow(pkt *PacketView, flow *FlowView, idx FlowIndex) {
	for _, a := range rt.ordered {
		a.OnNewFlow(pkt, flow, idx)
		metrics.FlowsStarted.WithLabelValues(a.Name()).Inc()
	}
}

// OnLayer4 fans out to every registered analyzer in dependency order, so
// that e.g. quicflow's decrypted Initial payload is available to tlsflow
// within the same call (spec §4.I dependency note).
func (rt *Runtime) OnLayer4(pkt *PacketView, flow *FlowView, idx FlowIndex) {
	for _, a := range rt.ordered {
		a.OnLayer4(pkt, flow, idx)
	}
	metrics.PacketsSeen.Inc()
}

// OnLayer2 fans out to every registered analyzer that opts into raw L2
// frames (spec §6 "optional on_layer2"), in dependency order.
func (rt *Runtime) OnLayer2(pkt *PacketView, flow *FlowView, idx FlowIndex) {
	for _, a := range rt.ordered {
		if l2, ok := a.(Layer2Analyzer); ok {
			l2.OnLayer2(pkt, flow, idx)
		}
	}
}

// OnFlowTerminate lets every analyzer append its typed record fragment to
// out, in the same dependency order. It does not reset out; the caller
// owns out and resets it between flows (spec §3 "on flow termination, each analyzer appends its typed record
// fragment to a shared output buffer").
func (rt *Runtime) OnFlowTerminate(idx FlowIndex, out *record.Buffer) {
	for _, a := range rt.ordered {
		a.OnFlowTerminate(idx, out)
		metrics.FlowsTerminated.WithLabelValues(a.Name()).Inc()
	}
}

// Report writes every Reporter analyzer's plugin_report to w, in
// dependency order.
func (rt *Runtime) Report(w io.Writer) error {
	for _, a := range rt.ordered {
		if r, ok := a.(Reporter); ok {
			if err := r.PluginReport(w); err != nil {
				return fmt.Errorf("analyzer: %s PluginReport: %w", a.Name(), err)
			}
		}
	}
	return nil
}

// Finalize releases every analyzer's process-wide resources, in reverse
// dependency order (dependents torn down before their dependencies).
func (rt *Runtime) Finalize() {
	for i := len(rt.ordered) - 1; i >= 0; i-- {
		rt.ordered[i].Finalize()
	}
}

// topoSort orders analyzers so that every dependency of a appears before a
// itself, detecting cycles and unresolved names.
func topoSort(byName map[string]Analyzer) ([]Analyzer, error) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(byName))
	var order []Analyzer

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("analyzer: dependency cycle: %v -> %s", path, name)
		}

		a, ok := byName[name]
		if !ok {
			return fmt.Errorf("analyzer: %q depends on unregistered analyzer %q", path[len(path)-1], name)
		}

		state[name] = visiting
		for _, dep := range a.Depends() {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, a)
		return nil
	}

	// deterministic iteration order: analyzers without a name collision
	// sort lexically so Start's ordering is reproducible across runs.
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sortStrings(names)

	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
