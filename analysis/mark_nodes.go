// Package analysis implements the graph-wide analyses the pass manager runs
// between structural edits: constant/data-flow marking, output-size
// disagreement detection, and inference-precision derivation.
//
// Grounded on the teacher's separation of "pure functions over a Graph" from
// the Graph type itself (graph/ops_*.go take a *Graph and return derived
// values without mutating its edges); these analyses take a *program.Program
// and either mutate only the per-node flags or return a side value, never
// touching edges themselves.
package analysis

import (
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// MarkNodes recomputes the constant and data_flow flags of every node in
// processing order (spec §4.5 step 3, §4 "Laws" -- idempotent). A node is
// constant iff all its dependencies are constant and its kind is not one of
// the stateful-source kinds; a node reaches data-flow iff it is itself a
// data-producing source that isn't a constant source, or any dependency
// reaches data-flow.
func MarkNodes(p *program.Program) {
	for _, n := range p.ProcessingOrder() {
		p.SetFlags(n, markConstant(n), markDataFlow(n))
	}
}

func markConstant(n *program.Node) bool {
	if primitive.StatefulSourceKinds[n.Kind()] {
		return false
	}
	deps := n.Dependencies()
	if len(deps) == 0 {
		return n.Kind() == primitive.KindData
	}
	for _, d := range deps {
		if !d.IsConstant() {
			return false
		}
	}
	return true
}

func markDataFlow(n *program.Node) bool {
	if primitive.StatefulSourceKinds[n.Kind()] {
		return true
	}
	for _, d := range n.Dependencies() {
		if d.ReachesDataFlow() {
			return true
		}
	}
	return false
}
