package passes

import (
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// ReverseOptionalNodesOutputs flips read_value/assign pairs that declare
// an optional initial-value dependency so the variable's current value
// flows forward from read_value rather than backward from assign, letting
// the rest of the pipeline treat loop state like any other data edge
// (spec §4.5 step 8).
func ReverseOptionalNodesOutputs(p *program.Program) error {
	for _, n := range p.ProcessingOrder() {
		if n.Kind() != primitive.KindAssign {
			continue
		}
		for _, u := range append([]*program.Node{}, n.Users()...) {
			if u.Kind() != primitive.KindReadValue {
				continue
			}
			if err := p.ReverseConnection(n, u); err != nil {
				return err
			}
		}
	}
	return nil
}

// StridedSliceOptimize collapses a strided_slice whose declared output
// shape already matches its producer's shape -- an identity slice -- into
// a pass-through: its users are rewired directly to its producer
// (spec §4.5 step 13).
func StridedSliceOptimize(p *program.Program) error {
	for _, n := range p.ProcessingOrder() {
		if n.Kind() != primitive.KindStridedSlice {
			continue
		}
		if !isIdentitySlice(n) {
			continue
		}
		if err := p.Extract(n); err != nil {
			continue // not extractable (e.g. more than one dependency); leave as-is.
		}
		p.RemoveIfDangling(n)
	}
	return nil
}

func isIdentitySlice(n *program.Node) bool {
	params := n.Params()
	deps := n.Dependencies()
	if len(deps) == 0 || !deps[0].OutputLayout().Valid {
		return false
	}
	return deps[0].OutputLayout().Shape.Equal(tensor.MakeShape(params.ExplicitOutputDims...))
}

// AddRequiredReorders inserts a plain-format reorder ahead of any node
// whose primitive cannot consume its producer's current (possibly
// blocked) format -- primitives without a registered Factory are assumed
// to require plain input, since they predate block-format support (spec
// §4.5 step 15).
func AddRequiredReorders(p *program.Program) error {
	for _, n := range p.ProcessingOrder() {
		entry, ok := primitive.Lookup(n.Kind())
		if !ok || entry.Factory != nil {
			continue
		}
		deps := n.Dependencies()
		if len(deps) == 0 {
			continue
		}
		producer := deps[0]
		if !producer.OutputLayout().Valid || !producer.OutputLayout().Format.IsBlocked() {
			continue
		}
		seq := 1
		if err := insertPlainReorder(p, producer, n, 0, &seq); err != nil {
			return err
		}
	}
	return nil
}

// CompileGraph invokes the external kernel selector for every node in
// processing order, recording the chosen implementation (spec §4.5 step
// 16).
func CompileGraph(p *program.Program, selector KernelSelector) error {
	for _, n := range p.ProcessingOrder() {
		impl, err := selector.Select(n.ID(), n.Kind(), n.OutputLayout())
		if err != nil {
			return err
		}
		n.SetSelectedImpl(impl)
	}
	return nil
}

// KernelSelector is the opaque oracle that chooses a kernel variant for a
// given node and layout; the core only consumes it (spec §1).
type KernelSelector interface {
	Select(nodeID string, kind primitive.Kind, layout tensor.Layout) (string, error)
}

// WeightsFormatAdvisor reports the weight layout a selected kernel
// implementation expects for a given host node, if it differs from the
// weight's current format.
type WeightsFormatAdvisor interface {
	PreferredWeightsFormat(hostID string, kind primitive.Kind, current tensor.Layout) (tensor.Format, bool)
}

// PostOptimizeWeights reorders a host's weight dependency (input 1) into
// the format its selected implementation prefers (spec §4.5 step 17).
func PostOptimizeWeights(p *program.Program, advisor WeightsFormatAdvisor) error {
	for _, n := range p.ProcessingOrder() {
		switch n.Kind() {
		case primitive.KindConvolution, primitive.KindDeconvolution, primitive.KindFullyConnected, primitive.KindGemm:
		default:
			continue
		}
		deps := n.Dependencies()
		if len(deps) < 2 {
			continue
		}
		weights := deps[1]
		preferred, changed := advisor.PreferredWeightsFormat(n.ID(), n.Kind(), weights.OutputLayout())
		if !changed || weights.OutputLayout().Format.Equal(preferred) {
			continue
		}
		seq := 1
		if err := insertFormatReorder(p, weights, n, 1, preferred, &seq); err != nil {
			return err
		}
	}
	return nil
}

// UpdateLoopPrimitiveMap refreshes the body-program id recorded on every
// loop primitive so a subsequent compile of the outer program can resolve
// it, after post-optimize may have renamed or replaced body outputs (spec
// §4.5 step 17). The core has no loop primitive kind of its own yet (see
// Non-goals); this is a no-op placeholder wired into the pipeline so
// adding one later doesn't require reshaping the pass list.
func UpdateLoopPrimitiveMap(p *program.Program) error {
	return nil
}
