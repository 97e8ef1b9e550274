package passes

import (
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// PrepareQuantization derives the per-tensor scale/shift/clamp flags a
// quantize node's fusing eligibility depends on (§4.10.1's drop table)
// from its current input layout: a scalar (rank-0-after-broadcast) scale
// or shift input is per-tensor; anything with spatial extent is
// per-element. It also marks scale_shift_opt active whenever the node's
// own output dtype is a narrow integer type, the configuration under
// which the kernel selector offers the fused scale-shift kernel this drop
// table exists for (spec §4.5 step 10, §4.10.1).
func PrepareQuantization(p *program.Program) error {
	for _, n := range p.ProcessingOrder() {
		if n.Kind() != primitive.KindQuantize {
			continue
		}
		params := n.Params()
		params.ScaleShiftOpt = tensor.IsQuantized(n.OutputLayout().DType)
		deps := n.Dependencies()
		params.PerTensorInputScale = isPerTensor(deps, 5)
		params.PerTensorInputShift = isPerTensor(deps, 6)
		params.PerTensorOutputScale = isPerTensor(deps, 7)
		params.PerTensorOutputShift = isPerTensor(deps, 8)
		params.OutputQuantized = tensor.IsQuantized(n.OutputLayout().DType)
		n.SetParams(params)
	}
	return nil
}

func isPerTensor(deps []*program.Node, idx int) bool {
	if idx >= len(deps) {
		return true // absent input: trivially uniform.
	}
	layout := deps[idx].OutputLayout()
	if !layout.Valid {
		return false
	}
	return layout.Shape.Size() == 1
}
