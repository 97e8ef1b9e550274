package passes

import (
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// ConcatInputOrder inserts a reorder ahead of every concatenation input
// whose format differs from the first input's, so all inputs reach the
// concatenation in one format (spec §4.7). It does not mark the
// concatenation in-place; PrepareBufferFusing does that.
func ConcatInputOrder(p *program.Program) error {
	for _, n := range p.ProcessingOrder() {
		if n.Kind() != primitive.KindConcatenation {
			continue
		}
		deps := n.Dependencies()
		if len(deps) == 0 {
			continue
		}
		refFormat := deps[0].OutputLayout().Format
		for i, dep := range deps {
			if i == 0 || !dep.OutputLayout().Valid {
				continue
			}
			if dep.OutputLayout().Format.Equal(refFormat) {
				continue
			}
			reorderID := n.ID() + "_concat_in_" + dep.ID()
			reorderNode, err := p.GetOrCreate(primitive.Descriptor{
				ID:   reorderID,
				Kind: primitive.KindReorder,
				Params: primitive.Params{
					TargetFormat: refFormat,
					TargetDType:  dep.OutputLayout().DType,
				},
			})
			if err != nil {
				return err
			}
			if err := p.AddIntermediate(reorderNode, n, i, true, false); err != nil {
				return err
			}
			if err := p.RecomputeLayoutsFrom(dep); err != nil {
				return err
			}
		}
	}
	return nil
}

// PrepareBufferFusing marks concatenation nodes whose inputs now all share
// the concat axis's format in-place, letting the memory pool allocate
// producers directly into the concatenation's output buffer rather than
// copying (spec §4.5 step 15).
func PrepareBufferFusing(p *program.Program) error {
	for _, n := range p.ProcessingOrder() {
		if n.Kind() != primitive.KindConcatenation {
			continue
		}
		if concatIsContiguous(n) {
			params := n.Params()
			params.InPlace = true
			n.SetParams(params)
		}
	}
	return nil
}

func concatIsContiguous(n *program.Node) bool {
	deps := n.Dependencies()
	if len(deps) == 0 {
		return false
	}
	ref := deps[0].OutputLayout()
	if !ref.Valid {
		return false
	}
	for _, d := range deps[1:] {
		if !d.OutputLayout().Valid || !d.OutputLayout().Format.Equal(ref.Format) {
			return false
		}
	}
	return true
}
