package passes

import (
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// CalculatePriorBoxes constant-folds prior_box primitives into data nodes:
// a prior_box's output depends only on its two declared shape inputs, so
// once those are known its value is fixed for the lifetime of the program
// (spec §4.5 step 2).
func CalculatePriorBoxes(p *program.Program, compute func(n *program.Node) (any, error)) error {
	for _, n := range p.ProcessingOrder() {
		if n.Kind() != primitive.KindPriorBox {
			continue
		}
		value, err := compute(n)
		if err != nil {
			return err
		}
		dataNode, err := p.FoldToData(n, primitive.Descriptor{
			ID:   n.ID() + "_folded",
			Kind: primitive.KindData,
			Params: primitive.Params{
				DeclaredLayout: n.OutputLayout(),
				ConstantValue:  value,
			},
		})
		if err != nil {
			return err
		}
		dataNode.SetOutputLayout(n.OutputLayout())
	}
	return nil
}
