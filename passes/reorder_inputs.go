package passes

import (
	"fmt"

	"github.com/OlehKravchyshyn/gpugraph/layoutopt"
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// ReorderInputs queries attrs for each node's preferred input format and,
// where it differs from the producer's current output format, inserts a
// reorder node via AddIntermediate and reruns layout inference downstream
// (spec §4.7).
func ReorderInputs(p *program.Program, attrs *layoutopt.Attributes) error {
	reorderSeq := 0
	for _, n := range p.ProcessingOrder() {
		preferred, ok := attrs.PreferredInputFormat(n.ID())
		if !ok {
			continue
		}
		for idx, dep := range n.Dependencies() {
			depLayout := dep.OutputLayout()
			if !depLayout.Valid || depLayout.Format.Equal(preferred) {
				continue
			}
			reorderSeq++
			reorderID := fmt.Sprintf("%s_reorder_%d", n.ID(), reorderSeq)
			reorderNode, err := p.GetOrCreate(primitive.Descriptor{
				ID:   reorderID,
				Kind: primitive.KindReorder,
				Params: primitive.Params{
					TargetFormat: preferred,
					TargetDType:  depLayout.DType,
				},
			})
			if err != nil {
				return err
			}
			if err := p.AddIntermediate(reorderNode, n, idx, true, false); err != nil {
				return err
			}
			if err := p.RecomputeLayoutsFrom(dep); err != nil {
				return err
			}
		}
	}
	return nil
}
