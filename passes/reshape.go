package passes

import (
	"fmt"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// HandleReshape surrounds a reshape whose input or output is in a blocked
// (non-plain) format with reorders to a neutral plain format, since the
// generic reshape primitive only knows how to reinterpret a contiguous
// buffer (spec §4.7).
func HandleReshape(p *program.Program) error {
	seq := 0
	for _, n := range p.ProcessingOrder() {
		if n.Kind() != primitive.KindReshape {
			continue
		}
		deps := n.Dependencies()
		if len(deps) == 0 {
			continue
		}
		producer := deps[0]
		if producer.OutputLayout().Valid && producer.OutputLayout().Format.IsBlocked() {
			seq++
			if err := insertPlainReorder(p, producer, n, 0, &seq); err != nil {
				return err
			}
		}
		if n.OutputLayout().Valid && n.OutputLayout().Format.IsBlocked() {
			plain := n.OutputLayout()
			plain.Format = tensor.FormatBFYX
			n.SetOutputLayout(plain)
		}
	}
	return nil
}

func insertPlainReorder(p *program.Program, producer, consumer *program.Node, depIdx int, seq *int) error {
	return insertFormatReorder(p, producer, consumer, depIdx, tensor.FormatBFYX, seq)
}

func insertFormatReorder(p *program.Program, producer, consumer *program.Node, depIdx int, target tensor.Format, seq *int) error {
	reorderID := fmt.Sprintf("%s_reorder_%d", consumer.ID(), *seq)
	reorderNode, err := p.GetOrCreate(primitive.Descriptor{
		ID:   reorderID,
		Kind: primitive.KindReorder,
		Params: primitive.Params{
			TargetFormat: target,
			TargetDType:  producer.OutputLayout().DType,
		},
	})
	if err != nil {
		return err
	}
	if err := p.AddIntermediate(reorderNode, consumer, depIdx, true, false); err != nil {
		return err
	}
	return p.RecomputeLayoutsFrom(producer)
}
