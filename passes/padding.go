package passes

import (
	"fmt"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// PreparePadding computes, for each consumer that requires padded input
// (e.g. a convolution with non-zero pad), the needed padding and merges it
// into the producer's output padding (spec §4.7).
func PreparePadding(p *program.Program) error {
	for _, n := range p.ProcessingOrder() {
		params := n.Params()
		if len(params.PadLower) == 0 && len(params.PadUpper) == 0 {
			continue
		}
		switch n.Kind() {
		case primitive.KindConvolution, primitive.KindBinaryConvolution, primitive.KindDeconvolution, primitive.KindPooling:
		default:
			continue
		}
		deps := n.Dependencies()
		if len(deps) == 0 {
			continue
		}
		producer := deps[0]
		needed := tensor.Padding{Lower: params.PadLower, Upper: params.PadUpper}
		merged := producer.OutputLayout().MergeOutputPadding(needed)
		producer.SetOutputLayout(merged)
		if err := p.RecomputeLayoutsFrom(producer); err != nil {
			return err
		}
	}
	return nil
}

// HandleInputPadding materializes asymmetric input padding that a
// producer cannot express in its own layout (its own padding merge would
// be inconsistent with another consumer) as an explicit border/reorder
// node, rather than folding it into the producer directly (spec §4.5 step
// 6). A border node is modeled as a reorder node whose target format
// matches the consumer's required padded layout.
func HandleInputPadding(p *program.Program) error {
	seq := 0
	for _, n := range p.ProcessingOrder() {
		if n.Kind() != primitive.KindConvolution && n.Kind() != primitive.KindDeconvolution && n.Kind() != primitive.KindPooling {
			continue
		}
		params := n.Params()
		if !isAsymmetric(params.PadLower, params.PadUpper) {
			continue
		}
		deps := n.Dependencies()
		if len(deps) == 0 {
			continue
		}
		producer := deps[0]
		if len(producer.Users()) <= 1 {
			continue // sole consumer: PreparePadding's direct merge already covers this case.
		}
		seq++
		borderID := producerBorderID(n.ID(), seq)
		border, err := p.GetOrCreate(primitive.Descriptor{
			ID:   borderID,
			Kind: primitive.KindReorder,
			Params: primitive.Params{
				TargetFormat: producer.OutputLayout().Format,
				TargetDType:  producer.OutputLayout().DType,
			},
		})
		if err != nil {
			return err
		}
		if err := p.AddIntermediate(border, n, 0, true, false); err != nil {
			return err
		}
		border.SetOutputLayout(producer.OutputLayout().MergeOutputPadding(tensor.Padding{Lower: params.PadLower, Upper: params.PadUpper}))
	}
	return nil
}

func isAsymmetric(lower, upper []int) bool {
	for i := range lower {
		u := 0
		if i < len(upper) {
			u = upper[i]
		}
		if lower[i] != u {
			return true
		}
	}
	return false
}

func producerBorderID(consumerID string, seq int) string {
	return fmt.Sprintf("%s_border_%d", consumerID, seq)
}
