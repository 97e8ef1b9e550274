package passes

import (
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// PostInputReorder inserts a plain-format reorder ahead of a fully_connected
// or gemm node's primary input whenever that input is still in a blocked
// format by the time post-optimize runs -- these kernels only ever consume
// plain layouts, unlike convolution, which AddRequiredReorders already
// covers earlier in pre-optimize (spec §4.5 step 17).
func PostInputReorder(p *program.Program) error {
	for _, n := range p.ProcessingOrder() {
		if n.Kind() != primitive.KindFullyConnected && n.Kind() != primitive.KindGemm {
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
