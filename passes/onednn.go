package passes

import (
	"github.com/OlehKravchyshyn/gpugraph/layoutopt"
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// onednnCapableKinds are the primitive kinds a oneDNN-backed implementation
// can actually serve; the attribute is meaningless on anything else.
var onednnCapableKinds = map[primitive.Kind]bool{
	primitive.KindConvolution:    true,
	primitive.KindDeconvolution:  true,
	primitive.KindFullyConnected: true,
	primitive.KindGemm:           true,
	primitive.KindPooling:        true,
}

// AddOnednnOptimizationAttributes records, on every node a oneDNN-backed
// implementation could serve, whether the layout optimizer decided the
// program as a whole should prefer oneDNN (spec §4.5 step 15,
// attrs.UseOnednnImpls from §4.8). The kernel selector consults
// Node.PrefersOnednnImpl alongside the node's kind and layout when picking
// an implementation; the core itself never chooses or runs one.
func AddOnednnOptimizationAttributes(p *program.Program, attrs *layoutopt.Attributes) error {
	for _, n := range p.ProcessingOrder() {
		if !onednnCapableKinds[n.Kind()] {
			continue
		}
		n.SetPrefersOnednnImpl(attrs.UseOnednnImpls)
	}
	return nil
}
