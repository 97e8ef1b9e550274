package analysis

import (
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// Precision derives every node's effective inference data type, per spec
// §4.11, and returns it keyed by node id. It does not mutate the program;
// callers that need it persisted (e.g. primitives-info queries) store it
// themselves, since the dtype used for inference is a derived, read-only
// analysis result rather than part of the node's own output layout.
func Precision(p *program.Program) map[string]tensor.DType {
	out := make(map[string]tensor.DType, p.NumNodes())
	for _, n := range p.ProcessingOrder() {
		out[n.ID()] = nodePrecision(n, out)
	}
	return out
}

// ImplementationInfo renders n's selected implementation together with its
// inference precision (as derived by Precision), for primitives-info
// queries (spec §6): "undef" if no kernel has been selected yet, otherwise
// "<selected_impl>__<dtype>".
func ImplementationInfo(n *program.Node, precision tensor.DType) string {
	impl := n.SelectedImpl()
	if impl == "" {
		return "undef"
	}
	return impl + "__" + precision.String()
}

func nodePrecision(n *program.Node, computed map[string]tensor.DType) tensor.DType {
	deps := n.Dependencies()
	depDType := func(i int) tensor.DType {
		if i >= len(deps) {
			return tensor.InvalidDType
		}
		return deps[i].OutputLayout().DType
	}

	switch n.Kind() {
	case primitive.KindInputLayout, primitive.KindData, primitive.KindMutableData, primitive.KindReadValue:
		return n.OutputLayout().DType

	case primitive.KindReorder:
		return tensor.MaxDType(depDType(0), n.OutputLayout().DType)

	case primitive.KindQuantize:
		if n.Params().OutputQuantized {
			return n.OutputLayout().DType
		}
		return tensor.MaxDType(depDType(0), n.OutputLayout().DType)

	case primitive.KindEltwise:
		dt := tensor.InvalidDType
		for i := range deps {
			dt = tensor.MaxDType(dt, depDType(i))
		}
		return dt

	case primitive.KindConvolution, primitive.KindDeconvolution, primitive.KindFullyConnected, primitive.KindGemm:
		a, b := depDType(0), depDType(1)
		if tensor.IsQuantized(a) && tensor.IsQuantized(b) {
			return a
		}
		return tensor.MaxDType(a, b)

	default:
		return depDType(0)
	}
}
