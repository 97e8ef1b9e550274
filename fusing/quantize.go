package fusing

import "github.com/OlehKravchyshyn/gpugraph/program"

// dropQuantizeInput implements the quantize-peer input drop table, spec
// §4.10.1. Indices are into the peer's dependency list.
//
// This is the one place the spec flags explicitly as an open question: the
// exact field conjunction depends on the kernel selector's scale_shift_opt
// capability. Carried here verbatim from §4.10.1's wording; any change to
// the drop conditions must be made here and nowhere else.
func dropQuantizeInput(peer *program.Node, depIndex int) bool {
	params := peer.Params()
	switch depIndex {
	case 1, 2:
		return params.OutputRangeUsed || params.NoClamp
	case 3, 4:
		return true
	case 5:
		return params.PerTensorInputScale
	case 6:
		return params.PerTensorInputShift || !params.NeedPreShift
	case 7:
		return params.PerTensorOutputScale || !params.NeedPostScale
	case 8:
		return params.PerTensorOutputShift || !params.NeedPostShift
	default:
		return false
	}
}
