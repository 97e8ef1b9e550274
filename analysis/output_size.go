package analysis

import (
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// outputSizeKinds are the primitive kinds whose descriptor may declare a
// desired output size that disagrees with what the window algebra would
// otherwise infer (spec §4.6).
var outputSizeKinds = map[primitive.Kind]bool{
	primitive.KindConvolution:       true,
	primitive.KindBinaryConvolution: true,
	primitive.KindDeconvolution:     true,
	primitive.KindPooling:           true,
}

// OutputSizeHandling reports whether any node in p declares a desired
// output size that disagrees with the size the sliding-window algebra
// would derive from its current input/filter shapes (spec §4.6). The
// pipeline's output_size_handling step does not keep the returned flag,
// and no padding pass reads it.
func OutputSizeHandling(p *program.Program) bool {
	disagree := false
	for _, n := range p.ProcessingOrder() {
		if !outputSizeKinds[n.Kind()] {
			continue
		}
		params := n.Params()
		if len(params.OutputSize) == 0 {
			continue
		}
		deps := n.Dependencies()
		if len(deps) == 0 {
			continue
		}
		input := deps[0].OutputLayout()
		if !input.Valid {
			continue
		}
		mode := tensor.WindowAll
		if n.Kind() == primitive.KindPooling {
			mode = params.PoolMode
		}
		for axis, declared := range params.OutputSize {
			if axis >= input.Shape.Rank() {
				continue
			}
			filter := windowSizeForAxis(n, axis)
			stride := axisOr(params.Strides, axis, 1)
			dilation := axisOr(params.Dilations, axis, 1)
			padLower := axisOr(params.PadLower, axis, 0)
			padUpper := axisOr(params.PadUpper, axis, 0)

			var expected int
			if n.Kind() == primitive.KindDeconvolution {
				expected = deconvExpectedOutput(input.Shape.Dim(axis), filter, padLower, padUpper, stride, dilation)
			} else {
				expected = tensor.SlidingWindowOutputSize(input.Shape.Dim(axis), filter, padLower, padUpper, stride, dilation, mode)
			}
			if expected != declared {
				disagree = true
			}
		}
	}
	return disagree
}

func windowSizeForAxis(n *program.Node, axis int) int {
	params := n.Params()
	if n.Kind() == primitive.KindPooling {
		return axisOr(params.WindowSizes, axis, 1)
	}
	deps := n.Dependencies()
	if len(deps) > 1 && deps[1].OutputLayout().Valid {
		filters := deps[1].OutputLayout().Shape
		if axis+2 < filters.Rank() {
			return filters.Dim(axis + 2) // weights are [out_c, in_c, k0, k1, ...].
		}
	}
	return 1
}

// deconvExpectedOutput mirrors the forward transposed-convolution size
// formula: the inverse of tensor.NeededInputForDeconvOutput.
func deconvExpectedOutput(inputSize, filterSize, padLower, padUpper, stride, dilation int) int {
	effectiveKernel := (filterSize-1)*dilation + 1
	return (inputSize-1)*stride + effectiveKernel - padLower - padUpper
}

func axisOr(s []int, axis, fallback int) int {
	if axis < len(s) {
		return s[axis]
	}
	return fallback
}
