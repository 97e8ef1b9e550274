package tensor

// DeconvOutputSize computes the forward output extent of a transposed
// convolution (deconvolution) along one spatial axis. It is the standard
// transposed-convolution relation; composing it with
// NeededInputForDeconvOutput round-trips for the padding/stride/dilation
// combinations the compiler supports.
func DeconvOutputSize(inputSize, filterSize, padLower, padUpper, stride, dilation int) int {
	effectiveKernel := (filterSize-1)*dilation + 1
	return (inputSize-1)*stride - padLower - padUpper + effectiveKernel
}
