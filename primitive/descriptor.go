// Package primitive defines the closed set of primitive kinds the graph
// compiler understands, and the per-kind registry (arity, layout
// inference, factory, fusing parameters) that the program graph and its
// passes dispatch through.
//
// Grounded on the teacher's dispatch-by-kind style (graph.Node.Type() /
// NodeType in graph/node.go and the generated gen_backend_ops.go), but
// expressed as a tagged enum with a dispatch table instead of an
// interface hierarchy, per the "polymorphic nodes" design note: the set
// of primitive kinds is closed and known at compile time.
package primitive

import "github.com/OlehKravchyshyn/gpugraph/tensor"

// Kind identifies the operation a primitive performs. The set is closed:
// every Kind must have a registered Entry (see Register) before any
// Descriptor of that Kind can be built into a Node.
type Kind string

const (
	KindInputLayout       Kind = "input_layout"
	KindData              Kind = "data"
	KindMutableData       Kind = "mutable_data"
	KindAssign            Kind = "assign"
	KindReadValue         Kind = "read_value"
	KindPriorBox          Kind = "prior_box"
	KindConvolution       Kind = "convolution"
	KindBinaryConvolution Kind = "binary_convolution"
	KindDeconvolution     Kind = "deconvolution"
	KindPooling           Kind = "pooling"
	KindFullyConnected    Kind = "fully_connected"
	KindGemm              Kind = "gemm"
	KindActivation        Kind = "activation"
	KindEltwise           Kind = "eltwise"
	KindQuantize          Kind = "quantize"
	KindReorder           Kind = "reorder"
	KindConcatenation     Kind = "concatenation"
	KindCrop              Kind = "crop"
	KindSplit             Kind = "split"
	KindReshape           Kind = "reshape"
	KindStridedSlice      Kind = "strided_slice"
)

// StatefulSourceKinds are the primitive kinds that can never be constant,
// even with zero or all-constant dependencies (spec §3, invariant 4).
var StatefulSourceKinds = map[Kind]bool{
	KindInputLayout: true,
	KindMutableData: true,
	KindAssign:      true,
	KindReadValue:   true,
	KindPriorBox:    true,
}

// Dep is an indexed dependency: the id of the producing node plus which of
// its output ports is consumed. Most primitives have a single output port
// (0); multi-output primitives (e.g. split) use this to disambiguate.
type Dep struct {
	ID   string
	Port int
}

// Params carries kind-specific parameters. Only the fields relevant to a
// given Kind are populated; it is a flat struct rather than one variant per
// kind because the compiler's passes routinely need to read parameters
// generically (e.g. output-size-handling reads OutputSize from four
// different kinds).
type Params struct {
	// Spatial ops (convolution, binary_convolution, deconvolution, pooling).
	Strides      []int
	Dilations    []int
	PadLower     []int
	PadUpper     []int
	OutputSize   []int // declared desired output size, if any.
	GroupCount   int
	WindowSizes  []int      // pooling window size per spatial axis.
	PoolMode     tensor.WindowMode

	// activation
	ActivationFunc string

	// eltwise
	EltwiseOp string

	// quantize: the drop table in fusing/quantize.go reads these.
	PerTensorInputScale  bool
	PerTensorInputShift  bool
	PerTensorOutputScale bool
	PerTensorOutputShift bool
	NeedPreShift         bool
	NeedPostScale        bool
	NeedPostShift        bool
	NoClamp              bool
	OutputRangeUsed      bool
	OutputQuantized      bool
	ScaleShiftOpt        bool

	// concatenation / crop / split / strided_slice
	Axis          int
	Offsets       [][]int // split: per-output dims, used by split expansion as each crop's ExplicitOutputDims.
	OutputOffsets [][]int // crop: offset into the parent tensor; split: one offset per output.
	InPlace       bool    // concatenation: inputs may write directly into this node's output buffer.

	// reshape / crop / strided_slice: an explicit output shape that the
	// generic window algebra cannot derive (no sliding-window semantics).
	ExplicitOutputDims []int

	// reorder
	TargetFormat tensor.Format
	TargetDType  tensor.DType

	// input_layout / data / mutable_data: the declared layout of a source
	// node, since it has no dependencies to infer a layout from.
	DeclaredLayout tensor.Layout

	// data's constant payload, set by propagate_constants on the data
	// nodes it creates.
	ConstantValue any
}

// Descriptor is an immutable value identifying one node by a globally
// unique string id. It carries the ids of its inputs in order (the i-th
// entry is the i-th input) plus an optional indexed form that disambiguates
// multi-output producers, and kind-specific parameters.
type Descriptor struct {
	ID     string
	Kind   Kind
	Inputs []string // ordered, legacy (id-only) dependency list.
	Deps   []Dep    // ordered, indexed dependency list; same length as Inputs when set.
	Params Params
}

// InputID returns the id of the ii-th input, preferring the indexed form if
// present.
func (d Descriptor) InputID(ii int) string {
	if ii < len(d.Deps) {
		return d.Deps[ii].ID
	}
	return d.Inputs[ii]
}

// NumInputs returns the number of declared inputs.
func (d Descriptor) NumInputs() int {
	if len(d.Deps) > 0 {
		return len(d.Deps)
	}
	return len(d.Inputs)
}
