package primitive

import (
	"sync"

	"github.com/OlehKravchyshyn/gpugraph/tensor"
	"github.com/pkg/errors"
)

// Arity declares the minimum and maximum number of inputs a primitive kind
// accepts. Max of -1 means unbounded (e.g. concatenation, eltwise).
type Arity struct {
	Min, Max int
}

// LayoutInferenceFunc computes a node's output layout from its descriptor
// and the current layouts of its dependencies, in dependency order.
type LayoutInferenceFunc func(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error)

// Factory builds a Descriptor of a specific kind from basic construction
// arguments. Reorder, crop, activation and quantize register one. The
// passes in this module build the descriptors they synthesize as literals
// and do not call it; passes.AddRequiredReorders only checks whether a
// kind has one.
type Factory func(id string, inputs []string, params Params) Descriptor

// Entry is everything the registry knows about one primitive Kind.
type Entry struct {
	Kind          Kind
	Arity         Arity
	LayoutInfer   LayoutInferenceFunc
	Factory       Factory
	CanFuseAsHost bool // e.g. convolution, eltwise, fully_connected, gemm, deconvolution.
	CanFuseAsPeer bool // e.g. activation, eltwise, quantize.
}

var (
	registryMu sync.Mutex
	registry   = map[Kind]Entry{}
)

// Register adds an Entry to the process-wide registry. Registration is
// one-shot: a second call for the same Kind is a no-op, mirroring the
// teacher's process-wide, single-initialization primitive dispatch tables.
func Register(e Entry) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[e.Kind]; exists {
		return
	}
	registry[e.Kind] = e
}

// Lookup returns the Entry registered for kind, and whether it was found.
func Lookup(kind Kind) (Entry, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	e, ok := registry[kind]
	return e, ok
}

// MustLookup is like Lookup but panics with a descriptive message if kind
// is not registered -- used where the caller has already validated the
// descriptor and an unregistered kind signals a programming error.
func MustLookup(kind Kind) Entry {
	e, ok := Lookup(kind)
	if !ok {
		panic(errors.Errorf("primitive kind %q is not registered", kind))
	}
	return e
}

// CheckArity validates desc's input count against its registered Entry.
func CheckArity(desc Descriptor) error {
	e, ok := Lookup(desc.Kind)
	if !ok {
		return errors.Errorf("unknown primitive kind %q for node %q", desc.Kind, desc.ID)
	}
	n := desc.NumInputs()
	if n < e.Arity.Min || (e.Arity.Max >= 0 && n > e.Arity.Max) {
		return errors.Errorf("node %q (%s) has %d inputs, expected [%d,%d]", desc.ID, desc.Kind, n, e.Arity.Min, e.Arity.Max)
	}
	return nil
}

// InferLayout dispatches to the registered LayoutInferenceFunc for desc's
// kind.
func InferLayout(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	e, ok := Lookup(desc.Kind)
	if !ok {
		return tensor.InvalidLayout(), errors.Errorf("unknown primitive kind %q for node %q", desc.Kind, desc.ID)
	}
	if e.LayoutInfer == nil {
		return tensor.InvalidLayout(), errors.Errorf("primitive kind %q has no layout inference registered", desc.Kind)
	}
	return e.LayoutInfer(desc, inputs)
}

func init() {
	registerBuiltins()
}

// registerBuiltins installs the default Entry for every Kind declared in
// this package. A front end that needs a custom primitive registers it the
// same way with Register.
func registerBuiltins() {
	Register(Entry{Kind: KindInputLayout, Arity: Arity{0, 0}, LayoutInfer: inferSource})
	Register(Entry{Kind: KindData, Arity: Arity{0, 0}, LayoutInfer: inferSource})
	Register(Entry{Kind: KindMutableData, Arity: Arity{0, 1}, LayoutInfer: inferSource})
	Register(Entry{Kind: KindAssign, Arity: Arity{1, 1}, LayoutInfer: inferPassThrough})
	Register(Entry{Kind: KindReadValue, Arity: Arity{0, 1}, LayoutInfer: inferSource})
	Register(Entry{Kind: KindPriorBox, Arity: Arity{2, 2}, LayoutInfer: inferSource})

	Register(Entry{Kind: KindConvolution, Arity: Arity{2, 3}, LayoutInfer: inferConvolution, CanFuseAsHost: true})
	Register(Entry{Kind: KindBinaryConvolution, Arity: Arity{2, 2}, LayoutInfer: inferConvolution, CanFuseAsHost: true})
	Register(Entry{Kind: KindDeconvolution, Arity: Arity{2, 3}, LayoutInfer: inferDeconvolution, CanFuseAsHost: true})
	Register(Entry{Kind: KindPooling, Arity: Arity{1, 1}, LayoutInfer: inferPooling})
	Register(Entry{Kind: KindFullyConnected, Arity: Arity{2, 3}, LayoutInfer: inferFullyConnected, CanFuseAsHost: true})
	Register(Entry{Kind: KindGemm, Arity: Arity{2, 3}, LayoutInfer: inferGemm, CanFuseAsHost: true})

	Register(Entry{Kind: KindActivation, Arity: Arity{1, 1}, LayoutInfer: inferPassThrough, CanFuseAsPeer: true,
		Factory: activationFactory})
	Register(Entry{Kind: KindEltwise, Arity: Arity{2, -1}, LayoutInfer: inferEltwise, CanFuseAsHost: true, CanFuseAsPeer: true})
	Register(Entry{Kind: KindQuantize, Arity: Arity{1, 9}, LayoutInfer: inferQuantize, CanFuseAsPeer: true,
		Factory: quantizeFactory})

	Register(Entry{Kind: KindReorder, Arity: Arity{1, 1}, LayoutInfer: inferReorder, Factory: reorderFactory})
	Register(Entry{Kind: KindConcatenation, Arity: Arity{1, -1}, LayoutInfer: inferConcatenation})
	Register(Entry{Kind: KindCrop, Arity: Arity{1, 1}, LayoutInfer: inferExplicitShape, Factory: cropFactory})
	Register(Entry{Kind: KindSplit, Arity: Arity{1, 1}, LayoutInfer: inferPassThrough})
	Register(Entry{Kind: KindReshape, Arity: Arity{1, 1}, LayoutInfer: inferExplicitShape})
	Register(Entry{Kind: KindStridedSlice, Arity: Arity{1, 1}, LayoutInfer: inferExplicitShape})
}

func inferSource(desc Descriptor, _ []tensor.Layout) (tensor.Layout, error) {
	if !desc.Params.DeclaredLayout.Valid {
		return tensor.InvalidLayout(), errors.Errorf("source node %q has no declared layout", desc.ID)
	}
	return desc.Params.DeclaredLayout, nil
}

func inferPassThrough(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	if len(inputs) == 0 {
		return tensor.InvalidLayout(), errors.Errorf("node %q needs at least one input to infer layout", desc.ID)
	}
	return inputs[0], nil
}

func spatialAxes(rank int) []int {
	// Axes 0 (batch) and 1 (feature) are never spatial in the bfyx-family
	// layouts this compiler targets.
	axes := make([]int, 0, rank-2)
	for a := 2; a < rank; a++ {
		axes = append(axes, a)
	}
	return axes
}

func padAt(p []int, axis int) int {
	if axis < len(p) {
		return p[axis]
	}
	return 0
}

func inferConvolution(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	if len(inputs) < 2 {
		return tensor.InvalidLayout(), errors.Errorf("convolution %q needs input and weights", desc.ID)
	}
	in, weights := inputs[0], inputs[1]
	rank := in.Shape.Rank()
	dims := make([]int, rank)
	dims[0] = in.Shape.Dim(0)  // batch
	dims[1] = weights.Shape.Dim(0) // output features come from the weights' first axis.
	for _, axis := range spatialAxes(rank) {
		stride := strideAt(desc.Params.Strides, axis-2)
		dilation := dilationAt(desc.Params.Dilations, axis-2)
		filterSize := weights.Shape.Dim(axis)
		dims[axis] = tensor.SlidingWindowOutputSize(
			in.Shape.Dim(axis), filterSize,
			padAt(desc.Params.PadLower, axis-2), padAt(desc.Params.PadUpper, axis-2),
			stride, dilation, tensor.WindowAll)
	}
	return tensor.Layout{DType: in.DType, Format: in.Format, Shape: tensor.MakeShape(dims...), Valid: true}, nil
}

func inferDeconvolution(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	if len(inputs) < 2 {
		return tensor.InvalidLayout(), errors.Errorf("deconvolution %q needs input and weights", desc.ID)
	}
	in, weights := inputs[0], inputs[1]
	rank := in.Shape.Rank()
	dims := make([]int, rank)
	dims[0] = in.Shape.Dim(0)
	dims[1] = weights.Shape.Dim(0)
	for _, axis := range spatialAxes(rank) {
		stride := strideAt(desc.Params.Strides, axis-2)
		dilation := dilationAt(desc.Params.Dilations, axis-2)
		filterSize := weights.Shape.Dim(axis)
		dims[axis] = tensor.DeconvOutputSize(
			in.Shape.Dim(axis), filterSize,
			padAt(desc.Params.PadLower, axis-2), padAt(desc.Params.PadUpper, axis-2),
			stride, dilation)
	}
	return tensor.Layout{DType: in.DType, Format: in.Format, Shape: tensor.MakeShape(dims...), Valid: true}, nil
}

func inferPooling(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	if len(inputs) != 1 {
		return tensor.InvalidLayout(), errors.Errorf("pooling %q needs exactly one input", desc.ID)
	}
	in := inputs[0]
	rank := in.Shape.Rank()
	dims := make([]int, rank)
	dims[0], dims[1] = in.Shape.Dim(0), in.Shape.Dim(1)
	mode := desc.Params.PoolMode
	for _, axis := range spatialAxes(rank) {
		stride := strideAt(desc.Params.Strides, axis-2)
		windowSize := desc.Params.WindowSizes[axis-2]
		dims[axis] = tensor.SlidingWindowOutputSize(
			in.Shape.Dim(axis), windowSize,
			padAt(desc.Params.PadLower, axis-2), padAt(desc.Params.PadUpper, axis-2),
			stride, 1, mode)
	}
	return tensor.Layout{DType: in.DType, Format: in.Format, Shape: tensor.MakeShape(dims...), Valid: true}, nil
}

func inferFullyConnected(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	if len(inputs) < 2 {
		return tensor.InvalidLayout(), errors.Errorf("fully_connected %q needs input and weights", desc.ID)
	}
	in, weights := inputs[0], inputs[1]
	return tensor.Layout{
		DType:  in.DType,
		Format: in.Format,
		Shape:  tensor.MakeShape(in.Shape.Dim(0), weights.Shape.Dim(0)),
		Valid:  true,
	}, nil
}

func inferGemm(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	if len(inputs) < 2 {
		return tensor.InvalidLayout(), errors.Errorf("gemm %q needs two matrix inputs", desc.ID)
	}
	a, b := inputs[0], inputs[1]
	return tensor.Layout{
		DType:  a.DType,
		Format: a.Format,
		Shape:  tensor.MakeShape(a.Shape.Dim(0), b.Shape.Dim(-1)),
		Valid:  true,
	}, nil
}

func inferEltwise(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	if len(inputs) == 0 {
		return tensor.InvalidLayout(), errors.Errorf("eltwise %q needs at least one input", desc.ID)
	}
	out := inputs[0]
	dt := inputs[0].DType
	for _, l := range inputs[1:] {
		dt = tensor.MaxDType(dt, l.DType)
		if l.Shape.Rank() > out.Shape.Rank() {
			out = l
		}
	}
	dims := make([]int, out.Shape.Rank())
	for axis := range dims {
		d := 1
		for _, l := range inputs {
			od := dimFromRight(l.Shape, out.Shape.Rank(), axis)
			if od > d {
				d = od
			}
		}
		dims[axis] = d
	}
	return tensor.Layout{DType: dt, Format: out.Format, Shape: tensor.MakeShape(dims...), Valid: true}, nil
}

// dimFromRight reads l's dimension aligned to axis of a shape of rank
// outRank, following NumPy-style right-aligned broadcasting; axes l does
// not have broadcast as size 1.
func dimFromRight(l tensor.Shape, outRank, axis int) int {
	offset := outRank - l.Rank()
	if axis < offset {
		return 1
	}
	return l.Dim(axis - offset)
}

func inferQuantize(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	if len(inputs) == 0 {
		return tensor.InvalidLayout(), errors.Errorf("quantize %q needs at least one input", desc.ID)
	}
	dt := inputs[0].DType
	if desc.Params.OutputQuantized && desc.Params.TargetDType != tensor.InvalidDType {
		dt = desc.Params.TargetDType
	}
	return tensor.Layout{DType: dt, Format: inputs[0].Format, Shape: inputs[0].Shape, Valid: true}, nil
}

func inferReorder(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	if len(inputs) != 1 {
		return tensor.InvalidLayout(), errors.Errorf("reorder %q needs exactly one input", desc.ID)
	}
	in := inputs[0]
	format := desc.Params.TargetFormat
	if format.Name == "" {
		format = in.Format
	}
	dt := desc.Params.TargetDType
	if dt == tensor.InvalidDType {
		dt = in.DType
	}
	return tensor.Layout{DType: dt, Format: format, Shape: in.Shape, Valid: true}, nil
}

func inferConcatenation(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	if len(inputs) == 0 {
		return tensor.InvalidLayout(), errors.Errorf("concatenation %q needs at least one input", desc.ID)
	}
	axis := desc.Params.Axis
	dims := inputs[0].Shape.Clone().Dimensions
	if axis < 0 || axis >= len(dims) {
		return tensor.InvalidLayout(), errors.Errorf("concatenation %q axis %d out of range", desc.ID, axis)
	}
	total := 0
	for _, l := range inputs {
		total += l.Shape.Dim(axis)
	}
	dims[axis] = total
	return tensor.Layout{DType: inputs[0].DType, Format: inputs[0].Format, Shape: tensor.MakeShape(dims...), Valid: true}, nil
}

func inferExplicitShape(desc Descriptor, inputs []tensor.Layout) (tensor.Layout, error) {
	if len(inputs) != 1 {
		return tensor.InvalidLayout(), errors.Errorf("%s %q needs exactly one input", desc.Kind, desc.ID)
	}
	if len(desc.Params.ExplicitOutputDims) == 0 {
		return tensor.InvalidLayout(), errors.Errorf("%s %q has no explicit output shape", desc.Kind, desc.ID)
	}
	in := inputs[0]
	return tensor.Layout{DType: in.DType, Format: in.Format, Shape: tensor.MakeShape(desc.Params.ExplicitOutputDims...), Valid: true}, nil
}

func strideAt(s []int, axis int) int {
	if axis < len(s) {
		return s[axis]
	}
	return 1
}

func dilationAt(d []int, axis int) int {
	if axis < len(d) {
		return d[axis]
	}
	return 1
}

// Factories used when passes synthesize new descriptors.

func reorderFactory(id string, inputs []string, params Params) Descriptor {
	return Descriptor{ID: id, Kind: KindReorder, Inputs: inputs, Params: params}
}

func cropFactory(id string, inputs []string, params Params) Descriptor {
	return Descriptor{ID: id, Kind: KindCrop, Inputs: inputs, Params: params}
}

func activationFactory(id string, inputs []string, params Params) Descriptor {
	return Descriptor{ID: id, Kind: KindActivation, Inputs: inputs, Params: params}
}

func quantizeFactory(id string, inputs []string, params Params) Descriptor {
	return Descriptor{ID: id, Kind: KindQuantize, Inputs: inputs, Params: params}
}

// String helps Descriptor/Kind show up readably in error messages and dumps.
func (k Kind) String() string { return string(k) }
