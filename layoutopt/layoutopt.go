// Package layoutopt implements the layout optimizer: the analysis that
// decides global per-format boolean attributes for a program (spec §4.8)
// and answers per-node preferred-format queries consulted by
// select_preferred_formats and reorder_inputs.
//
// Grounded on the teacher's attribute-bag style (gomlx's graph.Graph
// carrying derived, precomputed per-graph flags rather than recomputing
// them per call), generalized here to the specific counting heuristics
// the spec requires verbatim.
package layoutopt

import (
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// Attributes holds the per-format boolean decisions and the node-level
// preferred-format map computed by Analyze.
type Attributes struct {
	BFsYxFsv16Network      bool
	FsBYxFsv32Network      bool
	BFsZyxFsv32Network     bool
	BsFsYxBsv16Fsv16Network bool
	UseOnednnImpls         bool

	preferredInput  map[string]tensor.Format
	preferredOutput map[string]tensor.Format
}

// PreferredInputFormat returns the format reorder_inputs should insert a
// reorder for if a producer's output format differs, or the zero Format
// (no preference) if none was recorded for nodeID.
func (a *Attributes) PreferredInputFormat(nodeID string) (tensor.Format, bool) {
	f, ok := a.preferredInput[nodeID]
	return f, ok
}

// PreferredOutputFormat returns the preferred output format for nodeID, if
// any was recorded.
func (a *Attributes) PreferredOutputFormat(nodeID string) (tensor.Format, bool) {
	f, ok := a.preferredOutput[nodeID]
	return f, ok
}

// convCounts accumulates the counts set_layout_optimizer_attributes needs,
// per spec §4.8.
type convCounts struct {
	total              int
	depthwiseGE16Group int
	depthwiseLT16Group int
	grouped            int
	oneByOneFeatureMap int
	crops              int
	asymQuantizedConv  int

	optimizableFsv16Convs int
	optimizableFsv16Deconv bool

	fsv16Compatible  bool
	fsv32Compatible  bool
	noGroupedConv    bool
	allConvOptimizableBsv16 bool
	anyDepthwise     bool
}

// fsv16IncompatibleKinds are primitive kinds that disqualify a graph from
// being fsv16/fsv32-compatible when present (spec §4.8's "whether the
// model graph contains only kinds known compatible with each candidate
// block format").
var fsv16IncompatibleKinds = map[primitive.Kind]bool{
	primitive.KindBinaryConvolution: true,
}

// Analyze computes the program-wide layout-optimizer attributes and the
// per-node preferred-format maps, per spec §4.8.
func Analyze(p *program.Program) *Attributes {
	c := countConvolutions(p)

	attrs := &Attributes{
		preferredInput:  make(map[string]tensor.Format),
		preferredOutput: make(map[string]tensor.Format),
	}

	isInt8Quantized := c.asymQuantizedConv > 0 || hasQuantizeNode(p)

	attrs.BFsYxFsv16Network = isInt8Quantized ||
		(c.fsv16Compatible &&
			c.total > 11 &&
			(ratio(c.optimizableFsv16Convs, c.total) > 0.5 || c.optimizableFsv16Deconv) &&
			c.optimizableFsv16Convs*2 > c.crops)

	attrs.FsBYxFsv32Network = c.total > 11 &&
		c.noGroupedConv &&
		ratio(c.oneByOneFeatureMap, c.total) < 0.8

	attrs.BFsZyxFsv32Network = c.asymQuantizedConv > 1

	attrs.BsFsYxBsv16Fsv16Network = c.allConvOptimizableBsv16 &&
		c.noGroupedConv &&
		!c.anyDepthwise

	attrs.UseOnednnImpls = attrs.BFsYxFsv16Network || attrs.BsFsYxBsv16Fsv16Network

	blockFormat := tensor.Format{}
	switch {
	case attrs.BFsYxFsv16Network:
		blockFormat = tensor.FormatBFYXFsv16
	case attrs.BsFsYxBsv16Fsv16Network:
		blockFormat = tensor.FormatBSFSYXBsv16Fsv16
	case attrs.FsBYxFsv32Network:
		blockFormat = tensor.FormatFSBYXFsv32
	case attrs.BFsZyxFsv32Network:
		blockFormat = tensor.FormatBFZYXFsv32
	}
	if blockFormat.Name != "" {
		for _, n := range p.ProcessingOrder() {
			if n.Kind() == primitive.KindConvolution || n.Kind() == primitive.KindDeconvolution {
				attrs.preferredInput[n.ID()] = blockFormat
				attrs.preferredOutput[n.ID()] = blockFormat
			}
		}
	}
	return attrs
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func hasQuantizeNode(p *program.Program) bool {
	for _, n := range p.ProcessingOrder() {
		if n.Kind() == primitive.KindQuantize && n.Params().OutputQuantized {
			return true
		}
	}
	return false
}

func countConvolutions(p *program.Program) convCounts {
	var c convCounts
	c.fsv16Compatible = true
	c.fsv32Compatible = true
	c.noGroupedConv = true
	c.allConvOptimizableBsv16 = true

	for _, n := range p.ProcessingOrder() {
		if fsv16IncompatibleKinds[n.Kind()] {
			c.fsv16Compatible = false
			c.fsv32Compatible = false
		}
		if n.Kind() == primitive.KindCrop {
			c.crops++
			continue
		}
		if n.Kind() != primitive.KindConvolution && n.Kind() != primitive.KindDeconvolution {
			continue
		}
		params := n.Params()
		isDeconv := n.Kind() == primitive.KindDeconvolution
		if !isDeconv {
			c.total++
		}

		grouped := params.GroupCount > 1
		if grouped {
			c.grouped++
			c.noGroupedConv = false
		}
		depthwise := grouped && groupsCoverChannels(n)
		if depthwise {
			c.anyDepthwise = true
			if params.GroupCount >= 16 {
				c.depthwiseGE16Group++
			} else {
				c.depthwiseLT16Group++
			}
		}
		if isOneByOneFeatureMap(n) {
			c.oneByOneFeatureMap++
		}
		optimizable := !grouped && isFsv16Optimizable(n)
		if isDeconv {
			if optimizable {
				c.optimizableFsv16Deconv = true
			}
			continue
		}
		if optimizable {
			c.optimizableFsv16Convs++
		} else {
			c.allConvOptimizableBsv16 = false
		}
		if isAsymQuantized(n) {
			c.asymQuantizedConv++
		}
	}
	return c
}

// groupsCoverChannels reports whether a grouped convolution's group count
// equals its input feature-map count, i.e. it is depthwise rather than
// merely grouped.
func groupsCoverChannels(n *program.Node) bool {
	deps := n.Dependencies()
	if len(deps) == 0 || !deps[0].OutputLayout().Valid {
		return false
	}
	shape := deps[0].OutputLayout().Shape
	return shape.Rank() > 1 && n.Params().GroupCount == shape.Dim(1)
}

func isOneByOneFeatureMap(n *program.Node) bool {
	deps := n.Dependencies()
	if len(deps) < 2 || !deps[1].OutputLayout().Valid {
		return false
	}
	shape := deps[1].OutputLayout().Shape
	for axis := 2; axis < shape.Rank(); axis++ {
		if shape.Dim(axis) != 1 {
			return false
		}
	}
	return true
}

// isFsv16Optimizable approximates the kernel selector's notion of a
// block-format-friendly convolution: feature-map count divisible by 16 and
// no dilation.
func isFsv16Optimizable(n *program.Node) bool {
	deps := n.Dependencies()
	if len(deps) == 0 || !deps[0].OutputLayout().Valid {
		return false
	}
	shape := deps[0].OutputLayout().Shape
	if shape.Rank() < 2 || shape.Dim(1)%16 != 0 {
		return false
	}
	for _, d := range n.Params().Dilations {
		if d != 1 {
			return false
		}
	}
	return true
}

func isAsymQuantized(n *program.Node) bool {
	deps := n.Dependencies()
	for _, d := range deps {
		if tensor.IsQuantized(d.OutputLayout().DType) {
			return true
		}
	}
	return false
}
