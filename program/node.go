// Package program implements the mutable directed acyclic multigraph that
// is the graph compiler's core data model: nodes wrapping primitive
// descriptors, their dependency/user edges, and the structural-edit API
// that is the only sanctioned way to mutate it.
//
// Grounded on the teacher's graph.Graph / graph.Node (graph/graph.go,
// graph/node.go): integer-handle nodes owned by a single container,
// append-only id allocation, AssertValid-style guard methods. This package
// generalizes that shape to a graph that also supports removal, rewiring
// and renaming, per spec §3-4.3.
package program

import (
	"fmt"
	"strings"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// FusedPrimitive records one peer primitive absorbed into a host node by
// the fusing engine.
type FusedPrimitive struct {
	Descriptor     primitive.Descriptor
	OriginalInput  tensor.Layout
	OriginalOutput tensor.Layout
	Activation     string
	DepStartIdx    int
}

// Node is a mutable vertex wrapping one primitive descriptor.
//
// Dependency and user edges are non-owning references: the Program's
// id-map is the sole owner of every live Node (see DESIGN NOTES in
// spec.md §9 on raw back-pointers -- here the "pointers" are just *Node,
// since Go's GC makes the arena-of-handles rewrite optional, but the
// ownership discipline -- edges must be rewritten before a node is
// destroyed -- is preserved exactly).
type Node struct {
	id     string
	kind   primitive.Kind
	params primitive.Params

	dependencies []*Node // ordered; the i-th dependency is the i-th input.
	users        []*Node // unordered.

	outputLayout tensor.Layout
	constant     bool
	dataFlow     bool
	output       bool

	selectedImpl     string
	fusedPrimitives  []FusedPrimitive
	fusedActivations []string
	preferOnednn     bool

	trace error // set only when the owning Program is traced.
}

// ID returns the node's current unique identifier.
func (n *Node) ID() string { return n.id }

// Kind returns the primitive kind this node wraps.
func (n *Node) Kind() primitive.Kind { return n.kind }

// Params returns the node's descriptor parameters. Callers must not keep a
// pointer into slices it contains across a structural edit.
func (n *Node) Params() primitive.Params { return n.params }

// SetParams replaces the node's parameters. It does not touch edges or
// recompute the layout; callers that change something layout-relevant must
// call Program.RecomputeLayout afterward.
func (n *Node) SetParams(p primitive.Params) { n.params = p }

// Dependencies returns the node's ordered predecessors. The returned slice
// is owned by Node and must not be mutated by the caller.
func (n *Node) Dependencies() []*Node { return n.dependencies }

// Users returns the node's unordered successors. The returned slice is
// owned by Node and must not be mutated by the caller.
func (n *Node) Users() []*Node { return n.users }

// Descriptor reconstructs the primitive.Descriptor this node currently
// represents, using live dependency ids.
func (n *Node) Descriptor() primitive.Descriptor {
	inputs := make([]string, len(n.dependencies))
	for i, d := range n.dependencies {
		inputs[i] = d.id
	}
	return primitive.Descriptor{ID: n.id, Kind: n.kind, Inputs: inputs, Params: n.params}
}

// OutputLayout returns the node's current output layout. It may be
// invalid (Layout.Valid == false) if it hasn't been computed yet.
func (n *Node) OutputLayout() tensor.Layout { return n.outputLayout }

// SetOutputLayout replaces the node's output layout. Called by layout
// inference (program.RecomputeLayout) and by passes that derive a new
// layout directly, e.g. prepare_padding merging padding into a producer.
func (n *Node) SetOutputLayout(l tensor.Layout) { n.outputLayout = l }

// IsConstant returns whether every dependency of n is constant and n's
// kind is not one of the stateful-source kinds (spec §3 invariant 4).
func (n *Node) IsConstant() bool { return n.constant }

// ReachesDataFlow returns whether n transitively reaches a data-producing
// source.
func (n *Node) ReachesDataFlow() bool { return n.dataFlow }

// IsOutput returns whether n is exposed as a graph endpoint.
func (n *Node) IsOutput() bool { return n.output }

// SelectedImpl returns the opaque kernel binding chosen by compile_graph,
// or "" if none has been selected yet.
func (n *Node) SelectedImpl() string { return n.selectedImpl }

// SetSelectedImpl records the kernel binding chosen for this node. Only the
// compile pass (or a fake standing in for the kernel selector in tests)
// should call this.
func (n *Node) SetSelectedImpl(impl string) { n.selectedImpl = impl }

// PrefersOnednnImpl returns whether add_onednn_optimization_attributes
// marked this node as a candidate for a oneDNN-backed implementation,
// consulted by the kernel selector alongside SelectedImpl.
func (n *Node) PrefersOnednnImpl() bool { return n.preferOnednn }

// SetPrefersOnednnImpl records whether n should prefer a oneDNN-backed
// implementation. Only add_onednn_optimization_attributes should call this.
func (n *Node) SetPrefersOnednnImpl(v bool) { n.preferOnednn = v }

// FusedPrimitives returns the peer descriptors absorbed into this node by
// the fusing engine, in fusion order.
func (n *Node) FusedPrimitives() []FusedPrimitive { return n.fusedPrimitives }

// FusedActivations returns the activation function names absorbed into
// this node by the fusing engine, in fusion order.
func (n *Node) FusedActivations() []string { return n.fusedActivations }

// Trace returns the stack-trace error recorded when this node was created,
// if the owning Program was traced at the time.
func (n *Node) Trace() error { return n.trace }

// String implements fmt.Stringer, mirroring teacher's Node.String (a
// one-line operator-and-shape summary).
func (n *Node) String() string {
	parts := []string{fmt.Sprintf("%s(%s)", n.id, n.kind)}
	if n.outputLayout.Valid {
		parts = append(parts, n.outputLayout.String())
	}
	if n.output {
		parts = append(parts, "[Output]")
	}
	if len(n.fusedPrimitives) > 0 {
		names := make([]string, len(n.fusedPrimitives))
		for i, f := range n.fusedPrimitives {
			names[i] = string(f.Descriptor.Kind)
		}
		parts = append(parts, fmt.Sprintf("[fused:%s]", strings.Join(names, ",")))
	}
	return strings.Join(parts, " ")
}

// hasUser reports whether u is among n's users.
func (n *Node) hasUser(u *Node) bool {
	for _, x := range n.users {
		if x == u {
			return true
		}
	}
	return false
}

// hasDependency reports whether d is among n's dependencies.
func (n *Node) hasDependency(d *Node) bool {
	for _, x := range n.dependencies {
		if x == d {
			return true
		}
	}
	return false
}

// indexOfDependency returns the first index of d in n.dependencies, or -1.
func (n *Node) indexOfDependency(d *Node) int {
	for i, x := range n.dependencies {
		if x == d {
			return i
		}
	}
	return -1
}

func removeFromSlice(s []*Node, n *Node) []*Node {
	out := s[:0:0]
	for _, x := range s {
		if x != n {
			out = append(out, x)
		}
	}
	return out
}

func removeFirstFromSlice(s []*Node, n *Node) []*Node {
	for i, x := range s {
		if x == n {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
