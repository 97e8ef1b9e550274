package program

import (
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// RecomputeLayout runs n's registered layout-inference function against its
// dependencies' current output layouts and stores the result. Returns the
// incompatible-layout error produced by the primitive's inference function,
// wrapped with n's id, if inference itself reports a mismatch.
func (p *Program) RecomputeLayout(n *Node) error {
	inputs := make([]tensor.Layout, len(n.dependencies))
	for i, d := range n.dependencies {
		inputs[i] = d.outputLayout
	}
	l, err := primitive.InferLayout(n.Descriptor(), inputs)
	if err != nil {
		return incompatibleLayout(n.id, "%s", err)
	}
	n.outputLayout = l
	return nil
}

// RecomputeLayoutsFrom recomputes n's layout and then every downstream
// node's layout, in BFS order, stopping the propagation along any branch
// whose recomputed layout is unchanged from before (a fixed point has been
// reached there already).
func (p *Program) RecomputeLayoutsFrom(n *Node) error {
	if err := p.RecomputeLayout(n); err != nil {
		return err
	}
	queue := append([]*Node{}, n.users...)
	visited := map[*Node]bool{n: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		before := cur.outputLayout
		if err := p.RecomputeLayout(cur); err != nil {
			return err
		}
		if !tensor.Compatible(before, cur.outputLayout) || before.Valid != cur.outputLayout.Valid {
			queue = append(queue, cur.users...)
		}
	}
	return nil
}
