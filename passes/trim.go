// Package passes implements the concrete optimization pass set the pass
// manager runs, per spec §4.7.
//
// Grounded on the teacher's graph-rewrite passes (gomlx/graph's
// simplification functions, which walk a Graph and call its own mutation
// methods); here each pass is a plain function taking a *program.Program
// and returning an error, matching spec §4.5's "a pass is a function
// run(program)".
package passes

import "github.com/OlehKravchyshyn/gpugraph/program"

// TrimToOutputs marks the set reachable from outputs via reverse BFS and
// removes everything else (spec §4.7).
func TrimToOutputs(p *program.Program) error {
	reachable := make(map[*program.Node]bool)
	var queue []*program.Node
	for _, id := range p.Outputs() {
		n, err := p.NodeByID(id)
		if err != nil {
			return err
		}
		if !reachable[n] {
			reachable[n] = true
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, d := range n.Dependencies() {
			if !reachable[d] {
				reachable[d] = true
				queue = append(queue, d)
			}
		}
	}

	for _, n := range p.ProcessingOrder() {
		if reachable[n] {
			continue
		}
		p.RemoveAllConnections(n)
		p.RemoveIfDangling(n)
	}
	p.RecalculateProcessingOrder()
	return nil
}
