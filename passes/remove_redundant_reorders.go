package passes

import (
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// RemoveRedundantReorders deletes reorder nodes whose input and output
// layouts are compatible, and pattern-merges consecutive reorders into a
// single one targeting the final format/dtype (spec §4.7). It is
// idempotent: running it again on its own output is a no-op.
func RemoveRedundantReorders(p *program.Program) error {
	for changed := true; changed; {
		changed = false
		for _, n := range p.ProcessingOrder() {
			if n.Kind() != primitive.KindReorder {
				continue
			}
			deps := n.Dependencies()
			if len(deps) != 1 {
				continue
			}
			src := deps[0]

			if mergeConsecutiveReorders(p, src, n) {
				changed = true
				continue
			}
			if tensor.Compatible(src.OutputLayout(), n.OutputLayout()) {
				p.LogOptimizedOut(n, src.ID())
				if err := p.Extract(n); err != nil {
					return err
				}
				p.RemoveIfDangling(n)
				changed = true
			}
		}
		if changed {
			p.RecalculateProcessingOrder()
		}
	}
	return nil
}

// mergeConsecutiveReorders collapses src->n into a single reorder when src
// is itself a reorder with no other users: n's target format/dtype wins.
func mergeConsecutiveReorders(p *program.Program, src, n *program.Node) bool {
	if src.Kind() != primitive.KindReorder || len(src.Users()) != 1 {
		return false
	}
	srcDeps := src.Dependencies()
	if len(srcDeps) != 1 {
		return false
	}
	p.LogOptimizedOut(src, n.ID())
	if err := p.Extract(src); err != nil {
		return false
	}
	p.RemoveIfDangling(src)
	return true
}
