package passes

import (
	"github.com/pkg/errors"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// Evaluator is the external collaborator that actually executes a
// sub-program of constant nodes and returns each requested output's
// computed value, standing in for the engine the core never implements.
type Evaluator interface {
	Evaluate(sub *program.Program, outputIDs []string) (map[string]any, error)
}

// PropagateConstants collects the subgraph of constant nodes, builds a
// sub-program over it, executes it through eval, and replaces the
// frontier constant producers -- those with a non-constant user or
// exposed as a program output -- with data nodes holding the results
// (spec §4.7). The rest of the now-unreachable constant subgraph is swept
// by a trailing dangling pass.
func PropagateConstants(p *program.Program, eval Evaluator) error {
	var constantDescs []primitive.Descriptor
	var frontierIDs []string
	for _, n := range p.ProcessingOrder() {
		if !n.IsConstant() {
			continue
		}
		constantDescs = append(constantDescs, n.Descriptor())
		if n.Kind() == primitive.KindData {
			continue
		}
		if n.IsOutput() || hasNonConstantUser(n) {
			frontierIDs = append(frontierIDs, n.ID())
		}
	}
	if len(frontierIDs) == 0 {
		return nil
	}

	sub, err := program.NewFromNodes(nil, constantDescs, p.Options())
	if err != nil {
		return errors.Wrap(err, "propagate_constants: building constant sub-program")
	}
	results, err := eval.Evaluate(sub, frontierIDs)
	if err != nil {
		return errors.Wrap(err, "propagate_constants: evaluating constant sub-program")
	}

	for _, id := range frontierIDs {
		n, err := p.NodeByID(id)
		if err != nil {
			continue
		}
		value, ok := results[id]
		if !ok {
			continue
		}
		layout := n.OutputLayout()
		data, err := p.FoldToData(n, primitive.Descriptor{
			ID:   id + "_const",
			Kind: primitive.KindData,
			Params: primitive.Params{
				DeclaredLayout: layout,
				ConstantValue:  value,
			},
		})
		if err != nil {
			return err
		}
		data.SetOutputLayout(layout)
	}

	for _, n := range p.ProcessingOrder() {
		if n.IsConstant() && len(n.Users()) == 0 && !n.IsOutput() {
			p.RemoveAllConnections(n)
			p.RemoveIfDangling(n)
		}
	}
	p.RecalculateProcessingOrder()
	return nil
}

func hasNonConstantUser(n *program.Node) bool {
	for _, u := range n.Users() {
		if !u.IsConstant() {
			return true
		}
	}
	return false
}
