package program

import "github.com/OlehKravchyshyn/gpugraph/primitive"

// FoldToData replaces old with a freshly created data node built from
// dataDesc: every user of old is rewired to the new node, old's own
// dependencies are dropped, old is removed, and the new node inherits
// old's id and output-ness. It is the shared shape behind constant
// folding (propagate_constants, calculate_prior_boxes): the replacement
// is always a leaf, unlike Replace, which preserves the original's
// dependency set for a like-for-like substitution.
func (p *Program) FoldToData(old *Node, dataDesc primitive.Descriptor) (*Node, error) {
	oldID := old.id
	wasOutput := old.output

	data, err := p.GetOrCreate(dataDesc)
	if err != nil {
		return nil, err
	}

	p.LogOptimizedOut(old, data.id)
	p.ReplaceAllUsages(old, data)
	for _, d := range append([]*Node{}, old.dependencies...) {
		p.RemoveConnection(d, old)
	}
	p.order.Erase(old)
	delete(p.nodes, oldID)

	if data.id != oldID {
		if err := p.Rename(data, oldID); err != nil {
			return data, err
		}
	}
	if wasOutput {
		old.output = false
		data.output = true
		for i, id := range p.outputs {
			if id == oldID {
				p.outputs[i] = data.id
			}
		}
	}
	return data, nil
}
