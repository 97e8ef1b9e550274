package passes

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// GraphInitializations expands split nodes into one crop per declared
// output offset and recalculates the processing order, before any
// analysis runs (spec §4.5 step 1). Input-layout nodes are left as they
// are.
func GraphInitializations(p *program.Program) error {
	for _, n := range p.ProcessingOrder() {
		if n.Kind() != primitive.KindSplit {
			continue
		}
		if err := expandSplit(p, n); err != nil {
			return err
		}
	}
	p.RecalculateProcessingOrder()
	return nil
}

// expandSplit replaces a split node with one crop per entry of its
// OutputOffsets, each reading directly from split's own dependency, then
// removes the now-dangling split node.
func expandSplit(p *program.Program, split *program.Node) error {
	deps := split.Dependencies()
	if len(deps) != 1 {
		return errors.Errorf("split %q must have exactly one dependency, got %d", split.ID(), len(deps))
	}
	producer := deps[0]
	params := split.Params()
	for i, offsets := range params.OutputOffsets {
		cropID := fmt.Sprintf("%s_part_%d", split.ID(), i)
		crop, err := p.GetOrCreate(primitive.Descriptor{
			ID:   cropID,
			Kind: primitive.KindCrop,
			Params: primitive.Params{
				OutputOffsets:      [][]int{offsets},
				ExplicitOutputDims: cropDimsFor(params, i),
			},
		})
		if err != nil {
			return err
		}
		if err := p.AddConnection(producer, crop); err != nil {
			return err
		}
	}
	p.RemoveAllConnections(split)
	p.RemoveIfDangling(split)
	return nil
}

func cropDimsFor(params primitive.Params, i int) []int {
	if i < len(params.Offsets) {
		return params.Offsets[i]
	}
	return nil
}
