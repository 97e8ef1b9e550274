package passes

import (
	"github.com/OlehKravchyshyn/gpugraph/layoutopt"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// SelectPreferredFormats adopts the layout optimizer's preferred output
// format directly on a node's own layout wherever the primitive's layout
// inference is agnostic to format (so no reorder is needed at all); nodes
// that can't simply relabel their format are left for ReorderInputs to
// handle with an explicit reorder node (spec §4.5 step 12).
func SelectPreferredFormats(p *program.Program, attrs *layoutopt.Attributes) error {
	for _, n := range p.ProcessingOrder() {
		preferred, ok := attrs.PreferredOutputFormat(n.ID())
		if !ok {
			continue
		}
		layout := n.OutputLayout()
		if !layout.Valid || layout.Format.Equal(preferred) {
			continue
		}
		layout.Format = preferred
		n.SetOutputLayout(layout)
	}
	return nil
}
