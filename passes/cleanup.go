package passes

import "github.com/OlehKravchyshyn/gpugraph/program"

// Cleanup is the last step of the canonical pipeline (spec §4.5 step 19,
// the graph-structural half of it -- compiling/initializing kernels and
// transferring constants to device are the engine's job, out of scope
// here). In a debug build it marks every remaining node as an output, so a
// caller inspecting the compiled program can query the buffer of any node
// that survived optimization, not only the ones the model declared as
// outputs (spec §9).
func Cleanup(p *program.Program) error {
	if !p.Options().Debug {
		return nil
	}
	p.MarkAllOutputs()
	return nil
}
