package passmgr

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

type fakeEngine struct{}

func (fakeEngine) ProfilingEnabled() bool { return false }

type fixedKernelSelector struct{}

func (fixedKernelSelector) Select(nodeID string, kind primitive.Kind, layout tensor.Layout) (string, error) {
	return "generic_" + string(kind), nil
}

func layout(dims ...int) tensor.Layout {
	return tensor.Layout{DType: dtypes.Float32, Format: tensor.FormatBFYX, Shape: tensor.MakeShape(dims...), Valid: true}
}

func buildSimpleProgram(t *testing.T, opts program.BuildOptions) *program.Program {
	t.Helper()
	topology := []primitive.Descriptor{
		{ID: "x", Kind: primitive.KindData, Params: primitive.Params{DeclaredLayout: layout(1, 3, 4, 4)}},
		{ID: "y", Kind: primitive.KindData, Params: primitive.Params{DeclaredLayout: layout(1, 3, 4, 4)}},
		{ID: "sum", Kind: primitive.KindEltwise, Inputs: []string{"x", "y"}, Params: primitive.Params{EltwiseOp: "add"}},
		{ID: "act", Kind: primitive.KindActivation, Inputs: []string{"sum"}, Params: primitive.Params{ActivationFunc: "relu"}},
	}
	p, err := program.New(fakeEngine{}, topology, opts, []string{"act"})
	require.NoError(t, err)
	for _, id := range []string{"x", "y", "sum", "act"} {
		n, err := p.NodeByID(id)
		require.NoError(t, err)
		require.NoError(t, p.RecomputeLayout(n))
	}
	return p
}

func TestRunCompletesAndSelectsKernels(t *testing.T) {
	// act is the program's sole output and sum's only user, so
	// prepare_primitive_fusing absorbs it into sum: sum inherits the
	// output flag (program.TransferOutput) and act is swept as dangling.
	p := buildSimpleProgram(t, program.BuildOptions{OptimizeData: true})
	err := Run(p, Collaborators{KernelSelector: fixedKernelSelector{}})
	require.NoError(t, err)

	_, err = p.NodeByID("act")
	require.Error(t, err)

	sum, err := p.NodeByID("sum")
	require.NoError(t, err)
	require.True(t, sum.IsOutput())
	require.Equal(t, "generic_eltwise", sum.SelectedImpl())
	require.Equal(t, []string{"relu"}, sum.FusedActivations())

	var sawMemdep bool
	for _, entry := range p.OptimizerPassesLog() {
		if entry.PassName == "memory_dependencies" {
			sawMemdep = true
		}
	}
	require.True(t, sawMemdep)
}

func TestRunFusingIntoOutputNodeTransfersOutputFlag(t *testing.T) {
	// Same shape as the spec's Conv+ReLU canonical scenario: the fused
	// activation is the graph's sole output. Fusing must not be skipped
	// just because the peer being absorbed happens to be an output.
	p := buildSimpleProgram(t, program.BuildOptions{OptimizeData: true})
	require.NoError(t, Run(p, Collaborators{KernelSelector: fixedKernelSelector{}}))

	require.Equal(t, []string{"sum"}, p.Outputs())
}

func TestRunStopsAfterMemoryDependenciesOnPartialBuild(t *testing.T) {
	p := buildSimpleProgram(t, program.BuildOptions{OptimizeData: true, PartialBuildProgram: true})
	require.NoError(t, Run(p, Collaborators{KernelSelector: fixedKernelSelector{}}))

	log := p.OptimizerPassesLog()
	require.NotEmpty(t, log)
	require.Equal(t, "memory_dependencies", log[len(log)-1].PassName)
}

func TestRunSkipsOptimizePhasesWhenDisabled(t *testing.T) {
	p := buildSimpleProgram(t, program.BuildOptions{OptimizeData: true, NoOptimizations: true})
	require.NoError(t, Run(p, Collaborators{KernelSelector: fixedKernelSelector{}}))

	for _, entry := range p.OptimizerPassesLog() {
		require.NotEqual(t, string(PhasePreOptimize), entry.Stage)
		require.NotEqual(t, string(PhasePostOptimize), entry.Stage)
	}
}
