package passes

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

func layout(dims ...int) tensor.Layout {
	return tensor.Layout{DType: dtypes.Float32, Format: tensor.FormatBFYX, Shape: tensor.MakeShape(dims...), Valid: true}
}

// buildRedundantReorderProgram wires a -> R -> b where R is a reorder from
// bfyx to bfyx: since it changes neither format nor dtype, it is redundant
// per spec §4.7 / §8 end-to-end scenario 5.
func buildRedundantReorderProgram(t *testing.T) (*program.Program, *program.Node) {
	t.Helper()
	topology := []primitive.Descriptor{
		{ID: "a", Kind: primitive.KindData, Params: primitive.Params{DeclaredLayout: layout(1, 3, 4, 4)}},
		{ID: "r", Kind: primitive.KindReorder, Inputs: []string{"a"}},
		{ID: "b", Kind: primitive.KindActivation, Inputs: []string{"r"}},
	}
	p, err := program.New(fakeEngine{}, topology, program.BuildOptions{}, []string{"b"})
	require.NoError(t, err)
	for _, id := range []string{"a", "r", "b"} {
		n, err := p.NodeByID(id)
		require.NoError(t, err)
		require.NoError(t, p.RecomputeLayout(n))
	}
	r, err := p.NodeByID("r")
	require.NoError(t, err)
	return p, r
}

func TestRemoveRedundantReordersDropsNoopReorder(t *testing.T) {
	p, r := buildRedundantReorderProgram(t)
	a, err := p.NodeByID("a")
	require.NoError(t, err)
	b, err := p.NodeByID("b")
	require.NoError(t, err)

	require.NoError(t, RemoveRedundantReorders(p))

	require.Contains(t, b.Dependencies(), a)
	_, err = p.NodeByID(r.ID())
	require.Error(t, err)

	log := p.OptimizedOutLog()
	require.Len(t, log, 1)
	require.Equal(t, "r", log[0].RemovedID)
}

func TestRemoveRedundantReordersIsIdempotent(t *testing.T) {
	p, _ := buildRedundantReorderProgram(t)
	require.NoError(t, RemoveRedundantReorders(p))
	firstLogLen := len(p.OptimizedOutLog())

	require.NoError(t, RemoveRedundantReorders(p))
	require.Len(t, p.OptimizedOutLog(), firstLogLen)
}
