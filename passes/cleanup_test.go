package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

func buildCleanupChain(t *testing.T) (p *program.Program, a, b, out *program.Node) {
	t.Helper()
	topology := []primitive.Descriptor{
		{ID: "a", Kind: primitive.KindData, Params: primitive.Params{DeclaredLayout: layout(1, 3, 4, 4)}},
		{ID: "b", Kind: primitive.KindActivation, Inputs: []string{"a"}, Params: primitive.Params{ActivationFunc: "relu"}},
		{ID: "out", Kind: primitive.KindActivation, Inputs: []string{"b"}, Params: primitive.Params{ActivationFunc: "relu"}},
	}
	p, err := program.New(fakeEngine{}, topology, program.BuildOptions{Debug: true}, []string{"out"})
	require.NoError(t, err)
	a, err = p.NodeByID("a")
	require.NoError(t, err)
	b, err = p.NodeByID("b")
	require.NoError(t, err)
	out, err = p.NodeByID("out")
	require.NoError(t, err)
	return p, a, b, out
}

func TestCleanupMarksEveryNodeOutputInDebugMode(t *testing.T) {
	p, a, b, out := buildCleanupChain(t)
	require.False(t, a.IsOutput())
	require.False(t, b.IsOutput())

	require.NoError(t, Cleanup(p))

	require.True(t, a.IsOutput())
	require.True(t, b.IsOutput())
	require.True(t, out.IsOutput())
	require.ElementsMatch(t, []string{"a", "b", "out"}, p.Outputs())
}

func TestCleanupIsNoopWithoutDebug(t *testing.T) {
	topology := []primitive.Descriptor{
		{ID: "a", Kind: primitive.KindData, Params: primitive.Params{DeclaredLayout: layout(1, 3, 4, 4)}},
		{ID: "b", Kind: primitive.KindActivation, Inputs: []string{"a"}, Params: primitive.Params{ActivationFunc: "relu"}},
	}
	p, err := program.New(fakeEngine{}, topology, program.BuildOptions{}, []string{"b"})
	require.NoError(t, err)

	require.NoError(t, Cleanup(p))

	a, err := p.NodeByID("a")
	require.NoError(t, err)
	require.False(t, a.IsOutput())
	require.Equal(t, []string{"b"}, p.Outputs())
}
