package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

type fakeEngine struct{}

func (fakeEngine) ProfilingEnabled() bool { return false }

func TestMarkNodesIsIdempotent(t *testing.T) {
	topology := []primitive.Descriptor{
		{ID: "w", Kind: primitive.KindData},
		{ID: "x", Kind: primitive.KindInputLayout},
		{ID: "sum", Kind: primitive.KindEltwise, Inputs: []string{"w", "x"}},
	}
	p, err := program.New(fakeEngine{}, topology, program.BuildOptions{}, []string{"sum"})
	require.NoError(t, err)

	MarkNodes(p)
	sum, err := p.NodeByID("sum")
	require.NoError(t, err)
	require.False(t, sum.IsConstant()) // x is a stateful source, never constant.
	require.True(t, sum.ReachesDataFlow())

	snapshot := sum.IsConstant()
	dataFlowSnapshot := sum.ReachesDataFlow()
	MarkNodes(p)
	require.Equal(t, snapshot, sum.IsConstant())
	require.Equal(t, dataFlowSnapshot, sum.ReachesDataFlow())
}

func TestMarkNodesAllConstantChain(t *testing.T) {
	topology := []primitive.Descriptor{
		{ID: "a", Kind: primitive.KindData},
		{ID: "b", Kind: primitive.KindData},
		{ID: "sum", Kind: primitive.KindEltwise, Inputs: []string{"a", "b"}},
	}
	p, err := program.New(fakeEngine{}, topology, program.BuildOptions{}, []string{"sum"})
	require.NoError(t, err)

	MarkNodes(p)
	sum, err := p.NodeByID("sum")
	require.NoError(t, err)
	require.True(t, sum.IsConstant())
	require.False(t, sum.ReachesDataFlow())
}
