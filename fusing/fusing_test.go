package fusing

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

func buildHostPeerProgram(t *testing.T) (p *program.Program, host, peer, down *program.Node) {
	t.Helper()
	topology := []primitive.Descriptor{
		{ID: "x", Kind: primitive.KindData, Params: primitive.Params{DeclaredLayout: layout(1, 3, 4, 4)}},
		{ID: "y", Kind: primitive.KindData, Params: primitive.Params{DeclaredLayout: layout(1, 3, 4, 4)}},
		{ID: "host", Kind: primitive.KindEltwise, Inputs: []string{"x", "y"}, Params: primitive.Params{EltwiseOp: "add"}},
		{ID: "peer", Kind: primitive.KindActivation, Inputs: []string{"host"}, Params: primitive.Params{ActivationFunc: "relu"}},
		{ID: "down", Kind: primitive.KindActivation, Inputs: []string{"peer"}, Params: primitive.Params{ActivationFunc: "relu"}},
	}
	prog, err := program.New(fakeEngine{}, topology, program.BuildOptions{}, []string{"down"})
	require.NoError(t, err)
	for _, id := range []string{"x", "y", "host", "peer", "down"} {
		n, err := prog.NodeByID(id)
		require.NoError(t, err)
		require.NoError(t, prog.RecomputeLayout(n))
	}
	h, _ := prog.NodeByID("host")
	pe, _ := prog.NodeByID("peer")
	dn, _ := prog.NodeByID("down")
	return prog, h, pe, dn
}

func TestFuseNodesAbsorbsPeerActivation(t *testing.T) {
	p, host, peer, down := buildHostPeerProgram(t)
	history := History{}

	require.NoError(t, FuseNodes(p, host, peer, history))

	require.Equal(t, []string{"relu"}, host.FusedActivations())
	require.Empty(t, peer.Dependencies())
	require.Empty(t, peer.Users())
	require.Contains(t, down.Dependencies(), host)

	log := p.OptimizedOutLog()
	require.Len(t, log, 1)
	require.Equal(t, "peer", log[0].RemovedID)
	require.Equal(t, []string{"host"}, log[0].SurvivingID)
}

func TestFuseNodesThenRemoveIfDanglingSweepsPeer(t *testing.T) {
	p, host, peer, _ := buildHostPeerProgram(t)
	require.NoError(t, FuseNodes(p, host, peer, History{}))
	require.True(t, p.RemoveIfDangling(peer))
	_, err := p.NodeByID(peer.ID())
	require.Error(t, err)
}

func buildHostOutputPeerProgram(t *testing.T) (p *program.Program, host, peer *program.Node) {
	t.Helper()
	topology := []primitive.Descriptor{
		{ID: "x", Kind: primitive.KindData, Params: primitive.Params{DeclaredLayout: layout(1, 3, 4, 4)}},
		{ID: "y", Kind: primitive.KindData, Params: primitive.Params{DeclaredLayout: layout(1, 3, 4, 4)}},
		{ID: "host", Kind: primitive.KindEltwise, Inputs: []string{"x", "y"}, Params: primitive.Params{EltwiseOp: "add"}},
		{ID: "peer", Kind: primitive.KindActivation, Inputs: []string{"host"}, Params: primitive.Params{ActivationFunc: "relu"}},
	}
	prog, err := program.New(fakeEngine{}, topology, program.BuildOptions{}, []string{"peer"})
	require.NoError(t, err)
	for _, id := range []string{"x", "y", "host", "peer"} {
		n, err := prog.NodeByID(id)
		require.NoError(t, err)
		require.NoError(t, prog.RecomputeLayout(n))
	}
	h, _ := prog.NodeByID("host")
	pe, _ := prog.NodeByID("peer")
	return prog, h, pe
}

// TestFuseNodesIntoOutputPeerTransfersOutputFlag covers the spec's own
// canonical Conv+ReLU fusion scenario, where the fused activation is also
// the graph's sole output: host must inherit the output flag rather than
// fusing being skipped.
func TestFuseNodesIntoOutputPeerTransfersOutputFlag(t *testing.T) {
	p, host, peer := buildHostOutputPeerProgram(t)
	require.True(t, peer.IsOutput())
	require.False(t, host.IsOutput())

	require.NoError(t, FuseNodes(p, host, peer, History{}))

	require.True(t, host.IsOutput())
	require.False(t, peer.IsOutput())
	require.Equal(t, []string{"host"}, p.Outputs())
}
