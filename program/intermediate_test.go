package program

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
)

func TestAddIntermediateInsertsReorderNode(t *testing.T) {
	topology := []primitive.Descriptor{
		dataDesc("src"),
		activationDesc("dst", "src"),
	}
	p, err := New(fakeEngine{}, topology, BuildOptions{}, []string{"dst"})
	require.NoError(t, err)
	src, _ := p.NodeByID("src")
	dst, _ := p.NodeByID("dst")

	mid, err := p.GetOrCreate(primitive.Descriptor{ID: "mid", Kind: primitive.KindReorder})
	require.NoError(t, err)

	require.NoError(t, p.AddIntermediate(mid, dst, 0, true, false))

	require.Equal(t, []*Node{mid}, dst.Dependencies())
	require.Equal(t, []*Node{src}, mid.Dependencies())
	require.NotContains(t, src.Users(), dst)
}

func TestAddIntermediateThenExtractRestoresEdgeSet(t *testing.T) {
	topology := []primitive.Descriptor{
		dataDesc("src"),
		activationDesc("dst", "src"),
	}
	p, err := New(fakeEngine{}, topology, BuildOptions{}, []string{"dst"})
	require.NoError(t, err)
	src, _ := p.NodeByID("src")
	dst, _ := p.NodeByID("dst")

	mid, err := p.GetOrCreate(primitive.Descriptor{ID: "mid", Kind: primitive.KindReorder})
	require.NoError(t, err)
	require.NoError(t, p.AddIntermediate(mid, dst, 0, true, false))
	require.Equal(t, []*Node{mid}, dst.Dependencies())

	require.NoError(t, p.Extract(mid))
	require.Equal(t, []*Node{src}, dst.Dependencies())
	require.Equal(t, []*Node{dst}, src.Users())
	require.Empty(t, mid.Dependencies())
	require.Empty(t, mid.Users())
}

func TestMoveNodeRelocatesNode(t *testing.T) {
	topology := []primitive.Descriptor{
		dataDesc("a"),
		activationDesc("b", "a"),
		activationDesc("c", "b"),
	}
	p, err := New(fakeEngine{}, topology, BuildOptions{}, []string{"c"})
	require.NoError(t, err)
	a, _ := p.NodeByID("a")
	b, _ := p.NodeByID("b")
	c, _ := p.NodeByID("c")

	require.NoError(t, p.MoveNode(b, a, c))
	require.Equal(t, []*Node{a}, b.Dependencies())
	require.Equal(t, []*Node{b}, c.Dependencies())
}
