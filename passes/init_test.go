package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// TestGraphInitializationsExpandsSplit exercises spec §8 end-to-end scenario
// 4: a split with two declared output offsets becomes two crops fed
// directly from the split's own dependency, and the split itself is
// optimized out.
func TestGraphInitializationsExpandsSplit(t *testing.T) {
	topology := []primitive.Descriptor{
		{ID: "x", Kind: primitive.KindData, Params: primitive.Params{DeclaredLayout: layout(1, 16, 4, 4)}},
		{
			ID:     "s",
			Kind:   primitive.KindSplit,
			Inputs: []string{"x"},
			Params: primitive.Params{
				OutputOffsets: [][]int{{0, 0, 0, 0}, {0, 8, 0, 0}},
				Offsets:       [][]int{{1, 8, 4, 4}, {1, 8, 4, 4}},
			},
		},
	}
	p, err := program.New(fakeEngine{}, topology, program.BuildOptions{}, nil)
	require.NoError(t, err)
	x, err := p.NodeByID("x")
	require.NoError(t, err)

	require.NoError(t, GraphInitializations(p))

	_, err = p.NodeByID("s")
	require.Error(t, err, "split node should have been removed")

	part0, err := p.NodeByID("s_part_0")
	require.NoError(t, err)
	part1, err := p.NodeByID("s_part_1")
	require.NoError(t, err)

	require.Contains(t, part0.Dependencies(), x)
	require.Contains(t, part1.Dependencies(), x)
	require.Equal(t, primitive.KindCrop, part0.Kind())
	require.Equal(t, [][]int{{0, 0, 0, 0}}, part0.Params().OutputOffsets)
	require.Equal(t, [][]int{{0, 8, 0, 0}}, part1.Params().OutputOffsets)
}
