package program

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
)

func TestFoldToDataInheritsIDAndOutputness(t *testing.T) {
	topology := []primitive.Descriptor{
		primitive.Descriptor{ID: "shape_in", Kind: primitive.KindData},
		primitive.Descriptor{ID: "image_in", Kind: primitive.KindData},
		primitive.Descriptor{ID: "boxes", Kind: primitive.KindPriorBox, Inputs: []string{"shape_in", "image_in"}},
		activationDesc("user", "boxes"),
	}
	p, err := New(fakeEngine{}, topology, BuildOptions{}, []string{"boxes"})
	require.NoError(t, err)
	old, err := p.NodeByID("boxes")
	require.NoError(t, err)

	folded, err := p.FoldToData(old, primitive.Descriptor{ID: "boxes_folded", Kind: primitive.KindData})
	require.NoError(t, err)
	require.Equal(t, "boxes", folded.ID())
	require.True(t, folded.IsOutput())

	user, err := p.NodeByID("user")
	require.NoError(t, err)
	require.Contains(t, user.Dependencies(), folded)

	log := p.OptimizedOutLog()
	require.Len(t, log, 1)
	require.Equal(t, []string{"boxes_folded"}, log[0].SurvivingID)
}
