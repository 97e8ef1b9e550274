package analysis

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

func TestImplementationInfoUndefBeforeCompile(t *testing.T) {
	topology := []primitive.Descriptor{{ID: "x", Kind: primitive.KindData}}
	p, err := program.New(fakeEngine{}, topology, program.BuildOptions{}, []string{"x"})
	require.NoError(t, err)
	x, err := p.NodeByID("x")
	require.NoError(t, err)

	require.Equal(t, "undef", ImplementationInfo(x, dtypes.Float32))
}

func TestImplementationInfoAfterCompile(t *testing.T) {
	topology := []primitive.Descriptor{{ID: "x", Kind: primitive.KindData}}
	p, err := program.New(fakeEngine{}, topology, program.BuildOptions{}, []string{"x"})
	require.NoError(t, err)
	x, err := p.NodeByID("x")
	require.NoError(t, err)
	x.SetSelectedImpl("generic_data")

	require.Equal(t, "generic_data__"+dtypes.Float32.String(), ImplementationInfo(x, dtypes.Float32))
}
