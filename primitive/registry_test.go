package primitive

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"

	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

func TestCheckArityRejectsOutOfRange(t *testing.T) {
	desc := Descriptor{ID: "e", Kind: KindEltwise, Inputs: []string{"a"}} // eltwise needs >= 2.
	require.Error(t, CheckArity(desc))
}

func TestCheckArityAcceptsWithinRange(t *testing.T) {
	desc := Descriptor{ID: "e", Kind: KindEltwise, Inputs: []string{"a", "b"}}
	require.NoError(t, CheckArity(desc))
}

func TestInferLayoutDispatchesByKind(t *testing.T) {
	l := tensor.Layout{DType: dtypes.Float32, Format: tensor.FormatBFYX, Shape: tensor.MakeShape(1, 3, 4, 4), Valid: true}
	desc := Descriptor{ID: "act", Kind: KindActivation, Inputs: []string{"a"}}
	out, err := InferLayout(desc, []tensor.Layout{l})
	require.NoError(t, err)
	require.Equal(t, l, out)
}

func TestInferLayoutRejectsUnregisteredKind(t *testing.T) {
	desc := Descriptor{ID: "x", Kind: Kind("nonexistent")}
	_, err := InferLayout(desc, nil)
	require.Error(t, err)
}

func TestLookupFindsBuiltins(t *testing.T) {
	e, ok := Lookup(KindConvolution)
	require.True(t, ok)
	require.True(t, e.CanFuseAsHost)
}
