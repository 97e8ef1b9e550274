package program

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
)

type fakeEngine struct{ profiling bool }

func (f fakeEngine) ProfilingEnabled() bool { return f.profiling }

func dataDesc(id string) primitive.Descriptor {
	return primitive.Descriptor{ID: id, Kind: primitive.KindData}
}

func eltwiseDesc(id string, inputs ...string) primitive.Descriptor {
	return primitive.Descriptor{ID: id, Kind: primitive.KindEltwise, Inputs: inputs}
}

func activationDesc(id, input string) primitive.Descriptor {
	return primitive.Descriptor{ID: id, Kind: primitive.KindActivation, Inputs: []string{input}}
}

func TestNewWiresLinearChain(t *testing.T) {
	topology := []primitive.Descriptor{
		dataDesc("a"),
		dataDesc("b"),
		eltwiseDesc("c", "a", "b"),
	}
	p, err := New(fakeEngine{}, topology, BuildOptions{}, []string{"c"})
	require.NoError(t, err)
	require.Equal(t, 3, p.NumNodes())
	require.Equal(t, []string{"a", "b"}, p.Inputs())
	require.Equal(t, []string{"c"}, p.Outputs())

	c, err := p.NodeByID("c")
	require.NoError(t, err)
	require.True(t, c.IsOutput())
	require.Len(t, c.Dependencies(), 2)
}

func TestNewRejectsUnknownInput(t *testing.T) {
	topology := []primitive.Descriptor{
		activationDesc("c", "missing"),
	}
	_, err := New(fakeEngine{}, topology, BuildOptions{}, []string{"c"})
	require.Error(t, err)
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, ErrUnknownId, gerr.Kind)
}

func TestNewRejectsUnknownOutput(t *testing.T) {
	topology := []primitive.Descriptor{dataDesc("a")}
	_, err := New(fakeEngine{}, topology, BuildOptions{}, []string{"nope"})
	require.Error(t, err)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	p, err := New(fakeEngine{}, []primitive.Descriptor{dataDesc("a")}, BuildOptions{}, nil)
	require.NoError(t, err)
	n1, err := p.GetOrCreate(dataDesc("a"))
	require.NoError(t, err)
	n2, err := p.GetOrCreate(dataDesc("a"))
	require.NoError(t, err)
	require.Same(t, n1, n2)
}

func TestLogOptimizedOutSnapshotsNeighbors(t *testing.T) {
	topology := []primitive.Descriptor{
		dataDesc("a"),
		dataDesc("b"),
		activationDesc("host", "a"),
		activationDesc("peer", "b"),
	}
	p, err := New(fakeEngine{}, topology, BuildOptions{}, nil)
	require.NoError(t, err)
	peer, err := p.NodeByID("peer")
	require.NoError(t, err)

	p.LogOptimizedOut(peer, "host")

	log := p.OptimizedOutLog()
	require.Len(t, log, 1)
	require.Equal(t, "peer", log[0].RemovedID)
	require.Equal(t, []string{"host"}, log[0].SurvivingID)
	require.Contains(t, log[0].Neighbors, "b")
}

func TestMemoryEstimateRoundTrip(t *testing.T) {
	p, err := New(fakeEngine{}, []primitive.Descriptor{dataDesc("a")}, BuildOptions{}, nil)
	require.NoError(t, err)
	c, d := p.MemoryEstimate()
	require.Zero(t, c)
	require.Zero(t, d)

	p.SetMemoryEstimate(10, 20)
	c, d = p.MemoryEstimate()
	require.Equal(t, uint64(10), c)
	require.Equal(t, uint64(20), d)
}

func TestOptionsValidateRejectsTuningWithoutProfiling(t *testing.T) {
	opts := BuildOptions{TuningMode: TuningAndCache, ProfilingEnabled: false}
	require.Error(t, opts.Validate())

	opts.ProfilingEnabled = true
	require.NoError(t, opts.Validate())
}

func TestOptionsNormalizedForcesOptimizeData(t *testing.T) {
	opts := BuildOptions{ForceImplementations: map[string]string{"conv": "winograd"}}
	require.True(t, opts.normalized().OptimizeData)
}
