package program

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
)

func buildChain(t *testing.T) (*Program, *Node, *Node, *Node) {
	t.Helper()
	topology := []primitive.Descriptor{
		dataDesc("a"),
		activationDesc("mid", "a"),
		activationDesc("out", "mid"),
	}
	p, err := New(fakeEngine{}, topology, BuildOptions{}, []string{"out"})
	require.NoError(t, err)
	a, _ := p.NodeByID("a")
	mid, _ := p.NodeByID("mid")
	out, _ := p.NodeByID("out")
	return p, a, mid, out
}

func TestAddConnectionRejectsCycle(t *testing.T) {
	p, a, mid, _ := buildChain(t)
	err := p.AddConnection(mid, a)
	require.Error(t, err)
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, ErrGraphInvariantViolation, gerr.Kind)
}

func TestAddConnectionIsIdempotent(t *testing.T) {
	p, a, mid, _ := buildChain(t)
	require.NoError(t, p.AddConnection(a, mid))
	require.Len(t, mid.Dependencies(), 1)
}

func TestRemoveConnectionIsNoopWithoutEdge(t *testing.T) {
	p, a, _, out := buildChain(t)
	p.RemoveConnection(a, out) // no edge a->out.
	require.Len(t, out.Dependencies(), 1)
}

func TestRenameIsIdempotent(t *testing.T) {
	p, _, mid, _ := buildChain(t)
	require.NoError(t, p.Rename(mid, "renamed"))
	require.NoError(t, p.Rename(mid, "renamed"))
	require.Equal(t, "renamed", mid.ID())
	_, err := p.NodeByID("renamed")
	require.NoError(t, err)
}

func TestRenameRejectsOutput(t *testing.T) {
	p, _, _, out := buildChain(t)
	require.Error(t, p.Rename(out, "new_out"))
}

func TestRenameRejectsTakenID(t *testing.T) {
	p, a, mid, _ := buildChain(t)
	require.Error(t, p.Rename(mid, a.ID()))
}

func TestSwapNamesIsSelfInverse(t *testing.T) {
	p, a, mid, _ := buildChain(t)
	aID, midID := a.ID(), mid.ID()

	require.NoError(t, p.SwapNames(a, mid))
	require.Equal(t, midID, a.ID())
	require.Equal(t, aID, mid.ID())

	require.NoError(t, p.SwapNames(a, mid))
	require.Equal(t, aID, a.ID())
	require.Equal(t, midID, mid.ID())
}

func TestReplaceAllUsagesLeavesOldUserless(t *testing.T) {
	p, a, mid, out := buildChain(t)
	other, err := p.GetOrCreate(dataDesc("other"))
	require.NoError(t, err)

	p.ReplaceAllUsages(a, other)
	require.Empty(t, a.Users())
	require.Contains(t, mid.Dependencies(), other)
	require.Equal(t, []*Node{mid}, other.Users())
	_ = out
}

func TestExtractBypassesSingleDependency(t *testing.T) {
	p, a, mid, out := buildChain(t)
	require.NoError(t, p.Extract(mid))
	require.Contains(t, out.Dependencies(), a)
	require.Empty(t, mid.Dependencies())
	require.Empty(t, mid.Users())
}

func TestRemoveIfDanglingRefusesConnectedOrOutput(t *testing.T) {
	p, a, mid, out := buildChain(t)
	require.False(t, p.RemoveIfDangling(a)) // still has a user.
	require.False(t, p.RemoveIfDangling(out))

	p.RemoveAllConnections(mid)
	require.True(t, p.RemoveIfDangling(mid))
	_, err := p.NodeByID(mid.ID())
	require.Error(t, err)
}

func TestReplaceRejectsNonemptyUsersFatal(t *testing.T) {
	p, a, mid, out := buildChain(t)
	taken, err := p.GetOrCreate(dataDesc("taken"))
	require.NoError(t, err)
	user, err := p.GetOrCreate(eltwiseDesc("taken_user", "taken"))
	require.NoError(t, err)
	require.NoError(t, p.AddConnection(taken, user))
	require.NotEmpty(t, taken.Users())

	err = p.Replace(mid, taken)
	require.Error(t, err)
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, ErrGraphInvariantViolation, gerr.Kind)

	// Graph unchanged: mid is still wired exactly as before, taken is
	// still only used by taken_user.
	require.Equal(t, []*Node{a}, mid.Dependencies())
	require.Contains(t, out.Dependencies(), mid)
	require.Equal(t, []*Node{user}, taken.Users())
}

func TestReverseConnectionRoundTrips(t *testing.T) {
	p, a, mid, _ := buildChain(t)
	require.NoError(t, p.ReverseConnection(a, mid))
	require.Contains(t, a.Dependencies(), mid)
	require.NoError(t, p.ReverseConnection(mid, a))
	require.Contains(t, mid.Dependencies(), a)
}
