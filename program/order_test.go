package program

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodesOrderingInsertBeforeAndErase(t *testing.T) {
	o := newNodesOrdering()
	a := &Node{id: "a"}
	b := &Node{id: "b"}
	c := &Node{id: "c"}
	o.PushBack(a)
	o.PushBack(c)
	o.InsertBefore(c, b)

	require.Equal(t, []*Node{a, b, c}, o.Slice())

	o.Erase(b)
	require.Equal(t, []*Node{a, c}, o.Slice())
	require.False(t, o.Contains(b))
}

func TestNodesOrderingInsertAfter(t *testing.T) {
	o := newNodesOrdering()
	a := &Node{id: "a"}
	c := &Node{id: "c"}
	b := &Node{id: "b"}
	o.PushBack(a)
	o.PushBack(c)
	o.InsertAfter(a, b)
	require.Equal(t, []*Node{a, b, c}, o.Slice())
}

func TestCalculateBFSOrderIsTopological(t *testing.T) {
	a := &Node{id: "a"}
	b := &Node{id: "b"}
	c := &Node{id: "c"}
	a.users = []*Node{c}
	b.users = []*Node{c}
	c.dependencies = []*Node{a, b}

	order := calculateBFSOrder([]*Node{a, b, c})
	require.Equal(t, []*Node{a, b, c}, order)
}
