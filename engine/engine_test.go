package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKernelsCacheRemoveEvictsEntry(t *testing.T) {
	c := NewKernelsCache()
	c.Put("conv_0", "binary-a")

	v, ok := c.Get("conv_0")
	require.True(t, ok)
	require.Equal(t, "binary-a", v)

	c.Remove("conv_0")
	_, ok = c.Get("conv_0")
	require.False(t, ok)
}

func TestKernelsCacheRemoveMissingKeyIsNoop(t *testing.T) {
	c := NewKernelsCache()
	c.Remove("never-put")
	_, ok := c.Get("never-put")
	require.False(t, ok)
}
