package tensor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShapeSize(t *testing.T) {
	s := MakeShape(2, 3, 4)
	require.Equal(t, 3, s.Rank())
	require.Equal(t, 24, s.Size())
	require.Equal(t, 4, s.Dim(-1))
}

func TestShapeMakeShapeRejectsNonPositive(t *testing.T) {
	require.Panics(t, func() { MakeShape(2, 0, 4) })
}

func TestShapeWithPadding(t *testing.T) {
	s := MakeShape(2, 4)
	p := Padding{Lower: []int{0, 1}, Upper: []int{0, 1}}
	padded := s.WithPadding(p)
	require.Equal(t, []int{2, 6}, padded.Dimensions)
}

func TestShapeCloneIsIndependent(t *testing.T) {
	s := MakeShape(1, 2, 3)
	c := s.Clone()
	c.Dimensions[0] = 99
	require.Equal(t, 1, s.Dimensions[0])
}
