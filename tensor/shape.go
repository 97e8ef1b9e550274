package tensor

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

// Shape is a rank-N array of axis dimensions. Unlike a tensor value, a Shape
// carries no data -- it is the shape a node's output would have.
type Shape struct {
	Dimensions []int
}

// MakeShape returns a Shape built from the given dimensions. All dimensions
// must be strictly positive.
func MakeShape(dims ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dims)}
	for _, d := range dims {
		if d <= 0 {
			panic(errors.Errorf("tensor.MakeShape%v: all dimensions must be > 0", dims))
		}
	}
	return s
}

// Rank returns the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// Dim returns the dimension at axis, supporting negative indices counting
// from the end.
func (s Shape) Dim(axis int) int {
	if axis < 0 {
		axis += s.Rank()
	}
	return s.Dimensions[axis]
}

// Size is the number of elements described by the shape -- the product of
// all dimensions, or 1 for a scalar.
func (s Shape) Size() int {
	size := 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return size
}

// Equal compares dimensions only -- use Layout.Compatible for a full layout
// comparison that also accounts for format and padding.
func (s Shape) Equal(o Shape) bool {
	return slices.Equal(s.Dimensions, o.Dimensions)
}

// Clone returns a deep copy.
func (s Shape) Clone() Shape {
	return Shape{Dimensions: slices.Clone(s.Dimensions)}
}

// String implements fmt.Stringer.
func (s Shape) String() string {
	return fmt.Sprintf("%v", s.Dimensions)
}

// WithPadding returns the dimensions of s after adding p's lower/upper
// extents per axis. Axes beyond p's rank are left untouched.
func (s Shape) WithPadding(p Padding) Shape {
	out := s.Clone()
	for axis := range out.Dimensions {
		if axis >= len(p.Lower) {
			continue
		}
		out.Dimensions[axis] += p.Lower[axis] + p.Upper[axis]
	}
	return out
}
