package tensor

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowOutputSize(t *testing.T) {
	tests := []struct {
		name                          string
		input, filter, stride, dilat int
		padLower, padUpper            int
		mode                          WindowMode
		want                          int
	}{
		{"all, no pad, stride1", 7, 3, 1, 1, 0, 0, WindowAll, 5},
		{"all, pad1, stride2", 7, 3, 2, 1, 1, 1, WindowAll, 4},
		{"pooling overrun once", 7, 2, 2, 1, 0, 0, WindowExceedOnceData, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SlidingWindowOutputSize(tt.input, tt.filter, tt.padLower, tt.padUpper, tt.stride, tt.dilat, tt.mode)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNeededInputForDeconvOutput(t *testing.T) {
	got := NeededInputForDeconvOutput(8, 3, 0, 0, 2, 1)
	require.Equal(t, 4, got)
}

func TestPadding(t *testing.T) {
	p := Padding{Lower: []int{1, 0}, Upper: []int{0, 2}}
	q := Padding{Lower: []int{0, 3}, Upper: []int{1, 1}}
	m := Max(p, q)
	require.Equal(t, []int{1, 3}, m.Lower)
	require.Equal(t, []int{1, 2}, m.Upper)

	// Merging is idempotent.
	m2 := Max(m, p)
	require.True(t, m2.Equal(m))
}

func TestLayoutCompatible(t *testing.T) {
	a := Layout{DType: dtypes.Float32, Format: FormatBFYX, Shape: MakeShape(1, 3, 4, 4), Valid: true}
	b := Layout{DType: dtypes.Float32, Format: FormatBFYX, Shape: MakeShape(1, 3, 4, 4), Valid: true}
	require.True(t, Compatible(a, b))

	c := b
	c.Format = FormatBFYXFsv16
	require.False(t, Compatible(a, c))
}
