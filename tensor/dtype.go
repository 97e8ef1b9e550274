// Package tensor implements the shape, format, padding and data-type algebra
// used by the graph compiler to describe the physical layout of a node's
// output buffer.
package tensor

import "github.com/gomlx/gopjrt/dtypes"

// DType is the element type of a tensor buffer. It is the same enumeration
// used by the underlying compute engine, so layouts computed here can be
// handed to it without conversion.
type DType = dtypes.DType

// InvalidDType is the zero-value sentinel for "no dtype given" / "keep the
// source dtype", re-exported for convenience.
const InvalidDType = dtypes.InvalidDType

// dtypeRank orders DTypes for the "max precision wins" lattice used by
// inference-precision derivation. Quantized integer types are deliberately
// kept below the floating point types: a float operand always wins unless
// the rule explicitly says otherwise (see analysis.Precision).
var dtypeRank = map[DType]int{
	dtypes.Float64:  60,
	dtypes.Float32:  50,
	dtypes.BFloat16: 41,
	dtypes.Float16:  40,
	dtypes.Int32:    30,
	dtypes.Uint8:    20,
	dtypes.Int8:     10,
	dtypes.Bool:     1,
}

// MaxDType returns the higher-precision DType of a and b according to the
// lattice used throughout the compiler. If either is unranked, the other is
// returned; if both are unranked, a is returned.
func MaxDType(a, b DType) DType {
	ra, oka := dtypeRank[a]
	rb, okb := dtypeRank[b]
	if !oka {
		return b
	}
	if !okb {
		return a
	}
	if ra >= rb {
		return a
	}
	return b
}

// IsQuantized returns whether dt is one of the narrow integer types used to
// hold quantized activations or weights.
func IsQuantized(dt DType) bool {
	return dt == dtypes.Int8 || dt == dtypes.Uint8
}

// byteSize maps each recognized DType to its per-element size in bytes, for
// the memory-usage estimator (spec §4.12).
var byteSize = map[DType]int{
	dtypes.Float64:  8,
	dtypes.Float32:  4,
	dtypes.BFloat16: 2,
	dtypes.Float16:  2,
	dtypes.Int32:    4,
	dtypes.Uint8:    1,
	dtypes.Int8:     1,
	dtypes.Bool:     1,
}

// ByteSize returns the per-element size in bytes of dt, or 0 if dt is not
// one of the recognized types.
func ByteSize(dt DType) int {
	return byteSize[dt]
}
