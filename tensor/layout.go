package tensor

import "fmt"

// Layout is the physical interpretation of a node's output buffer:
// data type, format, logical shape and padding.
type Layout struct {
	DType   DType
	Format  Format
	Shape   Shape
	Padding Padding

	// Valid marks whether this Layout has been computed. An invalid Layout
	// carries no guarantee about its other fields and must be recomputed by
	// the owning primitive's layout-inference function before use.
	Valid bool
}

// InvalidLayout returns a Layout with Valid set to false.
func InvalidLayout() Layout {
	return Layout{}
}

// PaddedShape returns the shape including the padding extents.
func (l Layout) PaddedShape() Shape {
	return l.Shape.WithPadding(l.Padding)
}

// Bytes returns the buffer size in bytes this layout would occupy,
// including padding: element count times the dtype's byte size.
func (l Layout) Bytes() int {
	return l.PaddedShape().Size() * ByteSize(l.DType)
}

// Compatible reports whether two layouts are compatible: equal shapes after
// padding normalization, and formats that address the same bytes. DType is
// compared too -- two layouts of different element types are never
// compatible, since reinterpreting bytes across dtypes is never implicit.
func Compatible(a, b Layout) bool {
	if a.DType != b.DType {
		return false
	}
	if !a.PaddedShape().Equal(b.PaddedShape()) {
		return false
	}
	return AddressesSameBytes(a.Format, b.Format)
}

// MergeOutputPadding returns a new Layout with its padding set to the
// elementwise maximum of l's current padding and extra. Merging paddings is
// monotone and idempotent, so calling this repeatedly with a subset of a
// previous extra is a no-op.
func (l Layout) MergeOutputPadding(extra Padding) Layout {
	l.Padding = Max(l.Padding, extra)
	return l
}

// String implements fmt.Stringer.
func (l Layout) String() string {
	if !l.Valid {
		return "Layout(invalid)"
	}
	pad := ""
	if !l.Padding.IsZero() {
		pad = fmt.Sprintf(" pad=%v/%v", l.Padding.Lower, l.Padding.Upper)
	}
	return fmt.Sprintf("(%s)%s/%s%s", l.DType, l.Shape, l.Format, pad)
}
