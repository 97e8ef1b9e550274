package tensor

// Format encodes the logical axis order and the physical blocking scheme of
// a tensor's byte layout: e.g. "bfyx" is plain batch/feature/height/width;
// "b_fs_yx_fsv16" blocks the feature axis by 16.
type Format struct {
	// Name is the canonical format identifier, e.g. "bfyx", "byxf",
	// "b_fs_yx_fsv16", "fs_b_yx_fsv32", "bs_fs_yx_bsv16_fsv16".
	Name string
	// FeatureBlock is the block size along the feature axis, or 0 if the
	// feature axis is not blocked.
	FeatureBlock int
	// BatchBlock is the block size along the batch axis, or 0 if the batch
	// axis is not blocked.
	BatchBlock int
}

// Well-known formats. Names follow the convention used by OpenVINO-style
// GPU plugins: axis letters in physical (slowest-to-fastest varying) order,
// with "fsv"/"bsv" suffixes marking a blocked axis and its block size.
var (
	FormatBFYX              = Format{Name: "bfyx"}
	FormatBYXF              = Format{Name: "byxf"}
	FormatYXFB              = Format{Name: "yxfb"}
	FormatBFYXFsv16         = Format{Name: "b_fs_yx_fsv16", FeatureBlock: 16}
	FormatBFYXFsv32         = Format{Name: "b_fs_yx_fsv32", FeatureBlock: 32}
	FormatFSBYXFsv32        = Format{Name: "fs_b_yx_fsv32", FeatureBlock: 32}
	FormatBFZYXFsv16        = Format{Name: "b_fs_zyx_fsv16", FeatureBlock: 16}
	FormatBFZYXFsv32        = Format{Name: "b_fs_zyx_fsv32", FeatureBlock: 32}
	FormatBSFSYXBsv16Fsv16  = Format{Name: "bs_fs_yx_bsv16_fsv16", FeatureBlock: 16, BatchBlock: 16}
)

// IsBlocked returns whether the format applies any physical blocking.
func (f Format) IsBlocked() bool {
	return f.FeatureBlock > 0 || f.BatchBlock > 0
}

// Equal compares two formats by their physical byte layout.
func (f Format) Equal(o Format) bool {
	return f.Name == o.Name
}

// String implements fmt.Stringer.
func (f Format) String() string {
	if f.Name == "" {
		return "(any)"
	}
	return f.Name
}

// AddressesSameBytes returns whether two formats lay out the same logical
// tensor using the same physical byte order -- the format half of layout
// compatibility.
func AddressesSameBytes(a, b Format) bool {
	return a.Equal(b)
}
