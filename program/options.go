package program

// TuningMode selects how the (external, opaque) tuning cache is consulted
// during compile_graph.
type TuningMode int

const (
	TuningNone TuningMode = iota
	TuningAndCache
	TuningRetuneAndCache
	TuningUseCache
)

// BuildOptions is the recognized set of build options (spec §6).
type BuildOptions struct {
	OptimizeData        bool
	PartialBuildProgram bool
	TuningMode          TuningMode
	ForceImplementations map[string]string
	GraphDumpsDir        string

	// IsInternal skips the sub-program niceties (tuning cache load,
	// propagate_constants) reserved for top-level programs; it is set for
	// the constant-evaluator sub-program (§4.7 propagate_constants, §9).
	IsInternal bool
	// NoOptimizations disables the entire pre/post-optimize phase.
	NoOptimizations bool
	// IsBodyProgram marks a program that is the body of a loop primitive.
	IsBodyProgram bool
	// Debug retains every node as an output at the end of the pipeline's
	// cleanup step (spec §9; passes.Cleanup calls Program.MarkAllOutputs),
	// and relaxes remove_if_dangling's output check.
	Debug bool

	// ProfilingEnabled must be true for TuningAndCache/TuningRetuneAndCache,
	// otherwise New returns a ConfigurationError (spec §6).
	ProfilingEnabled bool

	// OutOfOrderQueueDepth is the reorder window of the target engine's
	// command queue, in scheduling slots; 0 means an in-order queue and
	// disables the OOOQ memory-dependency widening pass (spec §4.9).
	OutOfOrderQueueDepth int

	// DeviceMemoryBytes is the device's global memory size, consulted by
	// the memory-usage estimator (spec §4.12). Zero disables the
	// device-side limit check.
	DeviceMemoryBytes uint64
}

// Validate checks BuildOptions for internal coherence, per spec §6/§7.
func (o BuildOptions) Validate() error {
	if (o.TuningMode == TuningAndCache || o.TuningMode == TuningRetuneAndCache) && !o.ProfilingEnabled {
		return ConfigurationError("tuning mode %d requires a profiling-enabled engine", o.TuningMode)
	}
	return nil
}

// normalized returns a copy of o with derived flags applied: enabling
// ForceImplementations implicitly enables OptimizeData (spec §6).
func (o BuildOptions) normalized() BuildOptions {
	if len(o.ForceImplementations) > 0 {
		o.OptimizeData = true
	}
	return o
}
