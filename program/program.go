package program

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
)

// idCounter is the process-wide, monotonically increasing program id
// counter described in spec §5. It must be nonzero, so the first id
// issued is 1.
var idCounter atomic.Uint64

// ProgramID identifies one Program, unique for the process lifetime.
type ProgramID uint64

func nextProgramID() ProgramID {
	return ProgramID(idCounter.Add(1))
}

// OptimizedOutEntry records that a removed node's semantics are subsumed
// by a set of surviving nodes (spec §3, "optimized-out log"). Neighbors is
// a snapshot of the removed node's dependency and user ids taken at the
// moment it was logged, before its edges were torn down; memdep's
// skipped-branch pass (§4.9) uses it to recover the removed node's live
// range now that it no longer has a place in processing order.
type OptimizedOutEntry struct {
	RemovedID   string
	SurvivingID []string
	Neighbors   []string
}

// Engine is the opaque compute-engine handle the core consumes but never
// implements; engine.Handle is a minimal implementation.
type Engine interface {
	ProfilingEnabled() bool
}

// Program owns every live Node, exclusively: dependency/user edges are
// non-owning back-references into this map. Removing a node from this map
// is the only destruction event (spec §3 "Ownership").
type Program struct {
	mu sync.Mutex

	id      ProgramID
	engine  Engine
	options BuildOptions
	traced  bool

	nodes map[string]*Node

	inputs  []string
	outputs []string

	order *nodesOrdering

	optimizedOutLog   []OptimizedOutEntry
	optimizerPassesLog []PassLogEntry

	// memoryDependenciesReport and the estimate fields cache the results of
	// the memdep package's analysis (spec §4.9/§4.12), exposed as the
	// "memory-dependencies string" and "estimated device-memory usage"
	// queries (spec §6). Stored as plain values rather than a typed
	// *memdep.Dependencies field since memdep imports program, not the
	// other way around.
	memoryDependenciesReport string
	constantMemoryBytes      uint64
	deviceMemoryBytes        uint64

	// KernelsCache / ImplementationsCache are scoped resources released on
	// Program destruction (spec §5). The core only needs to hold and
	// forward them; their implementation lives in the engine package.
	KernelsCache         any
	ImplementationsCache any
}

// PassLogEntry is one row of the optimizer-passes log appended by the pass
// manager after each pass (spec §4.5/§6).
type PassLogEntry struct {
	PassName string
	Stage    string
}

// New constructs a Program from a topology: descriptors are registered via
// GetOrCreate and wired according to their Inputs; inputs are the
// descriptors with zero inputs, outputs are the nodes named in outputIDs.
// The returned error is non-nil (and fatal) only for invariant
// violations, configuration errors or references to unknown ids (spec §7).
func New(engine Engine, topology []primitive.Descriptor, options BuildOptions, outputIDs []string) (*Program, error) {
	options = options.normalized()
	if err := options.Validate(); err != nil {
		return nil, err
	}
	p := &Program{
		id:      nextProgramID(),
		engine:  engine,
		options: options,
		nodes:   make(map[string]*Node),
		order:   newNodesOrdering(),
	}
	for _, desc := range topology {
		if err := primitive.CheckArity(desc); err != nil {
			return nil, invariantViolation(desc.ID, "%s", err)
		}
		if _, err := p.GetOrCreate(desc); err != nil {
			return nil, err
		}
	}
	for _, desc := range topology {
		n := p.nodes[desc.ID]
		for i := 0; i < desc.NumInputs(); i++ {
			dep, ok := p.nodes[desc.InputID(i)]
			if !ok {
				return nil, unknownID(desc.InputID(i))
			}
			if err := p.addConnectionOrdered(dep, n); err != nil {
				return nil, err
			}
		}
	}
	for _, desc := range topology {
		if desc.NumInputs() == 0 {
			p.inputs = append(p.inputs, desc.ID)
		}
	}
	for _, id := range outputIDs {
		n, ok := p.nodes[id]
		if !ok {
			return nil, unknownID(id)
		}
		n.output = true
		p.outputs = append(p.outputs, id)
	}
	p.order.Reset(calculateBFSOrder(p.insertionOrderSlice()))
	return p, nil
}

// NewFromNodes builds a standalone Program from a pre-built set of
// descriptors, used by the constant-evaluator sub-program (spec §4.7
// propagate_constants, §9). It behaves like New but always marks
// IsInternal, skipping the tuning-cache/optimize niceties reserved for a
// top-level build.
func NewFromNodes(engine Engine, nodes []primitive.Descriptor, options BuildOptions) (*Program, error) {
	options.IsInternal = true
	var outputs []string
	for _, d := range nodes {
		outputs = append(outputs, d.ID) // every node the evaluator is given is treated as an output.
	}
	return New(engine, nodes, options, outputs)
}

// ID returns the program-wide unique identifier.
func (p *Program) ID() ProgramID { return p.id }

// Options returns the build options this Program was constructed with.
func (p *Program) Options() BuildOptions { return p.options }

// SetTraced toggles whether nodes created afterwards by GetOrCreate record
// a stack-trace (spec §9, mirrors teacher's Graph.SetTraced).
func (p *Program) SetTraced(traced bool) { p.traced = traced }

// NodeByID returns the node for id, or a GraphError of kind UnknownId.
func (p *Program) NodeByID(id string) (*Node, error) {
	n, ok := p.nodes[id]
	if !ok {
		return nil, unknownID(id)
	}
	return n, nil
}

// Inputs returns the ids the program was constructed with as inputs, in
// order.
func (p *Program) Inputs() []string { return append([]string{}, p.inputs...) }

// Outputs returns the ids currently marked as outputs, in order added.
func (p *Program) Outputs() []string { return append([]string{}, p.outputs...) }

// MarkAllOutputs marks every remaining node as an output, appending any not
// already in Outputs() to the output list in processing order. Used only by
// the debug-mode cleanup step (spec §9): with every node retained as an
// output, nothing downstream can be freed based on output-set size, which is
// exactly the point -- a debug build lets the caller query the buffer of any
// not-yet-optimized-out node.
func (p *Program) MarkAllOutputs() {
	for _, n := range p.order.Slice() {
		if n.output {
			continue
		}
		n.output = true
		p.outputs = append(p.outputs, n.id)
	}
}

// NumNodes returns the number of live nodes.
func (p *Program) NumNodes() int { return len(p.nodes) }

// ProcessingOrder returns the current total topological order over
// reachable nodes (spec §3 invariant 4). It reflects whatever order was
// last computed by RecalculateProcessingOrder or an edit that maintains it
// incrementally.
func (p *Program) ProcessingOrder() []*Node { return p.order.Slice() }

// RecalculateProcessingOrder re-derives the processing order by BFS from
// the roots, per spec §4.4 calculate_BFS_processing_order.
func (p *Program) RecalculateProcessingOrder() {
	p.order.Reset(calculateBFSOrder(p.insertionOrderSlice()))
}

// SetFlags sets n's constant/data_flow flags directly, bypassing the local
// single-edge recomputation updateFlagsAfterDependencyChange performs. Used
// by analysis.MarkNodes, which recomputes every node in topological order
// and is therefore authoritative (spec §4.5 step 3).
func (p *Program) SetFlags(n *Node, constant, dataFlow bool) {
	n.constant = constant
	n.dataFlow = dataFlow
}

// OptimizedOutLog returns the program's optimized-out log: for every
// removed node, the surviving nodes that subsume it.
func (p *Program) OptimizedOutLog() []OptimizedOutEntry {
	return append([]OptimizedOutEntry{}, p.optimizedOutLog...)
}

// LogOptimizedOut appends an entry to the optimized-out log, snapshotting
// removed's current dependency and user ids as its Neighbors. It is
// exposed so the fusing engine and other passes outside this package can
// record their own removals. Callers must call it before tearing down
// removed's edges, while its dependencies and users are still populated.
func (p *Program) LogOptimizedOut(removed *Node, survivingIDs ...string) {
	neighbors := make([]string, 0, len(removed.dependencies)+len(removed.users))
	for _, d := range removed.dependencies {
		neighbors = append(neighbors, d.id)
	}
	for _, u := range removed.users {
		neighbors = append(neighbors, u.id)
	}
	p.optimizedOutLog = append(p.optimizedOutLog, OptimizedOutEntry{
		RemovedID:   removed.id,
		SurvivingID: survivingIDs,
		Neighbors:   neighbors,
	})
}

// SetMemoryDependencies records the rendered memory-dependency restriction
// report, for the "memory-dependencies string" query (spec §6).
func (p *Program) SetMemoryDependencies(report string) {
	p.memoryDependenciesReport = report
}

// MemoryDependencies returns the most recently recorded memory-dependency
// restriction report, or "" if memdep.Analyze has not run yet.
func (p *Program) MemoryDependencies() string {
	return p.memoryDependenciesReport
}

// SetMemoryEstimate records the memory-usage estimator's result, for the
// "estimated device-memory usage" query (spec §6).
func (p *Program) SetMemoryEstimate(constantBytes, deviceBytes uint64) {
	p.constantMemoryBytes = constantBytes
	p.deviceMemoryBytes = deviceBytes
}

// MemoryEstimate returns the most recently recorded (constant-bytes,
// device-bytes) estimate, or (0, 0) if EstimateMemoryUsage has not run yet.
func (p *Program) MemoryEstimate() (constantBytes, deviceBytes uint64) {
	return p.constantMemoryBytes, p.deviceMemoryBytes
}

// AppendPassLog appends one row to the optimizer-passes log. Called by the
// pass manager after each pass runs.
func (p *Program) AppendPassLog(entry PassLogEntry) {
	p.optimizerPassesLog = append(p.optimizerPassesLog, entry)
	if klog.V(2).Enabled() {
		klog.V(2).Infof("program %d: pass %q at stage %q, %d nodes", p.id, entry.PassName, entry.Stage, len(p.nodes))
	}
}

// OptimizerPassesLog returns the full log of applied passes.
func (p *Program) OptimizerPassesLog() []PassLogEntry {
	return append([]PassLogEntry{}, p.optimizerPassesLog...)
}

// insertionOrderSlice returns all live nodes in (arbitrary but stable)
// map-independent order: the current processing order if one exists,
// falling back to whatever GetOrCreate insertion order the id-map retains
// via the order's own bookkeeping. Since Go maps have no order, this
// always goes through p.order when available.
func (p *Program) insertionOrderSlice() []*Node {
	if len(p.order.index) > 0 {
		existing := p.order.Slice()
		if len(existing) == len(p.nodes) {
			return existing
		}
	}
	out := make([]*Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, n)
	}
	return out
}

// GetOrCreate returns the node for desc.ID, creating it if absent. It is
// idempotent: calling it twice with the same id returns the same node
// (spec §4.3).
func (p *Program) GetOrCreate(desc primitive.Descriptor) (*Node, error) {
	if n, ok := p.nodes[desc.ID]; ok {
		return n, nil
	}
	if _, ok := primitive.Lookup(desc.Kind); !ok {
		return nil, invariantViolation(desc.ID, "unknown primitive kind %q", desc.Kind)
	}
	n := &Node{id: desc.ID, kind: desc.Kind, params: desc.Params}
	if p.traced {
		n.trace = errors.New("stack-trace")
	}
	p.nodes[desc.ID] = n
	p.order.PushBack(n)
	return n, nil
}
