// Package engine provides the minimal contracts the graph compiler core
// consumes from its external collaborators -- the compute engine handle,
// the kernels/tuning/implementations caches, and a kernel selector -- plus
// simple in-memory implementations usable outside of a real device runtime
// (tests, the graphc CLI, dry-run builds).
//
// The core never implements kernel compilation, device allocation, or
// stream execution (out of scope); this package exists so callers have
// somewhere to plug those in without reaching into program/passes
// internals.
package engine

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// Handle is a minimal program.Engine implementation: it only tracks
// whether profiling is enabled. program.New does not query it;
// program.BuildOptions.Validate checks BuildOptions.ProfilingEnabled, not
// the engine.
type Handle struct {
	profilingEnabled bool
}

// NewHandle returns a Handle with the given profiling capability.
func NewHandle(profilingEnabled bool) *Handle {
	return &Handle{profilingEnabled: profilingEnabled}
}

// ProfilingEnabled implements program.Engine.
func (h *Handle) ProfilingEnabled() bool { return h.profilingEnabled }

// KernelsCache is a process-scoped cache of compiled kernel binaries keyed
// by (kind, layout-derived key, implementation name). A real engine would
// back this with OpenCL/CUDA program objects; this one is a plain map
// suitable for tests and dry runs.
type KernelsCache struct {
	mu    sync.Mutex
	store map[string]any
}

// NewKernelsCache returns an empty cache.
func NewKernelsCache() *KernelsCache {
	return &KernelsCache{store: map[string]any{}}
}

// Get returns the cached value for key, if present.
func (c *KernelsCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	return v, ok
}

// Put stores value under key, overwriting any previous entry.
func (c *KernelsCache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = value
}

// Remove evicts key, if present. A rebuild (e.g. after tuning invalidates a
// previously selected implementation) calls this before re-selecting, so a
// stale binary is never handed back by Get.
func (c *KernelsCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

// TuningCache records the best known implementation per (node kind,
// layout signature), consulted by a KernelSelector under
// program.TuningUseCache / TuningAndCache (spec §6).
type TuningCache struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewTuningCache returns an empty cache.
func NewTuningCache() *TuningCache {
	return &TuningCache{entries: map[string]string{}}
}

func tuningKey(kind primitive.Kind, layout tensor.Layout) string {
	return string(kind) + "|" + layout.String()
}

// Lookup returns the cached implementation name for (kind, layout), if
// tuned before.
func (c *TuningCache) Lookup(kind primitive.Kind, layout tensor.Layout) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	impl, ok := c.entries[tuningKey(kind, layout)]
	return impl, ok
}

// Record stores impl as the tuned choice for (kind, layout).
func (c *TuningCache) Record(kind primitive.Kind, layout tensor.Layout, impl string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tuningKey(kind, layout)] = impl
}

// DefaultKernelSelector picks a fixed generic implementation name for a
// node's primitive kind, consulting a TuningCache first when Mode asks for
// it. It satisfies passes.KernelSelector structurally.
type DefaultKernelSelector struct {
	Mode  program.TuningMode
	Cache *TuningCache
}

// Select implements passes.KernelSelector: it consults the tuning cache
// when the selector is configured to, and otherwise returns a fixed
// generic implementation name so builds without a real kernel backend
// still complete (spec §7: "kernel-selector is allowed to fail per node
// only if a fallback implementation exists").
func (s *DefaultKernelSelector) Select(nodeID string, kind primitive.Kind, layout tensor.Layout) (string, error) {
	if s.Cache != nil && (s.Mode == program.TuningUseCache || s.Mode == program.TuningAndCache) {
		if impl, ok := s.Cache.Lookup(kind, layout); ok {
			return impl, nil
		}
	}
	entry, ok := primitive.Lookup(kind)
	if !ok {
		return "", errors.Errorf("engine: no registered primitive for kind %q (node %q)", kind, nodeID)
	}
	impl := "generic_" + string(entry.Kind)
	if s.Cache != nil && (s.Mode == program.TuningAndCache || s.Mode == program.TuningRetuneAndCache) {
		s.Cache.Record(kind, layout, impl)
	}
	return impl, nil
}
