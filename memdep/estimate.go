package memdep

import (
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// EstimatorAbort is the sentinel error EstimateMemoryUsage returns when the
// projected allocation exceeds a configured limit. It is a normal return
// value, not a panic: callers are expected to check for it (spec §7).
type EstimatorAbort struct {
	// Host is true when the host-side (virtual memory rlimit) limit was
	// exceeded; otherwise the device memory size was.
	Host      bool
	Projected uint64
	Limit     uint64
}

func (e *EstimatorAbort) Error() string {
	side := "device"
	if e.Host {
		side = "host"
	}
	return errors.Errorf("memdep: projected %s allocation %d bytes exceeds limit %d bytes", side, e.Projected, e.Limit).Error()
}

// poolSlot is one live allocation in the synthetic pool used to size
// device-memory usage: an interval of byte offsets a node's buffer
// currently occupies.
type poolSlot struct {
	nodeID     string
	start, end int // byte offsets, [start, end).
	dies       int // processing-order position after which this slot is free.
}

// EstimateMemoryUsage walks processing order sorted by output-bytes
// descending, simulating allocation against a synthetic pool that reuses
// space from nodes whose live range (per basic interval analysis) has
// already ended. It returns the constant-memory sum (bytes held by data
// nodes that do NOT feed a single generic-layer consumer -- those that do
// are assumed foldable into the consumer's own weight buffer and are
// skipped) and the peak device-bytes used by the pool (spec §4.12).
//
// If the peak projected allocation exceeds 50% of the process's POSIX
// virtual-memory rlimit, or the device's global memory size (from
// p.Options().DeviceMemoryBytes, when nonzero), it returns *EstimatorAbort
// instead of a usable estimate.
func EstimateMemoryUsage(p *program.Program) (constantBytes, deviceBytes uint64, err error) {
	order := p.ProcessingOrder()
	position := make(map[string]int, len(order))
	for i, n := range order {
		position[n.ID()] = i
	}
	basic := basicIntervals(p, order, position)

	sorted := append([]*program.Node{}, order...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OutputLayout().Bytes() > sorted[j].OutputLayout().Bytes()
	})

	var pool []poolSlot
	var peak, used int

	for _, n := range sorted {
		if n.Kind() == primitive.KindData {
			if !feedsSingleGenericConsumer(n) {
				constantBytes += uint64(n.OutputLayout().Bytes())
			}
			continue
		}

		size := n.OutputLayout().Bytes()
		if size <= 0 {
			continue
		}
		death := basic[n.ID()].end

		placed := false
		for i := range pool {
			if pool[i].dies >= position[n.ID()] {
				continue
			}
			slotSize := pool[i].end - pool[i].start
			if slotSize < size {
				continue
			}
			pool[i] = poolSlot{nodeID: n.ID(), start: pool[i].start, end: pool[i].start + size, dies: death}
			placed = true
			break
		}
		if !placed {
			start := used
			pool = append(pool, poolSlot{nodeID: n.ID(), start: start, end: start + size, dies: death})
			used = start + size
			if used > peak {
				peak = used
			}
		}
	}
	deviceBytes = uint64(peak)

	if limit, ok := hostVirtualMemoryLimit(); ok {
		threshold := limit / 2
		if deviceBytes+constantBytes > threshold {
			return 0, 0, &EstimatorAbort{Host: true, Projected: deviceBytes + constantBytes, Limit: threshold}
		}
	}
	if devLimit := p.Options().DeviceMemoryBytes; devLimit > 0 && deviceBytes > devLimit {
		return 0, 0, &EstimatorAbort{Host: false, Projected: deviceBytes, Limit: devLimit}
	}

	return constantBytes, deviceBytes, nil
}

// feedsSingleGenericConsumer reports whether n (a data node) has exactly
// one user and that user is not itself a structural/elision primitive --
// i.e. n's payload is a weight/bias destined to be folded directly into
// one consumer's kernel rather than materialized as a standalone buffer.
func feedsSingleGenericConsumer(n *program.Node) bool {
	if len(n.Users()) != 1 {
		return false
	}
	switch n.Users()[0].Kind() {
	case primitive.KindReorder, primitive.KindConcatenation, primitive.KindCrop, primitive.KindSplit, primitive.KindReshape:
		return false
	default:
		return true
	}
}

// hostVirtualMemoryLimit reads RLIMIT_AS on POSIX systems (spec §6,
// "Environment"). ok is false if the platform doesn't expose it or the
// limit is unbounded (RLIM_INFINITY).
func hostVirtualMemoryLimit() (limit uint64, ok bool) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &rlim); err != nil {
		return 0, false
	}
	if rlim.Cur == unix.RLIM_INFINITY {
		return 0, false
	}
	return uint64(rlim.Cur), true
}
