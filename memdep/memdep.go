// Package memdep implements memory-dependency analysis: for every node, a
// restriction set of other node ids whose output buffer must not alias its
// own, later consumed by an external memory pool to share buffers safely
// (spec §4.9).
//
// Grounded on the teacher's liveness bookkeeping in graph/node.go (each
// node's position in processing order stands in for its "birth"; its
// furthest user stands in for its "death"), generalized here into the
// three-pass overlap/skipped-branch/OOOQ widening the spec describes.
package memdep

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OlehKravchyshyn/gpugraph/internal/sets"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// Dependencies is the per-node restriction set computed by Analyze: for
// each node id, the set of other node ids its output buffer must not
// alias.
type Dependencies struct {
	restricted map[string]sets.Set[string]
}

// Restricted reports whether a and b's output buffers must not share
// storage.
func (d *Dependencies) Restricted(a, b string) bool {
	if a == b {
		return true
	}
	return d.restricted[a].Has(b)
}

// RestrictionsOf returns the ids b must not alias with a, as a fresh
// slice.
func (d *Dependencies) RestrictionsOf(a string) []string {
	set := d.restricted[a]
	out := make([]string, 0, set.Len())
	for id := range set {
		out = append(out, id)
	}
	return out
}

// String renders the restriction set as one "id: other,other,..." line per
// node with a nonempty restriction set, sorted by id, for the
// memory-dependencies query exposed to outside callers (spec §6).
func (d *Dependencies) String() string {
	ids := make([]string, 0, len(d.restricted))
	for id := range d.restricted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		others := d.RestrictionsOf(id)
		sort.Strings(others)
		fmt.Fprintf(&b, "%s: %s\n", id, strings.Join(others, ","))
	}
	return b.String()
}

func (d *Dependencies) add(a, b string) {
	if a == b {
		return
	}
	if d.restricted[a] == nil {
		d.restricted[a] = sets.Make[string]()
	}
	if d.restricted[b] == nil {
		d.restricted[b] = sets.Make[string]()
	}
	d.restricted[a].Insert(b)
	d.restricted[b].Insert(a)
}

// interval is a node's live range expressed as positions in processing
// order: it is born when computed (its own position) and dies after its
// last use (the furthest position among its users), or never (if it is a
// program output, it must live through the end of the order).
type interval struct {
	start, end int
}

func (iv interval) overlaps(other interval) bool {
	return iv.start <= other.end && other.start <= iv.end
}

func (iv interval) widen(depth int) interval {
	start := iv.start - depth
	if start < 0 {
		start = 0
	}
	return interval{start: start, end: iv.end + depth}
}

// Analyze runs the three memory-dependency sub-passes -- basic interval
// overlap, skipped-branch inheritance, and (if the engine's queue is
// out-of-order) OOOQ widening -- and returns the combined restriction set
// (spec §4.9).
func Analyze(p *program.Program) *Dependencies {
	order := p.ProcessingOrder()
	position := make(map[string]int, len(order))
	for i, n := range order {
		position[n.ID()] = i
	}

	basic := basicIntervals(p, order, position)

	deps := &Dependencies{restricted: map[string]sets.Set[string]{}}
	applyOverlaps(deps, order, basic)

	applySkippedBranch(deps, p, basic)

	if depth := p.Options().OutOfOrderQueueDepth; depth > 0 {
		widened := make(map[string]interval, len(basic))
		for id, iv := range basic {
			widened[id] = iv.widen(depth)
		}
		applyOverlaps(deps, order, widened)
	}

	return deps
}

// basicIntervals computes each node's [birth, death] position range: birth
// is its own processing-order index, death is the furthest position among
// its users, or the end of the order if it is a program output (its
// buffer must survive to be read externally).
func basicIntervals(p *program.Program, order []*program.Node, position map[string]int) map[string]interval {
	last := len(order) - 1
	out := make(map[string]interval, len(order))
	for _, n := range order {
		birth := position[n.ID()]
		death := birth
		for _, u := range n.Users() {
			if pos, ok := position[u.ID()]; ok && pos > death {
				death = pos
			}
		}
		if n.IsOutput() && death < last {
			death = last
		}
		out[n.ID()] = interval{start: birth, end: death}
	}
	return out
}

// applyOverlaps marks every pair of nodes whose intervals overlap as
// mutually restricted (classic interval intersection, spec §4.9 "basic").
func applyOverlaps(deps *Dependencies, order []*program.Node, intervals map[string]interval) {
	for i, a := range order {
		ia := intervals[a.ID()]
		for _, b := range order[i+1:] {
			ib := intervals[b.ID()]
			if ia.overlaps(ib) {
				deps.add(a.ID(), b.ID())
			}
		}
	}
}

// applySkippedBranch accounts for nodes the optimizer removed before this
// analysis ran: the removed node no longer has a place in processing
// order, so its live range can't be recovered from basic() alone. Instead
// it restricts each survivor against the removed node's own Neighbors
// snapshot (its dependencies and users at the moment it was logged, per
// program.OptimizedOutEntry) that are still present in the graph. This
// matters concretely for a fused quantize peer whose drop table (§4.10.1)
// left one of its dependencies unrewired to the host: the host inherits
// peer's semantics but never gained that edge, so basic() alone would miss
// the restriction (spec §4.9 "skipped-branch").
func applySkippedBranch(deps *Dependencies, p *program.Program, basic map[string]interval) {
	for _, entry := range p.OptimizedOutLog() {
		for _, survivor := range entry.SurvivingID {
			for _, neighbor := range entry.Neighbors {
				if neighbor == survivor {
					continue
				}
				if _, alive := basic[neighbor]; !alive {
					continue
				}
				deps.add(survivor, neighbor)
			}
		}
	}
}
