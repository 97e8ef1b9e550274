package program

import "github.com/OlehKravchyshyn/gpugraph/primitive"

// AddConnection appends v to u.users and u to v.dependencies (u produces an
// input consumed by v). It fails with GraphInvariantViolation if doing so
// would create a cycle.
func (p *Program) AddConnection(u, v *Node) error {
	if u.hasUser(v) {
		return nil // idempotent.
	}
	if reaches(v, u) {
		return invariantViolation(v.id, "add_connection(%s -> %s) would create a cycle", u.id, v.id)
	}
	return p.addConnectionOrdered(u, v)
}

// addConnectionOrdered performs the edge append without the cycle check,
// used internally while a topology is still being wired (acyclicity is
// guaranteed there by construction order) and by callers that have already
// validated acyclicity.
func (p *Program) addConnectionOrdered(u, v *Node) error {
	u.users = append(u.users, v)
	v.dependencies = append(v.dependencies, u)
	p.updateFlagsAfterDependencyChange(v)
	return nil
}

// reaches reports whether to is reachable from "from" by following user
// edges forward (i.e. whether from is an ancestor of to).
func reaches(from, to *Node) bool {
	if from == to {
		return true
	}
	visited := map[*Node]bool{from: true}
	queue := []*Node{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, u := range n.users {
			if u == to {
				return true
			}
			if !visited[u] {
				visited[u] = true
				queue = append(queue, u)
			}
		}
	}
	return false
}

// RemoveConnection symmetrically removes the edge u -> v. It is a no-op if
// the edge does not exist.
func (p *Program) RemoveConnection(u, v *Node) {
	u.users = removeFirstFromSlice(u.users, v)
	v.dependencies = removeFirstFromSlice(v.dependencies, u)
	p.updateFlagsAfterDependencyChange(v)
}

// RemoveAllConnections disconnects n from every neighbor; n remains in the
// id-map.
func (p *Program) RemoveAllConnections(n *Node) {
	for _, d := range append([]*Node{}, n.dependencies...) {
		p.RemoveConnection(d, n)
	}
	for _, u := range append([]*Node{}, n.users...) {
		p.RemoveConnection(n, u)
	}
}

// Rename changes n's id. It fails if newID is already taken or if n is an
// output (an output's id is part of the program's external contract).
func (p *Program) Rename(n *Node, newID string) error {
	if n.id == newID {
		return nil // rename(n,x); rename(n,x) is idempotent.
	}
	if _, exists := p.nodes[newID]; exists {
		return invariantViolation(newID, "rename target id %q already exists", newID)
	}
	if n.output {
		return invariantViolation(n.id, "cannot rename output node %q", n.id)
	}
	delete(p.nodes, n.id)
	n.id = newID
	p.nodes[newID] = n
	return nil
}

// SwapNames atomically exchanges the ids of a and b; edges are unchanged.
func (p *Program) SwapNames(a, b *Node) error {
	if a == b {
		return nil
	}
	p.nodes[a.id], p.nodes[b.id] = b, a
	a.id, b.id = b.id, a.id
	return nil
}

// ReplaceAllUsages rewrites every edge (old -> u) to (newProducer -> u);
// old becomes userless.
func (p *Program) ReplaceAllUsages(old, newProducer *Node) {
	for _, u := range append([]*Node{}, old.users...) {
		idx := u.indexOfDependency(old)
		for idx >= 0 {
			u.dependencies[idx] = newProducer
			idx = indexOfFrom(u.dependencies, old, idx+1)
		}
		if !newProducer.hasUser(u) {
			newProducer.users = append(newProducer.users, u)
		}
	}
	old.users = nil
}

func indexOfFrom(deps []*Node, target *Node, from int) int {
	for i := from; i < len(deps); i++ {
		if deps[i] == target {
			return i
		}
	}
	return -1
}

// Replace makes newNode take over old's dependencies and users, copies
// old's layout/flags, inherits old's id (via Rename), inserts newNode into
// old's processing-order slot, and removes old. newNode must be detached
// (no dependencies, no users) or Replace fails with
// GraphInvariantViolation. If old was an output, newNode becomes one.
func (p *Program) Replace(old, newNode *Node) error {
	if len(newNode.dependencies) > 0 || len(newNode.users) > 0 {
		return invariantViolation(newNode.id, "replace target %q must be detached", newNode.id)
	}
	newNode.dependencies = old.dependencies
	for _, d := range newNode.dependencies {
		replaceInSlice(d.users, old, newNode)
	}
	newNode.users = old.users
	for _, u := range newNode.users {
		replaceInSlice(u.dependencies, old, newNode)
	}
	newNode.outputLayout = old.outputLayout
	newNode.constant = old.constant
	newNode.dataFlow = old.dataFlow
	wasOutput := old.output
	oldID := old.id

	old.dependencies, old.users = nil, nil
	delete(p.nodes, oldID)
	p.order.InsertBefore(old, newNode)
	p.order.Erase(old)
	p.nodes[newNode.id] = newNode

	if err := p.Rename(newNode, oldID); err != nil {
		// newNode already has its own id distinct from oldID; keep it and
		// surface an error describing the collision instead of silently
		// leaving two ids live.
		return err
	}
	if wasOutput {
		old.output = false
		newNode.output = true
		for i, id := range p.outputs {
			if id == oldID {
				p.outputs[i] = newNode.id
			}
		}
	}
	return nil
}

func replaceInSlice(s []*Node, old, with *Node) {
	for i, n := range s {
		if n == old {
			s[i] = with
		}
	}
}

// AddIntermediate inserts m on the edge into next at dependency index
// prevIdx. If connectOld, m also depends on the previous dependency at
// that index. If moveUsers, every other user of the previous dependency
// (besides m) is rewired to depend on m instead.
func (p *Program) AddIntermediate(m, next *Node, prevIdx int, connectOld, moveUsers bool) error {
	if prevIdx < 0 || prevIdx >= len(next.dependencies) {
		return invariantViolation(next.id, "add_intermediate: dependency index %d out of range", prevIdx)
	}
	prev := next.dependencies[prevIdx]

	p.RemoveConnection(prev, next)
	if err := p.AddConnection(m, next); err != nil {
		return err
	}
	// AddConnection appended m at the end of next.dependencies; move it
	// into prevIdx's slot so input order is preserved.
	moveDependencyToIndex(next, m, prevIdx)

	if connectOld {
		if err := p.AddConnection(prev, m); err != nil {
			return err
		}
	}
	if moveUsers {
		for _, u := range append([]*Node{}, prev.users...) {
			if u == m {
				continue
			}
			idx := u.indexOfDependency(prev)
			p.RemoveConnection(prev, u)
			if err := p.AddConnection(m, u); err != nil {
				return err
			}
			moveDependencyToIndex(u, m, idx)
		}
	}
	p.order.InsertBefore(next, m)
	p.updateFlagsAfterDependencyChange(next)
	p.updateFlagsAfterDependencyChange(m)
	return nil
}

func moveDependencyToIndex(n, dep *Node, idx int) {
	cur := n.indexOfDependency(dep)
	if cur < 0 || cur == idx {
		return
	}
	deps := n.dependencies
	deps = append(deps[:cur], deps[cur+1:]...)
	if idx > len(deps) {
		idx = len(deps)
	}
	deps = append(deps[:idx], append([]*Node{dep}, deps[idx:]...)...)
	n.dependencies = deps
}

// Extract bypasses n: n's single predecessor takes over n's user edges,
// and n is removed from the processing order (but remains in the id-map --
// callers typically follow Extract with RemoveIfDangling). n must have
// exactly one dependency. If n was an output, the predecessor inherits
// outputness via a rename/swap.
func (p *Program) Extract(n *Node) error {
	if len(n.dependencies) != 1 {
		return invariantViolation(n.id, "extract requires exactly one dependency, got %d", len(n.dependencies))
	}
	pred := n.dependencies[0]
	p.RemoveConnection(pred, n)
	for _, u := range append([]*Node{}, n.users...) {
		idx := u.indexOfDependency(n)
		p.RemoveConnection(n, u)
		if err := p.AddConnection(pred, u); err != nil {
			return err
		}
		moveDependencyToIndex(u, pred, idx)
	}
	p.order.Erase(n)
	if n.output {
		n.output = false
		pred.output = true
		for i, id := range p.outputs {
			if id == n.id {
				p.outputs[i] = pred.id
			}
		}
	}
	return nil
}

// TransferOutput moves the output flag from old to survivor, if old carries
// it: survivor becomes an output in old's place in p.Outputs(), and old
// stops being one. A no-op if old was never an output. Used by callers
// outside this package (the fusing engine) that absorb a node without
// going through Extract/Replace/FoldToData, which do this inline.
func (p *Program) TransferOutput(old, survivor *Node) {
	if !old.output {
		return
	}
	old.output = false
	survivor.output = true
	for i, id := range p.outputs {
		if id == old.id {
			p.outputs[i] = survivor.id
		}
	}
}

// RemoveIfDangling removes n iff it has no dependencies, no users, and is
// not an output (unless the program is in Debug mode). It does not touch
// the optimized-out log itself: callers that know what subsumes n (the
// fusing engine, dead-code sweeps with a known replacement) should call
// LogOptimizedOut before or after as appropriate; a plain unreachable
// node has no survivor to log.
func (p *Program) RemoveIfDangling(n *Node) bool {
	if len(n.dependencies) != 0 || len(n.users) != 0 {
		return false
	}
	if n.output && !p.options.Debug {
		return false
	}
	delete(p.nodes, n.id)
	p.order.Erase(n)
	return true
}

// MoveNode relocates n to sit between newPrev and newNext: it is Extract
// followed by AddIntermediate.
func (p *Program) MoveNode(n, newPrev, newNext *Node) error {
	if err := p.Extract(n); err != nil {
		return err
	}
	idx := newNext.indexOfDependency(newPrev)
	if idx < 0 {
		return invariantViolation(newNext.id, "move_node: %q is not a dependency of %q", newPrev.id, newNext.id)
	}
	return p.AddIntermediate(n, newNext, idx, true, false)
}

// ReverseConnection replaces edge u -> v with v -> u. It fails if the edge
// does not exist.
func (p *Program) ReverseConnection(u, v *Node) error {
	if !u.hasUser(v) {
		return invariantViolation(u.id, "reverse_connection: no edge %s -> %s", u.id, v.id)
	}
	p.RemoveConnection(u, v)
	return p.AddConnection(v, u)
}

// updateFlagsAfterDependencyChange recomputes n's constant/data_flow flags
// from its current dependency set (spec §3 invariant 6). Full re-marking
// in topological order is analysis.MarkNodes's job; this keeps the two
// flags locally consistent after a single edit so invariant 6 never goes
// stale between passes.
func (p *Program) updateFlagsAfterDependencyChange(n *Node) {
	n.constant = computeConstant(n)
	n.dataFlow = computeDataFlow(n)
}

func computeConstant(n *Node) bool {
	if primitive.StatefulSourceKinds[n.kind] {
		return false
	}
	if len(n.dependencies) == 0 {
		return n.kind == primitive.KindData
	}
	for _, d := range n.dependencies {
		if !d.constant {
			return false
		}
	}
	return true
}

func computeDataFlow(n *Node) bool {
	if primitive.StatefulSourceKinds[n.kind] {
		return true
	}
	for _, d := range n.dependencies {
		if d.dataFlow {
			return true
		}
	}
	return false
}
