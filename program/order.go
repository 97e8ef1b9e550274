package program

// orderEntry is one link of the processing order's doubly linked sequence.
type orderEntry struct {
	node *Node
	prev *orderEntry
	next *orderEntry
}

// nodesOrdering is a doubly linked sequence of nodes with O(1) lookup by
// node via an auxiliary index, per spec §4.4.
type nodesOrdering struct {
	head, tail *orderEntry
	index      map[*Node]*orderEntry
}

func newNodesOrdering() *nodesOrdering {
	return &nodesOrdering{index: make(map[*Node]*orderEntry)}
}

// PushBack appends n to the end of the order.
func (o *nodesOrdering) PushBack(n *Node) {
	e := &orderEntry{node: n}
	if o.tail == nil {
		o.head, o.tail = e, e
	} else {
		e.prev = o.tail
		o.tail.next = e
		o.tail = e
	}
	o.index[n] = e
}

// InsertBefore inserts n immediately before "before" in the order.
func (o *nodesOrdering) InsertBefore(before, n *Node) {
	if before == n {
		return
	}
	o.Erase(n)
	be, ok := o.index[before]
	if !ok {
		o.PushBack(n)
		return
	}
	e := &orderEntry{node: n, prev: be.prev, next: be}
	if be.prev != nil {
		be.prev.next = e
	} else {
		o.head = e
	}
	be.prev = e
	o.index[n] = e
}

// InsertAfter inserts n immediately after "after" in the order.
func (o *nodesOrdering) InsertAfter(after, n *Node) {
	if after == n {
		return
	}
	o.Erase(n)
	ae, ok := o.index[after]
	if !ok {
		o.PushBack(n)
		return
	}
	e := &orderEntry{node: n, prev: ae, next: ae.next}
	if ae.next != nil {
		ae.next.prev = e
	} else {
		o.tail = e
	}
	ae.next = e
	o.index[n] = e
}

// Erase removes n from the order. It is a no-op if n is not present.
func (o *nodesOrdering) Erase(n *Node) {
	e, ok := o.index[n]
	if !ok {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		o.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		o.tail = e.prev
	}
	delete(o.index, n)
}

// Contains reports whether n is currently in the order.
func (o *nodesOrdering) Contains(n *Node) bool {
	_, ok := o.index[n]
	return ok
}

// Slice returns the order as a plain slice, head to tail.
func (o *nodesOrdering) Slice() []*Node {
	out := make([]*Node, 0, len(o.index))
	for e := o.head; e != nil; e = e.next {
		out = append(out, e.node)
	}
	return out
}

// Reset clears the order and replaces it with nodes, in order.
func (o *nodesOrdering) Reset(nodes []*Node) {
	o.head, o.tail = nil, nil
	o.index = make(map[*Node]*orderEntry, len(nodes))
	for _, n := range nodes {
		o.PushBack(n)
	}
}

// calculateBFSOrder re-derives a topological order of reachable nodes by
// BFS from roots (the program's declared inputs plus any node with zero
// dependencies), ties broken by insertion order within the current order
// (spec §4.4).
func calculateBFSOrder(allNodesInInsertionOrder []*Node) []*Node {
	inDegree := make(map[*Node]int, len(allNodesInInsertionOrder))
	for _, n := range allNodesInInsertionOrder {
		inDegree[n] = len(n.dependencies)
	}
	queue := make([]*Node, 0, len(allNodesInInsertionOrder))
	for _, n := range allNodesInInsertionOrder {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	visited := make(map[*Node]bool, len(allNodesInInsertionOrder))
	order := make([]*Node, 0, len(allNodesInInsertionOrder))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n] {
			continue
		}
		visited[n] = true
		order = append(order, n)
		// Users in insertion order, for deterministic tie-breaking.
		for _, u := range sortedByInsertion(n.users, allNodesInInsertionOrder) {
			inDegree[u]--
			if inDegree[u] == 0 {
				queue = append(queue, u)
			}
		}
	}
	return order
}

// sortedByInsertion returns nodes sorted by their position in reference.
func sortedByInsertion(nodes []*Node, reference []*Node) []*Node {
	pos := make(map[*Node]int, len(reference))
	for i, n := range reference {
		pos[n] = i
	}
	out := append([]*Node{}, nodes...)
	// Simple insertion sort: node counts per call are small (fan-out of one node).
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && pos[out[j-1]] > pos[out[j]]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
