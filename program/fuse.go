package program

// AppendFusedPrimitive records fp as absorbed into host, in fusion order.
// Exposed for the fusing engine, which lives outside this package so it
// can depend on layoutopt/primitive without program importing them back.
func (p *Program) AppendFusedPrimitive(host *Node, fp FusedPrimitive) {
	host.fusedPrimitives = append(host.fusedPrimitives, fp)
}

// InheritFusedPrimitives appends peer's own already-fused primitives and
// activations onto host, preserving their relative order (spec §4.10 step
// 5, "inherit peer's already-fused primitives if any").
func (p *Program) InheritFusedPrimitives(host, peer *Node) {
	host.fusedPrimitives = append(host.fusedPrimitives, peer.fusedPrimitives...)
	host.fusedActivations = append(host.fusedActivations, peer.fusedActivations...)
}

// AppendFusedActivation records activation as absorbed into host.
func (p *Program) AppendFusedActivation(host *Node, activation string) {
	if activation == "" {
		return
	}
	host.fusedActivations = append(host.fusedActivations, activation)
}
