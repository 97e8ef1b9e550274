// Package fusing implements the fusing engine: merging an eligible peer
// primitive into a host node, per spec §4.10, including the quantize-peer
// dependency drop table (§4.10.1).
//
// Grounded on the teacher's op-rewrite style (gomlx's graph package builds
// replacement nodes and rewires dependents rather than mutating in place);
// here the host survives and the peer is absorbed, which is the spec's own
// departure from that shape, implemented with program's structural-edit
// primitives (AddConnection / ReplaceAllUsages / RemoveIfDangling).
package fusing

import (
	"github.com/pkg/errors"

	"github.com/OlehKravchyshyn/gpugraph/internal/sets"
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// HistoryEntry records that depIndex of a user's dependency list used to
// point at peerID before fusion rewired it to the host (spec §4.10 step 6).
type HistoryEntry struct {
	PeerID   string
	DepIndex int
}

// History is indexed by node id; History[id] holds the entries recorded
// for id as a former user of some now-fused peer.
type History map[string][]HistoryEntry

// FuseNodes absorbs peer into host: see spec §4.10 for the numbered
// algorithm. On success peer is left dangling (no dependencies, no users)
// and should be swept with program.RemoveIfDangling. If peer was a program
// output, host inherits that flag (program.TransferOutput), the same way
// Extract and Replace move outputness onto a surviving node.
func FuseNodes(p *program.Program, host, peer *program.Node, history History) error {
	neededPadding := tensor.Max(host.OutputLayout().Padding, peer.OutputLayout().Padding)

	if len(peer.FusedActivations()) > 1 {
		return errors.Errorf("fuse_nodes: peer %q already carries more than one fused activation", peer.ID())
	}
	activation := ""
	switch {
	case peer.Kind() == primitive.KindActivation:
		activation = peer.Params().ActivationFunc
	case len(peer.FusedActivations()) == 1:
		activation = peer.FusedActivations()[0]
	}

	var originalInput tensor.Layout
	if deps := peer.Dependencies(); len(deps) > 0 {
		originalInput = deps[0].OutputLayout()
	}

	fp := program.FusedPrimitive{
		Descriptor:     peer.Descriptor(),
		OriginalInput:  originalInput,
		OriginalOutput: peer.OutputLayout(),
		Activation:     activation,
		DepStartIdx:    len(host.Dependencies()),
	}

	inherited := history[peer.ID()]
	alreadyHandled := sets.Make[string](len(inherited))
	for _, e := range inherited {
		alreadyHandled.Insert(e.PeerID)
	}

	peerDeps := append([]*program.Node{}, peer.Dependencies()...)
	for i, dep := range peerDeps {
		if dep == host || alreadyHandled.Has(dep.ID()) {
			continue
		}
		if peer.Kind() == primitive.KindQuantize && peer.Params().ScaleShiftOpt && dropQuantizeInput(peer, i) {
			continue
		}
		if err := p.AddConnection(dep, host); err != nil {
			return errors.Wrapf(err, "fuse_nodes: appending peer dependency %d to host %q", i, host.ID())
		}
	}

	p.AppendFusedPrimitive(host, fp)
	p.AppendFusedActivation(host, activation)
	p.InheritFusedPrimitives(host, peer)
	p.LogOptimizedOut(peer, host.ID())

	for _, u := range peer.Users() {
		depIdx := -1
		for i, d := range u.Dependencies() {
			if d == peer {
				depIdx = i
				break
			}
		}
		history[u.ID()] = append(history[u.ID()], HistoryEntry{PeerID: peer.ID(), DepIndex: depIdx})
	}

	for _, dep := range peerDeps {
		p.RemoveConnection(dep, peer)
	}
	p.ReplaceAllUsages(peer, host)
	p.TransferOutput(peer, host)

	host.SetOutputLayout(peer.OutputLayout().MergeOutputPadding(neededPadding))
	return nil
}
