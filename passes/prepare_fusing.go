package passes

import (
	"github.com/OlehKravchyshyn/gpugraph/fusing"
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
	"github.com/OlehKravchyshyn/gpugraph/tensor"
)

// PreparePrimitiveFusing scans every CanFuseAsHost node for an adjacent
// single-user CanFuseAsPeer dependent; where fusibility holds (layout
// compatibility, broadcastable shapes, no unsupported attributes), it
// calls the fusing engine (spec §4.7, §4.10). A fusion the engine rejects
// is not fatal: that host keeps the peer unfused and the scan moves on.
func PreparePrimitiveFusing(p *program.Program, history fusing.History) error {
	if history == nil {
		history = fusing.History{}
	}
	for _, host := range p.ProcessingOrder() {
		hostEntry, ok := primitive.Lookup(host.Kind())
		if !ok || !hostEntry.CanFuseAsHost {
			continue
		}
		for {
			peer := firstFusiblePeer(host)
			if peer == nil {
				break
			}
			if err := fusing.FuseNodes(p, host, peer, history); err != nil {
				break // fusing rejected: leave this host/peer pair unfused.
			}
			p.RemoveIfDangling(peer)
		}
	}
	return nil
}

// firstFusiblePeer returns host's sole user if that user is a registered
// peer kind and its output layout is compatible with being folded into
// host's buffer. The peer's other dependencies are not examined here.
func firstFusiblePeer(host *program.Node) *program.Node {
	users := host.Users()
	if len(users) != 1 {
		return nil
	}
	peer := users[0]
	peerEntry, ok := primitive.Lookup(peer.Kind())
	if !ok || !peerEntry.CanFuseAsPeer {
		return nil
	}
	if !isBroadcastFusible(host, peer) {
		return nil
	}
	return peer
}

func isBroadcastFusible(host, peer *program.Node) bool {
	hl, pl := host.OutputLayout(), peer.OutputLayout()
	if !hl.Valid || !pl.Valid {
		return false
	}
	if hl.DType != pl.DType && peer.Kind() != primitive.KindQuantize {
		return false
	}
	return tensor.Compatible(hl, tensor.Layout{DType: hl.DType, Format: hl.Format, Shape: pl.Shape, Padding: pl.Padding, Valid: true}) ||
		pl.Shape.Size() == 1 || hl.Shape.Equal(pl.Shape)
}
