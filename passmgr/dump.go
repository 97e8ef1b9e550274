// Package passmgr implements the pass manager: the ordered application of
// the canonical optimization pipeline (spec §4.5), the optimizer-passes
// log, and the per-stage dump files (spec §6).
//
// Grounded on the teacher's klog-based progress logging style (every
// meaningful state transition gets a klog.V call at a verbosity tier);
// the manager here additionally writes the dump files the spec requires,
// which the teacher has no equivalent of since it has no comparable
// notion of a "build pipeline with inspectable stages".
package passmgr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/OlehKravchyshyn/gpugraph/analysis"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// dumpStage writes the four per-stage dump files into dir, named
// cldnn_program_<id>_<stage>.{graph,info,order,optimized}, per spec §6.
func dumpStage(p *program.Program, dir, stage string) error {
	base := filepath.Join(dir, fmt.Sprintf("cldnn_program_%d_%s", p.ID(), stage))

	if err := os.WriteFile(base+".graph", []byte(dotGraph(p)), 0o644); err != nil {
		return errors.Wrapf(err, "passmgr: writing %s.graph", base)
	}
	if err := os.WriteFile(base+".info", []byte(infoDump(p)), 0o644); err != nil {
		return errors.Wrapf(err, "passmgr: writing %s.info", base)
	}
	if err := os.WriteFile(base+".order", []byte(orderDump(p)), 0o644); err != nil {
		return errors.Wrapf(err, "passmgr: writing %s.order", base)
	}
	if err := os.WriteFile(base+".optimized", []byte(optimizedDump(p)), 0o644); err != nil {
		return errors.Wrapf(err, "passmgr: writing %s.optimized", base)
	}
	klog.V(2).Infof("passmgr: dumped stage %q for program %d to %s", stage, p.ID(), dir)
	return nil
}

func dotGraph(p *program.Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph program_%d {\n", p.ID())
	for _, n := range p.ProcessingOrder() {
		fmt.Fprintf(&b, "  %q [label=%q];\n", n.ID(), fmt.Sprintf("%s(%s)", n.ID(), n.Kind()))
		for _, d := range n.Dependencies() {
			fmt.Fprintf(&b, "  %q -> %q;\n", d.ID(), n.ID())
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func infoDump(p *program.Program) string {
	var b strings.Builder
	precision := analysis.Precision(p)
	for i, n := range p.ProcessingOrder() {
		var users, deps []string
		for _, u := range n.Users() {
			users = append(users, u.ID())
		}
		for _, d := range n.Dependencies() {
			deps = append(deps, d.ID())
		}
		impl := analysis.ImplementationInfo(n, precision[n.ID()])
		fmt.Fprintf(&b, "%d\t%s: kind=%s output=%v deps=%s users=%s layout=%s impl=%s fused=%d\n",
			i, n.ID(), n.Kind(), n.IsOutput(), deps, users, n.OutputLayout(), impl, len(n.FusedPrimitives()))
	}
	return b.String()
}

func orderDump(p *program.Program) string {
	var b strings.Builder
	for i, n := range p.ProcessingOrder() {
		fmt.Fprintf(&b, "%d\t%s\n", i, n.ID())
	}
	return b.String()
}

func optimizedDump(p *program.Program) string {
	var b strings.Builder
	for _, e := range p.OptimizedOutLog() {
		fmt.Fprintf(&b, "%s -> %s\n", e.RemovedID, strings.Join(e.SurvivingID, ","))
	}
	return b.String()
}
