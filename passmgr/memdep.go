package passmgr

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/OlehKravchyshyn/gpugraph/memdep"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// runMemoryDependencies is pipeline step 18 (spec §4.5): it runs the
// three-pass restriction-set analysis and the device-memory estimator,
// and records both on the program for the queries spec §6 exposes.
//
// An EstimatorAbort is not a build failure by itself (spec §7: "returned
// as sentinel, not an exception") -- the pipeline here still fails the
// build on it, since a build whose estimate exceeds the configured limit
// has nothing useful to hand the caller, but a caller that wants to
// proceed anyway should run memdep.EstimateMemoryUsage directly instead of
// going through Run.
func runMemoryDependencies(p *program.Program) error {
	deps := memdep.Analyze(p)
	p.SetMemoryDependencies(deps.String())

	constantBytes, deviceBytes, err := memdep.EstimateMemoryUsage(p)
	var abort *memdep.EstimatorAbort
	if errors.As(err, &abort) {
		klog.Warningf("passmgr: memory estimate aborted: %v", abort)
		return abort
	}
	if err != nil {
		return errors.Wrap(err, "passmgr: estimating memory usage")
	}
	p.SetMemoryEstimate(constantBytes, deviceBytes)
	return nil
}
