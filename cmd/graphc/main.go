// Command graphc builds a program from a JSON topology file and runs it
// through the full pass-manager pipeline, printing the resulting
// processing order, optimizer-passes log, and memory-dependency report.
//
// Grounded on the teacher's cmd/gomlx_checkpoints/main.go: plain flag
// parsing, janpfeifer/must to collapse the "check err, os.Exit(1)"
// boilerplate, klog for diagnostics.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/OlehKravchyshyn/gpugraph/engine"
	"github.com/OlehKravchyshyn/gpugraph/passmgr"
	"github.com/OlehKravchyshyn/gpugraph/primitive"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

var (
	flagTopology    = flag.String("topology", "", "Path to a JSON topology file (required).")
	flagOutputs     = flag.String("outputs", "", "Comma-separated list of output node ids (required).")
	flagOptimize    = flag.Bool("optimize_data", true, "Enable fusing, reorder selection, and buffer fusing.")
	flagPartial     = flag.Bool("partial_build", false, "Stop after memory-dependency analysis.")
	flagDumpsDir    = flag.String("dumps_dir", "", "Directory to write per-stage .graph/.info/.order/.optimized dumps into.")
	flagDeviceBytes = flag.Uint64("device_memory_bytes", 0, "Device global memory size, for the estimator's device-side limit check.")
)

func main() {
	flag.Parse()
	if *flagTopology == "" || *flagOutputs == "" {
		klog.Errorf("both -topology and -outputs are required. See 'graphc -help'.")
		os.Exit(1)
	}

	raw := must.M1(os.ReadFile(*flagTopology))
	var topology []primitive.Descriptor
	must.M(json.Unmarshal(raw, &topology))

	outputIDs := splitNonEmpty(*flagOutputs)

	opts := program.BuildOptions{
		OptimizeData:        *flagOptimize,
		PartialBuildProgram: *flagPartial,
		GraphDumpsDir:       *flagDumpsDir,
		DeviceMemoryBytes:   *flagDeviceBytes,
	}

	p := must.M1(program.New(engine.NewHandle(false), topology, opts, outputIDs))

	tuningCache := engine.NewTuningCache()
	collaborators := passmgr.Collaborators{
		KernelSelector: &engine.DefaultKernelSelector{Mode: opts.TuningMode, Cache: tuningCache},
	}
	if err := passmgr.Run(p, collaborators); err != nil {
		klog.Errorf("build failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("processing order:")
	for i, n := range p.ProcessingOrder() {
		fmt.Printf("  %d: %s\n", i, n)
	}

	fmt.Println("\noptimizer passes:")
	for _, entry := range p.OptimizerPassesLog() {
		fmt.Printf("  %s (%s)\n", entry.PassName, entry.Stage)
	}

	fmt.Println("\nmemory dependencies:")
	fmt.Print(p.MemoryDependencies())

	constantBytes, deviceBytes := p.MemoryEstimate()
	fmt.Printf("\nestimated memory: constant=%s device=%s\n",
		humanize.Bytes(constantBytes), humanize.Bytes(deviceBytes))
}

func splitNonEmpty(csv string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				out = append(out, csv[start:i])
			}
			start = i + 1
		}
	}
	return out
}
