package passmgr

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/OlehKravchyshyn/gpugraph/analysis"
	"github.com/OlehKravchyshyn/gpugraph/fusing"
	"github.com/OlehKravchyshyn/gpugraph/layoutopt"
	"github.com/OlehKravchyshyn/gpugraph/passes"
	"github.com/OlehKravchyshyn/gpugraph/program"
)

// Phase tags a pass with the stage of the pipeline it belongs to, per
// spec §4.5.
type Phase string

const (
	PhaseInit         Phase = "init"
	PhasePreOptimize  Phase = "pre-optimize"
	PhaseCompile      Phase = "compile"
	PhasePostOptimize Phase = "post-optimize"
)

// Collaborators bundles the external, opaque collaborators the pipeline
// consumes but never implements (spec §1): the kernel selector,
// constant-evaluator, prior-box folder, and weights-format advisor.
type Collaborators struct {
	KernelSelector  passes.KernelSelector
	Evaluator       passes.Evaluator
	PriorBoxFold    func(n *program.Node) (any, error)
	WeightsAdvisor  passes.WeightsFormatAdvisor
}

// namedPass is one row of the canonical pipeline: a function plus the
// bookkeeping the manager needs to log and dump around it.
type namedPass struct {
	name  string
	phase Phase
	run   func(p *program.Program, c Collaborators, history fusing.History) error
}

// Run executes the canonical 19-step pipeline against p (spec §4.5),
// short-circuiting after memory-dependency analysis when
// p.Options().PartialBuildProgram is set. After every pass it appends
// (name, stage) to the optimizer-passes log and, if
// p.Options().GraphDumpsDir is non-empty, dumps the four per-stage files.
func Run(p *program.Program, c Collaborators) error {
	history := fusing.History{}
	opts := p.Options()

	steps := canonicalPipeline(opts)
	if opts.NoOptimizations {
		var kept []namedPass
		for _, step := range steps {
			if step.phase == PhasePreOptimize || step.phase == PhasePostOptimize {
				continue
			}
			kept = append(kept, step)
		}
		steps = kept
	}

	for _, step := range steps {
		if err := step.run(p, c, history); err != nil {
			return errors.Wrapf(err, "passmgr: pass %q failed", step.name)
		}
		p.AppendPassLog(program.PassLogEntry{PassName: step.name, Stage: string(step.phase)})
		if opts.GraphDumpsDir != "" {
			if err := dumpStage(p, opts.GraphDumpsDir, step.name); err != nil {
				return err
			}
		}
		if step.name == "memory_dependencies" && opts.PartialBuildProgram {
			klog.V(1).Infof("passmgr: partial_build_program set, stopping after %q", step.name)
			return nil
		}
	}
	return nil
}

func canonicalPipeline(opts program.BuildOptions) []namedPass {
	pipeline := []namedPass{
		{"graph_initializations", PhaseInit, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.GraphInitializations(p)
		}},
		{"calculate_prior_boxes", PhaseInit, func(p *program.Program, c Collaborators, h fusing.History) error {
			if c.PriorBoxFold == nil {
				return nil
			}
			return passes.CalculatePriorBoxes(p, c.PriorBoxFold)
		}},
		{"mark_nodes", PhaseInit, func(p *program.Program, c Collaborators, h fusing.History) error {
			analysis.MarkNodes(p)
			return nil
		}},

		{"trim_to_outputs", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.TrimToOutputs(p)
		}},
		{"handle_input_padding", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.HandleInputPadding(p)
		}},
		{"recalculate_processing_order", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			p.RecalculateProcessingOrder()
			return nil
		}},
		{"reverse_optional_nodes_outputs", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.ReverseOptionalNodesOutputs(p)
		}},
		{"output_size_handling", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			analysis.OutputSizeHandling(p)
			for _, n := range p.ProcessingOrder() {
				if len(n.Dependencies()) == 0 {
					continue
				}
				if err := p.RecomputeLayout(n); err != nil {
					return err
				}
			}
			return nil
		}},
	}

	if opts.OptimizeData {
		pipeline = append(pipeline, namedPass{"prepare_quantization", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.PrepareQuantization(p)
		}})
	}

	pipeline = append(pipeline, namedPass{"layout_optimizer_attributes", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
		layoutopt.Analyze(p)
		return nil
	}})

	if opts.OptimizeData {
		pipeline = append(pipeline,
			namedPass{"prepare_primitive_fusing", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
				return passes.PreparePrimitiveFusing(p, h)
			}},
			namedPass{"select_preferred_formats", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
				return passes.SelectPreferredFormats(p, layoutopt.Analyze(p))
			}},
			namedPass{"reorder_inputs", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
				return passes.ReorderInputs(p, layoutopt.Analyze(p))
			}},
			namedPass{"concat_input_order", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
				return passes.ConcatInputOrder(p)
			}},
		)
	}

	pipeline = append(pipeline,
		namedPass{"strided_slice_optimize", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.StridedSliceOptimize(p)
		}},
		namedPass{"handle_reshape", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.HandleReshape(p)
		}},
		namedPass{"prepare_padding", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.PreparePadding(p)
		}},
		namedPass{"remove_redundant_reorders", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.RemoveRedundantReorders(p)
		}},
	)

	if !opts.IsInternal {
		pipeline = append(pipeline, namedPass{"propagate_constants", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			if c.Evaluator == nil {
				return nil
			}
			return passes.PropagateConstants(p, c.Evaluator)
		}})
	}

	if opts.OptimizeData {
		pipeline = append(pipeline,
			namedPass{"prepare_buffer_fusing", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
				return passes.PrepareBufferFusing(p)
			}},
			namedPass{"add_required_reorders", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
				return passes.AddRequiredReorders(p)
			}},
			namedPass{"add_onednn_optimization_attributes", PhasePreOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
				return passes.AddOnednnOptimizationAttributes(p, layoutopt.Analyze(p))
			}},
		)
	}

	pipeline = append(pipeline, namedPass{"compile_graph", PhaseCompile, func(p *program.Program, c Collaborators, h fusing.History) error {
		if c.KernelSelector == nil {
			return nil
		}
		return passes.CompileGraph(p, c.KernelSelector)
	}})

	pipeline = append(pipeline,
		namedPass{"post_input_reorder", PhasePostOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.PostInputReorder(p)
		}},
		namedPass{"post_optimize_weights", PhasePostOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			if c.WeightsAdvisor == nil {
				return nil
			}
			return passes.PostOptimizeWeights(p, c.WeightsAdvisor)
		}},
		namedPass{"remove_redundant_reorders_post", PhasePostOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.RemoveRedundantReorders(p)
		}},
	)
	if opts.OptimizeData {
		pipeline = append(pipeline, namedPass{"remove_redundant_reorders_outputs", PhasePostOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			return passes.RemoveRedundantReorders(p)
		}})
	}
	if !opts.IsInternal {
		pipeline = append(pipeline, namedPass{"propagate_constants_post", PhasePostOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
			if c.Evaluator == nil {
				return nil
			}
			return passes.PropagateConstants(p, c.Evaluator)
		}})
	}
	pipeline = append(pipeline, namedPass{"update_loop_primitive_map", PhasePostOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
		return passes.UpdateLoopPrimitiveMap(p)
	}})

	pipeline = append(pipeline, namedPass{"memory_dependencies", PhasePostOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
		return runMemoryDependencies(p)
	}})

	pipeline = append(pipeline, namedPass{"cleanup", PhasePostOptimize, func(p *program.Program, c Collaborators, h fusing.History) error {
		return passes.Cleanup(p)
	}})

	return pipeline
}
