package sim

import (
	"context"
	"runtime"
	"sync"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
	"github.com/theSadeQ/dip-smc-pso/internal/guards"
)

// Trial is one independent closed-loop evaluation in a batch.
type Trial struct {
	X0   dynamo.State
	Seed int64
}

// Factory builds a fresh plant/integrator/controller/guard set for one
// trial. Batch calls it once per trial so mutable state (adaptive gains,
// step-size history, FSAL cache) is never shared between trials; shared
// read-only data such as plant parameters may be captured by the closure.
type Factory func(trial Trial) (*Runner, error)

// Batch runs independent trials in parallel. A fatal violation or
// integration failure is a local early-exit for that trial only; sibling
// trials continue.
type Batch struct {
	factory Factory
	workers int
}

func NewBatch(factory Factory, workers int) *Batch {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Batch{factory: factory, workers: workers}
}

// Run evaluates every trial and returns results in trial order. Factory
// errors surface per-trial as integration-failure results rather than
// aborting the batch.
func (b *Batch) Run(ctx context.Context, trials []Trial, cfg dynamo.Config) []*dynamo.Result {
	results := make([]*dynamo.Result, len(trials))

	workers := b.workers
	if workers > len(trials) {
		workers = len(trials)
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				results[i] = b.runTrial(ctx, trials[i], cfg)
			}
		}()
	}

	for i := range trials {
		idx <- i
	}
	close(idx)
	wg.Wait()

	return results
}

func (b *Batch) runTrial(ctx context.Context, trial Trial, cfg dynamo.Config) *dynamo.Result {
	runner, err := b.factory(trial)
	if err != nil {
		return &dynamo.Result{Status: dynamo.StatusIntegrationFailure, Err: err}
	}
	cfgCopy := cfg
	cfgCopy.Seed = trial.Seed

	result, err := runner.Run(ctx, trial.X0, cfgCopy)
	if err != nil {
		if result == nil {
			result = &dynamo.Result{}
		}
		result.Status = dynamo.StatusIntegrationFailure
		result.Err = err
	}
	return result
}

// DefaultGuards builds the standard chain for a plant: finite first, then
// bounds, then energy growth.
func DefaultGuards(sys dynamo.Hamiltonian, x0 dynamo.State, maxPos, maxVel, maxAngular, energyEps float64, sev dynamo.Severity) *guards.Chain {
	return guards.NewChain(
		guards.NewFinite(),
		guards.NewBounds(maxPos, maxVel, maxAngular, sev),
		guards.NewEnergy(sys, x0, energyEps, sev),
	)
}
