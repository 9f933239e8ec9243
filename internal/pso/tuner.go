package pso

import (
	"context"
	"math"
)

// TuneResult is the outcome of a full optimization run.
type TuneResult struct {
	BestGains  []float64
	BestCost   float64
	History    []IterStats
	Iterations int
	Converged  bool
	// AllFatalIters counts iterations where every particle hit the cost
	// sentinel. Reported as a warning by callers; the swarm keeps running
	// since velocity diversity can recover in later iterations.
	AllFatalIters int
}

// Tuner drives a swarm to convergence against an objective.
type Tuner struct {
	swarm *Swarm
	opts  Options

	// OnIteration, when set, observes each completed iteration. Used by
	// the live view and convergence logging.
	OnIteration func(IterStats)
}

func NewTuner(bounds Bounds, opts Options) (*Tuner, error) {
	swarm, err := NewSwarm(bounds, opts)
	if err != nil {
		return nil, err
	}
	return &Tuner{swarm: swarm, opts: opts}, nil
}

// Swarm exposes the underlying swarm for reporting.
func (t *Tuner) Swarm() *Swarm { return t.swarm }

// Run iterates until max iterations, convergence, or context cancellation.
// The global-best cost sequence is non-increasing by construction.
func (t *Tuner) Run(ctx context.Context, obj Objective) (*TuneResult, error) {
	result := &TuneResult{History: make([]IterStats, 0, t.opts.MaxIters)}

	prevBest := math.Inf(1)
	stale := 0

	for iter := 0; iter < t.opts.MaxIters; iter++ {
		select {
		case <-ctx.Done():
			t.finish(result)
			return result, ctx.Err()
		default:
		}

		stats := t.swarm.Step(ctx, iter, obj)
		result.History = append(result.History, stats)
		result.Iterations = iter + 1
		if stats.FatalOnly {
			result.AllFatalIters++
		}
		if t.OnIteration != nil {
			t.OnIteration(stats)
		}

		if t.opts.Tol > 0 && !math.IsInf(prevBest, 1) {
			improvement := (prevBest - stats.BestCost) / math.Max(math.Abs(prevBest), 1e-30)
			if improvement < t.opts.Tol {
				stale++
			} else {
				stale = 0
			}
			if t.opts.Window > 0 && stale >= t.opts.Window {
				result.Converged = true
				break
			}
		}
		prevBest = stats.BestCost
	}

	t.finish(result)
	return result, nil
}

func (t *Tuner) finish(result *TuneResult) {
	result.BestGains, result.BestCost = t.swarm.Best()
}
