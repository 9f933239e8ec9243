// Package pso implements particle swarm optimization over controller gain
// space.
//
// The swarm is an owned aggregate: particles plus a global best, mutated
// only by [Swarm.Step]. Fitness evaluations run in parallel; the global
// best is updated once per iteration after every particle has been scored
// (a barrier), so velocity updates always see a consistent gbest.
package pso

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/theSadeQ/dip-smc-pso/internal/cost"
)

// Particle state. BestPosition/BestCost track the personal best, updated
// only on strict improvement. Nothing here is shared between particles.
type Particle struct {
	Position     []float64
	Velocity     []float64
	BestPosition []float64
	BestCost     float64
	Cost         float64
}

// Bounds is the axis-aligned search box for the gain vector.
type Bounds struct {
	Lo []float64
	Hi []float64
}

func (b Bounds) Validate() error {
	if len(b.Lo) == 0 || len(b.Lo) != len(b.Hi) {
		return fmt.Errorf("pso: bounds dimensions %d/%d invalid", len(b.Lo), len(b.Hi))
	}
	for i := range b.Lo {
		if b.Lo[i] >= b.Hi[i] {
			return fmt.Errorf("pso: bound %d empty: [%g, %g]", i, b.Lo[i], b.Hi[i])
		}
	}
	return nil
}

// Objective scores one gain vector. It must return a finite value for
// every input; fatally unstable trials map to the cost sentinel upstream.
type Objective func(ctx context.Context, gains []float64) float64

// IterStats summarizes one completed iteration.
type IterStats struct {
	Iter      int
	BestCost  float64
	MeanCost  float64
	FatalOnly bool // every particle hit the sentinel this iteration
}

// Options for the optimizer.
type Options struct {
	SwarmSize int     `yaml:"swarm_size"`
	MaxIters  int     `yaml:"max_iters"`
	Inertia   float64 `yaml:"inertia"`
	Cognitive float64 `yaml:"cognitive"`
	Social    float64 `yaml:"social"`
	// Stop when relative gbest improvement stays below Tol for Window
	// consecutive iterations.
	Tol     float64 `yaml:"tol"`
	Window  int     `yaml:"window"`
	Workers int     `yaml:"workers"`
	Seed    int64   `yaml:"seed"`
}

func DefaultOptions() Options {
	return Options{
		SwarmSize: 24,
		MaxIters:  60,
		Inertia:   0.7,
		Cognitive: 1.5,
		Social:    1.5,
		Tol:       1e-4,
		Window:    8,
		Workers:   0,
		Seed:      42,
	}
}

func (o Options) Validate() error {
	if o.SwarmSize < 2 {
		return fmt.Errorf("pso: swarm size %d too small", o.SwarmSize)
	}
	if o.MaxIters < 1 {
		return fmt.Errorf("pso: max iterations %d too small", o.MaxIters)
	}
	if o.Inertia < 0 || o.Inertia >= 1 {
		return fmt.Errorf("pso: inertia %g outside [0, 1)", o.Inertia)
	}
	if o.Cognitive < 0 || o.Social < 0 {
		return fmt.Errorf("pso: negative acceleration coefficient")
	}
	return nil
}

// Swarm holds the particles and the shared global best.
type Swarm struct {
	particles []Particle
	bounds    Bounds
	opts      Options
	rng       *rand.Rand

	best     []float64
	bestCost float64
}

func NewSwarm(bounds Bounds, opts Options) (*Swarm, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Swarm{
		particles: make([]Particle, opts.SwarmSize),
		bounds:    bounds,
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		bestCost:  math.Inf(1),
	}

	dim := len(bounds.Lo)
	for i := range s.particles {
		p := &s.particles[i]
		p.Position = make([]float64, dim)
		p.Velocity = make([]float64, dim)
		p.BestPosition = make([]float64, dim)
		p.BestCost = math.Inf(1)
		for d := 0; d < dim; d++ {
			span := bounds.Hi[d] - bounds.Lo[d]
			p.Position[d] = bounds.Lo[d] + s.rng.Float64()*span
			// initial velocity within a fraction of the span, both signs
			p.Velocity[d] = (s.rng.Float64()*2 - 1) * 0.1 * span
		}
		copy(p.BestPosition, p.Position)
	}

	return s, nil
}

// Particles exposes the swarm contents read-only for reporting.
func (s *Swarm) Particles() []Particle { return s.particles }

// Best returns a copy of the global best position and its cost.
func (s *Swarm) Best() ([]float64, float64) {
	out := make([]float64, len(s.best))
	copy(out, s.best)
	return out, s.bestCost
}

// Step runs one iteration: parallel evaluation of every particle, barrier,
// global best update, then velocity/position updates.
func (s *Swarm) Step(ctx context.Context, iter int, obj Objective) IterStats {
	s.evaluate(ctx, obj)

	// barrier passed: all costs are in, update personal and global bests
	fatalOnly := true
	sum := 0.0
	for i := range s.particles {
		p := &s.particles[i]
		sum += p.Cost
		if p.Cost < cost.Sentinel {
			fatalOnly = false
		}
		if p.Cost < p.BestCost {
			p.BestCost = p.Cost
			copy(p.BestPosition, p.Position)
		}
		if p.Cost < s.bestCost {
			s.bestCost = p.Cost
			s.best = append(s.best[:0], p.Position...)
		}
	}

	s.move()

	return IterStats{
		Iter:      iter,
		BestCost:  s.bestCost,
		MeanCost:  sum / float64(len(s.particles)),
		FatalOnly: fatalOnly,
	}
}

func (s *Swarm) evaluate(ctx context.Context, obj Objective) {
	workers := s.opts.Workers
	if workers <= 0 {
		workers = len(s.particles)
	}
	if workers > len(s.particles) {
		workers = len(s.particles)
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				c := obj(ctx, s.particles[i].Position)
				if math.IsNaN(c) || math.IsInf(c, 0) {
					c = cost.Sentinel
				}
				s.particles[i].Cost = c
			}
		}()
	}
	for i := range s.particles {
		idx <- i
	}
	close(idx)
	wg.Wait()
}

// move applies the standard velocity/position update, clamping positions
// to the gain bounds and zeroing the velocity component on a boundary hit.
func (s *Swarm) move() {
	for i := range s.particles {
		p := &s.particles[i]
		for d := range p.Position {
			r1 := s.rng.Float64()
			r2 := s.rng.Float64()
			p.Velocity[d] = s.opts.Inertia*p.Velocity[d] +
				s.opts.Cognitive*r1*(p.BestPosition[d]-p.Position[d]) +
				s.opts.Social*r2*(s.best[d]-p.Position[d])
			p.Position[d] += p.Velocity[d]

			if p.Position[d] < s.bounds.Lo[d] {
				p.Position[d] = s.bounds.Lo[d]
				p.Velocity[d] = 0
			} else if p.Position[d] > s.bounds.Hi[d] {
				p.Position[d] = s.bounds.Hi[d]
				p.Velocity[d] = 0
			}
		}
	}
}
