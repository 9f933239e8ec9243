// Package dynamo provides core simulation primitives for the
// double-inverted-pendulum control stack.
//
// The package defines the fundamental interfaces and types shared by the
// plant models, integrators, controllers and the simulation runner:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator] / [AdaptiveIntegrator]: numerical steppers
//   - [Controller]: feedback controller interface
//   - [Violation]: safety-guard fault record
//
// # Example
//
//	dyn := plant.NewFull(plant.DefaultParams())
//	integ := integrators.NewRK4()
//	runner := sim.NewRunner(dyn, integ, ctrl)
//	result, _ := runner.Run(ctx, x0, cfg)
//
// # Thread Safety
//
// Integrator and Controller instances carry per-run scratch and adaptation
// state and are NOT safe for concurrent use. Parallel evaluation allocates
// one instance per trial; see sim.Batch and pso.Tuner.
package dynamo
