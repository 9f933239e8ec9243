// Package plant provides double-inverted-pendulum dynamics models.
//
// Three fidelities implement the [dynamo.System] interface and differ only
// in how the mass matrix M(q), Coriolis terms C(q, q')q' and gravity vector
// G(q) are assembled:
//
//   - [Full]: complete nonlinear rigid-body dynamics with all coupling terms
//   - [Linear]: linearization about the upright equilibrium
//   - [LowRank]: nonlinear gravity with the pendulum-pendulum coupling dropped
//
// Generalized coordinates are q = [x, theta1, theta2] with angles measured
// counterclockwise from the upright vertical; the scalar control is a
// horizontal force on the cart. Accelerations come from solving
// M(q)q'' = Bu - C(q,q')q' - G(q) - Fq' through a conditioning-aware solver
// (see [SolveInertia]) that falls back from direct solve to Tikhonov
// regularization to an SVD pseudo-inverse as kappa(M) grows.
//
// All models implement [dynamo.Hamiltonian] for energy monitoring.
package plant
