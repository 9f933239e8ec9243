// Package control provides the sliding-mode controller family for the
// double inverted pendulum.
//
// All variants implement the [dynamo.Controller] interface and share the
// sliding surface
//
//	s = k1*theta1 + k2*omega1 + lam1*theta2 + lam2*omega2
//
// recomputed from the current state every control period. Each law adds a
// switching term to the model-based equivalent control u_eq that holds
// s' = 0 on the nominal plant:
//
//   - [Classical]: boundary-layer law u = u_eq - dir*K*tanh(s/eps)
//   - [SuperTwisting]: continuous second-order law with an integral state
//   - [Adaptive]: online gain K' = gamma*|s| - leak*K
//   - [Hybrid]: super-twisting with both gains adapted online
//
// dir is the sign of the surface's gain on the applied force; for this
// plant it is negative near upright, so an unsigned switching term would
// push s the wrong way.
//
// Every variant clamps the final output to [-uMax, uMax] after all gain
// and adaptation logic, and returns the last valid output on malformed
// input instead of panicking; trajectory-level anomalies are the safety
// guards' concern, not the controller's.
//
// Use [New] to construct a controller from a type tag, a 6-element gain
// vector and the plant parameters the equivalent term reads; the factory
// rejects mismatched gain counts.
package control
