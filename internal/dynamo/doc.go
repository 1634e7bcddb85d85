// Package dynamo provides core simulation primitives for compartment models.
//
// The package defines the fundamental interfaces and types shared by the
// thyroid engine:
//
//   - [State]: vector of compartment masses
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: fixed-step numerical integrator interface
//   - [Controller]: exogenous input source (dose schedules)
//   - [Observer]: receives every post-step state
//
// # Example
//
//	dyn := physiology.NewThyroid(scaling, physiology.Secretion{T4: 100, T3: 100})
//	s := sim.New(dyn, integrators.NewClampedEuler(), dose.NewInput(schedule, dt))
//	traj, _ := s.Run(ctx, x0, cfg)
//
// # Thread Safety
//
// Systems and integrators are not thread-safe. Run independent simulations
// with separate instances; [Ensemble] does this for a batch of jobs.
package dynamo
