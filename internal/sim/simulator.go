package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/thyrosim/internal/dynamo"
)

// Simulator advances a System with a fixed-step Integrator. The controller
// supplies the exogenous input for each step; a nil controller means none.
type Simulator struct {
	dyn        dynamo.System
	integrator dynamo.Integrator
	controller dynamo.Controller
	observers  []dynamo.Observer
}

func New(dyn dynamo.System, integrator dynamo.Integrator, controller dynamo.Controller) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		observers:  make([]dynamo.Observer, 0),
	}
}

func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// Run performs floor(Duration/Dt) steps from x0. Step i starts at t = i*Dt
// and records the post-step state under that time. A run either returns the
// whole trajectory or an error.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) (*dynamo.Trajectory, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := s.validateState(x0); err != nil {
		return nil, err
	}

	steps := cfg.Steps()
	if steps == 0 {
		return nil, dynamo.InvalidParameter("duration %v shorter than one step of %v", cfg.Duration, cfg.Dt)
	}

	traj := &dynamo.Trajectory{
		States:   make([]dynamo.State, 0, steps),
		Controls: make([]dynamo.Control, 0, steps),
		Times:    make([]float64, 0, steps),
	}

	x := x0.Clone()
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		t := float64(i) * cfg.Dt
		u := s.input(x, t)

		newX := s.integrator.Step(s.dyn, x, u, t, cfg.Dt)
		if cfg.ValidateState && !newX.IsValid() {
			return nil, &dynamo.SimError{Step: i, Time: t, State: x.Clone(), Wrapped: dynamo.ErrNumericDegeneracy}
		}

		for _, obs := range s.observers {
			obs.OnStep(newX, u, t)
		}

		x = newX
		traj.StepsTaken++
		traj.States = append(traj.States, x)
		traj.Controls = append(traj.Controls, u)
		traj.Times = append(traj.Times, t)
	}

	return traj, nil
}

// Equilibrate iterates the system with the clock frozen at t = 0 and no
// input, returning the state after the given number of steps.
func (s *Simulator) Equilibrate(ctx context.Context, x0 dynamo.State, dt float64, steps int) (dynamo.State, error) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, dynamo.InvalidParameter("dt must be positive, got %v", dt)
	}
	if steps < 0 {
		return nil, dynamo.InvalidParameter("equilibration steps must be >= 0, got %d", steps)
	}
	if err := s.validateState(x0); err != nil {
		return nil, err
	}

	u := make(dynamo.Control, s.dyn.ControlDim())
	x := x0.Clone()
	for i := 0; i < steps; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		newX := s.integrator.Step(s.dyn, x, u, 0, dt)
		if !newX.IsValid() {
			return nil, &dynamo.SimError{Step: i, Time: 0, State: x.Clone(), Wrapped: dynamo.ErrNumericDegeneracy}
		}
		x = newX
	}
	return x, nil
}

func (s *Simulator) input(x dynamo.State, t float64) dynamo.Control {
	if s.controller == nil {
		return make(dynamo.Control, s.dyn.ControlDim())
	}
	return s.controller.Compute(x, t)
}

func (s *Simulator) validateConfig(cfg dynamo.Config) error {
	if cfg.Dt <= 0 || math.IsNaN(cfg.Dt) || math.IsInf(cfg.Dt, 0) {
		return dynamo.InvalidParameter("dt must be positive, got %v", cfg.Dt)
	}
	if cfg.Duration <= 0 || math.IsNaN(cfg.Duration) || math.IsInf(cfg.Duration, 0) {
		return dynamo.InvalidParameter("duration must be positive, got %v", cfg.Duration)
	}
	return nil
}

func (s *Simulator) validateState(x dynamo.State) error {
	if len(x) != s.dyn.StateDim() {
		return fmt.Errorf("%w: state has %d components, system expects %d", dynamo.ErrDimensionMismatch, len(x), s.dyn.StateDim())
	}
	if !x.IsValid() {
		return dynamo.InvalidParameter("initial state not finite: %v", x)
	}
	return nil
}
