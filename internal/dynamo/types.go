package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// NonNegative reports whether every component is >= 0.
func (s State) NonNegative() bool {
	for _, v := range s {
		if v < 0 {
			return false
		}
	}
	return true
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Controller supplies the exogenous input applied over the step starting at t.
type Controller interface {
	Compute(x State, t float64) Control
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

type Config struct {
	Dt            float64
	Duration      float64
	ValidateState bool
}

// Steps is the number of fixed steps covering Duration.
func (c Config) Steps() int {
	return int(math.Floor(c.Duration/c.Dt + 1e-9))
}

// Trajectory is the raw output of a simulation: post-step states and the
// step start times they belong to.
type Trajectory struct {
	States     []State
	Controls   []Control
	Times      []float64
	StepsTaken int
}

// Final returns a copy of the last recorded state.
func (t *Trajectory) Final() State {
	if len(t.States) == 0 {
		return nil
	}
	return t.States[len(t.States)-1].Clone()
}
