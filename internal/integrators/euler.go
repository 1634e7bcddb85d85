package integrators

import (
	"math"

	"github.com/san-kum/thyrosim/internal/dynamo"
)

// Euler is the explicit forward Euler method. With Clamp set every finite
// component of the new state is floored at zero; non-finite values are left
// for the caller to detect.
type Euler struct {
	Clamp bool
}

func NewEuler() *Euler {
	return &Euler{}
}

func NewClampedEuler() *Euler {
	return &Euler{Clamp: true}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	result := x.Add(dyn.Derive(x, u, t).Scale(dt))
	if e.Clamp {
		for i, v := range result {
			if v < 0 && !math.IsInf(v, -1) {
				result[i] = 0
			}
		}
	}
	return result
}
