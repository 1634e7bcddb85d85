package dose

import (
	"math"

	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/physiology"
)

// OralAbsorptionRate is the first-order absorption constant (1/day) shared by
// every oral dose.
const OralAbsorptionRate = 12.0

// Absorption holds oral bioavailability as a percentage per hormone.
type Absorption struct {
	T4 float64 `json:"t4" yaml:"t4"`
	T3 float64 `json:"t3" yaml:"t3"`
}

func DefaultAbsorption() Absorption {
	return Absorption{T4: 88, T3: 88}
}

func (a Absorption) Validate() error {
	if !finite(a.T4) || !finite(a.T3) || a.T4 < 0 || a.T3 < 0 {
		return dynamo.InvalidParameter("absorption must be finite and non-negative, got %+v", a)
	}
	return nil
}

func (a Absorption) fraction(h physiology.Hormone) float64 {
	if h == physiology.T3 {
		return a.T3 / 100
	}
	return a.T4 / 100
}

// Schedule is the immutable set of doses attached to one run.
type Schedule struct {
	byHormone  [2][]Dose
	absorption Absorption
}

// NewSchedule validates and copies doses. Order is irrelevant: doses of the
// same hormone are summed.
func NewSchedule(absorption Absorption, doses ...Dose) (*Schedule, error) {
	if err := absorption.Validate(); err != nil {
		return nil, err
	}

	s := &Schedule{absorption: absorption}
	for _, d := range doses {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		s.byHormone[d.Hormone] = append(s.byHormone[d.Hormone], d)
	}
	return s, nil
}

// Empty returns a schedule without doses.
func Empty() *Schedule {
	return &Schedule{absorption: DefaultAbsorption()}
}

func (s *Schedule) Absorption() Absorption { return s.absorption }

func (s *Schedule) Len() int {
	return len(s.byHormone[physiology.T4]) + len(s.byHormone[physiology.T3])
}

// Doses returns a copy of every dose, T4 first.
func (s *Schedule) Doses() []Dose {
	out := make([]Dose, 0, s.Len())
	out = append(out, s.byHormone[physiology.T4]...)
	return append(out, s.byHormone[physiology.T3]...)
}

// Beyond returns the doses that deliver nothing within steps steps of dt. A
// bolus lands on step round(start/dt), so one starting in the last half step
// falls outside the run.
func (s *Schedule) Beyond(steps int, dt float64) []Dose {
	horizon := float64(steps) * dt
	var out []Dose
	for _, d := range s.Doses() {
		switch {
		case d.Kind == IVBolus && math.Round(d.Start/dt) >= float64(steps):
			out = append(out, d)
		case d.Kind != IVBolus && d.Start >= horizon:
			out = append(out, d)
		}
	}
	return out
}

// InputRate returns the instantaneous input rate (µmol/day) into the pool of
// h at time t. A bolus is an impulse and has no finite rate.
func (s *Schedule) InputRate(h physiology.Hormone, t float64) float64 {
	if h != physiology.T4 && h != physiology.T3 {
		return 0
	}

	rate := 0.0
	for _, d := range s.byHormone[h] {
		pool := h.ToPool(d.Amount)
		switch d.Kind {
		case Infusion:
			if t >= d.Start && t < d.End {
				rate += pool / (d.End - d.Start)
			}
		case OralSingle, OralRepeating:
			f := s.absorption.fraction(h)
			d.eachTick(func(tick float64) bool {
				if t < tick {
					return false
				}
				rate += f * pool * OralAbsorptionRate * math.Exp(-OralAbsorptionRate*(t-tick))
				return true
			})
		}
	}
	return rate
}

// StepRate returns the mean input rate (µmol/day) into the pool of h over
// [t, t+dt). Multiplied by dt it is exactly the mass the doses deliver in
// that step.
func (s *Schedule) StepRate(h physiology.Hormone, t, dt float64) float64 {
	if dt <= 0 || (h != physiology.T4 && h != physiology.T3) {
		return 0
	}

	rate := 0.0
	for _, d := range s.byHormone[h] {
		rate += s.delivered(d, t, dt) / dt
	}
	return rate
}

func (s *Schedule) delivered(d Dose, t, dt float64) float64 {
	pool := d.Hormone.ToPool(d.Amount)

	switch d.Kind {
	case IVBolus:
		if math.Round(d.Start/dt) == math.Round(t/dt) {
			return pool
		}
		return 0
	case Infusion:
		lo := math.Max(t, d.Start)
		hi := math.Min(t+dt, d.End)
		if hi <= lo {
			return 0
		}
		return pool / (d.End - d.Start) * (hi - lo)
	case OralSingle, OralRepeating:
		f := s.absorption.fraction(d.Hormone)
		amount := 0.0
		d.eachTick(func(tick float64) bool {
			if t+dt <= tick {
				return false
			}
			a := math.Max(0, t-tick)
			b := t + dt - tick
			amount += f * pool * (math.Exp(-OralAbsorptionRate*a) - math.Exp(-OralAbsorptionRate*b))
			return true
		})
		return amount
	default:
		return 0
	}
}

// Input adapts a Schedule to dynamo.Controller for a fixed step size.
type Input struct {
	schedule *Schedule
	dt       float64
}

func NewInput(s *Schedule, dt float64) *Input {
	return &Input{schedule: s, dt: dt}
}

func (in *Input) Compute(_ dynamo.State, t float64) dynamo.Control {
	if in.schedule == nil || in.schedule.Len() == 0 {
		return dynamo.Control{0, 0, 0}
	}
	return dynamo.Control{
		in.schedule.StepRate(physiology.T4, t, in.dt),
		in.schedule.StepRate(physiology.T3, t, in.dt),
		0,
	}
}
