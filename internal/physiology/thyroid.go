package physiology

import (
	"math"

	"github.com/san-kum/thyrosim/internal/dynamo"
)

// State indices.
const (
	Q1 = iota // circulating T4 pool
	Q4        // circulating T3 pool
	Q7        // circulating TSH pool
)

// Control indices match the state indices of the pool they feed.
const (
	InputT4 = iota
	InputT3
	InputTSH
)

const (
	tshBasal     = 46.15
	tshAmplitude = 13.85
	tshHillKm    = 3.48e-5
	tshHillM     = 2.0
	tshDegrade   = 16.6

	t4Secretion = 0.0235
	t4Degrade   = 0.099

	t3Secretion  = 0.00242
	t4Conversion = 0.005

	tshUnits = 5.6
)

// Secretion holds thyroidal secretion as a percentage of normal.
type Secretion struct {
	T4 float64 `json:"t4" yaml:"t4"`
	T3 float64 `json:"t3" yaml:"t3"`
}

func NormalSecretion() Secretion {
	return Secretion{T4: 100, T3: 100}
}

func (s Secretion) Validate() error {
	if !finiteNonNegative(s.T4) || !finiteNonNegative(s.T3) {
		return dynamo.InvalidParameter("secretion must be finite and non-negative, got %+v", s)
	}
	return nil
}

// DefaultState is the euthyroid baseline used when a run neither seeds nor
// equilibrates.
func DefaultState() dynamo.State {
	return dynamo.State{0.3295, 0.0059, 1.39}
}

// Circadian returns the TSH secretion rhythm at t days: a 24 h sinusoid with
// its trough at t = 0.
func Circadian(t float64) float64 {
	hours := 24 * t
	return math.Sin(math.Pi*hours/12 - math.Pi/2)
}

// Thyroid is the closed-loop T4/T3/TSH system. The control vector carries
// exogenous input rates (µmol/day) into the T4, T3 and TSH pools.
type Thyroid struct {
	scaling   Scaling
	secretion Secretion
}

func NewThyroid(scaling Scaling, secretion Secretion) *Thyroid {
	return &Thyroid{scaling: scaling, secretion: secretion}
}

func (th *Thyroid) StateDim() int   { return 3 }
func (th *Thyroid) ControlDim() int { return 3 }

func (th *Thyroid) Scaling() Scaling     { return th.scaling }
func (th *Thyroid) Secretion() Secretion { return th.secretion }

func (th *Thyroid) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	q1, q4, q7 := x[Q1], x[Q4], x[Q7]

	var in4, in3, inTSH float64
	if len(u) == 3 {
		in4, in3, inTSH = u[InputT4], u[InputT3], u[InputTSH]
	}

	srTSH := (tshBasal + tshAmplitude*Circadian(t)) * tshHillKm / (tshHillKm + math.Pow(q4, tshHillM))
	dq7 := srTSH - tshDegrade*q7 + inTSH

	sr4 := (th.secretion.T4 / 100) * t4Secretion * q7
	dq1 := sr4 - t4Degrade*q1 + in4

	sr3 := (th.secretion.T3 / 100) * t3Secretion
	dq4 := sr3 + t4Conversion*q1 - th.scaling.PeripheralT3Rate*q4 + in3

	return dynamo.State{dq1, dq4, dq7}
}

// Concentrations are the reported hormone levels for one state.
type Concentrations struct {
	T4  float64 `json:"t4"`
	T3  float64 `json:"t3"`
	TSH float64 `json:"tsh"`
}

func (s Scaling) Concentrations(x dynamo.State) Concentrations {
	return Concentrations{
		T4:  T4MolarMass * x[Q1] / s.PlasmaVolume,
		T3:  T3MolarMass * x[Q4] / s.PlasmaVolume,
		TSH: tshUnits * x[Q7] / s.TSHVolume,
	}
}

// FreeFractions are the unbound fractions of total T4 and T3.
type FreeFractions struct {
	T4 float64 `json:"t4" yaml:"t4"`
	T3 float64 `json:"t3" yaml:"t3"`
}

func DefaultFreeFractions() FreeFractions {
	return FreeFractions{T4: 0.0002, T3: 0.003}
}

func (f FreeFractions) Validate() error {
	if !finitePositive(f.T4) || !finitePositive(f.T3) || f.T4 > 1 || f.T3 > 1 {
		return dynamo.InvalidParameter("free fractions must be in (0, 1], got %+v", f)
	}
	return nil
}

// Free converts total concentrations (µg/L) to free FT4 and FT3 in ng/L.
func (f FreeFractions) Free(c Concentrations) (ft4, ft3 float64) {
	return c.T4 * 1000 * f.T4, c.T3 * 1000 * f.T3
}

// LogTSH is the display transform for TSH. It never feeds the model.
func LogTSH(tsh float64) float64 {
	return math.Log10(tsh)
}

func finiteNonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
