package physiology

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/thyrosim/internal/dynamo"
)

type Sex int

const (
	Female Sex = iota
	Male
)

func (s Sex) String() string {
	if s == Male {
		return "male"
	}
	return "female"
}

func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return Male, nil
	case "female", "f":
		return Female, nil
	default:
		return 0, fmt.Errorf("unknown sex: %s", s)
	}
}

func (s Sex) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Sex) UnmarshalText(b []byte) error {
	v, err := ParseSex(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Profile is the anthropometric input of a run.
type Profile struct {
	Height float64 `json:"height_m" yaml:"height"`
	Weight float64 `json:"weight_kg" yaml:"weight"`
	Sex    Sex     `json:"sex" yaml:"sex"`
}

func (p Profile) Validate() error {
	if !finitePositive(p.Height) {
		return dynamo.InvalidParameter("height must be positive, got %v", p.Height)
	}
	if !finitePositive(p.Weight) {
		return dynamo.InvalidParameter("weight must be positive, got %v", p.Weight)
	}
	if p.Sex != Male && p.Sex != Female {
		return dynamo.InvalidParameter("unknown sex %d", int(p.Sex))
	}
	return nil
}

// Scaling holds the patient-specific constants of the model.
type Scaling struct {
	PlasmaVolume     float64 `json:"vp"`
	TSHVolume        float64 `json:"vtsh"`
	PeripheralT3Rate float64 `json:"k05"`
}

func (s Scaling) Validate() error {
	if !finitePositive(s.PlasmaVolume) || !finitePositive(s.TSHVolume) || !finitePositive(s.PeripheralT3Rate) {
		return dynamo.InvalidParameter("scaling constants must be positive, got %+v", s)
	}
	return nil
}

const (
	bloodVolumeA = 0.7
	bloodVolumeN = 0.5

	hematocritMale   = 0.45
	hematocritFemale = 0.40

	// plasma volume of the reference male (1.77 m, 70 kg)
	referencePlasmaVolume = 2.86
	normalPlasmaVolume    = 3.2
	normalTSHVolume       = 5.2

	k05Reference     = 0.69
	k05Exponent      = 0.75
	k05MaleFactor    = 1.07
	referenceWeightM = 70.0
	referenceWeightF = 59.0
)

// IdealWeight returns the ideal body weight (kg) for a height in meters.
func IdealWeight(height float64, sex Sex) float64 {
	if sex == Male {
		return 176.3 - 220.6*height + 93.5*height*height
	}
	return 145.8 - 182.7*height + 79.55*height*height
}

// Scale derives the scaling constants for p.
func Scale(p Profile) (Scaling, error) {
	if err := p.Validate(); err != nil {
		return Scaling{}, err
	}

	ibw := IdealWeight(p.Height, p.Sex)
	if ibw <= 0 {
		return Scaling{}, dynamo.InvalidParameter("ideal body weight not positive for height %v", p.Height)
	}
	deltaIBW := 100 * (p.Weight - ibw) / ibw
	if 100+deltaIBW <= 0 {
		return Scaling{}, dynamo.InvalidParameter("weight %v out of range for height %v", p.Weight, p.Height)
	}

	bloodVolume := bloodVolumeA * math.Pow(100+deltaIBW, bloodVolumeN-1) * p.Weight

	hem := hematocritFemale
	refWeight := referenceWeightF
	sexFactor := 1.0
	if p.Sex == Male {
		hem = hematocritMale
		refWeight = referenceWeightM
		sexFactor = k05MaleFactor
	}

	plasma := bloodVolume * (1 - hem)
	vp := normalPlasmaVolume * plasma / referencePlasmaVolume
	s := Scaling{
		PlasmaVolume:     vp,
		TSHVolume:        normalTSHVolume + (vp - normalPlasmaVolume),
		PeripheralT3Rate: k05Reference * math.Pow(p.Weight/refWeight, k05Exponent) * sexFactor,
	}
	if err := s.Validate(); err != nil {
		return Scaling{}, err
	}
	return s, nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
