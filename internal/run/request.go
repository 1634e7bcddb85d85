package run

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/san-kum/thyrosim/internal/dose"
	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/physiology"
)

// Request describes one run. Exactly one of Profile or Scaling must be set;
// Scaling wins when both are.
type Request struct {
	Profile    *physiology.Profile
	Scaling    *physiology.Scaling
	Secretion  physiology.Secretion
	Absorption dose.Absorption
	Days       float64 `validate:"finite,gt=0"`
	Doses      []dose.Dose

	// RecalculateInitialConditions equilibrates the patient's model before
	// stepping. Ignored when Seed is set.
	RecalculateInitialConditions bool

	// Seed is a raw (q1, q4, q7) state, usually the Final state of an
	// earlier run.
	Seed dynamo.State

	// FreeFractions defaults to physiology.DefaultFreeFractions.
	FreeFractions *physiology.FreeFractions
}

// NewRequest returns a request for p with normal secretion and absorption.
func NewRequest(p physiology.Profile, days float64, doses ...dose.Dose) Request {
	return Request{
		Profile:    &p,
		Secretion:  physiology.NormalSecretion(),
		Absorption: dose.DefaultAbsorption(),
		Days:       days,
		Doses:      doses,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.Float64 && f.Kind() != reflect.Float32 {
			return true
		}
		x := f.Float()
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	})
	return v
}

// Validate checks every precondition of a run. All failures wrap
// dynamo.ErrInvalidParameter.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", e.Namespace(), e.Tag(), e.Param(), e.Value()))
			}
			return dynamo.InvalidParameter("request: %s", strings.Join(msgs, "; "))
		}
		return dynamo.InvalidParameter("request: %v", err)
	}
	if r.Scaling == nil && r.Profile == nil {
		return dynamo.InvalidParameter("either a patient profile or scaling constants are required")
	}
	if r.Scaling != nil {
		if err := r.Scaling.Validate(); err != nil {
			return err
		}
	} else if err := r.Profile.Validate(); err != nil {
		return err
	}
	if err := r.Secretion.Validate(); err != nil {
		return err
	}
	if err := r.Absorption.Validate(); err != nil {
		return err
	}
	for i, d := range r.Doses {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("dose %d: %w", i, err)
		}
	}
	if r.FreeFractions != nil {
		if err := r.FreeFractions.Validate(); err != nil {
			return err
		}
	}
	if r.Seed != nil {
		if len(r.Seed) != 3 {
			return dynamo.InvalidParameter("seed must have 3 components, got %d", len(r.Seed))
		}
		if !r.Seed.IsValid() || !r.Seed.NonNegative() {
			return dynamo.InvalidParameter("seed must be finite and non-negative, got %v", r.Seed)
		}
	}
	return nil
}

func (r Request) scaling() (physiology.Scaling, error) {
	if r.Scaling != nil {
		return *r.Scaling, nil
	}
	return physiology.Scale(*r.Profile)
}

func (r Request) freeFractions() physiology.FreeFractions {
	if r.FreeFractions != nil {
		return *r.FreeFractions
	}
	return physiology.DefaultFreeFractions()
}
