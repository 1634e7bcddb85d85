package scenario

import (
	"context"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/thyrosim/internal/config"
	"github.com/san-kum/thyrosim/internal/dose"
	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/physiology"
	"github.com/san-kum/thyrosim/internal/run"
)

// Scenario is a sequence of runs for one patient. A step with Continue set
// starts from the final state of the step before it.
type Scenario struct {
	Name                         string                  `yaml:"name" validate:"required"`
	Description                  string                  `yaml:"description"`
	Patient                      config.PatientConfig    `yaml:"patient"`
	Secretion                    config.SecretionConfig  `yaml:"secretion"`
	Absorption                   config.AbsorptionConfig `yaml:"absorption"`
	RecalculateInitialConditions bool                    `yaml:"recalculate_initial_conditions"`
	Steps                        []Step                  `yaml:"steps" validate:"required,min=1,dive"`
}

// Step is one run of a scenario. Secretion and Absorption override the
// scenario values when set.
type Step struct {
	Name       string                   `yaml:"name"`
	Days       float64                  `yaml:"days" validate:"gt=0"`
	Continue   bool                     `yaml:"continue"`
	Secretion  *config.SecretionConfig  `yaml:"secretion,omitempty"`
	Absorption *config.AbsorptionConfig `yaml:"absorption,omitempty"`
	Doses      []dose.Dose              `yaml:"doses"`
}

var validate = validator.New()

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := defaults.Set(&sc); err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) Validate() error {
	if err := validate.Struct(sc); err != nil {
		return dynamo.InvalidParameter("scenario %q: %v", sc.Name, err)
	}
	if sc.Steps[0].Continue {
		return dynamo.InvalidParameter("scenario %q: first step cannot continue", sc.Name)
	}
	for i, step := range sc.Steps {
		for j, d := range step.Doses {
			if err := d.Validate(); err != nil {
				return fmt.Errorf("scenario %q step %d dose %d: %w", sc.Name, i+1, j+1, err)
			}
		}
	}
	return nil
}

// StepResult pairs a step with its run.
type StepResult struct {
	Name    string
	Request run.Request
	Result  *run.Result
	// Offset is the scenario time, in days, at which the step starts.
	Offset float64
}

// Request builds the run request of step i without a seed.
func (sc *Scenario) Request(i int) run.Request {
	step := sc.Steps[i]
	secretion := sc.Secretion
	if step.Secretion != nil {
		secretion = *step.Secretion
	}
	absorption := sc.Absorption
	if step.Absorption != nil {
		absorption = *step.Absorption
	}

	profile := physiology.Profile{Height: sc.Patient.Height, Weight: sc.Patient.Weight, Sex: sc.Patient.Sex}
	req := run.NewRequest(profile, step.Days, step.Doses...)
	req.Secretion = physiology.Secretion{T4: secretion.T4, T3: secretion.T3}
	req.Absorption = dose.Absorption{T4: absorption.T4, T3: absorption.T3}
	req.RecalculateInitialConditions = sc.RecalculateInitialConditions
	return req
}

// RunScenario executes the steps in order. On failure the results of the
// completed steps are returned with the error.
func RunScenario(ctx context.Context, runner *run.Runner, sc *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(sc.Steps))

	var (
		prev   *run.Result
		offset float64
	)
	for i, step := range sc.Steps {
		req := sc.Request(i)
		if step.Continue {
			req.Seed = prev.Seed()
			offset += prev.Days
		} else {
			offset = 0
		}

		res, err := runner.Run(ctx, req)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err)
		}

		name := step.Name
		if name == "" {
			name = fmt.Sprintf("run %d", i+1)
		}
		results = append(results, StepResult{Name: name, Request: req, Result: res, Offset: offset})
		prev = res
	}
	return results, nil
}
