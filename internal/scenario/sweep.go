package scenario

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/metrics"
	"github.com/san-kum/thyrosim/internal/physiology"
	"github.com/san-kum/thyrosim/internal/run"
)

// Sweepable parameters.
const (
	SecretionT4  = "secretion-t4"
	SecretionT3  = "secretion-t3"
	AbsorptionT4 = "absorption-t4"
	AbsorptionT3 = "absorption-t3"
	Weight       = "weight"
	Height       = "height"
)

// ParameterSweep runs Base once per value of Parameter between Min and Max.
type ParameterSweep struct {
	Parameter string
	Min       float64
	Max       float64
	NumSteps  int
	Base      run.Request
	Workers   int
}

type SweepResult struct {
	ParamValue float64
	FinalState dynamo.State
	Summary    metrics.Summary
}

// Values returns NumSteps evenly spaced values from Min to Max.
func (s *ParameterSweep) Values() []float64 {
	if s.NumSteps == 1 {
		return []float64{s.Min}
	}
	values := make([]float64, s.NumSteps)
	step := (s.Max - s.Min) / float64(s.NumSteps-1)
	for i := range values {
		values[i] = s.Min + float64(i)*step
	}
	return values
}

func (s *ParameterSweep) request(v float64) (run.Request, error) {
	req := s.Base
	switch s.Parameter {
	case SecretionT4:
		req.Secretion.T4 = v
	case SecretionT3:
		req.Secretion.T3 = v
	case AbsorptionT4:
		req.Absorption.T4 = v
	case AbsorptionT3:
		req.Absorption.T3 = v
	case Weight, Height:
		if req.Profile == nil {
			return req, dynamo.InvalidParameter("sweeping %s requires a patient profile", s.Parameter)
		}
		p := *req.Profile
		if s.Parameter == Weight {
			p.Weight = v
		} else {
			p.Height = v
		}
		req.Profile = &p
		req.Scaling = nil
	default:
		return req, dynamo.InvalidParameter("unknown sweep parameter %q", s.Parameter)
	}
	return req, nil
}

// RunSweep executes the sweep concurrently. Results follow Values order.
func RunSweep(ctx context.Context, runner *run.Runner, sweep *ParameterSweep) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, dynamo.InvalidParameter("sweep needs at least one step, got %d", sweep.NumSteps)
	}
	if math.IsNaN(sweep.Min) || math.IsNaN(sweep.Max) || sweep.Max < sweep.Min {
		return nil, dynamo.InvalidParameter("sweep range [%v, %v] is empty", sweep.Min, sweep.Max)
	}

	values := sweep.Values()
	reqs := make([]run.Request, len(values))
	for i, v := range values {
		req, err := sweep.request(v)
		if err != nil {
			return nil, err
		}
		reqs[i] = req
	}

	runs, err := runner.Batch(ctx, reqs, sweep.Workers)
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", sweep.Parameter, err)
	}

	results := make([]SweepResult, len(runs))
	for i, res := range runs {
		results[i] = SweepResult{
			ParamValue: values[i],
			FinalState: res.Final,
			Summary:    res.Summary(),
		}
	}
	return results, nil
}

// PopulationConfig perturbs a base patient to study how anthropometry
// shifts the hormone levels.
type PopulationConfig struct {
	Base      run.Request
	HeightSD  float64
	WeightSD  float64
	NumTrials int
	Seed      int64
	Workers   int
}

type PopulationResult struct {
	TrialID int
	Patient physiology.Profile
	Summary metrics.Summary
	// Euthyroid is set when the final FT4 and TSH both lie in their
	// reference ranges.
	Euthyroid bool
}

// RunPopulation draws NumTrials patients from normal distributions around
// the base profile and runs each. The same Seed yields the same patients.
func RunPopulation(ctx context.Context, runner *run.Runner, cfg *PopulationConfig) ([]PopulationResult, error) {
	if cfg.Base.Profile == nil {
		return nil, dynamo.InvalidParameter("population needs a base patient profile")
	}
	if cfg.NumTrials < 1 {
		return nil, dynamo.InvalidParameter("population needs at least one trial, got %d", cfg.NumTrials)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	reqs := make([]run.Request, cfg.NumTrials)
	patients := make([]physiology.Profile, cfg.NumTrials)
	for i := range reqs {
		p := *cfg.Base.Profile
		p.Height = math.Max(0.5, p.Height+rng.NormFloat64()*cfg.HeightSD)
		p.Weight = math.Max(10, p.Weight+rng.NormFloat64()*cfg.WeightSD)
		patients[i] = p

		req := cfg.Base
		req.Profile = &patients[i]
		req.Scaling = nil
		reqs[i] = req
	}

	runs, err := runner.Batch(ctx, reqs, cfg.Workers)
	if err != nil {
		return nil, err
	}

	results := make([]PopulationResult, len(runs))
	for i, res := range runs {
		results[i] = PopulationResult{
			TrialID:   i,
			Patient:   patients[i],
			Summary:   res.Summary(),
			Euthyroid: euthyroid(res),
		}
	}
	return results, nil
}

func euthyroid(res *run.Result) bool {
	last := res.Len() - 1
	return metrics.ReferenceRanges["ft4"].Contains(res.FT4[last]) &&
		metrics.ReferenceRanges["tsh"].Contains(res.TSH[last])
}

// PopulationStats counts euthyroid and out-of-range trials.
func PopulationStats(results []PopulationResult) (euthyroid, outOfRange int) {
	for _, r := range results {
		if r.Euthyroid {
			euthyroid++
		} else {
			outOfRange++
		}
	}
	return
}
