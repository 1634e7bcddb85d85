package run

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/thyrosim/internal/dose"
	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/integrators"
	"github.com/san-kum/thyrosim/internal/physiology"
	"github.com/san-kum/thyrosim/internal/sim"
)

const (
	// StepSize is the integration step in days.
	StepSize = 0.01

	// EquilibrationSteps is the number of frozen-clock steps taken when
	// initial conditions are recalculated.
	EquilibrationSteps = 10000
)

type Phase int

const (
	Configured Phase = iota
	Equilibrating
	Stepping
	Completed
)

func (p Phase) String() string {
	switch p {
	case Configured:
		return "configured"
	case Equilibrating:
		return "equilibrating"
	case Stepping:
		return "stepping"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Recorder receives run outcomes. Implementations must be safe for
// concurrent use when the Runner is shared.
type Recorder interface {
	RunCompleted(steps int, elapsed time.Duration, equilibrated bool)
	RunFailed(reason string)
}

type Runner struct {
	logger   zerolog.Logger
	recorder Recorder
	onPhase  func(Phase)
	dt       float64
	eqSteps  int
}

type Option func(*Runner)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithPhaseHook registers fn to be called on every phase transition.
func WithPhaseHook(fn func(Phase)) Option {
	return func(r *Runner) { r.onPhase = fn }
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:  zerolog.Nop(),
		dt:      StepSize,
		eqSteps: EquilibrationSteps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes req. On error no partial result is returned.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	res, err := r.run(ctx, req)
	if err != nil {
		r.fail(err)
		return nil, err
	}
	if r.recorder != nil {
		r.recorder.RunCompleted(res.Len(), time.Since(started), res.Equilibrated)
	}
	r.logger.Info().
		Int("steps", res.Len()).
		Float64("days", res.Days).
		Bool("equilibrated", res.Equilibrated).
		Bool("seeded", res.Seeded).
		Dur("elapsed", time.Since(started)).
		Msg("run completed")
	return res, nil
}

func (r *Runner) run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cfg := dynamo.Config{Dt: r.dt, Duration: req.Days, ValidateState: true}
	if cfg.Steps() == 0 {
		return nil, dynamo.InvalidParameter("%v days is shorter than one step of %v", req.Days, r.dt)
	}
	scaling, err := req.scaling()
	if err != nil {
		return nil, err
	}
	schedule, err := dose.NewSchedule(req.Absorption, req.Doses...)
	if err != nil {
		return nil, err
	}
	for _, d := range schedule.Beyond(cfg.Steps(), r.dt) {
		r.logger.Warn().Str("dose", d.String()).Float64("days", req.Days).Msg("dose lands after the simulated horizon")
	}

	thyroid := physiology.NewThyroid(scaling, req.Secretion)
	simulator := sim.New(thyroid, integrators.NewClampedEuler(), dose.NewInput(schedule, r.dt))
	r.phase(Configured)
	r.logger.Debug().
		Float64("vp", scaling.PlasmaVolume).
		Float64("vtsh", scaling.TSHVolume).
		Float64("k05", scaling.PeripheralT3Rate).
		Int("doses", schedule.Len()).
		Msg("run configured")

	var (
		x0           dynamo.State
		seeded       bool
		equilibrated bool
	)
	switch {
	case req.Seed != nil:
		x0 = req.Seed.Clone()
		seeded = true
		if req.RecalculateInitialConditions {
			r.logger.Debug().Msg("seed given, skipping equilibration")
		}
	case req.RecalculateInitialConditions:
		r.phase(Equilibrating)
		x0, err = simulator.Equilibrate(ctx, physiology.DefaultState(), r.dt, r.eqSteps)
		if err != nil {
			return nil, err
		}
		equilibrated = true
		r.logger.Debug().Floats64("q0", x0).Msg("equilibrated")
	default:
		x0 = physiology.DefaultState()
	}

	if r.logger.GetLevel() <= zerolog.DebugLevel {
		simulator.AddObserver(&dailyTrace{log: r.logger, every: int(math.Round(1 / r.dt))})
	}

	r.phase(Stepping)
	traj, err := simulator.Run(ctx, x0, cfg)
	if err != nil {
		return nil, err
	}

	res := newResult(traj, x0, scaling, req.freeFractions())
	res.Days = req.Days
	res.Dt = r.dt
	res.Seeded = seeded
	res.Equilibrated = equilibrated
	r.phase(Completed)
	return res, nil
}

func (r *Runner) phase(p Phase) {
	if r.onPhase != nil {
		r.onPhase(p)
	}
}

func (r *Runner) fail(err error) {
	reason := "error"
	switch {
	case errors.Is(err, dynamo.ErrInvalidParameter), errors.Is(err, dynamo.ErrDimensionMismatch):
		reason = "invalid"
	case errors.Is(err, dynamo.ErrNumericDegeneracy):
		reason = "degenerate"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "canceled"
	}
	if r.recorder != nil {
		r.recorder.RunFailed(reason)
	}
	ev := r.logger.Error()
	if reason == "invalid" || reason == "canceled" {
		ev = r.logger.Warn()
	}
	ev.Err(err).Str("reason", reason).Msg("run failed")
}

// dailyTrace logs the pools once per simulated day.
type dailyTrace struct {
	log   zerolog.Logger
	every int
	n     int
}

func (d *dailyTrace) OnStep(x dynamo.State, _ dynamo.Control, t float64) {
	d.n++
	if d.every <= 0 || d.n%d.every != 0 {
		return
	}
	d.log.Debug().Float64("day", t).Floats64("q", x).Msg("step")
}
