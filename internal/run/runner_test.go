package run

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/san-kum/thyrosim/internal/dose"
	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/integrators"
	"github.com/san-kum/thyrosim/internal/physiology"
)

var female = physiology.Profile{Height: 1.70, Weight: 70, Sex: physiology.Female}

type fakeRecorder struct {
	mu        sync.Mutex
	completed int
	failed    []string
}

func (f *fakeRecorder) RunCompleted(int, time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed++
}

func (f *fakeRecorder) RunFailed(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, reason)
}

func maxAbs(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

func excess(a, base []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - base[i]
	}
	return out
}

var _ = Describe("Runner", func() {
	var (
		ctx    context.Context
		runner *Runner
		phases []Phase
	)

	BeforeEach(func() {
		ctx = context.Background()
		phases = nil
		runner = NewRunner(WithPhaseHook(func(p Phase) { phases = append(phases, p) }))
	})

	Describe("an undosed run", func() {
		var res *Result

		BeforeEach(func() {
			var err error
			res, err = runner.Run(ctx, NewRequest(female, 5))
			Expect(err).NotTo(HaveOccurred())
		})

		It("records one entry per step", func() {
			Expect(res.Len()).To(Equal(500))
			Expect(res.T3).To(HaveLen(500))
			Expect(res.TSH).To(HaveLen(500))
			Expect(res.FT4).To(HaveLen(500))
			Expect(res.States).To(HaveLen(500))
		})

		It("labels entry i with i*dt", func() {
			Expect(res.Time[0]).To(Equal(0.0))
			Expect(res.Time[250]).To(BeNumerically("~", 2.5, 1e-12))
			Expect(res.Time[499]).To(BeNumerically("~", 4.99, 1e-12))
		})

		It("reproduces the reference trajectory", func() {
			Expect(res.T4[0]).To(BeNumerically("~", 80.69982418143044, 1e-9))
			Expect(res.T3[0]).To(BeNumerically("~", 1.209527784913842, 1e-11))
			Expect(res.TSH[0]).To(BeNumerically("~", 1.429888212189768, 1e-11))
			Expect(res.T4[499]).To(BeNumerically("~", 83.8642252270595, 1e-8))
			Expect(res.T3[499]).To(BeNumerically("~", 1.0787706230949656, 1e-10))
			Expect(res.TSH[499]).To(BeNumerically("~", 1.2333208911615143, 1e-10))
		})

		It("derives free hormone from totals", func() {
			ff := physiology.DefaultFreeFractions()
			for i := range res.T4 {
				Expect(res.FT4[i]).To(BeNumerically("~", res.T4[i]*1000*ff.T4, 1e-12))
				Expect(res.FT3[i]).To(BeNumerically("~", res.T3[i]*1000*ff.T3, 1e-12))
			}
		})

		It("keeps every state non-negative and finite", func() {
			for _, x := range res.States {
				Expect(x.IsValid()).To(BeTrue())
				Expect(x.NonNegative()).To(BeTrue())
			}
		})

		It("starts from the default state", func() {
			Expect(res.Initial).To(Equal(physiology.DefaultState()))
			Expect(res.Equilibrated).To(BeFalse())
			Expect(res.Seeded).To(BeFalse())
			Expect(res.Final).To(Equal(res.States[499]))
			Expect(phases).To(Equal([]Phase{Configured, Stepping, Completed}))
		})

		It("reports log TSH", func() {
			logTSH := res.LogTSH()
			Expect(logTSH).To(HaveLen(500))
			Expect(logTSH[0]).To(BeNumerically("~", math.Log10(res.TSH[0]), 1e-15))
		})

		It("is deterministic", func() {
			again, err := runner.Run(ctx, NewRequest(female, 5))
			Expect(err).NotTo(HaveOccurred())
			Expect(again.T4).To(Equal(res.T4))
			Expect(again.TSH).To(Equal(res.TSH))
		})
	})

	Describe("doses", func() {
		It("adds a bolus on the step it is scheduled for", func() {
			base, err := runner.Run(ctx, NewRequest(female, 5))
			Expect(err).NotTo(HaveOccurred())
			dosed, err := runner.Run(ctx, NewRequest(female, 5, dose.NewBolus(physiology.T4, 50, 1)))
			Expect(err).NotTo(HaveOccurred())

			Expect(dosed.T4[:100]).To(Equal(base.T4[:100]))
			Expect(dosed.TSH[:100]).To(Equal(base.TSH[:100]))
			Expect(base.T4[100]).To(BeNumerically("~", 81.09562472923155, 1e-8))
			Expect(dosed.T4[100]).To(BeNumerically("~", 96.85596423078798, 1e-8))
		})

		It("approximately superposes small infusions", func() {
			first := dose.NewInfusion(physiology.T4, 20, 1, 2)
			second := dose.NewInfusion(physiology.T4, 20, 3, 4)

			base, err := runner.Run(ctx, NewRequest(female, 6))
			Expect(err).NotTo(HaveOccurred())
			a, err := runner.Run(ctx, NewRequest(female, 6, first))
			Expect(err).NotTo(HaveOccurred())
			b, err := runner.Run(ctx, NewRequest(female, 6, second))
			Expect(err).NotTo(HaveOccurred())
			ab, err := runner.Run(ctx, NewRequest(female, 6, first, second))
			Expect(err).NotTo(HaveOccurred())

			for _, series := range []struct {
				name           string
				base, a, b, ab []float64
			}{
				{"t4", base.T4, a.T4, b.T4, ab.T4},
				{"tsh", base.TSH, a.TSH, b.TSH, ab.TSH},
			} {
				combined := excess(series.ab, series.base)
				exA := excess(series.a, series.base)
				exB := excess(series.b, series.base)
				tol := 0.02 * maxAbs(combined)
				for i := range combined {
					Expect(combined[i]).To(BeNumerically("~", exA[i]+exB[i], tol), "%s at %d", series.name, i)
				}
			}
		})

		It("warns about doses beyond the horizon but still runs", func() {
			res, err := runner.Run(ctx, NewRequest(female, 2, dose.NewOral(physiology.T4, 100, 10)))
			Expect(err).NotTo(HaveOccurred())
			base, err := runner.Run(ctx, NewRequest(female, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.T4).To(Equal(base.T4))
		})

		It("warns about a bolus that rounds onto the step after the last", func() {
			var buf bytes.Buffer
			r := NewRunner(WithLogger(zerolog.New(&buf).Level(zerolog.WarnLevel)))

			res, err := r.Run(ctx, NewRequest(female, 5, dose.NewBolus(physiology.T4, 50, 4.996)))
			Expect(err).NotTo(HaveOccurred())
			base, err := runner.Run(ctx, NewRequest(female, 5))
			Expect(err).NotTo(HaveOccurred())

			Expect(res.T4).To(Equal(base.T4))
			Expect(buf.String()).To(ContainSubstring("dose lands after the simulated horizon"))
		})

		It("delivers a bolus that rounds onto the last step without warning", func() {
			var buf bytes.Buffer
			r := NewRunner(WithLogger(zerolog.New(&buf).Level(zerolog.WarnLevel)))

			res, err := r.Run(ctx, NewRequest(female, 5, dose.NewBolus(physiology.T4, 50, 4.994)))
			Expect(err).NotTo(HaveOccurred())
			base, err := runner.Run(ctx, NewRequest(female, 5))
			Expect(err).NotTo(HaveOccurred())

			Expect(res.T4[499]).To(BeNumerically(">", base.T4[499]+10))
			Expect(buf.String()).NotTo(ContainSubstring("horizon"))
		})

		It("rejects a repeating dose with too many administrations", func() {
			res, err := runner.Run(ctx, NewRequest(female, 5, dose.NewOralRepeating(physiology.T4, 100, 0, 100, 1e-12)))
			Expect(errors.Is(err, dynamo.ErrInvalidParameter)).To(BeTrue())
			Expect(res).To(BeNil())
		})
	})

	Describe("initial conditions", func() {
		It("equilibrates when asked", func() {
			req := NewRequest(female, 1)
			req.RecalculateInitialConditions = true

			res, err := runner.Run(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Equilibrated).To(BeTrue())
			Expect(res.Initial[physiology.Q1]).To(BeNumerically("~", 0.2758808760045038, 1e-12))
			Expect(res.Initial[physiology.Q4]).To(BeNumerically("~", 0.004843752184372137, 1e-14))
			Expect(res.Initial[physiology.Q7]).To(BeNumerically("~", 1.1622211431927139, 1e-12))
			Expect(phases).To(Equal([]Phase{Configured, Equilibrating, Stepping, Completed}))

			again, err := runner.Run(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Initial).To(Equal(res.Initial))
		})

		It("prefers the seed over equilibration", func() {
			seed := dynamo.State{0.3, 0.005, 1.2}
			req := NewRequest(female, 1)
			req.RecalculateInitialConditions = true
			req.Seed = seed

			res, err := runner.Run(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Seeded).To(BeTrue())
			Expect(res.Equilibrated).To(BeFalse())
			Expect(res.Initial).To(Equal(seed))
			Expect(phases).NotTo(ContainElement(Equilibrating))
		})

		It("continues a previous run from its final state", func() {
			first, err := runner.Run(ctx, NewRequest(female, 5))
			Expect(err).NotTo(HaveOccurred())

			req := NewRequest(female, 1)
			req.Seed = first.Seed()
			next, err := runner.Run(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			scaling, err := physiology.Scale(female)
			Expect(err).NotTo(HaveOccurred())
			thyroid := physiology.NewThyroid(scaling, physiology.NormalSecretion())
			want := integrators.NewClampedEuler().Step(thyroid, first.Final, dynamo.Control{0, 0, 0}, 0, StepSize)
			Expect(next.States[0]).To(Equal(want))
			Expect(next.T4[0]).To(Equal(scaling.Concentrations(want).T4))
		})

		It("does not share the seed with the caller", func() {
			seed := dynamo.State{0.3, 0.005, 1.2}
			req := NewRequest(female, 1)
			req.Seed = seed
			res, err := runner.Run(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			res.Initial[0] = 99
			Expect(seed[0]).To(Equal(0.3))
		})
	})

	Describe("scaling", func() {
		It("accepts explicit scaling constants", func() {
			scaling, err := physiology.Scale(female)
			Expect(err).NotTo(HaveOccurred())
			req := NewRequest(female, 1)
			req.Profile = nil
			req.Scaling = &scaling

			res, err := runner.Run(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Scaling).To(Equal(scaling))
			Expect(res.T4[0]).To(BeNumerically("~", 80.69982418143044, 1e-9))
		})

		It("lowers T4 when secretion drops", func() {
			req := NewRequest(female, 5)
			req.Secretion = physiology.Secretion{T4: 10, T3: 10}
			low, err := runner.Run(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(low.T4[499]).To(BeNumerically("<", 83.8642252270595))
			Expect(low.TSH[499]).To(BeNumerically(">", 1.2333208911615143))
		})
	})

	Describe("invalid requests", func() {
		DescribeTable("fail before stepping",
			func(mutate func(*Request)) {
				req := NewRequest(female, 5)
				mutate(&req)
				res, err := runner.Run(ctx, req)
				Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
				Expect(res).To(BeNil())
				Expect(phases).NotTo(ContainElement(Stepping))
			},
			Entry("zero days", func(r *Request) { r.Days = 0 }),
			Entry("negative days", func(r *Request) { r.Days = -1 }),
			Entry("NaN days", func(r *Request) { r.Days = math.NaN() }),
			Entry("infinite days", func(r *Request) { r.Days = math.Inf(1) }),
			Entry("shorter than one step", func(r *Request) { r.Days = 0.001 }),
			Entry("no patient", func(r *Request) { r.Profile = nil }),
			Entry("zero height", func(r *Request) { r.Profile = &physiology.Profile{Height: 0, Weight: 70} }),
			Entry("negative secretion", func(r *Request) { r.Secretion.T4 = -1 }),
			Entry("NaN absorption", func(r *Request) { r.Absorption.T3 = math.NaN() }),
			Entry("reversed infusion", func(r *Request) {
				r.Doses = []dose.Dose{{Kind: dose.Infusion, Hormone: physiology.T4, Amount: 10, Start: 2, End: 1}}
			}),
			Entry("short seed", func(r *Request) { r.Seed = dynamo.State{1, 2} }),
			Entry("negative seed", func(r *Request) { r.Seed = dynamo.State{1, -2, 1} }),
			Entry("bad free fraction", func(r *Request) { r.FreeFractions = &physiology.FreeFractions{T4: 0, T3: 0.003} }),
		)

		DescribeTable("name the failed field rule",
			func(days float64, rule string) {
				err := NewRequest(female, days).Validate()
				Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
				Expect(err.Error()).To(ContainSubstring("Request.Days failed " + rule))
			},
			Entry("zero days", 0.0, "gt=0"),
			Entry("NaN days", math.NaN(), "finite="),
			Entry("infinite days", math.Inf(1), "finite="),
		)
	})

	Describe("cancellation", func() {
		It("returns the context error and no result", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			res, err := runner.Run(cctx, NewRequest(female, 5))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(res).To(BeNil())
		})
	})

	Describe("recording", func() {
		It("reports completions and failures", func() {
			rec := &fakeRecorder{}
			r := NewRunner(WithRecorder(rec))

			_, err := r.Run(ctx, NewRequest(female, 1))
			Expect(err).NotTo(HaveOccurred())
			_, err = r.Run(ctx, NewRequest(female, 0))
			Expect(err).To(HaveOccurred())

			Expect(rec.completed).To(Equal(1))
			Expect(rec.failed).To(Equal([]string{"invalid"}))
		})
	})

	Describe("logging", func() {
		It("traces the pools once per day at debug level", func() {
			var buf bytes.Buffer
			r := NewRunner(WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

			_, err := r.Run(ctx, NewRequest(female, 3))
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Count(buf.String(), `"message":"step"`)).To(Equal(3))
			Expect(buf.String()).To(ContainSubstring(`"message":"run completed"`))
		})

		It("stays quiet above debug level", func() {
			var buf bytes.Buffer
			r := NewRunner(WithLogger(zerolog.New(&buf).Level(zerolog.InfoLevel)))

			_, err := r.Run(ctx, NewRequest(female, 3))
			Expect(err).NotTo(HaveOccurred())
			Expect(buf.String()).NotTo(ContainSubstring(`"message":"step"`))
		})
	})

	Describe("Batch", func() {
		It("returns results in request order", func() {
			reqs := []Request{
				NewRequest(female, 1),
				NewRequest(physiology.Profile{Height: 1.77, Weight: 70, Sex: physiology.Male}, 2),
				NewRequest(female, 3),
			}
			results, err := NewRunner().Batch(ctx, reqs, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].Len()).To(Equal(100))
			Expect(results[1].Len()).To(Equal(200))
			Expect(results[2].Len()).To(Equal(300))
		})

		It("fails as a whole when one request is invalid", func() {
			reqs := []Request{NewRequest(female, 1), NewRequest(female, -1)}
			results, err := NewRunner().Batch(ctx, reqs, 0)
			Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
			Expect(results).To(BeNil())
		})
	})
})
