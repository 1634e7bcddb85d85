package run

import (
	"github.com/san-kum/thyrosim/internal/dynamo"
	"github.com/san-kum/thyrosim/internal/metrics"
	"github.com/san-kum/thyrosim/internal/physiology"
)

// Result holds the per-step outputs of a run. Entry i describes the state
// after step i and is labelled with time i*dt. Treat it as read-only.
type Result struct {
	Time []float64 `json:"time"`
	T4   []float64 `json:"t4"`  // total T4, µg/L
	T3   []float64 `json:"t3"`  // total T3, µg/L
	TSH  []float64 `json:"tsh"` // mU/L
	FT4  []float64 `json:"ft4"` // free T4, ng/L
	FT3  []float64 `json:"ft3"` // free T3, ng/L

	States  []dynamo.State `json:"-"`
	Initial dynamo.State   `json:"q0"`
	Final   dynamo.State   `json:"q_final"`

	Scaling      physiology.Scaling `json:"scaling"`
	Days         float64            `json:"days"`
	Dt           float64            `json:"dt"`
	Equilibrated bool               `json:"equilibrated"`
	Seeded       bool               `json:"seeded"`
}

func (r *Result) Len() int { return len(r.Time) }

// Seed returns a copy of the final state, suitable as Request.Seed.
func (r *Result) Seed() dynamo.State { return r.Final.Clone() }

// LogTSH returns log10 of the TSH series.
func (r *Result) LogTSH() []float64 {
	out := make([]float64, len(r.TSH))
	for i, v := range r.TSH {
		out[i] = physiology.LogTSH(v)
	}
	return out
}

// Summary computes peak, trough and mean of each output series.
func (r *Result) Summary() metrics.Summary {
	return metrics.Summarize(r.Time, map[string][]float64{
		"t4":  r.T4,
		"t3":  r.T3,
		"tsh": r.TSH,
		"ft4": r.FT4,
		"ft3": r.FT3,
	})
}

func newResult(traj *dynamo.Trajectory, x0 dynamo.State, scaling physiology.Scaling, ff physiology.FreeFractions) *Result {
	n := len(traj.States)
	res := &Result{
		Time:    make([]float64, n),
		T4:      make([]float64, n),
		T3:      make([]float64, n),
		TSH:     make([]float64, n),
		FT4:     make([]float64, n),
		FT3:     make([]float64, n),
		States:  traj.States,
		Initial: x0.Clone(),
		Final:   traj.Final(),
		Scaling: scaling,
	}
	for i, x := range traj.States {
		c := scaling.Concentrations(x)
		res.Time[i] = traj.Times[i]
		res.T4[i] = c.T4
		res.T3[i] = c.T3
		res.TSH[i] = c.TSH
		res.FT4[i], res.FT3[i] = ff.Free(c)
	}
	return res
}
