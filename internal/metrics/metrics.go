package metrics

import "sort"

// Metric accumulates a scalar over a sampled series.
type Metric interface {
	Name() string
	Observe(v, t float64)
	Value() float64
	Reset()
}

type Peak struct {
	value float64
	at    float64
	seen  bool
}

func NewPeak() *Peak { return &Peak{} }

func (p *Peak) Name() string { return "peak" }

func (p *Peak) Observe(v, t float64) {
	if !p.seen || v > p.value {
		p.value, p.at, p.seen = v, t, true
	}
}

func (p *Peak) Value() float64 { return p.value }

// At returns the time of the first maximum.
func (p *Peak) At() float64 { return p.at }

func (p *Peak) Reset() { *p = Peak{} }

type Trough struct {
	value float64
	at    float64
	seen  bool
}

func NewTrough() *Trough { return &Trough{} }

func (p *Trough) Name() string { return "trough" }

func (p *Trough) Observe(v, t float64) {
	if !p.seen || v < p.value {
		p.value, p.at, p.seen = v, t, true
	}
}

func (p *Trough) Value() float64 { return p.value }

func (p *Trough) At() float64 { return p.at }

func (p *Trough) Reset() { *p = Trough{} }

type Mean struct {
	sum     float64
	samples int
}

func NewMean() *Mean { return &Mean{} }

func (m *Mean) Name() string { return "mean" }

func (m *Mean) Observe(v, _ float64) {
	m.sum += v
	m.samples++
}

func (m *Mean) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *Mean) Reset() { *m = Mean{} }

// InRange is the fraction of samples within [Low, High].
type InRange struct {
	Low, High float64
	inside    int
	samples   int
}

func NewInRange(low, high float64) *InRange {
	return &InRange{Low: low, High: high}
}

func (r *InRange) Name() string { return "in_range" }

func (r *InRange) Observe(v, _ float64) {
	if v >= r.Low && v <= r.High {
		r.inside++
	}
	r.samples++
}

func (r *InRange) Value() float64 {
	if r.samples == 0 {
		return 0
	}
	return float64(r.inside) / float64(r.samples)
}

func (r *InRange) Reset() {
	r.inside = 0
	r.samples = 0
}

// Range is a reference interval for one reported series.
type Range struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

func (r Range) Contains(v float64) bool { return v >= r.Low && v <= r.High }

// ReferenceRanges are adult euthyroid intervals in the units of run.Result.
var ReferenceRanges = map[string]Range{
	"t4":  {Low: 45, High: 120},
	"t3":  {Low: 0.6, High: 1.8},
	"tsh": {Low: 0.4, High: 4.0},
	"ft4": {Low: 9, High: 19},
	"ft3": {Low: 2.3, High: 4.2},
}

// Stats summarizes one series.
type Stats struct {
	Peak       float64 `json:"peak"`
	PeakTime   float64 `json:"peak_time"`
	Trough     float64 `json:"trough"`
	TroughTime float64 `json:"trough_time"`
	Mean       float64 `json:"mean"`
	Final      float64 `json:"final"`

	// InRange is the fraction of samples inside the reference range. It is
	// only meaningful when Referenced is set.
	InRange    float64 `json:"in_range"`
	Referenced bool    `json:"referenced"`
}

type Summary map[string]Stats

// Names returns the summarized series in sorted order.
func (s Summary) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summarize computes Stats for each named series sampled at times.
func Summarize(times []float64, series map[string][]float64) Summary {
	out := make(Summary, len(series))
	for name, values := range series {
		out[name] = Compute(name, times, values)
	}
	return out
}

// Compute returns Stats for a single series.
func Compute(name string, times, values []float64) Stats {
	peak, trough, mean := NewPeak(), NewTrough(), NewMean()
	var inRange *InRange
	if r, ok := ReferenceRanges[name]; ok {
		inRange = NewInRange(r.Low, r.High)
	}

	observers := []Metric{peak, trough, mean}
	if inRange != nil {
		observers = append(observers, inRange)
	}
	for i, v := range values {
		t := 0.0
		if i < len(times) {
			t = times[i]
		}
		for _, m := range observers {
			m.Observe(v, t)
		}
	}

	st := Stats{
		Peak:       peak.Value(),
		PeakTime:   peak.At(),
		Trough:     trough.Value(),
		TroughTime: trough.At(),
		Mean:       mean.Value(),
	}
	if len(values) > 0 {
		st.Final = values[len(values)-1]
	}
	if inRange != nil {
		st.InRange = inRange.Value()
		st.Referenced = true
	}
	return st
}
