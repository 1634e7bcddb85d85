package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder counts simulation runs on its own registry. It satisfies
// run.Recorder.
type Recorder struct {
	registry     *prometheus.Registry
	runs         *prometheus.CounterVec
	steps        prometheus.Counter
	equilibrated prometheus.Counter
	duration     prometheus.Histogram
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thyrosim_runs_total",
				Help: "Total number of simulation runs by outcome",
			},
			[]string{"outcome"},
		),
		steps: factory.NewCounter(prometheus.CounterOpts{
			Name: "thyrosim_steps_total",
			Help: "Total number of integration steps recorded",
		}),
		equilibrated: factory.NewCounter(prometheus.CounterOpts{
			Name: "thyrosim_equilibrations_total",
			Help: "Total number of runs that recalculated initial conditions",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "thyrosim_run_duration_seconds",
			Help:    "Wall time of completed runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

func (r *Recorder) RunCompleted(steps int, elapsed time.Duration, equilibrated bool) {
	r.runs.WithLabelValues("completed").Inc()
	r.steps.Add(float64(steps))
	r.duration.Observe(elapsed.Seconds())
	if equilibrated {
		r.equilibrated.Inc()
	}
}

// RunFailed records a failure; reason is invalid, degenerate, canceled or error.
func (r *Recorder) RunFailed(reason string) {
	r.runs.WithLabelValues(reason).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile writes a node_exporter textfile-collector snapshot.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
