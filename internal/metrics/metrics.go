package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the proctoring pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsLogged       *prometheus.CounterVec
	InputsIntercepted  *prometheus.CounterVec
	MalpracticeFlagged *prometheus.CounterVec
	FramesDropped      prometheus.Counter
	FlushFailures      prometheus.Counter
	FlushDuration      prometheus.Histogram
	Submissions        *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

// New registers all metrics on reg. Pass prometheus.DefaultRegisterer in production
// and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsLogged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_activity_events_total",
			Help: "Activity events appended to session buffers, by action",
		}, []string{"action"}),
		InputsIntercepted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_inputs_intercepted_total",
			Help: "Browser inputs evaluated by the interceptor, by outcome",
		}, []string{"outcome"}),
		MalpracticeFlagged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_malpractice_flags_total",
			Help: "Malpractice triggers that passed the cooldown, by reason",
		}, []string{"reason"}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "proctor_frames_dropped_total",
			Help: "Face-landmark frames dropped because the pipeline was busy",
		}),
		FlushFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "proctor_activity_flush_failures_total",
			Help: "Activity log flushes that failed to persist",
		}),
		FlushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "proctor_activity_flush_duration_seconds",
			Help:    "Duration of activity log flushes",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_submissions_total",
			Help: "Exam submissions, by result",
		}, []string{"result"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "proctor_active_sessions",
			Help: "Open proctoring streams",
		}),
	}
}

// ObserveEvent records an appended activity event.
func (m *Metrics) ObserveEvent(action string) {
	if m == nil {
		return
	}
	m.EventsLogged.WithLabelValues(action).Inc()
}

// ObserveIntercept records an interceptor outcome ("blocked" or "logged").
func (m *Metrics) ObserveIntercept(outcome string) {
	if m == nil {
		return
	}
	m.InputsIntercepted.WithLabelValues(outcome).Inc()
}

// ObserveFlag records a malpractice trigger.
func (m *Metrics) ObserveFlag(reason string) {
	if m == nil {
		return
	}
	m.MalpracticeFlagged.WithLabelValues(reason).Inc()
}

// ObserveFrameDropped records a frame skipped under load.
func (m *Metrics) ObserveFrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

// ObserveFlush records a flush attempt.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveFlush(start time.Time, err error) {
	if m == nil {
		return
	}
	m.FlushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.FlushFailures.Inc()
	}
}

// ObserveSubmission records a submission result ("success" or "error").
func (m *Metrics) ObserveSubmission(result string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(result).Inc()
}

// SessionOpened and SessionClosed track open proctoring streams.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}
