package record

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/offlinefirst/eyetrace/pkg/tracker"
)

// Metrics counts recorder activity per stream. A nil *Metrics is a no-op.
type Metrics struct {
	EventsRecorded   *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	SinkWriteErrors  *prometheus.CounterVec
	ScreenshotsSaved prometheus.Counter
}

// NewMetrics registers the recorder collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eyetrace_events_recorded_total",
			Help: "Total number of engine callbacks written to a recording",
		}, []string{"kind"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eyetrace_events_dropped_total",
			Help: "Total number of engine callbacks delivered after their sink was closed",
		}, []string{"kind"}),
		SinkWriteErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eyetrace_sink_write_errors_total",
			Help: "Total number of failed writes to a recording sink",
		}, []string{"kind"}),
		ScreenshotsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "eyetrace_screenshots_saved_total",
			Help: "Total number of annotated screen captures written to disk",
		}),
	}
}

// IncrementRecorded counts one row written for kind.
func (m *Metrics) IncrementRecorded(kind tracker.Kind) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(string(kind)).Inc()
}

// IncrementDropped counts one event discarded for kind.
func (m *Metrics) IncrementDropped(kind tracker.Kind) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(string(kind)).Inc()
}

// IncrementWriteErrors counts one failed sink write for kind.
func (m *Metrics) IncrementWriteErrors(kind tracker.Kind) {
	if m == nil {
		return
	}
	m.SinkWriteErrors.WithLabelValues(string(kind)).Inc()
}

// IncrementScreenshots counts one saved capture.
func (m *Metrics) IncrementScreenshots() {
	if m == nil {
		return
	}
	m.ScreenshotsSaved.Inc()
}
