package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all speechwire metrics.
const meterName = "github.com/varenko/speechwire"

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// speech service round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// Metrics is a [Sink] backed by OpenTelemetry metric instruments. All fields
// are safe for concurrent use.
type Metrics struct {
	// PhraseLatency tracks time from first audio byte to final phrase.
	PhraseLatency metric.Float64Histogram

	// AudioDuration tracks the audio length of recognized segments.
	AudioDuration metric.Float64Histogram

	// SessionDuration tracks total session length.
	SessionDuration metric.Float64Histogram

	// Phrases counts recognition outcomes. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	Phrases metric.Int64Counter

	// Sessions counts completed sessions. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("outcome", ...)
	Sessions metric.Int64Counter

	// AudioBytes counts audio payload bytes sent upstream.
	AudioBytes metric.Int64Counter

	// Reconnects counts connection re-establishments.
	Reconnects metric.Int64Counter
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PhraseLatency, err = m.Float64Histogram("speechwire.phrase.latency",
		metric.WithDescription("Time from first audio byte to final phrase."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AudioDuration, err = m.Float64Histogram("speechwire.phrase.audio_duration",
		metric.WithDescription("Audio length of recognized segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("speechwire.session.duration",
		metric.WithDescription("Total recognition session length."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Phrases, err = m.Int64Counter("speechwire.phrases",
		metric.WithDescription("Recognition outcomes by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.Sessions, err = m.Int64Counter("speechwire.sessions",
		metric.WithDescription("Completed sessions by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytes, err = m.Int64Counter("speechwire.audio.bytes",
		metric.WithDescription("Audio payload bytes sent upstream."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.Reconnects, err = m.Int64Counter("speechwire.reconnects",
		metric.WithDescription("Connection re-establishments during sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordPhrase implements [Sink].
func (m *Metrics) RecordPhrase(p Phrase) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("kind", p.Kind),
		attribute.String("status", p.Status),
	)
	m.Phrases.Add(ctx, 1, attrs)
	if p.Latency > 0 {
		m.PhraseLatency.Record(ctx, p.Latency.Seconds(), attrs)
	}
	if p.AudioDuration > 0 {
		m.AudioDuration.Record(ctx, p.AudioDuration.Seconds(), attrs)
	}
}

// RecordSession implements [Sink].
func (m *Metrics) RecordSession(s Session) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("kind", s.Kind),
		attribute.String("outcome", s.Outcome),
	)
	m.Sessions.Add(ctx, 1, attrs)
	m.SessionDuration.Record(ctx, s.Duration.Seconds(), attrs)
	if s.BytesSent > 0 {
		m.AudioBytes.Add(ctx, s.BytesSent, attrs)
	}
	if s.Reconnects > 0 {
		m.Reconnects.Add(ctx, int64(s.Reconnects), attrs)
	}
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns the package-level [Metrics] instance, creating it on first
// call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("telemetry: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
