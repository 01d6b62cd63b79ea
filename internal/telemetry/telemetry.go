// Package telemetry records what happened during recognition sessions:
// how many phrases came back, with what status, how long the service took,
// and how each session ended.
//
// Recognizers report through the [Sink] interface so that applications can
// plug in their own backend. The default implementation is OpenTelemetry
// metrics ([Metrics]) with a Prometheus exporter bridge available via
// [InitProvider]; [Noop] discards everything.
package telemetry

import "time"

// Phrase describes a single recognition outcome within a session.
type Phrase struct {
	// Kind is the recognition flavour: "speech", "translation" or "intent".
	Kind string

	// Status is the service recognition status, e.g. "Success" or "NoMatch".
	Status string

	// AudioDuration is the duration of the recognized audio segment.
	AudioDuration time.Duration

	// Latency is the wall-clock time from the first audio byte of the turn
	// to the final phrase message.
	Latency time.Duration
}

// Session describes a completed recognition session.
type Session struct {
	// Kind is the recognition flavour: "speech", "translation" or "intent".
	Kind string

	// Outcome is how the session ended: "completed", "canceled" or "error".
	Outcome string

	// Duration is the total session length from start to stop.
	Duration time.Duration

	// BytesSent is the total audio payload sent upstream.
	BytesSent int64

	// Reconnects counts how many times the connection was re-established
	// during the session.
	Reconnects int
}

// Sink receives telemetry records from recognizers. Implementations must be
// safe for concurrent use. All methods must be non-blocking; a slow sink
// stalls the message pump.
type Sink interface {
	RecordPhrase(p Phrase)
	RecordSession(s Session)
}

// Noop is a [Sink] that discards all records.
type Noop struct{}

func (Noop) RecordPhrase(Phrase)   {}
func (Noop) RecordSession(Session) {}
