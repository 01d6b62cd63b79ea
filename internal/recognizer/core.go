// Package recognizer implements the protocol core that drives one
// recognition attempt end to end: it opens the connection, pumps audio
// upstream at a bounded rate, processes inbound service messages strictly in
// arrival order, and reports typed events to the facade layer.
//
// One Core drives one attempt. The facade constructs a fresh Core per
// recognize call and never reuses it.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/varenko/speechwire/internal/connection"
	"github.com/varenko/speechwire/internal/protocol"
	"github.com/varenko/speechwire/internal/telemetry"
	"github.com/varenko/speechwire/pkg/audio"
)

// chunkSize is the audio payload per frame: 100ms at 16kHz 16-bit mono.
const chunkSize = 3200

// errAttemptDone signals a clean end of the attempt through the errgroup.
var errAttemptDone = errors.New("recognizer: attempt finished")

// Options configures one recognition attempt.
type Options struct {
	Factory     connection.Factory
	Credentials connection.CredentialSource
	Source      audio.Source

	// Continuous keeps the attempt running across turns until Stop is called
	// or the source is exhausted. When false, the first turn's final phrase
	// is the attempt's single outcome.
	Continuous bool

	// Kind labels telemetry records: "speech", "translation" or "intent".
	Kind string

	// Phrases hints the service's dynamic grammar for this attempt.
	Phrases []string

	// Intent references a language-understanding model; nil for plain speech.
	Intent *IntentContext

	Logger    *slog.Logger
	Telemetry telemetry.Sink

	// OnEvent receives every event, in order, from a single goroutine.
	OnEvent func(Event)
}

// Core is the single authoritative state machine for one attempt.
type Core struct {
	opts Options
	log  *slog.Logger
	sink telemetry.Sink

	// connectionID doubles as the session id reported in events.
	connectionID string

	mu      sync.Mutex
	session *requestSession

	stopOnce sync.Once
	stopped  chan struct{}

	// emitMu serializes all OnEvent deliveries and guards the canceled state.
	emitMu       sync.Mutex
	canceled     bool
	cancelReason CancelReason

	// owned by the receive goroutine
	sessionStarted bool
	finalDelivered bool
	pendingFinal   *Final

	audioDone  atomic.Bool
	bytesSent  atomic.Int64
	reconnects int
}

// New builds a Core for one attempt.
func New(opts Options) *Core {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Noop{}
	}
	if opts.OnEvent == nil {
		opts.OnEvent = func(Event) {}
	}
	return &Core{
		opts:         opts,
		log:          opts.Logger,
		sink:         opts.Telemetry,
		connectionID: newID(),
		stopped:      make(chan struct{}),
	}
}

// SessionID returns the attempt's session identifier.
func (c *Core) SessionID() string { return c.connectionID }

// Stop requests a cooperative shutdown of a continuous attempt: the audio
// pump sends the end-of-audio frame at the next boundary and the attempt
// finishes after the service closes the turn. Stop is idempotent.
func (c *Core) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
		if err := c.opts.Source.TurnOff(); err != nil {
			c.log.Debug("turning off audio source", "error", err)
		}
	})
}

func (c *Core) stopRequested() bool {
	select {
	case <-c.stopped:
		return true
	default:
		return false
	}
}

// Run drives the attempt to completion. It blocks until the attempt is
// terminal; all outcomes are reported through OnEvent.
func (c *Core) Run(ctx context.Context) {
	start := time.Now()

	conn := c.connect(ctx)
	if conn == nil {
		c.recordSession(start)
		return
	}
	defer conn.Close()

	c.mu.Lock()
	c.session = newRequestSession()
	requestID := c.session.id
	c.mu.Unlock()

	// First messages on a fresh connection: client context, then the
	// turn's recognition context.
	if err := conn.Send(ctx, protocol.NewTextMessage(protocol.PathSpeechConfig, requestID, configBody())); err != nil {
		c.cancel(CancelError, CodeConnectionFailure, fmt.Sprintf("sending client config: %v", err))
		c.recordSession(start)
		return
	}
	if err := conn.Send(ctx, protocol.NewTextMessage(protocol.PathSpeechContext, requestID, contextBody(c.opts.Phrases, c.opts.Intent))); err != nil {
		c.cancel(CancelError, CodeConnectionFailure, fmt.Sprintf("sending recognition context: %v", err))
		c.recordSession(start)
		return
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return c.pump(gctx, conn) })
	grp.Go(func() error { return c.receive(gctx, conn) })
	err := grp.Wait()

	if terr := c.opts.Source.TurnOff(); terr != nil {
		c.log.Debug("turning off audio source", "error", terr)
	}

	if err != nil && !errors.Is(err, errAttemptDone) {
		c.cancel(CancelError, CodeRuntimeError, fmt.Sprintf("recognition aborted: %v", err))
	}

	if c.sessionStarted {
		// SessionStopped is the one event that may follow Canceled, so it
		// bypasses the canceled check but still holds the delivery lock.
		c.emitMu.Lock()
		c.opts.OnEvent(SessionStopped{SessionID: c.connectionID})
		c.emitMu.Unlock()
	}
	c.recordSession(start)
}

// connect fetches credentials and dials. A credential rejection triggers
// exactly one forced refresh and one redial; a second rejection is an
// authentication failure. Returns nil after emitting the Canceled event.
func (c *Core) connect(ctx context.Context) connection.Connection {
	auth, err := c.opts.Credentials.Fetch(ctx, c.connectionID)
	if err != nil {
		c.cancel(CancelError, CodeAuthenticationFailure, fmt.Sprintf("fetching credentials: %v", err))
		return nil
	}

	conn, err := c.opts.Factory.Create(ctx, auth, c.connectionID)
	if err != nil {
		var de *connection.DialError
		if errors.As(err, &de) && de.Unauthorized() {
			c.log.Debug("credential rejected, refreshing", "status", de.StatusCode)
			refreshed, rerr := c.opts.Credentials.FetchOnExpiry(ctx, c.connectionID)
			if rerr != nil {
				c.cancel(CancelError, CodeAuthenticationFailure, fmt.Sprintf("refreshing credentials: %v", rerr))
				return nil
			}
			c.reconnects++
			conn, err = c.opts.Factory.Create(ctx, refreshed, c.connectionID)
		}
	}
	if err != nil {
		c.cancel(CancelError, dialCode(err), err.Error())
		return nil
	}
	c.log.Debug("connected", "session", c.connectionID)
	return conn
}

// dialCode maps a dial failure to its error code.
func dialCode(err error) ErrorCode {
	var de *connection.DialError
	if !errors.As(err, &de) {
		return CodeConnectionFailure
	}
	switch {
	case de.Unauthorized():
		return CodeAuthenticationFailure
	case de.StatusCode == http.StatusBadRequest:
		return CodeBadRequest
	case de.StatusCode == http.StatusTooManyRequests:
		return CodeTooManyRequests
	case de.StatusCode == http.StatusRequestTimeout, de.StatusCode == http.StatusGatewayTimeout:
		return CodeServiceTimeout
	default:
		return CodeConnectionFailure
	}
}

// pump reads audio chunks from the source and sends them upstream at twice
// real time: enough headroom for live sources, bounded enough that a stream
// of silence cannot flood the connection while the service's silence timeout
// is still pending.
func (c *Core) pump(ctx context.Context, conn connection.Connection) error {
	format := c.opts.Source.Format()
	rate := format.AvgBytesPerSec()
	if rate <= 0 {
		rate = audio.DefaultFormat.AvgBytesPerSec()
	}
	interval := time.Duration(chunkSize) * time.Second / time.Duration(rate) / 2

	buf := make([]byte, chunkSize)
	for {
		n, err := c.opts.Source.Read(ctx, buf)
		if n > 0 {
			c.markAudio()
			if serr := conn.Send(ctx, protocol.NewAudioMessage(c.requestID(), buf[:n])); serr != nil {
				c.cancel(CancelError, CodeConnectionFailure, fmt.Sprintf("sending audio: %v", serr))
				return errAttemptDone
			}
			c.bytesSent.Add(int64(n))
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, audio.ErrSourceClosed):
			c.audioDone.Store(true)
			c.log.Debug("audio exhausted", "session", c.connectionID, "bytes", c.bytesSent.Load())
			if serr := conn.Send(ctx, protocol.NewAudioMessage(c.requestID(), nil)); serr != nil {
				c.cancel(CancelError, CodeConnectionFailure, fmt.Sprintf("sending end of audio: %v", serr))
				return errAttemptDone
			}
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return ctx.Err()
		default:
			c.cancel(CancelError, CodeRuntimeError, fmt.Sprintf("reading audio: %v", err))
			return errAttemptDone
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// receive is the single ordered processing loop: every inbound frame is
// decoded and handled to completion before the next one is read.
func (c *Core) receive(ctx context.Context, conn connection.Connection) error {
	for {
		msg, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// The pump failed first or the caller aborted; Run reports it.
				return nil
			}
			c.cancel(CancelError, CodeConnectionFailure, err.Error())
			return errAttemptDone
		}
		c.recordInbound(msg.Path)

		in, perr := protocol.ParseInbound(msg)
		if perr != nil {
			c.cancel(CancelError, CodeRuntimeError, perr.Error())
			return errAttemptDone
		}
		if c.handle(ctx, conn, in) {
			return errAttemptDone
		}
	}
}

// handle routes one decoded message. It returns true when the attempt is
// terminal.
func (c *Core) handle(ctx context.Context, conn connection.Connection, in protocol.Inbound) bool {
	sid := c.connectionID

	switch v := in.(type) {
	case protocol.TurnStart:
		if !c.sessionStarted {
			c.sessionStarted = true
			c.emit(SessionStarted{SessionID: sid})
		}
		c.log.Debug("turn started", "session", sid, "service", v.Tag)

	case protocol.SpeechStartDetected:
		c.emit(StartDetected{SessionID: sid, Offset: v.Offset.Duration()})

	case protocol.SpeechEndDetected:
		c.emit(EndDetected{SessionID: sid, Offset: v.Offset.Duration()})

	case protocol.SpeechHypothesis:
		if c.opts.Continuous || !c.finalDelivered {
			c.emit(Partial{SessionID: sid, Message: v})
		}

	case protocol.TranslationHypothesis:
		if c.opts.Continuous || !c.finalDelivered {
			c.emit(Partial{SessionID: sid, Message: v})
		}

	case protocol.SpeechPhrase:
		// Anything that is neither recognized text nor a no-match outcome is
		// a service-reported failure, including statuses this SDK predates.
		if !v.Status.IsSuccess() && !v.Status.IsNoMatch() {
			c.recordPhrase(string(v.Status), v.Duration.Duration())
			c.cancel(CancelError, CodeServiceError, serviceErrorDetails(string(v.Status), v.DisplayText))
			return true
		}
		c.recordPhrase(string(v.Status), v.Duration.Duration())
		f := Final{SessionID: sid, Message: v}
		if c.opts.Intent != nil {
			// Hold the phrase until the intent service responds or the
			// turn ends without a response.
			c.pendingFinal = &f
		} else {
			c.deliverFinal(f)
		}

	case protocol.IntentResponse:
		if c.pendingFinal != nil {
			if len(v.Raw) > 0 {
				c.pendingFinal.Intent = &v
			}
			f := *c.pendingFinal
			c.pendingFinal = nil
			c.deliverFinal(f)
		}

	case protocol.TranslationPhrase:
		if !v.Status.IsSuccess() && !v.Status.IsNoMatch() {
			c.recordPhrase(string(v.Status), v.Duration.Duration())
			c.cancel(CancelError, CodeServiceError, serviceErrorDetails(string(v.Status), v.FailureReason))
			return true
		}
		c.recordPhrase(string(v.Status), v.Duration.Duration())
		c.deliverFinal(Final{SessionID: sid, Message: v})

	case protocol.TranslationSynthesis:
		c.emit(Synthesis{SessionID: sid, Audio: v.Audio})

	case protocol.TranslationSynthesisEnd:
		c.emit(SynthesisEnd{SessionID: sid, Status: v.Status, FailureReason: v.FailureReason})

	case protocol.TurnEnd:
		if c.pendingFinal != nil {
			f := *c.pendingFinal
			c.pendingFinal = nil
			c.deliverFinal(f)
		}
		c.sendTelemetry(ctx, conn)
		if !c.opts.Continuous {
			return true
		}
		if c.stopRequested() || c.audioDone.Load() {
			if c.audioDone.Load() && !c.stopRequested() {
				c.cancel(CancelEndOfStream, CodeNone, "")
			}
			return true
		}
		return c.nextTurn(ctx, conn)

	case protocol.Unhandled:
		c.log.Debug("ignoring service message", "path", v.Path)
	}
	return false
}

// serviceErrorDetails prefers the service's error text, falling back to the
// raw status for failures that carry no message.
func serviceErrorDetails(status, text string) string {
	if text != "" {
		return text
	}
	return "service reported status " + status
}

// deliverFinal emits a finalized result. A single-shot attempt delivers at
// most one.
func (c *Core) deliverFinal(f Final) {
	if !c.opts.Continuous {
		if c.finalDelivered {
			return
		}
		c.finalDelivered = true
	}
	c.emit(f)
}

// nextTurn rotates the request session for the next utterance of a
// continuous attempt. Returns true if the attempt must end.
func (c *Core) nextTurn(ctx context.Context, conn connection.Connection) bool {
	c.mu.Lock()
	c.session = newRequestSession()
	requestID := c.session.id
	c.mu.Unlock()

	if err := conn.Send(ctx, protocol.NewTextMessage(protocol.PathSpeechContext, requestID, contextBody(c.opts.Phrases, c.opts.Intent))); err != nil {
		c.cancel(CancelError, CodeConnectionFailure, fmt.Sprintf("sending recognition context: %v", err))
		return true
	}
	return false
}

// sendTelemetry ships the turn's received-message tally. Fire and forget: a
// failure here never affects result delivery.
func (c *Core) sendTelemetry(ctx context.Context, conn connection.Connection) {
	c.mu.Lock()
	body := c.session.telemetryBody()
	requestID := c.session.id
	c.mu.Unlock()

	if err := conn.Send(ctx, protocol.NewTextMessage(protocol.PathTelemetry, requestID, body)); err != nil {
		c.log.Debug("telemetry send failed", "error", err)
	}
}

// cancel emits the Canceled event at most once per attempt. emitMu is held
// across the OnEvent call: cancel can be reached from the pump goroutine
// while the receive goroutine is mid-delivery, and events must never be
// delivered concurrently or after Canceled.
func (c *Core) cancel(reason CancelReason, code ErrorCode, details string) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.canceled {
		return
	}
	c.canceled = true
	c.cancelReason = reason

	if reason == CancelError {
		c.log.Debug("attempt canceled", "session", c.connectionID, "code", int(code), "details", details)
	}
	c.opts.OnEvent(Canceled{SessionID: c.connectionID, Reason: reason, Code: code, Details: details})
}

// emit delivers an event unless the attempt has already been canceled.
// Holding emitMu across OnEvent serializes delivery with cancel.
func (c *Core) emit(ev Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.canceled {
		return
	}
	c.opts.OnEvent(ev)
}

func (c *Core) requestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.id
}

func (c *Core) markAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.markAudio()
}

func (c *Core) recordInbound(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.record(path)
}

func (c *Core) recordPhrase(status string, audioDur time.Duration) {
	c.mu.Lock()
	latency := c.session.latency()
	c.mu.Unlock()
	c.sink.RecordPhrase(telemetry.Phrase{
		Kind:          c.opts.Kind,
		Status:        status,
		AudioDuration: audioDur,
		Latency:       latency,
	})
}

func (c *Core) recordSession(start time.Time) {
	c.emitMu.Lock()
	outcome := "completed"
	if c.canceled {
		switch c.cancelReason {
		case CancelEndOfStream:
			outcome = "completed"
		default:
			outcome = "error"
		}
	}
	c.emitMu.Unlock()

	c.sink.RecordSession(telemetry.Session{
		Kind:       c.opts.Kind,
		Outcome:    outcome,
		Duration:   time.Since(start),
		BytesSent:  c.bytesSent.Load(),
		Reconnects: c.reconnects,
	})
}
