package recognizer

import (
	"time"

	"github.com/varenko/speechwire/internal/protocol"
)

// CancelReason distinguishes error-driven cancellation from the normal
// end-of-stream cancellation that closes continuous recognition over a
// finite source.
type CancelReason int

const (
	CancelError CancelReason = iota + 1
	CancelEndOfStream
)

// ErrorCode classifies why an attempt was canceled. It is only meaningful
// alongside CancelError.
type ErrorCode int

const (
	CodeNone ErrorCode = iota
	CodeAuthenticationFailure
	CodeBadRequest
	CodeTooManyRequests
	CodeConnectionFailure
	CodeServiceTimeout
	CodeServiceError
	CodeRuntimeError
)

// Event is the closed union of everything the core reports upward. The
// facade layer translates these into the public event and result types.
//
// Events are delivered strictly in order, from a single goroutine.
type Event interface {
	event()
}

// SessionStarted is always the first event of an attempt that reached the
// service.
type SessionStarted struct {
	SessionID string
}

// SessionStopped is always the last event of an attempt.
type SessionStopped struct {
	SessionID string
}

// StartDetected reports the stream offset at which the service heard speech
// begin.
type StartDetected struct {
	SessionID string
	Offset    time.Duration
}

// EndDetected reports the stream offset at which the service heard speech end.
type EndDetected struct {
	SessionID string
	Offset    time.Duration
}

// Partial carries an intermediate hypothesis: a protocol.SpeechHypothesis or
// protocol.TranslationHypothesis.
type Partial struct {
	SessionID string
	Message   protocol.Inbound
}

// Final carries a finalized phrase: a protocol.SpeechPhrase or
// protocol.TranslationPhrase. For intent recognition, Intent holds the
// intent service's response when one arrived before the turn ended.
type Final struct {
	SessionID string
	Message   protocol.Inbound
	Intent    *protocol.IntentResponse
}

// Synthesis carries one chunk of synthesized translation audio.
type Synthesis struct {
	SessionID string
	Audio     []byte
}

// SynthesisEnd terminates the synthesized audio stream for a turn.
type SynthesisEnd struct {
	SessionID     string
	Status        protocol.SynthesisStatus
	FailureReason string
}

// Canceled terminates the attempt. After Canceled only SessionStopped may
// follow.
type Canceled struct {
	SessionID string
	Reason    CancelReason
	Code      ErrorCode
	Details   string
}

func (SessionStarted) event() {}
func (SessionStopped) event() {}
func (StartDetected) event()  {}
func (EndDetected) event()    {}
func (Partial) event()        {}
func (Final) event()          {}
func (Synthesis) event()      {}
func (SynthesisEnd) event()   {}
func (Canceled) event()       {}
