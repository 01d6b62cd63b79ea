package speech

import (
	"context"

	"github.com/varenko/speechwire/internal/connection"
	"github.com/varenko/speechwire/internal/recognizer"
	"github.com/varenko/speechwire/pkg/audio"
)

// Recognizer transcribes speech from an audio source. Event handler fields
// may be set before a recognize call; they are invoked in service order from
// a single goroutine per attempt.
type Recognizer struct {
	*baseRecognizer

	// Optional event handlers.
	SessionStarted      func(SessionEventArgs)
	SessionStopped      func(SessionEventArgs)
	SpeechStartDetected func(RecognitionEventArgs)
	SpeechEndDetected   func(RecognitionEventArgs)
	Recognizing         func(RecognitionResultEventArgs)
	Recognized          func(RecognitionResultEventArgs)
	Canceled            func(RecognitionCanceledEventArgs)
}

// NewRecognizer builds a speech recognizer. The config is cloned: mutating it
// afterwards does not affect the recognizer. Configuration problems fail
// here, before any network activity.
func NewRecognizer(config *Config, source audio.Source, opts ...Option) (*Recognizer, error) {
	base, err := newBase(config, source, "speech", opts)
	if err != nil {
		return nil, err
	}
	return &Recognizer{baseRecognizer: base}, nil
}

// RecognizeOutcome is the value delivered by RecognizeOnceAsync.
type RecognizeOutcome struct {
	Result *RecognitionResult
	Error  error
}

// RecognizeOnce recognizes the first utterance of the source and blocks
// until its final result. Exactly one of result and error is non-nil: a
// NoMatch outcome is a result, an error-driven cancellation is an error.
func (r *Recognizer) RecognizeOnce(ctx context.Context) (*RecognitionResult, error) {
	outcome := make(chan RecognizeOutcome, 1)
	resolve := func(res *RecognitionResult, err error) {
		select {
		case outcome <- RecognizeOutcome{Result: res, Error: err}:
		default:
		}
	}

	done, err := r.start(ctx, false, connection.ServiceSpeech, nil, "", nil, func(ev recognizer.Event) {
		r.dispatch(ev, resolve)
	})
	if err != nil {
		return nil, err
	}
	<-done

	select {
	case o := <-outcome:
		return o.Result, o.Error
	default:
		return nil, &CancellationError{Code: ErrorCodeRuntimeError, Details: "recognition ended without a result"}
	}
}

// RecognizeOnceAsync is the channel-returning form of RecognizeOnce. The
// returned channel delivers exactly one outcome.
func (r *Recognizer) RecognizeOnceAsync(ctx context.Context) <-chan RecognizeOutcome {
	ch := make(chan RecognizeOutcome, 1)
	go func() {
		res, err := r.RecognizeOnce(ctx)
		ch <- RecognizeOutcome{Result: res, Error: err}
	}()
	return ch
}

// StartContinuousRecognition begins recognizing every utterance of the
// source, reporting through the handler fields, until the source is
// exhausted or StopContinuousRecognition is called. The returned error
// covers starting only; per-utterance outcomes arrive as events.
func (r *Recognizer) StartContinuousRecognition(ctx context.Context) error {
	_, err := r.start(ctx, true, connection.ServiceSpeech, nil, "", nil, func(ev recognizer.Event) {
		r.dispatch(ev, nil)
	})
	return err
}

// StopContinuousRecognition cooperatively ends a continuous attempt and
// waits for the final events to be delivered. A no-op when idle.
func (r *Recognizer) StopContinuousRecognition() error {
	return r.stop()
}

// dispatch translates one core event into handler invocations, resolving the
// single-shot outcome when one is pending.
func (r *Recognizer) dispatch(ev recognizer.Event, resolve func(*RecognitionResult, error)) {
	switch v := ev.(type) {
	case recognizer.SessionStarted:
		if r.SessionStarted != nil {
			r.SessionStarted(SessionEventArgs{SessionID: v.SessionID})
		}
	case recognizer.SessionStopped:
		if r.SessionStopped != nil {
			r.SessionStopped(SessionEventArgs{SessionID: v.SessionID})
		}
	case recognizer.StartDetected:
		if r.SpeechStartDetected != nil {
			r.SpeechStartDetected(RecognitionEventArgs{SessionEventArgs{v.SessionID}, v.Offset})
		}
	case recognizer.EndDetected:
		if r.SpeechEndDetected != nil {
			r.SpeechEndDetected(RecognitionEventArgs{SessionEventArgs{v.SessionID}, v.Offset})
		}
	case recognizer.Partial:
		if r.Recognizing != nil {
			if res := partialToResult(v, false); res != nil {
				r.Recognizing(RecognitionResultEventArgs{SessionEventArgs{v.SessionID}, res})
			}
		}
	case recognizer.Final:
		res := finalToResult(v, false)
		if res == nil {
			return
		}
		if resolve != nil {
			resolve(res, nil)
		}
		if r.Recognized != nil {
			r.Recognized(RecognitionResultEventArgs{SessionEventArgs{v.SessionID}, res})
		}
	case recognizer.Canceled:
		res := canceledToResult(v)
		if resolve != nil && v.Reason == recognizer.CancelError {
			resolve(nil, &CancellationError{Code: res.cancelCode, Details: v.Details})
		}
		if r.Canceled != nil {
			r.Canceled(RecognitionCanceledEventArgs{
				SessionEventArgs: SessionEventArgs{v.SessionID},
				Result:           res,
				Reason:           res.cancelReason,
				ErrorCode:        res.cancelCode,
				ErrorDetails:     v.Details,
			})
		}
	}
}
