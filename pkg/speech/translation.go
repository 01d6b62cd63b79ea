package speech

import (
	"context"
	"errors"

	"github.com/varenko/speechwire/internal/connection"
	"github.com/varenko/speechwire/internal/protocol"
	"github.com/varenko/speechwire/internal/recognizer"
	"github.com/varenko/speechwire/pkg/audio"
)

// TranslationRecognizer recognizes speech and translates it into the
// configured target languages in one streaming exchange. When a synthesis
// voice is configured, translated audio arrives through Synthesizing.
type TranslationRecognizer struct {
	*baseRecognizer

	targets []string
	voice   string

	SessionStarted      func(SessionEventArgs)
	SessionStopped      func(SessionEventArgs)
	SpeechStartDetected func(RecognitionEventArgs)
	SpeechEndDetected   func(RecognitionEventArgs)
	Recognizing         func(RecognitionResultEventArgs)
	Recognized          func(RecognitionResultEventArgs)
	Canceled            func(RecognitionCanceledEventArgs)
	Synthesizing        func(TranslationSynthesisEventArgs)
}

// NewTranslationRecognizer builds a translation recognizer. A source language
// and at least one target language are required; both are validated here,
// before any network activity.
func NewTranslationRecognizer(config *TranslationConfig, source audio.Source, opts ...Option) (*TranslationRecognizer, error) {
	if config == nil {
		return nil, errors.New("speech: config must not be nil")
	}
	targets := config.TargetLanguages()
	if len(targets) == 0 {
		return nil, errors.New("speech: at least one target language is required")
	}
	base, err := newBase(&config.Config, source, "translation", opts)
	if err != nil {
		return nil, err
	}
	return &TranslationRecognizer{
		baseRecognizer: base,
		targets:        targets,
		voice:          config.VoiceName(),
	}, nil
}

// RecognizeOnce recognizes and translates the first utterance of the source.
// Exactly one of result and error is non-nil.
func (r *TranslationRecognizer) RecognizeOnce(ctx context.Context) (*RecognitionResult, error) {
	outcome := make(chan RecognizeOutcome, 1)
	resolve := func(res *RecognitionResult, err error) {
		select {
		case outcome <- RecognizeOutcome{Result: res, Error: err}:
		default:
		}
	}

	done, err := r.start(ctx, false, connection.ServiceTranslation, r.targets, r.voice, nil, func(ev recognizer.Event) {
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

// RecognizeOnceAsync is the channel-returning form of RecognizeOnce.
func (r *TranslationRecognizer) RecognizeOnceAsync(ctx context.Context) <-chan RecognizeOutcome {
	ch := make(chan RecognizeOutcome, 1)
	go func() {
		res, err := r.RecognizeOnce(ctx)
		ch <- RecognizeOutcome{Result: res, Error: err}
	}()
	return ch
}

// StartContinuousRecognition begins translating every utterance of the
// source until it is exhausted or StopContinuousRecognition is called.
func (r *TranslationRecognizer) StartContinuousRecognition(ctx context.Context) error {
	_, err := r.start(ctx, true, connection.ServiceTranslation, r.targets, r.voice, nil, func(ev recognizer.Event) {
		r.dispatch(ev, nil)
	})
	return err
}

// StopContinuousRecognition cooperatively ends a continuous attempt.
func (r *TranslationRecognizer) StopContinuousRecognition() error {
	return r.stop()
}

func (r *TranslationRecognizer) dispatch(ev recognizer.Event, resolve func(*RecognitionResult, error)) {
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
	case recognizer.Synthesis:
		if r.Synthesizing != nil {
			r.Synthesizing(TranslationSynthesisEventArgs{
				SessionEventArgs: SessionEventArgs{v.SessionID},
				Audio:            v.Audio,
			})
		}
	case recognizer.SynthesisEnd:
		if r.Synthesizing != nil {
			args := TranslationSynthesisEventArgs{
				SessionEventArgs: SessionEventArgs{v.SessionID},
				Completed:        true,
			}
			if v.Status == protocol.SynthesisError {
				args.ErrorDetails = v.FailureReason
			}
			r.Synthesizing(args)
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
