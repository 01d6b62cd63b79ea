package speech

import (
	"context"
	"errors"

	"github.com/varenko/speechwire/internal/connection"
	"github.com/varenko/speechwire/internal/recognizer"
	"github.com/varenko/speechwire/pkg/audio"
)

// LanguageUnderstandingModel references a deployed language-understanding
// application the service queries for each finalized phrase.
type LanguageUnderstandingModel struct {
	// AppID is the application id of the deployed model.
	AppID string

	// SubscriptionKey authenticates against the language-understanding
	// service.
	SubscriptionKey string
}

// IntentRecognizer recognizes speech and resolves the speaker's intent
// against a language-understanding model.
type IntentRecognizer struct {
	*baseRecognizer

	intent *recognizer.IntentContext

	SessionStarted      func(SessionEventArgs)
	SessionStopped      func(SessionEventArgs)
	SpeechStartDetected func(RecognitionEventArgs)
	SpeechEndDetected   func(RecognitionEventArgs)
	Recognizing         func(RecognitionResultEventArgs)
	Recognized          func(RecognitionResultEventArgs)
	Canceled            func(RecognitionCanceledEventArgs)
}

// NewIntentRecognizer builds an intent recognizer. Add a model with
// AddAllIntents before recognizing.
func NewIntentRecognizer(config *Config, source audio.Source, opts ...Option) (*IntentRecognizer, error) {
	base, err := newBase(config, source, "intent", opts)
	if err != nil {
		return nil, err
	}
	return &IntentRecognizer{baseRecognizer: base}, nil
}

// AddAllIntents registers the model whose intents the service should match
// against every phrase.
func (r *IntentRecognizer) AddAllIntents(model LanguageUnderstandingModel) error {
	if model.AppID == "" {
		return errors.New("speech: language understanding model requires an app id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intent = &recognizer.IntentContext{
		Provider: "LUIS",
		AppID:    model.AppID,
		Key:      model.SubscriptionKey,
	}
	return nil
}

// RecognizeOnce recognizes the first utterance and resolves its intent.
// Exactly one of result and error is non-nil. A recognized phrase without a
// matched intent yields ReasonRecognizedSpeech and an empty IntentID.
func (r *IntentRecognizer) RecognizeOnce(ctx context.Context) (*RecognitionResult, error) {
	intent, err := r.intentContext()
	if err != nil {
		return nil, err
	}

	outcome := make(chan RecognizeOutcome, 1)
	resolve := func(res *RecognitionResult, rerr error) {
		select {
		case outcome <- RecognizeOutcome{Result: res, Error: rerr}:
		default:
		}
	}

	done, err := r.start(ctx, false, connection.ServiceIntent, nil, "", intent, func(ev recognizer.Event) {
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
func (r *IntentRecognizer) RecognizeOnceAsync(ctx context.Context) <-chan RecognizeOutcome {
	ch := make(chan RecognizeOutcome, 1)
	go func() {
		res, err := r.RecognizeOnce(ctx)
		ch <- RecognizeOutcome{Result: res, Error: err}
	}()
	return ch
}

// StartContinuousRecognition begins resolving intents for every utterance of
// the source until it is exhausted or StopContinuousRecognition is called.
func (r *IntentRecognizer) StartContinuousRecognition(ctx context.Context) error {
	intent, err := r.intentContext()
	if err != nil {
		return err
	}
	_, err = r.start(ctx, true, connection.ServiceIntent, nil, "", intent, func(ev recognizer.Event) {
		r.dispatch(ev, nil)
	})
	return err
}

// StopContinuousRecognition cooperatively ends a continuous attempt.
func (r *IntentRecognizer) StopContinuousRecognition() error {
	return r.stop()
}

func (r *IntentRecognizer) intentContext() (*recognizer.IntentContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.intent == nil {
		return nil, errors.New("speech: no language understanding model added")
	}
	intent := *r.intent
	return &intent, nil
}

func (r *IntentRecognizer) dispatch(ev recognizer.Event, resolve func(*RecognitionResult, error)) {
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
			if res := partialToResult(v, true); res != nil {
				r.Recognizing(RecognitionResultEventArgs{SessionEventArgs{v.SessionID}, res})
			}
		}
	case recognizer.Final:
		res := finalToResult(v, true)
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
