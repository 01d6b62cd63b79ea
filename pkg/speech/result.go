package speech

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RecognitionResult is one immutable recognition outcome. A single result
// type covers every recognizer flavour: IntentID is set for intent results
// and Translations for translation results; both are empty otherwise.
type RecognitionResult struct {
	// ResultID uniquely identifies this result.
	ResultID string

	// Reason states what this result represents.
	Reason ResultReason

	// Text is the recognized (source-language) text.
	Text string

	// Offset is the position of the utterance in the audio stream.
	Offset time.Duration

	// Duration is the length of the recognized utterance.
	Duration time.Duration

	// IntentID is the top-scoring intent for intent recognition results.
	IntentID string

	// Translations maps target language codes to translated text for
	// translation results.
	Translations map[string]string

	// ErrorDetails carries the service's error text for canceled results and
	// the translation failure reason for partially-failed translations.
	ErrorDetails string

	// Raw is the service's JSON payload for this result, empty for results
	// that did not originate from a phrase message.
	Raw []byte

	// Properties carries auxiliary result data.
	Properties *PropertyCollection

	cancelReason CancellationReason
	cancelCode   CancellationErrorCode
}

// CancellationDetails explains a Canceled result.
type CancellationDetails struct {
	Reason       CancellationReason
	ErrorCode    CancellationErrorCode
	ErrorDetails string
}

// CancellationDetailsFromResult derives cancellation details from a result.
// It fails if the result's reason is not Canceled.
func CancellationDetailsFromResult(r *RecognitionResult) (*CancellationDetails, error) {
	if r == nil {
		return nil, errors.New("speech: nil result")
	}
	if r.Reason != ReasonCanceled {
		return nil, fmt.Errorf("speech: result reason is %s, not Canceled", r.Reason)
	}
	return &CancellationDetails{
		Reason:       r.cancelReason,
		ErrorCode:    r.cancelCode,
		ErrorDetails: r.ErrorDetails,
	}, nil
}

// NoMatchDetails explains a NoMatch result. Derived on demand from the
// result's raw service JSON.
type NoMatchDetails struct {
	Reason NoMatchReason
}

// NoMatchDetailsFromResult derives no-match details from a result. It fails
// if the result's reason is not NoMatch.
func NoMatchDetailsFromResult(r *RecognitionResult) (*NoMatchDetails, error) {
	if r == nil {
		return nil, errors.New("speech: nil result")
	}
	if r.Reason != ReasonNoMatch {
		return nil, fmt.Errorf("speech: result reason is %s, not NoMatch", r.Reason)
	}
	var payload struct {
		RecognitionStatus string `json:"RecognitionStatus"`
	}
	if len(r.Raw) > 0 {
		if err := json.Unmarshal(r.Raw, &payload); err != nil {
			return nil, fmt.Errorf("speech: decode result payload: %w", err)
		}
	}
	d := &NoMatchDetails{Reason: NoMatchReasonNotRecognized}
	switch payload.RecognitionStatus {
	case "InitialSilenceTimeout":
		d.Reason = NoMatchReasonInitialSilenceTimeout
	case "BabbleTimeout", "InitialBabbleTimeout":
		d.Reason = NoMatchReasonInitialBabbleTimeout
	}
	return d, nil
}

// CancellationError is returned by RecognizeOnce when the attempt was
// canceled because of an error. No-match outcomes are results, not errors.
type CancellationError struct {
	Code    CancellationErrorCode
	Details string
}

func (e *CancellationError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("speech: recognition canceled: %s", e.Code)
	}
	return fmt.Sprintf("speech: recognition canceled: %s: %s", e.Code, e.Details)
}
