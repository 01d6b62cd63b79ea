package speech

import "time"

// SessionEventArgs accompanies SessionStarted and SessionStopped.
type SessionEventArgs struct {
	SessionID string
}

// RecognitionEventArgs accompanies SpeechStartDetected and SpeechEndDetected.
type RecognitionEventArgs struct {
	SessionEventArgs

	// Offset is the position in the audio stream at which the boundary was
	// detected.
	Offset time.Duration
}

// RecognitionResultEventArgs accompanies Recognizing and Recognized.
type RecognitionResultEventArgs struct {
	SessionEventArgs
	Result *RecognitionResult
}

// RecognitionCanceledEventArgs accompanies Canceled. Result holds a Canceled
// result from which CancellationDetails can be derived.
type RecognitionCanceledEventArgs struct {
	SessionEventArgs
	Result       *RecognitionResult
	Reason       CancellationReason
	ErrorCode    CancellationErrorCode
	ErrorDetails string
}

// TranslationSynthesisEventArgs accompanies Synthesizing on a
// TranslationRecognizer. Audio is one chunk of synthesized target-language
// audio; Completed marks the end of the synthesized stream for the utterance.
type TranslationSynthesisEventArgs struct {
	SessionEventArgs
	Audio        []byte
	Completed    bool
	ErrorDetails string
}
