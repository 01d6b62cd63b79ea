package speech

// ResultReason states what a RecognitionResult represents.
type ResultReason int

const (
	// ReasonNoMatch: the exchange succeeded but produced no usable text.
	// Inspect NoMatchDetails for the sub-reason.
	ReasonNoMatch ResultReason = iota + 1

	// ReasonCanceled: the attempt was terminated. Inspect CancellationDetails.
	ReasonCanceled

	ReasonRecognizingSpeech
	ReasonRecognizedSpeech
	ReasonRecognizingIntent
	ReasonRecognizedIntent
	ReasonTranslatingSpeech
	ReasonTranslatedSpeech
	ReasonSynthesizingAudio
	ReasonSynthesizingAudioCompleted
)

func (r ResultReason) String() string {
	switch r {
	case ReasonNoMatch:
		return "NoMatch"
	case ReasonCanceled:
		return "Canceled"
	case ReasonRecognizingSpeech:
		return "RecognizingSpeech"
	case ReasonRecognizedSpeech:
		return "RecognizedSpeech"
	case ReasonRecognizingIntent:
		return "RecognizingIntent"
	case ReasonRecognizedIntent:
		return "RecognizedIntent"
	case ReasonTranslatingSpeech:
		return "TranslatingSpeech"
	case ReasonTranslatedSpeech:
		return "TranslatedSpeech"
	case ReasonSynthesizingAudio:
		return "SynthesizingAudio"
	case ReasonSynthesizingAudioCompleted:
		return "SynthesizingAudioCompleted"
	}
	return "Unknown"
}

// CancellationReason distinguishes error-driven cancellation from the normal
// end-of-stream signal that closes continuous recognition over a finite
// source.
type CancellationReason int

const (
	CancellationReasonError CancellationReason = iota + 1
	CancellationReasonEndOfStream
)

func (r CancellationReason) String() string {
	if r == CancellationReasonEndOfStream {
		return "EndOfStream"
	}
	return "Error"
}

// CancellationErrorCode classifies an error-driven cancellation.
type CancellationErrorCode int

const (
	ErrorCodeNoError CancellationErrorCode = iota
	ErrorCodeAuthenticationFailure
	ErrorCodeBadRequestParameters
	ErrorCodeTooManyRequests
	ErrorCodeConnectionFailure
	ErrorCodeServiceTimeout
	ErrorCodeServiceError
	ErrorCodeRuntimeError
)

func (c CancellationErrorCode) String() string {
	switch c {
	case ErrorCodeNoError:
		return "NoError"
	case ErrorCodeAuthenticationFailure:
		return "AuthenticationFailure"
	case ErrorCodeBadRequestParameters:
		return "BadRequestParameters"
	case ErrorCodeTooManyRequests:
		return "TooManyRequests"
	case ErrorCodeConnectionFailure:
		return "ConnectionFailure"
	case ErrorCodeServiceTimeout:
		return "ServiceTimeout"
	case ErrorCodeServiceError:
		return "ServiceError"
	case ErrorCodeRuntimeError:
		return "RuntimeError"
	}
	return "Unknown"
}

// NoMatchReason explains why a NoMatch result carries no text.
type NoMatchReason int

const (
	NoMatchReasonNotRecognized NoMatchReason = iota + 1
	NoMatchReasonInitialSilenceTimeout
	NoMatchReasonInitialBabbleTimeout
)

func (r NoMatchReason) String() string {
	switch r {
	case NoMatchReasonInitialSilenceTimeout:
		return "InitialSilenceTimeout"
	case NoMatchReasonInitialBabbleTimeout:
		return "InitialBabbleTimeout"
	}
	return "NotRecognized"
}

// OutputFormat selects how much detail phrase results carry.
type OutputFormat int

const (
	// OutputFormatSimple: display text only.
	OutputFormatSimple OutputFormat = iota

	// OutputFormatDetailed: NBest alternatives with confidence scores.
	OutputFormatDetailed
)

func (f OutputFormat) String() string {
	if f == OutputFormatDetailed {
		return "detailed"
	}
	return "simple"
}
