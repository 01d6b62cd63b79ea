package protocol

// RecognitionStatus is the service-reported outcome of a phrase. The zero
// value is not valid; unknown strings compare unequal to all known statuses
// and are treated as errors by the mapping layer.
type RecognitionStatus string

const (
	StatusSuccess               RecognitionStatus = "Success"
	StatusNoMatch               RecognitionStatus = "NoMatch"
	StatusInitialSilenceTimeout RecognitionStatus = "InitialSilenceTimeout"
	StatusBabbleTimeout         RecognitionStatus = "BabbleTimeout"
	StatusInitialBabbleTimeout  RecognitionStatus = "InitialBabbleTimeout"
	StatusError                 RecognitionStatus = "Error"
	StatusEndOfDictation        RecognitionStatus = "EndOfDictation"
)

// IsNoMatch reports whether the status represents a successful exchange that
// produced no usable recognized text. Silence and babble timeouts are
// no-match outcomes, not errors.
func (s RecognitionStatus) IsNoMatch() bool {
	switch s {
	case StatusNoMatch, StatusInitialSilenceTimeout, StatusBabbleTimeout, StatusInitialBabbleTimeout:
		return true
	}
	return false
}

// IsSuccess reports whether the status carries recognized text.
func (s RecognitionStatus) IsSuccess() bool {
	return s == StatusSuccess || s == StatusEndOfDictation
}

// TranslationStatus is the service-reported outcome of the translation stage
// of a translation.phrase message.
type TranslationStatus string

const (
	TranslationSuccess TranslationStatus = "Success"
	TranslationError   TranslationStatus = "Error"
)

// SynthesisStatus is the service-reported state of a translation.synthesis.end
// message.
type SynthesisStatus string

const (
	SynthesisSuccess SynthesisStatus = "Success"
	SynthesisEnd     SynthesisStatus = "SynthesisEnd"
	SynthesisError   SynthesisStatus = "Error"
)
