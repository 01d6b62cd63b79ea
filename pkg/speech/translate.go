package speech

import (
	"github.com/google/uuid"

	"github.com/varenko/speechwire/internal/protocol"
	"github.com/varenko/speechwire/internal/recognizer"
)

// translate.go maps the core's internal events onto the public result model.
// All reason/status translation lives here so the core stays free of public
// types.

func newResultID() string {
	return uuid.NewString()
}

func resultProperties(raw []byte) *PropertyCollection {
	p := NewPropertyCollection()
	if len(raw) > 0 {
		p.Set(PropertyResponseJSON, string(raw))
	}
	return p
}

// partialToResult builds a Recognizing* result from a hypothesis event.
func partialToResult(ev recognizer.Partial, intentMode bool) *RecognitionResult {
	switch m := ev.Message.(type) {
	case protocol.SpeechHypothesis:
		reason := ReasonRecognizingSpeech
		if intentMode {
			reason = ReasonRecognizingIntent
		}
		return &RecognitionResult{
			ResultID:   newResultID(),
			Reason:     reason,
			Text:       m.Text,
			Offset:     m.Offset.Duration(),
			Duration:   m.Duration.Duration(),
			Raw:        m.Raw,
			Properties: resultProperties(m.Raw),
		}
	case protocol.TranslationHypothesis:
		return &RecognitionResult{
			ResultID:     newResultID(),
			Reason:       ReasonTranslatingSpeech,
			Text:         m.Text,
			Offset:       m.Offset.Duration(),
			Duration:     m.Duration.Duration(),
			Translations: m.Translations,
			Raw:          m.Raw,
			Properties:   resultProperties(m.Raw),
		}
	}
	return nil
}

// finalToResult builds a finalized result from a phrase event.
func finalToResult(ev recognizer.Final, intentMode bool) *RecognitionResult {
	switch m := ev.Message.(type) {
	case protocol.SpeechPhrase:
		res := &RecognitionResult{
			ResultID:   newResultID(),
			Text:       m.DisplayText,
			Offset:     m.Offset.Duration(),
			Duration:   m.Duration.Duration(),
			Raw:        m.Raw,
			Properties: resultProperties(m.Raw),
		}
		switch {
		case m.Status.IsNoMatch():
			res.Reason = ReasonNoMatch
			res.Text = ""
		case intentMode && ev.Intent != nil:
			res.Reason = ReasonRecognizedIntent
			res.IntentID = ev.Intent.TopIntent
			res.Properties.SetString("IntentResponse_JsonResult", string(ev.Intent.Raw))
		default:
			res.Reason = ReasonRecognizedSpeech
		}
		return res

	case protocol.TranslationPhrase:
		res := &RecognitionResult{
			ResultID:     newResultID(),
			Text:         m.Text,
			Offset:       m.Offset.Duration(),
			Duration:     m.Duration.Duration(),
			Translations: m.Translations,
			Raw:          m.Raw,
			Properties:   resultProperties(m.Raw),
		}
		switch {
		case m.Status.IsNoMatch():
			res.Reason = ReasonNoMatch
			res.Text = ""
			res.Translations = nil
		case m.TranslationStatus == protocol.TranslationError:
			// Recognition succeeded but translation failed: the caller still
			// gets text, plus the failure reason.
			res.Reason = ReasonRecognizedSpeech
			res.ErrorDetails = m.FailureReason
		default:
			res.Reason = ReasonTranslatedSpeech
		}
		return res
	}
	return nil
}

// canceledToResult builds a Canceled result from a cancellation event.
func canceledToResult(ev recognizer.Canceled) *RecognitionResult {
	return &RecognitionResult{
		ResultID:     newResultID(),
		Reason:       ReasonCanceled,
		ErrorDetails: ev.Details,
		Properties:   NewPropertyCollection(),
		cancelReason: cancellationReason(ev.Reason),
		cancelCode:   cancellationCode(ev.Code),
	}
}

func cancellationReason(r recognizer.CancelReason) CancellationReason {
	if r == recognizer.CancelEndOfStream {
		return CancellationReasonEndOfStream
	}
	return CancellationReasonError
}

func cancellationCode(c recognizer.ErrorCode) CancellationErrorCode {
	switch c {
	case recognizer.CodeAuthenticationFailure:
		return ErrorCodeAuthenticationFailure
	case recognizer.CodeBadRequest:
		return ErrorCodeBadRequestParameters
	case recognizer.CodeTooManyRequests:
		return ErrorCodeTooManyRequests
	case recognizer.CodeConnectionFailure:
		return ErrorCodeConnectionFailure
	case recognizer.CodeServiceTimeout:
		return ErrorCodeServiceTimeout
	case recognizer.CodeServiceError:
		return ErrorCodeServiceError
	case recognizer.CodeRuntimeError:
		return ErrorCodeRuntimeError
	}
	return ErrorCodeNoError
}
