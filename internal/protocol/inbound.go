package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Ticks is a wire duration or stream offset in 100-nanosecond units, the
// resolution the service reports.
type Ticks uint64

// Duration converts t to a time.Duration.
func (t Ticks) Duration() time.Duration {
	return time.Duration(t) * 100 * time.Nanosecond
}

// Inbound is the closed union of decoded service messages. Every inbound
// frame decodes to exactly one variant; frames the SDK does not act on decode
// to Unhandled.
type Inbound interface {
	inbound()
}

// TurnStart opens a service turn. The service tag identifies the backend
// instance for diagnostics.
type TurnStart struct {
	Tag string
}

// TurnEnd closes a service turn.
type TurnEnd struct{}

// SpeechStartDetected reports the stream offset at which speech began.
type SpeechStartDetected struct {
	Offset Ticks
}

// SpeechEndDetected reports the stream offset at which speech ended.
type SpeechEndDetected struct {
	Offset Ticks
}

// SpeechHypothesis is an intermediate recognition guess for an in-progress
// utterance. speech.fragment messages also decode to this variant.
type SpeechHypothesis struct {
	Text     string
	Offset   Ticks
	Duration Ticks
	Raw      []byte
}

// NBestEntry is one alternative in a detailed-format phrase.
type NBestEntry struct {
	Confidence float64 `json:"Confidence"`
	Lexical    string  `json:"Lexical"`
	ITN        string  `json:"ITN"`
	MaskedITN  string  `json:"MaskedITN"`
	Display    string  `json:"Display"`
}

// SpeechPhrase is a finalized recognition result for an utterance, covering
// both the simple and detailed output formats. For detailed phrases the top
// alternative's display text is promoted into DisplayText.
type SpeechPhrase struct {
	Status      RecognitionStatus
	DisplayText string
	Offset      Ticks
	Duration    Ticks
	NBest       []NBestEntry
	Raw         []byte
}

// TranslationHypothesis is an intermediate guess with in-progress
// translations keyed by target language.
type TranslationHypothesis struct {
	Text         string
	Offset       Ticks
	Duration     Ticks
	Translations map[string]string
	Raw          []byte
}

// TranslationPhrase is a finalized recognition plus translation result.
type TranslationPhrase struct {
	Status            RecognitionStatus
	TranslationStatus TranslationStatus
	Text              string
	Offset            Ticks
	Duration          Ticks
	Translations      map[string]string
	FailureReason     string
	Raw               []byte
}

// TranslationSynthesis carries one chunk of synthesized target-language audio.
type TranslationSynthesis struct {
	Audio []byte
}

// TranslationSynthesisEnd terminates the synthesized audio stream.
type TranslationSynthesisEnd struct {
	Status        SynthesisStatus
	FailureReason string
}

// IntentResponse carries the intent service's payload for the preceding
// phrase. An empty Raw means the intent query failed upstream and nothing
// came back.
type IntentResponse struct {
	TopIntent string
	Raw       []byte
}

// Unhandled is a decoded frame the SDK takes no action on (housekeeping or
// forward-compatible message types).
type Unhandled struct {
	Path string
}

func (TurnStart) inbound()               {}
func (TurnEnd) inbound()                 {}
func (SpeechStartDetected) inbound()     {}
func (SpeechEndDetected) inbound()       {}
func (SpeechHypothesis) inbound()        {}
func (SpeechPhrase) inbound()            {}
func (TranslationHypothesis) inbound()   {}
func (TranslationPhrase) inbound()       {}
func (TranslationSynthesis) inbound()    {}
func (TranslationSynthesisEnd) inbound() {}
func (IntentResponse) inbound()          {}
func (Unhandled) inbound()               {}

// wire shapes for json decoding

type wireOffset struct {
	Offset Ticks `json:"Offset"`
}

type wireTurnStart struct {
	Context struct {
		ServiceTag string `json:"serviceTag"`
	} `json:"context"`
}

type wireHypothesis struct {
	Text     string `json:"Text"`
	Offset   Ticks  `json:"Offset"`
	Duration Ticks  `json:"Duration"`
}

type wirePhrase struct {
	RecognitionStatus RecognitionStatus `json:"RecognitionStatus"`
	DisplayText       string            `json:"DisplayText"`
	Offset            Ticks             `json:"Offset"`
	Duration          Ticks             `json:"Duration"`
	NBest             []NBestEntry      `json:"NBest"`
}

type wireTranslation struct {
	TranslationStatus TranslationStatus `json:"TranslationStatus"`
	FailureReason     string            `json:"FailureReason"`
	Translations      []struct {
		Language string `json:"Language"`
		Text     string `json:"Text"`
	} `json:"Translations"`
}

func (w wireTranslation) toMap() map[string]string {
	if len(w.Translations) == 0 {
		return nil
	}
	m := make(map[string]string, len(w.Translations))
	for _, t := range w.Translations {
		m[t.Language] = t.Text
	}
	return m
}

type wireTranslationResult struct {
	RecognitionStatus RecognitionStatus `json:"RecognitionStatus"`
	Text              string            `json:"Text"`
	Offset            Ticks             `json:"Offset"`
	Duration          Ticks             `json:"Duration"`
	Translation       wireTranslation   `json:"Translation"`
}

type wireSynthesisEnd struct {
	SynthesisStatus SynthesisStatus `json:"SynthesisStatus"`
	FailureReason   string          `json:"FailureReason"`
}

type wireIntent struct {
	TopScoringIntent struct {
		Intent string `json:"intent"`
	} `json:"topScoringIntent"`
}

// ParseInbound decodes a raw frame into its Inbound variant. An unknown path
// yields Unhandled, not an error; a known path with a malformed body is an
// error the core reports as a runtime failure.
func ParseInbound(msg Message) (Inbound, error) {
	path := strings.ToLower(msg.Path)
	body := msg.Body

	unmarshal := func(v any) error {
		if len(body) == 0 {
			// The service sends empty bodies for some lifecycle messages
			// (e.g. speech.endDetected on an empty request).
			return nil
		}
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("protocol: decode %s body: %w", path, err)
		}
		return nil
	}

	switch path {
	case PathTurnStart:
		var w wireTurnStart
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return TurnStart{Tag: w.Context.ServiceTag}, nil

	case PathTurnEnd:
		return TurnEnd{}, nil

	case PathSpeechStartDetected:
		var w wireOffset
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return SpeechStartDetected{Offset: w.Offset}, nil

	case PathSpeechEndDetected:
		var w wireOffset
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return SpeechEndDetected{Offset: w.Offset}, nil

	case PathSpeechHypothesis, PathSpeechFragment:
		var w wireHypothesis
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return SpeechHypothesis{Text: w.Text, Offset: w.Offset, Duration: w.Duration, Raw: body}, nil

	case PathSpeechPhrase:
		var w wirePhrase
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		p := SpeechPhrase{
			Status:      w.RecognitionStatus,
			DisplayText: w.DisplayText,
			Offset:      w.Offset,
			Duration:    w.Duration,
			NBest:       w.NBest,
			Raw:         body,
		}
		if p.DisplayText == "" && len(w.NBest) > 0 {
			p.DisplayText = w.NBest[0].Display
		}
		return p, nil

	case PathTranslationHypothesis:
		var w wireTranslationResult
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return TranslationHypothesis{
			Text:         w.Text,
			Offset:       w.Offset,
			Duration:     w.Duration,
			Translations: w.Translation.toMap(),
			Raw:          body,
		}, nil

	case PathTranslationPhrase:
		var w wireTranslationResult
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return TranslationPhrase{
			Status:            w.RecognitionStatus,
			TranslationStatus: w.Translation.TranslationStatus,
			Text:              w.Text,
			Offset:            w.Offset,
			Duration:          w.Duration,
			Translations:      w.Translation.toMap(),
			FailureReason:     w.Translation.FailureReason,
			Raw:               body,
		}, nil

	case PathTranslationSynthesis:
		return TranslationSynthesis{Audio: body}, nil

	case PathTranslationSynthesisEnd:
		var w wireSynthesisEnd
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return TranslationSynthesisEnd{Status: w.SynthesisStatus, FailureReason: w.FailureReason}, nil

	case PathIntentResponse:
		if len(body) == 0 {
			return IntentResponse{}, nil
		}
		var w wireIntent
		if err := unmarshal(&w); err != nil {
			return nil, err
		}
		return IntentResponse{TopIntent: w.TopScoringIntent.Intent, Raw: body}, nil

	default:
		return Unhandled{Path: msg.Path}, nil
	}
}
