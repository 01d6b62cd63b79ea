package connection

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
)

// Mode selects the service's segmentation behavior: Interactive ends the
// turn after the first utterance, Conversation keeps the turn open for
// multiple utterances.
type Mode int

const (
	ModeInteractive Mode = iota
	ModeConversation
)

// String returns the endpoint path segment for the mode.
func (m Mode) String() string {
	if m == ModeConversation {
		return "conversation"
	}
	return "interactive"
}

// Service selects which recognition service the connection targets.
type Service int

const (
	ServiceSpeech Service = iota
	ServiceIntent
	ServiceTranslation
)

// Default host patterns per service, parameterised by region.
const (
	speechHostFormat      = "wss://%s.stt.speech.microsoft.com/speech/recognition/%s/cognitiveservices/v1"
	translationHostFormat = "wss://%s.s2s.speech.microsoft.com/speech/translation/cognitiveservices/v1"
)

// connectionIDHeader carries the client-generated correlation id the service
// echoes into its logs.
const connectionIDHeader = "X-ConnectionId"

// Params describes everything the factory needs to compute the endpoint URL
// for one recognizer.
type Params struct {
	// Region selects the default host (e.g. "westus"). Ignored when Endpoint
	// is set.
	Region string

	// Endpoint overrides the region-based host entirely. Query parameters
	// already present on it are preserved verbatim and take precedence over
	// the computed ones.
	Endpoint string

	Service Service
	Mode    Mode

	// Language is the BCP-47 recognition language (e.g. "en-US").
	Language string

	// OutputFormat is "simple" or "detailed".
	OutputFormat string

	// TargetLanguages are the translation targets; translation service only.
	TargetLanguages []string

	// Voice selects synthesized translation audio; empty disables synthesis.
	Voice string

	// EndpointID references a custom trained model deployment.
	EndpointID string
}

// Factory creates Connections. The production implementation dials a
// websocket; tests substitute in-memory fakes.
type Factory interface {
	Create(ctx context.Context, auth AuthInfo, connectionID string) (Connection, error)
}

// WebsocketFactory is the production Factory.
type WebsocketFactory struct {
	Params Params
}

// Create resolves the endpoint URL, attaches auth and correlation headers,
// and dials the websocket. Handshake failures come back as *DialError so the
// caller can distinguish them from post-open transport faults.
func (f *WebsocketFactory) Create(ctx context.Context, auth AuthInfo, connectionID string) (Connection, error) {
	endpoint, err := f.endpointURL()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set(auth.HeaderName, auth.Value)
	headers.Set(connectionIDHeader, connectionID)

	conn, resp, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, &DialError{StatusCode: status, Err: err}
	}
	return newWSConnection(conn), nil
}

// endpointURL computes the connection URL from Params.
func (f *WebsocketFactory) endpointURL() (string, error) {
	p := f.Params

	base := p.Endpoint
	if base == "" {
		if p.Region == "" {
			return "", fmt.Errorf("connection: neither region nor endpoint configured")
		}
		switch p.Service {
		case ServiceTranslation:
			base = fmt.Sprintf(translationHostFormat, p.Region)
		default:
			base = fmt.Sprintf(speechHostFormat, p.Region, p.Mode)
		}
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("connection: parse endpoint %q: %w", base, err)
	}

	q := u.Query()
	setIfAbsent := func(key, value string) {
		if value != "" && !q.Has(key) {
			q.Set(key, value)
		}
	}

	switch p.Service {
	case ServiceTranslation:
		setIfAbsent("from", p.Language)
		if len(p.TargetLanguages) > 0 && !q.Has("to") {
			q.Set("to", strings.Join(p.TargetLanguages, ","))
		}
		setIfAbsent("voice", p.Voice)
		if p.Voice != "" {
			setIfAbsent("features", "texttospeech")
		}
	default:
		setIfAbsent("language", p.Language)
	}
	setIfAbsent("format", p.OutputFormat)
	setIfAbsent("cid", p.EndpointID)

	u.RawQuery = q.Encode()
	return u.String(), nil
}
