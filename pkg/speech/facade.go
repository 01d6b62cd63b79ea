// Package speech is the public SDK surface: configuration, recognizer
// facades, and the typed result/event model. Recognizers stream audio from an
// [audio.Source] to the recognition service and report results through Go
// return values and optional event handler fields.
//
// A minimal transcription:
//
//	cfg, err := speech.NewConfigFromSubscription(key, "westus")
//	...
//	src, err := audio.NewFileStream("utterance.wav")
//	...
//	rec, err := speech.NewRecognizer(cfg, src)
//	...
//	defer rec.Close()
//	result, err := rec.RecognizeOnce(ctx)
package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/varenko/speechwire/internal/connection"
	"github.com/varenko/speechwire/internal/recognizer"
	"github.com/varenko/speechwire/internal/telemetry"
	"github.com/varenko/speechwire/pkg/audio"
)

// ErrRecognizerClosed is returned by every method of a closed recognizer.
var ErrRecognizerClosed = errors.New("speech: recognizer is closed")

// ErrRecognitionInProgress is returned when a recognize call is made while a
// previous attempt is still running. Stop or await the previous attempt
// first; a recognizer drives at most one attempt at a time.
var ErrRecognitionInProgress = errors.New("speech: recognition already in progress")

// Option adjusts recognizer construction.
type Option func(*baseRecognizer)

// WithLogger routes the recognizer's debug logging to l instead of
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *baseRecognizer) { b.log = l }
}

// WithMetrics records per-phrase and per-session OpenTelemetry metrics using
// the global meter provider. Without this option telemetry is a no-op.
func WithMetrics() Option {
	return func(b *baseRecognizer) { b.sink = telemetry.Default() }
}

// baseRecognizer carries the lifecycle shared by all recognizer flavours:
// the cloned config, the zero-or-one active core, and idempotent close.
type baseRecognizer struct {
	config *Config
	source audio.Source
	kind   string
	log    *slog.Logger
	sink   telemetry.Sink

	// newFactory builds the connection factory; replaced by tests.
	newFactory func(connection.Params) connection.Factory

	mu      sync.Mutex
	closed  bool
	phrases []string
	active  *recognizer.Core
	abort   context.CancelFunc
	done    chan struct{}
}

func newBase(config *Config, source audio.Source, kind string, opts []Option) (*baseRecognizer, error) {
	if config == nil {
		return nil, errors.New("speech: config must not be nil")
	}
	if source == nil {
		return nil, errors.New("speech: audio source must not be nil")
	}
	if config.SpeechRecognitionLanguage() == "" {
		return nil, errors.New("speech: recognition language must not be empty")
	}
	b := &baseRecognizer{
		config:  config.clone(),
		source:  source,
		kind:    kind,
		phrases: config.Phrases(),
		log:     slog.Default(),
		sink:    telemetry.Noop{},
		newFactory: func(p connection.Params) connection.Factory {
			return &connection.WebsocketFactory{Params: p}
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Properties exposes the recognizer's own cloned configuration properties.
func (b *baseRecognizer) Properties() *PropertyCollection {
	return b.config.props
}

// SpeechRecognitionLanguage returns the recognizer's configured language.
func (b *baseRecognizer) SpeechRecognitionLanguage() string {
	return b.config.SpeechRecognitionLanguage()
}

// AddPhrase adds a recognition hint to the service's dynamic grammar for
// subsequent attempts.
func (b *baseRecognizer) AddPhrase(text string) {
	if text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phrases = append(b.phrases, text)
}

// params assembles the connection parameters for one attempt.
func (b *baseRecognizer) params(service connection.Service, continuous bool, targets []string, voice string) connection.Params {
	mode := connection.ModeInteractive
	if continuous {
		mode = connection.ModeConversation
	}
	return connection.Params{
		Region:          b.config.props.Get(PropertyConnectionRegion, ""),
		Endpoint:        b.config.props.Get(PropertyConnectionEndpoint, ""),
		Service:         service,
		Mode:            mode,
		Language:        b.config.SpeechRecognitionLanguage(),
		OutputFormat:    b.config.OutputFormat().String(),
		TargetLanguages: targets,
		Voice:           voice,
		EndpointID:      b.config.props.Get(PropertyConnectionEndpointID, ""),
	}
}

// credentials resolves the credential source from the config.
func (b *baseRecognizer) credentials() (connection.CredentialSource, error) {
	if b.config.tokenProvider != nil {
		provider := b.config.tokenProvider
		return connection.TokenFunc(func(ctx context.Context, correlationID string) (string, error) {
			return provider(ctx, correlationID)
		}), nil
	}
	if token := b.config.props.Get(PropertyAuthorizationToken, ""); token != "" {
		return connection.StaticToken(token), nil
	}
	if key := b.config.props.Get(PropertyConnectionKey, ""); key != "" {
		return connection.SubscriptionKey(key), nil
	}
	return nil, errors.New("speech: no credentials configured")
}

// start launches one recognition attempt in its own goroutine. The returned
// channel closes when the attempt is fully finished.
func (b *baseRecognizer) start(ctx context.Context, continuous bool, service connection.Service, targets []string, voice string, intent *recognizer.IntentContext, onEvent func(recognizer.Event)) (<-chan struct{}, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrRecognizerClosed
	}
	if b.active != nil {
		b.mu.Unlock()
		return nil, ErrRecognitionInProgress
	}
	creds, err := b.credentials()
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}

	core := recognizer.New(recognizer.Options{
		Factory:     b.newFactory(b.params(service, continuous, targets, voice)),
		Credentials: creds,
		Source:      b.source,
		Continuous:  continuous,
		Kind:        b.kind,
		Phrases:     append([]string(nil), b.phrases...),
		Intent:      intent,
		Logger:      b.log,
		Telemetry:   b.sink,
		OnEvent:     onEvent,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.active = core
	b.abort = cancel
	b.done = done
	b.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		core.Run(runCtx)

		b.mu.Lock()
		b.active = nil
		b.abort = nil
		b.mu.Unlock()
	}()
	return done, nil
}

// stop cooperatively ends the active attempt and waits for it to finish.
// Stopping an idle recognizer is a no-op.
func (b *baseRecognizer) stop() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrRecognizerClosed
	}
	core := b.active
	done := b.done
	b.mu.Unlock()

	if core == nil {
		return nil
	}
	core.Stop()
	<-done
	return nil
}

// Close aborts any in-flight attempt and marks the recognizer disposed.
// Close is idempotent; the audio source stays owned by the caller.
func (b *baseRecognizer) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	abort := b.abort
	done := b.done
	b.mu.Unlock()

	if abort != nil {
		abort()
		<-done
	}
	return nil
}
