package speech

import (
	"context"
	"errors"
	"strings"
)

// TokenProvider fetches a fresh authorization token before a connection is
// opened, and again when the service rejects the previous one. The
// correlation id identifies the connection attempt for the caller's logs.
type TokenProvider func(ctx context.Context, correlationID string) (string, error)

// Config carries everything needed to construct a recognizer: credentials,
// endpoint selection, and recognition settings. Recognizers clone the config
// at construction, so mutating a Config afterwards never affects an existing
// recognizer.
type Config struct {
	props         *PropertyCollection
	tokenProvider TokenProvider
	phrases       []string
}

// NewConfigFromSubscription builds a Config using a subscription key and its
// service region (e.g. "westus").
func NewConfigFromSubscription(key, region string) (*Config, error) {
	if key == "" {
		return nil, errors.New("speech: subscription key must not be empty")
	}
	if region == "" {
		return nil, errors.New("speech: region must not be empty")
	}
	c := newConfig()
	c.props.Set(PropertyConnectionKey, key)
	c.props.Set(PropertyConnectionRegion, region)
	return c, nil
}

// NewConfigFromEndpoint builds a Config targeting an explicit endpoint URL.
// Query parameters already present on the endpoint are preserved verbatim.
func NewConfigFromEndpoint(endpoint, key string) (*Config, error) {
	if endpoint == "" {
		return nil, errors.New("speech: endpoint must not be empty")
	}
	if key == "" {
		return nil, errors.New("speech: subscription key must not be empty")
	}
	c := newConfig()
	c.props.Set(PropertyConnectionEndpoint, endpoint)
	c.props.Set(PropertyConnectionKey, key)
	return c, nil
}

// NewConfigFromAuthorizationToken builds a Config using a caller-managed
// bearer token. The token is not refreshed automatically; use
// NewConfigFromTokenProvider for that.
func NewConfigFromAuthorizationToken(token, region string) (*Config, error) {
	if token == "" {
		return nil, errors.New("speech: authorization token must not be empty")
	}
	if region == "" {
		return nil, errors.New("speech: region must not be empty")
	}
	c := newConfig()
	c.props.Set(PropertyAuthorizationToken, token)
	c.props.Set(PropertyConnectionRegion, region)
	return c, nil
}

// NewConfigFromTokenProvider builds a Config that fetches a token before
// every connection attempt and refreshes it once when the service rejects it.
func NewConfigFromTokenProvider(provider TokenProvider, region string) (*Config, error) {
	if provider == nil {
		return nil, errors.New("speech: token provider must not be nil")
	}
	if region == "" {
		return nil, errors.New("speech: region must not be empty")
	}
	c := newConfig()
	c.props.Set(PropertyConnectionRegion, region)
	c.tokenProvider = provider
	return c, nil
}

func newConfig() *Config {
	c := &Config{props: NewPropertyCollection()}
	c.props.Set(PropertyRecognitionLanguage, "en-US")
	return c
}

// SetSpeechRecognitionLanguage sets the BCP-47 recognition language.
func (c *Config) SetSpeechRecognitionLanguage(lang string) {
	c.props.Set(PropertyRecognitionLanguage, lang)
}

// SpeechRecognitionLanguage returns the configured recognition language.
func (c *Config) SpeechRecognitionLanguage() string {
	return c.props.Get(PropertyRecognitionLanguage, "")
}

// SetOutputFormat selects simple or detailed phrase results.
func (c *Config) SetOutputFormat(f OutputFormat) {
	c.props.Set(PropertyOutputFormat, f.String())
}

// OutputFormat returns the configured output format.
func (c *Config) OutputFormat() OutputFormat {
	if c.props.Get(PropertyOutputFormat, "") == OutputFormatDetailed.String() {
		return OutputFormatDetailed
	}
	return OutputFormatSimple
}

// AddPhrase adds a recognition hint to the service's dynamic grammar.
// Recognizers built from this config inherit the phrase list.
func (c *Config) AddPhrase(text string) {
	if text == "" {
		return
	}
	c.phrases = append(c.phrases, text)
}

// Phrases returns the configured recognition hints.
func (c *Config) Phrases() []string {
	return append([]string(nil), c.phrases...)
}

// SetEndpointID selects a custom trained model deployment.
func (c *Config) SetEndpointID(id string) {
	c.props.Set(PropertyConnectionEndpointID, id)
}

// Properties exposes the underlying property collection for free-form
// settings.
func (c *Config) Properties() *PropertyCollection {
	return c.props
}

// clone returns a deep, independent copy.
func (c *Config) clone() *Config {
	return &Config{
		props:         c.props.Clone(),
		tokenProvider: c.tokenProvider,
		phrases:       append([]string(nil), c.phrases...),
	}
}

// TranslationConfig is a Config extended with translation targets and an
// optional synthesis voice.
type TranslationConfig struct {
	Config
}

// NewTranslationConfigFromSubscription builds a TranslationConfig using a
// subscription key and region.
func NewTranslationConfigFromSubscription(key, region string) (*TranslationConfig, error) {
	base, err := NewConfigFromSubscription(key, region)
	if err != nil {
		return nil, err
	}
	return &TranslationConfig{Config: *base}, nil
}

// AddTargetLanguage appends a translation target (e.g. "de"). Duplicates are
// ignored.
func (c *TranslationConfig) AddTargetLanguage(lang string) {
	if lang == "" {
		return
	}
	targets := c.TargetLanguages()
	for _, t := range targets {
		if t == lang {
			return
		}
	}
	targets = append(targets, lang)
	c.props.Set(PropertyTranslationToLanguage, strings.Join(targets, ","))
}

// TargetLanguages returns the configured translation targets.
func (c *TranslationConfig) TargetLanguages() []string {
	raw := c.props.Get(PropertyTranslationToLanguage, "")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// SetVoiceName enables synthesized translation audio in the given voice.
func (c *TranslationConfig) SetVoiceName(voice string) {
	c.props.Set(PropertyTranslationVoice, voice)
}

// VoiceName returns the configured synthesis voice, if any.
func (c *TranslationConfig) VoiceName() string {
	return c.props.Get(PropertyTranslationVoice, "")
}

func (c *TranslationConfig) clone() *TranslationConfig {
	return &TranslationConfig{Config: *c.Config.clone()}
}
