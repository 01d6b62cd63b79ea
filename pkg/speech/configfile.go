package speech

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML schema for a recognizer configuration file.
type FileConfig struct {
	// SubscriptionKey authenticates against the service. Required unless
	// AuthorizationToken is set.
	SubscriptionKey string `yaml:"subscription_key"`

	// AuthorizationToken is a caller-managed bearer token, an alternative to
	// SubscriptionKey.
	AuthorizationToken string `yaml:"authorization_token"`

	// Region selects the default service host (e.g. "westus"). Required
	// unless Endpoint is set.
	Region string `yaml:"region"`

	// Endpoint overrides the region-based host entirely.
	Endpoint string `yaml:"endpoint"`

	// Language is the BCP-47 recognition language. Default: "en-US".
	Language string `yaml:"language"`

	// OutputFormat is "simple" or "detailed". Default: "simple".
	OutputFormat string `yaml:"output_format"`

	// EndpointID references a custom trained model deployment.
	EndpointID string `yaml:"endpoint_id"`

	// TargetLanguages are translation targets; translation recognizers only.
	TargetLanguages []string `yaml:"target_languages"`

	// Voice enables synthesized translation audio; translation only.
	Voice string `yaml:"voice"`

	// Phrases are recognition hints passed to the service's dynamic grammar.
	Phrases []string `yaml:"phrases"`
}

// ConfigFromFile reads the YAML file at path into a validated Config.
func ConfigFromFile(path string) (*Config, error) {
	fc, err := loadFileConfig(path)
	if err != nil {
		return nil, err
	}
	cfg, err := fc.toConfig()
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// TranslationConfigFromFile reads the YAML file at path into a validated
// TranslationConfig.
func TranslationConfigFromFile(path string) (*TranslationConfig, error) {
	fc, err := loadFileConfig(path)
	if err != nil {
		return nil, err
	}
	base, err := fc.toConfig()
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	tc := &TranslationConfig{Config: *base}
	for _, lang := range fc.TargetLanguages {
		tc.AddTargetLanguage(lang)
	}
	if fc.Voice != "" {
		tc.SetVoiceName(fc.Voice)
	}
	return tc, nil
}

func loadFileConfig(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("speech: open config %q: %w", path, err)
	}
	defer f.Close()

	fc, err := parseFileConfig(f)
	if err != nil {
		return nil, fmt.Errorf("speech: parse config %q: %w", path, err)
	}
	return fc, nil
}

// parseFileConfig decodes and validates a YAML config from r. Unknown fields
// are rejected; all validation failures are reported together.
func parseFileConfig(r io.Reader) (*FileConfig, error) {
	fc := &FileConfig{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(fc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	var errs []error
	if fc.SubscriptionKey == "" && fc.AuthorizationToken == "" {
		errs = append(errs, errors.New("one of subscription_key or authorization_token is required"))
	}
	if fc.Region == "" && fc.Endpoint == "" {
		errs = append(errs, errors.New("one of region or endpoint is required"))
	}
	if fc.OutputFormat != "" && fc.OutputFormat != "simple" && fc.OutputFormat != "detailed" {
		errs = append(errs, fmt.Errorf("output_format %q is invalid; valid values: simple, detailed", fc.OutputFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return fc, nil
}

// toConfig converts the file schema into a Config.
func (fc *FileConfig) toConfig() (*Config, error) {
	var cfg *Config
	var err error
	switch {
	case fc.Endpoint != "" && fc.SubscriptionKey != "":
		cfg, err = NewConfigFromEndpoint(fc.Endpoint, fc.SubscriptionKey)
	case fc.AuthorizationToken != "":
		cfg, err = NewConfigFromAuthorizationToken(fc.AuthorizationToken, fc.Region)
	default:
		cfg, err = NewConfigFromSubscription(fc.SubscriptionKey, fc.Region)
	}
	if err != nil {
		return nil, err
	}

	if fc.Language != "" {
		cfg.SetSpeechRecognitionLanguage(fc.Language)
	}
	if fc.OutputFormat == "detailed" {
		cfg.SetOutputFormat(OutputFormatDetailed)
	}
	if fc.EndpointID != "" {
		cfg.SetEndpointID(fc.EndpointID)
	}
	for _, p := range fc.Phrases {
		cfg.AddPhrase(p)
	}
	return cfg, nil
}
