package speech

import (
	"strings"
	"testing"
)

func TestNewConfigFromSubscription_Validation(t *testing.T) {
	if _, err := NewConfigFromSubscription("", "westus"); err == nil {
		t.Error("empty key accepted")
	}
	if _, err := NewConfigFromSubscription("key", ""); err == nil {
		t.Error("empty region accepted")
	}
	cfg, err := NewConfigFromSubscription("key", "westus")
	if err != nil {
		t.Fatalf("NewConfigFromSubscription: %v", err)
	}
	if got := cfg.SpeechRecognitionLanguage(); got != "en-US" {
		t.Errorf("default language = %q, want en-US", got)
	}
	if got := cfg.OutputFormat(); got != OutputFormatSimple {
		t.Errorf("default output format = %v, want simple", got)
	}
}

func TestNewConfigFromEndpoint_Validation(t *testing.T) {
	if _, err := NewConfigFromEndpoint("", "key"); err == nil {
		t.Error("empty endpoint accepted")
	}
	cfg, err := NewConfigFromEndpoint("wss://custom.example.com/speech?format=detailed", "key")
	if err != nil {
		t.Fatalf("NewConfigFromEndpoint: %v", err)
	}
	if got := cfg.Properties().Get(PropertyConnectionEndpoint, ""); !strings.Contains(got, "format=detailed") {
		t.Errorf("endpoint query params not preserved: %q", got)
	}
}

func TestConfigClone_Isolation(t *testing.T) {
	cfg, err := NewConfigFromSubscription("key", "westus")
	if err != nil {
		t.Fatalf("NewConfigFromSubscription: %v", err)
	}
	cfg.SetSpeechRecognitionLanguage("en-US")

	clone := cfg.clone()
	cfg.SetSpeechRecognitionLanguage("de-DE")

	if got := clone.SpeechRecognitionLanguage(); got != "en-US" {
		t.Errorf("clone language = %q, want en-US", got)
	}
	if got := cfg.SpeechRecognitionLanguage(); got != "de-DE" {
		t.Errorf("original language = %q, want de-DE", got)
	}
}

func TestPropertyCollection_OrderAndClone(t *testing.T) {
	p := NewPropertyCollection()
	p.SetString("b", "2")
	p.SetString("a", "1")
	p.SetString("b", "3") // overwrite keeps position

	keys := p.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Errorf("keys = %v, want [b a]", keys)
	}
	if got := p.GetString("b", ""); got != "3" {
		t.Errorf("b = %q, want 3", got)
	}
	if got := p.GetString("missing", "def"); got != "def" {
		t.Errorf("missing = %q, want def", got)
	}

	c := p.Clone()
	c.SetString("a", "changed")
	if got := p.GetString("a", ""); got != "1" {
		t.Errorf("clone mutation leaked into original: a = %q", got)
	}
}

func TestTranslationConfig_TargetLanguages(t *testing.T) {
	cfg, err := NewTranslationConfigFromSubscription("key", "westus")
	if err != nil {
		t.Fatalf("NewTranslationConfigFromSubscription: %v", err)
	}
	cfg.AddTargetLanguage("de")
	cfg.AddTargetLanguage("fr")
	cfg.AddTargetLanguage("de") // duplicate ignored

	got := cfg.TargetLanguages()
	if len(got) != 2 || got[0] != "de" || got[1] != "fr" {
		t.Errorf("targets = %v, want [de fr]", got)
	}
}

func TestParseFileConfig(t *testing.T) {
	fc, err := parseFileConfig(strings.NewReader(`
subscription_key: abc
region: westus
language: de-DE
output_format: detailed
phrases:
  - Contoso
`))
	if err != nil {
		t.Fatalf("parseFileConfig: %v", err)
	}
	cfg, err := fc.toConfig()
	if err != nil {
		t.Fatalf("toConfig: %v", err)
	}
	if got := cfg.SpeechRecognitionLanguage(); got != "de-DE" {
		t.Errorf("language = %q, want de-DE", got)
	}
	if got := cfg.OutputFormat(); got != OutputFormatDetailed {
		t.Errorf("output format = %v, want detailed", got)
	}
	if got := cfg.Phrases(); len(got) != 1 || got[0] != "Contoso" {
		t.Errorf("phrases = %v, want [Contoso]", got)
	}
}

func TestParseFileConfig_RejectsUnknownFields(t *testing.T) {
	_, err := parseFileConfig(strings.NewReader("subscription_key: abc\nregion: westus\nbogus: true\n"))
	if err == nil {
		t.Error("unknown field accepted")
	}
}

func TestParseFileConfig_JoinsValidationErrors(t *testing.T) {
	_, err := parseFileConfig(strings.NewReader("output_format: verbose\n"))
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	for _, want := range []string{"subscription_key", "region", "output_format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
