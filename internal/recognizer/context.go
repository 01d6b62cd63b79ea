package recognizer

import (
	"encoding/json"
	"runtime"
)

// sdkVersion is reported to the service in the speech.config context message.
const sdkVersion = "1.0.0"

// IntentContext references a language-understanding model the service should
// query for each finalized phrase.
type IntentContext struct {
	Provider string
	AppID    string
	Key      string
}

// configBody builds the speech.config payload sent once per connection,
// before any other message: a description of the client for service-side
// diagnostics.
func configBody() []byte {
	payload := map[string]any{
		"context": map[string]any{
			"system": map[string]string{
				"name":    "speechwire",
				"version": sdkVersion,
				"build":   "go",
			},
			"os": map[string]string{
				"platform": runtime.GOOS,
				"name":     runtime.GOOS,
				"version":  runtime.GOARCH,
			},
		},
	}
	body, _ := json.Marshal(payload)
	return body
}

// contextBody builds the speech.context payload sent at the start of every
// turn: the dynamic grammar (phrase hints) and the intent model reference,
// when configured. An empty context is a valid message.
func contextBody(phrases []string, intent *IntentContext) []byte {
	payload := map[string]any{}

	if len(phrases) > 0 {
		items := make([]map[string]string, len(phrases))
		for i, p := range phrases {
			items[i] = map[string]string{"Text": p}
		}
		payload["dgi"] = map[string]any{
			"Groups": []map[string]any{
				{"Type": "Generic", "Items": items},
			},
		}
	}

	if intent != nil {
		provider := intent.Provider
		if provider == "" {
			provider = "LUIS"
		}
		payload["intent"] = map[string]string{
			"provider": provider,
			"id":       intent.AppID,
			"key":      intent.Key,
		}
	}

	body, _ := json.Marshal(payload)
	return body
}
