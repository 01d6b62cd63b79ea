package recognizer

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newID returns a 32-hex-character identifier without dashes, the format the
// service expects in X-RequestId and X-ConnectionId headers.
func newID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// requestSession tracks one service turn: the request id stamped on every
// outbound frame, the tally of inbound messages for the turn's telemetry
// record, and the timing needed for phrase latency.
type requestSession struct {
	id         string
	started    time.Time
	firstAudio time.Time

	// received maps inbound message paths to arrival timestamps, mirrored
	// back to the service in the telemetry message at turn end.
	received map[string][]string
}

func newRequestSession() *requestSession {
	return &requestSession{
		id:       newID(),
		started:  time.Now(),
		received: make(map[string][]string),
	}
}

// record tallies one inbound message.
func (s *requestSession) record(path string) {
	s.received[path] = append(s.received[path], time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
}

// markAudio notes the first audio byte of the turn, the anchor for phrase
// latency.
func (s *requestSession) markAudio() {
	if s.firstAudio.IsZero() {
		s.firstAudio = time.Now()
	}
}

// latency returns the elapsed time since the first audio byte, or zero if no
// audio was sent.
func (s *requestSession) latency() time.Duration {
	if s.firstAudio.IsZero() {
		return 0
	}
	return time.Since(s.firstAudio)
}

// telemetryBody builds the JSON payload for the turn's telemetry message.
func (s *requestSession) telemetryBody() []byte {
	type received struct {
		Name      string   `json:"Name"`
		Timestamp []string `json:"Timestamp"`
	}
	payload := struct {
		ReceivedMessages []received `json:"ReceivedMessages"`
	}{}
	for name, stamps := range s.received {
		payload.ReceivedMessages = append(payload.ReceivedMessages, received{Name: name, Timestamp: stamps})
	}
	body, _ := json.Marshal(payload)
	return body
}
