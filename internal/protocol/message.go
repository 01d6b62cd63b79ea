// Package protocol implements the wire codec for the speech service's
// duplex message protocol.
//
// Text frames carry CRLF-separated headers, a blank line, and a JSON body:
//
//	Path: speech.phrase
//	X-RequestId: 5FE045C8E6514B858061C57B069AF80D
//	X-Timestamp: 2024-05-07T18:16:55.121Z
//	Content-Type: application/json; charset=utf-8
//
//	{ "RecognitionStatus": "Success", ... }
//
// Binary frames (audio) start with a big-endian uint16 header length,
// followed by the same header block and the raw payload bytes.
//
// Inbound frames are decoded exactly once, at this package's boundary, into
// the closed Inbound union declared in inbound.go. Message types the SDK does
// not act on decode to Unhandled rather than being dropped, so the core can
// log and ignore them without string-switching on paths.
package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Well-known header names.
const (
	headerPath        = "Path"
	headerRequestID   = "X-RequestId"
	headerTimestamp   = "X-Timestamp"
	headerContentType = "Content-Type"
)

// Outbound message paths.
const (
	PathSpeechConfig  = "speech.config"
	PathSpeechContext = "speech.context"
	PathAudio         = "audio"
	PathTelemetry     = "telemetry"
)

// Inbound message paths. Matching is case-insensitive; the service has been
// observed emitting both "speech.startDetected" and "speech.startdetected".
const (
	PathTurnStart               = "turn.start"
	PathTurnEnd                 = "turn.end"
	PathSpeechStartDetected     = "speech.startdetected"
	PathSpeechEndDetected       = "speech.enddetected"
	PathSpeechHypothesis        = "speech.hypothesis"
	PathSpeechFragment          = "speech.fragment"
	PathSpeechPhrase            = "speech.phrase"
	PathTranslationHypothesis   = "translation.hypothesis"
	PathTranslationPhrase       = "translation.phrase"
	PathTranslationSynthesis    = "translation.synthesis"
	PathTranslationSynthesisEnd = "translation.synthesis.end"
	PathIntentResponse          = "response"
)

const jsonContentType = "application/json; charset=utf-8"

// Message is one protocol frame, outbound or decoded inbound.
type Message struct {
	// Path is the message type discriminator, e.g. "speech.phrase".
	Path string

	// RequestID correlates all frames of one recognition turn. 32 hex chars,
	// no dashes.
	RequestID string

	// ContentType describes Body for text frames. Empty for audio frames.
	ContentType string

	// Body is the JSON payload of a text frame, or the audio payload of a
	// binary frame. A binary frame with an empty Body marks end of audio.
	Body []byte

	// Binary reports whether the frame travels as a binary websocket message.
	Binary bool
}

// NewTextMessage builds an outbound JSON-bodied frame.
func NewTextMessage(path, requestID string, body []byte) Message {
	return Message{Path: path, RequestID: requestID, ContentType: jsonContentType, Body: body}
}

// NewAudioMessage builds an outbound binary audio frame. A nil payload
// produces the zero-length frame that signals end of audio to the service.
func NewAudioMessage(requestID string, payload []byte) Message {
	return Message{Path: PathAudio, RequestID: requestID, Body: payload, Binary: true}
}

// Encode serialises m into websocket frame bytes.
func (m Message) Encode() []byte {
	headers := m.encodeHeaders()
	if !m.Binary {
		out := make([]byte, 0, len(headers)+2+len(m.Body))
		out = append(out, headers...)
		out = append(out, '\r', '\n')
		out = append(out, m.Body...)
		return out
	}
	out := make([]byte, 2, 2+len(headers)+len(m.Body))
	binary.BigEndian.PutUint16(out, uint16(len(headers)))
	out = append(out, headers...)
	out = append(out, m.Body...)
	return out
}

func (m Message) encodeHeaders() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s: %s\r\n", headerPath, m.Path)
	fmt.Fprintf(&b, "%s: %s\r\n", headerRequestID, m.RequestID)
	fmt.Fprintf(&b, "%s: %s\r\n", headerTimestamp, time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if m.ContentType != "" {
		fmt.Fprintf(&b, "%s: %s\r\n", headerContentType, m.ContentType)
	}
	return b.Bytes()
}

// DecodeText parses a text websocket frame into a Message.
func DecodeText(data []byte) (Message, error) {
	head, body, found := bytes.Cut(data, []byte("\r\n\r\n"))
	if !found {
		return Message{}, fmt.Errorf("protocol: text frame without header terminator")
	}
	msg := Message{Body: body}
	if err := msg.parseHeaders(head); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// DecodeBinary parses a binary websocket frame into a Message.
func DecodeBinary(data []byte) (Message, error) {
	if len(data) < 2 {
		return Message{}, fmt.Errorf("protocol: binary frame shorter than header length prefix")
	}
	headerLen := int(binary.BigEndian.Uint16(data[:2]))
	if 2+headerLen > len(data) {
		return Message{}, fmt.Errorf("protocol: binary frame header length %d exceeds frame size %d", headerLen, len(data))
	}
	msg := Message{Body: data[2+headerLen:], Binary: true}
	if err := msg.parseHeaders(data[2 : 2+headerLen]); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (m *Message) parseHeaders(head []byte) error {
	for _, line := range strings.Split(string(head), "\r\n") {
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return fmt.Errorf("protocol: malformed header line %q", line)
		}
		value = strings.TrimSpace(value)
		switch name {
		case headerPath:
			m.Path = value
		case headerRequestID:
			m.RequestID = value
		case headerContentType:
			m.ContentType = value
		case headerTimestamp:
			// Not used by the core; arrival order is authoritative.
		}
	}
	if m.Path == "" {
		return fmt.Errorf("protocol: frame missing Path header")
	}
	return nil
}
