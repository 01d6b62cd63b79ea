// Package audio defines the Source contract consumed by the recognizers and
// provides the stock implementations: push streams, pull streams, and WAV files.
//
// A Source produces a sequence of raw PCM byte chunks in the format described
// by its Format descriptor. The recognizer core reads chunks on demand, so a
// Source never needs to pace itself — rate limiting happens downstream. The
// microphone capture implementation lives in the audio/microphone subpackage
// because it carries a cgo dependency.
package audio

import (
	"context"
	"errors"
)

// ErrSourceClosed is returned by Read and Write once a source has been closed
// or turned off.
var ErrSourceClosed = errors.New("audio: source is closed")

// Format describes the PCM layout of the bytes a Source produces.
type Format struct {
	// SampleRate in Hz (e.g., 16000).
	SampleRate int

	// Channels is the number of interleaved channels. 1 = mono.
	Channels int

	// BitsPerSample is the sample width. 16 for the service's default format.
	BitsPerSample int
}

// DefaultFormat is 16kHz 16-bit mono PCM, the format the recognition service
// accepts without transcoding.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

// BlockAlign returns the size in bytes of one sample frame across all channels.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// AvgBytesPerSec returns the byte rate of real-time audio in this format.
func (f Format) AvgBytesPerSec() int {
	return f.SampleRate * f.BlockAlign()
}

// Source is the contract between audio producers and the recognizer core.
//
// The core reads chunks until Read reports io.EOF, which signals the natural
// end of the stream (file exhausted, push stream closed by the writer).
// Sources are owned by the caller, not the recognizer: the core calls TurnOff
// when an attempt ends so the caller can reuse or release the source, but it
// never assumes the source's lifetime beyond that.
//
// Implementations must be safe for one concurrent reader plus the owner
// calling TurnOff/Close.
type Source interface {
	// Read fills p with up to len(p) bytes of PCM audio and returns the number
	// of bytes read. It blocks until data is available, the stream ends
	// (io.EOF), the source is turned off (ErrSourceClosed), or ctx is done.
	Read(ctx context.Context, p []byte) (int, error)

	// Format returns the PCM layout of the produced bytes. It is constant for
	// the lifetime of the source.
	Format() Format

	// TurnOff releases the source's producing side. Subsequent reads drain any
	// buffered data and then fail with ErrSourceClosed. TurnOff is idempotent.
	TurnOff() error

	// Close releases all resources. Close implies TurnOff and is idempotent.
	Close() error
}
