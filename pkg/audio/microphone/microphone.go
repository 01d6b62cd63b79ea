// Package microphone provides an audio.Source that captures live audio from
// the default input device via PortAudio. It is kept in its own package so
// that programs using file or stream sources do not pick up the cgo
// dependency.
package microphone

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/varenko/speechwire/pkg/audio"
)

const framesPerBuffer = 1024

// Source captures 16-bit mono PCM from the default input device.
type Source struct {
	format audio.Format
	stream *portaudio.Stream
	buffer []int16

	mu      sync.Mutex
	pending []byte // captured bytes not yet consumed by Read
	closed  bool
}

// New initialises PortAudio, opens the default input device at the given
// sample rate, and starts capturing. The caller must Close the source to
// release the device.
func New(sampleRate int) (*Source, error) {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultFormat.SampleRate
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("microphone: initialize portaudio: %w", err)
	}
	buffer := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(buffer), buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("microphone: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("microphone: start stream: %w", err)
	}
	return &Source{
		format: audio.Format{SampleRate: sampleRate, Channels: 1, BitsPerSample: 16},
		stream: stream,
		buffer: buffer,
	}, nil
}

// Read implements audio.Source. It captures one PortAudio frame when the
// internal buffer is empty and hands out little-endian PCM bytes.
func (s *Source) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, audio.ErrSourceClosed
	}
	if len(s.pending) == 0 {
		if err := s.stream.Read(); err != nil {
			return 0, fmt.Errorf("microphone: read: %w", err)
		}
		s.pending = int16ToLittleEndian(s.buffer)
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Format implements audio.Source.
func (s *Source) Format() audio.Format { return s.format }

// TurnOff implements audio.Source. Microphone capture has no drainable
// buffer beyond the current frame, so TurnOff behaves like Close.
func (s *Source) TurnOff() error { return s.Close() }

// Close stops capture and releases the PortAudio device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if stopErr := s.stream.Stop(); stopErr != nil {
		err = stopErr
	}
	if closeErr := s.stream.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	portaudio.Terminate()
	return err
}

// int16ToLittleEndian converts int16 samples to little-endian PCM bytes.
func int16ToLittleEndian(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, v := range in {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}
