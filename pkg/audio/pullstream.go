package audio

import (
	"context"
	"sync"
)

// PullReadFunc supplies audio on demand for a PullStream. It fills p and
// returns the number of bytes written. Returning io.EOF ends the stream;
// returning (0, nil) is treated as a zero-length chunk and the core will call
// again.
type PullReadFunc func(p []byte) (int, error)

// PullStream is a Source that obtains audio by invoking a caller-supplied
// read callback. It is the adapter for applications that already have a
// pull-style audio pipeline.
type PullStream struct {
	format Format
	read   PullReadFunc

	mu     sync.Mutex
	closed bool
}

// NewPullStream creates a PullStream around the given read callback.
// A zero Format is replaced with DefaultFormat.
func NewPullStream(read PullReadFunc, format Format) *PullStream {
	if format == (Format{}) {
		format = DefaultFormat
	}
	return &PullStream{format: format, read: read}
}

// Read implements Source by delegating to the pull callback.
func (s *PullStream) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrSourceClosed
	}
	return s.read(p)
}

// Format implements Source.
func (s *PullStream) Format() Format { return s.format }

// TurnOff implements Source.
func (s *PullStream) TurnOff() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Close implements Source.
func (s *PullStream) Close() error { return s.TurnOff() }
