package audio

import (
	"context"
	"io"
	"sync"
)

// PushStream is a Source fed by the caller: the application writes PCM chunks
// with Write and calls CloseWrite when the stream ends. Reads drain buffered
// chunks in FIFO order and return io.EOF once the writer has closed and the
// buffer is empty.
type PushStream struct {
	format Format

	mu     sync.Mutex
	cond   *sync.Cond
	chunks [][]byte
	pos    int // read offset into chunks[0]
	eof    bool
	closed bool
}

// NewPushStream creates a PushStream producing audio in the given format.
// A zero Format is replaced with DefaultFormat.
func NewPushStream(format Format) *PushStream {
	if format == (Format{}) {
		format = DefaultFormat
	}
	s := &PushStream{format: format}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Write queues a copy of p for delivery to the reader.
func (s *PushStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.eof {
		return 0, ErrSourceClosed
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	s.chunks = append(s.chunks, buf)
	s.cond.Broadcast()
	return len(p), nil
}

// CloseWrite marks the end of the audio stream. Buffered chunks remain
// readable; once drained, Read returns io.EOF.
func (s *PushStream) CloseWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eof = true
	s.cond.Broadcast()
	return nil
}

// Read implements Source.
func (s *PushStream) Read(ctx context.Context, p []byte) (int, error) {
	// Wake the cond wait below if the context ends first.
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if len(s.chunks) > 0 {
			chunk := s.chunks[0]
			n := copy(p, chunk[s.pos:])
			s.pos += n
			if s.pos >= len(chunk) {
				s.chunks = s.chunks[1:]
				s.pos = 0
			}
			return n, nil
		}
		if s.closed {
			return 0, ErrSourceClosed
		}
		if s.eof {
			return 0, io.EOF
		}
		s.cond.Wait()
	}
}

// Format implements Source.
func (s *PushStream) Format() Format { return s.format }

// TurnOff implements Source. For a push stream it behaves like CloseWrite:
// buffered audio stays readable so an in-flight attempt can finish cleanly.
func (s *PushStream) TurnOff() error { return s.CloseWrite() }

// Close implements Source. Pending and future reads fail with ErrSourceClosed.
func (s *PushStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.chunks = nil
	s.cond.Broadcast()
	return nil
}
