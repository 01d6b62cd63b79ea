package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// wavPCMFormat is the RIFF format tag for uncompressed PCM.
const wavPCMFormat = 1

// FileStream is a Source backed by a RIFF/WAVE file containing uncompressed
// PCM audio. The format descriptor is taken from the file's fmt chunk.
type FileStream struct {
	format Format
	file   *os.File

	mu        sync.Mutex
	remaining int64
	closed    bool
}

// NewFileStream opens the WAV file at path and positions the stream at the
// start of its data chunk. Only PCM-encoded files are accepted.
func NewFileStream(path string) (*FileStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open wav %q: %w", path, err)
	}
	format, dataLen, err := parseWAVHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("audio: parse wav %q: %w", path, err)
	}
	return &FileStream{format: format, file: f, remaining: dataLen}, nil
}

// Read implements Source.
func (s *FileStream) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSourceClosed
	}
	if s.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.file.Read(p)
	s.remaining -= int64(n)
	if errors.Is(err, io.EOF) && n > 0 {
		err = nil
	}
	return n, err
}

// Format implements Source.
func (s *FileStream) Format() Format { return s.format }

// TurnOff implements Source.
func (s *FileStream) TurnOff() error { return s.Close() }

// Close implements Source.
func (s *FileStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// parseWAVHeader reads the RIFF header and chunk list from r until it finds
// the data chunk, returning the PCM format and the data chunk length. The
// reader is left positioned at the first data byte.
func parseWAVHeader(r io.Reader) (Format, int64, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Format{}, 0, err
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Format{}, 0, errors.New("not a RIFF/WAVE file")
	}

	var format Format
	haveFmt := false
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return Format{}, 0, err
		}
		chunkID := string(hdr[0:4])
		chunkLen := binary.LittleEndian.Uint32(hdr[4:8])

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, 0, err
			}
			if len(body) < 16 {
				return Format{}, 0, errors.New("fmt chunk too short")
			}
			if tag := binary.LittleEndian.Uint16(body[0:2]); tag != wavPCMFormat {
				return Format{}, 0, fmt.Errorf("unsupported format tag %d (PCM only)", tag)
			}
			format = Format{
				Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, 0, errors.New("data chunk before fmt chunk")
			}
			return format, int64(chunkLen), nil
		default:
			// Skip housekeeping chunks (LIST, fact, ...). Chunks are word
			// aligned, so odd lengths carry a pad byte.
			skip := int64(chunkLen)
			if chunkLen%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Format{}, 0, err
			}
		}
	}
}
