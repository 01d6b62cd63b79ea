// Package connection provides the duplex transport to the speech service:
// a websocket Connection carrying protocol frames, and the Factory that
// assembles endpoint URLs, query parameters, and auth headers per
// recognition mode.
package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/varenko/speechwire/internal/protocol"
)

// ErrConnectionClosed is returned by Send and Read after Close.
var ErrConnectionClosed = errors.New("connection: closed")

// maxFrameSize bounds inbound frames. Detailed phrases and synthesized audio
// chunks can run large.
const maxFrameSize = 16 << 20

// DialError reports a failure to establish the websocket, as opposed to a
// failure on an already-open transport. StatusCode is the HTTP handshake
// status when one was received, 0 otherwise.
type DialError struct {
	StatusCode int
	Err        error
}

func (e *DialError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("connection: dial rejected with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("connection: dial failed: %v", e.Err)
}

func (e *DialError) Unwrap() error { return e.Err }

// Unauthorized reports whether the dial was rejected for credential reasons,
// in which case the caller may refresh the credential and retry once.
func (e *DialError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Connection is one live duplex session to the service. Implementations must
// allow one concurrent sender and one concurrent reader.
type Connection interface {
	// Send writes one frame. It returns ErrConnectionClosed after Close and a
	// transport error if the peer has gone away.
	Send(ctx context.Context, msg protocol.Message) error

	// Read blocks until the next inbound frame arrives and returns it decoded.
	// It returns ErrConnectionClosed once the connection has been closed
	// locally, and the transport error on an unexpected remote close.
	Read(ctx context.Context) (protocol.Message, error)

	// Close tears the transport down. Close is idempotent.
	Close() error
}

// wsConnection is the production Connection over coder/websocket.
type wsConnection struct {
	conn   *websocket.Conn
	closed chan struct{}
}

func newWSConnection(conn *websocket.Conn) *wsConnection {
	conn.SetReadLimit(maxFrameSize)
	return &wsConnection{conn: conn, closed: make(chan struct{})}
}

func (c *wsConnection) Send(ctx context.Context, msg protocol.Message) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	typ := websocket.MessageText
	if msg.Binary {
		typ = websocket.MessageBinary
	}
	if err := c.conn.Write(ctx, typ, msg.Encode()); err != nil {
		return fmt.Errorf("connection: write %s: %w", msg.Path, err)
	}
	return nil
}

func (c *wsConnection) Read(ctx context.Context) (protocol.Message, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		select {
		case <-c.closed:
			return protocol.Message{}, ErrConnectionClosed
		default:
		}
		return protocol.Message{}, fmt.Errorf("connection: read: %w", err)
	}
	if typ == websocket.MessageBinary {
		return protocol.DecodeBinary(data)
	}
	return protocol.DecodeText(data)
}

func (c *wsConnection) Close() error {
	select {
	case <-c.closed:
		return nil
	default:
		close(c.closed)
	}
	return c.conn.Close(websocket.StatusNormalClosure, "recognition ended")
}
