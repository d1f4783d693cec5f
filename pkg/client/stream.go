package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/deepgram/sessiond/internal/protocol"
)

// Stream is one WebSocket connection carrying a sequence of exchanges.
// Exchanges on a Stream are serialized.
type Stream struct {
	conn  *websocket.Conn
	codec *protocol.Codec
	mu    sync.Mutex
}

// StreamURL turns an http(s) base URL into the stream endpoint.
func StreamURL(baseURL string) string {
	u := strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/v1/session/stream"
}

// DialStream opens a stream at url negotiating codec's subprotocol.
func DialStream(ctx context.Context, url string, codec *protocol.Codec) (*Stream, error) {
	if codec == nil {
		codec = protocol.Default
	}

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{codec.Subprotocol()},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if got := conn.Subprotocol(); got != codec.Subprotocol() {
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return nil, fmt.Errorf("%w: server selected subprotocol %q", ErrUnexpectedResponse, got)
	}

	return &Stream{conn: conn, codec: codec}, nil
}

func (s *Stream) Exchange(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	frame, err := s.codec.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	mt, data, err := s.conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if mt != websocket.MessageBinary {
		return nil, fmt.Errorf("%w: non-binary frame", ErrUnexpectedResponse)
	}

	return s.codec.DecodeResponse(data)
}

func (s *Stream) Login(ctx context.Context, username, password string) (string, error) {
	return Login(ctx, s, username, password)
}

func (s *Stream) Renew(ctx context.Context, token string) (string, error) {
	return Renew(ctx, s, token)
}

func (s *Stream) Logout(ctx context.Context, token string) error {
	return Logout(ctx, s, token)
}

func (s *Stream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "bye")
}
