package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deepgram/sessiond/internal/connections"
	"github.com/deepgram/sessiond/internal/logger"
	"github.com/deepgram/sessiond/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const inboxSize = 8

// StreamHandler upgrades to a WebSocket and serves a sequence of exchanges
// over it. Frames on one connection are handled strictly in order.
type StreamHandler struct {
	dispatcher    Dispatcher
	manager       *connections.Manager
	maxFrameBytes int64
	observer      FrameObserver
	upgrader      websocket.Upgrader
}

func NewStreamHandler(dispatcher Dispatcher, manager *connections.Manager, maxFrameBytes int64, observer FrameObserver) *StreamHandler {
	if observer == nil {
		observer = nopObserver{}
	}
	return &StreamHandler{
		dispatcher:    dispatcher,
		manager:       manager,
		maxFrameBytes: maxFrameBytes,
		observer:      observer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    protocol.Subprotocols(),
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		l := logger.For(logger.HANDLER)
		l.Warn().Err(err).Str("client_ip", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	codec, ok := protocol.ForSubprotocol(conn.Subprotocol())
	if !ok {
		codec = protocol.Default
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &stream{
		conn:          conn,
		cancel:        cancel,
		codec:         codec,
		dispatcher:    h.dispatcher,
		observer:      h.observer,
		timeouts:      h.manager.GetTimeouts(),
		maxFrameBytes: h.maxFrameBytes,
		inbox:         make(chan []byte, inboxSize),
	}
	s.entry = h.manager.Register(r.RemoteAddr, func() {
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
	})
	s.log = logger.For(logger.HANDLER).With().
		Str("conn_id", s.entry.ID).
		Str("codec", codec.Name()).
		Logger()

	h.observer.StreamOpened()
	defer func() {
		h.manager.Remove(s.entry)
		h.observer.StreamClosed()
	}()

	s.log.Info().Str("client_ip", r.RemoteAddr).Msg("Stream opened")
	s.run(ctx)
	s.log.Info().Msg("Stream closed")
}

type stream struct {
	conn          *websocket.Conn
	codec         *protocol.Codec
	dispatcher    Dispatcher
	observer      FrameObserver
	entry         *connections.Conn
	timeouts      connections.TimeoutConfig
	maxFrameBytes int64
	inbox         chan []byte
	log           zerolog.Logger

	// cancel stops the reader, worker and ping loop. Every path that ends the
	// stream calls it; the reader may be parked on a full inbox.
	cancel context.CancelFunc

	closeOnce sync.Once
	closed    atomic.Bool
}

func (s *stream) run(ctx context.Context) {
	s.conn.SetReadLimit(s.maxFrameBytes)
	s.conn.SetReadDeadline(time.Now().Add(s.timeouts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.timeouts.PongWait))
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.ping(ctx)
	}()
	go func() {
		defer wg.Done()
		s.work(ctx)
	}()

	code, reason := s.read(ctx)

	// Queued frames are dropped from here on; a dispatch already running finishes.
	s.cancel()
	s.entry.SetState(connections.StateClosing)
	s.closeWith(code, reason)
	close(s.inbox)
	wg.Wait()
	s.entry.Close()
}

// read pulls frames off the wire until the connection ends and returns the
// close code to answer with.
func (s *stream) read(ctx context.Context) (int, string) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return s.readFailed(err)
		}

		if messageType != websocket.BinaryMessage {
			s.log.Warn().Int("message_type", messageType).Msg("Client sent unsupported frame type")
			s.observer.FrameRejected("unsupported_frame")
			return websocket.CloseUnsupportedData, "binary frames only"
		}

		s.conn.SetReadDeadline(time.Now().Add(s.timeouts.PongWait))

		select {
		case s.inbox <- data:
		case <-ctx.Done():
			return websocket.CloseGoingAway, ""
		}
	}
}

func (s *stream) readFailed(err error) (int, string) {
	var closeErr *websocket.CloseError
	switch {
	case s.closed.Load():
		s.log.Debug().Err(err).Msg("Read ended after close")
		return websocket.CloseNormalClosure, ""
	case errors.As(err, &closeErr):
		s.log.Debug().Int("code", closeErr.Code).Str("text", closeErr.Text).Msg("Client closed stream")
		return websocket.CloseNormalClosure, ""
	case errors.Is(err, websocket.ErrReadLimit):
		s.log.Warn().Int64("limit", s.maxFrameBytes).Msg("Client frame exceeded size limit")
		s.observer.FrameRejected("too_large")
		return websocket.CloseMessageTooBig, "frame too large"
	default:
		s.log.Warn().Err(err).Msg("Stream transport error")
		return websocket.CloseAbnormalClosure, ""
	}
}

func (s *stream) work(ctx context.Context) {
	defer s.cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-s.inbox:
			if !ok || ctx.Err() != nil {
				return
			}
			if !s.handle(ctx, frame) {
				s.forceClose()
				return
			}
		}
	}
}

// handle answers one frame. It reports false when nothing could be sent back.
func (s *stream) handle(ctx context.Context, frame []byte) bool {
	s.entry.SetState(connections.StateProcessing)
	defer s.entry.SetState(connections.StateOpen)

	var resp protocol.Response
	req, err := s.codec.Decode(frame)
	if err != nil {
		s.log.Debug().Err(err).Msg("Client sent undecodable frame")
		s.observer.FrameRejected(protocol.ReasonDecodeFailed)
		resp = protocol.ErrorFrame{Reason: protocol.ReasonDecodeFailed}
	} else {
		resp = s.dispatcher.Dispatch(ctx, req)
	}

	out, err := s.codec.Encode(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
		s.observer.FrameRejected(protocol.ReasonInternal)
		out, err = s.codec.Encode(protocol.ErrorFrame{Reason: protocol.ReasonInternal})
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to encode error frame")
			return false
		}
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.timeouts.WriteWait))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
		if !s.closed.Load() {
			s.log.Warn().Err(err).Msg("Failed to send response")
		}
		return false
	}
	return true
}

func (s *stream) ping(ctx context.Context) {
	ticker := time.NewTicker(s.timeouts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(s.timeouts.WriteWait)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// closeWith sends a close frame carrying code and tears the transport down.
// It can run from CloseAll before the stream is fully set up.
func (s *stream) closeWith(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		if code != websocket.CloseAbnormalClosure {
			deadline := time.Now().Add(s.timeouts.WriteWait)
			msg := websocket.FormatCloseMessage(code, reason)
			if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
				l := logger.For(logger.HANDLER)
				l.Debug().Err(err).Int("code", code).Msg("Failed to send close frame")
			}
		}
		s.conn.Close()
	})
}

func (s *stream) forceClose() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.log.Warn().Msg("Force-closing stream")
		s.conn.Close()
	})
}
